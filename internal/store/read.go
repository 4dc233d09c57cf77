package store

import (
	"context"
	"fmt"

	"github.com/roach88/sqltutor/internal/boolnorm"
)

// ReadSession retrieves a session by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, schema_name, sql, normalized, text, error
		FROM sessions
		WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Seq, &sess.Schema, &sess.SQL, &sess.Normalized, &sess.Text, &sess.Error)
	if err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns the latest limit sessions in seq order, oldest
// first. A limit of zero or less returns every session.
//
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, schema_name, sql, normalized, text, error FROM (
			SELECT * FROM sessions ORDER BY seq DESC, id COLLATE BINARY DESC LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Seq, &sess.Schema, &sess.SQL, &sess.Normalized, &sess.Text, &sess.Error); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadFirings returns the firings of a session in seq order.
//
// Returns an empty slice (not nil) if the session has none.
func (s *Store) ReadFirings(ctx context.Context, session string) ([]Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, phase, round, rule, precedence, tuples, changed, error
		FROM firings
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	firings := []Firing{}
	for rows.Next() {
		var f Firing
		if err := rows.Scan(&f.Session, &f.Seq, &f.Phase, &f.Round, &f.Rule, &f.Precedence, &f.Tuples, &f.Changed, &f.Error); err != nil {
			return nil, fmt.Errorf("scan firing: %w", err)
		}
		firings = append(firings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate firings: %w", err)
	}
	return firings, nil
}

// ReadClusterRun retrieves a clustering run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadClusterRun(ctx context.Context, id string) (ClusterRun, error) {
	var run ClusterRun
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, total, failures FROM cluster_runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Seq, &run.Total, &run.Failures)
	if err != nil {
		return ClusterRun{}, fmt.Errorf("read cluster run %s: %w", id, err)
	}
	return run, nil
}

// ReadClusterGroups returns the groups of a clustering run in rank order.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadClusterGroups(ctx context.Context, runID string) ([]boolnorm.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT canonical, count, members
		FROM cluster_groups
		WHERE run_id = ?
		ORDER BY rank ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cluster groups: %w", err)
	}
	defer rows.Close()

	groups := []boolnorm.Group{}
	for rows.Next() {
		var g boolnorm.Group
		var members string
		if err := rows.Scan(&g.Canonical, &g.Count, &members); err != nil {
			return nil, fmt.Errorf("scan cluster group: %w", err)
		}
		if g.Members, err = unmarshalMembers(members); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cluster groups: %w", err)
	}
	return groups, nil
}
