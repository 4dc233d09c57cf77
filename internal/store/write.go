package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sqltutor/internal/boolnorm"
)

// Session is one translated query.
type Session struct {
	ID         string
	Seq        int64
	Schema     string
	SQL        string
	Normalized string
	Text       string
	// Error is the failure message; empty for a finished translation.
	Error string
}

// Failed reports whether the translation ended in an error.
func (s Session) Failed() bool { return s.Error != "" }

// Firing is one stored rule invocation.
type Firing struct {
	Session    string
	Seq        int64
	Phase      string
	Round      int
	Rule       string
	Precedence int
	Tuples     int
	Changed    bool
	Error      string
}

// ClusterRun summarizes one stored clustering batch.
type ClusterRun struct {
	ID       string
	Seq      int64
	Total    int
	Failures int
}

// WriteSession inserts or replaces a session. A zero Seq is stamped from
// the store clock; the stamped session is returned.
func (s *Store) WriteSession(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		return sess, errors.New("write session: empty id")
	}
	if sess.Seq == 0 {
		sess.Seq = s.NextSeq()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, seq, schema_name, sql, normalized, text, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			schema_name = excluded.schema_name,
			sql = excluded.sql,
			normalized = excluded.normalized,
			text = excluded.text,
			error = excluded.error
	`,
		sess.ID,
		sess.Seq,
		sess.Schema,
		sess.SQL,
		sess.Normalized,
		sess.Text,
		sess.Error,
	)
	if err != nil {
		return sess, fmt.Errorf("write session: %w", err)
	}
	return sess, nil
}

// WriteFiring inserts one firing. Duplicate (session, seq) pairs are
// silently ignored. The session must already exist.
func (s *Store) WriteFiring(ctx context.Context, f Firing) error {
	if err := insertFiring(ctx, s.db, f); err != nil {
		return fmt.Errorf("write firing: %w", err)
	}
	return nil
}

// WriteFirings inserts firings in one transaction.
func (s *Store) WriteFirings(ctx context.Context, fs []Firing) error {
	if len(fs) == 0 {
		return nil
	}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, f := range fs {
			if err := insertFiring(ctx, tx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write firings: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertFiring(ctx context.Context, db execer, f Firing) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO firings
		(session_id, seq, phase, round, rule, precedence, tuples, changed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		f.Session,
		f.Seq,
		f.Phase,
		f.Round,
		f.Rule,
		f.Precedence,
		f.Tuples,
		f.Changed,
		f.Error,
	)
	if err != nil {
		return fmt.Errorf("firing %s/%d: %w", f.Session, f.Seq, err)
	}
	return nil
}

// WriteClusterReport stores a clustering report under runID with its groups
// in rank order. Failures are counted, not stored.
func (s *Store) WriteClusterReport(ctx context.Context, runID string, r *boolnorm.Report) (ClusterRun, error) {
	run := ClusterRun{ID: runID, Total: r.Total, Failures: len(r.Failures)}
	if runID == "" {
		return run, errors.New("write cluster report: empty run id")
	}
	run.Seq = s.NextSeq()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cluster_runs (id, seq, total, failures) VALUES (?, ?, ?, ?)
		`, run.ID, run.Seq, run.Total, run.Failures); err != nil {
			return err
		}
		for rank, g := range r.Groups {
			members, err := marshalMembers(g.Members)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cluster_groups (run_id, rank, canonical, count, members)
				VALUES (?, ?, ?, ?, ?)
			`, run.ID, rank, g.Canonical, g.Count, members); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return run, fmt.Errorf("write cluster report: %w", err)
	}
	return run, nil
}

func marshalMembers(members []int) (string, error) {
	if members == nil {
		members = []int{}
	}
	data, err := json.Marshal(members)
	if err != nil {
		return "", fmt.Errorf("marshal members: %w", err)
	}
	return string(data), nil
}

func unmarshalMembers(data string) ([]int, error) {
	var members []int
	if err := json.Unmarshal([]byte(data), &members); err != nil {
		return nil, fmt.Errorf("unmarshal members: %w", err)
	}
	return members, nil
}
