package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqltutor/internal/boolnorm"
	"github.com/roach88/sqltutor/internal/symbolic"
)

func createTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	_, path := createTestStore(t)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s, _ := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	for _, table := range []string{"sessions", "firings", "cluster_runs", "cluster_groups"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q", table)
	}
}

func TestOpen_ResumesClock(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.WriteSession(ctx, Session{ID: "a", SQL: "SELECT 1"})
	require.NoError(t, err)
	_, err = s.WriteSession(ctx, Session{ID: "b", SQL: "SELECT 2"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, int64(2), s.clock.Current())
	assert.Equal(t, int64(3), s.NextSeq())
}

func TestSession_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	written, err := s.WriteSession(ctx, Session{
		ID:         "session-1",
		Schema:     "company",
		SQL:        "SELECT d.dname FROM department d",
		Normalized: "select d.dname from department as d",
		Text:       "Find the name of each department.",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), written.Seq)

	got, err := s.ReadSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, written, got)
	assert.False(t, got.Failed())

	_, err = s.ReadSession(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = s.WriteSession(ctx, Session{})
	assert.Error(t, err)
}

func TestSession_RewriteKeepsSeq(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	first, err := s.WriteSession(ctx, Session{ID: "x", SQL: "SELECT 1"})
	require.NoError(t, err)
	first.Error = "boom"
	_, err = s.WriteSession(ctx, first)
	require.NoError(t, err)

	got, err := s.ReadSession(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, first.Seq, got.Seq)
	assert.True(t, got.Failed())
}

func TestListSessions_LatestInOrder(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	empty, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := s.WriteSession(ctx, Session{ID: id, SQL: "SELECT " + id})
		require.NoError(t, err)
	}

	all, err := s.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, sessionIDs(all))

	latest, err := s.ListSessions(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, sessionIDs(latest))
}

func TestFirings_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)
	_, err := s.WriteSession(ctx, Session{ID: "s", SQL: "SELECT 1"})
	require.NoError(t, err)

	f := Firing{Session: "s", Seq: 10, Phase: "lowering", Round: 1, Rule: "lower-from", Precedence: 340, Tuples: 1, Changed: true}
	require.NoError(t, s.WriteFiring(ctx, f))
	// Duplicates are ignored.
	require.NoError(t, s.WriteFiring(ctx, f))
	require.NoError(t, s.WriteFirings(ctx, []Firing{
		{Session: "s", Seq: 5, Phase: "analysis", Round: 1, Rule: "expand-select", Precedence: 100, Tuples: 1, Changed: true},
	}))

	got, err := s.ReadFirings(ctx, "s")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "expand-select", got[0].Rule)
	assert.Equal(t, f, got[1])

	none, err := s.ReadFirings(ctx, "other")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFirings_RequireSession(t *testing.T) {
	s, _ := createTestStore(t)

	err := s.WriteFiring(context.Background(), Firing{Session: "ghost", Seq: 1, Phase: "analysis", Rule: "r"})
	assert.Error(t, err)
}

func TestClusterReport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)

	report := boolnorm.Cluster([]string{
		"SELECT * FROM t WHERE NOT (a = 1)",
		"SELECT * FROM t WHERE b > 2",
		"SELECT * FROM t WHERE a != 1",
		"garbage (",
	})
	run, err := s.WriteClusterReport(ctx, "run-1", report)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Total)
	assert.Equal(t, 1, run.Failures)

	stored, err := s.ReadClusterRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, stored)

	groups, err := s.ReadClusterGroups(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, report.Groups, groups)

	_, err = s.WriteClusterReport(ctx, "run-1", report)
	assert.Error(t, err, "run ids are unique")
}

func TestRecorder_FlushesPerSession(t *testing.T) {
	ctx := context.Background()
	s, _ := createTestStore(t)
	rec := NewRecorder(s)

	rec.RuleApplied(symbolic.FiringEvent{Session: "a", Phase: symbolic.PhaseAnalysis, Round: 1, Rule: "expand-select", Tuples: 1, Changed: true})
	rec.RuleApplied(symbolic.FiringEvent{Session: "b", Phase: symbolic.PhaseAnalysis, Round: 1, Rule: "expand-select", Tuples: 1, Changed: true})
	rec.RuleApplied(symbolic.FiringEvent{Session: "a", Phase: symbolic.PhaseCleanup, Round: 2, Rule: "reject-unhandled", Tuples: 1, Err: assert.AnError})
	assert.Equal(t, 3, rec.Pending())

	// Without a session row the write fails and the firings stay buffered.
	require.Error(t, rec.Flush(ctx, "a"))
	assert.Equal(t, 3, rec.Pending())

	_, err := s.WriteSession(ctx, Session{ID: "a", SQL: "SELECT 1", Error: "unhandled"})
	require.NoError(t, err)
	require.NoError(t, rec.Flush(ctx, "a"))
	assert.Equal(t, 1, rec.Pending())

	tr, err := s.ReadTranscript(ctx, "a")
	require.NoError(t, err)
	require.Len(t, tr.Firings, 2)
	assert.Less(t, tr.Firings[0].Seq, tr.Firings[1].Seq)
	assert.Equal(t, "reject-unhandled", tr.FailedRule)
	assert.Equal(t, []PhaseSummary{
		{Phase: "analysis", Rounds: 1, Firings: 1, Changed: 1},
		{Phase: "cleanup", Rounds: 2, Firings: 1},
	}, tr.Phases)

	rec.Discard("b")
	assert.Zero(t, rec.Pending())
}

func sessionIDs(ss []Session) []string {
	ids := make([]string, len(ss))
	for i, s := range ss {
		ids[i] = s.ID
	}
	return ids
}
