package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/sqltutor/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Session  string
	Cluster  string
	Limit    int
	Firings  bool
}

// SessionRecord is a stored translation.
type SessionRecord struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	Schema     string `json:"schema"`
	SQL        string `json:"sql"`
	Normalized string `json:"normalized,omitempty"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FiringRecord is one stored rule firing.
type FiringRecord struct {
	Seq        int64  `json:"seq"`
	Phase      string `json:"phase"`
	Round      int    `json:"round"`
	Rule       string `json:"rule"`
	Precedence int    `json:"precedence"`
	Tuples     int    `json:"tuples"`
	Changed    bool   `json:"changed"`
	Error      string `json:"error,omitempty"`
}

// PhaseRecord summarizes one phase of a session.
type PhaseRecord struct {
	Phase   string `json:"phase"`
	Rounds  int    `json:"rounds"`
	Firings int    `json:"firings"`
	Changed int    `json:"changed"`
}

// TranscriptResult is the stored history of one session.
type TranscriptResult struct {
	Session    SessionRecord  `json:"session"`
	Phases     []PhaseRecord  `json:"phases"`
	FailedRule string         `json:"failed_rule,omitempty"`
	Firings    []FiringRecord `json:"firings,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded translations",
		Long: `Show translations recorded with "translate --db".

Without --session the latest sessions are listed. With --session the
transcript of one translation is shown: a summary of every scheduler
phase and, with --firings, each rule firing in order. With --cluster a
stored cluster report is shown instead.

Examples:
  sqltutor history --db tutor.db
  sqltutor history --db tutor.db --limit 5
  sqltutor history --db tutor.db --session 0190c5a4-... --firings
  sqltutor history --db tutor.db --cluster 0190c5b2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "show the transcript of one session")
	cmd.Flags().StringVar(&opts.Cluster, "cluster", "", "show a stored cluster report")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of sessions to list (0 for all)")
	cmd.Flags().BoolVar(&opts.Firings, "firings", false, "list every rule firing of the session")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Session != "" && opts.Cluster != "" {
		return NewExitError(ExitCommandError, "--session and --cluster are mutually exclusive")
	}

	st, err := openStore(opts.Database, false)
	if err != nil {
		return err
	}
	defer st.Close()

	f := opts.formatter(cmd)
	switch {
	case opts.Session != "":
		return showTranscript(ctx, f, st, opts.Session, opts.Firings)
	case opts.Cluster != "":
		return showClusterRun(ctx, f, st, opts.Cluster)
	default:
		return listSessions(ctx, f, st, opts.Limit)
	}
}

func listSessions(ctx context.Context, f *OutputFormatter, st *store.Store, limit int) error {
	sessions, err := st.ListSessions(ctx, limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	records := make([]SessionRecord, len(sessions))
	for i, s := range sessions {
		records[i] = sessionRecord(s)
	}
	if f.JSON() {
		return f.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(f.Writer, "No sessions recorded.")
		return nil
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		outcome := r.Text
		if r.Error != "" {
			outcome = r.Error
		}
		rows[i] = []string{strconv.FormatInt(r.Seq, 10), r.ID, mark(r.Error == ""), truncate(r.SQL, 50), truncate(outcome, 60)}
	}
	return f.Table([]string{"Seq", "Session", "OK", "Query", "Outcome"}, rows)
}

func showTranscript(ctx context.Context, f *OutputFormatter, st *store.Store, id string, withFirings bool) error {
	tr, err := st.ReadTranscript(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		if outErr := f.Error(ErrCodeStore, "no session "+id, nil); outErr != nil {
			return outErr
		}
		return NewExitError(ExitFailure, "session not found: "+id)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transcript", err)
	}

	result := TranscriptResult{
		Session:    sessionRecord(tr.Session),
		Phases:     make([]PhaseRecord, len(tr.Phases)),
		FailedRule: tr.FailedRule,
	}
	for i, p := range tr.Phases {
		result.Phases[i] = PhaseRecord{Phase: p.Phase, Rounds: p.Rounds, Firings: p.Firings, Changed: p.Changed}
	}
	if withFirings {
		result.Firings = make([]FiringRecord, len(tr.Firings))
		for i, fr := range tr.Firings {
			result.Firings[i] = FiringRecord{
				Seq: fr.Seq, Phase: fr.Phase, Round: fr.Round, Rule: fr.Rule,
				Precedence: fr.Precedence, Tuples: fr.Tuples, Changed: fr.Changed, Error: fr.Error,
			}
		}
	}

	if f.JSON() {
		return f.Success(result)
	}
	return outputTranscriptText(f, result)
}

func outputTranscriptText(f *OutputFormatter, r TranscriptResult) error {
	w := f.Writer
	s := r.Session

	fmt.Fprintf(w, "Session: %s (seq %d)\n", s.ID, s.Seq)
	fmt.Fprintf(w, "Schema:  %s\n", s.Schema)
	fmt.Fprintf(w, "Query:   %s\n", s.SQL)
	if s.Normalized != "" && s.Normalized != s.SQL {
		fmt.Fprintf(w, "Normalized: %s\n", s.Normalized)
	}
	if s.Error != "" {
		fmt.Fprintf(w, "%s %s\n", mark(false), s.Error)
		if r.FailedRule != "" {
			fmt.Fprintf(w, "Failed in rule: %s\n", r.FailedRule)
		}
	} else {
		fmt.Fprintf(w, "%s %s\n", mark(true), s.Text)
	}

	if len(r.Phases) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, len(r.Phases))
		for i, p := range r.Phases {
			rows[i] = []string{p.Phase, strconv.Itoa(p.Rounds), strconv.Itoa(p.Firings), strconv.Itoa(p.Changed)}
		}
		if err := f.Table([]string{"Phase", "Rounds", "Firings", "Changed"}, rows); err != nil {
			return err
		}
	}

	if len(r.Firings) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, len(r.Firings))
		for i, fr := range r.Firings {
			changed := ""
			if fr.Changed {
				changed = "yes"
			}
			rows[i] = []string{
				strconv.FormatInt(fr.Seq, 10), fr.Phase, strconv.Itoa(fr.Round), fr.Rule,
				strconv.Itoa(fr.Tuples), changed, truncate(fr.Error, 60),
			}
		}
		if err := f.Table([]string{"Seq", "Phase", "Round", "Rule", "Tuples", "Changed", "Error"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func showClusterRun(ctx context.Context, f *OutputFormatter, st *store.Store, id string) error {
	run, err := st.ReadClusterRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		if outErr := f.Error(ErrCodeStore, "no cluster run "+id, nil); outErr != nil {
			return outErr
		}
		return NewExitError(ExitFailure, "cluster run not found: "+id)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cluster run", err)
	}
	groups, err := st.ReadClusterGroups(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cluster groups", err)
	}

	result := ClusterResult{RunID: run.ID, Total: run.Total, Groups: make([]ClusterGroup, len(groups))}
	for i, g := range groups {
		result.Groups[i] = clusterGroup(i+1, g)
	}
	if f.JSON() {
		return f.Success(result)
	}
	if err := outputClusterText(f, result, len(groups)); err != nil {
		return err
	}
	if run.Failures > 0 {
		fmt.Fprintf(f.Writer, "%d queries failed to normalize (not stored)\n", run.Failures)
	}
	return nil
}

func sessionRecord(s store.Session) SessionRecord {
	return SessionRecord{
		ID:         s.ID,
		Seq:        s.Seq,
		Schema:     s.Schema,
		SQL:        s.SQL,
		Normalized: s.Normalized,
		Text:       s.Text,
		Error:      s.Error,
	}
}
