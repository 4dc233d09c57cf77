package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sqltutor/internal/store"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/translate"
)

// DefaultMaxRounds bounds every scheduler phase of a CLI translation.
const DefaultMaxRounds = 1000

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Schema    string
	SQL       []string
	File      string
	Database  string
	MaxRounds int
	Literal   bool // skip WHERE canonicalization
}

// TranslationOutput is the outcome of one query.
type TranslationOutput struct {
	Index      int    `json:"index"`
	SQL        string `json:"sql"`
	Session    string `json:"session,omitempty"`
	Normalized string `json:"normalized,omitempty"`
	Text       string `json:"text,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TranslateResult holds the outcome of a translate run.
type TranslateResult struct {
	Translations []TranslationOutput `json:"translations"`
	Translated   int                 `json:"translated"`
	Failed       int                 `json:"failed"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate SQL queries into English",
		Long: `Translate SELECT queries into English sentences using an ER schema
and its table mapping.

Queries come from --sql (repeatable) and --file. A file holds one query
per line, or semicolon-separated queries when it contains a semicolon.
Use --file - to read standard input.

With --db every translation is stored together with the rule firings
that produced it; inspect them with "sqltutor history".

Exit codes:
  0 - All queries translated
  1 - One or more queries failed, or the schema is invalid
  2 - Command error (missing files, bad flags)

Examples:
  sqltutor translate --schema company.yaml --sql "SELECT e.name FROM employee e"
  sqltutor translate --schema company.cue --file queries.sql --db tutor.db
  sqltutor translate --schema company.yaml --file - --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "ER schema file (.yaml, .cue) or CUE package directory (required)")
	_ = cmd.MarkFlagRequired("schema")
	cmd.Flags().StringArrayVar(&opts.SQL, "sql", nil, "query to translate (repeatable)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "file of queries, or - for stdin")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to record sessions in")
	cmd.Flags().IntVar(&opts.MaxRounds, "max-rounds", DefaultMaxRounds, "round limit per scheduler phase")
	cmd.Flags().BoolVar(&opts.Literal, "literal", false, "translate WHERE clauses as written, without canonicalization")

	return cmd
}

func runTranslate(opts *TranslateOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.MaxRounds <= 0 {
		return NewExitError(ExitCommandError, "--max-rounds must be positive")
	}
	queries, err := collectQueries(opts.SQL, opts.File, cmd.InOrStdin())
	if err != nil {
		return err
	}
	schema, mapping, err := loadSchema(opts.Schema)
	if err != nil {
		return err
	}
	f.VerboseLog("Loaded schema %s: %d entities, %d relationships", opts.Schema, len(schema.Entities()), len(schema.Relationships()))

	logger := opts.Logger()
	var observers symbolic.MultiObserver
	var st *store.Store
	var rec *store.Recorder
	if opts.Database != "" {
		st, err = openStore(opts.Database, true)
		if err != nil {
			return err
		}
		defer st.Close()
		rec = store.NewRecorder(st)
		observers = append(observers, rec)
	}
	if opts.Verbose {
		observers = append(observers, symbolic.NewSlogObserver(logger))
	}

	schedOpts := []symbolic.SchedulerOption{symbolic.WithMaxRounds(opts.MaxRounds)}
	if len(observers) > 0 {
		schedOpts = append(schedOpts, symbolic.WithObserver(observers))
	}
	tr, err := translate.New(schema, mapping,
		translate.WithNormalize(!opts.Literal),
		translate.WithSchedulerOptions(schedOpts...),
		translate.WithLogger(logger),
	)
	if err != nil {
		return WrapExitError(ExitFailure, "invalid schema mapping", err)
	}

	batch, err := tr.TranslateAll(ctx, queries)
	if err != nil {
		return WrapExitError(ExitCommandError, "translation interrupted", err)
	}
	result := collate(queries, batch)

	if st != nil {
		if err := recordSessions(ctx, st, rec, opts.Schema, result.Translations); err != nil {
			return WrapExitError(ExitCommandError, "failed to record sessions", err)
		}
		f.VerboseLog("Recorded %d session(s) in %s", countSessions(result.Translations), opts.Database)
	}

	if f.JSON() {
		if result.Failed > 0 {
			if err := f.Partial(result, ErrCodeTranslate, failedMessage(result)); err != nil {
				return err
			}
			return NewExitError(ExitFailure, failedMessage(result))
		}
		return f.Success(result)
	}
	return outputTranslateText(f, result)
}

// collate restores input order from a batch: results come back in order
// and failures carry their index.
func collate(queries []string, b *translate.Batch) TranslateResult {
	failed := make(map[int]*translate.ItemError, len(b.Failures))
	for _, fe := range b.Failures {
		failed[fe.Index] = fe
	}

	out := TranslateResult{Translations: make([]TranslationOutput, 0, len(queries))}
	next := 0
	for i, q := range queries {
		t := TranslationOutput{Index: i, SQL: q}
		if fe, ok := failed[i]; ok {
			t.Session = translate.SessionOf(fe.Err)
			t.Kind = translate.Classify(fe.Err)
			t.Error = fe.Err.Error()
			out.Failed++
		} else if next < len(b.Results) {
			r := b.Results[next]
			next++
			t.Session = r.Session
			t.Normalized = r.Normalized
			t.Text = r.Text
			out.Translated++
		}
		out.Translations = append(out.Translations, t)
	}
	return out
}

// recordSessions stores every translation that started a session, then
// flushes its buffered firings.
func recordSessions(ctx context.Context, st *store.Store, rec *store.Recorder, schema string, ts []TranslationOutput) error {
	for _, t := range ts {
		if t.Session == "" {
			continue
		}
		sess := store.Session{
			ID:         t.Session,
			Schema:     schema,
			SQL:        t.SQL,
			Normalized: t.Normalized,
			Text:       t.Text,
			Error:      t.Error,
		}
		if _, err := st.WriteSession(ctx, sess); err != nil {
			return err
		}
		if err := rec.Flush(ctx, t.Session); err != nil {
			return err
		}
	}
	return nil
}

func countSessions(ts []TranslationOutput) int {
	n := 0
	for _, t := range ts {
		if t.Session != "" {
			n++
		}
	}
	return n
}

func failedMessage(r TranslateResult) string {
	return fmt.Sprintf("%d of %d queries failed", r.Failed, len(r.Translations))
}

func outputTranslateText(f *OutputFormatter, r TranslateResult) error {
	w := f.Writer
	single := len(r.Translations) == 1

	for _, t := range r.Translations {
		switch {
		case t.Error != "" && single:
			fmt.Fprintf(w, "%s %s: %s\n", mark(false), t.Kind, t.Error)
		case t.Error != "":
			fmt.Fprintf(w, "[%d] %s %s: %s\n", t.Index+1, mark(false), t.Kind, t.Error)
		case single:
			fmt.Fprintln(w, t.Text)
		default:
			fmt.Fprintf(w, "[%d] %s\n", t.Index+1, t.Text)
		}
		if t.Session != "" {
			f.VerboseLog("  session: %s", t.Session)
		}
		if t.Normalized != "" && t.Normalized != t.SQL {
			f.VerboseLog("  normalized: %s", t.Normalized)
		}
	}

	if !single {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Translated %d of %d queries\n", r.Translated, len(r.Translations))
	}
	if r.Failed > 0 {
		return NewExitError(ExitFailure, failedMessage(r))
	}
	return nil
}
