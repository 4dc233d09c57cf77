package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/store"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/testutil"
	"github.com/roach88/sqltutor/internal/translate"
)

// CaseResult is the outcome of one case.
type CaseResult struct {
	Name       string
	SQL        string
	Session    string
	Normalized string
	Text       string
	// ErrorKind is translate.Classify of the failure; empty on success.
	ErrorKind string
	Err       error
	// Firings is the stored scheduler trace of the case's session.
	Firings []store.Firing
	Errors  []string
}

// Pass reports whether every expectation of the case held.
func (c *CaseResult) Pass() bool { return len(c.Errors) == 0 }

func (c *CaseResult) fail(format string, args ...any) {
	c.Errors = append(c.Errors, fmt.Sprintf(format, args...))
}

// Result is the outcome of a scenario.
type Result struct {
	Scenario string
	Cases    []*CaseResult
}

// Pass reports whether every case passed.
func (r *Result) Pass() bool {
	for _, c := range r.Cases {
		if !c.Pass() {
			return false
		}
	}
	return true
}

// Errors lists every failure, prefixed with its case name.
func (r *Result) Errors() []string {
	var out []string
	for _, c := range r.Cases {
		for _, e := range c.Errors {
			out = append(out, c.Name+": "+e)
		}
	}
	return out
}

// Run executes a scenario against a fresh in-memory store.
//
// Execution flow:
// 1. Load the schema document
// 2. Open an in-memory store and attach a firing recorder
// 3. Translate every case, storing its session and firings
// 4. Check expectations and assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	schema, mapping, err := er.LoadFile(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	rec := store.NewRecorder(st)
	rounds := scenario.MaxRounds
	if rounds == 0 {
		rounds = DefaultMaxRounds
	}
	normalize := scenario.Normalize == nil || *scenario.Normalize

	tr, err := translate.New(schema, mapping,
		translate.WithNormalize(normalize),
		translate.WithSessionIDs(testutil.NewSequentialIDs(scenario.Name)),
		translate.WithSchedulerOptions(symbolic.WithMaxRounds(rounds), symbolic.WithObserver(rec)),
		translate.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return nil, err
	}

	result := &Result{Scenario: scenario.Name}
	for _, c := range scenario.Cases {
		cr, err := runCase(ctx, tr, st, rec, scenario.Schema, c)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
		checkExpect(cr, c.Expect)
		for _, a := range c.Assertions {
			if err := evaluate(ctx, st, cr, a); err != nil {
				cr.fail("%v", err)
			}
		}
		result.Cases = append(result.Cases, cr)
	}
	return result, nil
}

// runCase translates one query and records it. Errors returned are
// harness failures; translation failures land in the CaseResult.
func runCase(ctx context.Context, tr *translate.Translator, st *store.Store, rec *store.Recorder, schema string, c Case) (*CaseResult, error) {
	cr := &CaseResult{Name: c.Name, SQL: c.SQL}
	res, err := tr.Translate(ctx, c.SQL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cr.Err = err
		cr.ErrorKind = translate.Classify(err)
		cr.Session = translate.SessionOf(err)
	} else {
		cr.Session = res.Session
		cr.Normalized = res.Normalized
		cr.Text = res.Text
	}
	if cr.Session == "" {
		return cr, nil
	}

	sess := store.Session{ID: cr.Session, Schema: schema, SQL: c.SQL, Normalized: cr.Normalized, Text: cr.Text}
	if cr.Err != nil {
		sess.Error = cr.Err.Error()
	}
	if _, err := st.WriteSession(ctx, sess); err != nil {
		return nil, err
	}
	if err := rec.Flush(ctx, cr.Session); err != nil {
		return nil, err
	}
	firings, err := st.ReadFirings(ctx, cr.Session)
	if err != nil {
		return nil, err
	}
	cr.Firings = firings
	return cr, nil
}

func checkExpect(cr *CaseResult, e *ExpectClause) {
	switch {
	case e == nil:
		if cr.Err != nil {
			cr.fail("unexpected %s error: %v", cr.ErrorKind, cr.Err)
		}
	case e.Error != "":
		if cr.Err == nil {
			cr.fail("expected %s error, got sentence %q", e.Error, cr.Text)
		} else if cr.ErrorKind != e.Error {
			cr.fail("expected %s error, got %s: %v", e.Error, cr.ErrorKind, cr.Err)
		}
	default:
		if cr.Err != nil {
			cr.fail("expected %q, got %s error: %v", e.Text, cr.ErrorKind, cr.Err)
		} else if cr.Text != e.Text {
			cr.fail("expected %q, got %q", e.Text, cr.Text)
		}
	}
}
