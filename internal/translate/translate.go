// Package translate turns SQL SELECT statements into English sentences.
//
// A translation parses the query, optionally canonicalizes its WHERE
// clauses, seeds a token tree with the wrapped statement and drives the
// rule scheduler through analysis, lowering and cleanup before rendering
// the remaining words.
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/xwb1989/sqlparser"

	"github.com/roach88/sqltutor/internal/boolnorm"
	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/render"
	"github.com/roach88/sqltutor/internal/rules"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

// IDGenerator issues session identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator issues time-sortable UUIDv7 session ids. It is safe for
// concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Input is a parsed query ready for translation. Conjuncts, when set, are
// the top-level WHERE conjuncts with their scopes; nil means they are
// split from Select.
type Input struct {
	SQL       string
	Select    *sqlparser.Select
	Conjuncts []token.Conjunct
}

// Result is one finished translation.
type Result struct {
	Session    string
	SQL        string
	Normalized string
	Text       string
	Tree       *token.Tree
}

// Translator holds what translations of one schema share. It is safe for
// concurrent use when its observer is.
type Translator struct {
	schema     *er.Schema
	mapping    *er.Mapping
	normalizer *boolnorm.Normalizer
	registry   *symbolic.Registry
	schedOpts  []symbolic.SchedulerOption
	ids        IDGenerator
	logger     *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithNormalize turns WHERE canonicalization on or off. It is on by
// default.
func WithNormalize(on bool) Option {
	return func(t *Translator) {
		if !on {
			t.normalizer = nil
		} else if t.normalizer == nil {
			t.normalizer = boolnorm.New()
		}
	}
}

// WithNormalizer canonicalizes WHERE clauses with n.
func WithNormalizer(n *boolnorm.Normalizer) Option {
	return func(t *Translator) {
		t.normalizer = n
	}
}

// WithRegistry replaces the rule library.
func WithRegistry(r *symbolic.Registry) Option {
	return func(t *Translator) {
		t.registry = r
	}
}

// WithSchedulerOptions passes options to the scheduler of every session.
func WithSchedulerOptions(opts ...symbolic.SchedulerOption) Option {
	return func(t *Translator) {
		t.schedOpts = append(t.schedOpts, opts...)
	}
}

// WithSessionIDs sets the session id generator.
func WithSessionIDs(g IDGenerator) Option {
	return func(t *Translator) {
		t.ids = g
	}
}

// WithLogger sets the logger used for session summaries.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		t.logger = l
	}
}

// New returns a Translator for a validated schema mapping.
func New(s *er.Schema, m *er.Mapping, opts ...Option) (*Translator, error) {
	if s == nil || m == nil {
		return nil, errors.New("translator needs a schema and a mapping")
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mapping: %w", err)
	}
	t := &Translator{
		schema:     s,
		mapping:    m,
		normalizer: boolnorm.New(),
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.registry == nil {
		reg, err := rules.Default()
		if err != nil {
			return nil, fmt.Errorf("build rule library: %w", err)
		}
		t.registry = reg
	}
	return t, nil
}

// NewInput parses sql into an Input, canonicalizing its WHERE clauses
// when normalization is on. Only plain SELECT statements are accepted.
func (t *Translator) NewInput(sql string) (Input, error) {
	stmt, err := boolnorm.Parse(sql)
	if err != nil {
		return Input{}, err
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return Input{}, &token.UnhandledTypeError{Type: token.ASTKind(stmt), Token: token.None, Detail: "only SELECT statements are translated"}
	}
	if t.normalizer != nil {
		if err := t.normalizer.NormalizeStatement(sel); err != nil {
			return Input{}, fmt.Errorf("normalize: %w", err)
		}
	}
	in := Input{SQL: sql, Select: sel}
	if sel.Where != nil {
		in.Conjuncts = token.SplitConjuncts(sel.Where.Expr)
	}
	return in, nil
}

// Translate parses, normalizes and translates one query.
func (t *Translator) Translate(ctx context.Context, sql string) (*Result, error) {
	in, err := t.NewInput(sql)
	if err != nil {
		return nil, err
	}
	return t.TranslateSelect(ctx, in)
}

// TranslateSelect translates an already parsed query. The select is not
// modified.
func (t *Translator) TranslateSelect(ctx context.Context, in Input, opts ...symbolic.SchedulerOption) (*Result, error) {
	if in.Select == nil {
		return nil, errors.New("translate: nil select")
	}
	tree := token.New()
	top := tree.Add(token.Wrapped{Node: in.Select, Scope: token.NoScope})
	if err := tree.AppendChild(tree.Root(), top); err != nil {
		return nil, err
	}

	st := symbolic.NewState(t.ids.Generate(), tree, t.schema, t.mapping)
	st.Conjuncts = in.Conjuncts
	sched := symbolic.NewScheduler(t.registry, append(append([]symbolic.SchedulerOption{}, t.schedOpts...), opts...)...)
	if err := sched.Run(ctx, st); err != nil {
		t.logger.Debug("translation failed", "session", st.ID, "error", err)
		return nil, &SessionError{Session: st.ID, Err: err}
	}

	text, err := render.Render(tree)
	if err != nil {
		return nil, &SessionError{Session: st.ID, Err: err}
	}
	t.logger.Debug("translation finished", "session", st.ID, "text", text)
	return &Result{
		Session:    st.ID,
		SQL:        in.SQL,
		Normalized: sqlparser.String(in.Select),
		Text:       text,
		Tree:       tree,
	}, nil
}

// SessionError is a translation that failed after its session started.
type SessionError struct {
	Session string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Session, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// SessionOf returns the session a translation error belongs to, or "" when
// it failed before a session started.
func SessionOf(err error) string {
	var se *SessionError
	if errors.As(err, &se) {
		return se.Session
	}
	return ""
}

// ItemError is the failure of one query of a batch.
type ItemError struct {
	Index int
	Input string
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("query %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Batch holds the outcome of TranslateAll. Results and Failures keep input
// order; a query appears in exactly one of them.
type Batch struct {
	Results  []*Result
	Failures []*ItemError
}

// TranslateAll translates queries one by one, collecting failures. It
// stops early only when ctx is done.
func (t *Translator) TranslateAll(ctx context.Context, queries []string) (*Batch, error) {
	b := &Batch{}
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return b, err
		}
		r, err := t.Translate(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return b, ctx.Err()
			}
			b.Failures = append(b.Failures, &ItemError{Index: i, Input: q, Err: err})
			continue
		}
		b.Results = append(b.Results, r)
	}
	return b, nil
}
