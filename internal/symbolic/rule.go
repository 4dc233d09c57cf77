package symbolic

import (
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/sqltutor/internal/logic"
)

// Phase is one stage of a translation. Phases run in declaration order.
type Phase int

const (
	PhaseAnalysis Phase = iota
	PhaseLowering
	PhaseCleanup
)

// AllPhases lists the phases in execution order.
var AllPhases = []Phase{PhaseAnalysis, PhaseLowering, PhaseCleanup}

func (p Phase) String() string {
	switch p {
	case PhaseAnalysis:
		return "analysis"
	case PhaseLowering:
		return "lowering"
	case PhaseCleanup:
		return "cleanup"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase is the inverse of Phase.String.
func ParsePhase(s string) (Phase, error) {
	for _, p := range AllPhases {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// Precedence bands, earliest first.
const (
	BandRewrite     = 100 // expand SQL fragments into tokens
	BandEnhance     = 200 // resolve and annotate tokens
	BandLower       = 300 // turn tokens into words
	BandDestructive = 400 // delete or collapse tokens
	BandCleanup     = 500
)

// ApplyFunc handles every tuple of a rule's query for one round. Tuples
// may go stale as earlier tuples mutate the tree; handlers re-check
// liveness and skip stale tuples. It reports whether anything changed.
type ApplyFunc func(st *State, tuples []logic.Binding) (bool, error)

// Rule is one rewrite step.
type Rule struct {
	Name       string
	Phases     []Phase
	Precedence int
	Query      logic.Query
	// Clauses are Horn rules the query may use. Clauses of every rule in a
	// phase are evaluated together, so derived predicate names must agree.
	Clauses []logic.Clause
	// Declares lists predicates this rule adds facts for via
	// State.Contribute.
	Declares []logic.Predicate
	Apply    ApplyFunc
}

// In reports whether the rule runs in phase p.
func (r *Rule) In(p Phase) bool {
	return slices.Contains(r.Phases, p)
}

func (r *Rule) validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("register rule: nil rule")
	case r.Name == "":
		return fmt.Errorf("register rule: missing name")
	case len(r.Phases) == 0:
		return fmt.Errorf("register rule %s: no phases", r.Name)
	case len(r.Query) == 0:
		return fmt.Errorf("register rule %s: empty query", r.Name)
	case r.Apply == nil:
		return fmt.Errorf("register rule %s: nil Apply", r.Name)
	}
	return nil
}

// Registry is an explicit, ordered rule set built for a session.
//
// INVARIANTS:
//   - rule names are unique
//   - registration order never changes; it breaks precedence ties
type Registry struct {
	rules []*Rule
	names map[string]bool
}

// NewRegistry returns a registry holding rules.
func NewRegistry(rules ...*Rule) (*Registry, error) {
	r := &Registry{names: make(map[string]bool)}
	if err := r.Register(rules...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register appends rules. It fails without registering anything when a
// rule is invalid or its name is taken.
func (r *Registry) Register(rules ...*Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if err := rule.validate(); err != nil {
			return err
		}
		if r.names[rule.Name] || seen[rule.Name] {
			return fmt.Errorf("register rule %s: duplicate name", rule.Name)
		}
		seen[rule.Name] = true
	}
	for _, rule := range rules {
		r.names[rule.Name] = true
		r.rules = append(r.rules, rule)
	}
	return nil
}

// Rules returns every rule in registration order.
func (r *Registry) Rules() []*Rule {
	return slices.Clone(r.rules)
}

// Len returns the number of registered rules.
func (r *Registry) Len() int { return len(r.rules) }

// ForPhase returns the rules of phase p by ascending precedence, ties in
// registration order.
func (r *Registry) ForPhase(p Phase) []*Rule {
	var out []*Rule
	for _, rule := range r.rules {
		if rule.In(p) {
			out = append(out, rule)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Precedence < out[j].Precedence
	})
	return out
}

// Clauses returns the Horn clauses of every rule in phase p.
func (r *Registry) Clauses(p Phase) []logic.Clause {
	var out []logic.Clause
	for _, rule := range r.ForPhase(p) {
		out = append(out, rule.Clauses...)
	}
	return out
}

// Declared returns the contributed predicates of every rule.
func (r *Registry) Declared() []logic.Predicate {
	var out []logic.Predicate
	for _, rule := range r.rules {
		out = append(out, rule.Declares...)
	}
	return out
}
