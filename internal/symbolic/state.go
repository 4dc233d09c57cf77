package symbolic

import (
	"maps"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/token"
)

// State is everything one translation session owns. It is not safe for
// concurrent use.
type State struct {
	ID        string
	Tree      *token.Tree
	Schema    *er.Schema
	Mapping   *er.Mapping
	Conjuncts []token.Conjunct

	labels      map[token.ID]facts.Label
	contributed []facts.Fact
	seen        map[string]bool
	selects     map[token.ID]*sqlparser.Select
	projector   *facts.Projector

	// version counts state mutations that change projected facts.
	version uint64
	running bool
}

// NewState returns a session state for tree.
func NewState(id string, tree *token.Tree, s *er.Schema, m *er.Mapping) *State {
	return &State{
		ID:      id,
		Tree:    tree,
		Schema:  s,
		Mapping: m,
		labels:  make(map[token.ID]facts.Label),
		seen:    make(map[string]bool),
		selects: make(map[token.ID]*sqlparser.Select),
	}
}

// Version changes whenever labels or contributed facts change.
func (s *State) Version() uint64 { return s.version }

// SetLabel records the display name of a table-entity token and reports
// whether it changed.
func (s *State) SetLabel(id token.ID, l facts.Label) bool {
	if cur, ok := s.labels[id]; ok && cur == l {
		return false
	}
	s.labels[id] = l
	s.version++
	return true
}

// Label returns the label of id.
func (s *State) Label(id token.ID) (facts.Label, bool) {
	l, ok := s.labels[id]
	return l, ok
}

// Labels returns a copy of every label.
func (s *State) Labels() map[token.ID]facts.Label {
	return maps.Clone(s.labels)
}

// Contribute adds a fact for the next projection. The predicate must be
// listed in some registered rule's Declares. Duplicates are ignored and
// reported as no change.
func (s *State) Contribute(pred string, args ...logic.Value) bool {
	parts := make([]string, len(args)+1)
	parts[0] = pred
	for i, a := range args {
		parts[i+1] = a.String()
	}
	key := strings.Join(parts, "\x00")
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	s.contributed = append(s.contributed, facts.Fact{Pred: pred, Args: args})
	s.version++
	return true
}

// BindSelect associates a select token with the parsed statement it came
// from.
func (s *State) BindSelect(id token.ID, sel *sqlparser.Select) {
	s.selects[id] = sel
}

// Select returns the statement bound to a select token.
func (s *State) Select(id token.ID) *sqlparser.Select {
	return s.selects[id]
}

// Project builds the fact set for the current tree.
func (s *State) Project(declared []logic.Predicate) (*logic.FactSet, error) {
	if s.projector == nil {
		s.projector = facts.NewProjector(s.Schema, s.Mapping)
	}
	return s.projector.Project(facts.Input{
		Tree:     s.Tree,
		Labels:   s.labels,
		Declared: declared,
		Extra:    s.contributed,
	})
}

type stamp struct {
	tree  uint64
	state uint64
}

func (s *State) stamp() stamp {
	return stamp{tree: s.Tree.Version(), state: s.version}
}
