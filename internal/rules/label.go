package rules

import (
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

// pending reports whether analysis still has tokens to expand or resolve.
// Labels depend on every relationship being known.
func pending(t *token.Tree) bool {
	busy := false
	t.Walk(t.Root(), func(id token.ID, _ int) bool {
		switch p := t.Payload(id).(type) {
		case token.Wrapped:
			busy = true
		case token.Attribute:
			busy = busy || !p.Resolved
		case token.TableEntity:
			busy = busy || !p.Resolved
		}
		return !busy
	})
	return busy
}

// roles maps table-entity tokens to the role they play in a recursive
// relationship.
func roles(t *token.Tree) map[token.ID]string {
	out := make(map[token.ID]string)
	t.Walk(t.Root(), func(id token.ID, _ int) bool {
		if in, ok := t.Payload(id).(token.InRelationship); ok {
			if in.LeftRole != "" {
				out[in.Left] = in.LeftRole
			}
			if in.RightRole != "" {
				out[in.Right] = in.RightRole
			}
		}
		return true
	})
	return out
}

// labelEntities names every entity table reference. A reference playing a
// role is named after the role; otherwise after its entity. References
// sharing a name are told apart as "employee", "other employee", "third
// employee" in tree order.
func labelEntities() *symbolic.Rule {
	return &symbolic.Rule{
		Name:       "label-entities",
		Phases:     analysis,
		Precedence: symbolic.BandEnhance + 20,
		Query: logic.Query{
			logic.A(facts.PredTableRef, v("T"), logic.Any, logic.Any),
			logic.A(facts.PredEntityRef, v("T"), logic.Any),
			logic.Not(logic.A(facts.PredLabel, v("T"), logic.Any, logic.Any)),
		},
		Apply: func(st *symbolic.State, _ []logic.Binding) (bool, error) {
			t := st.Tree
			if pending(t) {
				return false, nil
			}
			byRole := roles(t)
			seen := make(map[string]int)
			changed := false
			t.Walk(t.Root(), func(id token.ID, _ int) bool {
				p, ok := t.Payload(id).(token.TableEntity)
				if !ok || p.Entity == "" {
					return true
				}
				base, ok := byRole[id]
				if !ok {
					base = humanize(p.Entity)
				}
				seen[base]++
				name := distinguish(base, seen[base])
				if st.SetLabel(id, facts.Label{Singular: name, Plural: pluralize(name)}) {
					changed = true
				}
				return true
			})
			return changed, nil
		},
	}
}
