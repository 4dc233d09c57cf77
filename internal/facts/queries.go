package facts

import (
	"strings"

	"github.com/roach88/sqltutor/internal/token"
)

func isSelect(t *token.Tree, id token.ID) bool {
	seq, ok := t.Payload(id).(token.Sequence)
	return ok && seq.Role == token.RoleSelect
}

// EnclosingSelect returns the nearest strict ancestor of id that is a
// select sequence, or token.None.
func EnclosingSelect(t *token.Tree, id token.ID) token.ID {
	for _, a := range t.Ancestors(id) {
		if isSelect(t, a) {
			return a
		}
	}
	return token.None
}

// TableEntities returns the table-entity tokens of a select, excluding
// those of nested selects, in tree order.
func TableEntities(t *token.Tree, sel token.ID) []token.ID {
	var out []token.ID
	t.Walk(sel, func(n token.ID, _ int) bool {
		if n != sel && isSelect(t, n) {
			return false
		}
		if t.Kind(n) == token.KindTableEntity {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindTableEntity resolves a table name or alias as seen from token from:
// the innermost enclosing select is searched first, then the selects
// around it, as SQL scoping does for correlated subqueries.
func FindTableEntity(t *token.Tree, from token.ID, name string) token.ID {
	for sel := EnclosingSelect(t, from); sel != token.None; sel = EnclosingSelect(t, sel) {
		for _, te := range TableEntities(t, sel) {
			p := t.Payload(te).(token.TableEntity)
			if strings.EqualFold(p.Name(), name) {
				return te
			}
		}
	}
	return token.None
}
