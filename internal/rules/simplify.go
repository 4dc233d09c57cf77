package rules

import (
	"strings"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

// truth parses the spellings of a boolean literal.
func truth(text string) (value, ok bool) {
	switch strings.ToLower(strings.Trim(text, "'")) {
	case "t", "true":
		return true, true
	case "f", "false":
		return false, true
	}
	return false, false
}

// dropBooleanLiteral reduces "x = true" to "x" and "x = 'f'" to "not x"
// so boolean attributes read as plain conditions.
func dropBooleanLiteral() *symbolic.Rule {
	return &symbolic.Rule{
		Name:       "drop-boolean-literal",
		Phases:     analysis,
		Precedence: symbolic.BandDestructive,
		Clauses: []logic.Clause{
			logic.Horn(logic.A("bool_operand", v("C"), v("L")),
				logic.A(facts.PredComparison, v("C"), logic.Any),
				logic.A(facts.PredParent, v("C"), v("L"), logic.Any),
				logic.A(facts.PredPOS, v("L"), s(string(token.POSBool))),
			),
			logic.Horn(logic.A("bool_operand", v("C"), v("L")),
				logic.A(facts.PredComparison, v("C"), logic.Any),
				logic.A(facts.PredParent, v("C"), v("A"), logic.Any),
				logic.A(facts.PredAttrType, v("A"), s(string(er.TypeBoolean))),
				logic.A(facts.PredParent, v("C"), v("L"), logic.Any),
				logic.A(facts.PredPOS, v("L"), s(string(token.POSValue))),
			),
		},
		Query: logic.Query{
			logic.A("bool_operand", v("C"), v("L")),
			logic.A(facts.PredComparison, v("C"), v("Op")),
		},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			t := st.Tree
			changed := false
			for _, b := range tuples {
				c, l := ref(b, "C"), ref(b, "L")
				op := b.Text("Op")
				if !live(t, c, token.KindComparison) || t.Parent(l) != c || (op != "=" && op != "!=") {
					continue
				}
				value, ok := truth(t.Payload(l).(token.Literal).Text)
				if !ok {
					continue
				}
				other := t.Child(c, 0)
				if other == l {
					other = t.Child(c, 1)
				}
				if err := t.Delete(l); err != nil {
					return changed, err
				}
				if value != (op == "=") {
					not := t.Add(token.Sequence{Role: token.RoleNot})
					if err := t.Replace(other, not); err != nil {
						return changed, err
					}
					if err := t.AppendChild(not, other); err != nil {
						return changed, err
					}
				}
				changed = true
			}
			return changed, nil
		},
	}
}

// dropTautology removes "x = x" where it constrains nothing: directly
// under WHERE, or as one of several operands of AND. Tautologies under OR
// and NOT change the meaning of their parent and stay. A conjunction
// keeps its last operand.
func dropTautology() *symbolic.Rule {
	return &symbolic.Rule{
		Name:       "drop-tautology",
		Phases:     analysis,
		Precedence: symbolic.BandDestructive + 30,
		Clauses: []logic.Clause{
			logic.Horn(logic.A("tautology", v("C")),
				logic.A(facts.PredComparison, v("C"), s("=")),
				logic.A(facts.PredParent, v("C"), v("A"), logic.I(0)),
				logic.A(facts.PredParent, v("C"), v("B"), logic.I(1)),
				logic.A(facts.PredText, v("A"), v("X")),
				logic.A(facts.PredText, v("B"), v("X")),
			),
			logic.Horn(logic.A("conjunct_slot", v("W")), logic.A(facts.PredRole, v("W"), s(string(token.RoleWhere)))),
			logic.Horn(logic.A("conjunct_slot", v("W")), logic.A(facts.PredRole, v("W"), s(string(token.RoleAnd)))),
		},
		Query: logic.Query{
			logic.A("tautology", v("C")),
			logic.A(facts.PredParent, v("W"), v("C"), logic.Any),
			logic.A("conjunct_slot", v("W")),
		},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			changed := false
			for _, b := range tuples {
				c := ref(b, "C")
				if !live(st.Tree, c, token.KindComparison) {
					continue
				}
				w := st.Tree.Parent(c)
				if seq, ok := st.Tree.Payload(w).(token.Sequence); ok && seq.Role == token.RoleAnd && st.Tree.ChildCount(w) < 2 {
					continue
				}
				if err := st.Tree.Delete(c); err != nil {
					return changed, err
				}
				changed = true
			}
			return changed, nil
		},
	}
}
