package rules

import (
	"strings"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/joindetect"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

// Contributed predicates marking lookup-table tokens whose meaning has
// moved into a relationship token.
const (
	predSpentCondition = "spent_condition" // spent_condition(C)
	predSpentTable     = "spent_table"     // spent_table(T)
)

var spentPredicates = []logic.Predicate{
	{Name: predSpentCondition, Arity: 1},
	{Name: predSpentTable, Arity: 1},
}

// whereCondition matches an equality C directly under a WHERE sequence
// with operands X and Y.
func whereCondition(c, x, y string) []logic.Atom {
	return []logic.Atom{
		logic.A(facts.PredParent, v("W"), v(c), logic.Any),
		logic.A(facts.PredRole, v("W"), s(string(token.RoleWhere))),
		logic.A(facts.PredComparison, v(c), s("=")),
		logic.A(facts.PredParent, v(c), v(x), logic.Any),
		logic.A(facts.PredParent, v(c), v(y), logic.Any),
	}
}

func relationshipToken(rel *er.Relationship, left, right token.ID) token.InRelationship {
	return token.InRelationship{
		Relationship: rel.Name,
		Left:         left,
		Right:        right,
		LeftRole:     rel.Edges[0].Role,
		RightRole:    rel.Edges[1].Role,
		LeftTotal:    rel.Edges[0].Cardinality.Total(),
		RightTotal:   rel.Edges[1].Cardinality.Total(),
	}
}

func detectRelationship() *symbolic.Rule {
	body := append(whereCondition("C", "P", "F"),
		logic.A(facts.PredColumnOf, v("P"), v("PC")),
		logic.A(facts.PredColumnOf, v("F"), v("FC")),
		logic.A(facts.PredFK, v("R"), v("PC"), v("FC")),
	)
	return &symbolic.Rule{
		Name:       "detect-relationship",
		Phases:     analysis,
		Precedence: symbolic.BandEnhance + 15,
		Clauses: []logic.Clause{
			logic.Horn(logic.A("fk_cond", v("C"), v("P"), v("F"), v("R")), body...),
		},
		Query: logic.Query{logic.A("fk_cond", v("C"), v("P"), v("F"), v("R"))},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			t := st.Tree
			changed := false
			for _, b := range tuples {
				c := ref(b, "C")
				if !live(t, c, token.KindComparison) {
					continue
				}
				pa := t.Payload(ref(b, "P")).(token.Attribute)
				fa := t.Payload(ref(b, "F")).(token.Attribute)
				pte := facts.FindTableEntity(t, ref(b, "P"), pa.Alias)
				fte := facts.FindTableEntity(t, ref(b, "F"), fa.Alias)
				if pte == token.None || fte == token.None || pte == fte {
					continue
				}

				rel := st.Schema.Relationship(b.Text("R"))
				if rel == nil {
					return changed, &er.SchemaError{Code: er.ErrCodeUnknownEntity, Name: b.Text("R"), Message: "mapped relationship missing from schema"}
				}
				var left, right token.ID
				if rel.Recursive() {
					var err error
					if left, right, err = recursiveSides(st, c, rel, pte, fte); err != nil {
						return changed, err
					}
				} else if t.Payload(pte).(token.TableEntity).Entity == rel.Edges[0].Entity {
					left, right = pte, fte
				} else {
					left, right = fte, pte
				}

				in := t.Add(relationshipToken(rel, left, right))
				if err := t.Replace(c, in); err != nil {
					return changed, err
				}
				changed = true
			}
			return changed, nil
		},
	}
}

// recursiveSides orders the two references of a self-join. The referenced
// side plays the first edge. When the join lies within one select the join
// detector confirms the roles from the SQL itself; correlated references
// fall back to the column sides.
func recursiveSides(st *symbolic.State, c token.ID, rel *er.Relationship, pte, fte token.ID) (token.ID, token.ID, error) {
	t := st.Tree
	sel := st.Select(facts.EnclosingSelect(t, c))
	j, ok := st.Mapping.Join(rel.Name)
	if sel == nil || !ok || len(j.Keys) != 1 {
		return pte, fte, nil
	}
	d, err := joindetect.New(j.Keys[0].PK, j.Keys[0].FK)
	if err != nil {
		return token.None, token.None, err
	}
	m, found, err := d.Detect(sel)
	if err != nil || !found {
		return pte, fte, err
	}
	pk := facts.FindTableEntity(t, c, m.PK)
	fk := facts.FindTableEntity(t, c, m.FK)
	if (pk == pte && fk == fte) || (pk == fte && fk == pte) {
		return pk, fk, nil
	}
	return pte, fte, nil
}

func detectLookupRelationship() *symbolic.Rule {
	body := append(whereCondition("C", "E", "L"),
		logic.A(facts.PredColumnOf, v("E"), v("PK")),
		logic.A(facts.PredColumnOf, v("L"), v("FK")),
		logic.A(facts.PredLookupKey, v("R"), v("I"), v("PK"), v("FK")),
	)
	return &symbolic.Rule{
		Name:       "detect-lookup-relationship",
		Phases:     analysis,
		Precedence: symbolic.BandEnhance + 16,
		Declares:   spentPredicates,
		Clauses: []logic.Clause{
			logic.Horn(logic.A("lookup_cond", v("C"), v("E"), v("L"), v("R"), v("I")), body...),
		},
		Query: logic.Query{logic.A("lookup_cond", v("C"), v("E"), v("L"), v("R"), v("I"))},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			t := st.Tree

			// Pair the two key conditions of each lookup-table reference.
			type side struct {
				cond   token.ID
				entity token.ID
			}
			type pair struct {
				rel    string
				lookup token.ID
				sides  [2]side
				seen   [2]bool
			}
			type pairKey struct {
				rel    string
				lookup token.ID
			}
			var order []*pair
			byKey := make(map[pairKey]*pair)
			for _, b := range tuples {
				c := ref(b, "C")
				if !live(t, c, token.KindComparison) {
					continue
				}
				ea := t.Payload(ref(b, "E")).(token.Attribute)
				la := t.Payload(ref(b, "L")).(token.Attribute)
				ete := facts.FindTableEntity(t, ref(b, "E"), ea.Alias)
				lte := facts.FindTableEntity(t, ref(b, "L"), la.Alias)
				if ete == token.None || lte == token.None {
					continue
				}
				key := pairKey{rel: b.Text("R"), lookup: lte}
				p, ok := byKey[key]
				if !ok {
					p = &pair{rel: b.Text("R"), lookup: lte}
					byKey[key] = p
					order = append(order, p)
				}
				i := b.Int("I")
				if i < 0 || i > 1 || p.seen[i] {
					continue
				}
				p.sides[i] = side{cond: c, entity: ete}
				p.seen[i] = true
			}

			changed := false
			for _, p := range order {
				if !p.seen[0] || !p.seen[1] {
					continue
				}
				rel := st.Schema.Relationship(p.rel)
				if rel == nil {
					return changed, &er.SchemaError{Code: er.ErrCodeUnknownEntity, Name: p.rel, Message: "mapped relationship missing from schema"}
				}
				in := t.Add(relationshipToken(rel, p.sides[0].entity, p.sides[1].entity))
				if err := t.Replace(p.sides[0].cond, in); err != nil {
					return changed, err
				}
				st.Contribute(predSpentCondition, logic.Ref(int(p.sides[1].cond)))
				st.Contribute(predSpentTable, logic.Ref(int(p.lookup)))
				changed = true
			}
			return changed, nil
		},
	}
}

// dropSpent deletes attached tokens named by a spent_* fact. keep may veto
// a deletion.
func dropSpent(name, pred string, precedence int, keep func(st *symbolic.State, id token.ID) bool) *symbolic.Rule {
	return &symbolic.Rule{
		Name:       name,
		Phases:     analysis,
		Precedence: precedence,
		Query: logic.Query{
			logic.A(pred, v("T")),
			logic.A(facts.PredAttached, v("T")),
		},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			changed := false
			for _, b := range tuples {
				id := ref(b, "T")
				if !st.Tree.Attached(id) || (keep != nil && keep(st, id)) {
					continue
				}
				if err := st.Tree.Delete(id); err != nil {
					return changed, err
				}
				changed = true
			}
			return changed, nil
		},
	}
}

func dropLookupCondition() *symbolic.Rule {
	return dropSpent("drop-lookup-condition", predSpentCondition, symbolic.BandDestructive+10, nil)
}

// dropLookupTable removes a lookup table from FROM unless one of its own
// columns is still mentioned, as in "w.hours > 20".
func dropLookupTable() *symbolic.Rule {
	return dropSpent("drop-lookup-table", predSpentTable, symbolic.BandDestructive+20, func(st *symbolic.State, te token.ID) bool {
		t := st.Tree
		name := t.Payload(te).(token.TableEntity).Name()
		sel := facts.EnclosingSelect(t, te)
		used := false
		t.Walk(sel, func(id token.ID, _ int) bool {
			if a, ok := t.Payload(id).(token.Attribute); ok && strings.EqualFold(a.Alias, name) {
				used = true
			}
			return !used
		})
		return used
	})
}
