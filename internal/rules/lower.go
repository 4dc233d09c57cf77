package rules

import (
	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

// lowerEach runs fn on every live token bound to T. fn reports whether it
// rewrote the token.
func lowerEach(name string, precedence int, kind token.Kind, q logic.Query, fn func(st *symbolic.State, id token.ID) (bool, error)) *symbolic.Rule {
	return lowerEachWith(name, precedence, kind, q, nil, fn)
}

func lowerEachWith(name string, precedence int, kind token.Kind, q logic.Query, clauses []logic.Clause, fn func(st *symbolic.State, id token.ID) (bool, error)) *symbolic.Rule {
	return &symbolic.Rule{
		Name:       name,
		Phases:     lowering,
		Precedence: precedence,
		Clauses:    clauses,
		Query:      q,
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			changed := false
			for _, b := range tuples {
				id := ref(b, "T")
				if !live(st.Tree, id, kind) {
					continue
				}
				ok, err := fn(st, id)
				if err != nil {
					return changed, err
				}
				changed = changed || ok
			}
			return changed, nil
		},
	}
}

func roleQuery(r token.Role) logic.Query {
	return logic.Query{logic.A(facts.PredRole, v("T"), s(string(r)))}
}

func underExists(t *token.Tree, sel token.ID) bool {
	return sequence(t, t.Parent(sel), token.RoleExists)
}

// subject is "the <label>" for the table an attribute belongs to.
func subject(st *symbolic.State, at token.ID, a token.Attribute) ([]piece, error) {
	te, _, err := tableEntity(st.Tree, at, a.Alias)
	if err != nil {
		return nil, err
	}
	return []piece{det("the"), noun(label(st, te).Singular)}, nil
}

func lowerAllAttributes() *symbolic.Rule {
	q := logic.Query{logic.A(facts.PredAllAttrs, v("T"), logic.Any)}
	return lowerEach("lower-all-attributes", symbolic.BandLower, token.KindAllAttributes, q, func(st *symbolic.State, id token.ID) (bool, error) {
		t := st.Tree
		a := t.Payload(id).(token.AllAttributes)
		var tes []token.ID
		if a.Alias != "" {
			te, _, err := tableEntity(t, id, a.Alias)
			if err != nil {
				return false, err
			}
			tes = append(tes, te)
		} else {
			for _, te := range facts.TableEntities(t, facts.EnclosingSelect(t, id)) {
				if t.Payload(te).(token.TableEntity).Entity != "" {
					tes = append(tes, te)
				}
			}
		}
		groups := make([][]piece, len(tes))
		for i, te := range tes {
			groups[i] = []piece{det("each"), noun(label(st, te).Singular)}
		}
		return true, rewrite(t, id, func([]token.ID) []piece { return joinAll(groups, "and") })
	})
}

// lowerProjection groups projected attributes by table: "the name and
// salary of each employee and the name of each department".
func lowerProjection() *symbolic.Rule {
	return lowerEach("lower-projection", symbolic.BandLower+1, token.KindSequence, roleQuery(token.RoleProjection), func(st *symbolic.State, id token.ID) (bool, error) {
		t := st.Tree
		if underExists(t, t.Parent(id)) {
			return true, t.Delete(id)
		}

		type group struct {
			phrase token.ID
			te     token.ID
			descs  [][]piece
		}
		var groups []*group
		byTE := make(map[token.ID]*group)
		for _, kid := range t.Children(id) {
			switch p := t.Payload(kid).(type) {
			case token.Attribute:
				te, _, err := tableEntity(t, kid, p.Alias)
				if err != nil {
					return false, err
				}
				g, ok := byTE[te]
				if !ok {
					g = &group{phrase: token.None, te: te}
					byTE[te] = g
					groups = append(groups, g)
				}
				g.descs = append(g.descs, []piece{noun(describe(st, p))})
			case token.Sequence:
				if !done(t, kid) {
					return false, nil
				}
				groups = append(groups, &group{phrase: kid, te: token.None})
			case token.AllAttributes:
				return false, nil
			default:
				return false, unhandled(p.Kind().String(), kid, "projection item")
			}
		}

		out := make([][]piece, len(groups))
		for i, g := range groups {
			if g.phrase != token.None {
				out[i] = []piece{tok(g.phrase)}
				continue
			}
			ps := append([]piece{det("the")}, joinList(g.descs, "and")...)
			if p := t.Payload(g.te).(token.TableEntity); p.Entity != "" {
				ps = append(ps, prep("of"), det("each"), noun(label(st, g.te).Singular))
			}
			out[i] = ps
		}
		return true, rewrite(t, id, func([]token.ID) []piece { return joinAll(out, "and") })
	})
}

func lowerNegatedBoolean() *symbolic.Rule {
	q := logic.Query{
		logic.A(facts.PredRole, v("T"), s(string(token.RoleNot))),
		logic.A(facts.PredChildCount, v("T"), logic.I(1)),
		logic.A(facts.PredParent, v("T"), v("A"), logic.I(0)),
		logic.A(facts.PredAttrType, v("A"), s(string(er.TypeBoolean))),
	}
	return lowerEach("lower-negated-boolean", symbolic.BandLower+6, token.KindSequence, q, func(st *symbolic.State, id token.ID) (bool, error) {
		at := st.Tree.Child(id, 0)
		a, ok := st.Tree.Payload(at).(token.Attribute)
		if !ok {
			return false, nil
		}
		subj, err := subject(st, at, a)
		if err != nil {
			return false, err
		}
		return true, rewrite(st.Tree, id, func([]token.ID) []piece {
			return append(subj, verb("is not"), word(describe(st, a), token.POSAdj))
		})
	})
}

func lowerBooleanAttribute() *symbolic.Rule {
	var slots []logic.Clause
	for _, r := range []token.Role{token.RoleWhere, token.RoleAnd, token.RoleOr} {
		slots = append(slots, logic.Horn(logic.A("condition_slot", v("W")), logic.A(facts.PredRole, v("W"), s(string(r)))))
	}
	q := logic.Query{
		logic.A(facts.PredAttrType, v("T"), s(string(er.TypeBoolean))),
		logic.A(facts.PredParent, v("W"), v("T"), logic.Any),
		logic.A("condition_slot", v("W")),
	}
	return lowerEachWith("lower-boolean-attribute", symbolic.BandLower+7, token.KindAttribute, q, slots, func(st *symbolic.State, id token.ID) (bool, error) {
		a := st.Tree.Payload(id).(token.Attribute)
		subj, err := subject(st, id, a)
		if err != nil {
			return false, err
		}
		return true, rewrite(st.Tree, id, func([]token.ID) []piece {
			return append(subj, verb("is"), word(describe(st, a), token.POSAdj))
		})
	})
}

var comparisonPhrases = map[string]string{
	"=":          "is",
	"!=":         "is not",
	"<":          "is less than",
	"<=":         "is at most",
	">":          "is greater than",
	">=":         "is at least",
	"<=>":        "is",
	"in":         "is one of",
	"not in":     "is not one of",
	"like":       "matches",
	"not like":   "does not match",
	"regexp":     "matches the pattern",
	"not regexp": "does not match the pattern",
}

var datePhrases = map[string]string{
	"<":  "is before",
	"<=": "is on or before",
	">":  "is after",
	">=": "is on or after",
}

var mirrored = map[string]string{
	"<":  ">",
	"<=": ">=",
	">":  "<",
	">=": "<=",
}

var symmetric = map[string]bool{"=": true, "!=": true, "<=>": true}

func comparisonPhrase(op, dataType string) (string, bool) {
	if dataType == string(er.TypeDateTime) {
		if p, ok := datePhrases[op]; ok {
			return p, true
		}
	}
	p, ok := comparisonPhrases[op]
	return p, ok
}

// lowerComparison puts the attribute first, so "30000 < e.salary" reads
// "the salary of the employee is greater than $30,000".
func lowerComparison() *symbolic.Rule {
	q := logic.Query{logic.A(facts.PredComparison, v("T"), logic.Any)}
	return lowerEach("lower-comparison", symbolic.BandLower+10, token.KindComparison, q, func(st *symbolic.State, id token.ID) (bool, error) {
		t := st.Tree
		op := t.Payload(id).(token.Comparison).Op
		l, r := t.Child(id, 0), t.Child(id, 1)
		if t.Kind(l) != token.KindAttribute && t.Kind(r) == token.KindAttribute {
			if m, ok := mirrored[op]; ok {
				op = m
				l, r = r, l
			} else if symmetric[op] {
				l, r = r, l
			}
		}
		var dataType string
		if a, ok := t.Payload(l).(token.Attribute); ok {
			dataType = a.DataType
		}
		phrase, ok := comparisonPhrase(op, dataType)
		if !ok {
			return false, unhandled("operator "+op, id, "no wording for this comparison")
		}
		return true, rewrite(t, id, func([]token.ID) []piece {
			return []piece{tok(l), verb(phrase), tok(r)}
		})
	})
}

func lowerBetween() *symbolic.Rule {
	return lowerEach("lower-between", symbolic.BandLower+11, token.KindSequence, roleQuery(token.RoleBetween), func(st *symbolic.State, id token.ID) (bool, error) {
		phrase := "is between"
		if st.Tree.Payload(id).(token.Sequence).Op == "not between" {
			phrase = "is not between"
		}
		return true, rewrite(st.Tree, id, func(kids []token.ID) []piece {
			return []piece{tok(kids[0]), verb(phrase), tok(kids[1]), conj("and"), tok(kids[2])}
		})
	})
}

var isPhrases = map[string]string{
	"is null":      "is unknown",
	"is not null":  "is known",
	"is true":      "is true",
	"is not true":  "is not true",
	"is false":     "is false",
	"is not false": "is not false",
}

func lowerIs() *symbolic.Rule {
	return lowerEach("lower-is", symbolic.BandLower+12, token.KindSequence, roleQuery(token.RoleIs), func(st *symbolic.State, id token.ID) (bool, error) {
		op := st.Tree.Payload(id).(token.Sequence).Op
		phrase, ok := isPhrases[op]
		if !ok {
			return false, unhandled("operator "+op, id, "no wording for this test")
		}
		return true, rewrite(st.Tree, id, func(kids []token.ID) []piece {
			return []piece{tok(kids[0]), verb(phrase)}
		})
	})
}

func lowerExists() *symbolic.Rule {
	return lowerEach("lower-exists", symbolic.BandLower+13, token.KindSequence, roleQuery(token.RoleExists), func(st *symbolic.State, id token.ID) (bool, error) {
		// The subquery reads its own position, so it is lowered first.
		if !allDone(st.Tree, st.Tree.Children(id)) {
			return false, nil
		}
		return true, rewrite(st.Tree, id, func(kids []token.ID) []piece {
			return append([]piece{verb("there is")}, pieces(kids)...)
		})
	})
}

func pieces(ids []token.ID) []piece {
	out := make([]piece, len(ids))
	for i, id := range ids {
		out[i] = tok(id)
	}
	return out
}

func lowerAttribute() *symbolic.Rule {
	q := logic.Query{logic.A(facts.PredAttrRef, v("T"), logic.Any, logic.Any)}
	return lowerEach("lower-attribute", symbolic.BandLower+15, token.KindAttribute, q, func(st *symbolic.State, id token.ID) (bool, error) {
		a := st.Tree.Payload(id).(token.Attribute)
		owner, err := ownerPhrase(st, id, a, "the")
		if err != nil {
			return false, err
		}
		return true, rewrite(st.Tree, id, func([]token.ID) []piece {
			return append([]piece{det("the"), noun(describe(st, a))}, owner...)
		})
	})
}

func lowerRelationship() *symbolic.Rule {
	q := logic.Query{logic.A(facts.PredInRel, v("T"), logic.Any, logic.Any, logic.Any)}
	return lowerEach("lower-relationship", symbolic.BandLower+20, token.KindInRelationship, q, func(st *symbolic.State, id token.ID) (bool, error) {
		in := st.Tree.Payload(id).(token.InRelationship)
		phrase := humanize(in.Relationship)
		if rel := st.Schema.Relationship(in.Relationship); rel != nil && rel.Phrase != "" {
			phrase = rel.Phrase
		}
		left, right := label(st, in.Left), label(st, in.Right)
		return true, rewrite(st.Tree, id, func([]token.ID) []piece {
			return []piece{det("the"), noun(left.Singular), verb(phrase), det("the"), noun(right.Singular)}
		})
	})
}

func lowerConnectives() *symbolic.Rule {
	var clauses []logic.Clause
	for _, r := range []token.Role{token.RoleWhere, token.RoleAnd, token.RoleOr, token.RoleNot, token.RoleList} {
		clauses = append(clauses, logic.Horn(logic.A("connective", v("T")), logic.A(facts.PredRole, v("T"), s(string(r)))))
	}
	q := logic.Query{logic.A("connective", v("T"))}
	return lowerEachWith("lower-connectives", symbolic.BandLower+30, token.KindSequence, q, clauses, func(st *symbolic.State, id token.ID) (bool, error) {
		t := st.Tree
		kids := t.Children(id)
		if !allDone(t, kids) {
			return false, nil
		}
		role := t.Payload(id).(token.Sequence).Role
		if len(kids) == 0 {
			return true, t.Delete(id)
		}
		var out []piece
		switch role {
		case token.RoleWhere:
			out = append([]piece{conj("where")}, joinAll(each(kids), "and")...)
		case token.RoleAnd:
			out = joinAll(each(kids), "and")
		case token.RoleOr:
			out = joinAll(each(kids), "or")
			if p := t.Parent(id); len(kids) > 1 && (sequence(t, p, token.RoleAnd) || (sequence(t, p, token.RoleWhere) && t.ChildCount(p) > 1)) {
				out = append([]piece{conj("either")}, out...)
			}
		case token.RoleNot:
			out = append([]piece{conj("it is not the case that")}, pieces(kids)...)
		case token.RoleList:
			out = joinList(each(kids), "or")
		}
		return true, rewrite(t, id, func([]token.ID) []piece { return out })
	})
}

// unlowered reports whether tokens under sel still name tables, so FROM
// must stay in place for them to resolve.
func unlowered(t *token.Tree, sel token.ID) bool {
	found := false
	t.Walk(sel, func(id token.ID, _ int) bool {
		switch t.Kind(id) {
		case token.KindAttribute, token.KindAllAttributes, token.KindInRelationship:
			found = true
		}
		return !found
	})
	return found
}

// lowerFrom introduces the tables of an EXISTS subquery ("a supervisee")
// and drops FROM everywhere else.
func lowerFrom() *symbolic.Rule {
	return lowerEach("lower-from", symbolic.BandLower+40, token.KindSequence, roleQuery(token.RoleFrom), func(st *symbolic.State, id token.ID) (bool, error) {
		t := st.Tree
		sel := t.Parent(id)
		if unlowered(t, sel) {
			return false, nil
		}
		var groups [][]piece
		if underExists(t, sel) {
			for _, te := range t.Children(id) {
				if t.Payload(te).(token.TableEntity).Entity != "" {
					groups = append(groups, []piece{det("a"), noun(label(st, te).Singular)})
				}
			}
		}
		if len(groups) == 0 {
			return true, t.Delete(id)
		}
		return true, rewrite(t, id, func([]token.ID) []piece { return joinAll(groups, "and") })
	})
}

func lowerSelect() *symbolic.Rule {
	return lowerEach("lower-select", symbolic.BandLower+50, token.KindSequence, roleQuery(token.RoleSelect), func(st *symbolic.State, id token.ID) (bool, error) {
		t := st.Tree
		kids := t.Children(id)
		if !allDone(t, kids) {
			return false, nil
		}
		out := pieces(kids)
		if t.Kind(t.Parent(id)) == token.KindRoot {
			out = append([]piece{verb("find")}, out...)
		}
		return true, rewrite(t, id, func([]token.ID) []piece { return out })
	})
}
