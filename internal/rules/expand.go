package rules

import (
	"github.com/xwb1989/sqlparser"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

func rejectUnsupported() *symbolic.Rule {
	return &symbolic.Rule{
		Name:       "reject-unsupported",
		Phases:     analysis,
		Precedence: symbolic.BandRewrite,
		Query: logic.Query{
			logic.A(facts.PredASTClass, v("T"), s(token.ClassUnsupported)),
			logic.A(facts.PredAST, v("T"), v("K")),
		},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			b := tuples[0]
			return false, unhandled(b.Text("K"), ref(b, "T"), "no rule expands this construct")
		},
	}
}

// expandRule builds a rule that expands every wrapped token of one syntax
// class with fn.
func expandRule(name, class string, fn func(st *symbolic.State, id token.ID, w token.Wrapped) error) *symbolic.Rule {
	return &symbolic.Rule{
		Name:       name,
		Phases:     analysis,
		Precedence: symbolic.BandRewrite,
		Query:      logic.Query{logic.A(facts.PredASTClass, v("T"), s(class))},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			changed := false
			for _, b := range tuples {
				id := ref(b, "T")
				w, ok := wrapped(st.Tree, id)
				if !ok {
					continue
				}
				if err := fn(st, id, w); err != nil {
					return changed, err
				}
				changed = true
			}
			return changed, nil
		},
	}
}

func expandSelect() *symbolic.Rule {
	return expandRule("expand-select", token.ClassSelect, func(st *symbolic.State, id token.ID, w token.Wrapped) error {
		sel := w.Node.(*sqlparser.Select)
		if err := checkSelect(id, sel); err != nil {
			return err
		}
		t := st.Tree

		// The top-level select takes its conjuncts from the session so
		// scopes line up with the normalized WHERE text.
		conjuncts := st.Conjuncts
		if t.Parent(id) != t.Root() || conjuncts == nil {
			var where sqlparser.Expr
			if sel.Where != nil {
				where = sel.Where.Expr
			}
			conjuncts = token.SplitConjuncts(where)
		}

		proj := t.Add(token.Sequence{Role: token.RoleProjection})
		for _, e := range sel.SelectExprs {
			var c token.ID
			switch x := e.(type) {
			case *sqlparser.StarExpr:
				c = t.Add(token.AllAttributes{Alias: x.TableName.Name.String()})
			case *sqlparser.AliasedExpr:
				c = t.Add(token.Wrapped{Node: x.Expr, Scope: token.NoScope})
			default:
				return unhandled(token.ASTKind(e), id, "projection item")
			}
			if err := t.AppendChild(proj, c); err != nil {
				return err
			}
		}

		from := t.Add(token.Sequence{Role: token.RoleFrom})
		var on []sqlparser.Expr
		if err := expandTables(t, id, from, sel.From, &on); err != nil {
			return err
		}

		var conds []token.ID
		for _, e := range on {
			for _, c := range token.SplitConjuncts(e) {
				conds = append(conds, t.Add(token.Wrapped{Node: c.Expr, Scope: token.NoScope}))
			}
		}
		for _, c := range conjuncts {
			conds = append(conds, t.Add(token.Wrapped{Node: c.Expr, Scope: c.Scope}))
		}
		where := t.Add(token.Sequence{Role: token.RoleWhere})
		for _, c := range conds {
			if err := t.AppendChild(where, c); err != nil {
				return err
			}
		}

		if err := t.SetPayload(id, token.Sequence{Role: token.RoleSelect}); err != nil {
			return err
		}
		for _, c := range []token.ID{proj, from, where} {
			if err := t.AppendChild(id, c); err != nil {
				return err
			}
		}
		st.BindSelect(id, sel)
		return nil
	})
}

func checkSelect(id token.ID, sel *sqlparser.Select) error {
	switch {
	case len(sel.GroupBy) > 0:
		return unhandled("group by", id, "grouping is not translated")
	case sel.Having != nil:
		return unhandled("having", id, "grouping is not translated")
	case len(sel.OrderBy) > 0:
		return unhandled("order by", id, "ordering is not translated")
	case sel.Limit != nil:
		return unhandled("limit", id, "row limits are not translated")
	case sel.Lock != "":
		return unhandled("lock", id, "locking clauses are not translated")
	}
	return nil
}

// expandTables appends a table-entity token to from for every table
// reference and collects the ON conditions of inner joins.
func expandTables(t *token.Tree, sel, from token.ID, exprs sqlparser.TableExprs, on *[]sqlparser.Expr) error {
	for _, e := range exprs {
		switch x := e.(type) {
		case *sqlparser.AliasedTableExpr:
			name, ok := x.Expr.(sqlparser.TableName)
			if !ok {
				return unhandled("derived table", sel, "subqueries in FROM are not translated")
			}
			te := t.Add(token.TableEntity{Table: er.Column(name.Name.String()), Alias: x.As.String()})
			if err := t.AppendChild(from, te); err != nil {
				return err
			}
		case *sqlparser.JoinTableExpr:
			if x.Join != sqlparser.JoinStr && x.Join != sqlparser.StraightJoinStr {
				return unhandled(x.Join, sel, "only inner joins are translated")
			}
			if len(x.Condition.Using) > 0 {
				return unhandled("using", sel, "join USING lists are not translated")
			}
			if err := expandTables(t, sel, from, sqlparser.TableExprs{x.LeftExpr, x.RightExpr}, on); err != nil {
				return err
			}
			if x.Condition.On != nil {
				*on = append(*on, x.Condition.On)
			}
		case *sqlparser.ParenTableExpr:
			if err := expandTables(t, sel, from, x.Exprs, on); err != nil {
				return err
			}
		default:
			return unhandled(token.ASTKind(e), sel, "table expression")
		}
	}
	return nil
}

// expandSequence turns id into a sequence of wrapped operands.
func expandSequence(t *token.Tree, id token.ID, seq token.Sequence, scope token.Scope, operands ...sqlparser.SQLNode) error {
	if err := t.SetPayload(id, seq); err != nil {
		return err
	}
	for _, n := range operands {
		if err := t.AppendChild(id, t.Add(token.Wrapped{Node: n, Scope: scope})); err != nil {
			return err
		}
	}
	return nil
}

// chain flattens a left- or right-nested chain of the same connective.
func chain(e sqlparser.Expr, split func(sqlparser.Expr) (sqlparser.Expr, sqlparser.Expr, bool)) []sqlparser.SQLNode {
	l, r, ok := split(e)
	if !ok {
		return []sqlparser.SQLNode{e}
	}
	return append(chain(l, split), chain(r, split)...)
}

func splitAnd(e sqlparser.Expr) (sqlparser.Expr, sqlparser.Expr, bool) {
	if a, ok := e.(*sqlparser.AndExpr); ok {
		return a.Left, a.Right, true
	}
	return nil, nil, false
}

func splitOr(e sqlparser.Expr) (sqlparser.Expr, sqlparser.Expr, bool) {
	if o, ok := e.(*sqlparser.OrExpr); ok {
		return o.Left, o.Right, true
	}
	return nil, nil, false
}

func expandBoolean() *symbolic.Rule {
	return expandRule("expand-boolean", token.ClassConnective, func(st *symbolic.State, id token.ID, w token.Wrapped) error {
		t := st.Tree
		switch n := w.Node.(type) {
		case *sqlparser.AndExpr:
			return expandSequence(t, id, token.Sequence{Role: token.RoleAnd}, w.Scope, chain(n, splitAnd)...)
		case *sqlparser.OrExpr:
			return expandSequence(t, id, token.Sequence{Role: token.RoleOr}, w.Scope, chain(n, splitOr)...)
		case *sqlparser.NotExpr:
			return expandSequence(t, id, token.Sequence{Role: token.RoleNot}, w.Scope, n.Expr)
		case *sqlparser.ParenExpr:
			return t.SetPayload(id, token.Wrapped{Node: n.Expr, Scope: w.Scope})
		}
		return unhandled(token.ASTKind(w.Node), id, "connective")
	})
}

func expandComparison() *symbolic.Rule {
	return expandRule("expand-comparison", token.ClassCondition, func(st *symbolic.State, id token.ID, w token.Wrapped) error {
		t := st.Tree
		switch n := w.Node.(type) {
		case *sqlparser.ComparisonExpr:
			l := t.Add(token.Wrapped{Node: n.Left, Scope: w.Scope})
			r := t.Add(token.Wrapped{Node: n.Right, Scope: w.Scope})
			c, err := t.AddComparison(n.Operator, l, r)
			if err != nil {
				return err
			}
			return t.Replace(id, c)
		case *sqlparser.RangeCond:
			return expandSequence(t, id, token.Sequence{Role: token.RoleBetween, Op: n.Operator}, w.Scope, n.Left, n.From, n.To)
		case *sqlparser.IsExpr:
			return expandSequence(t, id, token.Sequence{Role: token.RoleIs, Op: n.Operator}, w.Scope, n.Expr)
		case *sqlparser.ExistsExpr:
			sel, ok := n.Subquery.Select.(*sqlparser.Select)
			if !ok {
				return unhandled(token.ASTKind(n.Subquery.Select), id, "only plain subqueries are translated")
			}
			return expandSequence(t, id, token.Sequence{Role: token.RoleExists}, w.Scope, sel)
		}
		return unhandled(token.ASTKind(w.Node), id, "condition")
	})
}

func expandLeaf() *symbolic.Rule {
	return expandRule("expand-leaf", token.ClassLeaf, func(st *symbolic.State, id token.ID, w token.Wrapped) error {
		t := st.Tree
		switch n := w.Node.(type) {
		case *sqlparser.SQLVal:
			text := string(n.Val)
			switch n.Type {
			case sqlparser.StrVal:
				return t.SetPayload(id, token.Literal{Text: "'" + text + "'", POS: token.POSValue})
			case sqlparser.IntVal, sqlparser.FloatVal:
				return t.SetPayload(id, token.Literal{Text: text, POS: token.POSNum})
			case sqlparser.ValArg:
				return unhandled("bind variable", id, text)
			default:
				return t.SetPayload(id, token.Literal{Text: text, POS: token.POSValue})
			}
		case *sqlparser.NullVal:
			return t.SetPayload(id, token.Literal{Text: "null", POS: token.POSValue})
		case sqlparser.BoolVal:
			text := "false"
			if n {
				text = "true"
			}
			return t.SetPayload(id, token.Literal{Text: text, POS: token.POSBool})
		case *sqlparser.ColName:
			return t.SetPayload(id, token.Attribute{
				Alias:  n.Qualifier.Name.String(),
				Column: er.Column(n.Name.String()),
			})
		case sqlparser.ValTuple:
			items := make([]sqlparser.SQLNode, len(n))
			for i, e := range n {
				items[i] = e
			}
			return expandSequence(t, id, token.Sequence{Role: token.RoleList}, w.Scope, items...)
		case *sqlparser.Subquery:
			sel, ok := n.Select.(*sqlparser.Select)
			if !ok {
				return unhandled(token.ASTKind(n.Select), id, "only plain subqueries are translated")
			}
			return t.SetPayload(id, token.Wrapped{Node: sel, Scope: w.Scope})
		}
		return unhandled(token.ASTKind(w.Node), id, "value")
	})
}
