package token

import (
	"github.com/xwb1989/sqlparser"
)

// ASTKind names the syntax node class held by a wrapped token. The names
// are the vocabulary rules match on.
func ASTKind(n sqlparser.SQLNode) string {
	switch n.(type) {
	case *sqlparser.Select:
		return "select"
	case *sqlparser.Union:
		return "union"
	case *sqlparser.ParenSelect:
		return "paren_select"
	case *sqlparser.AndExpr:
		return "and"
	case *sqlparser.OrExpr:
		return "or"
	case *sqlparser.NotExpr:
		return "not"
	case *sqlparser.ParenExpr:
		return "paren"
	case *sqlparser.ComparisonExpr:
		return "comparison"
	case *sqlparser.RangeCond:
		return "range"
	case *sqlparser.IsExpr:
		return "is"
	case *sqlparser.ExistsExpr:
		return "exists"
	case *sqlparser.SQLVal:
		return "value"
	case *sqlparser.NullVal:
		return "null"
	case sqlparser.BoolVal:
		return "bool"
	case *sqlparser.ColName:
		return "column"
	case sqlparser.ValTuple:
		return "tuple"
	case *sqlparser.Subquery:
		return "subquery"
	case *sqlparser.AliasedTableExpr:
		return "table"
	case *sqlparser.JoinTableExpr:
		return "join"
	case *sqlparser.ParenTableExpr:
		return "paren_table"
	case *sqlparser.StarExpr:
		return "star"
	case *sqlparser.AliasedExpr:
		return "select_expr"
	case *sqlparser.FuncExpr, *sqlparser.GroupConcatExpr:
		return "function"
	case *sqlparser.BinaryExpr, *sqlparser.UnaryExpr:
		return "arithmetic"
	case *sqlparser.CaseExpr:
		return "case"
	case nil:
		return "nil"
	default:
		return "other"
	}
}

// Syntax classes group AST kinds by the rule family that expands them.
const (
	ClassSelect      = "select"
	ClassConnective  = "connective"
	ClassCondition   = "condition"
	ClassLeaf        = "leaf"
	ClassUnsupported = "unsupported"
)

// ASTClass returns the syntax class of a node kind returned by ASTKind.
func ASTClass(kind string) string {
	switch kind {
	case "select":
		return ClassSelect
	case "and", "or", "not", "paren":
		return ClassConnective
	case "comparison", "range", "is", "exists":
		return ClassCondition
	case "value", "null", "bool", "column", "tuple", "subquery":
		return ClassLeaf
	default:
		return ClassUnsupported
	}
}

// Conjunct is one top-level operand of a WHERE conjunction.
type Conjunct struct {
	Expr  sqlparser.Expr
	Scope Scope
}

const andSeparator = " and "

// SplitConjuncts flattens the top-level AND chain of a WHERE expression.
// Scope offsets are byte positions in sqlparser.String(where). A
// parenthesized conjunction counts as a single conjunct.
func SplitConjuncts(where sqlparser.Expr) []Conjunct {
	if where == nil {
		return nil
	}
	var exprs []sqlparser.Expr
	var flatten func(sqlparser.Expr)
	flatten = func(e sqlparser.Expr) {
		if and, ok := e.(*sqlparser.AndExpr); ok {
			flatten(and.Left)
			flatten(and.Right)
			return
		}
		exprs = append(exprs, e)
	}
	flatten(where)

	out := make([]Conjunct, len(exprs))
	offset := 0
	for i, e := range exprs {
		out[i] = Conjunct{Expr: e, Scope: Scope{Index: i, Start: offset}}
		offset += len(sqlparser.String(e)) + len(andSeparator)
	}
	return out
}
