// Package boolnorm canonicalizes WHERE predicates so equivalent student
// queries render to the same text.
//
// Normalization pushes NOT inward (De Morgan), removes double negation,
// inverts comparison operators instead of wrapping them in NOT, and
// rewrites boolean-literal comparisons. Operand order is preserved:
// "a and b" and "b and a" stay distinct.
package boolnorm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
	"golang.org/x/text/unicode/norm"
)

// BoolPair is one spelling of boolean truth values stored as strings.
type BoolPair struct {
	True  string
	False string
}

// DefaultBoolPairs are the string spellings recognized unless overridden.
var DefaultBoolPairs = []BoolPair{
	{True: "t", False: "f"},
	{True: "true", False: "false"},
}

// MalformedError reports a predicate tree with a missing operand.
type MalformedError struct {
	Node   string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed predicate %s: %s", e.Node, e.Reason)
}

// IsMalformed returns true if err wraps a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}

// Normalizer rewrites predicate trees into canonical form.
type Normalizer struct {
	pairs []BoolPair
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithBooleanLiterals replaces the recognized string boolean spellings.
func WithBooleanLiterals(pairs ...BoolPair) Option {
	return func(n *Normalizer) {
		n.pairs = pairs
	}
}

// New returns a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{pairs: DefaultBoolPairs}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize canonicalizes expr with the default normalizer.
func Normalize(expr sqlparser.Expr) (sqlparser.Expr, error) {
	return defaultNormalizer.Normalize(expr)
}

// NormalizeQuery canonicalizes every WHERE clause of sql with the default
// normalizer and renders the result.
func NormalizeQuery(sql string) (string, error) {
	return defaultNormalizer.NormalizeQuery(sql)
}

const maxPasses = 8

// Normalize returns the canonical form of expr. The input is not modified.
func (n *Normalizer) Normalize(expr sqlparser.Expr) (sqlparser.Expr, error) {
	if expr == nil {
		return nil, nil
	}
	// The first pass validates the tree; malformed input must not reach
	// the printer.
	cur, err := n.rewrite(expr, false)
	if err != nil {
		return nil, err
	}
	cur = parenthesize(cur)
	prev := sqlparser.String(cur)
	for i := 0; i < maxPasses-1; i++ {
		next, err := n.rewrite(cur, false)
		if err != nil {
			return nil, err
		}
		next = parenthesize(next)
		text := sqlparser.String(next)
		cur = next
		if text == prev {
			break
		}
		prev = text
	}
	return cur, nil
}

// NormalizeWhere canonicalizes the WHERE clause of sel in place.
func (n *Normalizer) NormalizeWhere(sel *sqlparser.Select) error {
	if sel == nil || sel.Where == nil {
		return nil
	}
	out, err := n.Normalize(sel.Where.Expr)
	if err != nil {
		return err
	}
	sel.Where.Expr = out
	return nil
}

// NormalizeStatement canonicalizes the WHERE clauses of every select in
// stmt, subqueries included, in place.
func (n *Normalizer) NormalizeStatement(stmt sqlparser.Statement) error {
	return sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if sel, ok := node.(*sqlparser.Select); ok {
			if err := n.NormalizeWhere(sel); err != nil {
				return false, err
			}
		}
		return true, nil
	}, stmt)
}

// Parse NFC-normalizes sql and parses it.
func Parse(sql string) (sqlparser.Statement, error) {
	text := strings.TrimSpace(norm.NFC.String(sql))
	text = strings.TrimSuffix(text, ";")
	stmt, err := sqlparser.Parse(text)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return stmt, nil
}

// ParseError is SQL the parser rejected.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "parse query: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// NormalizeQuery parses sql, canonicalizes its WHERE clauses and renders
// the whole statement.
func (n *Normalizer) NormalizeQuery(sql string) (string, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return "", err
	}
	if err := n.NormalizeStatement(stmt); err != nil {
		return "", err
	}
	return sqlparser.String(stmt), nil
}

// Equivalent reports whether two queries normalize to the same text.
func (n *Normalizer) Equivalent(a, b string) (bool, error) {
	na, err := n.NormalizeQuery(a)
	if err != nil {
		return false, err
	}
	nb, err := n.NormalizeQuery(b)
	if err != nil {
		return false, err
	}
	return na == nb, nil
}

var inverse = map[string]string{
	sqlparser.EqualStr:        sqlparser.NotEqualStr,
	sqlparser.NotEqualStr:     sqlparser.EqualStr,
	sqlparser.LessThanStr:     sqlparser.GreaterEqualStr,
	sqlparser.GreaterEqualStr: sqlparser.LessThanStr,
	sqlparser.GreaterThanStr:  sqlparser.LessEqualStr,
	sqlparser.LessEqualStr:    sqlparser.GreaterThanStr,
	sqlparser.InStr:           sqlparser.NotInStr,
	sqlparser.NotInStr:        sqlparser.InStr,
	sqlparser.LikeStr:         sqlparser.NotLikeStr,
	sqlparser.NotLikeStr:      sqlparser.LikeStr,
	sqlparser.RegexpStr:       sqlparser.NotRegexpStr,
	sqlparser.NotRegexpStr:    sqlparser.RegexpStr,
	sqlparser.BetweenStr:      sqlparser.NotBetweenStr,
	sqlparser.NotBetweenStr:   sqlparser.BetweenStr,
	sqlparser.IsNullStr:       sqlparser.IsNotNullStr,
	sqlparser.IsNotNullStr:    sqlparser.IsNullStr,
	sqlparser.IsTrueStr:       sqlparser.IsNotTrueStr,
	sqlparser.IsNotTrueStr:    sqlparser.IsTrueStr,
	sqlparser.IsFalseStr:      sqlparser.IsNotFalseStr,
	sqlparser.IsNotFalseStr:   sqlparser.IsFalseStr,
}

func malformed(node sqlparser.SQLNode, reason string) error {
	return &MalformedError{Node: fmt.Sprintf("%T", node), Reason: reason}
}

// rewrite returns expr in negation normal form. negate asks for the
// negation of expr. Parentheses are dropped; parenthesize restores the
// ones precedence needs.
func (n *Normalizer) rewrite(expr sqlparser.Expr, negate bool) (sqlparser.Expr, error) {
	switch e := expr.(type) {
	case nil:
		return nil, &MalformedError{Node: "<nil>", Reason: "missing operand"}
	case *sqlparser.ParenExpr:
		if e.Expr == nil {
			return nil, malformed(e, "empty parentheses")
		}
		return n.rewrite(e.Expr, negate)
	case *sqlparser.NotExpr:
		if e.Expr == nil {
			return nil, malformed(e, "NOT without operand")
		}
		return n.rewrite(e.Expr, !negate)
	case *sqlparser.AndExpr:
		l, r, err := n.operands(e, e.Left, e.Right, negate)
		if err != nil {
			return nil, err
		}
		if negate {
			return &sqlparser.OrExpr{Left: l, Right: r}, nil
		}
		return &sqlparser.AndExpr{Left: l, Right: r}, nil
	case *sqlparser.OrExpr:
		l, r, err := n.operands(e, e.Left, e.Right, negate)
		if err != nil {
			return nil, err
		}
		if negate {
			return &sqlparser.AndExpr{Left: l, Right: r}, nil
		}
		return &sqlparser.OrExpr{Left: l, Right: r}, nil
	case *sqlparser.ComparisonExpr:
		return n.comparison(e, negate)
	case *sqlparser.RangeCond:
		if e.Left == nil || e.From == nil || e.To == nil {
			return nil, malformed(e, "range needs three operands")
		}
		out := *e
		if negate {
			out.Operator = inverse[e.Operator]
		}
		return &out, nil
	case *sqlparser.IsExpr:
		if e.Expr == nil {
			return nil, malformed(e, "IS without operand")
		}
		out := *e
		if negate {
			inv, ok := inverse[e.Operator]
			if !ok {
				return &sqlparser.NotExpr{Expr: e}, nil
			}
			out.Operator = inv
		}
		return &out, nil
	case sqlparser.BoolVal:
		if negate {
			return !e, nil
		}
		return e, nil
	default:
		if negate {
			return &sqlparser.NotExpr{Expr: expr}, nil
		}
		return expr, nil
	}
}

func (n *Normalizer) operands(node sqlparser.SQLNode, left, right sqlparser.Expr, negate bool) (sqlparser.Expr, sqlparser.Expr, error) {
	if left == nil || right == nil {
		return nil, nil, malformed(node, "connective needs two operands")
	}
	l, err := n.rewrite(left, negate)
	if err != nil {
		return nil, nil, err
	}
	r, err := n.rewrite(right, negate)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func (n *Normalizer) comparison(e *sqlparser.ComparisonExpr, negate bool) (sqlparser.Expr, error) {
	if e.Left == nil || e.Right == nil {
		return nil, malformed(e, "comparison needs two operands")
	}

	if e.Operator == sqlparser.EqualStr || e.Operator == sqlparser.NotEqualStr {
		// x = true / x != false reduce to x itself.
		if operand, lit, ok := boolOperand(e); ok {
			positive := lit == (e.Operator == sqlparser.EqualStr)
			return n.rewrite(operand, negate == positive)
		}
	}

	out := *e
	if negate {
		inv, ok := inverse[e.Operator]
		if !ok {
			return &sqlparser.NotExpr{Expr: &sqlparser.ParenExpr{Expr: e}}, nil
		}
		out.Operator = inv
	}
	if out.Operator == sqlparser.NotEqualStr {
		if flipped, ok := n.flipStringBool(out.Right); ok {
			out.Operator, out.Right = sqlparser.EqualStr, flipped
		} else if flipped, ok := n.flipStringBool(out.Left); ok {
			out.Operator, out.Left = sqlparser.EqualStr, flipped
		}
	}
	return &out, nil
}

// boolOperand splits "x = true" into x and the literal's value.
func boolOperand(e *sqlparser.ComparisonExpr) (sqlparser.Expr, bool, bool) {
	if b, ok := e.Right.(sqlparser.BoolVal); ok {
		return e.Left, bool(b), true
	}
	if b, ok := e.Left.(sqlparser.BoolVal); ok {
		return e.Right, bool(b), true
	}
	return nil, false, false
}

// flipStringBool returns the opposite spelling of a string boolean.
func (n *Normalizer) flipStringBool(expr sqlparser.Expr) (sqlparser.Expr, bool) {
	v, ok := expr.(*sqlparser.SQLVal)
	if !ok || v.Type != sqlparser.StrVal {
		return nil, false
	}
	s := string(v.Val)
	for _, p := range n.pairs {
		switch {
		case strings.EqualFold(s, p.True):
			return sqlparser.NewStrVal([]byte(p.False)), true
		case strings.EqualFold(s, p.False):
			return sqlparser.NewStrVal([]byte(p.True)), true
		}
	}
	return nil, false
}

// parenthesize re-inserts the parentheses that AND-over-OR and NOT over a
// connective need to keep their meaning when rendered.
func parenthesize(expr sqlparser.Expr) sqlparser.Expr {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		return &sqlparser.AndExpr{Left: wrapOr(parenthesize(e.Left)), Right: wrapOr(parenthesize(e.Right))}
	case *sqlparser.OrExpr:
		return &sqlparser.OrExpr{Left: parenthesize(e.Left), Right: parenthesize(e.Right)}
	case *sqlparser.NotExpr:
		inner := parenthesize(e.Expr)
		switch inner.(type) {
		case *sqlparser.AndExpr, *sqlparser.OrExpr:
			inner = &sqlparser.ParenExpr{Expr: inner}
		}
		return &sqlparser.NotExpr{Expr: inner}
	default:
		return expr
	}
}

func wrapOr(expr sqlparser.Expr) sqlparser.Expr {
	if _, ok := expr.(*sqlparser.OrExpr); ok {
		return &sqlparser.ParenExpr{Expr: expr}
	}
	return expr
}
