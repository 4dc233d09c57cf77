package logic

import (
	"fmt"
	"strconv"
	"strings"
)

type valueKind uint8

const (
	kindNone valueKind = iota
	kindString
	kindInt
	kindRef
)

// Value is a ground datum stored in a fact: a string, an integer, or a
// reference to a token id. Values are comparable and usable as map keys.
type Value struct {
	kind valueKind
	s    string
	i    int64
}

// Str returns a string value.
func Str(s string) Value { return Value{kind: kindString, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: kindInt, i: i} }

// Ref returns a token reference value.
func Ref(id int) Value { return Value{kind: kindRef, i: int64(id)} }

// IsZero reports whether v is the zero Value (no datum).
func (v Value) IsZero() bool { return v.kind == kindNone }

// Text returns the string datum.
func (v Value) Text() (string, bool) {
	return v.s, v.kind == kindString
}

// Number returns the integer datum.
func (v Value) Number() (int64, bool) {
	return v.i, v.kind == kindInt
}

// RefID returns the referenced token id.
func (v Value) RefID() (int, bool) {
	return int(v.i), v.kind == kindRef
}

func (v Value) String() string {
	switch v.kind {
	case kindString:
		return strconv.Quote(v.s)
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindRef:
		return "#" + strconv.FormatInt(v.i, 10)
	default:
		return "<none>"
	}
}

// Term is an atom argument: either a variable or a constant.
type Term struct {
	Var string
	Val Value
}

// Wildcard is the anonymous variable. Every occurrence is independent.
const Wildcard = "_"

// Any is the anonymous variable term.
var Any = Term{Var: Wildcard}

// V returns a variable term.
func V(name string) Term { return Term{Var: name} }

// C returns a constant term.
func C(v Value) Term { return Term{Val: v} }

// S returns a string constant term.
func S(s string) Term { return Term{Val: Str(s)} }

// I returns an integer constant term.
func I(i int64) Term { return Term{Val: Int(i)} }

// R returns a token reference constant term.
func R(id int) Term { return Term{Val: Ref(id)} }

// IsVar reports whether the term is a variable (including the wildcard).
func (t Term) IsVar() bool { return t.Var != "" }

func (t Term) isWildcard() bool { return t.Var == Wildcard }

func (t Term) String() string {
	if t.IsVar() {
		if t.isWildcard() {
			return "_"
		}
		return "?" + t.Var
	}
	return t.Val.String()
}

// Atom is a predicate applied to terms, optionally negated.
type Atom struct {
	Pred    string
	Args    []Term
	Negated bool
}

// A builds a positive atom.
func A(pred string, args ...Term) Atom {
	return Atom{Pred: pred, Args: args}
}

// Not negates an atom. Only valid inside a Query.
func Not(a Atom) Atom {
	a.Negated = true
	return a
}

func (a Atom) String() string {
	parts := make([]string, len(a.Args))
	for i, t := range a.Args {
		parts[i] = t.String()
	}
	s := fmt.Sprintf("%s(%s)", a.Pred, strings.Join(parts, ", "))
	if a.Negated {
		return "not " + s
	}
	return s
}

// Query is a conjunction of atoms.
type Query []Atom

func (q Query) String() string {
	parts := make([]string, len(q))
	for i, a := range q {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Clause is a Horn rule: Head holds whenever every Body atom holds.
type Clause struct {
	Head Atom
	Body []Atom
}

// Horn builds a clause.
func Horn(head Atom, body ...Atom) Clause {
	return Clause{Head: head, Body: body}
}

func (c Clause) String() string {
	return c.Head.String() + " :- " + Query(c.Body).String()
}

// Predicate declares a relation name and its arity.
type Predicate struct {
	Name  string
	Arity int
}

// Binding maps variable names to values for one query answer.
type Binding map[string]Value

// Ref returns the token id bound to name, or -1.
func (b Binding) Ref(name string) int {
	id, ok := b[name].RefID()
	if !ok {
		return -1
	}
	return id
}

// Text returns the string bound to name, or "".
func (b Binding) Text(name string) string {
	s, _ := b[name].Text()
	return s
}

// Int returns the integer bound to name, or 0.
func (b Binding) Int(name string) int64 {
	n, _ := b[name].Number()
	return n
}
