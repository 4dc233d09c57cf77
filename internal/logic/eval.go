package logic

import (
	"strings"
)

// Evaluator answers queries over a fact set extended by Horn clauses.
type Evaluator interface {
	Evaluate(fs *FactSet, clauses []Clause, q Query) ([]Binding, error)
}

// MemEvaluator is a naive bottom-up evaluator. Derived relations are
// materialized to a fixpoint and cached until the fact set or the clause
// list changes, so consecutive queries against the same facts are cheap.
type MemEvaluator struct {
	fs          *FactSet
	version     uint64
	fingerprint string
	db          *database
}

// NewMemEvaluator returns an evaluator with an empty cache.
func NewMemEvaluator() *MemEvaluator {
	return &MemEvaluator{}
}

// Evaluate materializes clauses over fs and returns the bindings of q.
func (e *MemEvaluator) Evaluate(fs *FactSet, clauses []Clause, q Query) ([]Binding, error) {
	db, err := e.materialize(fs, clauses)
	if err != nil {
		return nil, err
	}
	return db.query(q)
}

func (e *MemEvaluator) materialize(fs *FactSet, clauses []Clause) (*database, error) {
	fp := fingerprint(clauses)
	if e.db != nil && e.fs == fs && e.version == fs.Version() && e.fingerprint == fp {
		return e.db, nil
	}

	db := &database{base: fs, derived: make(map[string]*relation)}
	if err := db.declare(clauses); err != nil {
		return nil, err
	}
	if err := db.fixpoint(clauses); err != nil {
		return nil, err
	}

	e.fs, e.version, e.fingerprint, e.db = fs, fs.Version(), fp, db
	return db, nil
}

func fingerprint(clauses []Clause) string {
	var b strings.Builder
	for _, c := range clauses {
		b.WriteString(c.String())
		b.WriteByte(';')
	}
	return b.String()
}

type database struct {
	base    *FactSet
	derived map[string]*relation
}

func (d *database) rel(pred string) *relation {
	if r, ok := d.derived[pred]; ok {
		return r
	}
	return d.base.rels[pred]
}

// declare checks clause shape and allocates derived relations.
func (d *database) declare(clauses []Clause) error {
	for _, c := range clauses {
		h := c.Head
		if h.Negated {
			return &ClauseError{Clause: c.String(), Reason: "negated head"}
		}
		if len(c.Body) == 0 {
			return &ClauseError{Clause: c.String(), Reason: "empty body"}
		}
		if _, ok := d.base.rels[h.Pred]; ok {
			return &ClauseError{Clause: c.String(), Reason: "head predicate " + h.Pred + " is a base relation"}
		}
		if r, ok := d.derived[h.Pred]; ok {
			if r.arity != len(h.Args) {
				return &ArityError{Pred: h.Pred, Want: r.arity, Got: len(h.Args)}
			}
		} else {
			d.derived[h.Pred] = newRelation(len(h.Args))
		}
	}

	for _, c := range clauses {
		bound := make(map[string]bool)
		for _, a := range c.Body {
			if a.Negated {
				return &ClauseError{Clause: c.String(), Reason: "negation is not allowed in clause bodies"}
			}
			if err := d.checkAtom(a); err != nil {
				return err
			}
			for _, t := range a.Args {
				if t.IsVar() && !t.isWildcard() {
					bound[t.Var] = true
				}
			}
		}
		for _, t := range c.Head.Args {
			if t.isWildcard() {
				return &ClauseError{Clause: c.String(), Reason: "wildcard in head"}
			}
			if t.IsVar() && !bound[t.Var] {
				return &ClauseError{Clause: c.String(), Reason: "head variable ?" + t.Var + " not bound by body"}
			}
		}
	}
	return nil
}

func (d *database) checkAtom(a Atom) error {
	r := d.rel(a.Pred)
	if r == nil {
		return &UndeclaredError{Pred: a.Pred}
	}
	if len(a.Args) != r.arity {
		return &ArityError{Pred: a.Pred, Want: r.arity, Got: len(a.Args)}
	}
	return nil
}

func (d *database) fixpoint(clauses []Clause) error {
	for {
		added := false
		for _, c := range clauses {
			var pending [][]Value
			var scratch env
			d.solve(c.Body, 0, &scratch, func(e *env) {
				pending = append(pending, e.project(c.Head.Args))
			})
			target := d.derived[c.Head.Pred]
			for _, row := range pending {
				if target.insert(row) {
					added = true
				}
			}
		}
		if !added {
			return nil
		}
	}
}

func (d *database) query(q Query) ([]Binding, error) {
	var positive, negative []Atom
	bound := make(map[string]bool)
	var vars []string
	for _, a := range q {
		if err := d.checkAtom(a); err != nil {
			return nil, err
		}
		if a.Negated {
			negative = append(negative, a)
			continue
		}
		positive = append(positive, a)
		for _, t := range a.Args {
			if t.IsVar() && !t.isWildcard() && !bound[t.Var] {
				bound[t.Var] = true
				vars = append(vars, t.Var)
			}
		}
	}
	if len(positive) == 0 {
		return nil, &ClauseError{Clause: q.String(), Reason: "query has no positive atom"}
	}
	for _, a := range negative {
		for _, t := range a.Args {
			if t.IsVar() && !t.isWildcard() && !bound[t.Var] {
				return nil, &ClauseError{Clause: q.String(), Reason: "negated variable ?" + t.Var + " is unbound"}
			}
		}
	}

	ordered := append(append([]Atom{}, positive...), negative...)
	seen := make(map[string]struct{})
	var out []Binding
	var scratch env
	d.solve(ordered, 0, &scratch, func(e *env) {
		row := make([]Value, len(vars))
		for i, v := range vars {
			row[i], _ = e.get(v)
		}
		k := rowKey(row)
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		b := make(Binding, len(vars))
		for i, v := range vars {
			b[v] = row[i]
		}
		out = append(out, b)
	})
	return out, nil
}

type slot struct {
	name string
	val  Value
}

// env is a backtracking variable environment.
type env []slot

func (e *env) get(name string) (Value, bool) {
	for i := len(*e) - 1; i >= 0; i-- {
		if (*e)[i].name == name {
			return (*e)[i].val, true
		}
	}
	return Value{}, false
}

func (e *env) project(args []Term) []Value {
	row := make([]Value, len(args))
	for i, t := range args {
		if t.IsVar() {
			row[i], _ = e.get(t.Var)
		} else {
			row[i] = t.Val
		}
	}
	return row
}

// resolve returns the value a term must take under e, if determined.
func (e *env) resolve(t Term) (Value, bool) {
	if !t.IsVar() {
		return t.Val, true
	}
	if t.isWildcard() {
		return Value{}, false
	}
	return e.get(t.Var)
}

func (d *database) solve(atoms []Atom, i int, e *env, emit func(*env)) {
	if i == len(atoms) {
		emit(e)
		return
	}
	a := atoms[i]
	r := d.rel(a.Pred)

	if a.Negated {
		found := false
		d.match(r, a, e, func() bool {
			found = true
			return false
		})
		if !found {
			d.solve(atoms, i+1, e, emit)
		}
		return
	}

	d.match(r, a, e, func() bool {
		d.solve(atoms, i+1, e, emit)
		return true
	})
}

// match unifies a against the rows of r, calling next with e extended for
// every matching row. next returns false to stop early.
func (d *database) match(r *relation, a Atom, e *env, next func() bool) {
	candidates := -1
	var rows []int
	for j, t := range a.Args {
		if v, ok := e.resolve(t); ok {
			rows = r.lookup(j, v)
			candidates = len(rows)
			break
		}
	}

	try := func(row []Value) bool {
		mark := len(*e)
		ok := true
		for j, t := range a.Args {
			if t.isWildcard() {
				continue
			}
			if v, bound := e.resolve(t); bound {
				if v != row[j] {
					ok = false
					break
				}
				continue
			}
			*e = append(*e, slot{name: t.Var, val: row[j]})
		}
		cont := true
		if ok {
			cont = next()
		}
		*e = (*e)[:mark]
		return cont
	}

	if candidates >= 0 {
		for _, idx := range rows {
			if !try(r.rows[idx]) {
				return
			}
		}
		return
	}
	for _, row := range r.rows {
		if !try(row) {
			return
		}
	}
}
