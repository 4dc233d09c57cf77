package logic

import (
	"strconv"
	"strings"
)

// relation is the row storage for one predicate. Rows are kept in insertion
// order; per-column indexes are built lazily and dropped on insert.
type relation struct {
	arity int
	rows  [][]Value
	keys  map[string]struct{}
	index []map[Value][]int
}

func newRelation(arity int) *relation {
	return &relation{arity: arity, keys: make(map[string]struct{})}
}

func rowKey(row []Value) string {
	var b strings.Builder
	for _, v := range row {
		b.WriteByte(byte('0' + v.kind))
		switch v.kind {
		case kindString:
			b.WriteString(strconv.Itoa(len(v.s)))
			b.WriteByte(':')
			b.WriteString(v.s)
		default:
			b.WriteString(strconv.FormatInt(v.i, 10))
		}
		b.WriteByte('|')
	}
	return b.String()
}

// insert adds row if absent and reports whether it was new.
func (r *relation) insert(row []Value) bool {
	k := rowKey(row)
	if _, dup := r.keys[k]; dup {
		return false
	}
	r.keys[k] = struct{}{}
	r.rows = append(r.rows, row)
	r.index = nil
	return true
}

func (r *relation) has(row []Value) bool {
	_, ok := r.keys[rowKey(row)]
	return ok
}

// lookup returns the positions of rows whose column col equals v.
func (r *relation) lookup(col int, v Value) []int {
	if r.index == nil {
		r.index = make([]map[Value][]int, r.arity)
	}
	if r.index[col] == nil {
		idx := make(map[Value][]int)
		for i, row := range r.rows {
			idx[row[col]] = append(idx[row[col]], i)
		}
		r.index[col] = idx
	}
	return r.index[col][v]
}

// FactSet is a set of ground facts over a declared vocabulary.
//
// Add validates arity before inserting anything, so a failed Add never
// leaves a partial fact behind. Duplicate facts are ignored.
type FactSet struct {
	order   []string
	rels    map[string]*relation
	version uint64
}

// NewFactSet returns a fact set with the given predicates declared.
// Conflicting redeclarations panic; use Declare to get an error instead.
func NewFactSet(preds ...Predicate) *FactSet {
	fs := &FactSet{rels: make(map[string]*relation)}
	if err := fs.Declare(preds...); err != nil {
		panic(err)
	}
	return fs
}

// Declare adds predicates to the vocabulary. Redeclaring a predicate with
// the same arity is a no-op.
func (fs *FactSet) Declare(preds ...Predicate) error {
	for _, p := range preds {
		if rel, ok := fs.rels[p.Name]; ok {
			if rel.arity != p.Arity {
				return &ArityError{Pred: p.Name, Want: rel.arity, Got: p.Arity}
			}
			continue
		}
		fs.rels[p.Name] = newRelation(p.Arity)
		fs.order = append(fs.order, p.Name)
	}
	return nil
}

// Arity returns the declared arity of pred.
func (fs *FactSet) Arity(pred string) (int, bool) {
	rel, ok := fs.rels[pred]
	if !ok {
		return 0, false
	}
	return rel.arity, true
}

// Predicates returns the declared vocabulary in declaration order.
func (fs *FactSet) Predicates() []Predicate {
	out := make([]Predicate, len(fs.order))
	for i, name := range fs.order {
		out[i] = Predicate{Name: name, Arity: fs.rels[name].arity}
	}
	return out
}

// Add inserts the fact pred(args...).
func (fs *FactSet) Add(pred string, args ...Value) error {
	rel, ok := fs.rels[pred]
	if !ok {
		return &UndeclaredError{Pred: pred}
	}
	if len(args) != rel.arity {
		return &ArityError{Pred: pred, Want: rel.arity, Got: len(args)}
	}
	for _, a := range args {
		if a.IsZero() {
			return &ClauseError{Clause: pred, Reason: "fact argument has no value"}
		}
	}
	row := make([]Value, len(args))
	copy(row, args)
	if rel.insert(row) {
		fs.version++
	}
	return nil
}

// Has reports whether pred(args...) is present.
func (fs *FactSet) Has(pred string, args ...Value) bool {
	rel, ok := fs.rels[pred]
	if !ok || len(args) != rel.arity {
		return false
	}
	return rel.has(args)
}

// Rows returns the facts of pred in insertion order. The result must not
// be modified.
func (fs *FactSet) Rows(pred string) [][]Value {
	rel, ok := fs.rels[pred]
	if !ok {
		return nil
	}
	return rel.rows
}

// Len returns the total number of facts.
func (fs *FactSet) Len() int {
	n := 0
	for _, rel := range fs.rels {
		n += len(rel.rows)
	}
	return n
}

// Version increases every time a new fact is inserted.
func (fs *FactSet) Version() uint64 { return fs.version }
