package facts

import (
	"fmt"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/token"
)

// Label is the display name chosen for a table-entity token.
type Label struct {
	Singular string
	Plural   string
}

// Fact is one ground fact.
type Fact struct {
	Pred string
	Args []logic.Value
}

// Input is everything a projection reads besides the schema.
type Input struct {
	Tree   *token.Tree
	Labels map[token.ID]Label
	// Declared extends the vocabulary for Extra facts.
	Declared []logic.Predicate
	Extra    []Fact
}

// Projector turns trees into fact sets for one schema.
type Projector struct {
	static []Fact
}

// NewProjector precomputes the schema and mapping facts. Either argument
// may be nil.
func NewProjector(s *er.Schema, m *er.Mapping) *Projector {
	p := &Projector{}
	if s != nil {
		p.static = append(p.static, schemaFacts(s)...)
	}
	if m != nil {
		p.static = append(p.static, mappingFacts(m)...)
	}
	return p
}

func str(s string) logic.Value    { return logic.Str(s) }
func ref(id token.ID) logic.Value { return logic.Ref(int(id)) }
func num(n int) logic.Value       { return logic.Int(int64(n)) }

func fact(pred string, args ...logic.Value) Fact {
	return Fact{Pred: pred, Args: args}
}

func schemaFacts(s *er.Schema) []Fact {
	var out []Fact
	var attrs func(owner, prefix string, list []*er.Attribute)
	attrs = func(owner, prefix string, list []*er.Attribute) {
		for _, a := range list {
			q := prefix + "." + a.Name
			out = append(out, fact(PredAttribute, str(owner), str(q)))
			if prefix != owner {
				out = append(out, fact(PredComponent, str(prefix), str(q)))
			}
			if a.Key {
				out = append(out, fact(PredKey, str(q)))
			}
			if a.Derived {
				out = append(out, fact(PredDerived, str(q)))
			}
			if a.Multivalued {
				out = append(out, fact(PredMultivalued, str(q)))
			}
			if a.DataType != er.TypeNone {
				out = append(out, fact(PredDataType, str(q), str(string(a.DataType))))
			}
			if a.Composite() {
				out = append(out, fact(PredComposite, str(q)))
				attrs(owner, q, a.Children())
			}
		}
	}

	for _, e := range s.Entities() {
		out = append(out, fact(PredEntity, str(e.Name)))
		attrs(e.Name, e.Name, e.Attributes())
	}
	for _, r := range s.Relationships() {
		out = append(out, fact(PredRelationship, str(r.Name), str(r.Edges[0].Entity), str(r.Edges[1].Entity)))
		for i, e := range r.Edges {
			out = append(out, fact(PredEdge, str(r.Name), str(e.Entity), str(e.Role), num(e.Cardinality.Min), num(e.Cardinality.Max)))
			if e.Cardinality.Total() {
				out = append(out, fact(PredTotal, str(r.Name), num(i)))
			}
		}
		attrs(r.Name, r.Name, r.Attributes())
	}
	return out
}

func mappingFacts(m *er.Mapping) []Fact {
	var out []Fact
	seenTable := make(map[string]bool)
	for _, a := range m.Attributes() {
		col, _ := m.ColumnFor(a)
		out = append(out, fact(PredColumnAttr, str(col), str(a)))
		table, _, _ := er.SplitColumn(col)
		if e, ok := m.EntityForTable(table); ok && !seenTable[table] {
			seenTable[table] = true
			out = append(out, fact(PredTableEntity, str(table), str(e)))
		}
	}
	for _, name := range m.Relationships() {
		j, _ := m.Join(name)
		out = append(out, fact(PredJoinKind, str(name), str(string(j.Kind))))
		switch j.Kind {
		case er.JoinForeignKey:
			out = append(out, fact(PredFK, str(name), str(j.Keys[0].PK), str(j.Keys[0].FK)))
		case er.JoinLookupTable:
			out = append(out, fact(PredLookup, str(name), str(j.Table)))
			for i, k := range j.Keys {
				out = append(out, fact(PredLookupKey, str(name), num(i), str(k.PK), str(k.FK)))
			}
		}
	}
	return out
}

// Project builds a fresh fact set from the current tree.
func (p *Projector) Project(in Input) (*logic.FactSet, error) {
	fs := logic.NewFactSet(vocabulary...)
	if err := fs.Declare(in.Declared...); err != nil {
		return nil, fmt.Errorf("declare contributed predicates: %w", err)
	}

	add := func(f Fact) error {
		if err := fs.Add(f.Pred, f.Args...); err != nil {
			return fmt.Errorf("project %s: %w", f.Pred, err)
		}
		return nil
	}
	for _, f := range p.static {
		if err := add(f); err != nil {
			return nil, err
		}
	}
	if in.Tree != nil {
		for _, f := range treeFacts(in.Tree, in.Labels) {
			if err := add(f); err != nil {
				return nil, err
			}
		}
	}
	for _, f := range in.Extra {
		if err := add(f); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

func treeFacts(t *token.Tree, labels map[token.ID]Label) []Fact {
	var out []Fact
	tops := append([]token.ID{t.Root()}, t.Extras()...)
	for _, top := range tops {
		if top == t.Root() {
			out = append(out, fact(PredRoot, ref(top)))
		} else {
			out = append(out, fact(PredExtra, ref(top)))
		}

		order := t.PreOrder(top)
		for i, id := range order {
			out = append(out, tokenFacts(t, id)...)
			if i+1 < len(order) {
				out = append(out, fact(PredNext, ref(id), ref(order[i+1])))
			}
			if l, ok := labels[id]; ok {
				out = append(out, fact(PredLabel, ref(id), str(l.Singular), str(l.Plural)))
			}
		}
	}
	return out
}

func tokenFacts(t *token.Tree, id token.ID) []Fact {
	p := t.Payload(id)
	out := []Fact{
		fact(PredToken, ref(id), str(p.Kind().String())),
		fact(PredAttached, ref(id)),
	}

	kids := t.Children(id)
	out = append(out, fact(PredChildCount, ref(id), num(len(kids))))
	for i, c := range kids {
		out = append(out, fact(PredParent, ref(id), ref(c), num(i)))
	}
	if len(kids) > 0 {
		out = append(out, fact(PredLastChild, ref(id), ref(kids[len(kids)-1])))
	}
	for dist, a := range t.Ancestors(id) {
		out = append(out, fact(PredAncestor, ref(a), ref(id), num(dist+1)))
	}

	switch v := p.(type) {
	case token.Root:
		out = append(out, fact(PredDone, ref(id)))
	case token.Wrapped:
		kind := token.ASTKind(v.Node)
		out = append(out, fact(PredAST, ref(id), str(kind)))
		out = append(out, fact(PredASTClass, ref(id), str(token.ASTClass(kind))))
		out = append(out, fact(PredScope, ref(id), num(v.Scope.Index)))
	case token.Sequence:
		out = append(out, fact(PredRole, ref(id), str(string(v.Role))))
		if v.Op != "" {
			out = append(out, fact(PredOp, ref(id), str(v.Op)))
		}
		if v.Lowered || v.Role == token.RolePhrase {
			out = append(out, fact(PredLowered, ref(id)), fact(PredDone, ref(id)))
		}
	case token.Literal:
		out = append(out, fact(PredDone, ref(id)))
		out = append(out, fact(PredPOS, ref(id), str(string(v.POS))))
		out = append(out, fact(PredText, ref(id), str(v.Text)))
		if v.Formatted {
			out = append(out, fact(PredFormatted, ref(id)))
		}
	case token.Comparison:
		out = append(out, fact(PredComparison, ref(id), str(v.Op)))
	case token.Attribute:
		out = append(out, fact(PredAttrRef, ref(id), str(v.Alias), str(v.Column)))
		if v.Resolved {
			out = append(out, fact(PredResolved, ref(id)))
		}
		if v.Table != "" {
			out = append(out, fact(PredColumnOf, ref(id), str(v.Table+"."+v.Column)))
		}
		if v.Attribute != "" {
			out = append(out, fact(PredRefersAttr, ref(id), str(v.Attribute)))
		}
		if v.DataType != "" {
			out = append(out, fact(PredAttrType, ref(id), str(v.DataType)))
		}
		if v.Entity != "" {
			out = append(out, fact(PredEntityRef, ref(id), str(v.Entity)))
		}
	case token.TableEntity:
		out = append(out, fact(PredTableRef, ref(id), str(v.Table), str(v.Name())))
		if v.Entity != "" {
			out = append(out, fact(PredEntityRef, ref(id), str(v.Entity)))
		}
		if v.Resolved {
			out = append(out, fact(PredResolved, ref(id)))
		}
	case token.InRelationship:
		out = append(out, fact(PredInRel, ref(id), str(v.Relationship), ref(v.Left), ref(v.Right)))
		if v.LeftTotal {
			out = append(out, fact(PredTotalSide, ref(id), str("left")))
		}
		if v.RightTotal {
			out = append(out, fact(PredTotalSide, ref(id), str("right")))
		}
	case token.AllAttributes:
		out = append(out, fact(PredAllAttrs, ref(id), str(v.Alias)))
	}
	return out
}
