// Package er holds the entity-relationship schema that SQL tables are
// described by, and the mapping between the two.
package er

import (
	"fmt"
	"strconv"
	"strings"
)

// DataType is the display type of an attribute.
type DataType string

const (
	TypeNone     DataType = ""
	TypeString   DataType = "STRING"
	TypeInteger  DataType = "INTEGER"
	TypeBoolean  DataType = "BOOLEAN"
	TypeDateTime DataType = "DATETIME"
	TypeDollars  DataType = "DOLLARS"
)

// ParseDataType validates a data type name.
func ParseDataType(s string) (DataType, error) {
	switch dt := DataType(strings.ToUpper(s)); dt {
	case TypeNone, TypeString, TypeInteger, TypeBoolean, TypeDateTime, TypeDollars:
		return dt, nil
	default:
		return TypeNone, &SchemaError{Code: ErrCodeInvalid, Name: s, Message: "unknown data type"}
	}
}

// attributeSet keeps attributes in insertion order with unique names.
type attributeSet struct {
	list   []*Attribute
	byName map[string]int
}

func (s *attributeSet) add(owner string, a *Attribute) error {
	if a == nil || a.Name == "" {
		return &SchemaError{Code: ErrCodeInvalid, Name: owner, Message: "attribute needs a name"}
	}
	if s.byName == nil {
		s.byName = make(map[string]int)
	}
	if _, dup := s.byName[a.Name]; dup {
		return &SchemaError{Code: ErrCodeDuplicate, Name: owner + "." + a.Name, Message: "attribute already defined"}
	}
	s.byName[a.Name] = len(s.list)
	s.list = append(s.list, a)
	return nil
}

func (s *attributeSet) get(name string) *Attribute {
	i, ok := s.byName[name]
	if !ok {
		return nil
	}
	return s.list[i]
}

// Attribute is a property of an entity or relationship. An attribute with
// children is composite.
type Attribute struct {
	Name        string
	Key         bool
	Derived     bool
	Multivalued bool
	DataType    DataType
	// Description is the phrase used for the attribute in prose, e.g.
	// "birth date" for an attribute named bdate.
	Description string

	children attributeSet
}

// NewAttribute returns an attribute with the given name.
func NewAttribute(name string) *Attribute {
	return &Attribute{Name: name}
}

// AddChild adds a component to a composite attribute.
func (a *Attribute) AddChild(c *Attribute) error {
	return a.children.add(a.Name, c)
}

// Children returns the components in declaration order.
func (a *Attribute) Children() []*Attribute { return a.children.list }

// Child returns the named component, or nil.
func (a *Attribute) Child(name string) *Attribute { return a.children.get(name) }

// Composite reports whether the attribute has components.
func (a *Attribute) Composite() bool { return len(a.children.list) > 0 }

// Entity is a named set of attributes.
type Entity struct {
	Name string
	Weak bool

	attrs attributeSet
}

// NewEntity returns an entity with the given name.
func NewEntity(name string) *Entity {
	return &Entity{Name: name}
}

// AddAttribute adds an attribute to the entity.
func (e *Entity) AddAttribute(a *Attribute) error {
	return e.attrs.add(e.Name, a)
}

// Attributes returns the attributes in declaration order.
func (e *Entity) Attributes() []*Attribute { return e.attrs.list }

// Attribute returns the named top-level attribute, or nil.
func (e *Entity) Attribute(name string) *Attribute { return e.attrs.get(name) }

// Keys returns the key attributes.
func (e *Entity) Keys() []*Attribute {
	var out []*Attribute
	for _, a := range e.attrs.list {
		if a.Key {
			out = append(out, a)
		}
	}
	return out
}

// Many is the unbounded maximum cardinality.
const Many = -1

// Cardinality is the (min, max) participation of an entity in a
// relationship. Max is Many for unbounded.
type Cardinality struct {
	Min int
	Max int
}

var (
	ZeroOrOne  = Cardinality{Min: 0, Max: 1}
	ExactlyOne = Cardinality{Min: 1, Max: 1}
	ZeroOrMany = Cardinality{Min: 0, Max: Many}
	OneOrMany  = Cardinality{Min: 1, Max: Many}
)

// Total reports total participation.
func (c Cardinality) Total() bool { return c.Min >= 1 }

func (c Cardinality) String() string {
	hi := "N"
	if c.Max != Many {
		hi = strconv.Itoa(c.Max)
	}
	return fmt.Sprintf("%d..%s", c.Min, hi)
}

// ParseCardinality parses "min..max" where max may be N or *.
func ParseCardinality(s string) (Cardinality, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "..")
	if !ok {
		return Cardinality{}, &SchemaError{Code: ErrCodeInvalid, Name: s, Message: "cardinality must look like min..max"}
	}
	min, err := strconv.Atoi(lo)
	if err != nil || min < 0 {
		return Cardinality{}, &SchemaError{Code: ErrCodeInvalid, Name: s, Message: "bad minimum"}
	}
	c := Cardinality{Min: min, Max: Many}
	if hi != "N" && hi != "n" && hi != "*" {
		max, err := strconv.Atoi(hi)
		if err != nil || max < 1 || max < min {
			return Cardinality{}, &SchemaError{Code: ErrCodeInvalid, Name: s, Message: "bad maximum"}
		}
		c.Max = max
	}
	return c, nil
}

// Edge links a relationship to one participating entity.
type Edge struct {
	Entity      string
	Role        string
	Cardinality Cardinality
}

// Relationship associates two entities. Both edges may name the same
// entity, in which case roles tell the sides apart.
type Relationship struct {
	Name  string
	Edges [2]Edge
	// Phrase is the verb phrase used in prose ("works for"). Empty means
	// the humanized name.
	Phrase string

	attrs attributeSet
}

// NewRelationship returns a relationship between two edges.
func NewRelationship(name string, left, right Edge) *Relationship {
	return &Relationship{Name: name, Edges: [2]Edge{left, right}}
}

// AddAttribute adds an attribute to the relationship.
func (r *Relationship) AddAttribute(a *Attribute) error {
	return r.attrs.add(r.Name, a)
}

// Attributes returns the attributes in declaration order.
func (r *Relationship) Attributes() []*Attribute { return r.attrs.list }

// Attribute returns the named attribute, or nil.
func (r *Relationship) Attribute(name string) *Attribute { return r.attrs.get(name) }

// Recursive reports whether both edges name the same entity.
func (r *Relationship) Recursive() bool {
	return r.Edges[0].Entity == r.Edges[1].Entity
}

// EdgeIndex returns the index of the edge for entity, or -1. For a
// recursive relationship it returns 0.
func (r *Relationship) EdgeIndex(entity string) int {
	for i, e := range r.Edges {
		if e.Entity == entity {
			return i
		}
	}
	return -1
}

// Schema is an ER diagram: entities and relationships with unique names
// across both.
type Schema struct {
	entities      []*Entity
	relationships []*Relationship
	entityIdx     map[string]int
	relIdx        map[string]int
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{entityIdx: make(map[string]int), relIdx: make(map[string]int)}
}

func (s *Schema) claim(name string) error {
	if name == "" {
		return &SchemaError{Code: ErrCodeInvalid, Message: "empty name"}
	}
	if strings.Contains(name, ".") {
		return &SchemaError{Code: ErrCodeInvalid, Name: name, Message: "names cannot contain dots"}
	}
	_, isEntity := s.entityIdx[name]
	_, isRel := s.relIdx[name]
	if isEntity || isRel {
		return &SchemaError{Code: ErrCodeDuplicate, Name: name, Message: "name already used"}
	}
	return nil
}

// AddEntity adds an entity.
func (s *Schema) AddEntity(e *Entity) error {
	if err := s.claim(e.Name); err != nil {
		return err
	}
	s.entityIdx[e.Name] = len(s.entities)
	s.entities = append(s.entities, e)
	return nil
}

// AddRelationship adds a relationship whose edges name existing entities.
func (s *Schema) AddRelationship(r *Relationship) error {
	if err := s.claim(r.Name); err != nil {
		return err
	}
	for _, e := range r.Edges {
		if s.Entity(e.Entity) == nil {
			return &SchemaError{Code: ErrCodeUnknownEntity, Name: e.Entity, Message: "relationship " + r.Name + " references unknown entity"}
		}
	}
	if r.Recursive() && (r.Edges[0].Role == "" || r.Edges[0].Role == r.Edges[1].Role) {
		return &SchemaError{Code: ErrCodeInvalid, Name: r.Name, Message: "recursive relationship needs distinct roles"}
	}
	s.relIdx[r.Name] = len(s.relationships)
	s.relationships = append(s.relationships, r)
	return nil
}

// Entities returns the entities in declaration order.
func (s *Schema) Entities() []*Entity { return s.entities }

// Relationships returns the relationships in declaration order.
func (s *Schema) Relationships() []*Relationship { return s.relationships }

// Entity returns the named entity, or nil.
func (s *Schema) Entity(name string) *Entity {
	i, ok := s.entityIdx[name]
	if !ok {
		return nil
	}
	return s.entities[i]
}

// Relationship returns the named relationship, or nil.
func (s *Schema) Relationship(name string) *Relationship {
	i, ok := s.relIdx[name]
	if !ok {
		return nil
	}
	return s.relationships[i]
}

// RelationshipsOf returns the relationships an entity participates in.
func (s *Schema) RelationshipsOf(entity string) []*Relationship {
	var out []*Relationship
	for _, r := range s.relationships {
		if r.EdgeIndex(entity) >= 0 {
			out = append(out, r)
		}
	}
	return out
}

// LookupAttribute resolves a qualified attribute name such as
// "Employee.address.city". It returns the attribute and the name of the
// entity or relationship that owns it.
func (s *Schema) LookupAttribute(qualified string) (*Attribute, string, error) {
	parts := strings.Split(qualified, ".")
	if len(parts) < 2 {
		return nil, "", &SchemaError{Code: ErrCodeUnqualified, Name: qualified, Message: "attribute names must be qualified by their owner"}
	}
	owner := parts[0]
	var a *Attribute
	if e := s.Entity(owner); e != nil {
		a = e.Attribute(parts[1])
	} else if r := s.Relationship(owner); r != nil {
		a = r.Attribute(parts[1])
	} else {
		return nil, "", &SchemaError{Code: ErrCodeUnknownEntity, Name: owner, Message: "no entity or relationship with this name"}
	}
	for _, p := range parts[2:] {
		if a == nil {
			break
		}
		a = a.Child(p)
	}
	if a == nil {
		return nil, "", &SchemaError{Code: ErrCodeUnknownAttribute, Name: qualified, Message: "no such attribute"}
	}
	return a, owner, nil
}
