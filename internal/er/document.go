package er

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"
)

// Document is the serialized form of a schema plus its mapping. The same
// shape is read from YAML and CUE.
type Document struct {
	Entities      []EntityDoc       `yaml:"entities" json:"entities"`
	Relationships []RelationshipDoc `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	Mapping       MappingDoc        `yaml:"mapping" json:"mapping"`
}

type EntityDoc struct {
	Name       string         `yaml:"name" json:"name"`
	Weak       bool           `yaml:"weak,omitempty" json:"weak,omitempty"`
	Attributes []AttributeDoc `yaml:"attributes" json:"attributes"`
}

type AttributeDoc struct {
	Name        string         `yaml:"name" json:"name"`
	Key         bool           `yaml:"key,omitempty" json:"key,omitempty"`
	Derived     bool           `yaml:"derived,omitempty" json:"derived,omitempty"`
	Multivalued bool           `yaml:"multivalued,omitempty" json:"multivalued,omitempty"`
	Type        string         `yaml:"type,omitempty" json:"type,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Children    []AttributeDoc `yaml:"children,omitempty" json:"children,omitempty"`
}

type RelationshipDoc struct {
	Name       string         `yaml:"name" json:"name"`
	Phrase     string         `yaml:"phrase,omitempty" json:"phrase,omitempty"`
	Edges      []EdgeDoc      `yaml:"edges" json:"edges"`
	Attributes []AttributeDoc `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

type EdgeDoc struct {
	Entity      string `yaml:"entity" json:"entity"`
	Role        string `yaml:"role,omitempty" json:"role,omitempty"`
	Cardinality string `yaml:"cardinality" json:"cardinality"`
}

type MappingDoc struct {
	Columns []ColumnDoc `yaml:"columns" json:"columns"`
	Joins   []JoinDoc   `yaml:"joins,omitempty" json:"joins,omitempty"`
}

type ColumnDoc struct {
	Attribute string `yaml:"attribute" json:"attribute"`
	Column    string `yaml:"column" json:"column"`
}

type JoinDoc struct {
	Relationship string       `yaml:"relationship" json:"relationship"`
	Kind         string       `yaml:"kind" json:"kind"`
	Entity       string       `yaml:"entity,omitempty" json:"entity,omitempty"`
	Table        string       `yaml:"table,omitempty" json:"table,omitempty"`
	Keys         []KeyPairDoc `yaml:"keys,omitempty" json:"keys,omitempty"`
}

type KeyPairDoc struct {
	PK string `yaml:"pk" json:"pk"`
	FK string `yaml:"fk" json:"fk"`
}

// ToDocument serializes a schema and mapping.
func ToDocument(s *Schema, m *Mapping) Document {
	var doc Document
	for _, e := range s.Entities() {
		doc.Entities = append(doc.Entities, EntityDoc{
			Name:       e.Name,
			Weak:       e.Weak,
			Attributes: attributeDocs(e.Attributes()),
		})
	}
	for _, r := range s.Relationships() {
		rd := RelationshipDoc{Name: r.Name, Phrase: r.Phrase, Attributes: attributeDocs(r.Attributes())}
		for _, e := range r.Edges {
			rd.Edges = append(rd.Edges, EdgeDoc{Entity: e.Entity, Role: e.Role, Cardinality: e.Cardinality.String()})
		}
		doc.Relationships = append(doc.Relationships, rd)
	}
	if m == nil {
		return doc
	}
	for _, a := range m.Attributes() {
		col, _ := m.ColumnFor(a)
		doc.Mapping.Columns = append(doc.Mapping.Columns, ColumnDoc{Attribute: a, Column: col})
	}
	for _, name := range m.Relationships() {
		j, _ := m.Join(name)
		jd := JoinDoc{Relationship: name, Kind: string(j.Kind), Entity: j.Entity, Table: j.Table}
		for _, k := range j.Keys {
			jd.Keys = append(jd.Keys, KeyPairDoc(k))
		}
		doc.Mapping.Joins = append(doc.Mapping.Joins, jd)
	}
	return doc
}

func attributeDocs(attrs []*Attribute) []AttributeDoc {
	var out []AttributeDoc
	for _, a := range attrs {
		out = append(out, AttributeDoc{
			Name:        a.Name,
			Key:         a.Key,
			Derived:     a.Derived,
			Multivalued: a.Multivalued,
			Type:        string(a.DataType),
			Description: a.Description,
			Children:    attributeDocs(a.Children()),
		})
	}
	return out
}

// FromDocument builds and validates a schema and mapping.
func FromDocument(doc Document) (*Schema, *Mapping, error) {
	s := NewSchema()
	for _, ed := range doc.Entities {
		e := NewEntity(ed.Name)
		e.Weak = ed.Weak
		for _, ad := range ed.Attributes {
			a, err := attributeFromDoc(ad)
			if err != nil {
				return nil, nil, err
			}
			if err := e.AddAttribute(a); err != nil {
				return nil, nil, err
			}
		}
		if err := s.AddEntity(e); err != nil {
			return nil, nil, err
		}
	}
	for _, rd := range doc.Relationships {
		if len(rd.Edges) != 2 {
			return nil, nil, &SchemaError{Code: ErrCodeInvalid, Name: rd.Name, Message: fmt.Sprintf("relationships need 2 edges, got %d", len(rd.Edges))}
		}
		var edges [2]Edge
		for i, ed := range rd.Edges {
			c, err := ParseCardinality(ed.Cardinality)
			if err != nil {
				return nil, nil, err
			}
			edges[i] = Edge{Entity: ed.Entity, Role: ed.Role, Cardinality: c}
		}
		r := NewRelationship(rd.Name, edges[0], edges[1])
		r.Phrase = rd.Phrase
		for _, ad := range rd.Attributes {
			a, err := attributeFromDoc(ad)
			if err != nil {
				return nil, nil, err
			}
			if err := r.AddAttribute(a); err != nil {
				return nil, nil, err
			}
		}
		if err := s.AddRelationship(r); err != nil {
			return nil, nil, err
		}
	}

	m := NewMapping(s)
	for _, cd := range doc.Mapping.Columns {
		if err := m.MapAttribute(cd.Attribute, cd.Column); err != nil {
			return nil, nil, err
		}
	}
	for _, jd := range doc.Mapping.Joins {
		j := Join{Kind: JoinKind(jd.Kind), Entity: jd.Entity, Table: Column(jd.Table)}
		for _, k := range jd.Keys {
			j.Keys = append(j.Keys, KeyPair{PK: Column(k.PK), FK: Column(k.FK)})
		}
		if err := m.MapRelationship(jd.Relationship, j); err != nil {
			return nil, nil, err
		}
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	return s, m, nil
}

func attributeFromDoc(ad AttributeDoc) (*Attribute, error) {
	dt, err := ParseDataType(ad.Type)
	if err != nil {
		return nil, err
	}
	a := &Attribute{
		Name:        ad.Name,
		Key:         ad.Key,
		Derived:     ad.Derived,
		Multivalued: ad.Multivalued,
		DataType:    dt,
		Description: ad.Description,
	}
	for _, cd := range ad.Children {
		c, err := attributeFromDoc(cd)
		if err != nil {
			return nil, err
		}
		if err := a.AddChild(c); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// MarshalYAML serializes a schema and mapping to YAML.
func MarshalYAML(s *Schema, m *Mapping) ([]byte, error) {
	data, err := yaml.Marshal(ToDocument(s, m))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}

// UnmarshalYAML parses a YAML schema document.
func UnmarshalYAML(data []byte) (*Schema, *Mapping, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	return FromDocument(doc)
}

// DecodeCUE parses a CUE schema document. The CUE value must unify to the
// Document shape.
func DecodeCUE(data []byte, filename string) (*Schema, *Mapping, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	return decodeCUEValue(v)
}

// LoadCUEDir loads every CUE file of the package in dir as one document.
func LoadCUEDir(dir string) (*Schema, *Mapping, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, nil, fmt.Errorf("load cue %s: no instances", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, nil, fmt.Errorf("load cue %s: %w", dir, err)
	}
	v := cuecontext.New().BuildInstance(instances[0])
	return decodeCUEValue(v)
}

func decodeCUEValue(v cue.Value) (*Schema, *Mapping, error) {
	if err := v.Err(); err != nil {
		return nil, nil, fmt.Errorf("build cue value: %w", err)
	}
	var doc Document
	if err := v.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("decode cue schema: %w", err)
	}
	return FromDocument(doc)
}

// LoadFile reads a schema document, choosing the format by extension.
// Directories are loaded as CUE packages.
func LoadFile(path string) (*Schema, *Mapping, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat schema: %w", err)
	}
	if info.IsDir() {
		return LoadCUEDir(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read schema: %w", err)
	}
	switch filepath.Ext(path) {
	case ".cue":
		return DecodeCUE(data, path)
	case ".yaml", ".yml":
		return UnmarshalYAML(data)
	default:
		return nil, nil, &SchemaError{Code: ErrCodeInvalid, Name: path, Message: "schema files must be .yaml, .yml or .cue"}
	}
}

// WriteFile writes a schema document in the format implied by path.
func WriteFile(path string, s *Schema, m *Mapping) error {
	var data []byte
	var err error
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = MarshalYAML(s, m)
	case ".cue":
		data, err = MarshalCUE(s, m)
	default:
		return &SchemaError{Code: ErrCodeInvalid, Name: path, Message: "schema files must be .yaml, .yml or .cue"}
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return nil
}

// MarshalCUE serializes a schema and mapping as CUE source.
func MarshalCUE(s *Schema, m *Mapping) ([]byte, error) {
	v := cuecontext.New().Encode(ToDocument(s, m))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("encode cue schema: %w", err)
	}
	syn := v.Syntax(cue.Concrete(true))
	src, err := format.Node(syn)
	if err != nil {
		return nil, fmt.Errorf("format cue schema: %w", err)
	}
	return src, nil
}
