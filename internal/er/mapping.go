package er

import (
	"strings"
)

// JoinKind says how a relationship is represented in tables.
type JoinKind string

const (
	// JoinMerged means the relationship is folded into one entity's table
	// and no join is needed.
	JoinMerged JoinKind = "merged"
	// JoinForeignKey means one table references the other's key.
	JoinForeignKey JoinKind = "foreign-key"
	// JoinLookupTable means a separate table pairs the two keys.
	JoinLookupTable JoinKind = "lookup-table"
)

// KeyPair is a referenced key column and the column that references it,
// both qualified as table.column.
type KeyPair struct {
	PK string
	FK string
}

// Join describes the SQL realization of one relationship.
type Join struct {
	Kind JoinKind
	// Entity is the absorbing entity of a merged relationship.
	Entity string
	// Table is the lookup table of a lookup-table relationship.
	Table string
	// Keys holds one pair for a foreign key and two for a lookup table,
	// in edge order.
	Keys []KeyPair
}

// MergedJoin folds a relationship into entity's table.
func MergedJoin(entity string) Join {
	return Join{Kind: JoinMerged, Entity: entity}
}

// ForeignKeyJoin realizes a relationship as fk referencing pk.
func ForeignKeyJoin(pk, fk string) Join {
	return Join{Kind: JoinForeignKey, Keys: []KeyPair{{PK: Column(pk), FK: Column(fk)}}}
}

// LookupJoin realizes a relationship as a table pairing two keys.
func LookupJoin(table string, left, right KeyPair) Join {
	norm := func(k KeyPair) KeyPair { return KeyPair{PK: Column(k.PK), FK: Column(k.FK)} }
	return Join{Kind: JoinLookupTable, Table: Column(table), Keys: []KeyPair{norm(left), norm(right)}}
}

// Column normalizes an SQL identifier. SQL names compare case-insensitively.
func Column(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SplitColumn splits "table.column".
func SplitColumn(qualified string) (table, column string, err error) {
	table, column, ok := strings.Cut(qualified, ".")
	if !ok || table == "" || column == "" || strings.Contains(column, ".") {
		return "", "", &SchemaError{Code: ErrCodeUnqualified, Name: qualified, Message: "columns must be written table.column"}
	}
	return table, column, nil
}

// Mapping binds schema attributes to table columns and relationships to
// joins. Attribute-to-column is one-to-one, and the table-to-entity map is
// derived from it.
type Mapping struct {
	schema      *Schema
	attrToCol   map[string]string
	colToAttr   map[string]string
	attrOrder   []string
	tableEntity map[string]string
	entityTable map[string]string
	joins       map[string]Join
	joinOrder   []string
}

// NewMapping returns an empty mapping for schema.
func NewMapping(s *Schema) *Mapping {
	return &Mapping{
		schema:      s,
		attrToCol:   make(map[string]string),
		colToAttr:   make(map[string]string),
		tableEntity: make(map[string]string),
		entityTable: make(map[string]string),
		joins:       make(map[string]Join),
	}
}

// Schema returns the schema the mapping refers to.
func (m *Mapping) Schema() *Schema { return m.schema }

// MapAttribute binds a qualified attribute to a qualified column.
func (m *Mapping) MapAttribute(attr, column string) error {
	column = Column(column)
	table, _, err := SplitColumn(column)
	if err != nil {
		return err
	}
	_, owner, err := m.schema.LookupAttribute(attr)
	if err != nil {
		return err
	}
	if prev, dup := m.attrToCol[attr]; dup {
		return &SchemaError{Code: ErrCodeConflict, Name: attr, Message: "already mapped to " + prev}
	}
	if prev, dup := m.colToAttr[column]; dup {
		return &SchemaError{Code: ErrCodeConflict, Name: column, Message: "already mapped from " + prev}
	}

	if m.schema.Entity(owner) != nil {
		if prev, ok := m.tableEntity[table]; ok && prev != owner {
			return &SchemaError{Code: ErrCodeConflict, Name: table, Message: "table holds attributes of both " + prev + " and " + owner}
		}
		if prev, ok := m.entityTable[owner]; ok && prev != table {
			return &SchemaError{Code: ErrCodeConflict, Name: owner, Message: "entity spread over tables " + prev + " and " + table}
		}
		m.tableEntity[table] = owner
		m.entityTable[owner] = table
	}

	m.attrToCol[attr] = column
	m.colToAttr[column] = attr
	m.attrOrder = append(m.attrOrder, attr)
	return nil
}

// MapRelationship binds a relationship to its join.
func (m *Mapping) MapRelationship(name string, j Join) error {
	r := m.schema.Relationship(name)
	if r == nil {
		return &SchemaError{Code: ErrCodeUnknownEntity, Name: name, Message: "no such relationship"}
	}
	if _, dup := m.joins[name]; dup {
		return &SchemaError{Code: ErrCodeConflict, Name: name, Message: "relationship already mapped"}
	}
	if err := checkJoin(r, j); err != nil {
		return err
	}
	m.joins[name] = j
	m.joinOrder = append(m.joinOrder, name)
	return nil
}

func checkJoin(r *Relationship, j Join) error {
	bad := func(msg string) error {
		return &SchemaError{Code: ErrCodeInvalidJoin, Name: r.Name, Message: msg}
	}
	switch j.Kind {
	case JoinMerged:
		if r.EdgeIndex(j.Entity) < 0 {
			return bad("merged into an entity that does not participate")
		}
		if len(j.Keys) != 0 {
			return bad("merged joins have no keys")
		}
	case JoinForeignKey:
		if len(j.Keys) != 1 {
			return bad("foreign-key joins need exactly one key pair")
		}
	case JoinLookupTable:
		if j.Table == "" || len(j.Keys) != 2 {
			return bad("lookup-table joins need a table and two key pairs")
		}
		for _, k := range j.Keys {
			if t, _, err := SplitColumn(k.FK); err != nil || t != j.Table {
				return bad("lookup key " + k.FK + " is not a column of " + j.Table)
			}
		}
	default:
		return bad("unknown join kind " + string(j.Kind))
	}
	for _, k := range j.Keys {
		if _, _, err := SplitColumn(k.PK); err != nil {
			return err
		}
		if _, _, err := SplitColumn(k.FK); err != nil {
			return err
		}
	}
	return nil
}

// ColumnFor returns the column of a qualified attribute.
func (m *Mapping) ColumnFor(attr string) (string, bool) {
	c, ok := m.attrToCol[attr]
	return c, ok
}

// AttributeFor returns the qualified attribute of a column.
func (m *Mapping) AttributeFor(column string) (string, bool) {
	a, ok := m.colToAttr[Column(column)]
	return a, ok
}

// EntityForTable returns the entity stored in table.
func (m *Mapping) EntityForTable(table string) (string, bool) {
	e, ok := m.tableEntity[Column(table)]
	return e, ok
}

// TableForEntity returns the table storing entity.
func (m *Mapping) TableForEntity(entity string) (string, bool) {
	t, ok := m.entityTable[entity]
	return t, ok
}

// Join returns the join of a relationship.
func (m *Mapping) Join(rel string) (Join, bool) {
	j, ok := m.joins[rel]
	return j, ok
}

// LookupRelationship returns the relationship whose lookup table is table.
func (m *Mapping) LookupRelationship(table string) (string, bool) {
	table = Column(table)
	for _, r := range m.joinOrder {
		if j := m.joins[r]; j.Kind == JoinLookupTable && j.Table == table {
			return r, true
		}
	}
	return "", false
}

// IsJoinColumn reports whether column is a key column of some join.
func (m *Mapping) IsJoinColumn(column string) bool {
	column = Column(column)
	for _, r := range m.joinOrder {
		for _, k := range m.joins[r].Keys {
			if k.PK == column || k.FK == column {
				return true
			}
		}
	}
	return false
}

// Attributes returns mapped attributes in mapping order.
func (m *Mapping) Attributes() []string { return m.attrOrder }

// Relationships returns mapped relationships in mapping order.
func (m *Mapping) Relationships() []string { return m.joinOrder }

// Tables returns every table named by the mapping, entity tables first.
func (m *Mapping) Tables() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, a := range m.attrOrder {
		t, _, _ := SplitColumn(m.attrToCol[a])
		add(t)
	}
	for _, r := range m.joinOrder {
		add(m.joins[r].Table)
	}
	return out
}

// Validate checks that the mapping is complete: every relationship has a
// join, every mapped entity has a key, and join columns are mapped or
// belong to a lookup table.
func (m *Mapping) Validate() error {
	for _, r := range m.schema.Relationships() {
		j, ok := m.joins[r.Name]
		if !ok {
			return &SchemaError{Code: ErrCodeUnmapped, Name: r.Name, Message: "relationship has no join"}
		}
		for _, k := range j.Keys {
			if _, ok := m.colToAttr[k.PK]; !ok {
				return &SchemaError{Code: ErrCodeInvalidJoin, Name: r.Name, Message: "key column " + k.PK + " is not mapped"}
			}
			if j.Kind == JoinForeignKey {
				fkTable, _, _ := SplitColumn(k.FK)
				if _, ok := m.tableEntity[fkTable]; !ok {
					return &SchemaError{Code: ErrCodeInvalidJoin, Name: r.Name, Message: "foreign key table " + fkTable + " holds no entity"}
				}
			}
		}
	}
	for _, e := range m.schema.Entities() {
		if _, mapped := m.entityTable[e.Name]; mapped && len(e.Keys()) == 0 && !e.Weak {
			return &SchemaError{Code: ErrCodeMissingKey, Name: e.Name, Message: "entity has no key attribute"}
		}
	}
	return nil
}
