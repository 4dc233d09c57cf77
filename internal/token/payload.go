package token

import (
	"github.com/xwb1989/sqlparser"
)

// Kind identifies a payload variant.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindRoot
	KindWrapped
	KindSequence
	KindLiteral
	KindComparison
	KindAttribute
	KindTableEntity
	KindInRelationship
	KindAllAttributes
)

var kindNames = map[Kind]string{
	KindInvalid:        "invalid",
	KindRoot:           "root",
	KindWrapped:        "wrapped",
	KindSequence:       "sequence",
	KindLiteral:        "literal",
	KindComparison:     "comparison",
	KindAttribute:      "attribute",
	KindTableEntity:    "table_entity",
	KindInRelationship: "in_relationship",
	KindAllAttributes:  "all_attributes",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "invalid"
}

// Payload is the sealed set of token variants.
type Payload interface {
	Kind() Kind
	payload()
}

// Root is the payload of the tree's unique root token.
type Root struct{}

// Scope locates a token inside the top-level WHERE conjunction it came
// from. Index is the conjunct's position and Start its byte offset in the
// rendered WHERE text. NoScope marks tokens outside the WHERE clause.
type Scope struct {
	Index int
	Start int
}

// NoScope is the scope of tokens that are not part of a WHERE conjunct.
var NoScope = Scope{Index: -1, Start: -1}

// Wrapped holds an SQL syntax node that has not been expanded yet.
type Wrapped struct {
	Node  sqlparser.SQLNode
	Scope Scope
}

// Role names the grammatical job of a sequence.
type Role string

const (
	RoleSelect     Role = "select"
	RoleProjection Role = "projection"
	RoleFrom       Role = "from"
	RoleWhere      Role = "where"
	RoleAnd        Role = "and"
	RoleOr         Role = "or"
	RoleNot        Role = "not"
	RoleList       Role = "list"
	RoleBetween    Role = "between"
	RoleIs         Role = "is"
	RoleExists     Role = "exists"
	RolePhrase     Role = "phrase"
)

// Sequence is an ordered container. Op carries the operator for roles that
// need one (between, is). Lowered marks containers already turned into
// prose.
type Sequence struct {
	Role    Role
	Op      string
	Lowered bool
}

// POS is the part of speech of a literal.
type POS string

const (
	POSNoun  POS = "noun"
	POSVerb  POS = "verb"
	POSAdj   POS = "adj"
	POSPrep  POS = "prep"
	POSDet   POS = "det"
	POSConj  POS = "conj"
	POSNum   POS = "num"
	POSValue POS = "value"
	POSBool  POS = "bool"
	POSPunct POS = "punct"
)

// Literal is output text. Formatted marks values already rewritten for
// display.
type Literal struct {
	Text      string
	POS       POS
	Formatted bool
}

// Comparison is a binary operator token. It always has zero or two
// children.
type Comparison struct {
	Op string
}

// Attribute is a column reference. Table, Attribute, Entity and DataType
// are filled in once the reference is resolved against the schema.
type Attribute struct {
	Alias     string
	Table     string
	Column    string
	Attribute string
	Entity    string
	DataType  string
	Resolved  bool
}

// TableEntity is a FROM-clause table reference and the entity it maps to.
type TableEntity struct {
	Table    string
	Alias    string
	Entity   string
	Resolved bool
}

// Name returns the name the table is referred to by: its alias, or the
// table name when unaliased.
func (p TableEntity) Name() string {
	if p.Alias != "" {
		return p.Alias
	}
	return p.Table
}

// InRelationship records that two table-entity tokens are joined through a
// relationship. Left and Right point at the participating tokens in the
// order of the relationship's edges; the tree does not own them.
type InRelationship struct {
	Relationship string
	Left         ID
	Right        ID
	LeftRole     string
	RightRole    string
	LeftTotal    bool
	RightTotal   bool
}

// AllAttributes is a projected star, optionally qualified by an alias.
type AllAttributes struct {
	Alias string
}

func (Root) Kind() Kind           { return KindRoot }
func (Wrapped) Kind() Kind        { return KindWrapped }
func (Sequence) Kind() Kind       { return KindSequence }
func (Literal) Kind() Kind        { return KindLiteral }
func (Comparison) Kind() Kind     { return KindComparison }
func (Attribute) Kind() Kind      { return KindAttribute }
func (TableEntity) Kind() Kind    { return KindTableEntity }
func (InRelationship) Kind() Kind { return KindInRelationship }
func (AllAttributes) Kind() Kind  { return KindAllAttributes }

func (Root) payload()           {}
func (Wrapped) payload()        {}
func (Sequence) payload()       {}
func (Literal) payload()        {}
func (Comparison) payload()     {}
func (Attribute) payload()      {}
func (TableEntity) payload()    {}
func (InRelationship) payload() {}
func (AllAttributes) payload()  {}
