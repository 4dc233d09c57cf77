// Package facts projects a token tree and an ER schema into logic facts.
//
// The vocabulary is fixed: every predicate and its arity is declared up
// front, and rules may only query what is declared here or derived by
// their own clauses. Tree facts are recomputed from scratch on every
// projection; schema facts are computed once per projector.
package facts

import (
	"github.com/roach88/sqltutor/internal/logic"
)

// Tree predicates.
const (
	PredToken      = "token"          // token(T, Kind)
	PredRoot       = "root"           // root(T)
	PredExtra      = "extra"          // extra(T)
	PredAttached   = "attached"       // attached(T)
	PredParent     = "parent"         // parent(P, C, Pos)
	PredChildCount = "child_count"    // child_count(T, N)
	PredLastChild  = "last_child"     // last_child(P, C)
	PredAncestor   = "ancestor"       // ancestor(A, D, Dist)
	PredNext       = "next"           // next(A, B): B follows A in pre-order
	PredDone       = "done"           // done(T): nothing left to lower
	PredPOS        = "pos"            // pos(T, PartOfSpeech)
	PredText       = "text"           // text(T, Text)
	PredScope      = "scope"          // scope(T, ConjunctIndex)
	PredAST        = "ast"            // ast(T, NodeKind)
	PredASTClass   = "ast_class"      // ast_class(T, SyntaxClass)
	PredRole       = "role"           // role(T, Role)
	PredOp         = "op"             // op(T, Operator) for sequences
	PredLowered    = "lowered"        // lowered(T)
	PredFormatted  = "formatted"      // formatted(T)
	PredComparison = "comparison"     // comparison(T, Op)
	PredTableRef   = "table_ref"      // table_ref(T, Table, Name)
	PredEntityRef  = "entity_ref"     // entity_ref(T, Entity)
	PredResolved   = "resolved"       // resolved(T)
	PredAttrRef    = "attribute_ref"  // attribute_ref(T, Alias, Column)
	PredColumnOf   = "column_of"      // column_of(T, "table.column")
	PredRefersAttr = "refers_attr"    // refers_attr(T, QualifiedAttribute)
	PredAttrType   = "attr_type"      // attr_type(T, DataType)
	PredAllAttrs   = "all_attributes" // all_attributes(T, Alias)
	PredInRel      = "in_rel"         // in_rel(T, Relationship, Left, Right)
	PredTotalSide  = "participation"  // participation(T, "left"|"right")
	PredLabel      = "label"          // label(T, Singular, Plural)
)

// Schema predicates.
const (
	PredEntity       = "entity"       // entity(E)
	PredAttribute    = "attribute"    // attribute(Owner, QualifiedAttribute)
	PredKey          = "key"          // key(A)
	PredDerived      = "derived"      // derived(A)
	PredMultivalued  = "multivalued"  // multivalued(A)
	PredComposite    = "composite"    // composite(A)
	PredComponent    = "component"    // component(Parent, Child)
	PredDataType     = "data_type"    // data_type(A, Type)
	PredRelationship = "relationship" // relationship(R, E1, E2)
	PredEdge         = "edge"         // edge(R, E, Role, Min, Max)
	PredTotal        = "total"        // total(R, EdgeIndex)
	PredColumnAttr   = "column_attr"  // column_attr(Column, A)
	PredTableEntity  = "table_entity" // table_entity(Table, E)
	PredJoinKind     = "join_kind"    // join_kind(R, Kind)
	PredFK           = "fk"           // fk(R, PK, FK)
	PredLookup       = "lookup"       // lookup(R, Table)
	PredLookupKey    = "lookup_key"   // lookup_key(R, Index, PK, FK)
)

var vocabulary = []logic.Predicate{
	{Name: PredToken, Arity: 2},
	{Name: PredRoot, Arity: 1},
	{Name: PredExtra, Arity: 1},
	{Name: PredAttached, Arity: 1},
	{Name: PredParent, Arity: 3},
	{Name: PredChildCount, Arity: 2},
	{Name: PredLastChild, Arity: 2},
	{Name: PredAncestor, Arity: 3},
	{Name: PredNext, Arity: 2},
	{Name: PredDone, Arity: 1},
	{Name: PredPOS, Arity: 2},
	{Name: PredText, Arity: 2},
	{Name: PredScope, Arity: 2},
	{Name: PredAST, Arity: 2},
	{Name: PredASTClass, Arity: 2},
	{Name: PredRole, Arity: 2},
	{Name: PredOp, Arity: 2},
	{Name: PredLowered, Arity: 1},
	{Name: PredFormatted, Arity: 1},
	{Name: PredComparison, Arity: 2},
	{Name: PredTableRef, Arity: 3},
	{Name: PredEntityRef, Arity: 2},
	{Name: PredResolved, Arity: 1},
	{Name: PredAttrRef, Arity: 3},
	{Name: PredColumnOf, Arity: 2},
	{Name: PredRefersAttr, Arity: 2},
	{Name: PredAttrType, Arity: 2},
	{Name: PredAllAttrs, Arity: 2},
	{Name: PredInRel, Arity: 4},
	{Name: PredTotalSide, Arity: 2},
	{Name: PredLabel, Arity: 3},

	{Name: PredEntity, Arity: 1},
	{Name: PredAttribute, Arity: 2},
	{Name: PredKey, Arity: 1},
	{Name: PredDerived, Arity: 1},
	{Name: PredMultivalued, Arity: 1},
	{Name: PredComposite, Arity: 1},
	{Name: PredComponent, Arity: 2},
	{Name: PredDataType, Arity: 2},
	{Name: PredRelationship, Arity: 3},
	{Name: PredEdge, Arity: 5},
	{Name: PredTotal, Arity: 2},
	{Name: PredColumnAttr, Arity: 2},
	{Name: PredTableEntity, Arity: 2},
	{Name: PredJoinKind, Arity: 2},
	{Name: PredFK, Arity: 3},
	{Name: PredLookup, Arity: 2},
	{Name: PredLookupKey, Arity: 4},
}

// Vocabulary returns the declared predicates.
func Vocabulary() []logic.Predicate {
	out := make([]logic.Predicate, len(vocabulary))
	copy(out, vocabulary)
	return out
}
