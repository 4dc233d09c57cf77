// Package rules is the translation rule library.
//
// Analysis rules expand SQL syntax into tokens, resolve tables and columns
// against the ER mapping, recognize relationship joins, name each table
// reference and tidy literal values. Lowering rules turn tokens into
// phrases bottom-up. Cleanup rules flatten the phrases into one sentence
// and fix its surface form.
//
// Rules match on the fact vocabulary of package facts; derived predicates
// used by a single rule are defined as that rule's clauses.
package rules

import (
	"github.com/roach88/sqltutor/internal/symbolic"
)

// All returns a fresh copy of every rule in registration order.
func All() []*symbolic.Rule {
	return []*symbolic.Rule{
		rejectUnsupported(),
		expandSelect(),
		expandBoolean(),
		expandComparison(),
		expandLeaf(),
		resolveTableEntity(),
		resolveAttribute(),
		detectRelationship(),
		detectLookupRelationship(),
		labelEntities(),
		formatDollarLiteral(),
		formatDateLiteral(),
		dropBooleanLiteral(),
		dropLookupCondition(),
		dropLookupTable(),
		dropTautology(),

		lowerAllAttributes(),
		lowerProjection(),
		lowerNegatedBoolean(),
		lowerBooleanAttribute(),
		lowerComparison(),
		lowerBetween(),
		lowerIs(),
		lowerExists(),
		lowerAttribute(),
		lowerRelationship(),
		lowerConnectives(),
		lowerFrom(),
		lowerSelect(),

		rejectUnhandled(),
		dropEmptySequences(),
		flattenSequences(),
		dedupeAdjacentWords(),
		fixIndefiniteArticle(),
		capitalizeFirst(),
		terminateSentence(),
	}
}

// Default returns a registry holding every rule.
func Default() (*symbolic.Registry, error) {
	return symbolic.NewRegistry(All()...)
}
