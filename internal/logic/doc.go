// Package logic is the small relational engine behind rule matching.
//
// A FactSet holds ground facts for a declared vocabulary of predicates.
// Clauses are Horn rules (head :- body) over those predicates; an
// Evaluator materializes their consequences and answers conjunctive
// queries with bindings for the query's named variables.
//
// Evaluation is deterministic: bindings come back in the order their
// first derivation was found, which follows fact insertion order and
// atom order. Rules that depend on "the first match" can rely on it.
//
// Negation is only permitted in queries, never in clause bodies, and
// every variable of a negated atom must be bound by a positive atom of
// the same query. The wildcard variable "_" matches anything and is
// never bound.
package logic
