// Package symbolic runs rewrite rules over a token tree until nothing
// changes.
//
// ARCHITECTURE:
//
// A translation session owns one State: the token tree, the ER schema and
// mapping, the entity labels chosen so far, and any facts rules have
// contributed. The Scheduler drives the State through a fixed sequence of
// phases (analysis, lowering, cleanup). Within a phase:
//
//  1. The fact projector rebuilds the fact set from the current tree.
//  2. Every rule registered for the phase runs in ascending precedence,
//     each against a fresh evaluation of its query.
//  3. If any rule reported a change, the next round starts at 1.
//
// A later phase never re-enters an earlier one.
//
// Scheduling is single-threaded and deterministic: rules with equal
// precedence run in registration order, and query answers come back in
// derivation order. Independent sessions share nothing mutable and may run
// in parallel.
//
// TERMINATION:
//
// The fixpoint loop relies on each rule reporting a change only when it
// made progress. Two guards back that up: a rule that reports a change
// without touching the tree or the state fails with NO_PROGRESS, and
// WithMaxRounds bounds the rounds per phase. The core sets no default
// round limit; hosts pick one.
package symbolic
