// Package harness runs translation scenarios as executable contract tests.
//
// A scenario names a schema document and a list of queries with the
// sentence or failure each one must produce. Every case runs through the
// real translator; scheduler firings are recorded in a fresh in-memory
// store and read back for trace assertions.
//
// # Scenario Format
//
//	name: company_basics
//	description: "What this scenario validates"
//	schema: ../schemas/company.yaml
//	normalize: true
//	max_rounds: 100
//	cases:
//	  - name: projection
//	    sql: SELECT e.name FROM employee e
//	    expect:
//	      text: Find the name of each employee.
//	    assertions:
//	      - type: rule_fired
//	        rule: lower-projection
//	  - name: grouping
//	    sql: SELECT e.name FROM employee e GROUP BY e.name
//	    expect:
//	      error: unhandled
//
// The schema path is relative to the scenario file. Expected errors are
// the kinds reported by translate.Classify.
//
// # Assertion Types
//
//   - text_contains: the sentence contains text
//   - rule_fired: a rule fired at least once, optionally in one phase
//   - rule_order: rules first fired in the given order
//   - rule_count: a rule fired exactly count times
//   - stored: the session row in the store carries the produced sentence
//
// # Deterministic Testing
//
// Session ids are sequential ("<scenario>-1", "<scenario>-2", ...) and the
// store clock starts at zero, so traces and golden files are reproducible.
package harness
