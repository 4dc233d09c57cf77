// Package store keeps a durable SQLite log of translation work.
//
// The log records:
//   - Sessions: one row per translated query, with its sentence or error
//   - Firings: every rule invocation the scheduler reported for a session
//   - Cluster runs: batch clustering reports and their ranked groups
//
// # Ordering
//
// Rows are stamped from a logical clock (seq), never wall time. Reads are
// ordered by seq so a history reads back the way it was produced. The clock
// resumes from the largest stored seq when a database is reopened.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON: firings and cluster groups cascade with their owner
package store
