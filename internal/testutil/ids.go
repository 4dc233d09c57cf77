package testutil

import "fmt"

// SequentialIDs hands out session ids "session-1", "session-2", ... so
// stored histories and golden files are reproducible.
type SequentialIDs struct {
	prefix string
	n      int
}

// NewSequentialIDs returns a generator using prefix. An empty prefix means
// "session".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "session"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
