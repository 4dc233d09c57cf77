package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the outcome of every case as stable text: the query and
// either its sentence or its failure kind.
func (r *Result) Snapshot() []byte {
	var buf strings.Builder
	for i, c := range r.Cases {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "case: %s\n", c.Name)
		fmt.Fprintf(&buf, "query: %s\n", c.SQL)
		if c.Err != nil {
			fmt.Fprintf(&buf, "error: %s\n", c.ErrorKind)
		} else {
			fmt.Fprintf(&buf, "text: %s\n", c.Text)
		}
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, result.Snapshot())
}
