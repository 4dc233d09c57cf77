package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sqltutor/internal/boolnorm"
)

// NormalizeOptions holds flags for the normalize command.
type NormalizeOptions struct {
	*RootOptions
	File       string
	Equivalent bool
}

// NormalizedQuery is the canonical form of one query.
type NormalizedQuery struct {
	SQL        string `json:"sql"`
	Normalized string `json:"normalized,omitempty"`
	Error      string `json:"error,omitempty"`
}

// EquivalenceResult reports whether two queries share a canonical form.
type EquivalenceResult struct {
	Left       string `json:"left"`
	Right      string `json:"right"`
	Equivalent bool   `json:"equivalent"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize [sql...]",
		Short: "Canonicalize WHERE clauses",
		Long: `Rewrite the WHERE and HAVING clauses of each query into canonical form:
negations are pushed into comparisons, boolean-valued comparisons are
folded, and redundant parentheses are removed.

With --equivalent, exactly two queries are compared instead.

Examples:
  sqltutor normalize "SELECT * FROM t WHERE NOT (a = 1 OR b > 2)"
  sqltutor normalize --file queries.sql
  sqltutor normalize --equivalent "SELECT * FROM t WHERE NOT a < 1" "SELECT * FROM t WHERE a >= 1"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "file of queries, or - for stdin")
	cmd.Flags().BoolVar(&opts.Equivalent, "equivalent", false, "report whether two queries normalize identically")

	return cmd
}

func runNormalize(opts *NormalizeOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	queries, err := collectQueries(args, opts.File, cmd.InOrStdin())
	if err != nil {
		return err
	}
	n := boolnorm.New()

	if opts.Equivalent {
		if len(queries) != 2 {
			return NewExitError(ExitCommandError, fmt.Sprintf("--equivalent needs exactly two queries, got %d", len(queries)))
		}
		same, err := n.Equivalent(queries[0], queries[1])
		if err != nil {
			if outErr := f.Error(ErrCodeNormalize, err.Error(), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitFailure, "failed to compare queries", err)
		}
		if f.JSON() {
			return f.Success(EquivalenceResult{Left: queries[0], Right: queries[1], Equivalent: same})
		}
		if same {
			fmt.Fprintf(f.Writer, "%s equivalent\n", mark(true))
			return nil
		}
		fmt.Fprintf(f.Writer, "%s not equivalent\n", mark(false))
		return NewExitError(ExitFailure, "queries are not equivalent")
	}

	out := make([]NormalizedQuery, 0, len(queries))
	failed := 0
	for _, q := range queries {
		nq := NormalizedQuery{SQL: q}
		canon, err := n.NormalizeQuery(q)
		if err != nil {
			nq.Error = err.Error()
			failed++
		} else {
			nq.Normalized = canon
		}
		out = append(out, nq)
	}

	msg := fmt.Sprintf("%d of %d queries failed to normalize", failed, len(queries))
	if f.JSON() {
		if failed > 0 {
			if err := f.Partial(out, ErrCodeNormalize, msg); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return f.Success(out)
	}

	for _, nq := range out {
		if nq.Error != "" {
			fmt.Fprintf(f.Writer, "%s %s\n", mark(false), nq.Error)
			continue
		}
		fmt.Fprintln(f.Writer, nq.Normalized)
	}
	if failed > 0 {
		return NewExitError(ExitFailure, msg)
	}
	return nil
}
