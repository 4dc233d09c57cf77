package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/sqltutor/internal/boolnorm"
)

// ClusterOptions holds flags for the cluster command.
type ClusterOptions struct {
	*RootOptions
	Database string
	Top      int
}

// ClusterGroup is one canonical query and the inputs that share it.
type ClusterGroup struct {
	Rank      int    `json:"rank"`
	Count     int    `json:"count"`
	Canonical string `json:"canonical"`
	// Members are 1-based input positions.
	Members []int `json:"members"`
}

// ClusterFailure is an input that could not be normalized.
type ClusterFailure struct {
	Position int    `json:"position"`
	SQL      string `json:"sql"`
	Error    string `json:"error"`
}

// ClusterResult holds the outcome of a cluster run.
type ClusterResult struct {
	RunID    string           `json:"run_id,omitempty"`
	Total    int              `json:"total"`
	Groups   []ClusterGroup   `json:"groups"`
	Failures []ClusterFailure `json:"failures,omitempty"`
}

// NewClusterCommand creates the cluster command.
func NewClusterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClusterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cluster <queries-file>",
		Short: "Group queries by canonical form",
		Long: `Normalize every query in a file and group those with identical
canonical text, most frequent first. Queries that fail to parse are
listed separately and do not stop the run.

With --db the report is stored under a new run id.

Examples:
  sqltutor cluster submissions.sql
  sqltutor cluster submissions.sql --top 5
  sqltutor cluster - --db tutor.db --format json < submissions.sql`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCluster(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to store the report in")
	cmd.Flags().IntVar(&opts.Top, "top", 0, "show only the N largest groups (0 for all)")

	return cmd
}

func runCluster(opts *ClusterOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	queries, err := readQueryFile(path, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read queries", err)
	}
	if len(queries) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no queries in %s", path))
	}
	f.VerboseLog("Read %d queries from %s", len(queries), path)

	report := boolnorm.Cluster(queries)
	result := ClusterResult{Total: report.Total}

	if opts.Database != "" {
		st, err := openStore(opts.Database, true)
		if err != nil {
			return err
		}
		defer st.Close()

		runID := uuid.Must(uuid.NewV7()).String()
		if _, err := st.WriteClusterReport(ctx, runID, report); err != nil {
			return WrapExitError(ExitCommandError, "failed to store report", err)
		}
		result.RunID = runID
		f.VerboseLog("Stored run %s in %s", runID, opts.Database)
	}

	groups := report.Groups
	if opts.Top > 0 && len(groups) > opts.Top {
		groups = groups[:opts.Top]
	}
	result.Groups = make([]ClusterGroup, 0, len(groups))
	for i, g := range groups {
		result.Groups = append(result.Groups, clusterGroup(i+1, g))
	}
	for _, fe := range report.Failures {
		result.Failures = append(result.Failures, ClusterFailure{Position: fe.Index + 1, SQL: fe.Input, Error: fe.Err.Error()})
	}

	if f.JSON() {
		return f.Success(result)
	}
	return outputClusterText(f, result, len(report.Groups))
}

func clusterGroup(rank int, g boolnorm.Group) ClusterGroup {
	members := make([]int, len(g.Members))
	for i, m := range g.Members {
		members[i] = m + 1
	}
	return ClusterGroup{Rank: rank, Count: g.Count, Canonical: g.Canonical, Members: members}
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ", ")
}

func outputClusterText(f *OutputFormatter, r ClusterResult, totalGroups int) error {
	w := f.Writer

	rows := make([][]string, 0, len(r.Groups))
	for _, g := range r.Groups {
		rows = append(rows, []string{strconv.Itoa(g.Rank), strconv.Itoa(g.Count), joinInts(g.Members), truncate(g.Canonical, 80)})
	}
	if err := f.Table([]string{"Rank", "Count", "Queries", "Canonical"}, rows); err != nil {
		return err
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failed to normalize %d queries:\n", len(r.Failures))
		for _, fe := range r.Failures {
			fmt.Fprintf(w, "  %s [%d] %s\n", mark(false), fe.Position, fe.Error)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d queries, %d groups, %d failures\n", r.Total, totalGroups, len(r.Failures))
	if r.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", r.RunID)
	}
	return nil
}
