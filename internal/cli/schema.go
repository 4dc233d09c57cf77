package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqltutor/internal/er"
)

// SchemaSummary describes a loaded schema document.
type SchemaSummary struct {
	Path          string `json:"path"`
	Entities      int    `json:"entities"`
	Relationships int    `json:"relationships"`
	Columns       int    `json:"columns"`
	Joins         int    `json:"joins"`
	Tables        int    `json:"tables"`
}

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and convert ER schema documents",
		Long: `Work with ER schema documents. A document declares entities,
relationships and the mapping of both onto tables, in YAML or CUE.`,
	}

	cmd.AddCommand(newSchemaValidateCommand(rootOpts))
	cmd.AddCommand(newSchemaConvertCommand(rootOpts))
	cmd.AddCommand(newSchemaDescribeCommand(rootOpts))
	return cmd
}

func newSchemaValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schema>",
		Short: "Check a schema document and its mapping",
		Long: `Load a schema document and check that its mapping is complete:
every relationship has a join, every mapped entity has a key and every
join column is mapped.

Examples:
  sqltutor schema validate company.yaml
  sqltutor schema validate ./schema --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaValidate(rootOpts, args[0], cmd)
		},
	}
}

func runSchemaValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, m, err := loadSchemaReport(f, path)
	if err != nil {
		return err
	}
	summary := summarize(path, s, m)
	if f.JSON() {
		return f.Success(summary)
	}
	fmt.Fprintf(f.Writer, "%s %s: %d entities, %d relationships, %d columns in %d tables, %d joins\n",
		mark(true), path, summary.Entities, summary.Relationships, summary.Columns, summary.Tables, summary.Joins)
	return nil
}

func newSchemaConvertCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "convert <schema>",
		Short: "Rewrite a schema document in another format",
		Long: `Load a schema document and write it back out. The output format
follows the extension of --output: .yaml, .yml or .cue.

Examples:
  sqltutor schema convert company.yaml -o company.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaConvert(rootOpts, args[0], output, cmd)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (required)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runSchemaConvert(opts *RootOptions, path, output string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, m, err := loadSchemaReport(f, path)
	if err != nil {
		return err
	}
	if err := er.WriteFile(output, s, m); err != nil {
		code := ExitCommandError
		if er.IsSchemaError(err, er.ErrCodeInvalid) {
			code = ExitFailure
		}
		return WrapExitError(code, "failed to write schema", err)
	}
	f.VerboseLog("Wrote %s", output)
	if f.JSON() {
		return f.Success(map[string]string{"input": path, "output": output})
	}
	fmt.Fprintf(f.Writer, "%s %s -> %s\n", mark(true), path, output)
	return nil
}

func newSchemaDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <schema>",
		Short: "Show how a schema maps onto tables",
		Long: `Print the column of every mapped attribute and the join of every
relationship.

Examples:
  sqltutor schema describe company.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchemaDescribe(rootOpts, args[0], cmd)
		},
	}
}

func runSchemaDescribe(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, m, err := loadSchemaReport(f, path)
	if err != nil {
		return err
	}
	if f.JSON() {
		return f.Success(er.ToDocument(s, m))
	}

	var cols [][]string
	for _, attr := range m.Attributes() {
		col, _ := m.ColumnFor(attr)
		typ, key := "", ""
		if a, _, err := s.LookupAttribute(attr); err == nil {
			typ = string(a.DataType)
			if a.Key {
				key = "yes"
			}
		}
		cols = append(cols, []string{attr, col, typ, key})
	}
	if err := f.Table([]string{"Attribute", "Column", "Type", "Key"}, cols); err != nil {
		return err
	}

	var joins [][]string
	for _, rel := range m.Relationships() {
		j, _ := m.Join(rel)
		joins = append(joins, []string{rel, string(j.Kind), describeJoin(j)})
	}
	if len(joins) > 0 {
		fmt.Fprintln(f.Writer)
		if err := f.Table([]string{"Relationship", "Kind", "Join"}, joins); err != nil {
			return err
		}
	}
	return nil
}

func describeJoin(j er.Join) string {
	switch j.Kind {
	case er.JoinMerged:
		return "in " + j.Entity
	case er.JoinLookupTable:
		parts := make([]string, len(j.Keys))
		for i, k := range j.Keys {
			parts[i] = k.FK + " = " + k.PK
		}
		return j.Table + ": " + strings.Join(parts, ", ")
	default:
		parts := make([]string, len(j.Keys))
		for i, k := range j.Keys {
			parts[i] = k.FK + " -> " + k.PK
		}
		return strings.Join(parts, ", ")
	}
}

// loadSchemaReport loads a schema document, reporting a rejected document
// through the formatter.
func loadSchemaReport(f *OutputFormatter, path string) (*er.Schema, *er.Mapping, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("schema not found: %s", path))
	}
	s, m, err := er.LoadFile(path)
	if err == nil {
		return s, m, nil
	}

	var se *er.SchemaError
	if errors.As(err, &se) {
		details := map[string]string{"code": string(se.Code), "name": se.Name}
		if outErr := f.Error(ErrCodeSchema, err.Error(), details); outErr != nil {
			return nil, nil, outErr
		}
		return nil, nil, WrapExitError(ExitFailure, "invalid schema", err)
	}
	if outErr := f.Error(ErrCodeSchema, err.Error(), nil); outErr != nil {
		return nil, nil, outErr
	}
	return nil, nil, WrapExitError(ExitFailure, "failed to load schema", err)
}

func summarize(path string, s *er.Schema, m *er.Mapping) SchemaSummary {
	return SchemaSummary{
		Path:          path,
		Entities:      len(s.Entities()),
		Relationships: len(s.Relationships()),
		Columns:       len(m.Attributes()),
		Joins:         len(m.Relationships()),
		Tables:        len(m.Tables()),
	}
}
