package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	companySchema  = "testdata/company.yaml"
	departmentsSQL = "SELECT d.dname FROM department d"
	departmentsEN  = "Find the name of each department."
	salarySQL      = "SELECT e.name FROM employee e WHERE NOT (e.salary <= 30000)"
	salaryEN       = "Find the name of each employee where the salary of the employee is greater than $30,000."
)

// decode parses a JSON CLI response, decoding its data into data.
func decode(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func TestTranslate_SingleQuery(t *testing.T) {
	out, err := execute(t, "translate", "-s", companySchema, "--sql", departmentsSQL)
	require.NoError(t, err)
	assert.Equal(t, departmentsEN+"\n", out)

	out, err = execute(t, "translate", "-s", companySchema, "--sql", salarySQL)
	require.NoError(t, err)
	assert.Equal(t, salaryEN+"\n", out)
}

func TestTranslate_Literal(t *testing.T) {
	out, err := execute(t, "translate", "-s", companySchema, "--literal", "--sql", salarySQL)
	require.NoError(t, err)
	assert.Equal(t, "Find the name of each employee where it is not the case that the salary of the employee is at most $30,000.\n", out)
}

func TestTranslate_FileReportsFailures(t *testing.T) {
	out, err := execute(t, "translate", "-s", companySchema, "--file", "testdata/queries.sql")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 3 queries failed")

	assert.Contains(t, out, "[1] "+salaryEN)
	assert.Contains(t, out, "[2] "+departmentsEN)
	assert.Contains(t, out, "[3] ✗ parse:")
	assert.Contains(t, out, "Translated 2 of 3 queries")
}

func TestTranslate_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing schema", []string{"translate", "-s", "testdata/nope.yaml", "--sql", departmentsSQL}},
		{"no queries", []string{"translate", "-s", companySchema}},
		{"bad rounds", []string{"translate", "-s", companySchema, "--sql", departmentsSQL, "--max-rounds", "0"}},
		{"positional args", []string{"translate", "-s", companySchema, departmentsSQL}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.name != "positional args" {
				assert.Equal(t, ExitCommandError, GetExitCode(err))
			}
		})
	}
}

func TestTranslate_RecordsHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tutor.db")

	out, err := execute(t, "--format", "json", "translate", "-s", companySchema, "--file", "testdata/queries.sql", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TranslateResult
	resp := decode(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTranslate, resp.Error.Code)
	require.Len(t, result.Translations, 3)
	assert.Equal(t, 2, result.Translated)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, salaryEN, result.Translations[0].Text)
	assert.NotEmpty(t, result.Translations[0].Session)
	assert.Equal(t, "parse", result.Translations[2].Kind)
	assert.Empty(t, result.Translations[2].Session)

	// Parse failures never start a session, so two are stored.
	out, err = execute(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)
	var sessions []SessionRecord
	decode(t, out, &sessions)
	require.Len(t, sessions, 2)
	assert.Equal(t, result.Translations[0].Session, sessions[0].ID)
	assert.Equal(t, departmentsEN, sessions[1].Text)
	assert.Less(t, sessions[0].Seq, sessions[1].Seq)

	out, err = execute(t, "--format", "json", "history", "--db", db, "--session", sessions[1].ID, "--firings")
	require.NoError(t, err)
	var tr TranscriptResult
	decode(t, out, &tr)
	assert.Equal(t, departmentsEN, tr.Session.Text)
	assert.Empty(t, tr.FailedRule)
	require.NotEmpty(t, tr.Phases)
	assert.Equal(t, "analysis", tr.Phases[0].Phase)
	require.NotEmpty(t, tr.Firings)
	for i := 1; i < len(tr.Firings); i++ {
		assert.Less(t, tr.Firings[i-1].Seq, tr.Firings[i].Seq)
	}

	out, err = execute(t, "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, departmentsEN)
	assert.NotContains(t, out, "salary")

	out, err = execute(t, "history", "--db", db, "--session", sessions[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Session: "+sessions[0].ID)
	assert.Contains(t, out, "✓ "+salaryEN)
	assert.Contains(t, out, "Phase")
}

func TestTranslate_RecordsFailedSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tutor.db")

	out, err := execute(t, "--format", "json", "translate", "-s", companySchema, "--sql", "SELECT x.name FROM nosuch x", "--db", db)
	require.Error(t, err)
	var result TranslateResult
	decode(t, out, &result)
	require.Len(t, result.Translations, 1)
	failed := result.Translations[0]
	assert.Equal(t, "schema/UNKNOWN_ENTITY", failed.Kind)
	require.NotEmpty(t, failed.Session)

	out, err = execute(t, "--format", "json", "history", "--db", db, "--session", failed.Session)
	require.NoError(t, err)
	var tr TranscriptResult
	decode(t, out, &tr)
	assert.NotEmpty(t, tr.Session.Error)
	assert.Equal(t, "resolve-table-entity", tr.FailedRule)
}

func TestHistory_Errors(t *testing.T) {
	_, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "missing.db"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	db := filepath.Join(t.TempDir(), "tutor.db")
	_, err = execute(t, "translate", "-s", companySchema, "--sql", departmentsSQL, "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "history", "--db", db, "--session", "no-such-session")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "no session no-such-session")

	_, err = execute(t, "history", "--db", db, "--session", "a", "--cluster", "b")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "history", "--db", db, "--cluster", "no-such-run")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestHistory_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tutor.db")
	_, err := execute(t, "cluster", "testdata/submissions.sql", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No sessions recorded.\n", out)
}

func TestNormalize(t *testing.T) {
	out, err := execute(t, "normalize", "SELECT * FROM t1 WHERE NOT (t1.a <> 'f')", "SELECT * FROM t1 WHERE t1.a = 'f'")
	require.NoError(t, err)
	assert.Equal(t, "select * from t1 where t1.a = 'f'\nselect * from t1 where t1.a = 'f'\n", out)
}

func TestNormalize_Failures(t *testing.T) {
	out, err := execute(t, "--format", "json", "normalize", "SELECT * FROM t1 WHERE NOT (t1.a <> 'f')", "select from where")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var got []NormalizedQuery
	resp := decode(t, out, &got)
	assert.Equal(t, ErrCodeNormalize, resp.Error.Code)
	require.Len(t, got, 2)
	assert.Equal(t, "select * from t1 where t1.a = 'f'", got[0].Normalized)
	assert.NotEmpty(t, got[1].Error)
}

func TestNormalize_Equivalent(t *testing.T) {
	out, err := execute(t, "normalize", "--equivalent", "SELECT * FROM t WHERE NOT (t.a < 1)", "SELECT * FROM t WHERE t.a >= 1")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ equivalent")

	out, err = execute(t, "normalize", "--equivalent", "SELECT * FROM t WHERE t.a < 1", "SELECT * FROM t WHERE t.a >= 1")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ not equivalent")

	out, err = execute(t, "--format", "json", "normalize", "--equivalent", "SELECT * FROM t WHERE NOT (t.a < 1)", "SELECT * FROM t WHERE t.a >= 1")
	require.NoError(t, err)
	var eq EquivalenceResult
	decode(t, out, &eq)
	assert.True(t, eq.Equivalent)

	_, err = execute(t, "normalize", "--equivalent", "SELECT 1")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCluster_Text(t *testing.T) {
	out, err := execute(t, "cluster", "testdata/submissions.sql")
	require.NoError(t, err)

	assert.Contains(t, out, "Canonical")
	assert.Contains(t, out, "select * from t where t.a = 'f'")
	assert.Contains(t, out, "1, 2")
	assert.Contains(t, out, "select * from t where t.b > 2")
	assert.Contains(t, out, "Failed to normalize 1 queries")
	assert.Contains(t, out, "4 queries, 2 groups, 1 failures")
	assert.NotContains(t, out, "Run:")
}

func TestCluster_StoredRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tutor.db")

	out, err := execute(t, "--format", "json", "cluster", "testdata/submissions.sql", "--db", db)
	require.NoError(t, err)
	var result ClusterResult
	decode(t, out, &result)
	require.NotEmpty(t, result.RunID)
	assert.Equal(t, 4, result.Total)
	require.Len(t, result.Groups, 2)
	assert.Equal(t, []int{1, 2}, result.Groups[0].Members)
	assert.Equal(t, 2, result.Groups[0].Count)
	assert.Equal(t, []int{3}, result.Groups[1].Members)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 4, result.Failures[0].Position)

	out, err = execute(t, "--format", "json", "history", "--db", db, "--cluster", result.RunID)
	require.NoError(t, err)
	var stored ClusterResult
	decode(t, out, &stored)
	assert.Equal(t, result.RunID, stored.RunID)
	assert.Equal(t, result.Groups, stored.Groups)

	out, err = execute(t, "history", "--db", db, "--cluster", result.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "1 queries failed to normalize")
}

func TestCluster_Top(t *testing.T) {
	out, err := execute(t, "--format", "json", "cluster", "testdata/submissions.sql", "--top", "1")
	require.NoError(t, err)
	var result ClusterResult
	decode(t, out, &result)
	require.Len(t, result.Groups, 1)
	assert.Equal(t, 1, result.Groups[0].Rank)
}

func TestCluster_Errors(t *testing.T) {
	_, err := execute(t, "cluster", "testdata/missing.sql")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	empty := filepath.Join(t.TempDir(), "empty.sql")
	require.NoError(t, os.WriteFile(empty, []byte("-- nothing\n"), 0o644))
	_, err = execute(t, "cluster", empty)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSchema_Validate(t *testing.T) {
	out, err := execute(t, "schema", "validate", companySchema)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+companySchema)
	assert.Contains(t, out, "entities")

	out, err = execute(t, "--format", "json", "schema", "validate", companySchema)
	require.NoError(t, err)
	var summary SchemaSummary
	decode(t, out, &summary)
	assert.Equal(t, 3, summary.Entities)
	assert.Equal(t, 13, summary.Columns)
	assert.Positive(t, summary.Joins)
}

func TestSchema_ValidateRejects(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	doc := `entities:
  - name: Widget
    attributes:
      - name: label
relationships: []
mapping:
  columns:
    - {attribute: Widget.label, column: widget.label}
`
	require.NoError(t, os.WriteFile(bad, []byte(doc), 0o644))

	out, err := execute(t, "--format", "json", "schema", "validate", bad)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decode(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSchema, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "MISSING_KEY")

	_, err = execute(t, "schema", "validate", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSchema_ConvertRoundTrip(t *testing.T) {
	cue := filepath.Join(t.TempDir(), "company.cue")

	out, err := execute(t, "schema", "convert", companySchema, "-o", cue)
	require.NoError(t, err)
	assert.Contains(t, out, "-> "+cue)
	require.FileExists(t, cue)

	out, err = execute(t, "translate", "-s", cue, "--sql", departmentsSQL)
	require.NoError(t, err)
	assert.Equal(t, departmentsEN+"\n", out)

	_, err = execute(t, "schema", "convert", companySchema, "-o", filepath.Join(t.TempDir(), "company.json"))
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSchema_Describe(t *testing.T) {
	out, err := execute(t, "schema", "describe", companySchema)
	require.NoError(t, err)
	assert.Contains(t, out, "Employee.name")
	assert.Contains(t, out, "employee.name")
	assert.Contains(t, out, "lookup-table")
	assert.Contains(t, out, "employee.dno -> department.dnumber")

	out, err = execute(t, "--format", "json", "schema", "describe", companySchema)
	require.NoError(t, err)
	var doc struct {
		Entities []struct {
			Name string `json:"name"`
		} `json:"entities"`
	}
	decode(t, out, &doc)
	require.NotEmpty(t, doc.Entities)
	assert.Equal(t, "Employee", doc.Entities[0].Name)
}

func TestTest_Passes(t *testing.T) {
	out, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ departments (2 cases)")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTest_HarnessScenarios(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", "../harness/testdata/scenarios")
	require.NoError(t, err, out)

	var result TestResult
	decode(t, out, &result)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Passed)
}

func TestTest_Filter(t *testing.T) {
	out, err := execute(t, "test", "../harness/testdata/scenarios", "--filter", "company_lit*")
	require.NoError(t, err)
	assert.Contains(t, out, "company_literal")
	assert.NotContains(t, out, "company_sentences")

	out, err = execute(t, "test", "testdata/scenarios", "--filter", "nomatch*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)
}

func TestTest_UpdateGolden(t *testing.T) {
	golden := t.TempDir()

	out, err := execute(t, "test", "testdata/scenarios", "--update", "--golden-dir", golden)
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	want, err := os.ReadFile("testdata/golden/departments.golden")
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(golden, "departments.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestTest_GoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "departments.golden"), []byte("stale\n"), 0o644))

	out, err := execute(t, "test", "testdata/scenarios", "--golden-dir", golden)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ departments")
	assert.Contains(t, out, "does not match golden file")
}

func TestTest_FailingScenario(t *testing.T) {
	schema, err := filepath.Abs(companySchema)
	require.NoError(t, err)

	dir := t.TempDir()
	scenario := `name: wrong
description: "expects the wrong sentence"
schema: ` + schema + `
cases:
  - name: departments
    sql: ` + departmentsSQL + `
    expect:
      text: Find every project.
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))

	out, err := execute(t, "test", dir)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, `expected "Find every project."`)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "Test Summary: 0 passed, 2 failed, 2 total")

	out, err = execute(t, "--format", "json", "test", dir)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var result TestResult
	resp := decode(t, out, &result)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 2, result.Failed)
}

func TestTest_MissingDir(t *testing.T) {
	_, err := execute(t, "test", "testdata/nowhere")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
