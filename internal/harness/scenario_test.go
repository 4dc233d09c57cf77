package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesSchemaPath(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/company_sentences.yaml")
	require.NoError(t, err)

	assert.Equal(t, "company_sentences", s.Name)
	assert.Equal(t, filepath.Join("testdata", "schemas", "company.yaml"), s.Schema)
	assert.Nil(t, s.Normalize)
	assert.NotEmpty(t, s.Cases)
	assert.Equal(t, "projection and dollar comparison", s.Cases[0].Name)
	require.NotNil(t, s.Cases[0].Expect)
	assert.NotEmpty(t, s.Cases[0].Expect.Text)
}

func TestLoadScenario_Options(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/company_literal.yaml")
	require.NoError(t, err)

	require.NotNil(t, s.Normalize)
	assert.False(t, *s.Normalize)
	assert.Equal(t, 200, s.MaxRounds)
	assert.Equal(t, ".cue", filepath.Ext(s.Schema))
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"missing_schema.yaml", "schema not found"},
		{"unknown_field.yaml", "failed to parse YAML"},
		{"both_expectations.yaml", "exactly one of text or error"},
		{"bad_assertion.yaml", `unknown assertion type "final_state"`},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := LoadScenario(filepath.Join("testdata", "invalid", tt.file))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.Error(t, err)
}

func TestLoadScenarios_SortedByFile(t *testing.T) {
	all, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	var names []string
	for _, s := range all {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"company_literal", "company_rejections", "company_sentences"}, names)
}

func TestValidateScenario_Cases(t *testing.T) {
	base := func() *Scenario {
		return &Scenario{
			Name:        "x",
			Description: "d",
			Schema:      "testdata/schemas/company.yaml",
			Cases:       []Case{{Name: "a", SQL: "SELECT 1"}},
		}
	}

	require.NoError(t, validateScenario(base()))

	s := base()
	s.Cases = append(s.Cases, Case{Name: "a", SQL: "SELECT 2"})
	assert.ErrorContains(t, validateScenario(s), "duplicate name")

	s = base()
	s.Cases[0].SQL = ""
	assert.ErrorContains(t, validateScenario(s), "sql is required")

	s = base()
	s.MaxRounds = -1
	assert.ErrorContains(t, validateScenario(s), "max_rounds")

	s = base()
	s.Cases[0].Assertions = []Assertion{{Type: AssertRuleOrder, Rules: []string{"only-one"}}}
	assert.ErrorContains(t, validateScenario(s), "at least two rules")

	s = base()
	s.Cases = nil
	assert.ErrorContains(t, validateScenario(s), "cases list is required")
}
