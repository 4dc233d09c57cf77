package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a batch of translation cases over one schema.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Schema is the path of the schema document, relative to the scenario
	// file. YAML, CUE files and CUE package directories are accepted.
	Schema string `yaml:"schema"`

	// Normalize turns WHERE canonicalization on or off. Defaults to on.
	Normalize *bool `yaml:"normalize,omitempty"`

	// MaxRounds bounds every phase. Zero means DefaultMaxRounds.
	MaxRounds int `yaml:"max_rounds,omitempty"`

	Cases []Case `yaml:"cases"`
}

// DefaultMaxRounds bounds scenario phases when the file sets none.
const DefaultMaxRounds = 100

// Case is one query and what it must produce.
type Case struct {
	Name       string        `yaml:"name"`
	SQL        string        `yaml:"sql"`
	Expect     *ExpectClause `yaml:"expect,omitempty"`
	Assertions []Assertion   `yaml:"assertions,omitempty"`
}

// ExpectClause holds the expected outcome. Exactly one field is set.
type ExpectClause struct {
	// Text is the exact sentence.
	Text string `yaml:"text,omitempty"`

	// Error is the failure kind, as reported by translate.Classify.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates a case's sentence, trace or stored session.
type Assertion struct {
	Type string `yaml:"type"`

	// Text is the expected substring (text_contains).
	Text string `yaml:"text,omitempty"`

	// Rule names the rule (rule_fired, rule_count).
	Rule string `yaml:"rule,omitempty"`

	// Phase restricts rule_fired and rule_count to one phase.
	Phase string `yaml:"phase,omitempty"`

	// Rules lists rules in expected first-firing order (rule_order).
	Rules []string `yaml:"rules,omitempty"`

	// Count is the exact number of firings (rule_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTextContains = "text_contains"
	AssertRuleFired    = "rule_fired"
	AssertRuleOrder    = "rule_order"
	AssertRuleCount    = "rule_count"
	AssertStored       = "stored"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the schema path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []*Scenario
	seen := make(map[string]string)
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("scenario name %q used by %s and %s", s.Name, prev, p)
		}
		seen[s.Name] = p
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); err != nil {
		return fmt.Errorf("schema not found: %s", s.Schema)
	}
	if s.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must be non-negative")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	names := make(map[string]bool)
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if names[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate name %q", i, c.Name)
		}
		names[c.Name] = true
		if c.SQL == "" {
			return fmt.Errorf("cases[%d]: sql is required", i)
		}
		if e := c.Expect; e != nil && (e.Text == "") == (e.Error == "") {
			return fmt.Errorf("cases[%d].expect: exactly one of text or error is required", i)
		}
		for j := range c.Assertions {
			if err := validateAssertion(i, j, &c.Assertions[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateAssertion(ci, index int, a *Assertion) error {
	at := fmt.Sprintf("cases[%d].assertions[%d]", ci, index)
	switch a.Type {
	case "":
		return fmt.Errorf("%s: type is required", at)
	case AssertTextContains:
		if a.Text == "" {
			return fmt.Errorf("%s: text is required for text_contains", at)
		}
	case AssertRuleFired:
		if a.Rule == "" {
			return fmt.Errorf("%s: rule is required for rule_fired", at)
		}
	case AssertRuleOrder:
		if len(a.Rules) < 2 {
			return fmt.Errorf("%s: at least two rules are required for rule_order", at)
		}
	case AssertRuleCount:
		if a.Rule == "" {
			return fmt.Errorf("%s: rule is required for rule_count", at)
		}
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative for rule_count", at)
		}
	case AssertStored:
	default:
		return fmt.Errorf("%s: unknown assertion type %q", at, a.Type)
	}
	return nil
}
