package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqltutor/internal/store"
)

func trace(rules ...string) []store.Firing {
	out := make([]store.Firing, len(rules))
	for i, r := range rules {
		phase := "analysis"
		if i >= 2 {
			phase = "lowering"
		}
		out[i] = store.Firing{Seq: int64(i + 1), Phase: phase, Round: 1, Rule: r, Tuples: 1, Changed: true}
	}
	return out
}

func TestAssertRuleFired(t *testing.T) {
	tr := trace("expand-select", "resolve-attribute", "lower-select")

	assert.NoError(t, assertRuleFired(tr, Assertion{Rule: "resolve-attribute"}))
	assert.NoError(t, assertRuleFired(tr, Assertion{Rule: "lower-select", Phase: "lowering"}))

	err := assertRuleFired(tr, Assertion{Rule: "lower-select", Phase: "analysis"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertRuleFired, ae.Type)
	assert.Contains(t, err.Error(), "lower-select in analysis")
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestAssertRuleOrder(t *testing.T) {
	tr := trace("expand-select", "resolve-attribute", "lower-select", "resolve-attribute")

	assert.NoError(t, assertRuleOrder(tr, Assertion{Rules: []string{"expand-select", "lower-select"}}))
	// Order is judged by first firing.
	assert.NoError(t, assertRuleOrder(tr, Assertion{Rules: []string{"resolve-attribute", "lower-select"}}))

	err := assertRuleOrder(tr, Assertion{Rules: []string{"lower-select", "expand-select"}})
	assert.ErrorContains(t, err, "expand-select fired too early")

	err = assertRuleOrder(tr, Assertion{Rules: []string{"expand-select", "terminate-sentence"}})
	assert.ErrorContains(t, err, "terminate-sentence never fired")
}

func TestAssertRuleCount(t *testing.T) {
	tr := trace("expand-select", "resolve-attribute", "lower-select", "resolve-attribute")

	assert.NoError(t, assertRuleCount(tr, Assertion{Rule: "resolve-attribute", Count: 2}))
	assert.NoError(t, assertRuleCount(tr, Assertion{Rule: "resolve-attribute", Phase: "lowering", Count: 1}))
	assert.NoError(t, assertRuleCount(tr, Assertion{Rule: "drop-tautology", Count: 0}))
	assert.ErrorContains(t, assertRuleCount(tr, Assertion{Rule: "expand-select", Count: 3}), "1 times")
}

func TestAssertTextContains(t *testing.T) {
	ok := &CaseResult{Text: "Find each employee."}
	assert.NoError(t, assertTextContains(ok, Assertion{Text: "each employee"}))
	assert.Error(t, assertTextContains(ok, Assertion{Text: "department"}))

	failed := &CaseResult{Err: assert.AnError}
	assert.ErrorContains(t, assertTextContains(failed, Assertion{Text: ""}), assert.AnError.Error())
}
