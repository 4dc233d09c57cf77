package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/sqltutor/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []store.Firing
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, f := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s round %d %s (tuples=%d changed=%t)\n", i+1, f.Phase, f.Round, f.Rule, f.Tuples, f.Changed)
		}
	}
	return buf.String()
}

func evaluate(ctx context.Context, st *store.Store, cr *CaseResult, a Assertion) error {
	switch a.Type {
	case AssertTextContains:
		return assertTextContains(cr, a)
	case AssertRuleFired:
		return assertRuleFired(cr.Firings, a)
	case AssertRuleOrder:
		return assertRuleOrder(cr.Firings, a)
	case AssertRuleCount:
		return assertRuleCount(cr.Firings, a)
	case AssertStored:
		return assertStored(ctx, st, cr)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertTextContains(cr *CaseResult, a Assertion) error {
	if cr.Err == nil && strings.Contains(cr.Text, a.Text) {
		return nil
	}
	actual := fmt.Sprintf("%q", cr.Text)
	if cr.Err != nil {
		actual = cr.Err.Error()
	}
	return &AssertionError{Type: AssertTextContains, Expected: fmt.Sprintf("sentence containing %q", a.Text), Actual: actual}
}

// matching returns the firings of rule, restricted to phase when set.
func matching(trace []store.Firing, rule, phase string) []store.Firing {
	var out []store.Firing
	for _, f := range trace {
		if f.Rule == rule && (phase == "" || f.Phase == phase) {
			out = append(out, f)
		}
	}
	return out
}

func assertRuleFired(trace []store.Firing, a Assertion) error {
	if len(matching(trace, a.Rule, a.Phase)) > 0 {
		return nil
	}
	want := a.Rule
	if a.Phase != "" {
		want += " in " + a.Phase
	}
	return &AssertionError{Type: AssertRuleFired, Expected: want, Actual: "not found in trace", Trace: trace}
}

// assertRuleOrder checks that rules first fired in the given order.
// Other firings may come between them.
func assertRuleOrder(trace []store.Firing, a Assertion) error {
	first := make(map[string]int)
	for i, f := range trace {
		if _, seen := first[f.Rule]; !seen {
			first[f.Rule] = i
		}
	}

	prev := -1
	for _, rule := range a.Rules {
		pos, ok := first[rule]
		if !ok {
			return &AssertionError{Type: AssertRuleOrder, Expected: strings.Join(a.Rules, " -> "), Actual: rule + " never fired", Trace: trace}
		}
		if pos < prev {
			return &AssertionError{Type: AssertRuleOrder, Expected: strings.Join(a.Rules, " -> "), Actual: rule + " fired too early", Trace: trace}
		}
		prev = pos
	}
	return nil
}

func assertRuleCount(trace []store.Firing, a Assertion) error {
	got := len(matching(trace, a.Rule, a.Phase))
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertRuleCount,
		Expected: fmt.Sprintf("%s fired %d times", a.Rule, a.Count),
		Actual:   fmt.Sprintf("%d times", got),
		Trace:    trace,
	}
}

func assertStored(ctx context.Context, st *store.Store, cr *CaseResult) error {
	if cr.Session == "" {
		return &AssertionError{Type: AssertStored, Expected: "a stored session", Actual: "translation failed before a session started"}
	}
	sess, err := st.ReadSession(ctx, cr.Session)
	if err != nil {
		return &AssertionError{Type: AssertStored, Expected: "session " + cr.Session, Actual: err.Error()}
	}
	if sess.Text != cr.Text || sess.Failed() != (cr.Err != nil) {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("text %q failed=%t", cr.Text, cr.Err != nil),
			Actual:   fmt.Sprintf("text %q failed=%t", sess.Text, sess.Failed()),
		}
	}
	return nil
}
