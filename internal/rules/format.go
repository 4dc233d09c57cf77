package rules

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

var printer = message.NewPrinter(language.English)

// typedOperand(L, Type) holds for literals compared against an attribute
// of Type, directly, as a BETWEEN bound or inside an IN list.
var typedOperand = []logic.Clause{
	logic.Horn(logic.A("typed_operand", v("L"), v("Ty")),
		logic.A(facts.PredComparison, v("C"), logic.Any),
		logic.A(facts.PredParent, v("C"), v("A"), logic.Any),
		logic.A(facts.PredAttrType, v("A"), v("Ty")),
		logic.A(facts.PredParent, v("C"), v("L"), logic.Any),
		logic.A(facts.PredToken, v("L"), s(token.KindLiteral.String())),
	),
	logic.Horn(logic.A("typed_operand", v("L"), v("Ty")),
		logic.A(facts.PredRole, v("B"), s(string(token.RoleBetween))),
		logic.A(facts.PredParent, v("B"), v("A"), logic.I(0)),
		logic.A(facts.PredAttrType, v("A"), v("Ty")),
		logic.A(facts.PredParent, v("B"), v("L"), logic.Any),
		logic.A(facts.PredToken, v("L"), s(token.KindLiteral.String())),
	),
	logic.Horn(logic.A("typed_operand", v("L"), v("Ty")),
		logic.A(facts.PredComparison, v("C"), logic.Any),
		logic.A(facts.PredParent, v("C"), v("A"), logic.Any),
		logic.A(facts.PredAttrType, v("A"), v("Ty")),
		logic.A(facts.PredParent, v("C"), v("S"), logic.Any),
		logic.A(facts.PredRole, v("S"), s(string(token.RoleList))),
		logic.A(facts.PredParent, v("S"), v("L"), logic.Any),
	),
}

// formatRule rewrites unformatted literals of one data type and part of
// speech with fn. fn reports false to leave the text unchanged.
func formatRule(name string, precedence int, dt er.DataType, pos token.POS, fn func(text string) (string, bool)) *symbolic.Rule {
	return &symbolic.Rule{
		Name:       name,
		Phases:     analysis,
		Precedence: precedence,
		Clauses:    typedOperand,
		Query: logic.Query{
			logic.A("typed_operand", v("L"), s(string(dt))),
			logic.A(facts.PredPOS, v("L"), s(string(pos))),
			logic.Not(logic.A(facts.PredFormatted, v("L"))),
		},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			t := st.Tree
			changed := false
			for _, b := range tuples {
				id := ref(b, "L")
				if !live(t, id, token.KindLiteral) {
					continue
				}
				lit := t.Payload(id).(token.Literal)
				if lit.Formatted {
					continue
				}
				if text, ok := fn(lit.Text); ok {
					lit.Text = text
				}
				lit.Formatted = true
				if err := t.SetPayload(id, lit); err != nil {
					return changed, err
				}
				changed = true
			}
			return changed, nil
		},
	}
}

// formatDollars writes amounts as "$30,000" or "$1,250.50".
func formatDollars(text string) (string, bool) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return printer.Sprintf("$%d", n), true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return printer.Sprintf("$%.2f", f), true
	}
	return "", false
}

var dateLayouts = []string{time.DateOnly, time.DateTime, "2006-01-02T15:04:05"}

// formatDate writes quoted dates as "January 2, 2006".
func formatDate(text string) (string, bool) {
	raw := strings.Trim(text, "'")
	for _, layout := range dateLayouts {
		d, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		if d.Hour() == 0 && d.Minute() == 0 && d.Second() == 0 {
			return d.Format("January 2, 2006"), true
		}
		return d.Format("January 2, 2006 at 3:04 PM"), true
	}
	return "", false
}

func formatDollarLiteral() *symbolic.Rule {
	return formatRule("format-dollar-literal", symbolic.BandEnhance+30, er.TypeDollars, token.POSNum, formatDollars)
}

func formatDateLiteral() *symbolic.Rule {
	return formatRule("format-date-literal", symbolic.BandEnhance+31, er.TypeDateTime, token.POSValue, formatDate)
}
