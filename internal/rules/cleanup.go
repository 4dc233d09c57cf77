package rules

import (
	"strings"

	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

// rejectUnhandled fails the translation when lowering left a token that
// no rule knew how to turn into words.
func rejectUnhandled() *symbolic.Rule {
	return &symbolic.Rule{
		Name:       "reject-unhandled",
		Phases:     cleanup,
		Precedence: symbolic.BandCleanup,
		Query: logic.Query{
			logic.A(facts.PredToken, v("T"), v("K")),
			logic.A(facts.PredAttached, v("T")),
			logic.Not(logic.A(facts.PredDone, v("T"))),
		},
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			b := tuples[0]
			id := ref(b, "T")
			kind := b.Text("K")
			if seq, ok := st.Tree.Payload(id).(token.Sequence); ok {
				kind += " " + string(seq.Role)
			}
			return false, unhandled(kind, id, "no rule translated this token")
		},
	}
}

func cleanupEach(name string, precedence int, q logic.Query, clauses []logic.Clause, fn func(st *symbolic.State, b logic.Binding) (bool, error)) *symbolic.Rule {
	return &symbolic.Rule{
		Name:       name,
		Phases:     cleanup,
		Precedence: precedence,
		Clauses:    clauses,
		Query:      q,
		Apply: func(st *symbolic.State, tuples []logic.Binding) (bool, error) {
			changed := false
			for _, b := range tuples {
				ok, err := fn(st, b)
				if err != nil {
					return changed, err
				}
				changed = changed || ok
			}
			return changed, nil
		},
	}
}

func dropEmptySequences() *symbolic.Rule {
	q := logic.Query{
		logic.A(facts.PredRole, v("T"), s(string(token.RolePhrase))),
		logic.A(facts.PredChildCount, v("T"), logic.I(0)),
		logic.A(facts.PredParent, logic.Any, v("T"), logic.Any),
	}
	return cleanupEach("drop-empty-sequences", symbolic.BandCleanup+5, q, nil, func(st *symbolic.State, b logic.Binding) (bool, error) {
		id := ref(b, "T")
		if !live(st.Tree, id, token.KindSequence) || st.Tree.ChildCount(id) != 0 {
			return false, nil
		}
		return true, st.Tree.Delete(id)
	})
}

// flattenSequences splices phrases into their parents until the root holds
// only words.
func flattenSequences() *symbolic.Rule {
	q := logic.Query{
		logic.A(facts.PredRole, v("T"), s(string(token.RolePhrase))),
		logic.A(facts.PredParent, logic.Any, v("T"), logic.Any),
	}
	return cleanupEach("flatten-sequences", symbolic.BandCleanup+10, q, nil, func(st *symbolic.State, b logic.Binding) (bool, error) {
		id := ref(b, "T")
		if !live(st.Tree, id, token.KindSequence) || st.Tree.Parent(id) == token.None {
			return false, nil
		}
		return true, st.Tree.Splice(id)
	})
}

// dedupeAdjacentWords removes a repeated function word, as in "the the".
func dedupeAdjacentWords() *symbolic.Rule {
	var clauses []logic.Clause
	for _, pos := range []token.POS{token.POSDet, token.POSPrep, token.POSConj} {
		clauses = append(clauses, logic.Horn(logic.A("function_word", v("T")), logic.A(facts.PredPOS, v("T"), s(string(pos)))))
	}
	q := logic.Query{
		logic.A(facts.PredNext, v("A"), v("B")),
		logic.A(facts.PredText, v("A"), v("X")),
		logic.A(facts.PredText, v("B"), v("X")),
		logic.A("function_word", v("B")),
	}
	return cleanupEach("dedupe-adjacent-words", symbolic.BandCleanup+20, q, clauses, func(st *symbolic.State, b logic.Binding) (bool, error) {
		a, c := ref(b, "A"), ref(b, "B")
		t := st.Tree
		if !t.Attached(a) || !t.Attached(c) || t.Following(a) != c {
			return false, nil
		}
		return true, t.Delete(c)
	})
}

func startsWithVowel(text string) bool {
	return text != "" && strings.ContainsRune("aeiouAEIOU", rune(text[0]))
}

// fixIndefiniteArticle turns "a" into "an" before a word spelled with a
// leading vowel. It goes by spelling, not sound: "an university" and
// "a hour" are possible.
func fixIndefiniteArticle() *symbolic.Rule {
	q := logic.Query{
		logic.A(facts.PredNext, v("A"), v("B")),
		logic.A(facts.PredText, v("A"), s("a")),
		logic.A(facts.PredText, v("B"), v("X")),
	}
	return cleanupEach("fix-indefinite-article", symbolic.BandCleanup+30, q, nil, func(st *symbolic.State, b logic.Binding) (bool, error) {
		a := ref(b, "A")
		if !live(st.Tree, a, token.KindLiteral) || !startsWithVowel(b.Text("X")) {
			return false, nil
		}
		lit := st.Tree.Payload(a).(token.Literal)
		lit.Text = "an"
		return true, st.Tree.SetPayload(a, lit)
	})
}

func capitalizeFirst() *symbolic.Rule {
	q := logic.Query{
		logic.A(facts.PredRoot, v("R")),
		logic.A(facts.PredParent, v("R"), v("T"), logic.I(0)),
		logic.A(facts.PredText, v("T"), v("X")),
	}
	return cleanupEach("capitalize-first", symbolic.BandCleanup+40, q, nil, func(st *symbolic.State, b logic.Binding) (bool, error) {
		id := ref(b, "T")
		lit := st.Tree.Payload(id).(token.Literal)
		text := capitalize(lit.Text)
		if text == lit.Text {
			return false, nil
		}
		lit.Text = text
		return true, st.Tree.SetPayload(id, lit)
	})
}

func terminateSentence() *symbolic.Rule {
	clauses := []logic.Clause{
		logic.Horn(logic.A("terminated", v("R")),
			logic.A(facts.PredRoot, v("R")),
			logic.A(facts.PredLastChild, v("R"), v("T")),
			logic.A(facts.PredText, v("T"), s(".")),
		),
	}
	q := logic.Query{
		logic.A(facts.PredRoot, v("R")),
		logic.A(facts.PredLastChild, v("R"), logic.Any),
		logic.Not(logic.A("terminated", v("R"))),
	}
	return cleanupEach("terminate-sentence", symbolic.BandCleanup+50, q, clauses, func(st *symbolic.State, b logic.Binding) (bool, error) {
		dot := st.Tree.Add(token.Literal{Text: ".", POS: token.POSPunct})
		return true, st.Tree.AppendChild(ref(b, "R"), dot)
	})
}
