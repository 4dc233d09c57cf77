package rules

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/facts"
	"github.com/roach88/sqltutor/internal/logic"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

var (
	analysis = []symbolic.Phase{symbolic.PhaseAnalysis}
	lowering = []symbolic.Phase{symbolic.PhaseLowering}
	cleanup  = []symbolic.Phase{symbolic.PhaseCleanup}

	lower = cases.Lower(language.English)
	upper = cases.Upper(language.English)
)

// v and s shorten query construction.
func v(name string) logic.Term { return logic.V(name) }
func s(text string) logic.Term { return logic.S(text) }

func ref(b logic.Binding, name string) token.ID {
	return token.ID(b.Ref(name))
}

// live reports whether id is still attached and of kind k. Tuples go
// stale when earlier tuples of the same round rewrite the tree.
func live(t *token.Tree, id token.ID, k token.Kind) bool {
	return id >= 0 && int(id) < t.Len() && t.Attached(id) && t.Kind(id) == k
}

func wrapped(t *token.Tree, id token.ID) (token.Wrapped, bool) {
	if !live(t, id, token.KindWrapped) {
		return token.Wrapped{}, false
	}
	return t.Payload(id).(token.Wrapped), true
}

func sequence(t *token.Tree, id token.ID, role token.Role) bool {
	if !live(t, id, token.KindSequence) {
		return false
	}
	return t.Payload(id).(token.Sequence).Role == role
}

// done reports whether id needs no further lowering.
func done(t *token.Tree, id token.ID) bool {
	switch p := t.Payload(id).(type) {
	case token.Literal, token.Root:
		return true
	case token.Sequence:
		return p.Lowered || p.Role == token.RolePhrase
	default:
		return false
	}
}

func allDone(t *token.Tree, ids []token.ID) bool {
	for _, id := range ids {
		if !done(t, id) {
			return false
		}
	}
	return true
}

// piece is one part of a phrase: an existing token or a new word.
type piece struct {
	id   token.ID
	text string
	pos  token.POS
}

func tok(id token.ID) piece                 { return piece{id: id} }
func word(text string, pos token.POS) piece { return piece{id: token.None, text: text, pos: pos} }

func det(text string) piece  { return word(text, token.POSDet) }
func noun(text string) piece { return word(text, token.POSNoun) }
func verb(text string) piece { return word(text, token.POSVerb) }
func conj(text string) piece { return word(text, token.POSConj) }
func prep(text string) piece { return word(text, token.POSPrep) }

var comma = word(",", token.POSPunct)

// rewrite replaces old with a lowered phrase. build receives old's
// children, detached, and returns the phrase contents in order.
func rewrite(t *token.Tree, old token.ID, build func(kids []token.ID) []piece) error {
	p := t.Add(token.Sequence{Role: token.RolePhrase, Lowered: true})
	if err := t.Replace(old, p); err != nil {
		return err
	}
	kids, err := t.Release(old)
	if err != nil {
		return err
	}
	return fill(t, p, build(kids))
}

func fill(t *token.Tree, parent token.ID, pieces []piece) error {
	for _, pc := range pieces {
		id := pc.id
		if id == token.None {
			id = t.Add(token.Literal{Text: pc.text, POS: pc.pos})
		}
		if err := t.AppendChild(parent, id); err != nil {
			return err
		}
	}
	return nil
}

// joinAll separates groups with conjunction c: "a and b and c".
func joinAll(groups [][]piece, c string) []piece {
	var out []piece
	for i, g := range groups {
		if i > 0 {
			out = append(out, conj(c))
		}
		out = append(out, g...)
	}
	return out
}

// joinList separates groups as in "a, b or c".
func joinList(groups [][]piece, c string) []piece {
	var out []piece
	for i, g := range groups {
		switch {
		case i == 0:
		case i == len(groups)-1:
			out = append(out, conj(c))
		default:
			out = append(out, comma)
		}
		out = append(out, g...)
	}
	return out
}

func each(ids []token.ID) [][]piece {
	out := make([][]piece, len(ids))
	for i, id := range ids {
		out[i] = []piece{tok(id)}
	}
	return out
}

// humanize turns identifiers such as "WorksFor" or "super_ssn" into
// lower-case words.
func humanize(name string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, lower.String(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return strings.Join(words, " ")
}

// pluralize pluralizes the last word of a noun phrase.
func pluralize(phrase string) string {
	i := strings.LastIndexByte(phrase, ' ')
	return phrase[:i+1] + inflection.Plural(phrase[i+1:])
}

var ordinals = []string{"", "", "other", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth", "tenth"}

// distinguish names the nth table using the same base label.
func distinguish(base string, n int) string {
	switch {
	case n <= 1:
		return base
	case n < len(ordinals):
		return ordinals[n] + " " + base
	default:
		return fmt.Sprintf("%dth %s", n, base)
	}
}

// tableEntity returns the table-entity token an attribute refers to.
func tableEntity(t *token.Tree, at token.ID, alias string) (token.ID, token.TableEntity, error) {
	te := facts.FindTableEntity(t, at, alias)
	if te == token.None {
		return token.None, token.TableEntity{}, &er.SchemaError{Code: er.ErrCodeUnknownEntity, Name: alias, Message: "no table with this name or alias in scope"}
	}
	return te, t.Payload(te).(token.TableEntity), nil
}

// label returns the display label of a table-entity token, falling back
// to the humanized entity or table name.
func label(st *symbolic.State, te token.ID) facts.Label {
	if l, ok := st.Label(te); ok {
		return l
	}
	p := st.Tree.Payload(te).(token.TableEntity)
	name := p.Entity
	if name == "" {
		name = p.Table
	}
	base := humanize(name)
	return facts.Label{Singular: base, Plural: pluralize(base)}
}

// describe returns the prose name of a resolved attribute.
func describe(st *symbolic.State, a token.Attribute) string {
	if a.Attribute != "" && st.Schema != nil {
		if attr, _, err := st.Schema.LookupAttribute(a.Attribute); err == nil {
			if attr.Description != "" {
				return attr.Description
			}
			return humanize(attr.Name)
		}
	}
	return humanize(a.Column)
}

// ownerPhrase returns "of the <label>" for attributes owned by an entity
// table and nothing for relationship attributes.
func ownerPhrase(st *symbolic.State, at token.ID, a token.Attribute, quantifier string) ([]piece, error) {
	te, p, err := tableEntity(st.Tree, at, a.Alias)
	if err != nil {
		return nil, err
	}
	if p.Entity == "" {
		return nil, nil
	}
	return []piece{prep("of"), det(quantifier), noun(label(st, te).Singular)}, nil
}

func unhandled(kind string, id token.ID, detail string) error {
	return &token.UnhandledTypeError{Type: kind, Token: id, Detail: detail}
}

func requireMapping(st *symbolic.State) error {
	if st.Schema == nil || st.Mapping == nil {
		return fmt.Errorf("session %s has no schema mapping", st.ID)
	}
	return nil
}

// capitalize upper-cases the first letter of text.
func capitalize(text string) string {
	for i, r := range text {
		if !unicode.IsLetter(r) {
			return text
		}
		return upper.String(string(r)) + text[i+len(string(r)):]
	}
	return text
}
