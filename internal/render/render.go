// Package render turns a fully lowered token tree into text.
package render

import (
	"strings"

	"github.com/roach88/sqltutor/internal/token"
)

// Render joins the literals under the root in tree order. Words are
// separated by single spaces; punctuation attaches to the word before it.
// Any token other than a literal or a lowered phrase is an error.
func Render(t *token.Tree) (string, error) {
	var b strings.Builder
	var err error
	t.Walk(t.Root(), func(id token.ID, _ int) bool {
		if err != nil {
			return false
		}
		switch p := t.Payload(id).(type) {
		case token.Root:
		case token.Sequence:
			if !p.Lowered && p.Role != token.RolePhrase {
				err = &token.UnhandledTypeError{Type: "sequence " + string(p.Role), Token: id, Detail: "not lowered"}
			}
		case token.Literal:
			if p.Text == "" {
				return true
			}
			if b.Len() > 0 && p.POS != token.POSPunct {
				b.WriteByte(' ')
			}
			b.WriteString(p.Text)
		default:
			err = &token.UnhandledTypeError{Type: p.Kind().String(), Token: id, Detail: "not lowered"}
		}
		return err == nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
