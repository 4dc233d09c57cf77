package translate

import (
	"context"
	"errors"

	"github.com/roach88/sqltutor/internal/boolnorm"
	"github.com/roach88/sqltutor/internal/er"
	"github.com/roach88/sqltutor/internal/symbolic"
	"github.com/roach88/sqltutor/internal/token"
)

// Error kinds reported by Classify.
const (
	KindParse      = "parse"
	KindUnhandled  = "unhandled"
	KindMalformed  = "malformed"
	KindRoundLimit = "round_limit"
	KindNoProgress = "no_progress"
	KindStructural = "structural"
	KindCanceled   = "canceled"
	KindOther      = "error"
)

// Classify names the kind of a translation failure. Schema errors are
// reported as "schema/<CODE>".
func Classify(err error) string {
	var se *er.SchemaError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case boolnorm.IsParseError(err):
		return KindParse
	case token.IsUnhandled(err):
		return KindUnhandled
	case errors.As(err, &se):
		return "schema/" + string(se.Code)
	case boolnorm.IsMalformed(err):
		return KindMalformed
	case symbolic.IsRoundLimit(err):
		return KindRoundLimit
	case symbolic.IsNoProgress(err):
		return KindNoProgress
	case token.IsStructural(err, ""), token.IsParentless(err):
		return KindStructural
	default:
		return KindOther
	}
}
