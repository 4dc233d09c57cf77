package symbolic

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes scheduler errors.
type RuntimeErrorCode string

const (
	// ErrCodeRoundLimit indicates a phase hit the WithMaxRounds ceiling.
	ErrCodeRoundLimit RuntimeErrorCode = "ROUND_LIMIT"

	// ErrCodeNoProgress indicates a rule reported a change without making one.
	ErrCodeNoProgress RuntimeErrorCode = "NO_PROGRESS"

	// ErrCodeReentrant indicates a scheduler run was started from inside a
	// rule handler of the same session.
	ErrCodeReentrant RuntimeErrorCode = "REENTRANT"
)

// RuntimeError is a scheduler failure with session context.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	Session string
	Phase   Phase
	Rule    string
	Round   int
}

func (e *RuntimeError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("%s: %s (session=%s, phase=%s, rule=%s, round=%d)", e.Code, e.Message, e.Session, e.Phase, e.Rule, e.Round)
	}
	return fmt.Sprintf("%s: %s (session=%s, phase=%s)", e.Code, e.Message, e.Session, e.Phase)
}

func isCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsRoundLimit returns true if err is a round-limit error.
func IsRoundLimit(err error) bool { return isCode(err, ErrCodeRoundLimit) }

// IsNoProgress returns true if err is a no-progress error.
func IsNoProgress(err error) bool { return isCode(err, ErrCodeNoProgress) }

// IsReentrant returns true if err is a re-entrancy error.
func IsReentrant(err error) bool { return isCode(err, ErrCodeReentrant) }

// NewRoundLimitError creates a RuntimeError for a phase exceeding limit rounds.
func NewRoundLimitError(session string, p Phase, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRoundLimit,
		Message: fmt.Sprintf("phase did not reach a fixpoint within %d rounds", limit),
		Session: session,
		Phase:   p,
		Round:   limit,
	}
}

// RuleError wraps a handler or evaluation failure with its firing context.
type RuleError struct {
	Rule  string
	Phase Phase
	Round int
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s (phase %s, round %d): %v", e.Rule, e.Phase, e.Round, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }
