package token

import (
	"errors"
	"fmt"
)

// ParentlessNodeError is returned when an operation needs a token's parent
// and the token has none.
type ParentlessNodeError struct {
	Token ID
	Kind  Kind
}

func (e *ParentlessNodeError) Error() string {
	return fmt.Sprintf("token %d (%s) has no parent", e.Token, e.Kind)
}

// ErrorCode categorizes structural errors.
type ErrorCode string

const (
	ErrCodeArity          ErrorCode = "ARITY_VIOLATION"
	ErrCodeNotDetached    ErrorCode = "NOT_DETACHED"
	ErrCodeUnknownToken   ErrorCode = "UNKNOWN_TOKEN"
	ErrCodeCycle          ErrorCode = "CYCLE"
	ErrCodeRootMutation   ErrorCode = "ROOT_MUTATION"
	ErrCodeUnexpectedKind ErrorCode = "UNEXPECTED_SHAPE"
)

// StructuralError reports a mutation that would break a tree invariant.
// The tree is left unchanged.
type StructuralError struct {
	Code    ErrorCode
	Message string
	Token   ID
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s (token=%d)", e.Code, e.Message, e.Token)
}

func structural(code ErrorCode, id ID, format string, args ...any) error {
	return &StructuralError{Code: code, Message: fmt.Sprintf(format, args...), Token: id}
}

// IsParentless returns true if err wraps a ParentlessNodeError.
func IsParentless(err error) bool {
	var pe *ParentlessNodeError
	return errors.As(err, &pe)
}

// IsStructural returns true if err wraps a StructuralError with the given
// code, or any StructuralError when code is empty.
func IsStructural(err error, code ErrorCode) bool {
	var se *StructuralError
	if !errors.As(err, &se) {
		return false
	}
	return code == "" || se.Code == code
}

// UnhandledTypeError reports a token or SQL construct that no rule knows
// how to translate.
type UnhandledTypeError struct {
	Type   string
	Token  ID
	Detail string
}

func (e *UnhandledTypeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unhandled type %s at token %d: %s", e.Type, e.Token, e.Detail)
	}
	return fmt.Sprintf("unhandled type %s at token %d", e.Type, e.Token)
}

// IsUnhandled returns true if err wraps an UnhandledTypeError.
func IsUnhandled(err error) bool {
	var ue *UnhandledTypeError
	return errors.As(err, &ue)
}
