package er

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes schema and mapping errors.
type ErrorCode string

const (
	ErrCodeDuplicate        ErrorCode = "DUPLICATE_NAME"
	ErrCodeUnknownEntity    ErrorCode = "UNKNOWN_ENTITY"
	ErrCodeUnknownAttribute ErrorCode = "UNKNOWN_ATTRIBUTE"
	ErrCodeMissingKey       ErrorCode = "MISSING_KEY"
	ErrCodeUnqualified      ErrorCode = "UNQUALIFIED_NAME"
	ErrCodeUnmapped         ErrorCode = "UNMAPPED_RELATIONSHIP"
	ErrCodeInvalidJoin      ErrorCode = "INVALID_JOIN"
	ErrCodeConflict         ErrorCode = "MAPPING_CONFLICT"
	ErrCodeInvalid          ErrorCode = "INVALID"
)

// SchemaError reports an invalid schema, mapping or schema document.
type SchemaError struct {
	Code    ErrorCode
	Name    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Name, e.Message)
}

// IsSchemaError returns true if err wraps a SchemaError with code, or any
// SchemaError when code is empty.
func IsSchemaError(err error, code ErrorCode) bool {
	var se *SchemaError
	if !errors.As(err, &se) {
		return false
	}
	return code == "" || se.Code == code
}
