package logic

import (
	"errors"
	"fmt"
)

// ArityError reports a fact, atom or clause whose argument count does not
// match the declared arity of its predicate.
type ArityError struct {
	Pred string
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("arity mismatch for %s: declared %d, got %d", e.Pred, e.Want, e.Got)
}

// UndeclaredError reports use of a predicate that is neither declared in
// the fact set nor defined by a clause head.
type UndeclaredError struct {
	Pred string
}

func (e *UndeclaredError) Error() string {
	return fmt.Sprintf("undeclared predicate %s", e.Pred)
}

// ClauseError reports a clause or query that cannot be evaluated safely.
type ClauseError struct {
	Clause string
	Reason string
}

func (e *ClauseError) Error() string {
	return fmt.Sprintf("invalid clause %s: %s", e.Clause, e.Reason)
}

// IsArityError returns true if err wraps an ArityError.
func IsArityError(err error) bool {
	var ae *ArityError
	return errors.As(err, &ae)
}

// IsUndeclared returns true if err wraps an UndeclaredError.
func IsUndeclared(err error) bool {
	var ue *UndeclaredError
	return errors.As(err, &ue)
}
