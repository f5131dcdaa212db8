package query

import (
	"errors"
	"fmt"
)

var (
	// ErrQuery matches every query construction failure.
	ErrQuery           = errors.New("query: invalid query")
	ErrEmptyIdentifier = errors.New("query: empty source identifier")
	ErrBadIdentifier   = errors.New("query: malformed source identifier")
	ErrInvalidFilter   = errors.New("query: invalid filter expression")
	ErrInvalidMode     = errors.New("query: invalid addressing mode")
)

// Error echoes the inputs of a rejected query together with the cause.
type Error struct {
	Identifier string
	Filter     string
	Mode       Mode
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("query: identifier=%q filter=%q mode=%s: %v", e.Identifier, e.Filter, e.Mode, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrQuery, e.Err} }
