package subscription

import (
	"errors"
	"fmt"
)

var (
	// ErrBind matches every *BindError.
	ErrBind         = errors.New("subscription: bind failed")
	ErrDuplicateTag = errors.New("subscription: duplicate tag")
	ErrUnknownTag   = errors.New("subscription: unknown tag")
)

// BindError reports why a chain could not be bound to a watcher.
type BindError struct {
	Tag      string
	Location string
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("subscription: bind %q at %q: %v", e.Tag, e.Location, e.Err)
}

func (e *BindError) Unwrap() []error { return []error{ErrBind, e.Err} }
