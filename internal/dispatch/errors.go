package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrCallback matches every *CallbackError.
	ErrCallback = errors.New("dispatch: action failed")
	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("dispatch: position not persisted")
)

// CallbackError reports a user action that returned an error or panicked.
type CallbackError struct {
	Tag      string
	Action   int
	RecordID string
	Sequence uint64
	Panic    bool
	Err      error
}

func (e *CallbackError) Error() string {
	what := "failed"
	if e.Panic {
		what = "panicked"
	}
	return fmt.Sprintf("dispatch: %s: action %d %s on record %s (seq %d): %v", e.Tag, e.Action, what, e.RecordID, e.Sequence, e.Err)
}

func (e *CallbackError) Unwrap() []error { return []error{ErrCallback, e.Err} }

// PersistenceError reports a failed position save. Delivery continues; the
// next successful save supersedes it.
type PersistenceError struct {
	Tag      string
	Location string
	Sequence uint64
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("dispatch: %s: save seq %d to %s: %v", e.Tag, e.Sequence, e.Location, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
