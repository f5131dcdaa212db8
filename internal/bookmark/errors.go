package bookmark

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrInvalidLocation is returned for empty or unresolvable locations.
	ErrInvalidLocation = errors.New("bookmark: invalid location")
	// ErrArityMismatch is returned by batch calls whose input slices differ in length.
	ErrArityMismatch = errors.New("bookmark: arity mismatch")
	// ErrTypeMismatch is returned when stored content is not a token of the wanted kind.
	ErrTypeMismatch = errors.New("bookmark: type mismatch")
	// ErrIO is returned when the location cannot be read or written.
	ErrIO = errors.New("bookmark: io error")
)

// StoreError describes a failed store operation on one location.
type StoreError struct {
	Op       string
	Location string
	Kind     error
	Err      error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString("bookmark: ")
	b.WriteString(e.Op)
	if e.Location != "" {
		fmt.Fprintf(&b, " %q", e.Location)
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(strings.TrimPrefix(e.Kind.Error(), "bookmark: "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *StoreError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

func storeErr(op, location string, kind, err error) *StoreError {
	return &StoreError{Op: op, Location: location, Kind: kind, Err: err}
}

// ItemError is the failure of one pair in a batch call.
type ItemError struct {
	Index    int
	Location string
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %v", e.Index, e.Location, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// BatchError lists every failed pair of a batch call. Pairs not listed succeeded.
type BatchError struct {
	Items []*ItemError
	merr  *multierror.Error
}

func (e *BatchError) Error() string {
	return e.merr.Error()
}

// Unwrap lets errors.Is/As see every item error.
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Items))
	for i, it := range e.Items {
		out[i] = it
	}
	return out
}

// Failed reports whether the pair at index failed.
func (e *BatchError) Failed(index int) bool {
	for _, it := range e.Items {
		if it.Index == index {
			return true
		}
	}
	return false
}

func newBatchError(items []*ItemError) error {
	if len(items) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, it := range items {
		merr = multierror.Append(merr, it)
	}
	merr.ErrorFormat = func(es []error) string {
		lines := make([]string, len(es))
		for i, err := range es {
			lines[i] = "\t* " + err.Error()
		}
		return fmt.Sprintf("bookmark: %d of batch failed:\n%s", len(es), strings.Join(lines, "\n"))
	}
	return &BatchError{Items: items, merr: merr}
}
