package query

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Query selects the records of one source that a watcher consumes.
type Query struct {
	identifier string
	filter     string
	mode       Mode
	matcher    *Matcher
}

// New validates and compiles a query. An empty filter means MatchAll.
// ByFilePath identifiers are cleaned with filepath.Clean.
func New(identifier, filter string, mode Mode) (Query, error) {
	filter = normalizeFilter(filter)
	fail := func(err error) (Query, error) {
		return Query{}, &Error{Identifier: identifier, Filter: filter, Mode: mode, Err: err}
	}
	if !mode.Valid() {
		return fail(ErrInvalidMode)
	}
	id := strings.TrimSpace(identifier)
	if id == "" {
		return fail(ErrEmptyIdentifier)
	}
	if mode == ByFilePath {
		if strings.ContainsRune(id, 0) {
			return fail(fmt.Errorf("%w: path contains NUL", ErrBadIdentifier))
		}
		id = filepath.Clean(id)
	}
	m, err := compile(filter, mode)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrInvalidFilter, err))
	}
	return Query{identifier: id, filter: filter, mode: mode, matcher: m}, nil
}

// MustNew is New that panics on error. Intended for constants and tests.
func MustNew(identifier, filter string, mode Mode) Query {
	q, err := New(identifier, filter, mode)
	if err != nil {
		panic(err)
	}
	return q
}

func (q Query) Identifier() string { return q.identifier }
func (q Query) Filter() string     { return q.filter }
func (q Query) Mode() Mode         { return q.mode }

// IsZero reports whether q was not built by New.
func (q Query) IsZero() bool { return q.identifier == "" }

// Matcher returns the compiled filter.
func (q Query) Matcher() *Matcher {
	if q.matcher == nil {
		return &Matcher{}
	}
	return q.matcher
}

// Fingerprint is a stable hex digest of mode, identifier and filter. Two
// queries with the same fingerprint select the same records.
func (q Query) Fingerprint() string {
	d := xxhash.New()
	_, _ = d.WriteString(q.mode.String())
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(q.identifier)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(q.filter)
	return fmt.Sprintf("%016x", d.Sum64())
}

func (q Query) String() string {
	return fmt.Sprintf("%s:%s[%s]", q.mode, q.identifier, q.filter)
}

// IsQueryError reports whether err came from New.
func IsQueryError(err error) bool { return errors.Is(err, ErrQuery) }
