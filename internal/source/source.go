package source

import (
	"context"
	"errors"
	"time"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/query"
)

// ErrUnsupportedMode is returned by a source asked to stream a query whose
// addressing mode it does not serve.
var ErrUnsupportedMode = errors.New("source: unsupported addressing mode")

// Record is one event delivered by a source.
type Record struct {
	ID       string
	Sequence uint64
	Created  time.Time
	Machine  string
	Source   string
	Payload  []byte
	Headers  map[string]string

	// Kind and Position make up the record's bookmark token.
	Kind     bookmark.Kind
	Position []byte
}

// Token is the position token that resumes strictly after r.
func (r Record) Token() bookmark.Token {
	return bookmark.NewToken(r.Kind, r.Sequence, r.Position)
}

// EmitFunc receives records. A non-nil error stops the stream and is
// returned from Stream.
type EmitFunc func(ctx context.Context, rec Record) error

// Source is a stream of records addressed by a query.
type Source interface {
	// TokenType names the token family this source produces.
	TokenType() string
	// Stream calls emit synchronously for every record matching q in
	// non-decreasing sequence order, starting strictly after start when it is
	// non-nil. It blocks until ctx is done, returning nil, or until a read or
	// emit fails.
	Stream(ctx context.Context, q query.Query, start *bookmark.Token, emit EmitFunc) error
}

// KindFor is the token kind src produces for q.
func KindFor(src Source, q query.Query) bookmark.Kind {
	return bookmark.Kind{Type: src.TokenType(), Scope: q.Fingerprint()}
}

// MatchInput builds the filter view of r.
func MatchInput(r Record) query.Input {
	var ts int64
	if !r.Created.IsZero() {
		ts = r.Created.UnixMilli()
	}
	return query.Input{
		Identifier:  r.Source,
		Sequence:    r.Sequence,
		TimestampMs: ts,
		Machine:     r.Machine,
		ID:          r.ID,
		Payload:     r.Payload,
		Headers:     r.Headers,
	}
}
