// Package sourcetest provides an in-memory source.Source for tests.
package sourcetest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/query"
	"github.com/rzbill/flowatch/internal/source"
)

// TokenType is the default bookmark type of a Source.
const TokenType = "memory"

// Source is a scripted, append-only in-memory source. It serves any mode.
type Source struct {
	typ string

	mu      sync.Mutex
	records []source.Record
	changed chan struct{}

	active  atomic.Int32
	started atomic.Int32
}

var _ source.Source = (*Source)(nil)

// New returns an empty source producing tokens of TokenType.
func New() *Source { return NewTyped(TokenType) }

// NewTyped returns an empty source producing tokens of typ.
func NewTyped(typ string) *Source {
	return &Source{typ: typ, changed: make(chan struct{})}
}

func (s *Source) TokenType() string { return s.typ }

// Append adds one record per payload and wakes streams. It returns the
// assigned sequences, starting at 1.
func (s *Source) Append(payloads ...string) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seqs := make([]uint64, len(payloads))
	for i, p := range payloads {
		seq := uint64(len(s.records) + 1)
		var pos [8]byte
		binary.BigEndian.PutUint64(pos[:], seq)
		s.records = append(s.records, source.Record{
			ID:       fmt.Sprintf("mem-%d", seq),
			Sequence: seq,
			Created:  time.Now(),
			Machine:  "test",
			Payload:  []byte(p),
			Position: pos[:],
		})
		seqs[i] = seq
	}
	close(s.changed)
	s.changed = make(chan struct{})
	return seqs
}

// Active is the number of streams currently running.
func (s *Source) Active() int { return int(s.active.Load()) }

// Started is the number of Stream calls made so far.
func (s *Source) Started() int { return int(s.started.Load()) }

func (s *Source) after(seq uint64) ([]source.Record, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq >= uint64(len(s.records)) {
		return nil, s.changed
	}
	return append([]source.Record(nil), s.records[seq:]...), s.changed
}

// Stream implements source.Source.
func (s *Source) Stream(ctx context.Context, q query.Query, start *bookmark.Token, emit source.EmitFunc) error {
	s.active.Add(1)
	s.started.Add(1)
	defer s.active.Add(-1)

	var after uint64
	if start != nil {
		after = start.Sequence()
	}
	kind := source.KindFor(s, q)
	matcher := q.Matcher()
	for {
		recs, changed := s.after(after)
		for _, r := range recs {
			after = r.Sequence
			r.Kind = kind
			r.Source = q.Identifier()
			if ok, _ := matcher.Match(source.MatchInput(r)); !ok {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if err := emit(ctx, r); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}
	}
}
