// Package logsource streams records from the bundled event log to watchers
// addressing sources by name.
package logsource

import (
	"context"
	"fmt"
	"time"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/eventlog"
	"github.com/rzbill/flowatch/internal/query"
	"github.com/rzbill/flowatch/internal/source"
	"github.com/rzbill/flowatch/pkg/log"
)

// TokenType is the bookmark type produced by this source.
const TokenType = "eventlog"

const (
	defaultBatch = 256
	defaultIdle  = time.Second
)

// Source adapts an eventlog.Catalog to source.Source.
type Source struct {
	catalog *eventlog.Catalog
	batch   int
	idle    time.Duration
	logger  log.Logger
}

var _ source.Source = (*Source)(nil)

type Option func(*Source)

// WithBatch sets how many entries are read per scan.
func WithBatch(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithIdleWait bounds how long a caught-up stream waits for an append before
// rescanning.
func WithIdleWait(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.idle = d
		}
	}
}

func WithLogger(l log.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(catalog *eventlog.Catalog, opts ...Option) *Source {
	s := &Source{catalog: catalog, batch: defaultBatch, idle: defaultIdle, logger: log.NewNopLogger()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(log.Component("source.eventlog"))
	return s
}

func (s *Source) TokenType() string { return TokenType }

// Stream implements source.Source.
func (s *Source) Stream(ctx context.Context, q query.Query, start *bookmark.Token, emit source.EmitFunc) error {
	if q.Mode() != query.ByName {
		return fmt.Errorf("%w: %s", source.ErrUnsupportedMode, q.Mode())
	}
	l, err := s.catalog.Open(q.Identifier())
	if err != nil {
		return err
	}
	var after uint64
	if start != nil {
		after = start.Sequence()
	}
	kind := source.KindFor(s, q)
	matcher := q.Matcher()

	for {
		if ctx.Err() != nil {
			return nil
		}
		changed := l.Changed()
		items, err := l.ReadAfter(after, s.batch)
		if err != nil {
			return err
		}
		for _, it := range items {
			after = it.Seq
			rec := toRecord(q.Identifier(), kind, it)
			ok, merr := matcher.Match(source.MatchInput(rec))
			if merr != nil {
				s.logger.Debug("filter evaluation failed", log.Uint64("seq", it.Seq), log.Err(merr))
			}
			if !ok {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			if err := emit(ctx, rec); err != nil {
				return err
			}
		}
		if len(items) == s.batch {
			continue
		}
		eventlog.WaitChanged(ctx, changed, s.idle)
	}
}

func toRecord(name string, kind bookmark.Kind, it eventlog.Item) source.Record {
	tok := eventlog.TokenFromSeq(it.Seq)
	var created time.Time
	if it.Header.TimestampMs != 0 {
		created = time.UnixMilli(it.Header.TimestampMs)
	}
	return source.Record{
		ID:       it.Header.ID,
		Sequence: it.Seq,
		Created:  created,
		Machine:  it.Header.Machine,
		Source:   name,
		Payload:  it.Payload,
		Headers:  it.Header.Fields,
		Kind:     kind,
		Position: tok[:],
	}
}
