package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/source"
	"github.com/rzbill/flowatch/pkg/log"
)

// Action is one step of user processing for a record.
type Action func(ctx context.Context, rec source.Record, meta Meta) error

// Observer receives delivery observations. Implemented by internal/metrics.
type Observer interface {
	ObserveDelivered(tag string)
	ObserveCallbackError(tag string)
	ObservePersistenceError(tag string)
	ObserveSave(tag string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveDelivered(string)           {}
func (noopObserver) ObserveCallbackError(string)       {}
func (noopObserver) ObservePersistenceError(string)    {}
func (noopObserver) ObserveSave(string, time.Duration) {}

// Config configures a Chain.
type Config struct {
	// Location is where positions are persisted. Required.
	Location string
	Tag      string
	Actions  []Action
	Values   map[string]any
	// Report receives every CallbackError and PersistenceError.
	Report  func(error)
	Logger  log.Logger
	Metrics Observer
}

// Stats is a snapshot of chain activity.
type Stats struct {
	Delivered         uint64
	CallbackErrors    uint64
	PersistenceErrors uint64
	LastPersisted     uint64
	// InFlight is set while an invocation runs; InFlightSeq and InFlightSince
	// describe it so a stalled action is observable.
	InFlight      bool
	InFlightSeq   uint64
	InFlightSince time.Time
}

// Chain runs the persistence step followed by the user actions for every
// record, one record at a time.
type Chain struct {
	store   bookmark.Store
	actions []Action
	meta    Meta
	report  func(error)
	logger  log.Logger
	metrics Observer

	// run serializes invocations.
	run sync.Mutex

	mu    sync.Mutex
	stats Stats
}

// NewChain builds a chain whose first step saves each record's token to
// cfg.Location. The persistence step cannot be removed or reordered.
func NewChain(store bookmark.Store, cfg Config) (*Chain, error) {
	if store == nil {
		return nil, errors.New("dispatch: nil position store")
	}
	if cfg.Location == "" {
		return nil, fmt.Errorf("dispatch: empty location: %w", bookmark.ErrInvalidLocation)
	}
	for i, a := range cfg.Actions {
		if a == nil {
			return nil, fmt.Errorf("dispatch: action %d is nil", i)
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopObserver{}
	}
	report := cfg.Report
	if report == nil {
		report = func(error) {}
	}
	return &Chain{
		store:   store,
		actions: append([]Action(nil), cfg.Actions...),
		meta:    newMeta(cfg.Location, cfg.Tag, cfg.Values),
		report:  report,
		logger:  logger.With(log.Component("dispatch"), log.Str("tag", cfg.Tag)),
		metrics: metrics,
	}, nil
}

// Meta returns the context passed to actions.
func (c *Chain) Meta() Meta { return c.meta }

// Invoke persists rec's token, then runs each action in order. Failures are
// reported and never stop later steps.
func (c *Chain) Invoke(ctx context.Context, rec source.Record) {
	c.run.Lock()
	defer c.run.Unlock()

	c.mu.Lock()
	c.stats.InFlight, c.stats.InFlightSeq, c.stats.InFlightSince = true, rec.Sequence, time.Now()
	c.mu.Unlock()

	c.persist(ctx, rec)
	for i, a := range c.actions {
		if err := c.call(ctx, i, a, rec); err != nil {
			c.mu.Lock()
			c.stats.CallbackErrors++
			c.mu.Unlock()
			c.metrics.ObserveCallbackError(c.meta.tag)
			c.logger.Warn("action failed", log.Int("action", i), log.Uint64("seq", rec.Sequence), log.Err(err))
			c.report(err)
		}
	}

	c.mu.Lock()
	c.stats.Delivered++
	c.stats.InFlight, c.stats.InFlightSeq, c.stats.InFlightSince = false, 0, time.Time{}
	c.mu.Unlock()
	c.metrics.ObserveDelivered(c.meta.tag)
}

func (c *Chain) persist(ctx context.Context, rec source.Record) {
	start := time.Now()
	err := c.store.Save(ctx, rec.Token(), c.meta.location)
	c.metrics.ObserveSave(c.meta.tag, time.Since(start))
	if err == nil {
		c.mu.Lock()
		c.stats.LastPersisted = rec.Sequence
		c.mu.Unlock()
		return
	}
	perr := &PersistenceError{Tag: c.meta.tag, Location: c.meta.location, Sequence: rec.Sequence, Err: err}
	c.mu.Lock()
	c.stats.PersistenceErrors++
	c.mu.Unlock()
	c.metrics.ObservePersistenceError(c.meta.tag)
	c.logger.Warn("position not persisted", log.Uint64("seq", rec.Sequence), log.Err(err))
	c.report(perr)
}

func (c *Chain) call(ctx context.Context, i int, a Action, rec source.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Tag: c.meta.tag, Action: i, RecordID: rec.ID, Sequence: rec.Sequence, Panic: true, Err: fmt.Errorf("%v", r)}
		}
	}()
	if aerr := a(ctx, rec, c.meta); aerr != nil {
		return &CallbackError{Tag: c.meta.tag, Action: i, RecordID: rec.ID, Sequence: rec.Sequence, Err: aerr}
	}
	return nil
}

// Stats returns a snapshot of chain activity.
func (c *Chain) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
