package subscription

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/dispatch"
	"github.com/rzbill/flowatch/internal/watcher"
	"github.com/rzbill/flowatch/pkg/log"
)

const (
	DefaultLocation    = "./flowatch.bookmark"
	DefaultTag         = "flowatch"
	DefaultErrorBuffer = 64
)

// Spec describes what a subscription does with each record.
type Spec struct {
	// Location is where positions are saved. Defaults to DefaultLocation.
	Location string
	// Tag names the subscription. Defaults to DefaultTag.
	Tag     string
	Actions []dispatch.Action
	Values  map[string]any
	// OnError is called on the delivery goroutine for every delivery error.
	// It must not block.
	OnError func(error)
	// ErrorBuffer sizes the Errors channel. Defaults to DefaultErrorBuffer.
	ErrorBuffer int
}

func (s Spec) withDefaults() Spec {
	if s.Location == "" {
		s.Location = DefaultLocation
	}
	if s.Tag == "" {
		s.Tag = DefaultTag
	}
	if s.ErrorBuffer <= 0 {
		s.ErrorBuffer = DefaultErrorBuffer
	}
	return s
}

// Observer receives subscription and chain observations.
type Observer interface {
	dispatch.Observer
	ObserveDroppedError(tag string)
}

type Option func(*Subscription)

func WithLogger(l log.Logger) Option {
	return func(s *Subscription) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m Observer) Option {
	return func(s *Subscription) { s.metrics = m }
}

// Subscription is the handle returned by Bind.
type Subscription struct {
	id       string
	tag      string
	location string
	w        *watcher.Watcher
	reg      *watcher.Registration
	chain    *dispatch.Chain
	onError  func(error)
	logger   log.Logger
	metrics  Observer

	errs      chan error
	dropped   atomic.Uint64
	closeOnce sync.Once
	closeErr  error
}

// Stats is a snapshot of a subscription.
type Stats struct {
	ID            string
	Tag           string
	Location      string
	State         watcher.State
	Chain         dispatch.Stats
	DroppedErrors uint64
	Last          bookmark.Token
	HasLast       bool
	Err           error
}

// Bind builds the callback chain for spec and registers it with w. The
// watcher stays disabled until Start.
func Bind(w *watcher.Watcher, store bookmark.Store, spec Spec, opts ...Option) (*Subscription, error) {
	spec = spec.withDefaults()
	if w == nil || store == nil {
		return nil, &BindError{Tag: spec.Tag, Location: spec.Location, Err: errors.New("nil watcher or store")}
	}
	loc, err := store.Resolve(spec.Location)
	if err != nil {
		return nil, &BindError{Tag: spec.Tag, Location: spec.Location, Err: err}
	}

	s := &Subscription{
		id:       uuid.NewString(),
		tag:      spec.Tag,
		location: loc,
		w:        w,
		onError:  spec.OnError,
		logger:   log.NewNopLogger(),
		errs:     make(chan error, spec.ErrorBuffer),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(log.Component("subscription"), log.Str("tag", s.tag), log.Str("id", s.id))

	cfg := dispatch.Config{
		Location: loc,
		Tag:      spec.Tag,
		Actions:  spec.Actions,
		Values:   spec.Values,
		Report:   s.report,
		Logger:   s.logger,
	}
	if s.metrics != nil {
		cfg.Metrics = s.metrics
	}
	s.chain, err = dispatch.NewChain(store, cfg)
	if err != nil {
		return nil, &BindError{Tag: spec.Tag, Location: loc, Err: err}
	}
	s.reg, err = w.Register(s.chain)
	if err != nil {
		return nil, &BindError{Tag: spec.Tag, Location: loc, Err: err}
	}
	s.logger.Debug("subscription bound", log.Str("location", loc))
	return s, nil
}

func (s *Subscription) ID() string                { return s.id }
func (s *Subscription) Tag() string               { return s.tag }
func (s *Subscription) Location() string          { return s.location }
func (s *Subscription) Watcher() *watcher.Watcher { return s.w }

// SourceIdentifier is the identifier of the watched query.
func (s *Subscription) SourceIdentifier() string { return s.w.Query().Identifier() }

// Start enables delivery.
func (s *Subscription) Start(ctx context.Context) error { return s.reg.Enable(ctx) }

// Stop disables delivery after the in-flight record completes. The
// subscription can be started again and resumes after the last record.
func (s *Subscription) Stop() error { return s.reg.Disable() }

// Close disposes the watcher and closes the Errors channel. It is idempotent.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.w.Dispose()
		close(s.errs)
		s.logger.Debug("subscription closed")
	})
	return s.closeErr
}

// Errors delivers CallbackError and PersistenceError values. Errors that do
// not fit in the buffer are dropped and counted in Stats.
func (s *Subscription) Errors() <-chan error { return s.errs }

func (s *Subscription) Stats() Stats {
	last, ok := s.w.Last()
	return Stats{
		ID:            s.id,
		Tag:           s.tag,
		Location:      s.location,
		State:         s.w.State(),
		Chain:         s.chain.Stats(),
		DroppedErrors: s.dropped.Load(),
		Last:          last,
		HasLast:       ok,
		Err:           s.w.Err(),
	}
}

func (s *Subscription) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
	select {
	case s.errs <- err:
	default:
		s.dropped.Add(1)
		if s.metrics != nil {
			s.metrics.ObserveDroppedError(s.tag)
		}
	}
}
