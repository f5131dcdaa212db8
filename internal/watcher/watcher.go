package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/query"
	"github.com/rzbill/flowatch/internal/source"
	"github.com/rzbill/flowatch/pkg/log"
)

// Handler consumes delivered records. Invoke must not call Disable or Dispose
// on the watcher delivering to it.
type Handler interface {
	Invoke(ctx context.Context, rec source.Record)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rec source.Record)

func (f HandlerFunc) Invoke(ctx context.Context, rec source.Record) { f(ctx, rec) }

// errHalt stops a stream whose watcher is no longer watching.
var errHalt = errors.New("watcher: halted")

// Watcher drives one query over one source. It starts in Created; binding a
// handler with Register moves it to Registered and yields the only value that
// can enable delivery.
type Watcher struct {
	q      query.Query
	src    source.Source
	kind   bookmark.Kind
	logger log.Logger

	// trans serializes Enable, Disable and Dispose.
	trans sync.Mutex

	mu        sync.Mutex
	state     State
	handler   Handler
	last      *bookmark.Token
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	delivered uint64
}

// Option configures a Watcher at construction.
type Option func(*Watcher) error

// WithStart seeds the position delivery resumes after. The token must have
// been produced for the same query on the same kind of source.
func WithStart(tok bookmark.Token) Option {
	return func(w *Watcher) error {
		if tok.IsZero() {
			return nil
		}
		if tok.Kind() != w.kind {
			return fmt.Errorf("%w: start token is %s, watcher wants %s", bookmark.ErrTypeMismatch, tok.Kind(), w.kind)
		}
		w.last = &tok
		return nil
	}
}

func WithLogger(l log.Logger) Option {
	return func(w *Watcher) error {
		if l != nil {
			w.logger = l
		}
		return nil
	}
}

// New constructs a watcher in the Created state.
func New(q query.Query, src source.Source, opts ...Option) (*Watcher, error) {
	if q.IsZero() {
		return nil, fmt.Errorf("%w: zero query", ErrInvalid)
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalid)
	}
	w := &Watcher{q: q, src: src, kind: source.KindFor(src, q), logger: log.NewNopLogger(), state: Created}
	for _, o := range opts {
		if err := o(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With(log.Component("watcher"), log.Str("query", q.String()))
	return w, nil
}

func (w *Watcher) Query() query.Query { return w.q }

// Kind is the token kind this watcher produces and accepts.
func (w *Watcher) Kind() bookmark.Kind { return w.kind }

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the error that last ended the delivery loop, if any.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Done returns a channel closed when the current delivery loop exits. It is
// already closed when the watcher is not watching.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Watching && w.done != nil {
		return w.done
	}
	return closedChan
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Last returns the token of the last delivered record, or the start token
// when nothing has been delivered yet.
func (w *Watcher) Last() (bookmark.Token, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return bookmark.Token{}, false
	}
	return *w.last, true
}

// Delivered counts handler invocations that completed.
func (w *Watcher) Delivered() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.delivered
}

// Register binds h and moves the watcher to Registered. h is invoked as is:
// positions are only saved when h is the callback chain built by
// subscription.Bind, which is the supported way to register outside tests.
func (w *Watcher) Register(h Handler) (*Registration, error) {
	if h == nil {
		return nil, ErrNilHandler
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case Stopped:
		return nil, ErrStopped
	case Created:
	default:
		return nil, ErrAlreadyRegistered
	}
	w.handler = h
	w.state = Registered
	w.logger.Debug("watcher registered")
	return &Registration{w: w}, nil
}

// Dispose stops delivery if needed and moves the watcher to Stopped. It is
// idempotent.
func (w *Watcher) Dispose() error {
	w.trans.Lock()
	defer w.trans.Unlock()
	w.halt()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Stopped {
		return nil
	}
	w.state = Stopped
	w.handler = nil
	w.logger.Debug("watcher stopped")
	return nil
}

// halt cancels a running loop and waits for the in-flight invocation.
// Callers hold trans.
func (w *Watcher) halt() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	if cancel != nil {
		cancel()
	}
	w.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (w *Watcher) enable(ctx context.Context) error {
	w.trans.Lock()
	defer w.trans.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.state {
	case Created:
		return ErrNotRegistered
	case Watching:
		return ErrAlreadyWatching
	case Stopped:
		return ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done, w.err = cancel, done, nil
	w.state = Watching
	var start *bookmark.Token
	if w.last != nil {
		t := *w.last
		start = &t
	}
	go w.run(sctx, start, w.handler, done)
	w.logger.Debug("watcher enabled", log.Uint64("after", seqOf(start)))
	return nil
}

func (w *Watcher) disable() error {
	w.trans.Lock()
	defer w.trans.Unlock()

	w.mu.Lock()
	switch w.state {
	case Created:
		w.mu.Unlock()
		return ErrNotRegistered
	case Stopped:
		w.mu.Unlock()
		return ErrStopped
	}
	w.mu.Unlock()

	w.halt()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Watching {
		w.state = Registered
	}
	w.logger.Debug("watcher disabled", log.Uint64("delivered", w.delivered))
	return nil
}

func (w *Watcher) run(ctx context.Context, start *bookmark.Token, h Handler, done chan struct{}) {
	emit := func(sctx context.Context, rec source.Record) error {
		w.mu.Lock()
		if sctx.Err() != nil || w.state != Watching {
			w.mu.Unlock()
			return errHalt
		}
		w.mu.Unlock()

		// the invocation runs to completion even if delivery is being disabled
		h.Invoke(context.WithoutCancel(sctx), rec)

		tok := rec.Token()
		w.mu.Lock()
		w.last = &tok
		w.delivered++
		w.mu.Unlock()
		return nil
	}

	err := w.src.Stream(ctx, w.q, start, emit)
	if errors.Is(err, errHalt) {
		err = nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.err = err
		w.logger.Error("delivery loop failed", log.Err(err))
	}
	if w.state == Watching && w.done == done {
		// the source ended or the enabling context was cancelled
		w.state = Registered
		if w.cancel != nil {
			w.cancel()
			w.cancel = nil
		}
	}
	close(done)
}

func seqOf(t *bookmark.Token) uint64 {
	if t == nil {
		return 0
	}
	return t.Sequence()
}
