package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/rzbill/flowatch/internal/bookmark"
	cfgpkg "github.com/rzbill/flowatch/internal/config"
	"github.com/rzbill/flowatch/internal/dispatch"
	"github.com/rzbill/flowatch/internal/eventlog"
	"github.com/rzbill/flowatch/internal/metrics"
	"github.com/rzbill/flowatch/internal/query"
	"github.com/rzbill/flowatch/internal/source"
	"github.com/rzbill/flowatch/internal/source/filesource"
	"github.com/rzbill/flowatch/internal/source/logsource"
	pebblestore "github.com/rzbill/flowatch/internal/storage/pebble"
	"github.com/rzbill/flowatch/internal/subscription"
	"github.com/rzbill/flowatch/internal/watcher"
	"github.com/rzbill/flowatch/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	Config cfgpkg.Config
	Logger log.Logger
	// Metrics is created when nil.
	Metrics *metrics.Metrics
}

// Runtime wires storage, sources, the bookmark store and the subscription
// registry for a single process.
type Runtime struct {
	db       *pebblestore.DB
	config   cfgpkg.Config
	logger   log.Logger
	metrics  *metrics.Metrics
	catalog  *eventlog.Catalog
	store    bookmark.Store
	mux      *source.Mux
	registry *subscription.Registry
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	fsync, err := pebblestore.ParseFsyncMode(cfg.Fsync)
	if err != nil {
		return nil, err
	}
	workDir, err := cfg.ResolvedWorkDir()
	if err != nil {
		return nil, fmt.Errorf("runtime: work dir: %w", err)
	}

	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       cfg.ResolvedDataDir(),
		Fsync:         fsync,
		FsyncInterval: cfg.FsyncInterval(),
		Metrics:       m,
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		db:       db,
		config:   cfg,
		logger:   logger.With(log.Component("runtime")),
		metrics:  m,
		catalog:  eventlog.NewCatalog(db),
		mux:      source.NewMux(),
		registry: subscription.NewRegistry(),
	}

	storeOpts := []bookmark.Option{bookmark.WithWorkDir(workDir), bookmark.WithLogger(logger)}
	switch cfg.Bookmark.Backend {
	case cfgpkg.BackendPebble:
		rt.store = bookmark.NewPebbleStore(db, storeOpts...)
	default:
		rt.store = bookmark.NewFileStore(storeOpts...)
	}

	rt.mux.Handle(query.ByName, logsource.New(rt.catalog,
		logsource.WithBatch(cfg.EventLog.BatchSize),
		logsource.WithIdleWait(cfg.IdleWait()),
		logsource.WithLogger(logger),
	))
	rt.mux.Handle(query.ByFilePath, filesource.New(
		filesource.WithPollInterval(cfg.PollInterval()),
		filesource.WithLogger(logger),
	))

	rt.logger.Debug("runtime opened",
		log.Str("data_dir", cfg.ResolvedDataDir()),
		log.Str("work_dir", workDir),
		log.Str("bookmark_backend", cfg.Bookmark.Backend))
	return rt, nil
}

// Close stops every subscription, then closes the database.
func (r *Runtime) Close() error {
	var merr *multierror.Error
	if r.registry != nil {
		if err := r.registry.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
		r.db = nil
	}
	return merr.ErrorOrNil()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// OpenLog opens the bundled event log for a source name.
func (r *Runtime) OpenLog(name string) (*eventlog.Log, error) {
	return r.catalog.Open(name)
}

// WatchRequest describes one subscription to start.
type WatchRequest struct {
	Identifier string
	Filter     string
	Mode       query.Mode
	// Location and Tag default to the configured bookmark location and tag.
	Location string
	Tag      string
	Actions  []dispatch.Action
	Values   map[string]any
	OnError  func(error)
	// IgnoreStored starts from the beginning even if a position is stored.
	IgnoreStored bool
}

// Watch builds the query, loads the stored position for it, creates a
// watcher seeded from that position, binds the actions, registers the
// subscription and enables it. Delivery runs until ctx is cancelled or the
// subscription is stopped.
func (r *Runtime) Watch(ctx context.Context, req WatchRequest) (*subscription.Subscription, error) {
	q, err := query.New(req.Identifier, req.Filter, req.Mode)
	if err != nil {
		return nil, err
	}
	src, err := r.mux.Route(q)
	if err != nil {
		return nil, err
	}
	location := req.Location
	if location == "" {
		location = r.config.Bookmark.Location
	}
	tag := req.Tag
	if tag == "" {
		tag = r.config.Subscription.Tag
	}

	var opts []watcher.Option
	if !req.IgnoreStored {
		tok, found, err := r.store.Load(ctx, location, source.KindFor(src, q))
		if err != nil {
			return nil, err
		}
		if found {
			opts = append(opts, watcher.WithStart(tok))
			r.logger.Info("resuming from stored position",
				log.Str("tag", tag), log.Str("location", location), log.Uint64("sequence", tok.Sequence()))
		}
	}
	opts = append(opts, watcher.WithLogger(r.logger))

	w, err := watcher.New(q, src, opts...)
	if err != nil {
		return nil, err
	}
	sub, err := subscription.Bind(w, r.store, subscription.Spec{
		Location:    location,
		Tag:         tag,
		Actions:     req.Actions,
		Values:      req.Values,
		OnError:     req.OnError,
		ErrorBuffer: r.config.Subscription.ErrorBuffer,
	}, subscription.WithLogger(r.logger), subscription.WithMetrics(r.metrics))
	if err != nil {
		_ = w.Dispose()
		return nil, err
	}
	if err := r.registry.Add(sub); err != nil {
		_ = sub.Close()
		return nil, err
	}
	if err := sub.Start(ctx); err != nil {
		_ = r.registry.Unregister(sub.Tag())
		return nil, err
	}
	return sub, nil
}

// DB exposes the underlying DB for advanced operations (internal use only).
func (r *Runtime) DB() *pebblestore.DB { return r.db }

func (r *Runtime) Catalog() *eventlog.Catalog       { return r.catalog }
func (r *Runtime) Store() bookmark.Store            { return r.store }
func (r *Runtime) Metrics() *metrics.Metrics        { return r.metrics }
func (r *Runtime) Registry() *subscription.Registry { return r.registry }
func (r *Runtime) Config() cfgpkg.Config            { return r.config }
