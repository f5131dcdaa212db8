package watchrun

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/flowatch/internal/config"
	"github.com/rzbill/flowatch/internal/dispatch"
	"github.com/rzbill/flowatch/internal/runtime"
	"github.com/rzbill/flowatch/internal/source"
	logpkg "github.com/rzbill/flowatch/pkg/log"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	Config  cfgpkg.Config
	Logger  logpkg.Logger
	Request runtime.WatchRequest
	// Limit stops the run after this many delivered events; 0 runs until ctx ends.
	Limit int
	// Out receives one line per event. Defaults to os.Stdout.
	Out io.Writer
	// Format is FormatJSON (default) or FormatText.
	Format string
	// Ready, when set, is called with the metrics listener address once
	// serving has begun.
	Ready func(metricsAddr string)
}

// Event is the JSON form of a delivered record.
type Event struct {
	Tag         string            `json:"tag"`
	Source      string            `json:"source"`
	Sequence    uint64            `json:"sequence"`
	ID          string            `json:"id,omitempty"`
	Created     time.Time         `json:"created"`
	Machine     string            `json:"machine,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	PayloadJSON json.RawMessage   `json:"payload_json,omitempty"`
	PayloadText *string           `json:"payload_text,omitempty"`
	PayloadB64  string            `json:"payload_b64,omitempty"`
}

// NewEvent renders rec for output.
func NewEvent(rec source.Record, meta dispatch.Meta) Event {
	ev := Event{
		Tag:      meta.Tag(),
		Source:   rec.Source,
		Sequence: rec.Sequence,
		ID:       rec.ID,
		Created:  rec.Created.UTC(),
		Machine:  rec.Machine,
		Headers:  rec.Headers,
	}
	p := rec.Payload
	switch {
	case len(p) > 0 && (p[0] == '{' || p[0] == '[') && json.Valid(p):
		ev.PayloadJSON = json.RawMessage(p)
	case utf8.Valid(p):
		s := string(p)
		ev.PayloadText = &s
	default:
		ev.PayloadB64 = base64.StdEncoding.EncodeToString(p)
	}
	return ev
}

// Run opens the runtime, starts one subscription that prints every event in
// the chosen format and blocks until ctx is cancelled or Limit events were delivered.
func Run(ctx context.Context, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	encode, err := newEncoder(opts.Format, out)
	if err != nil {
		return err
	}

	rt, err := runtime.Open(runtime.Options{Config: opts.Config, Logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	metricsAddr := ""
	if opts.Config.MetricsAddr != "" {
		ln, err := net.Listen("tcp", opts.Config.MetricsAddr)
		if err != nil {
			return err
		}
		metricsAddr = ln.Addr().String()
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.Metrics().Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := rt.CheckHealth(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
		logger.Info("serving metrics", logpkg.Str("addr", metricsAddr))
	}

	var (
		mu        sync.Mutex
		delivered int
	)
	emit := func(_ context.Context, rec source.Record, meta dispatch.Meta) error {
		mu.Lock()
		defer mu.Unlock()
		if opts.Limit > 0 && delivered >= opts.Limit {
			return nil
		}
		if err := encode(NewEvent(rec, meta)); err != nil {
			return err
		}
		delivered++
		if opts.Limit > 0 && delivered >= opts.Limit {
			cancel()
		}
		return nil
	}

	req := opts.Request
	req.Actions = append(append([]dispatch.Action(nil), req.Actions...), emit)
	sub, err := rt.Watch(gctx, req)
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	logger.Info("watching",
		logpkg.Str("tag", sub.Tag()),
		logpkg.Str("source", sub.SourceIdentifier()),
		logpkg.Str("location", sub.Location()),
		logpkg.Int("limit", opts.Limit))
	if opts.Ready != nil {
		opts.Ready(metricsAddr)
	}

	done := sub.Watcher().Done()
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-done:
			// the loop ended on its own (limit reached, source failure)
			cancel()
			return sub.Watcher().Err()
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err, ok := <-sub.Errors():
				if !ok {
					return nil
				}
				logger.Debug("delivery error reported", logpkg.Err(err))
			}
		}
	})

	return g.Wait()
}
