package bookmark

import (
	"context"

	"github.com/rzbill/flowatch/pkg/log"
)

// Store persists position tokens by location.
type Store interface {
	// Save atomically replaces whatever is stored at location with t.
	Save(ctx context.Context, t Token, location string) error
	// Load returns the token at location. found is false, with a nil error,
	// when nothing has been stored there yet.
	Load(ctx context.Context, location string, want Kind) (t Token, found bool, err error)
	// Resolve returns the canonical form of location.
	Resolve(location string) (string, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	workDir string
	perm    uint32
	logger  log.Logger
}

func defaultOptions() options {
	return options{perm: 0o644, logger: log.NewNopLogger()}
}

// WithWorkDir sets the absolute directory relative locations resolve against.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// WithFileMode sets the permission bits for newly created token files.
func WithFileMode(perm uint32) Option {
	return func(o *options) { o.perm = perm }
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
