package bookmark

import (
	"context"

	pebblestore "github.com/rzbill/flowatch/internal/storage/pebble"
	"github.com/rzbill/flowatch/pkg/log"
)

var bookmarkPrefix = []byte("bm/")

// PebbleStore keeps tokens in the runtime's Pebble database, keyed by the
// resolved location. Each Save is a single atomic batch commit.
type PebbleStore struct {
	db     *pebblestore.DB
	opts   options
	logger log.Logger
}

var _ Store = (*PebbleStore)(nil)

// NewPebbleStore returns a store over db. Locations resolve exactly as for
// FileStore so both backends accept the same inputs.
func NewPebbleStore(db *pebblestore.DB, opts ...Option) *PebbleStore {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &PebbleStore{db: db, opts: o, logger: o.logger.With(log.Component("bookmark.pebble"))}
}

func keyFor(path string) []byte {
	k := make([]byte, 0, len(bookmarkPrefix)+len(path))
	k = append(k, bookmarkPrefix...)
	return append(k, path...)
}

// Resolve implements Store.
func (s *PebbleStore) Resolve(location string) (string, error) {
	return ResolveLocation(s.opts.workDir, location)
}

// Save implements Store.
func (s *PebbleStore) Save(ctx context.Context, t Token, location string) error {
	path, err := s.Resolve(location)
	if err != nil {
		return err
	}
	data, err := Marshal(t)
	if err != nil {
		return storeErr("save", path, nil, err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyFor(path), data, nil); err != nil {
		return storeErr("save", path, ErrIO, err)
	}
	if err := s.db.CommitBatch(ctx, b); err != nil {
		if ctx.Err() != nil {
			return storeErr("save", path, nil, err)
		}
		return storeErr("save", path, ErrIO, err)
	}
	s.logger.Debug("bookmark saved", log.Str("location", path), log.Uint64("seq", t.Sequence()))
	return nil
}

// Load implements Store.
func (s *PebbleStore) Load(ctx context.Context, location string, want Kind) (Token, bool, error) {
	path, err := s.Resolve(location)
	if err != nil {
		return Token{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Token{}, false, storeErr("load", path, nil, err)
	}
	data, err := s.db.Get(keyFor(path))
	if pebblestore.IsNotFound(err) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, storeErr("load", path, ErrIO, err)
	}
	return decodeWanted("load", path, data, want)
}
