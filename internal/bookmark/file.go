package bookmark

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/rzbill/flowatch/pkg/log"
)

// FileStore keeps one token per file. Writers hold an exclusive OS lock and
// readers a shared one, so a reader never observes a partially written file.
type FileStore struct {
	opts   options
	logger log.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a file-backed store.
func NewFileStore(opts ...Option) *FileStore {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &FileStore{opts: o, logger: o.logger.With(log.Component("bookmark.file"))}
}

// WorkDir returns the directory relative locations resolve against.
func (s *FileStore) WorkDir() string { return s.opts.workDir }

// Resolve implements Store.
func (s *FileStore) Resolve(location string) (string, error) {
	return ResolveLocation(s.opts.workDir, location)
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, t Token, location string) (err error) {
	path, err := s.Resolve(location)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return storeErr("save", path, nil, err)
	}
	data, err := Marshal(t)
	if err != nil {
		return storeErr("save", path, nil, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, fs.FileMode(s.opts.perm))
	if err != nil {
		return storeErr("save", path, ErrIO, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = storeErr("save", path, ErrIO, cerr)
		}
	}()

	if err := lockFile(f, true); err != nil {
		return storeErr("save", path, ErrIO, err)
	}
	defer func() {
		if uerr := unlockFile(f); uerr != nil && err == nil {
			err = storeErr("save", path, ErrIO, uerr)
		}
	}()

	// Write before truncating so a saved file never passes through zero
	// length; an interrupted rewrite then fails to decode instead of reading
	// as a fresh start.
	if _, err := f.WriteAt(data, 0); err != nil {
		return storeErr("save", path, ErrIO, err)
	}
	if err := f.Truncate(int64(len(data))); err != nil {
		return storeErr("save", path, ErrIO, err)
	}
	if err := f.Sync(); err != nil {
		return storeErr("save", path, ErrIO, err)
	}
	s.logger.Debug("bookmark saved", log.Str("location", path), log.Uint64("seq", t.Sequence()))
	return nil
}

// Load implements Store. A missing or empty file means no prior position;
// an empty file only exists when the first save never wrote. Content that
// does not decode is reported as ErrTypeMismatch.
func (s *FileStore) Load(ctx context.Context, location string, want Kind) (tok Token, found bool, err error) {
	path, err := s.Resolve(location)
	if err != nil {
		return Token{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Token{}, false, storeErr("load", path, nil, err)
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Token{}, false, nil
	}
	if err != nil {
		return Token{}, false, storeErr("load", path, ErrIO, err)
	}
	defer f.Close()

	data, err := readLocked(f)
	if err != nil {
		return Token{}, false, storeErr("load", path, ErrIO, err)
	}
	if len(data) == 0 {
		return Token{}, false, nil
	}
	return decodeWanted("load", path, data, want)
}

func readLocked(f *os.File) (data []byte, err error) {
	if err := lockFile(f, false); err != nil {
		return nil, err
	}
	defer func() {
		if uerr := unlockFile(f); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return io.ReadAll(f)
}

func decodeWanted(op, location string, data []byte, want Kind) (Token, bool, error) {
	t, err := unmarshal(data)
	if err != nil {
		return Token{}, false, storeErr(op, location, ErrTypeMismatch, err)
	}
	if !want.Accepts(t.kind) {
		return Token{}, false, storeErr(op, location, ErrTypeMismatch,
			errors.New("stored "+t.kind.String()+", want "+want.String()))
	}
	return t, true, nil
}
