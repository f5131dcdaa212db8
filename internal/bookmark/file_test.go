package bookmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var logKind = Kind{Type: "eventlog", Scope: "abc123"}

func newFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(WithWorkDir(dir)), dir
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()
	tok := NewToken(logKind, 42, []byte{0x01, 0x02})

	require.NoError(t, s.Save(ctx, tok, "./orders.bookmark"))
	got, found, err := s.Load(ctx, filepath.Join(dir, "orders.bookmark"), logKind)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Equal(tok), "got %v want %v", got, tok)
	assert.Equal(t, []byte{0x01, 0x02}, got.Position())
}

func TestFileStoreSaveIsIdempotent(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()
	tok := NewToken(logKind, 7, nil)

	require.NoError(t, s.Save(ctx, tok, "./b"))
	st1, err := os.Stat(filepath.Join(dir, "b"))
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, tok, "./b"))
	st2, err := os.Stat(filepath.Join(dir, "b"))
	require.NoError(t, err)
	assert.Equal(t, st1.Size(), st2.Size())

	got, found, err := s.Load(ctx, "./b", logKind)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Equal(tok))
}

func TestFileStoreStaleOverwrite(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()
	old := NewToken(logKind, 1, []byte("a much longer position than the next one"))
	next := NewToken(logKind, 2, []byte("short"))

	require.NoError(t, s.Save(ctx, old, "./b"))
	require.NoError(t, s.Save(ctx, next, "./b"))

	raw, err := os.ReadFile(filepath.Join(dir, "b"))
	require.NoError(t, err)
	want, err := Marshal(next)
	require.NoError(t, err)
	assert.Equal(t, want, raw, "no trace of the previous token may remain")
}

func TestFileStoreMissingIsFreshStart(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()

	_, found, err := s.Load(ctx, "./nope", logKind)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), nil, 0o644))
	_, found, err = s.Load(ctx, "./empty", logKind)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileStoreInterruptedRewriteIsReported(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()
	path := filepath.Join(dir, "pos")
	require.NoError(t, s.Save(ctx, NewToken(logKind, 42, []byte{0, 0, 0, 0, 0, 0, 0, 42}), "./pos"))
	st, err := os.Stat(path)
	require.NoError(t, err)

	// a rewrite cut short leaves a prefix of the token, never an empty file
	for _, size := range []int64{st.Size() - 3, int64(len(magic) + 1)} {
		require.NoError(t, os.Truncate(path, size))
		_, found, err := s.Load(ctx, "./pos", logKind)
		require.ErrorIs(t, err, ErrTypeMismatch, "size %d", size)
		assert.False(t, found)
	}

	// the next save repairs the file
	require.NoError(t, s.Save(ctx, NewToken(logKind, 43, nil), "./pos"))
	got, found, err := s.Load(ctx, "./pos", logKind)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(43), got.Sequence())
}

func TestFileStoreTypeMismatch(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, NewToken(logKind, 3, nil), "./b"))

	_, found, err := s.Load(ctx, "./b", Kind{Type: "file"})
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.False(t, found)

	_, _, err = s.Load(ctx, "./b", Kind{Type: "eventlog", Scope: "other"})
	require.ErrorIs(t, err, ErrTypeMismatch)

	// an empty scope accepts any scope of the same type
	_, found, err = s.Load(ctx, "./b", Kind{Type: "eventlog"})
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk"), []byte("not a token"), 0o644))
	_, _, err = s.Load(ctx, "./junk", logKind)
	require.ErrorIs(t, err, ErrTypeMismatch)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "load", se.Op)
	assert.Equal(t, filepath.Join(dir, "junk"), se.Location)
}

func TestFileStoreIOError(t *testing.T) {
	s, dir := newFileStore(t)
	ctx := context.Background()

	err := s.Save(ctx, NewToken(logKind, 1, nil), filepath.Join(dir, "missing-dir", "b"))
	require.ErrorIs(t, err, ErrIO)

	// a directory is not a readable token file
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d"), 0o755))
	_, _, err = s.Load(ctx, "./d", logKind)
	require.ErrorIs(t, err, ErrIO)

	// the lock was released: a regular save to a sibling still works
	require.NoError(t, s.Save(ctx, NewToken(logKind, 1, nil), "./ok"))
}

func TestFileStoreRejectsEmptyType(t *testing.T) {
	s, _ := newFileStore(t)
	err := s.Save(context.Background(), NewToken(Kind{}, 1, nil), "./b")
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestFileStoreConcurrentWritersNoTornReads(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	const n = 200

	var g errgroup.Group
	for w := 0; w < 2; w++ {
		w := w
		g.Go(func() error {
			for i := 1; i <= n; i++ {
				pos := []byte(fmt.Sprintf("writer-%d-%06d", w, i))
				if err := s.Save(ctx, NewToken(logKind, uint64(i), pos), "./shared"); err != nil {
					return err
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < n; i++ {
			tok, found, err := s.Load(ctx, "./shared", logKind)
			if err != nil {
				return fmt.Errorf("read %d: %w", i, err)
			}
			if found && len(tok.Position()) != len("writer-0-000000") {
				return fmt.Errorf("torn read: %q", tok.Position())
			}
		}
		return nil
	})
	require.NoError(t, g.Wait())
}
