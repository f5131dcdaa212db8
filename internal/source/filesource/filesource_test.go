package filesource

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/flowatch/internal/query"
	"github.com/rzbill/flowatch/internal/source"
)

type sink struct {
	mu   sync.Mutex
	recs []source.Record
}

func (s *sink) emit(_ context.Context, r source.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, r)
	return nil
}

func (s *sink) snapshot() []source.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]source.Record(nil), s.recs...)
}

func appendLines(t *testing.T, path string, lines string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(lines)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func startStream(t *testing.T, src *Source, q query.Query, s *sink, start *source.Record) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		if start != nil {
			tok := start.Token()
			done <- src.Stream(ctx, q, &tok, s.emit)
			return
		}
		done <- src.Stream(ctx, q, nil, s.emit)
	}()
	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Errorf("stream did not stop")
		}
	}
}

func TestTailFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	appendLines(t, path, "{\"id\":\"a\",\"ts_ms\":5,\"headers\":{\"k\":\"v\"}}\nplain text\n")

	src := New(WithPollInterval(20 * time.Millisecond))
	q := query.MustNew(path, "*", query.ByFilePath)
	s := &sink{}
	stop := startStream(t, src, q, s, nil)
	defer stop()

	require.Eventually(t, func() bool { return len(s.snapshot()) == 2 }, 5*time.Second, 10*time.Millisecond)
	appendLines(t, path, "partial")
	appendLines(t, path, " line\n")
	require.Eventually(t, func() bool { return len(s.snapshot()) == 3 }, 5*time.Second, 10*time.Millisecond)

	recs := s.snapshot()
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, int64(5), recs[0].Created.UnixMilli())
	assert.Equal(t, "v", recs[0].Headers["k"])
	assert.Equal(t, "plain text", string(recs[1].Payload))
	assert.Equal(t, "partial line", string(recs[2].Payload))
	for i, r := range recs {
		assert.Equal(t, uint64(i+1), r.Sequence)
		assert.Equal(t, source.KindFor(src, q), r.Kind)
	}
}

func TestResumeFromToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	appendLines(t, path, "one\ntwo\n")

	src := New(WithPollInterval(20 * time.Millisecond))
	q := query.MustNew(path, "*", query.ByFilePath)
	first := &sink{}
	stop := startStream(t, src, q, first, nil)
	require.Eventually(t, func() bool { return len(first.snapshot()) == 2 }, 5*time.Second, 10*time.Millisecond)
	stop()

	appendLines(t, path, "three\n")
	last := first.snapshot()[1]
	second := &sink{}
	stop = startStream(t, src, q, second, &last)
	defer stop()
	require.Eventually(t, func() bool { return len(second.snapshot()) == 1 }, 5*time.Second, 10*time.Millisecond)
	got := second.snapshot()[0]
	assert.Equal(t, "three", string(got.Payload))
	assert.Equal(t, uint64(3), got.Sequence)
}

func TestWaitsForMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "later.jsonl")
	src := New(WithPollInterval(20 * time.Millisecond))
	s := &sink{}
	stop := startStream(t, src, query.MustNew(path, `text == "x"`, query.ByFilePath), s, nil)
	defer stop()

	time.Sleep(50 * time.Millisecond)
	appendLines(t, path, "y\nx\n")
	require.Eventually(t, func() bool { return len(s.snapshot()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(2), s.snapshot()[0].Sequence)
}

func TestTruncationStopsStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	appendLines(t, path, "one\ntwo\n")
	src := New(WithPollInterval(20 * time.Millisecond))
	q := query.MustNew(path, "*", query.ByFilePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &sink{}
	errc := make(chan error, 1)
	go func() { errc <- src.Stream(ctx, q, nil, s.emit) }()
	require.Eventually(t, func() bool { return len(s.snapshot()) == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	select {
	case err := <-errc:
		require.ErrorIs(t, err, ErrTruncated)
	case <-time.After(5 * time.Second):
		t.Fatalf("expected truncation error")
	}
}
