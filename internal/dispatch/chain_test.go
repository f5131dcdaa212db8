package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/source"
)

var kind = bookmark.Kind{Type: "memory", Scope: "s"}

func record(seq uint64) source.Record {
	return source.Record{ID: "r", Sequence: seq, Kind: kind}
}

type errSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errSink) report(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *errSink) all() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

func newStore(t *testing.T) *bookmark.FileStore {
	return bookmark.NewFileStore(bookmark.WithWorkDir(t.TempDir()))
}

func location(t *testing.T, s bookmark.Store) string {
	loc, err := s.Resolve("./chain.bookmark")
	require.NoError(t, err)
	return loc
}

func TestPersistRunsBeforeActionsInOrder(t *testing.T) {
	store := newStore(t)
	loc := location(t, store)
	var order []string
	c, err := NewChain(store, Config{
		Location: loc,
		Tag:      "orders",
		Actions: []Action{
			func(ctx context.Context, rec source.Record, m Meta) error {
				tok, found, err := store.Load(ctx, m.Location(), kind)
				require.NoError(t, err)
				require.True(t, found, "position must be saved before the first action")
				assert.Equal(t, rec.Sequence, tok.Sequence())
				order = append(order, "first")
				return nil
			},
			func(context.Context, source.Record, Meta) error {
				order = append(order, "second")
				return nil
			},
		},
	})
	require.NoError(t, err)

	c.Invoke(context.Background(), record(1))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, uint64(1), c.Stats().LastPersisted)
	assert.Equal(t, uint64(1), c.Stats().Delivered)
}

func TestFailingActionIsReportedAndChainContinues(t *testing.T) {
	store := newStore(t)
	loc := location(t, store)
	sink := &errSink{}
	var ran []uint64
	c, err := NewChain(store, Config{
		Location: loc,
		Tag:      "orders",
		Report:   sink.report,
		Actions: []Action{
			func(_ context.Context, rec source.Record, _ Meta) error {
				if rec.Sequence == 1 {
					return errors.New("boom")
				}
				return nil
			},
			func(_ context.Context, rec source.Record, _ Meta) error {
				if rec.Sequence == 1 {
					panic("kaboom")
				}
				return nil
			},
			func(_ context.Context, rec source.Record, _ Meta) error {
				ran = append(ran, rec.Sequence)
				return nil
			},
		},
	})
	require.NoError(t, err)

	c.Invoke(context.Background(), record(1))
	c.Invoke(context.Background(), record(2))

	assert.Equal(t, []uint64{1, 2}, ran)
	errs := sink.all()
	require.Len(t, errs, 2)

	var ce *CallbackError
	require.ErrorAs(t, errs[0], &ce)
	assert.Equal(t, 0, ce.Action)
	assert.Equal(t, uint64(1), ce.Sequence)
	assert.Equal(t, "orders", ce.Tag)
	assert.False(t, ce.Panic)

	require.ErrorAs(t, errs[1], &ce)
	assert.Equal(t, 1, ce.Action)
	assert.True(t, ce.Panic)
	assert.ErrorIs(t, errs[1], ErrCallback)

	tok, found, err := store.Load(context.Background(), loc, kind)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(2), tok.Sequence(), "position advances despite failing actions")
	assert.Equal(t, uint64(2), c.Stats().CallbackErrors)
}

type brokenStore struct{ bookmark.Store }

func (brokenStore) Save(context.Context, bookmark.Token, string) error {
	return errors.New("read-only filesystem")
}

func TestPersistenceFailureIsReportedAndActionsStillRun(t *testing.T) {
	sink := &errSink{}
	ran := 0
	c, err := NewChain(brokenStore{}, Config{
		Location: "/nowhere/bm",
		Tag:      "t",
		Report:   sink.report,
		Actions:  []Action{func(context.Context, source.Record, Meta) error { ran++; return nil }},
	})
	require.NoError(t, err)

	c.Invoke(context.Background(), record(5))
	assert.Equal(t, 1, ran)
	errs := sink.all()
	require.Len(t, errs, 1)
	var pe *PersistenceError
	require.ErrorAs(t, errs[0], &pe)
	assert.Equal(t, uint64(5), pe.Sequence)
	assert.Equal(t, "/nowhere/bm", pe.Location)
	assert.ErrorIs(t, errs[0], ErrPersistence)
	assert.Equal(t, uint64(1), c.Stats().PersistenceErrors)
}

func TestStatsExposeStalledInvocation(t *testing.T) {
	store := newStore(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	c, err := NewChain(store, Config{
		Location: location(t, store),
		Actions: []Action{func(context.Context, source.Record, Meta) error {
			close(entered)
			<-release
			return nil
		}},
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		c.Invoke(context.Background(), record(9))
		close(done)
	}()
	<-entered
	st := c.Stats()
	assert.True(t, st.InFlight)
	assert.Equal(t, uint64(9), st.InFlightSeq)
	assert.WithinDuration(t, time.Now(), st.InFlightSince, 5*time.Second)

	close(release)
	<-done
	assert.False(t, c.Stats().InFlight)
}

func TestInvocationsAreSerialized(t *testing.T) {
	store := newStore(t)
	var active, maxActive int
	var mu sync.Mutex
	c, err := NewChain(store, Config{
		Location: location(t, store),
		Actions: []Action{func(context.Context, source.Record, Meta) error {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil
		}},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			c.Invoke(context.Background(), record(seq))
		}(uint64(i))
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
	assert.Equal(t, uint64(8), c.Stats().Delivered)
}

func TestMetaIsACopy(t *testing.T) {
	store := newStore(t)
	values := map[string]any{"b": 2, "a": 1}
	c, err := NewChain(store, Config{Location: location(t, store), Tag: "x", Values: values})
	require.NoError(t, err)
	values["c"] = 3

	m := c.Meta()
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Value("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, "x", m.Tag())
}

func TestNewChainValidates(t *testing.T) {
	_, err := NewChain(nil, Config{Location: "/x"})
	require.Error(t, err)
	_, err = NewChain(newStore(t), Config{})
	require.ErrorIs(t, err, bookmark.ErrInvalidLocation)
	_, err = NewChain(newStore(t), Config{Location: "/x", Actions: []Action{nil}})
	require.Error(t, err)
}
