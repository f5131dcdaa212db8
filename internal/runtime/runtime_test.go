package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rzbill/flowatch/internal/bookmark"
	cfgpkg "github.com/rzbill/flowatch/internal/config"
	"github.com/rzbill/flowatch/internal/dispatch"
	"github.com/rzbill/flowatch/internal/eventlog"
	"github.com/rzbill/flowatch/internal/query"
	"github.com/rzbill/flowatch/internal/source"
	"github.com/rzbill/flowatch/internal/subscription"
)

func testConfig(t *testing.T) cfgpkg.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.WorkDir = dir
	cfg.EventLog.IdleWaitMs = 20
	cfg.FileSource.PollIntervalMs = 20
	return cfg
}

func openRuntime(t *testing.T, cfg cfgpkg.Config) *Runtime {
	t.Helper()
	rt, err := Open(Options{Config: cfg})
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	return rt
}

func appendPayloads(t *testing.T, rt *Runtime, name string, payloads ...string) {
	t.Helper()
	l, err := rt.OpenLog(name)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	recs := make([]eventlog.AppendRecord, len(payloads))
	for i, p := range payloads {
		recs[i] = eventlog.AppendRecord{Payload: []byte(p)}
	}
	if _, err := l.Append(context.Background(), recs); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func collect(ch chan<- source.Record) dispatch.Action {
	return func(_ context.Context, rec source.Record, _ dispatch.Meta) error {
		ch <- rec
		return nil
	}
}

func next(t *testing.T, ch <-chan source.Record) source.Record {
	t.Helper()
	select {
	case rec := <-ch:
		return rec
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for record")
	}
	return source.Record{}
}

func waitPersisted(t *testing.T, sub *subscription.Subscription, seq uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for sub.Stats().Chain.LastPersisted < seq {
		if time.Now().After(deadline) {
			t.Fatalf("position %d never persisted, have %d", seq, sub.Stats().Chain.LastPersisted)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOpenCloseHealth(t *testing.T) {
	rt := openRuntime(t, testConfig(t))
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err == nil {
		t.Fatalf("expected health error after close")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bookmark.Backend = "s3"
	if _, err := Open(Options{Config: cfg}); err == nil {
		t.Fatalf("expected config validation error")
	}
}

func TestWatchResumesAfterRestart(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	rt := openRuntime(t, cfg)
	appendPayloads(t, rt, "orders", "a", "b", "c")
	ch := make(chan source.Record, 16)
	sub, err := rt.Watch(ctx, WatchRequest{Identifier: "orders", Actions: []dispatch.Action{collect(ch)}})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	for want := uint64(1); want <= 3; want++ {
		if rec := next(t, ch); rec.Sequence != want {
			t.Fatalf("got seq %d want %d", rec.Sequence, want)
		}
	}
	waitPersisted(t, sub, 3)
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	rt = openRuntime(t, cfg)
	defer rt.Close()
	appendPayloads(t, rt, "orders", "d")
	ch = make(chan source.Record, 16)
	if _, err := rt.Watch(ctx, WatchRequest{Identifier: "orders", Actions: []dispatch.Action{collect(ch)}}); err != nil {
		t.Fatalf("watch again: %v", err)
	}
	rec := next(t, ch)
	if rec.Sequence != 4 || string(rec.Payload) != "d" {
		t.Fatalf("expected resume at seq 4, got %d %q", rec.Sequence, rec.Payload)
	}
}

func TestWatchFilterAndPebbleBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Bookmark.Backend = cfgpkg.BackendPebble
	rt := openRuntime(t, cfg)
	defer rt.Close()

	appendPayloads(t, rt, "events", "skip", "keep-1", "skip", "keep-2")
	ch := make(chan source.Record, 16)
	sub, err := rt.Watch(context.Background(), WatchRequest{
		Identifier: "events",
		Filter:     `text.startsWith("keep")`,
		Location:   "./events.bookmark",
		Tag:        "filtered",
		Actions:    []dispatch.Action{collect(ch)},
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if rec := next(t, ch); string(rec.Payload) != "keep-1" {
		t.Fatalf("unexpected first record %q", rec.Payload)
	}
	if rec := next(t, ch); string(rec.Payload) != "keep-2" {
		t.Fatalf("unexpected second record %q", rec.Payload)
	}
	waitPersisted(t, sub, 4)

	q := query.MustNew("events", `text.startsWith("keep")`, query.ByName)
	src, _ := rt.mux.Route(q)
	tok, found, err := rt.Store().Load(context.Background(), "./events.bookmark", source.KindFor(src, q))
	if err != nil || !found {
		t.Fatalf("load stored token: found=%v err=%v", found, err)
	}
	if tok.Sequence() != 4 {
		t.Fatalf("stored sequence %d", tok.Sequence())
	}
	if _, err := os.Stat(filepath.Join(cfg.WorkDir, "events.bookmark")); !os.IsNotExist(err) {
		t.Fatalf("pebble backend must not write a token file")
	}
}

func TestWatchFilePath(t *testing.T) {
	cfg := testConfig(t)
	rt := openRuntime(t, cfg)
	defer rt.Close()

	path := filepath.Join(cfg.WorkDir, "app.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ch := make(chan source.Record, 16)
	if _, err := rt.Watch(context.Background(), WatchRequest{
		Identifier: path,
		Mode:       query.ByFilePath,
		Actions:    []dispatch.Action{collect(ch)},
	}); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if rec := next(t, ch); string(rec.Payload) != "one" {
		t.Fatalf("got %q", rec.Payload)
	}
	if rec := next(t, ch); string(rec.Payload) != "two" {
		t.Fatalf("got %q", rec.Payload)
	}
}

func TestWatchErrors(t *testing.T) {
	rt := openRuntime(t, testConfig(t))
	defer rt.Close()
	ctx := context.Background()
	noop := []dispatch.Action{func(context.Context, source.Record, dispatch.Meta) error { return nil }}

	if _, err := rt.Watch(ctx, WatchRequest{Identifier: "", Actions: noop}); !query.IsQueryError(err) {
		t.Fatalf("expected query error, got %v", err)
	}
	if _, err := rt.Watch(ctx, WatchRequest{Identifier: "x", Filter: "1 +", Actions: noop}); !errors.Is(err, query.ErrInvalidFilter) {
		t.Fatalf("expected invalid filter, got %v", err)
	}
	if _, err := rt.Watch(ctx, WatchRequest{Identifier: "x", Actions: noop}); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if _, err := rt.Watch(ctx, WatchRequest{Identifier: "y", Location: "./other.bookmark", Actions: noop}); !errors.Is(err, subscription.ErrDuplicateTag) {
		t.Fatalf("expected duplicate tag, got %v", err)
	}
	if _, err := rt.Watch(ctx, WatchRequest{Identifier: "z", Tag: "rel", Location: "nomarker", Actions: noop}); !errors.Is(err, bookmark.ErrInvalidLocation) {
		t.Fatalf("expected invalid location, got %v", err)
	}
	if got := len(rt.Registry().List()); got != 1 {
		t.Fatalf("failed watches must not stay registered, have %d", got)
	}
}
