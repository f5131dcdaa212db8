package client

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/rzbill/flowatch/internal/bookmark"
	cfgpkg "github.com/rzbill/flowatch/internal/config"
	"github.com/rzbill/flowatch/internal/runtime"
)

func testOpen(t *testing.T) OpenFunc {
	t.Helper()
	dir := t.TempDir()
	cfg := cfgpkg.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.WorkDir = dir
	return func(*cobra.Command) (*runtime.Runtime, error) {
		return runtime.Open(runtime.Options{Config: cfg})
	}
}

func run(t *testing.T, open OpenFunc, args ...string) (string, error) {
	t.Helper()
	cmd := NewRoot(open)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var res []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		res = append(res, m)
	}
	return res
}

func TestLogAppendAndRead(t *testing.T) {
	open := testOpen(t)
	out, err := run(t, open, "log", "append", "--source", "orders",
		"--data", `{"id":1}`, "--data", "plain", "--header", "region=eu")
	if err != nil {
		t.Fatalf("append: %v (%s)", err, out)
	}
	if !strings.Contains(out, `"sequences":[1,2]`) {
		t.Fatalf("unexpected append output: %s", out)
	}

	out, err = run(t, open, "log", "read", "--source", "orders")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := decodeLines(t, out)
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d: %s", len(lines), out)
	}
	if lines[0]["payload_json"] == nil || lines[1]["payload_text"] != "plain" {
		t.Fatalf("unexpected payload rendering: %s", out)
	}
	headers, _ := lines[0]["headers"].(map[string]any)
	if headers["region"] != "eu" {
		t.Fatalf("missing header: %s", out)
	}

	out, err = run(t, open, "log", "read", "--source", "orders", "--from-seq", "2")
	if err != nil {
		t.Fatalf("read from: %v", err)
	}
	if lines := decodeLines(t, out); len(lines) != 1 || lines[0]["sequence"] != float64(2) {
		t.Fatalf("unexpected read from seq 2: %s", out)
	}

	out, err = run(t, open, "log", "sources")
	if err != nil || strings.TrimSpace(out) != "orders" {
		t.Fatalf("sources: %q %v", out, err)
	}
}

func TestLogAppendValidation(t *testing.T) {
	open := testOpen(t)
	if _, err := run(t, open, "log", "append", "--source", "orders"); err == nil {
		t.Fatalf("expected error without --data")
	}
	if _, err := run(t, open, "log", "append", "--source", "orders", "--data", "x", "--header", "novalue"); err == nil {
		t.Fatalf("expected error for malformed header")
	}
}

func TestBookmarkShowAndCopy(t *testing.T) {
	open := testOpen(t)

	out, err := run(t, open, "bookmark", "show", "./missing.bookmark")
	if err != nil {
		t.Fatalf("show missing: %v", err)
	}
	if lines := decodeLines(t, out); len(lines) != 1 || lines[0]["found"] != false {
		t.Fatalf("unexpected show output: %s", out)
	}

	if _, err := run(t, open, "bookmark", "copy", "./missing.bookmark", "./dst.bookmark"); err == nil {
		t.Fatalf("expected error copying a missing token")
	}
	if _, err := run(t, open, "bookmark", "copy", "./only-one"); err == nil {
		t.Fatalf("expected arity error")
	}
	if _, err := run(t, open, "bookmark", "show", "relative-without-marker"); err == nil {
		t.Fatalf("expected invalid location error")
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"a=1", "b=x=y"}, `{"c":"3","a":"override"}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h["a"] != "override" || h["b"] != "x=y" || h["c"] != "3" {
		t.Fatalf("unexpected headers: %v", h)
	}
	if h, err := parseHeaders(nil, ""); err != nil || h != nil {
		t.Fatalf("expected nil headers, got %v %v", h, err)
	}
	if _, err := parseHeaders(nil, "{bad"); err == nil {
		t.Fatalf("expected json error")
	}
}

func TestBookmarkCopyRoundTrip(t *testing.T) {
	open := testOpen(t)
	rt, err := open(nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	tok := bookmark.NewToken(bookmark.Kind{Type: "eventlog", Scope: "abc"}, 5, []byte{0, 0, 0, 0, 0, 0, 0, 5})
	if err := rt.Store().Save(context.Background(), tok, "./src.bookmark"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := run(t, open, "bookmark", "copy", "./src.bookmark", "./dst.bookmark")
	if err != nil || !strings.Contains(out, "copied 1 token(s)") {
		t.Fatalf("copy: %q %v", out, err)
	}
	out, err = run(t, open, "bookmark", "show", "./dst.bookmark")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	lines := decodeLines(t, out)
	if len(lines) != 1 || lines[0]["found"] != true || lines[0]["sequence"] != float64(5) || lines[0]["scope"] != "abc" {
		t.Fatalf("unexpected copied token: %s", out)
	}
}
