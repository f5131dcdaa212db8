// Package filesource tails a JSON-lines file for watchers addressing sources
// by path. Each complete line is one record: its sequence is the 1-based line
// number and its position the byte offset just past the line.
package filesource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/query"
	"github.com/rzbill/flowatch/internal/source"
	"github.com/rzbill/flowatch/pkg/log"
)

// TokenType is the bookmark type produced by this source.
const TokenType = "file"

const defaultPoll = 500 * time.Millisecond

var (
	// ErrTruncated is returned when the file shrinks below the stream position.
	ErrTruncated = errors.New("filesource: file truncated below stream position")
	// ErrBadPosition is returned for a start token without a valid offset.
	ErrBadPosition = errors.New("filesource: malformed start position")
)

// Source implements source.Source over JSON-lines files.
type Source struct {
	poll   time.Duration
	logger log.Logger
}

var _ source.Source = (*Source)(nil)

type Option func(*Source)

// WithPollInterval sets the fallback rescan interval used alongside (or
// instead of) filesystem notifications.
func WithPollInterval(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.poll = d
		}
	}
}

func WithLogger(l log.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(opts ...Option) *Source {
	s := &Source{poll: defaultPoll, logger: log.NewNopLogger()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(log.Component("source.file"))
	return s
}

func (s *Source) TokenType() string { return TokenType }

// envelope holds the optional metadata fields of a JSON-object line.
type envelope struct {
	ID      string            `json:"id"`
	TsMs    int64             `json:"ts_ms"`
	Machine string            `json:"machine"`
	Headers map[string]string `json:"headers"`
}

type cursor struct {
	line   uint64
	offset int64
}

// Stream implements source.Source.
func (s *Source) Stream(ctx context.Context, q query.Query, start *bookmark.Token, emit source.EmitFunc) error {
	if q.Mode() != query.ByFilePath {
		return fmt.Errorf("%w: %s", source.ErrUnsupportedMode, q.Mode())
	}
	path := q.Identifier()
	var cur cursor
	if start != nil {
		pos := start.Position()
		if len(pos) != 8 {
			return fmt.Errorf("%w: %d bytes", ErrBadPosition, len(pos))
		}
		cur = cursor{line: start.Sequence(), offset: int64(binary.BigEndian.Uint64(pos))}
	}

	wake, stop := s.notifications(path)
	defer stop()
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	kind := source.KindFor(s, q)
	matcher := q.Matcher()
	for {
		if ctx.Err() != nil {
			return nil
		}
		next, err := s.scan(ctx, path, cur, func(rec source.Record) error {
			rec.Kind = kind
			ok, merr := matcher.Match(source.MatchInput(rec))
			if merr != nil {
				s.logger.Debug("filter evaluation failed", log.Uint64("line", rec.Sequence), log.Err(merr))
			}
			if !ok || ctx.Err() != nil {
				return nil
			}
			return emit(ctx, rec)
		})
		if err != nil {
			return err
		}
		cur = next

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case <-ticker.C:
		}
	}
}

// notifications watches the parent directory so creation of a missing file is
// seen too. Failure to watch degrades to polling.
func (s *Source) notifications(path string) (<-chan struct{}, func()) {
	wake := make(chan struct{}, 1)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Debug("fsnotify unavailable, polling", log.Str("path", path), log.Err(err))
		return wake, func() {}
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		s.logger.Debug("cannot watch directory, polling", log.Str("path", path), log.Err(err))
		_ = w.Close()
		return wake, func() {}
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("fsnotify error", log.Str("path", path), log.Err(err))
			case <-done:
				return
			}
		}
	}()
	return wake, func() {
		close(done)
		_ = w.Close()
	}
}

// scan emits every complete line after cur and returns the advanced cursor.
// A trailing line without a newline is left for the next scan.
func (s *Source) scan(ctx context.Context, path string, cur cursor, emit func(source.Record) error) (cursor, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cur, nil
	}
	if err != nil {
		return cur, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return cur, err
	}
	if st.Size() < cur.offset {
		return cur, fmt.Errorf("%w: %s size %d < offset %d", ErrTruncated, path, st.Size(), cur.offset)
	}
	if st.Size() == cur.offset {
		return cur, nil
	}
	if _, err := f.Seek(cur.offset, io.SeekStart); err != nil {
		return cur, err
	}

	r := bufio.NewReader(f)
	for ctx.Err() == nil {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			return cur, nil
		}
		if err != nil {
			return cur, err
		}
		cur.line++
		cur.offset += int64(len(line))
		if err := emit(s.record(path, cur, line)); err != nil {
			return cur, err
		}
	}
	return cur, nil
}

func (s *Source) record(path string, cur cursor, line []byte) source.Record {
	payload := bytes.TrimRight(line, "\r\n")
	var pos [8]byte
	binary.BigEndian.PutUint64(pos[:], uint64(cur.offset))
	rec := source.Record{
		ID:       fmt.Sprintf("%s:%d", path, cur.line),
		Sequence: cur.line,
		Source:   path,
		Payload:  payload,
		Position: pos[:],
	}
	var env envelope
	if len(payload) > 0 && payload[0] == '{' && json.Unmarshal(payload, &env) == nil {
		if env.ID != "" {
			rec.ID = env.ID
		}
		if env.TsMs != 0 {
			rec.Created = time.UnixMilli(env.TsMs)
		}
		rec.Machine = env.Machine
		rec.Headers = env.Headers
	}
	return rec
}
