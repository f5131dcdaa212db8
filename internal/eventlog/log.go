package eventlog

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	pebblestore "github.com/rzbill/flowatch/internal/storage/pebble"
)

var (
	ErrNotFound      = errors.New("eventlog: event not found")
	ErrInvalidSource = errors.New("eventlog: invalid source name")
)

// AppendRecord represents a single appendable event. Zero header fields are
// filled in by Append.
type AppendRecord struct {
	Header  Header
	Payload []byte
}

// Log provides append-only operations for a single named source.
type Log struct {
	db      *pebblestore.DB
	source  string
	machine string
	now     func() time.Time

	mu       sync.Mutex
	lastSeq  uint64
	notifyCh chan struct{}
}

// ValidateSource reports whether name can be used as a log source.
func ValidateSource(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidSource, name)
	}
	return nil
}

// OpenLog initializes a Log and loads the last sequence from metadata (if any).
func OpenLog(db *pebblestore.DB, source string) (*Log, error) {
	if err := ValidateSource(source); err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	l := &Log{db: db, source: source, machine: host, now: time.Now, notifyCh: make(chan struct{})}
	meta, err := db.Get(KeyLogMeta(source))
	switch {
	case err == nil && len(meta) >= 8:
		l.lastSeq = binary.BigEndian.Uint64(meta[:8])
	case err != nil && !pebblestore.IsNotFound(err):
		return nil, fmt.Errorf("eventlog: load meta for %q: %w", source, err)
	}
	return l, nil
}

// Source returns the source name this log was opened for.
func (l *Log) Source() string { return l.source }

// LastSeq returns the highest assigned sequence, zero when empty.
func (l *Log) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Append appends the provided records as a single atomic batch. Returns assigned seq numbers.
func (l *Log) Append(ctx context.Context, recs []AppendRecord) ([]uint64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.db.NewBatch()
	defer b.Close()

	next := l.lastSeq
	seqs := make([]uint64, len(recs))
	for i, r := range recs {
		next++
		h := r.Header
		if h.TimestampMs == 0 {
			h.TimestampMs = l.now().UnixMilli()
		}
		if h.Machine == "" {
			h.Machine = l.machine
		}
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		val := EncodeRecord(EncodeHeader(h), r.Payload)
		if err := b.Set(KeyLogEntry(l.source, next), val, nil); err != nil {
			return nil, err
		}
		seqs[i] = next
	}

	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], next)
	if err := b.Set(KeyLogMeta(l.source), meta[:], nil); err != nil {
		return nil, err
	}

	if err := l.db.CommitBatch(ctx, b); err != nil {
		return nil, err
	}
	l.lastSeq = next
	// notify waiters
	close(l.notifyCh)
	l.notifyCh = make(chan struct{})
	return seqs, nil
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
