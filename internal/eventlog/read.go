package eventlog

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Token encodes the starting position as seq (8 bytes big-endian).
type Token [8]byte

// TokenFromSeq returns the token that starts a read at seq.
func TokenFromSeq(seq uint64) Token { var t Token; binary.BigEndian.PutUint64(t[:], seq); return t }
func (t Token) Seq() uint64         { return binary.BigEndian.Uint64(t[:]) }

type ReadOptions struct {
	Start   Token // if zero, begin from the first entry
	Limit   int
	Reverse bool
}

type Item struct {
	Seq     uint64
	Header  Header
	Payload []byte
}

// Read returns up to Limit items starting at Start (inclusive). Reverse scans
// descending. The returned token is the position of the next unread entry, zero
// when the scan reached the end.
func (l *Log) Read(opts ReadOptions) ([]Item, Token, error) {
	startSeq := opts.Start.Seq()
	low := KeyLogEntry(l.source, 0)
	hi := KeyLogEntry(l.source, ^uint64(0))

	items := make([]Item, 0, max(1, opts.Limit))
	var next Token
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: append(hi, 0x00)})
	if err != nil {
		return items, next, err
	}
	defer iter.Close()

	var ok bool
	switch {
	case opts.Reverse && startSeq == 0:
		ok = iter.Last()
	case opts.Reverse:
		ok = iter.SeekLT(KeyLogEntry(l.source, startSeq+1))
	case startSeq == 0:
		ok = iter.First()
	default:
		ok = iter.SeekGE(KeyLogEntry(l.source, startSeq))
	}
	for ok && (opts.Limit == 0 || len(items) < opts.Limit) {
		seq := seqFromEntryKey(iter.Key())
		dec, good := DecodeRecord(iter.Value())
		if !good {
			return items, next, fmt.Errorf("eventlog: corrupt record %s/%d", l.source, seq)
		}
		h, err := DecodeHeader(dec.Header)
		if err != nil {
			return items, next, fmt.Errorf("eventlog: record %s/%d: %w", l.source, seq, err)
		}
		items = append(items, Item{Seq: seq, Header: h, Payload: dec.Payload})
		if opts.Reverse {
			ok = iter.Prev()
		} else {
			ok = iter.Next()
		}
	}
	if ok && iter.Valid() {
		next = TokenFromSeq(seqFromEntryKey(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return items, next, err
	}
	return items, next, nil
}

// ReadAfter returns up to limit items with seq strictly greater than after.
func (l *Log) ReadAfter(after uint64, limit int) ([]Item, error) {
	items, _, err := l.Read(ReadOptions{Start: TokenFromSeq(after + 1), Limit: limit})
	return items, err
}
