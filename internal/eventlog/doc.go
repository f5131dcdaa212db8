// Package eventlog implements the bundled append-only event log that
// flowatch watches by source name.
//
// # Overview
//
// Each source is an independent, totally ordered sequence persisted in Pebble.
// Keys are lexicographically ordered for efficient range scans:
//   - log/{source}/m           (metadata: lastSeq)
//   - log/{source}/e/{seq_be8} (entries)
//
// Records are stored as: headerLen(uvarint) | header | payload | crc32c(header|payload).
// The header is a protobuf-wire message carrying the creation time (ms), the
// origin machine, a record id and caller key/value fields.
//
// API surface (internal)
//
//	cat := NewCatalog(db)
//	l, _ := cat.Open("orders")
//	// Append a batch atomically; returns assigned seq numbers
//	seqs, _ := l.Append(ctx, []AppendRecord{{Payload: p}})
//
//	// Read forward/reverse with an optional start token and limit
//	items, next, _ := l.Read(ReadOptions{Start: TokenFromSeq(seqs[0]), Limit: 100})
//	_ = next // resume position
//
//	// Blocking wait/notify
//	woke := l.WaitForAppend(ctx, 200*time.Millisecond)
//	_ = woke
package eventlog
