package eventlog

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - log/{source}/m
// - log/{source}/e/{seq_be8}

var (
	logPrefix  = []byte("log/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyLogMeta builds the per-source metadata key.
func KeyLogMeta(source string) []byte {
	k := make([]byte, 0, len(logPrefix)+len(source)+len(metaSuffix))
	k = append(k, logPrefix...)
	k = append(k, source...)
	k = append(k, metaSuffix...)
	return k
}

// KeyLogEntry builds the entry key with a big-endian sequence for proper ordering.
func KeyLogEntry(source string, seq uint64) []byte {
	k := make([]byte, 0, len(logPrefix)+len(source)+len(entrySeg)+8)
	k = append(k, logPrefix...)
	k = append(k, source...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// seqFromEntryKey extracts the trailing sequence of an entry key.
func seqFromEntryKey(k []byte) uint64 {
	if len(k) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(k[len(k)-8:])
}
