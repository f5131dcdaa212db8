package eventlog

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"google.golang.org/protobuf/encoding/protowire"
)

// Record encoding: varint headerLen | header | payload | crc32c(header|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrBadHeader is returned when a stored header cannot be decoded.
var ErrBadHeader = errors.New("eventlog: malformed record header")

// Header is the metadata stored in front of every payload.
type Header struct {
	// TimestampMs is the creation time in unix milliseconds.
	TimestampMs int64
	// Machine names the host that appended the record.
	Machine string
	// ID is the unique record identifier.
	ID string
	// Fields carries caller-supplied key/value metadata.
	Fields map[string]string
}

// Header field numbers.
const (
	hdrTimestamp protowire.Number = 1
	hdrMachine   protowire.Number = 2
	hdrID        protowire.Number = 3
	hdrField     protowire.Number = 4

	kvKey   protowire.Number = 1
	kvValue protowire.Number = 2
)

// EncodeHeader serializes h in protobuf wire format.
func EncodeHeader(h Header) []byte {
	var b []byte
	if h.TimestampMs != 0 {
		b = protowire.AppendTag(b, hdrTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.TimestampMs))
	}
	if h.Machine != "" {
		b = protowire.AppendTag(b, hdrMachine, protowire.BytesType)
		b = protowire.AppendString(b, h.Machine)
	}
	if h.ID != "" {
		b = protowire.AppendTag(b, hdrID, protowire.BytesType)
		b = protowire.AppendString(b, h.ID)
	}
	for _, k := range sortedKeys(h.Fields) {
		var kv []byte
		kv = protowire.AppendTag(kv, kvKey, protowire.BytesType)
		kv = protowire.AppendString(kv, k)
		kv = protowire.AppendTag(kv, kvValue, protowire.BytesType)
		kv = protowire.AppendString(kv, h.Fields[k])
		b = protowire.AppendTag(b, hdrField, protowire.BytesType)
		b = protowire.AppendBytes(b, kv)
	}
	return b
}

// DecodeHeader parses a header written by EncodeHeader. Unknown fields are skipped.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Header{}, ErrBadHeader
		}
		b = b[n:]
		switch {
		case num == hdrTimestamp && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Header{}, ErrBadHeader
			}
			h.TimestampMs = int64(v)
			n = m
		case num == hdrMachine && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return Header{}, ErrBadHeader
			}
			h.Machine = v
			n = m
		case num == hdrID && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return Header{}, ErrBadHeader
			}
			h.ID = v
			n = m
		case num == hdrField && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Header{}, ErrBadHeader
			}
			k, val, err := decodeKV(v)
			if err != nil {
				return Header{}, err
			}
			if h.Fields == nil {
				h.Fields = make(map[string]string)
			}
			h.Fields[k] = val
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Header{}, ErrBadHeader
			}
		}
		b = b[n:]
	}
	return h, nil
}

func decodeKV(b []byte) (string, string, error) {
	var k, v string
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 || typ != protowire.BytesType {
			return "", "", ErrBadHeader
		}
		b = b[n:]
		s, m := protowire.ConsumeString(b)
		if m < 0 {
			return "", "", ErrBadHeader
		}
		switch num {
		case kvKey:
			k = s
		case kvValue:
			v = s
		}
		b = b[m:]
	}
	return k, v, nil
}

func EncodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	out = append(out, crcb[:]...)
	return out
}

type Decoded struct {
	Header  []byte
	Payload []byte
}

func DecodeRecord(b []byte) (Decoded, bool) {
	if len(b) < 1+4 {
		return Decoded{}, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || len(b)-n < 4 {
		return Decoded{}, false
	}
	if hlen > uint64(len(b)-n-4) {
		return Decoded{}, false
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return Decoded{}, false
	}
	return Decoded{Header: append([]byte(nil), header...), Payload: append([]byte(nil), payload...)}, true
}
