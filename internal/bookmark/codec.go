package bookmark

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

// On-disk layout: magic | version | proto(google.protobuf.Any).
// Any.type_url is TypeURLPrefix+Type, Any.value is the body below.
const (
	formatVersion byte = 1
	TypeURLPrefix      = "flowatch.dev/bookmark/"
)

var magic = []byte("FWBM")

const (
	fieldScope    protowire.Number = 1
	fieldSequence protowire.Number = 2
	fieldPosition protowire.Number = 3
)

var errMalformed = errors.New("malformed token body")

// Marshal encodes t in the token file format.
func Marshal(t Token) ([]byte, error) {
	if t.kind.Type == "" || strings.ContainsAny(t.kind.Type, "/ ") {
		return nil, fmt.Errorf("%w: token type %q", ErrTypeMismatch, t.kind.Type)
	}
	var body []byte
	if t.kind.Scope != "" {
		body = protowire.AppendTag(body, fieldScope, protowire.BytesType)
		body = protowire.AppendString(body, t.kind.Scope)
	}
	body = protowire.AppendTag(body, fieldSequence, protowire.VarintType)
	body = protowire.AppendVarint(body, t.sequence)
	if len(t.position) > 0 {
		body = protowire.AppendTag(body, fieldPosition, protowire.BytesType)
		body = protowire.AppendBytes(body, t.position)
	}

	env, err := proto.MarshalOptions{Deterministic: true}.Marshal(&anypb.Any{
		TypeUrl: TypeURLPrefix + t.kind.Type,
		Value:   body,
	})
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(magic)+1+len(env))
	out = append(out, magic...)
	out = append(out, formatVersion)
	return append(out, env...), nil
}

// Unmarshal decodes a token file. Content that is not a token yields ErrTypeMismatch.
func Unmarshal(b []byte) (Token, error) {
	t, err := unmarshal(b)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}
	return t, nil
}

func unmarshal(b []byte) (Token, error) {
	if len(b) < len(magic)+1 || !bytes.Equal(b[:len(magic)], magic) {
		return Token{}, errors.New("not a bookmark file")
	}
	if v := b[len(magic)]; v != formatVersion {
		return Token{}, fmt.Errorf("unsupported format version %d", v)
	}
	var env anypb.Any
	if err := proto.Unmarshal(b[len(magic)+1:], &env); err != nil {
		return Token{}, err
	}
	typ, ok := strings.CutPrefix(env.GetTypeUrl(), TypeURLPrefix)
	if !ok || typ == "" {
		return Token{}, fmt.Errorf("unexpected type url %q", env.GetTypeUrl())
	}
	t := Token{kind: Kind{Type: typ}}
	body := env.GetValue()
	for len(body) > 0 {
		num, wt, n := protowire.ConsumeTag(body)
		if n < 0 {
			return Token{}, errMalformed
		}
		body = body[n:]
		switch {
		case num == fieldScope && wt == protowire.BytesType:
			s, m := protowire.ConsumeString(body)
			if m < 0 {
				return Token{}, errMalformed
			}
			t.kind.Scope, n = s, m
		case num == fieldSequence && wt == protowire.VarintType:
			v, m := protowire.ConsumeVarint(body)
			if m < 0 {
				return Token{}, errMalformed
			}
			t.sequence, n = v, m
		case num == fieldPosition && wt == protowire.BytesType:
			p, m := protowire.ConsumeBytes(body)
			if m < 0 {
				return Token{}, errMalformed
			}
			t.position, n = bytes.Clone(p), m
		default:
			n = protowire.ConsumeFieldValue(num, wt, body)
			if n < 0 {
				return Token{}, errMalformed
			}
		}
		body = body[n:]
	}
	return t, nil
}
