package bookmark

import (
	"bytes"
	"fmt"
)

// Kind is the type tag of a token: the source family plus the scope
// (query fingerprint) it was produced under.
type Kind struct {
	Type  string
	Scope string
}

func (k Kind) String() string {
	if k.Scope == "" {
		return k.Type
	}
	return k.Type + "/" + k.Scope
}

// Accepts reports whether a token of kind got satisfies a load that wants k.
// An empty Type accepts any type and an empty Scope accepts any scope.
func (k Kind) Accepts(got Kind) bool {
	if k.Type != "" && k.Type != got.Type {
		return false
	}
	return k.Scope == "" || k.Scope == got.Scope
}

// Token is an immutable position in a source: the sequence of the last
// consumed record plus source-specific position bytes.
type Token struct {
	kind     Kind
	sequence uint64
	position []byte
}

// NewToken builds a token. position is copied.
func NewToken(kind Kind, sequence uint64, position []byte) Token {
	return Token{kind: kind, sequence: sequence, position: bytes.Clone(position)}
}

func (t Token) Kind() Kind       { return t.kind }
func (t Token) Sequence() uint64 { return t.sequence }

// Position returns a copy of the source-specific position bytes.
func (t Token) Position() []byte { return bytes.Clone(t.position) }

// IsZero reports whether t is the zero token.
func (t Token) IsZero() bool {
	return t.kind == Kind{} && t.sequence == 0 && len(t.position) == 0
}

// Equal compares kind, sequence and position.
func (t Token) Equal(o Token) bool {
	return t.kind == o.kind && t.sequence == o.sequence && bytes.Equal(t.position, o.position)
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%d", t.kind, t.sequence)
}
