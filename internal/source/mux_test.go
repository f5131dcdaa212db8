package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/flowatch/internal/bookmark"
	"github.com/rzbill/flowatch/internal/query"
)

type stubSource string

func (s stubSource) TokenType() string { return string(s) }
func (stubSource) Stream(context.Context, query.Query, *bookmark.Token, EmitFunc) error {
	return nil
}

func TestMuxRoute(t *testing.T) {
	m := NewMux()
	m.Handle(query.ByName, stubSource("eventlog"))

	src, err := m.Route(query.MustNew("orders", "*", query.ByName))
	require.NoError(t, err)
	assert.Equal(t, "eventlog", src.TokenType())

	_, err = m.Route(query.MustNew("/tmp/x.jsonl", "*", query.ByFilePath))
	require.ErrorIs(t, err, ErrNoSource)
}

func TestRecordToken(t *testing.T) {
	q := query.MustNew("orders", "*", query.ByName)
	k := KindFor(stubSource("eventlog"), q)
	r := Record{Sequence: 4, Kind: k, Position: []byte{1}, Created: time.UnixMilli(99)}

	tok := r.Token()
	assert.Equal(t, k, tok.Kind())
	assert.Equal(t, uint64(4), tok.Sequence())
	assert.Equal(t, int64(99), MatchInput(r).TimestampMs)
}
