package bookmark

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
)

func TestMarshalLayout(t *testing.T) {
	data, err := Marshal(NewToken(logKind, 5, []byte{9}))
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("FWBM\x01")))

	var env anypb.Any
	require.NoError(t, proto.Unmarshal(data[5:], &env))
	assert.Equal(t, "flowatch.dev/bookmark/eventlog", env.GetTypeUrl())

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, logKind, got.Kind())
	assert.Equal(t, uint64(5), got.Sequence())
}

func TestUnmarshalRejectsForeignContent(t *testing.T) {
	for _, in := range [][]byte{
		[]byte("FWBM"),
		[]byte("FWBM\x02rest"),
		[]byte("XXXX\x01"),
		append([]byte("FWBM\x01"), 0xff, 0xff),
	} {
		_, err := Unmarshal(in)
		require.ErrorIs(t, err, ErrTypeMismatch, "input %q", in)
	}

	foreign, err := proto.Marshal(&anypb.Any{TypeUrl: "example.com/other", Value: []byte{}})
	require.NoError(t, err)
	_, err = Unmarshal(append([]byte("FWBM\x01"), foreign...))
	require.ErrorIs(t, err, ErrTypeMismatch)
}
