package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/flowatch/internal/watcher"
)

func TestRegistryLifecycle(t *testing.T) {
	f := newFixture(t)
	r := NewRegistry()

	a, err := Bind(f.watcher(t), f.store, Spec{Tag: "b-tag", Location: "./b"})
	require.NoError(t, err)
	b, err := Bind(f.watcher(t), f.store, Spec{Tag: "a-tag", Location: "./a"})
	require.NoError(t, err)
	dup, err := Bind(f.watcher(t), f.store, Spec{Tag: "a-tag", Location: "./c"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dup.Close() })

	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	require.ErrorIs(t, r.Add(dup), ErrDuplicateTag)

	got, ok := r.Get("a-tag")
	require.True(t, ok)
	assert.Same(t, b, got)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a-tag", list[0].Tag())

	require.NoError(t, r.Unregister("a-tag"))
	assert.Equal(t, watcher.Stopped, b.Stats().State)
	require.ErrorIs(t, r.Unregister("a-tag"), ErrUnknownTag)

	require.NoError(t, r.Close())
	assert.Equal(t, watcher.Stopped, a.Stats().State)
	assert.Empty(t, r.List())
}
