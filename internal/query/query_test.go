package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	q, err := New("orders", "", ByName)
	require.NoError(t, err)
	assert.Equal(t, "orders", q.Identifier())
	assert.Equal(t, MatchAll, q.Filter())
	assert.Equal(t, ByName, q.Mode())
	assert.True(t, q.Matcher().MatchesAll())
}

func TestNewEchoesInputsOnFailure(t *testing.T) {
	cases := []struct {
		name   string
		id     string
		filter string
		mode   Mode
		want   error
	}{
		{"empty identifier", "  ", "*", ByName, ErrEmptyIdentifier},
		{"bad mode", "orders", "*", Mode(9), ErrInvalidMode},
		{"syntax", "orders", "sequence >", ByName, ErrInvalidFilter},
		{"unknown var", "orders", "nope == 1", ByName, ErrInvalidFilter},
		{"path var in name mode", "orders", `path == "x"`, ByName, ErrInvalidFilter},
		{"non bool", "orders", "sequence + 1", ByName, ErrInvalidFilter},
		{"nul path", "a\x00b", "*", ByFilePath, ErrBadIdentifier},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.id, tc.filter, tc.mode)
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, ErrQuery)
			var qe *Error
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tc.id, qe.Identifier)
			assert.Equal(t, tc.filter, qe.Filter)
			assert.Equal(t, tc.mode, qe.Mode)
		})
	}
}

func TestFilePathModeCleansAndUsesPathVar(t *testing.T) {
	q, err := New("/var/log/../log/app.jsonl", `path.endsWith(".jsonl")`, ByFilePath)
	require.NoError(t, err)
	assert.Equal(t, "/var/log/app.jsonl", q.Identifier())

	ok, err := q.Matcher().Match(Input{Identifier: q.Identifier()})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatcherFields(t *testing.T) {
	q := MustNew("orders", `json.kind == "paid" && headers["region"] == "eu" && sequence > 2`, ByName)
	m := q.Matcher()

	ok, err := m.Match(Input{Sequence: 3, Payload: []byte(`{"kind":"paid"}`), Headers: map[string]string{"region": "eu"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Match(Input{Sequence: 3, Payload: []byte(`{"kind":"open"}`), Headers: map[string]string{"region": "eu"}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Match(Input{Sequence: 1, Payload: []byte(`{"kind":"paid"}`), Headers: map[string]string{"region": "eu"}})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatcherTextAndSize(t *testing.T) {
	m := MustNew("orders", `text.contains("err") && size < 10 && machine == "h1"`, ByName).Matcher()
	ok, err := m.Match(Input{Payload: []byte("an err"), Machine: "h1"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatcherEvalErrorIsNoMatch(t *testing.T) {
	m := MustNew("orders", `json.missing == 1`, ByName).Matcher()
	ok, err := m.Match(Input{Payload: []byte(`{}`)})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	a := MustNew("orders", "*", ByName)
	b := MustNew("orders", "", ByName)
	c := MustNew("orders", "sequence > 1", ByName)
	d := MustNew("orders", "*", ByFilePath)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("PATH")
	require.NoError(t, err)
	assert.Equal(t, ByFilePath, m)
	_, err = ParseMode("socket")
	require.ErrorIs(t, err, ErrInvalidMode)
}
