package watchrun

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// Output formats for delivered events.
const (
	FormatJSON = "json"
	FormatText = "text"
)

var ErrUnknownFormat = errors.New("watchrun: unknown output format")

type encodeFunc func(Event) error

func newEncoder(format string, w io.Writer) (encodeFunc, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		return func(ev Event) error { return enc.Encode(ev) }, nil
	case FormatText:
		return func(ev Event) error {
			_, err := io.WriteString(w, ev.Text()+"\n")
			return err
		}, nil
	default:
		return nil, fmt.Errorf("%w %q; use json|text", ErrUnknownFormat, format)
	}
}

// Text renders ev on one line: time, tag, source#sequence, sorted headers,
// then the payload.
func (ev Event) Text() string {
	var b strings.Builder
	b.WriteString(ev.Created.Format(time.RFC3339Nano))
	fmt.Fprintf(&b, " %s %s#%d", ev.Tag, ev.Source, ev.Sequence)
	keys := make([]string, 0, len(ev.Headers))
	for k := range ev.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, ev.Headers[k])
	}
	b.WriteByte(' ')
	switch {
	case ev.PayloadJSON != nil:
		b.Write(ev.PayloadJSON)
	case ev.PayloadText != nil:
		b.WriteString(*ev.PayloadText)
	default:
		b.WriteString("b64:" + ev.PayloadB64)
	}
	return b.String()
}
