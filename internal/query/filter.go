package query

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
)

// MatchAll is the filter that accepts every record.
const MatchAll = "*"

// Input is the record view a filter is evaluated against.
type Input struct {
	Identifier  string
	Sequence    uint64
	TimestampMs int64
	Machine     string
	ID          string
	Payload     []byte
	Headers     map[string]string
}

// Matcher evaluates a compiled filter. The zero Matcher matches everything.
type Matcher struct {
	prog     cel.Program
	identVar string
}

func newEnv(mode Mode) (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(identVar(mode), cel.StringType),
		cel.Variable("sequence", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("machine", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("text", cel.StringType),
		// parsed JSON payload, null when the payload is not JSON
		cel.Variable("json", cel.DynType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("now_ms", cel.IntType),
	)
}

func identVar(mode Mode) string {
	if mode == ByFilePath {
		return "path"
	}
	return "source"
}

func compile(expr string, mode Mode) (*Matcher, error) {
	if expr == MatchAll {
		return &Matcher{}, nil
	}
	env, err := newEnv(mode)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	switch out := ast.OutputType().String(); out {
	case "bool", "dyn":
	default:
		return nil, fmt.Errorf("filter must evaluate to bool, got %s", out)
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Matcher{prog: prog, identVar: identVar(mode)}, nil
}

// MatchesAll reports whether the matcher accepts every record without evaluation.
func (m *Matcher) MatchesAll() bool { return m == nil || m.prog == nil }

// Match evaluates the filter against in. Evaluation errors, such as a missing
// JSON field, report false together with the error.
func (m *Matcher) Match(in Input) (bool, error) {
	if m.MatchesAll() {
		return true, nil
	}
	var doc any
	if err := json.Unmarshal(in.Payload, &doc); err != nil {
		doc = nil
	}
	headers := in.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	out, _, err := m.prog.Eval(map[string]any{
		m.identVar: in.Identifier,
		"sequence": int64(in.Sequence),
		"ts_ms":    in.TimestampMs,
		"machine":  in.Machine,
		"id":       in.ID,
		"size":     int64(len(in.Payload)),
		"text":     string(in.Payload),
		"json":     doc,
		"headers":  headers,
		"now_ms":   time.Now().UnixMilli(),
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter produced %T, want bool", out.Value())
	}
	return b, nil
}

func normalizeFilter(f string) string {
	f = strings.TrimSpace(f)
	if f == "" {
		return MatchAll
	}
	return f
}
