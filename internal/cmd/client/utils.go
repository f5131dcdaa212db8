package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// decodedPayload adds one of payload_json, payload_text, or payload_b64 to out.
func decodedPayload(out map[string]any, payload []byte) map[string]any {
	// Try JSON first if it looks like JSON
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	// Then UTF-8 text
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	// Fallback to base64
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}

// parseHeaders merges repeated key=value flags with an optional JSON object.
func parseHeaders(raw []string, headersJSON string) (map[string]string, error) {
	headers := map[string]string{}
	for _, hv := range raw {
		if hv == "" {
			continue
		}
		parts := strings.SplitN(hv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid --header %q; expected key=value", hv)
		}
		headers[parts[0]] = parts[1]
	}
	if headersJSON != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(headersJSON), &m); err != nil {
			return nil, fmt.Errorf("invalid --header-json: %w", err)
		}
		for k, v := range m {
			headers[k] = v
		}
	}
	if len(headers) == 0 {
		return nil, nil
	}
	return headers, nil
}
