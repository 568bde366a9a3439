package server

import (
	"encoding/json"
	"strings"
)

// normalizeAIJSON repairs the quirks models produce around JSON output
// (code fences, escaped quotes, stray newline escapes) and parses the
// result. The repairs are idempotent on already-clean JSON.
func normalizeAIJSON(raw string) (map[string]any, error) {
	cleaned := stripCodeFences(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, `\"`, `"`)
	cleaned = strings.ReplaceAll(cleaned, `\n`, "")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return nil, &MalformedResponseError{Detail: "empty response body"}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, &MalformedResponseError{Detail: err.Error()}
	}
	if parsed == nil {
		return nil, &MalformedResponseError{Detail: "response is JSON null"}
	}
	return parsed, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	stripped := s
	if idx := strings.IndexByte(stripped, '\n'); idx >= 0 {
		stripped = stripped[idx+1:]
	} else {
		stripped = strings.TrimPrefix(stripped, "```")
	}
	stripped = strings.TrimSpace(stripped)
	stripped = strings.TrimSuffix(stripped, "```")
	return strings.TrimSpace(stripped)
}
