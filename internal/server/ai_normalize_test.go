package server

import (
	"errors"
	"testing"
)

func TestNormalizeAIJSONPlainObject(t *testing.T) {
	parsed, err := normalizeAIJSON(`{"dominantEmotion": "joy", "overview": "a calm week"}`)
	if err != nil {
		t.Fatalf("normalize plain object: %v", err)
	}
	if parsed["dominantEmotion"] != "joy" {
		t.Fatalf("expected dominantEmotion=joy, got %v", parsed["dominantEmotion"])
	}
}

func TestNormalizeAIJSONStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"insights\": [\"slept badly\"]}\n```"
	parsed, err := normalizeAIJSON(raw)
	if err != nil {
		t.Fatalf("normalize fenced object: %v", err)
	}
	insights, ok := parsed["insights"].([]any)
	if !ok || len(insights) != 1 {
		t.Fatalf("expected one insight, got %v", parsed["insights"])
	}
}

func TestNormalizeAIJSONRepairsEscapedQuotes(t *testing.T) {
	raw := `{\"note\": \"limited analysis\"}`
	parsed, err := normalizeAIJSON(raw)
	if err != nil {
		t.Fatalf("normalize escaped quotes: %v", err)
	}
	if parsed["note"] != "limited analysis" {
		t.Fatalf("expected note field, got %v", parsed["note"])
	}
}

func TestNormalizeAIJSONDropsLiteralNewlineEscapes(t *testing.T) {
	raw := "{\"overview\": \"day one\"}\\n"
	parsed, err := normalizeAIJSON(raw)
	if err != nil {
		t.Fatalf("normalize trailing newline escape: %v", err)
	}
	if parsed["overview"] != "day one" {
		t.Fatalf("expected overview field, got %v", parsed["overview"])
	}
}

func TestNormalizeAIJSONIsIdempotentOnCleanInput(t *testing.T) {
	clean := `{"detectedEmotions": [{"emotion": "calm", "explanation": "steady tone"}], "insights": ["routine helps"]}`

	first, err := normalizeAIJSON(clean)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := normalizeAIJSON(clean)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("passes disagree: %v vs %v", first, second)
	}
}

func TestNormalizeAIJSONRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json at all", "null", `["array", "not", "object"]`} {
		_, err := normalizeAIJSON(raw)
		if err == nil {
			t.Fatalf("expected error for %q", raw)
		}
		var malformed *MalformedResponseError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected MalformedResponseError for %q, got %T", raw, err)
		}
	}
}
