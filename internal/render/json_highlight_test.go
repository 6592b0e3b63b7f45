package render

import "testing"

func TestJSONHighlighterRejectsNonJSON(t *testing.T) {
	h := NewJSONHighlighter(false)
	if _, ok := h.Highlight("not json"); ok {
		t.Fatal("expected non-JSON input to be rejected")
	}
}

func TestJSONHighlighterFormatsValidJSON(t *testing.T) {
	h := NewJSONHighlighter(true)
	out, ok := h.Highlight(`{"frontier":2,"dispatched":1}`)
	if !ok {
		t.Fatal("expected valid JSON to be accepted")
	}
	if out == "" {
		t.Fatal("expected non-empty highlighted output")
	}
}
