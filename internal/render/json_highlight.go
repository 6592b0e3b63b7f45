package render

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/colorprofile"
)

// JSONHighlighter syntax-highlights JSON for terminal display --
// verbose iteration-log entries and diff-bearing agent output
// (grounded on the teacher's jsonHL in json_highlight.go).
type JSONHighlighter struct {
	hasDarkBg bool
	lexer     chroma.Lexer
	formatter chroma.Formatter
	style     *chroma.Style
}

// NewJSONHighlighter constructs a highlighter for the detected
// background and terminal color profile. Chroma objects are safe for
// reuse across calls.
func NewJSONHighlighter(hasDarkBg bool) *JSONHighlighter {
	lexer := chroma.Coalesce(lexers.Get("json"))

	styleName := "github"
	if hasDarkBg {
		styleName = "dracula"
	}
	style := styles.Get(styleName)

	profile := colorprofile.Detect(os.Stderr, os.Environ())
	formatterName := chromaFormatter(profile)
	formatter := formatters.Get(formatterName)

	return &JSONHighlighter{
		hasDarkBg: hasDarkBg,
		lexer:     lexer,
		formatter: formatter,
		style:     style,
	}
}

// Highlight detects JSON, pretty-prints it, and returns
// syntax-highlighted text. Returns ("", false) for non-JSON input so
// the caller can fall back to plain rendering.
func (h *JSONHighlighter) Highlight(s string) (string, bool) {
	raw := []byte(s)
	if !json.Valid(raw) {
		return "", false
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", false
	}
	indented := buf.String()

	iterator, err := h.lexer.Tokenise(nil, indented)
	if err != nil {
		return "", false
	}

	var out bytes.Buffer
	if err := h.formatter.Format(&out, h.style, iterator); err != nil {
		return "", false
	}

	return out.String(), true
}

// chromaFormatter maps a detected colorprofile to a chroma terminal
// formatter name.
func chromaFormatter(profile colorprofile.Profile) string {
	switch profile {
	case colorprofile.TrueColor:
		return "terminal16m"
	case colorprofile.ANSI256:
		return "terminal256"
	case colorprofile.ANSI:
		return "terminal16"
	default:
		return "terminal"
	}
}
