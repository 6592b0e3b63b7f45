// Package render adapts the teacher's terminal-rendering primitives
// (glamour Markdown, chroma JSON syntax highlighting, lipgloss status
// styling) from TUI message display to CLI status/summary output: the
// SUPPLEMENTED FEATURES `mobius status` and the final `summary.json`
// report.
package render

import (
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// MarkdownRenderer caches a glamour terminal renderer at a specific
// width, recreating it only when the width changes (grounded on the
// teacher's mdRenderer in markdown.go).
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int
}

// autoStyle mirrors the teacher's style auto-detection: no-TTY, dark,
// or light, with the document margin zeroed so callers handle their
// own padding.
func autoStyle() ansi.StyleConfig {
	var style ansi.StyleConfig
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		style = styles.NoTTYStyleConfig
	} else if termenv.HasDarkBackground() {
		style = styles.DarkStyleConfig
	} else {
		style = styles.LightStyleConfig
	}
	style.Document.Margin = uintPtr(0)
	return style
}

func uintPtr(v uint) *uint { return &v }

// HasDarkBackground reports the detected terminal background, shared
// with NewJSONHighlighter so both renderers agree on light/dark style
// selection.
func HasDarkBackground() bool {
	return termenv.HasDarkBackground()
}

// Render renders markdown content for terminal display, falling back
// to the original content on any renderer error (status output must
// never fail outright because of a styling problem).
func (r *MarkdownRenderer) Render(content string, width int) string {
	if width <= 0 {
		return content
	}
	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStyles(autoStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		r.renderer = renderer
		r.width = width
	}
	out, err := r.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}
