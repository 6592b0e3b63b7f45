package render

import (
	"fmt"
	"os"
	"strings"

	lipgloss "charm.land/lipgloss/v2"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"golang.org/x/term"
)

// FormatDuration renders milliseconds as a human-readable duration:
// 71000 -> "1m 11s", 3500 -> "3.5s" (grounded on the teacher's
// formatDuration in format.go).
func FormatDuration(ms int64) string {
	secs := float64(ms) / 1000
	switch {
	case secs >= 60:
		mins := int(secs) / 60
		rem := int(secs) % 60
		return fmt.Sprintf("%dm %ds", mins, rem)
	case secs >= 10:
		return fmt.Sprintf("%.0fs", secs)
	default:
		return fmt.Sprintf("%.1fs", secs)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// TerminalWidth reports the current terminal width for wrapping,
// falling back to 80 columns when stdout isn't a TTY.
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// Status renders a one-shot plain-text summary of a RuntimeState for
// `mobius status`: active/completed/failed counts and per-task state,
// styled with lipgloss. state may be nil (no session yet).
func Status(state *model.RuntimeState) string {
	if state == nil {
		return headerStyle.Render("mobius: no active session")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("mobius: %s (%s)", state.ParentID, state.ParentTitle)))
	fmt.Fprintf(&b, "  %s  %s  %s\n",
		activeStyle.Render(fmt.Sprintf("active=%d", len(state.ActiveTasks))),
		doneStyle.Render(fmt.Sprintf("done=%d", len(state.CompletedTasks))),
		failedStyle.Render(fmt.Sprintf("failed=%d/%d", len(state.FailedTasks), state.TotalTasks)),
	)

	for _, t := range state.ActiveTasks {
		fmt.Fprintf(&b, "  %s %s (pid %d)\n", activeStyle.Render("▸"), t.ID, t.AgentPID)
	}
	for _, t := range state.CompletedTasks {
		fmt.Fprintf(&b, "  %s %s (%s)\n", doneStyle.Render("✓"), t.ID, FormatDuration(t.DurationMs))
	}
	for _, t := range state.FailedTasks {
		fmt.Fprintf(&b, "  %s %s (%s)\n", failedStyle.Render("✗"), t.ID, FormatDuration(t.DurationMs))
	}

	return b.String()
}

// StatusMarkdown renders the same information as Status, but as
// Markdown for `mobius status`, which pipes it through
// MarkdownRenderer on every call, with or without --verbose (SPEC_FULL SUPPLEMENTED FEATURES #1: "prints a
// Glamour-rendered summary of the current session").
func StatusMarkdown(state *model.RuntimeState) string {
	if state == nil {
		return "# mobius\n\nno active session\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# mobius: %s (%s)\n\n", state.ParentID, state.ParentTitle)
	fmt.Fprintf(&b, "**active=%d  done=%d  failed=%d/%d**\n\n",
		len(state.ActiveTasks), len(state.CompletedTasks), len(state.FailedTasks), state.TotalTasks)

	fmt.Fprintf(&b, "## Active (%d)\n", len(state.ActiveTasks))
	for _, t := range state.ActiveTasks {
		fmt.Fprintf(&b, "- %s (pid %d)\n", t.ID, t.AgentPID)
	}
	fmt.Fprintf(&b, "\n## Done (%d)\n", len(state.CompletedTasks))
	for _, t := range state.CompletedTasks {
		fmt.Fprintf(&b, "- %s (%s)\n", t.ID, FormatDuration(t.DurationMs))
	}
	fmt.Fprintf(&b, "\n## Failed (%d)\n", len(state.FailedTasks))
	for _, t := range state.FailedTasks {
		fmt.Fprintf(&b, "- %s (%s)\n", t.ID, FormatDuration(t.DurationMs))
	}
	return b.String()
}

// Summary is the §9 CompletionSummary view: per-task terminal outcome,
// total duration, and exit code, rendered as Markdown through
// MarkdownRenderer for the final CLI report.
type Summary struct {
	ParentID   string
	Done       []string
	Failed     []string
	TotalMs    int64
	ExitCode   int
}

// Markdown renders s as a Markdown document suitable for
// MarkdownRenderer.Render.
func (s Summary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# mobius summary: %s\n\n", s.ParentID)
	fmt.Fprintf(&b, "- total time: %s\n", FormatDuration(s.TotalMs))
	fmt.Fprintf(&b, "- exit code: %d\n\n", s.ExitCode)

	fmt.Fprintf(&b, "## Done (%d)\n", len(s.Done))
	for _, id := range s.Done {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	fmt.Fprintf(&b, "\n## Failed (%d)\n", len(s.Failed))
	for _, id := range s.Failed {
		fmt.Fprintf(&b, "- %s\n", id)
	}
	return b.String()
}
