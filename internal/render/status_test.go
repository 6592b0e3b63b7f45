package render

import (
	"strings"
	"testing"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/model"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{3500, "3.5s"},
		{15000, "15s"},
		{71000, "1m 11s"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.ms); got != c.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}

func TestStatusNilState(t *testing.T) {
	out := Status(nil)
	if !strings.Contains(out, "no active session") {
		t.Errorf("Status(nil) = %q, want mention of no active session", out)
	}
}

func TestStatusRendersTaskCounts(t *testing.T) {
	state := &model.RuntimeState{
		ParentID:    "ENG-100",
		ParentTitle: "Build thing",
		TotalTasks:  3,
		ActiveTasks: []model.RuntimeActiveTask{{ID: "t1", AgentPID: 42, StartedAt: time.Now()}},
		CompletedTasks: []model.RuntimeCompletedTask{{ID: "t2", DurationMs: 5000}},
	}
	out := Status(state)
	for _, want := range []string{"ENG-100", "t1", "t2", "active=1", "done=1", "failed=0/3"} {
		if !strings.Contains(out, want) {
			t.Errorf("Status output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusMarkdownNilState(t *testing.T) {
	out := StatusMarkdown(nil)
	if !strings.Contains(out, "no active session") {
		t.Errorf("StatusMarkdown(nil) = %q, want mention of no active session", out)
	}
}

func TestStatusMarkdownRendersTaskCounts(t *testing.T) {
	state := &model.RuntimeState{
		ParentID:       "ENG-100",
		ParentTitle:    "Build thing",
		TotalTasks:     3,
		ActiveTasks:    []model.RuntimeActiveTask{{ID: "t1", AgentPID: 42, StartedAt: time.Now()}},
		CompletedTasks: []model.RuntimeCompletedTask{{ID: "t2", DurationMs: 5000}},
	}
	md := StatusMarkdown(state)
	for _, want := range []string{"ENG-100", "t1", "t2", "active=1", "done=1", "failed=0/3"} {
		if !strings.Contains(md, want) {
			t.Errorf("StatusMarkdown output missing %q:\n%s", want, md)
		}
	}
}

func TestSummaryMarkdown(t *testing.T) {
	s := Summary{ParentID: "ENG-100", Done: []string{"t1"}, Failed: []string{"t2"}, TotalMs: 10000, ExitCode: 1}
	md := s.Markdown()
	for _, want := range []string{"ENG-100", "t1", "t2", "exit code: 1"} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q:\n%s", want, md)
		}
	}
}
