package layout

import (
	"path/filepath"
	"testing"
)

func TestPathsAreRepoLocalAndPure(t *testing.T) {
	p := New("/repo", "ENG-412")

	want := map[string]string{
		"root":      "/repo/.mobius",
		"parentDir": "/repo/.mobius/issues/ENG-412",
		"task":      "/repo/.mobius/issues/ENG-412/tasks/ENG-413.json",
		"runtime":   "/repo/.mobius/issues/ENG-412/execution/runtime.json",
		"lock":      "/repo/.mobius/issues/ENG-412/execution/runtime.json.lock",
	}

	if got := p.Root(); got != want["root"] {
		t.Errorf("Root() = %q, want %q", got, want["root"])
	}
	if got := p.ParentDir(); got != want["parentDir"] {
		t.Errorf("ParentDir() = %q, want %q", got, want["parentDir"])
	}
	if got := p.TaskJSONPath("ENG-413"); got != want["task"] {
		t.Errorf("TaskJSONPath() = %q, want %q", got, want["task"])
	}
	if got := p.RuntimeJSONPath(); got != want["runtime"] {
		t.Errorf("RuntimeJSONPath() = %q, want %q", got, want["runtime"])
	}
	if got := p.RuntimeLockPath(); got != want["lock"] {
		t.Errorf("RuntimeLockPath() = %q, want %q", got, want["lock"])
	}
}

func TestWorktreeLockPathIsSiblingOfWorktree(t *testing.T) {
	wt := filepath.Join("/repo-worktrees", "ENG-413")
	got := WorktreeLockPath(wt)
	want := wt + ".git-op.lock"
	if got != want {
		t.Errorf("WorktreeLockPath() = %q, want %q", got, want)
	}
}

func TestLockPathIsSiblingOfTarget(t *testing.T) {
	target := "/a/b/pending-updates.json"
	if got := LockPath(target); got != target+".lock" {
		t.Errorf("LockPath() = %q, want %q", got, target+".lock")
	}
}
