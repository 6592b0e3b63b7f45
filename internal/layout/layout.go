// Package layout computes the on-disk paths for a parent's state tree.
// Path generation is pure -- no filesystem calls, no I/O. Every other
// package that touches disk asks layout for a path rather than joining
// strings itself, so the on-disk shape lives in exactly one place.
package layout

import "path/filepath"

// RootDirName is the directory name created at the repo root.
const RootDirName = ".mobius"

// Paths is a resolved view of a single parent's state tree under root.
// Construct with New; every field is a plain path, none are guaranteed
// to exist on disk.
type Paths struct {
	root     string
	parentID string
}

// New returns a Paths rooted at repoRoot/.mobius for the given parent id.
func New(repoRoot, parentID string) Paths {
	return Paths{root: filepath.Join(repoRoot, RootDirName), parentID: parentID}
}

// Root returns the repo-local .mobius root directory.
func (p Paths) Root() string { return p.root }

// GitignorePath returns the .gitignore living at the root of .mobius.
func (p Paths) GitignorePath() string { return filepath.Join(p.root, ".gitignore") }

// CurrentSessionPath returns the file holding the active parent id.
func (p Paths) CurrentSessionPath() string { return filepath.Join(p.root, "current-session") }

// CounterPath returns the local id-allocation counter file.
func (p Paths) CounterPath() string { return filepath.Join(p.root, "issues", "counter.json") }

// ParentDir returns the directory scoping all state for this parent.
func (p Paths) ParentDir() string { return filepath.Join(p.root, "issues", p.parentID) }

// ParentJSONPath returns the ParentIssueContext file.
func (p Paths) ParentJSONPath() string { return filepath.Join(p.ParentDir(), "parent.json") }

// ContextJSONPath returns the consolidated IssueContext file read by agents.
func (p Paths) ContextJSONPath() string { return filepath.Join(p.ParentDir(), "context.json") }

// TasksDir returns the directory holding one file per sub-task.
func (p Paths) TasksDir() string { return filepath.Join(p.ParentDir(), "tasks") }

// TaskJSONPath returns the SubTaskContext file for a given task identifier.
func (p Paths) TaskJSONPath(taskID string) string {
	return filepath.Join(p.TasksDir(), taskID+".json")
}

// PendingUpdatesPath returns the outbox queue file.
func (p Paths) PendingUpdatesPath() string { return filepath.Join(p.ParentDir(), "pending-updates.json") }

// SyncLogPath returns the append-only log of push attempts.
func (p Paths) SyncLogPath() string { return filepath.Join(p.ParentDir(), "sync-log.json") }

// SummaryPath returns the final CompletionSummary file.
func (p Paths) SummaryPath() string { return filepath.Join(p.ParentDir(), "summary.json") }

// ExecutionDir returns the directory holding session/runtime state.
func (p Paths) ExecutionDir() string { return filepath.Join(p.ParentDir(), "execution") }

// SessionJSONPath returns the SessionInfo file.
func (p Paths) SessionJSONPath() string { return filepath.Join(p.ExecutionDir(), "session.json") }

// RuntimeJSONPath returns the hot-path RuntimeState file.
func (p Paths) RuntimeJSONPath() string { return filepath.Join(p.ExecutionDir(), "runtime.json") }

// RuntimeLockPath returns the advisory lock sibling of RuntimeJSONPath.
func (p Paths) RuntimeLockPath() string { return p.RuntimeJSONPath() + ".lock" }

// IterationsPath returns the append-only iteration log.
func (p Paths) IterationsPath() string { return filepath.Join(p.ExecutionDir(), "iterations.json") }

// DebugLogPath returns the optional debug stream for a given session tag.
func (p Paths) DebugLogPath(session string) string {
	return filepath.Join(p.ExecutionDir(), "debug-"+session+".log")
}

// LockPath returns the sibling advisory-lock path for an arbitrary target file.
func LockPath(target string) string { return target + ".lock" }

// WorktreeLockPath returns the per-worktree git-operation lock for a worktree path.
func WorktreeLockPath(worktreePath string) string { return worktreePath + ".git-op.lock" }
