// Package worktree implements the per-task filesystem isolation model
// of §4.G: a deterministic, unique path per task id, a git worktree plus
// feature branch created from a base branch, and a per-worktree
// advisory lock that serializes git operations within a single
// worktree without ever blocking a sibling worktree's operations.
package worktree

import (
	"context"
	"os/exec"
	"strings"

	"github.com/kylesnowschwartz/mobius/internal/atomicio"
	"github.com/kylesnowschwartz/mobius/internal/layout"
	"github.com/pkg/errors"
)

// Config is the subset of §6's configuration surface this package
// consumes.
type Config struct {
	// PathTemplate contains the placeholders "<repo>" and "<task_id>",
	// e.g. "<repo>-worktrees/<task_id>".
	PathTemplate     string
	BaseBranch       string
	CleanupOnSuccess bool
}

// Path computes the deterministic worktree path for taskID. Pure: no
// filesystem calls (§4.A).
func Path(repoRoot, taskID string, cfg Config) string {
	tmpl := cfg.PathTemplate
	if tmpl == "" {
		tmpl = "<repo>-worktrees/<task_id>"
	}
	tmpl = strings.ReplaceAll(tmpl, "<repo>", repoRoot)
	tmpl = strings.ReplaceAll(tmpl, "<task_id>", taskID)
	return tmpl
}

// Manager creates and tears down isolated worktrees under repoRoot.
type Manager struct {
	repoRoot string
	cfg      Config
	runGit   func(ctx context.Context, args ...string) (string, error)
}

// New returns a Manager rooted at repoRoot (a git working copy).
func New(repoRoot string, cfg Config) *Manager {
	return &Manager{repoRoot: repoRoot, cfg: cfg, runGit: defaultRunGit(repoRoot)}
}

// NewWithRunner returns a Manager that shells out through runGit instead
// of the default git subprocess invocation -- a seam for tests that
// exercise worktree-dependent callers without a real repository.
func NewWithRunner(repoRoot string, cfg Config, runGit func(ctx context.Context, args ...string) (string, error)) *Manager {
	return &Manager{repoRoot: repoRoot, cfg: cfg, runGit: runGit}
}

func defaultRunGit(repoRoot string) func(context.Context, ...string) (string, error) {
	return func(ctx context.Context, args ...string) (string, error) {
		full := append([]string{"-C", repoRoot}, args...)
		out, err := exec.CommandContext(ctx, "git", full...).CombinedOutput()
		if err != nil {
			return string(out), errors.Wrapf(err, "git %s", strings.Join(args, " "))
		}
		return string(out), nil
	}
}

// Create builds an isolated filesystem view plus feature branch for
// taskID, branching from baseBranch (falling back to cfg.BaseBranch if
// baseBranch is empty). Serializes on the target worktree's own
// advisory lock (§4.G) -- a fresh lock, since the worktree doesn't
// exist yet, so this never contends with another worktree's lock.
func (m *Manager) Create(ctx context.Context, taskID, branch, baseBranch string) (string, error) {
	path := Path(m.repoRoot, taskID, m.cfg)
	if baseBranch == "" {
		baseBranch = m.cfg.BaseBranch
	}
	if baseBranch == "" {
		baseBranch = "main"
	}

	lock, err := atomicio.Acquire(layout.WorktreeLockPath(path))
	if err != nil {
		return "", err
	}
	defer lock.Release()

	if _, err := m.runGit(ctx, "worktree", "add", "-b", branch, path, baseBranch); err != nil {
		return "", err
	}
	return path, nil
}

// Remove tears down the worktree at path. Safe to call even if the
// worktree is already gone (the orchestrator always calls this on
// cleanup, §4.G).
func (m *Manager) Remove(ctx context.Context, path string) error {
	lock, err := atomicio.Acquire(layout.WorktreeLockPath(path))
	if err != nil {
		return err
	}
	defer lock.Release()

	_, err = m.runGit(ctx, "worktree", "remove", "--force", path)
	return err
}

// Dirty reports whether the worktree at path has uncommitted changes.
// Returns false on any error (not a git repo, git missing, etc.) --
// callers treat "unknown" as clean, matching the teacher's
// checkGitDirty convention.
func Dirty(ctx context.Context, path string) bool {
	if path == "" {
		return false
	}
	out, err := exec.CommandContext(ctx, "git", "-C", path, "status", "--porcelain").Output()
	if err != nil {
		return false
	}
	return len(out) > 0
}

// List parses the porcelain output of `git worktree list --porcelain`
// into a slice of worktree paths, in listed order.
func List(ctx context.Context, repoRoot string) ([]string, error) {
	out, err := exec.CommandContext(ctx, "git", "-C", repoRoot, "worktree", "list", "--porcelain").Output()
	if err != nil {
		return nil, errors.Wrap(err, "git worktree list")
	}
	return parseWorktreePaths(string(out)), nil
}

// parseWorktreePaths extracts the "worktree <path>" lines from
// `git worktree list --porcelain` output.
func parseWorktreePaths(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		if p, ok := strings.CutPrefix(line, "worktree "); ok {
			paths = append(paths, p)
		}
	}
	return paths
}
