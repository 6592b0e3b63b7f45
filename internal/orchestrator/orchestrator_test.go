package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/kylesnowschwartz/mobius/internal/backend/local"
	"github.com/kylesnowschwartz/mobius/internal/config"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/scheduler"
	"github.com/kylesnowschwartz/mobius/internal/worktree"
)

// stubWorktreeManager returns a Manager whose git calls always succeed
// without touching disk -- this test exercises orchestrator wiring,
// not real worktree plumbing (covered by internal/worktree's tests).
func stubWorktreeManager(t *testing.T, repo string) *worktree.Manager {
	t.Helper()
	return worktree.NewWithRunner(repo, worktree.Config{BaseBranch: "main"},
		func(ctx context.Context, args ...string) (string, error) { return "", nil })
}

// fakeAgent/fakeSpawner mirror the scheduler package's test doubles --
// duplicated here (not imported, since scheduler's are unexported)
// to exercise the orchestrator's wiring end to end.
type fakeAgent struct {
	pid   int
	lines chan string
}

func newFakeAgent(pid int, stdout string) *fakeAgent {
	a := &fakeAgent{pid: pid, lines: make(chan string, 1)}
	if stdout != "" {
		a.lines <- stdout
	}
	close(a.lines)
	return a
}

func (a *fakeAgent) PID() int             { return a.pid }
func (a *fakeAgent) Lines() <-chan string { return a.lines }
func (a *fakeAgent) Kill() error          { return nil }

type fakeSpawner struct {
	nextPID int
}

func (s *fakeSpawner) Spawn(ctx context.Context, task model.SubTask, worktreePath, contextPath string) (scheduler.Agent, error) {
	s.nextPID++
	stdout := "---\nstatus: SUBTASK_COMPLETE\nsubtaskId: " + task.ID + "\ncommitHash: abc123\n---\n"
	return newFakeAgent(s.nextPID, stdout), nil
}

func TestRunCompletesAllTasks(t *testing.T) {
	repo := t.TempDir()
	adapter := local.New(repo)
	adapter.Seed([]backend.Issue{
		{ID: "PARENT-1", Identifier: "PARENT-1", Title: "Ship feature", Status: "In Progress"},
		{ID: "PARENT-1-1", Identifier: "PARENT-1-1", Title: "Sub one", Status: "Todo"},
		{ID: "PARENT-1-2", Identifier: "PARENT-1-2", Title: "Sub two", Status: "Todo"},
	})

	cfg := config.Defaults()
	cfg.Execution.MaxParallelAgents = 2
	cfg.Execution.PollInterval = time.Millisecond
	cfg.Execution.AgentTimeout = time.Second
	cfg.Worktree.PathTemplate = repo + "-wt/<task_id>"

	opts := Options{
		RepoRoot:        repo,
		Config:          cfg,
		Adapter:         adapter,
		Spawner:         &fakeSpawner{},
		WorktreeManager: stubWorktreeManager(t, repo),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := Run(ctx, "PARENT-1", opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.ExitCode != ExitSuccess {
		t.Fatalf("exit code = %d, want %d", result.ExitCode, ExitSuccess)
	}
	if len(result.Summary.Tasks) != 2 {
		t.Fatalf("tasks = %+v, want 2 entries", result.Summary.Tasks)
	}
	for _, task := range result.Summary.Tasks {
		if task.Status != model.StatusDone {
			t.Errorf("task %s status = %v, want done", task.ID, task.Status)
		}
	}
}

func TestRunFailsPreDispatchWithNoSubtasks(t *testing.T) {
	repo := t.TempDir()
	adapter := local.New(repo)
	adapter.Seed([]backend.Issue{{ID: "PARENT-1", Identifier: "PARENT-1", Title: "Empty parent"}})

	opts := Options{RepoRoot: repo, Config: config.Defaults(), Adapter: adapter, Spawner: &fakeSpawner{}}

	result, err := Run(context.Background(), "PARENT-1", opts)
	if err == nil {
		t.Fatal("expected error for parent with no sub-tasks")
	}
	if result.ExitCode != ExitPreDispatchError {
		t.Fatalf("exit code = %d, want %d", result.ExitCode, ExitPreDispatchError)
	}
}
