// Package orchestrator is the top-level control flow named in §2's
// control-flow paragraph: fetch parent and sub-tasks from the backend
// adapter, build the task graph, drive the scheduler to completion,
// and write the final summary. It contains no scheduling logic of its
// own -- that lives in internal/scheduler -- only the wiring between
// components that §1 calls out as the core's responsibility.
package orchestrator

import (
	"context"
	"os"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/atomicio"
	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/kylesnowschwartz/mobius/internal/config"
	"github.com/kylesnowschwartz/mobius/internal/graph"
	"github.com/kylesnowschwartz/mobius/internal/layout"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/outbox"
	"github.com/kylesnowschwartz/mobius/internal/runtimestate"
	"github.com/kylesnowschwartz/mobius/internal/scheduler"
	"github.com/kylesnowschwartz/mobius/internal/tracker"
	"github.com/kylesnowschwartz/mobius/internal/worktree"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Exit codes per §6: 0 all-complete, 1 permanent failure, 2
// cancellation, 3 configuration/adapter failure before any dispatch.
const (
	ExitSuccess          = 0
	ExitPermanentFailure = 1
	ExitCancelled        = 2
	ExitPreDispatchError = 3
)

// ErrNoSubtasks is returned when a parent has no sub-tasks to work --
// callers treat this as a pre-dispatch configuration/adapter failure
// (§6 exit status 3).
var ErrNoSubtasks = errors.New("orchestrator: parent has no sub-tasks")

// Options bundles everything Run needs beyond the parent id.
type Options struct {
	RepoRoot string
	Config   config.Config
	Adapter  backend.Adapter
	Spawner  scheduler.Spawner
	Log      *logrus.Entry

	// WorktreeManager overrides the default git-backed manager -- tests
	// inject a stub runner so Run doesn't need a real git repository.
	WorktreeManager *worktree.Manager
}

// Result is Run's terminal report.
type Result struct {
	ExitCode int
	Summary  model.CompletionSummary
}

// Run executes one full parent-to-completion pass: fetch, build graph,
// initialize durable state, schedule, and write the final summary
// (§2's control-flow paragraph end to end).
func Run(ctx context.Context, parentID string, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	log = log.WithField("parent_id", parentID)

	paths := layout.New(opts.RepoRoot, parentID)
	if err := ensureLayout(paths); err != nil {
		return Result{ExitCode: ExitPreDispatchError}, err
	}
	if err := atomicio.WriteFileAtomic(paths.CurrentSessionPath(), []byte(parentID)); err != nil {
		return Result{ExitCode: ExitPreDispatchError}, err
	}

	issue, err := opts.Adapter.FetchIssue(ctx, parentID)
	if err != nil {
		return Result{ExitCode: ExitPreDispatchError}, errors.Wrap(err, "orchestrator: fetch parent issue")
	}

	backendSubtasks, err := opts.Adapter.FetchSubtasks(ctx, parentID)
	if err != nil {
		return Result{ExitCode: ExitPreDispatchError}, errors.Wrap(err, "orchestrator: fetch sub-tasks")
	}
	if len(backendSubtasks) == 0 {
		return Result{ExitCode: ExitPreDispatchError}, ErrNoSubtasks
	}

	subtasks := make([]model.SubTask, 0, len(backendSubtasks))
	for _, i := range backendSubtasks {
		subtasks = append(subtasks, model.SubTask{
			ID:          i.ID,
			Identifier:  i.Identifier,
			Title:       i.Title,
			Description: i.Description,
			Branch:      i.Branch,
			Status:      model.MapBackendStatus(i.Status),
			BlockedBy:   i.BlockedBy,
		})
	}

	g, err := graph.Build(parentID, subtasks)
	if err != nil {
		return Result{ExitCode: ExitPreDispatchError}, errors.Wrap(err, "orchestrator: build task graph")
	}

	if err := atomicio.WriteJSON(paths.ParentJSONPath(), issue); err != nil {
		return Result{ExitCode: ExitPreDispatchError}, errors.Wrap(err, "orchestrator: write parent issue context")
	}
	if err := writeTaskContexts(paths, parentID, issue, subtasks); err != nil {
		return Result{ExitCode: ExitPreDispatchError}, err
	}

	ob := outbox.New(opts.RepoRoot, parentID, log)
	state, err := runtimestate.Initialize(opts.RepoRoot, parentID, issueTitle(issue), len(subtasks), os.Getpid(), ob, log)
	if err != nil {
		return Result{ExitCode: ExitPreDispatchError}, errors.Wrap(err, "orchestrator: initialize runtime state")
	}

	session := model.Session{
		ParentID:     parentID,
		BackendTag:   opts.Adapter.Tag(),
		WorktreePath: opts.RepoRoot,
		StartedAt:    state.StartedAt,
		Status:       model.SessionActive,
	}
	if err := atomicio.WriteJSON(paths.SessionJSONPath(), session); err != nil {
		return Result{ExitCode: ExitPreDispatchError}, errors.Wrap(err, "orchestrator: write session")
	}

	store := runtimestate.New(opts.RepoRoot, parentID, log)
	wtCfg := worktree.Config{
		PathTemplate:     opts.Config.Worktree.PathTemplate,
		BaseBranch:       opts.Config.Worktree.BaseBranch,
		CleanupOnSuccess: opts.Config.Worktree.CleanupOnSuccess,
	}
	wt := opts.WorktreeManager
	if wt == nil {
		wt = worktree.New(opts.RepoRoot, wtCfg)
	}
	tr := tracker.New(opts.Config.Execution.MaxRetries, 30*time.Second)

	schedCfg := scheduler.Config{
		MaxParallelAgents: opts.Config.Execution.MaxParallelAgents,
		AgentTimeout:      opts.Config.Execution.AgentTimeout,
		PollInterval:      opts.Config.Execution.PollInterval,
		MaxRetries:        opts.Config.Execution.MaxRetries,
	}
	sched := scheduler.New(schedCfg, opts.Spawner, wt, wtCfg, store, ob, tr, opts.Adapter,
		func(t model.SubTask) string { return paths.TaskJSONPath(t.ID) }, log)

	iterLog := newIterationLogger(paths.IterationsPath())
	finalGraph, summary, err := sched.Run(ctx, g, iterLog.observe)
	if err != nil {
		return Result{ExitCode: ExitPreDispatchError}, errors.Wrap(err, "orchestrator: scheduler run")
	}

	completion := buildCompletionSummary(parentID, issueTitle(issue), state.StartedAt, finalGraph, summary)
	if err := atomicio.WriteJSON(paths.SummaryPath(), completion); err != nil {
		return Result{}, errors.Wrap(err, "orchestrator: write summary")
	}

	finalStatus := model.SessionCompleted
	switch {
	case summary.Cancelled:
		finalStatus = model.SessionPaused
	case len(summary.Failed) > 0:
		finalStatus = model.SessionFailed
	}
	session.Status = finalStatus
	_ = atomicio.WriteJSON(paths.SessionJSONPath(), session)

	return Result{ExitCode: summary.ExitCode, Summary: completion}, nil
}

func issueTitle(issue *backend.Issue) string {
	if issue == nil {
		return ""
	}
	return issue.Title
}

func ensureLayout(paths layout.Paths) error {
	for _, dir := range []string{paths.Root(), paths.TasksDir(), paths.ExecutionDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "orchestrator: create %s", dir)
		}
	}
	gitignore := paths.GitignorePath()
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		_ = os.WriteFile(gitignore, []byte("state/\n"), 0o644)
	}
	return nil
}

// taskContext is the per-task view written to tasks/<id>.json and read
// by the agent (context.json's per-task counterpart). Kept deliberately
// small: the agent's own context-gathering is out of scope per §1.
type taskContext struct {
	ID          string   `json:"id"`
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	BlockedBy   []string `json:"blocked_by,omitempty"`
}

// issueContext is the consolidated view written to context.json (§6).
type issueContext struct {
	ParentID    string        `json:"parent_id"`
	ParentTitle string        `json:"parent_title"`
	Tasks       []taskContext `json:"tasks"`
}

func writeTaskContexts(paths layout.Paths, parentID string, issue *backend.Issue, subtasks []model.SubTask) error {
	ctxTasks := make([]taskContext, 0, len(subtasks))
	for _, t := range subtasks {
		tc := taskContext{ID: t.ID, Identifier: t.Identifier, Title: t.Title, Description: t.Description, BlockedBy: t.BlockedBy}
		ctxTasks = append(ctxTasks, tc)
		if err := atomicio.WriteJSON(paths.TaskJSONPath(t.ID), tc); err != nil {
			return errors.Wrapf(err, "orchestrator: write task context %s", t.ID)
		}
	}
	consolidated := issueContext{ParentID: parentID, ParentTitle: issueTitle(issue), Tasks: ctxTasks}
	return atomicio.WriteJSON(paths.ContextJSONPath(), consolidated)
}

func buildCompletionSummary(parentID, parentTitle string, startedAt time.Time, g *graph.Graph, summary scheduler.Summary) model.CompletionSummary {
	finishedAt := time.Now()
	cs := model.CompletionSummary{
		ParentID:    parentID,
		ParentTitle: parentTitle,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		TotalMs:     finishedAt.Sub(startedAt).Milliseconds(),
		ExitCode:    summary.ExitCode,
	}
	for _, t := range g.Done() {
		cs.Tasks = append(cs.Tasks, model.TaskOutcome{ID: t.ID, Identifier: t.Identifier, Status: model.StatusDone})
	}
	for _, t := range g.Failed() {
		cs.Tasks = append(cs.Tasks, model.TaskOutcome{ID: t.ID, Identifier: t.Identifier, Status: model.StatusFailed})
	}
	return cs
}
