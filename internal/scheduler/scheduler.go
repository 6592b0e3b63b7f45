package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/kylesnowschwartz/mobius/internal/graph"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/outbox"
	"github.com/kylesnowschwartz/mobius/internal/protocol"
	"github.com/kylesnowschwartz/mobius/internal/runtimestate"
	"github.com/kylesnowschwartz/mobius/internal/tracker"
	"github.com/kylesnowschwartz/mobius/internal/worktree"
	"github.com/sirupsen/logrus"
)

// Config is the subset of §6's configuration surface the scheduler
// consumes.
type Config struct {
	MaxParallelAgents int
	AgentTimeout      time.Duration
	PollInterval      time.Duration
	MaxRetries        int
}

// DefaultConfig matches §6's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxParallelAgents: 3,
		AgentTimeout:      30 * time.Minute,
		PollInterval:      2 * time.Second,
		MaxRetries:        2,
	}
}

// ContextPathFunc resolves the path to a task's context.json, written
// by the orchestrator before dispatch (§6).
type ContextPathFunc func(task model.SubTask) string

// Scheduler is the single-threaded control-plane coordinator described
// in §4.H / §5: it owns the in-flight set, drives dispatch and
// supervision, and is the only component that mutates the task graph.
type Scheduler struct {
	cfg       Config
	spawner   Spawner
	worktrees *worktree.Manager
	wtConfig  worktree.Config
	state     *runtimestate.Store
	outbox    *outbox.Outbox
	tracker   *tracker.Tracker
	adapter   backend.Adapter
	log       *logrus.Entry
	contextOf ContextPathFunc

	baseBranch string
}

// New constructs a Scheduler. Every worktree it creates forks from
// wtConfig.BaseBranch; a sub-task's Branch names the new feature branch,
// never its base.
func New(cfg Config, spawner Spawner, worktrees *worktree.Manager, wtConfig worktree.Config,
	state *runtimestate.Store, ob *outbox.Outbox, tr *tracker.Tracker, adapter backend.Adapter,
	contextOf ContextPathFunc, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		cfg: cfg, spawner: spawner, worktrees: worktrees, wtConfig: wtConfig,
		state: state, outbox: ob, tracker: tr, adapter: adapter,
		contextOf: contextOf, log: log,
		baseBranch: wtConfig.BaseBranch,
	}
}

// inFlightTask tracks one agent currently being supervised.
type inFlightTask struct {
	task         model.SubTask
	agent        Agent
	worktreePath string
	startedAt    time.Time
	buf          string // accumulated stdout, reclassified on every poll tick
}

// Summary is the scheduler's terminal report (§6 exit status + §9
// summary.json content).
type Summary struct {
	Done       []string
	Failed     []string
	Cancelled  bool
	ExitCode   int
}

// IterationObserver is called once per scheduler loop tick, for the
// append-only iterations.json log (SPEC_FULL supplemented feature).
type IterationObserver func(frontierSize, dispatched int, outcomes map[protocol.Outcome]int)

// Run executes the scheduling algorithm of §4.H until the frontier and
// in-flight set are both empty, or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, g *graph.Graph, observe IterationObserver) (*graph.Graph, Summary, error) {
	inFlight := make(map[string]*inFlightTask)

	for {
		if ctx.Err() != nil {
			return g, s.cancel(ctx, g, inFlight), nil
		}

		frontier := g.Ready()
		if len(frontier) == 0 && len(inFlight) == 0 {
			return g, s.finalSummary(g, false), nil
		}

		dispatched := 0
		capacity := s.cfg.MaxParallelAgents - len(inFlight)
		for i := 0; i < capacity && i < len(frontier); i++ {
			task := frontier[i]
			if err := s.dispatch(ctx, task, inFlight); err != nil {
				if s.log != nil {
					s.log.WithError(err).WithField("task_id", task.ID).Warn("scheduler: dispatch failed")
				}
				continue
			}
			dispatched++
		}

		outcomes := map[protocol.Outcome]int{}
		var advanced *graph.Graph = g
		for id, inf := range inFlight {
			drainAvailable(inf)
			result, ok := protocol.Parse(inf.buf)
			outcome := protocol.Classify(result, ok)

			timedOut := time.Since(inf.startedAt) > s.cfg.AgentTimeout
			if !ok && !timedOut {
				continue // still running, nothing to classify yet
			}

			outcomes[outcome]++
			delete(inFlight, id)

			next, err := s.resolve(ctx, advanced, inf, result, outcome)
			if err != nil && s.log != nil {
				s.log.WithError(err).WithField("task_id", id).Warn("scheduler: resolve failed")
			}
			if next != nil {
				advanced = next
			}
		}
		g = advanced

		if observe != nil {
			observe(len(frontier), dispatched, outcomes)
		}

		select {
		case <-ctx.Done():
			return g, s.cancel(ctx, g, inFlight), nil
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

// drainAvailable reads every line currently buffered on the agent's
// output channel without blocking, appending to inf.buf.
func drainAvailable(inf *inFlightTask) {
	for {
		select {
		case line, ok := <-inf.agent.Lines():
			if !ok {
				return
			}
			inf.buf += line + "\n"
		default:
			return
		}
	}
}

// dispatch acquires a worktree, spawns the agent, and records it as an
// active task in runtime state (§4.H step 2).
func (s *Scheduler) dispatch(ctx context.Context, task model.SubTask, inFlight map[string]*inFlightTask) error {
	branch := task.Branch
	if branch == "" {
		branch = "mobius/" + task.ID
	}
	path, err := s.worktrees.Create(ctx, task.ID, branch, s.baseBranch)
	if err != nil {
		return err
	}

	contextPath := ""
	if s.contextOf != nil {
		contextPath = s.contextOf(task)
	}

	agent, err := s.spawner.Spawn(ctx, task, path, contextPath)
	if err != nil {
		_ = s.worktrees.Remove(ctx, path)
		return err
	}

	paneID := uuid.NewString()
	startedAt := time.Now()
	if s.state != nil {
		_, _ = s.state.WithStateSync(runtimestate.AddActive(model.RuntimeActiveTask{
			ID: task.ID, AgentPID: agent.PID(), PaneID: paneID, StartedAt: startedAt, WorktreePath: path,
		}))
	}

	inFlight[task.ID] = &inFlightTask{task: task, agent: agent, worktreePath: path, startedAt: startedAt}
	return nil
}

// resolve classifies one agent's outcome, queues the matching outbox
// entries, pushes them before requesting verification (push-before-
// verify, §4.C), asks the tracker for a retry decision, and advances
// the graph accordingly (§4.H step 3).
func (s *Scheduler) resolve(ctx context.Context, g *graph.Graph, inf *inFlightTask, result protocol.Result, outcome protocol.Outcome) (*graph.Graph, error) {
	duration := time.Since(inf.startedAt)

	if s.wtConfig.CleanupOnSuccess || outcome != protocol.OutcomeSuccess {
		_ = s.worktrees.Remove(ctx, inf.worktreePath)
	}

	if outcome == protocol.OutcomeInconclusive {
		// Timeout or unrecognized output: no outbox entry, tracker
		// decides retry vs permanent failure (§4.H table).
		return s.applyTrackerVerdict(ctx, g, inf.task, tracker.ExecutionResult{
			TaskID: inf.task.ID, Identifier: inf.task.Identifier, Success: false,
			Outcome: outcome, Duration: duration, Error: "agent timed out or produced no recognized marker",
		})
	}

	switch outcome {
	case protocol.OutcomeSuccess:
		s.queueStatusAndComment(inf.task, model.StatusDone, "Completed: "+result.CommitHash)
	case protocol.OutcomeFailure:
		s.queueComment(inf.task, "Verification failed ("+result.ErrorType+"): "+result.ErrorSummary)
	case protocol.OutcomeNeedsWork:
		s.resolveNeedsWork(g, inf.task, result)
	}

	if _, err := s.outbox.Push(ctx, s.adapter); err != nil {
		return g, err
	}

	success := outcome == protocol.OutcomeSuccess
	return s.applyTrackerVerdict(ctx, g, inf.task, tracker.ExecutionResult{
		TaskID: inf.task.ID, Identifier: inf.task.Identifier, Success: success,
		Outcome: outcome, Duration: duration,
		Error: result.ErrorSummary,
	})
}

// resolveNeedsWork queues the StatusChange(Done->Todo)+AddComment pair
// for every task the agent named, whether via the single-subtask shape
// or the multi-subtask failingSubtasks/feedbackComments shape (§4.F).
func (s *Scheduler) resolveNeedsWork(g *graph.Graph, task model.SubTask, result protocol.Result) {
	if len(result.FailingSubtasks) > 0 {
		for i, id := range result.FailingSubtasks {
			feedback := ""
			if i < len(result.FeedbackComments) {
				feedback = result.FeedbackComments[i]
			}
			s.queueNeedsWorkFor(g, id, feedback)
		}
		return
	}
	feedback := ""
	if len(result.Issues) > 0 {
		feedback = result.Issues[0]
	}
	id := result.SubtaskID
	if id == "" {
		id = task.ID
	}
	s.queueNeedsWorkFor(g, id, feedback)
}

func (s *Scheduler) queueNeedsWorkFor(g *graph.Graph, taskID, feedback string) {
	node, ok := g.Nodes[taskID]
	if !ok {
		return
	}
	_, _ = s.outbox.Queue(model.NewStatusChange(taskID, model.StatusDone, model.StatusPending))
	if feedback != "" {
		_, _ = s.outbox.Queue(model.NewAddComment(taskID, feedback))
	}
	_ = node
}

func (s *Scheduler) queueStatusAndComment(task model.SubTask, newStatus model.Status, comment string) {
	// StatusChange enqueued before AddComment referencing it (§5 ordering).
	_, _ = s.outbox.Queue(model.NewStatusChange(task.ID, task.Status, newStatus))
	_, _ = s.outbox.Queue(model.NewAddComment(task.ID, comment))
}

func (s *Scheduler) queueComment(task model.SubTask, comment string) {
	_, _ = s.outbox.Queue(model.NewAddComment(task.ID, comment))
}

// applyTrackerVerdict asks the tracker to verify the result against the
// backend and advances the graph: done on a verified success, ready
// (back onto the frontier) on a retryable failure, failed on a
// permanent one.
func (s *Scheduler) applyTrackerVerdict(ctx context.Context, g *graph.Graph, task model.SubTask, result tracker.ExecutionResult) (*graph.Graph, error) {
	verdicts := s.tracker.ProcessResults(ctx, []tracker.ExecutionResult{result}, s.adapter)
	verdict := verdicts[0]

	if s.state != nil {
		if verdict.Success {
			_, _ = s.state.WithStateSync(runtimestate.CompleteTask(task.ID))
		} else if !verdict.ShouldRetry {
			_, _ = s.state.WithStateSync(runtimestate.FailTask(task.ID))
			_, _ = s.state.WithStateSync(runtimestate.RemoveActive(task.ID))
		} else {
			_, _ = s.state.WithStateSync(runtimestate.RemoveActive(task.ID))
		}
	}

	switch {
	case verdict.Success:
		return g.UpdateStatus(task.ID, model.StatusDone)
	case verdict.ShouldRetry:
		return g.UpdateStatus(task.ID, model.StatusReady)
	default:
		return g.UpdateStatus(task.ID, model.StatusFailed)
	}
}

// cancel handles §5's cancellation path: stop dispatch, kill remaining
// in-flight agents after a grace period, and mark their tasks
// removed-without-terminal so a resume recomputes the frontier.
func (s *Scheduler) cancel(ctx context.Context, g *graph.Graph, inFlight map[string]*inFlightTask) Summary {
	for id, inf := range inFlight {
		_ = inf.agent.Kill()
		_ = s.worktrees.Remove(context.Background(), inf.worktreePath)
		if s.state != nil {
			_, _ = s.state.WithStateSync(runtimestate.RemoveActive(id))
		}
	}
	return s.finalSummary(g, true)
}

func (s *Scheduler) finalSummary(g *graph.Graph, cancelled bool) Summary {
	var done, failed []string
	for _, t := range g.Done() {
		done = append(done, t.ID)
	}
	for _, t := range g.Failed() {
		failed = append(failed, t.ID)
	}
	sort.Strings(done)
	sort.Strings(failed)

	exitCode := 0
	switch {
	case cancelled:
		exitCode = 2
	case len(failed) > 0:
		exitCode = 1
	}
	return Summary{Done: done, Failed: failed, Cancelled: cancelled, ExitCode: exitCode}
}
