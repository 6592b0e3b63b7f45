package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kylesnowschwartz/mobius/internal/debuglog"
	"github.com/kylesnowschwartz/mobius/internal/layout"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/orchestrator"
	"github.com/kylesnowschwartz/mobius/internal/render"
	"github.com/kylesnowschwartz/mobius/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run <parent-id>",
	Short: "drive a parent issue's sub-tasks to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	parentID := args[0]

	repo, err := rootRepo()
	if err != nil {
		return fmt.Errorf("resolving repo root: %w", err)
	}

	adapter, err := buildAdapter(cfg, repo)
	if err != nil {
		return err
	}

	if verboseLog {
		if err := attachDebugStream(repo, parentID); err != nil {
			log.WithError(err).Warn("mobius: could not open debug stream")
		}
	}

	entry := log.WithField("command", "run")
	opts := orchestrator.Options{
		RepoRoot: repo,
		Config:   cfg,
		Adapter:  adapter,
		Spawner: scheduler.ExecSpawner{
			Command: func(task model.SubTask, worktreePath, contextPath string) []string {
				return append([]string{}, cfg.Agent.Command...)
			},
		},
		Log: entry,
	}

	result, err := orchestrator.Run(cmd.Context(), parentID, opts)
	if err != nil {
		return err
	}

	summary := render.Summary{
		ParentID: parentID,
		TotalMs:  result.Summary.TotalMs,
		ExitCode: result.ExitCode,
	}
	for _, t := range result.Summary.Tasks {
		if t.Status == model.StatusDone {
			summary.Done = append(summary.Done, t.ID)
		} else {
			summary.Failed = append(summary.Failed, t.ID)
		}
	}
	renderer := &render.MarkdownRenderer{}
	fmt.Println(renderer.Render(summary.Markdown(), render.TerminalWidth()))

	if result.ExitCode != orchestrator.ExitSuccess {
		return exitCodeError(result.ExitCode)
	}
	return nil
}

// attachDebugStream registers a debuglog.Hook on the shared logger so
// every entry logged during this run -- at any level the logger has
// enabled (debug and above under --verbose) -- also lands in
// execution/debug-<parent-id>.log (SPEC_FULL SUPPLEMENTED FEATURES #4).
func attachDebugStream(repo, parentID string) error {
	paths := layout.New(repo, parentID)
	if err := os.MkdirAll(paths.ExecutionDir(), 0o755); err != nil {
		return err
	}
	hook, err := debuglog.NewHook(paths.DebugLogPath(parentID))
	if err != nil {
		return err
	}
	log.AddHook(hook)
	return nil
}

// exitCodeError carries a process exit code through cobra's error path
// without printing an extra message -- the Markdown summary already
// reported the outcome.
type exitCodeError int

func (e exitCodeError) Error() string { return fmt.Sprintf("mobius: exit %d", int(e)) }
