package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kylesnowschwartz/mobius/internal/layout"
)

var resumeCmd = &cobra.Command{
	Use:   "resume [parent-id]",
	Short: "resume the most recent (or a named) session after a cancellation or crash",
	Long: `resume re-enters the same control flow as "run": it re-fetches the
parent and sub-tasks from the backend, rebuilds the task graph from
their current statuses, and drives the scheduler until the frontier is
empty again. Tasks that were active but not yet terminal when mobius
stopped simply reappear in the rebuilt frontier -- there is no separate
resume state machine (§5's cancellation note: the coordinator leaves
affected tasks such that "a subsequent resume recomputes the frontier
correctly").`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return runRun(cmd, args)
	}

	repo, err := rootRepo()
	if err != nil {
		return fmt.Errorf("resolving repo root: %w", err)
	}
	parentID, err := currentSessionID(repo)
	if err != nil {
		return err
	}
	return runRun(cmd, []string{parentID})
}

// currentSessionID reads the repo-local pointer to the last parent id
// mobius ran against (written atomically by orchestrator.Run).
func currentSessionID(repo string) (string, error) {
	paths := layout.New(repo, "")
	data, err := os.ReadFile(paths.CurrentSessionPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no prior session found; pass a parent id explicitly")
		}
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("current-session file is empty; pass a parent id explicitly")
	}
	return id, nil
}
