package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kylesnowschwartz/mobius/internal/layout"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/orchestrator"
	"github.com/kylesnowschwartz/mobius/internal/render"
	"github.com/kylesnowschwartz/mobius/internal/runtimestate"
)

var statusCmd = &cobra.Command{
	Use:   "status [parent-id]",
	Short: "print the current runtime state of a session (SUPPLEMENTED FEATURES: status command)",
	Long: `status reads runtime.json for the given parent (or the current session,
if none is given) and renders active/done/failed task counts as a
Glamour-rendered Markdown summary. It takes no lock beyond the read
itself -- a concurrently running "mobius run" is unaffected.

With --verbose, it additionally replays execution/iterations.json, one
syntax-highlighted JSON entry per scheduler tick.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	repo, err := rootRepo()
	if err != nil {
		return fmt.Errorf("resolving repo root: %w", err)
	}

	parentID := ""
	if len(args) == 1 {
		parentID = args[0]
	} else {
		parentID, err = currentSessionID(repo)
		if err != nil {
			return err
		}
	}

	store := runtimestate.New(repo, parentID, log.WithField("command", "status"))
	state := store.Read()

	var view *model.RuntimeState
	if state.ParentID != "" {
		view = &state
	}

	fmt.Println(render.Status(view))
	fmt.Println()

	md := render.StatusMarkdown(view)
	renderer := &render.MarkdownRenderer{}
	fmt.Println(renderer.Render(md, render.TerminalWidth()))

	if verboseLog {
		if err := printIterationLog(repo, parentID); err != nil {
			log.WithError(err).Warn("mobius: could not read iteration log")
		}
	}
	return nil
}

// printIterationLog replays execution/iterations.json (SPEC_FULL
// SUPPLEMENTED FEATURES #2), rendering each entry as syntax-highlighted
// JSON so a dense scheduler history stays scannable in a terminal.
func printIterationLog(repo, parentID string) error {
	paths := layout.New(repo, parentID)
	entries, err := orchestrator.ReadIterationLog(paths.IterationsPath())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	highlighter := render.NewJSONHighlighter(render.HasDarkBackground())
	fmt.Println("## Iteration log")
	for _, entry := range entries {
		data, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			continue
		}
		if out, ok := highlighter.Highlight(string(data)); ok {
			fmt.Println(out)
		} else {
			fmt.Println(string(data))
		}
	}
	return nil
}
