// Package main is mobius's cobra command tree (pack convention, same
// shape as activebook-gllm/cmd and 88lin-divinesense's CLI entrypoints):
// a thin wrapper that wires config, logging, and backend construction
// and calls into internal/orchestrator. It contains no orchestration
// logic of its own.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kylesnowschwartz/mobius/internal/config"
)

var (
	cfgFile    string
	verboseLog bool

	cfg config.Config
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "mobius",
	Short: "mobius drives a parent issue's sub-tasks through isolated agents to completion",
	Long: `mobius fetches a parent issue and its sub-tasks from a work tracker,
builds a dependency graph, and dispatches each ready sub-task to an
isolated agent running in its own git worktree -- retrying, verifying,
and pushing status back to the tracker until the graph is done.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command; main's sole job is calling this.
// SilenceErrors leaves error reporting to us: an exitCodeError already
// had its outcome printed as a Markdown summary, so only genuine
// failures get an "Error: ..." line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := err.(exitCodeError); ok {
			os.Exit(int(code))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML or JSON); without it, only defaults and MOBIUS_ environment variables apply")
	rootCmd.PersistentFlags().BoolVar(&verboseLog, "verbose", false, "enable debug logging and the execution/debug-<parent>.log stream")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
}

// initConfig loads configuration via internal/config, which already
// wires viper defaults, the MOBIUS_ env prefix, and an optional file --
// this just resolves the file path flag (mirroring activebook-gllm's
// cfgFile handling) before delegating.
func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		// With --config, any load error (unreadable or unparsable file,
		// or settings that fail config.Validate) is fatal here. Without
		// it the error is ignored and the loaded values are kept; of the
		// validated settings, only an unknown backend is rejected later,
		// by buildAdapter when a command runs.
		if cfgFile != "" {
			logrus.WithError(err).Fatal("mobius: failed to load config")
		}
	}
	cfg = loaded
	setupLogging()
}

func setupLogging() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level := logrus.InfoLevel
	if verboseLog {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)
}

// rootRepo resolves the repository root mobius operates against: the
// current working directory, same as every other pack CLI that treats
// its invocation directory as the project root.
func rootRepo() (string, error) {
	return os.Getwd()
}
