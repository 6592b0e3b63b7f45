// Package config loads the configuration surface of §6 into a
// validated Config struct, built on github.com/spf13/viper (the
// loader library carried by both activebook-gllm and 88lin-divinesense
// in the retrieval pack). Deep validation and arbitrary-key CLI
// parsing are explicitly out of scope per §1: this loader decodes only
// the keys the core consumes and ignores everything else.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// envReplacer maps "execution.max_parallel_agents" to the environment
// variable suffix "EXECUTION_MAX_PARALLEL_AGENTS".
var envReplacer = strings.NewReplacer(".", "_")

// Backend names a supported work-tracker backend.
type Backend string

const (
	BackendLinear Backend = "linear"
	BackendJira   Backend = "jira"
	BackendLocal  Backend = "local"
)

// Execution holds the scheduler-facing knobs of §6.
type Execution struct {
	MaxParallelAgents int           `mapstructure:"max_parallel_agents"`
	AgentTimeout      time.Duration `mapstructure:"-"`
	AgentTimeoutMs    uint          `mapstructure:"agent_timeout_ms"`
	PollInterval      time.Duration `mapstructure:"-"`
	PollIntervalMs    uint          `mapstructure:"poll_interval_ms"`
	MaxRetries        int           `mapstructure:"max_retries"`
}

// Worktree holds the per-task filesystem isolation knobs of §6.
type Worktree struct {
	PathTemplate     string `mapstructure:"path_template"`
	BaseBranch       string `mapstructure:"base_branch"`
	CleanupOnSuccess bool   `mapstructure:"cleanup_on_success"`
}

// Agent holds the collaborator-process invocation, which §1 treats as
// a black box: mobius only needs argv[0] and its fixed flags, not
// anything about what's inside.
type Agent struct {
	Command []string `mapstructure:"command"`
}

// Config is the validated, fully-decoded configuration surface §6
// names. Anything else present in the source file is silently
// ignored, per the ambient-stack note that deep validation of
// arbitrary keys is out of scope.
type Config struct {
	Backend   Backend   `mapstructure:"backend"`
	Execution Execution `mapstructure:"execution"`
	Worktree  Worktree  `mapstructure:"worktree"`
	Agent     Agent     `mapstructure:"agent"`
}

// ErrConfigInvalid is the §7 ConfigInvalid sentinel: a fatal error
// surfaced to the caller before any task is dispatched.
var ErrConfigInvalid = errors.New("config: invalid configuration")

// Defaults matches §6's stated defaults exactly.
func Defaults() Config {
	return Config{
		Backend: BackendLocal,
		Execution: Execution{
			MaxParallelAgents: 3,
			AgentTimeout:      30 * time.Minute,
			AgentTimeoutMs:    1_800_000,
			PollInterval:      2 * time.Second,
			PollIntervalMs:    2_000,
			MaxRetries:        2,
		},
		Worktree: Worktree{
			PathTemplate: "<repo>-worktrees/<task_id>",
			BaseBranch:   "main",
		},
		Agent: Agent{
			Command: []string{"claude", "--print", "--permission-mode", "acceptEdits"},
		},
	}
}

// Load reads configPath (YAML or JSON, by extension) through viper,
// applies environment-variable overrides under the MOBIUS_ prefix
// (e.g. MOBIUS_EXECUTION_MAX_PARALLEL_AGENTS), and decodes into a
// Config seeded with Defaults. An empty configPath is valid: viper
// then consults only environment and defaults.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("mobius")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envReplacer)

	applyDefaults(v, Defaults())

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(ErrConfigInvalid, "reading %s: %v", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrapf(ErrConfigInvalid, "decoding: %v", err)
	}

	cfg.Execution.AgentTimeout = time.Duration(cfg.Execution.AgentTimeoutMs) * time.Millisecond
	cfg.Execution.PollInterval = time.Duration(cfg.Execution.PollIntervalMs) * time.Millisecond

	return cfg, Validate(cfg)
}

// Validate checks the structural constraints Load cannot express via
// decoding alone.
func Validate(cfg Config) error {
	switch cfg.Backend {
	case BackendLinear, BackendJira, BackendLocal:
	default:
		return errors.Wrapf(ErrConfigInvalid, "unknown backend %q", cfg.Backend)
	}
	if cfg.Execution.MaxParallelAgents < 1 {
		return errors.Wrap(ErrConfigInvalid, "execution.max_parallel_agents must be >= 1")
	}
	if cfg.Execution.MaxRetries < 0 {
		return errors.Wrap(ErrConfigInvalid, "execution.max_retries must be >= 0")
	}
	if len(cfg.Agent.Command) == 0 {
		return errors.Wrap(ErrConfigInvalid, "agent.command must not be empty")
	}
	return nil
}

func applyDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backend", string(d.Backend))
	v.SetDefault("execution.max_parallel_agents", d.Execution.MaxParallelAgents)
	v.SetDefault("execution.agent_timeout_ms", d.Execution.AgentTimeoutMs)
	v.SetDefault("execution.poll_interval_ms", d.Execution.PollIntervalMs)
	v.SetDefault("execution.max_retries", d.Execution.MaxRetries)
	v.SetDefault("worktree.path_template", d.Worktree.PathTemplate)
	v.SetDefault("worktree.base_branch", d.Worktree.BaseBranch)
	v.SetDefault("worktree.cleanup_on_success", d.Worktree.CleanupOnSuccess)
	v.SetDefault("agent.command", d.Agent.Command)
}
