package main

import (
	"fmt"
	"os"

	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/kylesnowschwartz/mobius/internal/backend/jira"
	"github.com/kylesnowschwartz/mobius/internal/backend/linear"
	"github.com/kylesnowschwartz/mobius/internal/backend/local"
	"github.com/kylesnowschwartz/mobius/internal/config"
)

// buildAdapter constructs the backend.Adapter named by cfg.Backend,
// reading credentials from the environment -- credential handling is
// explicitly out of the orchestrator core's scope (§1), so it lives
// here, at the edge, rather than in internal/config or internal/backend.
// Every adapter is wrapped in backend.Resilient so a flaky tracker opens
// the circuit breaker instead of stalling the scheduler's poll loop.
func buildAdapter(cfg config.Config, repoRoot string) (backend.Adapter, error) {
	switch cfg.Backend {
	case config.BackendLinear:
		apiKey := os.Getenv("MOBIUS_LINEAR_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("backend linear: MOBIUS_LINEAR_API_KEY is not set")
		}
		return backend.NewResilient(linear.New(apiKey)), nil

	case config.BackendJira:
		baseURL := os.Getenv("MOBIUS_JIRA_BASE_URL")
		email := os.Getenv("MOBIUS_JIRA_EMAIL")
		token := os.Getenv("MOBIUS_JIRA_TOKEN")
		if baseURL == "" || email == "" || token == "" {
			return nil, fmt.Errorf("backend jira: MOBIUS_JIRA_BASE_URL, MOBIUS_JIRA_EMAIL, and MOBIUS_JIRA_TOKEN must all be set")
		}
		return backend.NewResilient(jira.New(baseURL, email, token)), nil

	case config.BackendLocal:
		return local.New(repoRoot), nil

	default:
		return nil, fmt.Errorf("backend: unknown backend %q", cfg.Backend)
	}
}
