package model

import "time"

// TaskOutcome is one task's terminal record in a CompletionSummary.
type TaskOutcome struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier,omitempty"`
	Status     Status `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// CompletionSummary is the durable record written once a parent's
// execution loop reaches a terminal state (SPEC_FULL SUPPLEMENTED
// FEATURES #3): per-task terminal outcome, total duration, exit code.
// Consumed only by the CLI for the final rendered report -- never read
// back by the control plane.
type CompletionSummary struct {
	ParentID    string        `json:"parent_id"`
	ParentTitle string        `json:"parent_title"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	TotalMs     int64         `json:"total_ms"`
	ExitCode    int           `json:"exit_code"`
	Tasks       []TaskOutcome `json:"tasks"`
}

// IterationLogEntry is one line of the append-only iterations.json log
// (SPEC_FULL SUPPLEMENTED FEATURES #2): one scheduler loop tick's
// frontier size, dispatched count, and classified outcomes.
type IterationLogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Frontier   int            `json:"frontier"`
	Dispatched int            `json:"dispatched"`
	Outcomes   map[string]int `json:"outcomes"`
}
