// Package model holds the durable data shapes shared across the
// orchestrator: sub-tasks, the pending-update sum type, runtime state,
// and sessions. Nothing in this package touches disk or a lock --
// it is pure data plus the small amount of logic (de-dup keys, status
// mapping) that depends only on the shape of the data itself.
package model

// Status is the internal lifecycle state of a SubTask.
type Status string

const (
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

// SubTask is one node of the task graph: a unit of work dispatched to
// exactly one agent at a time.
type SubTask struct {
	ID          string   // stable backend id
	Identifier  string   // human identifier, e.g. "ENG-413"
	Title       string
	Description string
	Branch      string
	Status      Status
	BlockedBy   []string // ids this task waits on
	Blocks      []string // ids waiting on this task
}

// IsReady reports whether status alone permits dispatch; callers must
// additionally check that every BlockedBy id has reached StatusDone.
func (s SubTask) IsReady() bool {
	return s.Status == StatusPending || s.Status == StatusReady
}

// backendStatusTable maps human-visible backend statuses (Linear, Jira,
// or a local tag) to the internal enum. Unknown strings map to
// StatusPending -- a status we've never seen is treated as not-yet-started
// rather than silently dropped.
var backendStatusTable = map[string]Status{
	"Done":        StatusDone,
	"Completed":   StatusDone,
	"Closed":      StatusDone,
	"In Progress": StatusInProgress,
	"Started":     StatusInProgress,
	"In Review":   StatusInProgress,
	"Backlog":     StatusPending,
	"Todo":        StatusPending,
	"Reopened":    StatusPending,
	"Cancelled":   StatusFailed,
}

// MapBackendStatus translates a human-visible backend status string into
// the internal Status enum. A string that already names an internal
// status (the outbox pushes StatusChange targets in that form) maps to
// itself. Unrecognized strings map to StatusPending.
func MapBackendStatus(s string) Status {
	if mapped, ok := backendStatusTable[s]; ok {
		return mapped
	}
	switch st := Status(s); st {
	case StatusPending, StatusReady, StatusInProgress, StatusDone, StatusFailed, StatusBlocked:
		return st
	}
	return StatusPending
}
