package model

import (
	"encoding/json"
	"time"
)

// BackendStatusRecord is the last-known synced status for one task, used
// by the watcher's equality check and by crash recovery.
type BackendStatusRecord struct {
	Status   Status    `json:"status"`
	SyncedAt time.Time `json:"synced_at"`
}

// RuntimeActiveTask is a task currently being worked by an agent.
type RuntimeActiveTask struct {
	ID            string    `json:"id"`
	AgentPID      int       `json:"agent_pid"`
	PaneID        string    `json:"pane_id"` // opaque display pane identifier
	StartedAt     time.Time `json:"started_at"`
	WorktreePath  string    `json:"worktree_path,omitempty"`
}

// RuntimeCompletedTask records a task that reached StatusDone.
type RuntimeCompletedTask struct {
	ID          string    `json:"id"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// RuntimeFailedTask records a task that reached permanent StatusFailed.
type RuntimeFailedTask struct {
	ID          string    `json:"id"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// RuntimeState is the durable record of one parent's execution session.
// It is read-modify-written only through the lock-guarded mutators of
// runtimestate.WithStateSync -- never edited in place by callers.
type RuntimeState struct {
	ParentID      string          `json:"parent_id"`
	ParentTitle   string          `json:"parent_title"`
	StartedAt     time.Time       `json:"started_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	LoopPID       int             `json:"loop_pid"`
	TotalTasks    int             `json:"total_tasks"`
	ActiveTasks   []RuntimeActiveTask    `json:"active_tasks"`
	CompletedTasks []RuntimeCompletedTask `json:"completed_tasks"`
	FailedTasks    []RuntimeFailedTask    `json:"failed_tasks"`
	BackendStatuses map[string]BackendStatusRecord `json:"backend_statuses"`
}

// UnmarshalJSON accepts both the structured {"id","completed_at","duration_ms"}
// shape and the legacy bare-string shape ("ENG-413") some historical runtime
// files used for completed/failed entries (§9 open question). A bare string
// decodes to an entry with only ID set; MarshalJSON (the default struct-tag
// encoding) always re-emits the structured shape, so one read-modify-write
// cycle upgrades a legacy file in place.
func (t *RuntimeCompletedTask) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = RuntimeCompletedTask{ID: s}
		return nil
	}
	type alias RuntimeCompletedTask
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = RuntimeCompletedTask(a)
	return nil
}

// UnmarshalJSON mirrors RuntimeCompletedTask.UnmarshalJSON for failed_tasks.
func (t *RuntimeFailedTask) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = RuntimeFailedTask{ID: s}
		return nil
	}
	type alias RuntimeFailedTask
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*t = RuntimeFailedTask(a)
	return nil
}

// AddActive appends an active task. Callers (the scheduler mutators) are
// responsible for the invariant that a task id never appears in more
// than one of ActiveTasks/CompletedTasks/FailedTasks at once.
func (s *RuntimeState) AddActive(t RuntimeActiveTask) {
	s.ActiveTasks = append(s.ActiveTasks, t)
}

// FindActive returns the active task with the given id, or nil.
func (s *RuntimeState) FindActive(id string) *RuntimeActiveTask {
	for i := range s.ActiveTasks {
		if s.ActiveTasks[i].ID == id {
			return &s.ActiveTasks[i]
		}
	}
	return nil
}

// IsCompleted reports whether id is already in CompletedTasks.
func (s *RuntimeState) IsCompleted(id string) bool {
	for _, t := range s.CompletedTasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

// IsFailed reports whether id is already in FailedTasks.
func (s *RuntimeState) IsFailed(id string) bool {
	for _, t := range s.FailedTasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

// RemoveActive drops id from ActiveTasks, if present.
func (s *RuntimeState) RemoveActive(id string) {
	out := s.ActiveTasks[:0]
	for _, t := range s.ActiveTasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	s.ActiveTasks = out
}

// Session describes one orchestrator run against a parent issue.
type Session struct {
	ParentID     string        `json:"parent_id"`
	BackendTag   string        `json:"backend_tag"`
	WorktreePath string        `json:"worktree_path"`
	StartedAt    time.Time     `json:"started_at"`
	Status       SessionStatus `json:"status"`
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)
