// Package runtimestate implements the durable runtime-state store of
// §4.D: the crash-safe, lock-guarded record of active/completed/failed
// tasks for one parent's execution session. Every mutation flows
// through WithStateSync, never an in-place edit, so a reader never
// observes a partially-applied transition.
package runtimestate

import (
	"time"

	"github.com/kylesnowschwartz/mobius/internal/atomicio"
	"github.com/kylesnowschwartz/mobius/internal/layout"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/outbox"
	"github.com/sirupsen/logrus"
)

// Store is the lock-guarded runtime-state accessor for one parent.
type Store struct {
	paths layout.Paths
	log   *logrus.Entry
}

// New returns a Store for parentID, rooted at repoRoot.
func New(repoRoot, parentID string, log *logrus.Entry) *Store {
	return &Store{paths: layout.New(repoRoot, parentID), log: log}
}

// Read loads the current state without taking the lock -- used by
// read-only observers (the watcher, `mobius status`) that tolerate a
// torn read racing a concurrent writer's atomic rename (they simply see
// the old or new value, never a partial one, per §4.B).
func (s *Store) Read() model.RuntimeState {
	var v stateValidator
	atomicio.ReadValidated(s.paths.RuntimeJSONPath(), &v, s.log)
	return model.RuntimeState(v)
}

// stateValidator wraps RuntimeState so it satisfies atomicio.Validator;
// RuntimeState has no invariant beyond what its field types already
// enforce, so Validate always succeeds -- a malformed file fails at the
// JSON-decode step instead, which ReadValidated already treats as
// DurableCorruption (§7).
type stateValidator model.RuntimeState

func (stateValidator) Validate() error { return nil }

// Initialize creates the runtime-state file at session start (§4.D). It
// consults the outbox and, for every synced StatusChange, records the
// most-recent synced status in BackendStatuses and adds the task to
// CompletedTasks iff the mapped status is done. This is what makes
// crash recovery total (§8 invariant 4): restart recovers progress from
// the durable outbox, never the in-memory scheduler state.
func Initialize(repoRoot, parentID, parentTitle string, totalTasks, loopPID int, ob *outbox.Outbox, log *logrus.Entry) (model.RuntimeState, error) {
	s := New(repoRoot, parentID, log)

	now := timeNow()
	state := model.RuntimeState{
		ParentID:        parentID,
		ParentTitle:     parentTitle,
		StartedAt:       now,
		UpdatedAt:       now,
		LoopPID:         loopPID,
		TotalTasks:      totalTasks,
		BackendStatuses: make(map[string]model.BackendStatusRecord),
	}

	latestSynced := make(map[string]model.PendingUpdate) // task_id -> most recent synced StatusChange
	for _, u := range ob.Read().Updates {
		if u.Kind != model.KindStatusChange || u.SyncedAt == nil {
			continue
		}
		prev, ok := latestSynced[u.TaskID]
		if !ok || u.SyncedAt.After(*prev.SyncedAt) {
			latestSynced[u.TaskID] = u
		}
	}

	for taskID, u := range latestSynced {
		state.BackendStatuses[taskID] = model.BackendStatusRecord{Status: u.NewStatus, SyncedAt: *u.SyncedAt}
		if u.NewStatus == model.StatusDone {
			state.CompletedTasks = append(state.CompletedTasks, model.RuntimeCompletedTask{
				ID:          taskID,
				CompletedAt: *u.SyncedAt,
			})
		}
	}

	if err := atomicio.WriteJSON(s.paths.RuntimeJSONPath(), state); err != nil {
		return model.RuntimeState{}, err
	}
	return state, nil
}

// Mutator is a pure function applied to the current state under lock.
type Mutator func(model.RuntimeState) model.RuntimeState

// WithStateSync acquires the runtime-state advisory lock, reads the
// current state, applies mutator, refreshes UpdatedAt, writes
// atomically, and releases the lock (§4.D steps 1-5).
func (s *Store) WithStateSync(mutator Mutator) (model.RuntimeState, error) {
	lock, err := atomicio.Acquire(s.paths.RuntimeLockPath())
	if err != nil {
		return model.RuntimeState{}, err
	}
	defer lock.Release()

	current := s.Read()
	if s.log != nil {
		s.log.WithField("parent_id", s.paths.ParentDir()).Debug("runtimestate: observed state before mutation")
	}

	next := mutator(current)
	next.UpdatedAt = timeNow()

	if err := atomicio.WriteJSON(s.paths.RuntimeJSONPath(), next); err != nil {
		return model.RuntimeState{}, err
	}
	return next, nil
}

// timeNow is a seam for deterministic tests.
var timeNow = time.Now

// AddActive appends an active task entry.
func AddActive(t model.RuntimeActiveTask) Mutator {
	return func(s model.RuntimeState) model.RuntimeState {
		s.AddActive(t)
		return s
	}
}

// UpdatePane updates the pane identifier of an already-active task. A
// no-op if id is not currently active.
func UpdatePane(id, paneID string) Mutator {
	return func(s model.RuntimeState) model.RuntimeState {
		if a := s.FindActive(id); a != nil {
			a.PaneID = paneID
		}
		return s
	}
}

// CompleteTask moves id from ActiveTasks to CompletedTasks, computing
// duration from the active task's StartedAt. Idempotent: a no-op if id
// is already in CompletedTasks (§4.D).
func CompleteTask(id string) Mutator {
	return func(s model.RuntimeState) model.RuntimeState {
		if s.IsCompleted(id) {
			return s
		}
		var duration int64
		if a := s.FindActive(id); a != nil {
			duration = timeNow().Sub(a.StartedAt).Milliseconds()
		}
		s.CompletedTasks = append(s.CompletedTasks, model.RuntimeCompletedTask{
			ID:          id,
			CompletedAt: timeNow(),
			DurationMs:  duration,
		})
		s.RemoveActive(id)
		return s
	}
}

// FailTask moves id from ActiveTasks to FailedTasks, computing duration
// from the active task's StartedAt. Idempotent: a no-op if id is
// already in FailedTasks (§4.D). Unlike CompleteTask, a permanently
// failed task is not removed from ActiveTasks by this mutator alone --
// callers compose FailTask with RemoveActive, matching the scheduler's
// explicit removal step in §4.H.
func FailTask(id string) Mutator {
	return func(s model.RuntimeState) model.RuntimeState {
		if s.IsFailed(id) {
			return s
		}
		var duration int64
		if a := s.FindActive(id); a != nil {
			duration = timeNow().Sub(a.StartedAt).Milliseconds()
		}
		s.FailedTasks = append(s.FailedTasks, model.RuntimeFailedTask{
			ID:          id,
			CompletedAt: timeNow(),
			DurationMs:  duration,
		})
		return s
	}
}

// RemoveActive drops id from ActiveTasks without recording a terminal
// outcome -- used on cancellation (§5) so a subsequent resume
// recomputes the frontier correctly.
func RemoveActive(id string) Mutator {
	return func(s model.RuntimeState) model.RuntimeState {
		s.RemoveActive(id)
		return s
	}
}

// ClearActive empties ActiveTasks entirely.
func ClearActive() Mutator {
	return func(s model.RuntimeState) model.RuntimeState {
		s.ActiveTasks = nil
		return s
	}
}

// SetBackendStatus records the latest known backend status for a task,
// used after a successful push+verify cycle.
func SetBackendStatus(taskID string, status model.Status, syncedAt time.Time) Mutator {
	return func(s model.RuntimeState) model.RuntimeState {
		if s.BackendStatuses == nil {
			s.BackendStatuses = make(map[string]model.BackendStatusRecord)
		}
		s.BackendStatuses[taskID] = model.BackendStatusRecord{Status: status, SyncedAt: syncedAt}
		return s
	}
}
