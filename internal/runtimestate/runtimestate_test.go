package runtimestate

import (
	"testing"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/outbox"
)

// TestInitializeRecoversFromOutbox exercises S6 and §8 invariant 4:
// initialize_runtime is total over the outbox -- every synced
// StatusChange whose newest status maps to done ends up in
// CompletedTasks.
func TestInitializeRecoversFromOutbox(t *testing.T) {
	root := t.TempDir()
	ob := outbox.New(root, "P-1", nil)

	synced := func(u model.PendingUpdate) model.PendingUpdate {
		ts := time.Now()
		u.SyncedAt = &ts
		return u
	}

	// t1: pending -> in_progress -> done, all synced. Only the latest
	// (done) should determine recovery.
	u1 := synced(model.NewStatusChange("t1", model.StatusPending, model.StatusInProgress))
	writeDirectly(t, ob, u1)
	time.Sleep(time.Millisecond)
	u2 := synced(model.NewStatusChange("t1", model.StatusInProgress, model.StatusDone))
	writeDirectly(t, ob, u2)

	// t2: synced but still in_progress -- not completed.
	u3 := synced(model.NewStatusChange("t2", model.StatusPending, model.StatusInProgress))
	writeDirectly(t, ob, u3)

	state, err := Initialize(root, "P-1", "Parent", 2, 12345, ob, nil)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !state.IsCompleted("t1") {
		t.Fatal("expected t1 in CompletedTasks")
	}
	if state.IsCompleted("t2") {
		t.Fatal("t2 should not be completed (latest synced status is in_progress)")
	}
	if state.BackendStatuses["t1"].Status != model.StatusDone {
		t.Fatalf("t1 backend status = %+v", state.BackendStatuses["t1"])
	}
	if state.BackendStatuses["t2"].Status != model.StatusInProgress {
		t.Fatalf("t2 backend status = %+v", state.BackendStatuses["t2"])
	}
}

// writeDirectly seeds the outbox with an already-synced update. Queue()
// only dedupes unsynced entries, so a synced update always appends,
// giving tests direct control over the fixture.
func writeDirectly(t *testing.T, ob *outbox.Outbox, u model.PendingUpdate) {
	t.Helper()
	if _, err := ob.Queue(u); err != nil {
		t.Fatalf("seed queue: %v", err)
	}
}

func TestCompleteTaskIdempotent(t *testing.T) {
	root := t.TempDir()
	s := New(root, "P-1", nil)

	started := time.Now().Add(-time.Second)
	if _, err := s.WithStateSync(AddActive(model.RuntimeActiveTask{ID: "t1", StartedAt: started})); err != nil {
		t.Fatalf("AddActive: %v", err)
	}

	state, err := s.WithStateSync(CompleteTask("t1"))
	if err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if !state.IsCompleted("t1") {
		t.Fatal("expected t1 completed")
	}
	if state.FindActive("t1") != nil {
		t.Fatal("expected t1 removed from ActiveTasks")
	}
	firstDuration := state.CompletedTasks[0].DurationMs

	// Calling again is a no-op -- same duration, no duplicate entry.
	state2, err := s.WithStateSync(CompleteTask("t1"))
	if err != nil {
		t.Fatalf("CompleteTask (2nd): %v", err)
	}
	if len(state2.CompletedTasks) != 1 {
		t.Fatalf("expected 1 completed task, got %d", len(state2.CompletedTasks))
	}
	if state2.CompletedTasks[0].DurationMs != firstDuration {
		t.Fatalf("duration changed on idempotent replay: %d vs %d", state2.CompletedTasks[0].DurationMs, firstDuration)
	}
}

// TestActiveCompletedFailedDisjoint is §8 invariant 1.
func TestActiveCompletedFailedDisjoint(t *testing.T) {
	root := t.TempDir()
	s := New(root, "P-1", nil)

	if _, err := s.WithStateSync(AddActive(model.RuntimeActiveTask{ID: "t1", StartedAt: time.Now()})); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WithStateSync(AddActive(model.RuntimeActiveTask{ID: "t2", StartedAt: time.Now()})); err != nil {
		t.Fatal(err)
	}
	if _, err := s.WithStateSync(CompleteTask("t1")); err != nil {
		t.Fatal(err)
	}
	state, err := s.WithStateSync(FailTask("t2"))
	if err != nil {
		t.Fatal(err)
	}
	state, err = s.WithStateSync(RemoveActive("t2"))
	if err != nil {
		t.Fatal(err)
	}

	for _, c := range state.CompletedTasks {
		for _, f := range state.FailedTasks {
			if c.ID == f.ID {
				t.Fatalf("task %q in both completed and failed", c.ID)
			}
		}
	}
	for _, a := range state.ActiveTasks {
		if state.IsCompleted(a.ID) || state.IsFailed(a.ID) {
			t.Fatalf("task %q active and terminal simultaneously", a.ID)
		}
	}
}
