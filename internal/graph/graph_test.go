package graph

import (
	"testing"

	"github.com/kylesnowschwartz/mobius/internal/model"
)

func TestBuildRejectsDuplicateID(t *testing.T) {
	_, err := Build("P-1", []model.SubTask{
		{ID: "a", Identifier: "ENG-1"},
		{ID: "a", Identifier: "ENG-2"},
	})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestBuildRejectsCycle(t *testing.T) {
	_, err := Build("P-1", []model.SubTask{
		{ID: "a", Identifier: "ENG-1", BlockedBy: []string{"b"}},
		{ID: "b", Identifier: "ENG-2", BlockedBy: []string{"a"}},
	})
	var cyc *ErrCycle
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !isCycleErr(err, &cyc) {
		t.Fatalf("expected *ErrCycle, got %T: %v", err, err)
	}
}

func isCycleErr(err error, target **ErrCycle) bool {
	if c, ok := err.(*ErrCycle); ok {
		*target = c
		return true
	}
	return false
}

// TestReadyFrontier exercises S3: T1 blocks T2. Initial frontier is
// [T1]; after T1 completes, T2 becomes ready.
func TestReadyFrontier(t *testing.T) {
	g, err := Build("P-1", []model.SubTask{
		{ID: "t1", Identifier: "ENG-1", Status: model.StatusPending},
		{ID: "t2", Identifier: "ENG-2", Status: model.StatusPending, BlockedBy: []string{"t1"}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ready := g.Ready()
	if len(ready) != 1 || ready[0].ID != "t1" {
		t.Fatalf("initial frontier = %+v, want [t1]", ready)
	}

	g2, err := g.UpdateStatus("t1", model.StatusDone)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	// g is untouched -- UpdateStatus is a pure transition.
	if len(g.Ready()) != 1 {
		t.Fatalf("original graph mutated by UpdateStatus")
	}

	ready2 := g2.Ready()
	if len(ready2) != 1 || ready2[0].ID != "t2" {
		t.Fatalf("frontier after t1 done = %+v, want [t2]", ready2)
	}
}

// TestReadyNeverReturnsBlockedTask is invariant 3 of §8: ready() never
// returns a task whose blocked_by contains a task not in done.
func TestReadyNeverReturnsBlockedTask(t *testing.T) {
	g, err := Build("P-1", []model.SubTask{
		{ID: "t1", Identifier: "ENG-1", Status: model.StatusInProgress},
		{ID: "t2", Identifier: "ENG-2", Status: model.StatusPending, BlockedBy: []string{"t1"}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, r := range g.Ready() {
		if r.ID == "t2" {
			t.Fatal("ready() returned t2 whose blocker t1 is not done")
		}
	}
}

func TestReadyDeterministicOrder(t *testing.T) {
	g, err := Build("P-1", []model.SubTask{
		{ID: "z", Identifier: "ENG-3", Status: model.StatusPending},
		{ID: "a", Identifier: "ENG-1", Status: model.StatusPending},
		{ID: "m", Identifier: "ENG-2", Status: model.StatusPending},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ready := g.Ready()
	want := []string{"ENG-1", "ENG-2", "ENG-3"}
	for i, w := range want {
		if ready[i].Identifier != w {
			t.Fatalf("ready[%d] = %q, want %q", i, ready[i].Identifier, w)
		}
	}
}

func TestStats(t *testing.T) {
	g, err := Build("P-1", []model.SubTask{
		{ID: "a", Identifier: "ENG-1", Status: model.StatusDone},
		{ID: "b", Identifier: "ENG-2", Status: model.StatusFailed},
		{ID: "c", Identifier: "ENG-3", Status: model.StatusPending},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	stats := g.Stats()
	if stats[model.StatusDone] != 1 || stats[model.StatusFailed] != 1 || stats[model.StatusPending] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}
