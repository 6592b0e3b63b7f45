package model

import "testing"

func TestDedupKeyVariesByTaskAndTransition(t *testing.T) {
	a := NewStatusChange("ENG-413", StatusPending, StatusInProgress)
	b := NewStatusChange("ENG-413", StatusPending, StatusInProgress)
	c := NewStatusChange("ENG-413", StatusInProgress, StatusDone)
	d := NewStatusChange("ENG-999", StatusPending, StatusInProgress)

	if a.DedupKey() != b.DedupKey() {
		t.Errorf("identical StatusChange updates should share a dedup key")
	}
	if a.DedupKey() == c.DedupKey() {
		t.Errorf("different transitions should not share a dedup key")
	}
	if a.DedupKey() == d.DedupKey() {
		t.Errorf("different tasks should not share a dedup key")
	}
	if a.ID == b.ID {
		t.Errorf("constructors must assign fresh ids even for semantically identical updates")
	}
}

func TestDedupKeyPerVariant(t *testing.T) {
	comment1 := NewAddComment("T1", "done")
	comment2 := NewAddComment("T1", "done")
	comment3 := NewAddComment("T1", "different")
	if comment1.DedupKey() != comment2.DedupKey() || comment1.DedupKey() == comment3.DedupKey() {
		t.Errorf("AddComment dedup key must be keyed on (task_id, body)")
	}

	label1 := NewAddLabel("T1", "needs-review")
	label2 := NewRemoveLabel("T1", "needs-review")
	if label1.DedupKey() == label2.DedupKey() {
		t.Errorf("AddLabel and RemoveLabel must not collide even with identical (task, label)")
	}

	create1 := NewCreateSubtask("P1", "Title", "Desc", []string{"T1"})
	create2 := NewCreateSubtask("P1", "Title", "Desc", []string{"T2"})
	if create1.DedupKey() != create2.DedupKey() {
		t.Errorf("CreateSubtask dedup key must ignore blocked_by per §4.C")
	}
}

func TestUnsynced(t *testing.T) {
	u := NewAddComment("T1", "x")
	if !u.Unsynced() {
		t.Fatal("fresh update should be unsynced")
	}
	synced := now()
	u.SyncedAt = &synced
	if u.Unsynced() {
		t.Fatal("update with SyncedAt set should not be unsynced")
	}

	u2 := NewAddComment("T1", "y")
	u2.Error = "boom"
	if u2.Unsynced() {
		t.Fatal("update with Error set should not be unsynced")
	}
}

func TestPendingQueueValidateDetectsDuplicateIDs(t *testing.T) {
	u := NewAddComment("T1", "x")
	q := PendingQueue{Updates: []PendingUpdate{u, u}}
	if err := q.Validate(); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestMapBackendStatus(t *testing.T) {
	cases := map[string]Status{
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
		"Something Unrecognized": StatusPending,
	}
	for in, want := range cases {
		if got := MapBackendStatus(in); got != want {
			t.Errorf("MapBackendStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
