package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/kylesnowschwartz/mobius/internal/backend/local"
	"github.com/kylesnowschwartz/mobius/internal/protocol"
)

// TestVerifiedSuccess exercises S1: the agent reports success and the
// backend agrees (status mapped to in_progress counts as verified,
// since the backend advances to in-progress before the parent marks
// done).
func TestVerifiedSuccess(t *testing.T) {
	root := t.TempDir()
	adapter := local.New(root)
	adapter.Seed([]backend.Issue{{ID: "t1", Identifier: "t1", Status: "In Progress"}})

	tr := New(2, time.Second)
	results := tr.ProcessResults(context.Background(), []ExecutionResult{
		{TaskID: "t1", Identifier: "t1", Success: true, Outcome: protocol.OutcomeSuccess},
	}, adapter)

	if len(results) != 1 || !results[0].Success || !results[0].LinearVerified {
		t.Fatalf("got %+v", results)
	}
}

// TestUnverifiedSuccessDowngrades exercises S2: the agent says success
// but the push never happened, so the backend still shows the old
// status. The result downgrades to failure with ShouldRetry=true while
// attempts remain.
func TestUnverifiedSuccessDowngrades(t *testing.T) {
	root := t.TempDir()
	adapter := local.New(root)
	adapter.Seed([]backend.Issue{{ID: "t1", Identifier: "t1", Status: "Backlog"}})

	tr := New(2, time.Second)
	result := tr.ProcessResults(context.Background(), []ExecutionResult{
		{TaskID: "t1", Identifier: "t1", Success: true, Outcome: protocol.OutcomeSuccess},
	}, adapter)[0]

	if result.Success || !result.ShouldRetry || result.LinearVerified {
		t.Fatalf("got %+v", result)
	}
}

func TestPermanentFailureAfterMaxRetries(t *testing.T) {
	root := t.TempDir()
	adapter := local.New(root)
	adapter.Seed([]backend.Issue{{ID: "t1", Identifier: "t1", Status: "Backlog"}})

	tr := New(1, time.Second) // maxRetries=1: attempt 1 is retry-eligible, 2 and 3 are not
	var last VerifiedResult
	for i := 0; i < 3; i++ {
		last = tr.ProcessResults(context.Background(), []ExecutionResult{
			{TaskID: "t1", Identifier: "t1", Success: false, Error: "boom"},
		}, adapter)[0]
	}
	if last.ShouldRetry {
		t.Fatalf("expected permanent failure after max retries, got %+v", last)
	}
	if tr.Attempts("t1") != 3 {
		t.Fatalf("Attempts = %d, want 3", tr.Attempts("t1"))
	}
}

func TestFailureResultNeverCallsVerify(t *testing.T) {
	// A failed outcome should not consult the backend at all -- only
	// successes are verified (§4.I). Verify on the unseeded adapter would
	// report "unknown identifier", replacing the agent's error in LastError.
	root := t.TempDir()
	adapter := local.New(root) // no issues seeded; Verify would report unknown

	tr := New(2, time.Second)
	result := tr.ProcessResults(context.Background(), []ExecutionResult{
		{TaskID: "t1", Identifier: "t1", Success: false, Error: "verification failed"},
	}, adapter)[0]

	if result.Success || !result.ShouldRetry || result.LastError != "verification failed" {
		t.Fatalf("got %+v", result)
	}
}
