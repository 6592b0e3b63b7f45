// Package tracker implements the execution tracker of §4.I: per-task
// attempt counts, backend verification, and the retry/permanent-failure
// decision every agent outcome must pass through before the scheduler
// advances the graph.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/protocol"
)

// ExecutionResult is the scheduler's view of one agent's classified
// outcome (§4.H): a success flag, the protocol outcome tag, how long
// the attempt ran, and an error string for terminal-failure reporting.
type ExecutionResult struct {
	TaskID     string
	Identifier string // backend identifier, used for Verify calls
	Success    bool
	Outcome    protocol.Outcome
	Duration   time.Duration
	Error      string
}

// attemptRecord is the per-task state the tracker maintains across the
// scheduler's lifetime.
type attemptRecord struct {
	attempts   int
	lastResult ExecutionResult
}

// VerifiedResult is the tracker's final verdict for one task's attempt:
// whether the backend agrees the task completed, and whether the
// scheduler should retry it.
type VerifiedResult struct {
	TaskID          string
	Success         bool
	LinearVerified  bool
	ShouldRetry     bool
	VerifiedStatus  model.Status
	LastError       string
}

// Tracker maps task id to attempt history. Safe for concurrent use --
// a mutex guards the attempt counts. ProcessResults itself verifies its
// results one at a time, in order, on the caller's goroutine.
type Tracker struct {
	mu         sync.Mutex
	attempts   map[string]*attemptRecord
	maxRetries int
	verifyTimeout time.Duration
}

// New returns a Tracker that permits maxRetries retries per task before
// a permanent failure, and bounds each verification call to
// verifyTimeout (§4.I).
func New(maxRetries int, verifyTimeout time.Duration) *Tracker {
	return &Tracker{
		attempts:      make(map[string]*attemptRecord),
		maxRetries:    maxRetries,
		verifyTimeout: verifyTimeout,
	}
}

// recordAttempt increments and returns the attempt count for taskID.
func (t *Tracker) recordAttempt(taskID string, result ExecutionResult) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.attempts[taskID]
	if !ok {
		rec = &attemptRecord{}
		t.attempts[taskID] = rec
	}
	rec.attempts++
	rec.lastResult = result
	return rec.attempts
}

// Attempts returns the current attempt count for taskID (0 if never
// attempted).
func (t *Tracker) Attempts(taskID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.attempts[taskID]; ok {
		return rec.attempts
	}
	return 0
}

// ProcessResults verifies every result against adapter and yields the
// tracker's verdict for each (§4.I). A result is LinearVerified iff the
// adapter's verification call returns a mapped status in
// {done, in_progress} -- the latter because the backend advances to
// in-progress after implementation even before the parent marks it
// done. An unverified success is downgraded to Success=false with
// ShouldRetry = attempts <= maxRetries; once attempts exceeds
// maxRetries, ShouldRetry flips to false, materializing a permanent
// failure. Verification has a per-call timeout (verifyTimeout); a
// timeout takes the same downgrade path as a verification mismatch.
func (t *Tracker) ProcessResults(ctx context.Context, results []ExecutionResult, adapter backend.Adapter) []VerifiedResult {
	out := make([]VerifiedResult, 0, len(results))
	for _, r := range results {
		out = append(out, t.processOne(ctx, r, adapter))
	}
	return out
}

func (t *Tracker) processOne(ctx context.Context, r ExecutionResult, adapter backend.Adapter) VerifiedResult {
	attempts := t.recordAttempt(r.TaskID, r)

	if !r.Success {
		return VerifiedResult{
			TaskID:      r.TaskID,
			Success:     false,
			ShouldRetry: attempts <= t.maxRetries,
			LastError:   r.Error,
		}
	}

	vctx := ctx
	var cancel context.CancelFunc
	if t.verifyTimeout > 0 {
		vctx, cancel = context.WithTimeout(ctx, t.verifyTimeout)
		defer cancel()
	}

	verify, err := adapter.Verify(vctx, r.Identifier)
	verified := err == nil && verify.Verified
	var mapped model.Status
	if verified {
		mapped = model.MapBackendStatus(verify.Status)
		verified = mapped == model.StatusDone || mapped == model.StatusInProgress
	}

	if verified {
		return VerifiedResult{
			TaskID:         r.TaskID,
			Success:        true,
			LinearVerified: true,
			VerifiedStatus: mapped,
		}
	}

	lastErr := r.Error
	if err != nil {
		lastErr = err.Error()
	} else if verify.Error != "" {
		lastErr = verify.Error
	}

	return VerifiedResult{
		TaskID:      r.TaskID,
		Success:     false,
		ShouldRetry: attempts <= t.maxRetries,
		LastError:   lastErr,
	}
}
