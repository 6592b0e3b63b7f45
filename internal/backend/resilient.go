package backend

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// errBackendUnavailable classifies the taxonomy's BackendUnavailable kind:
// it wraps every error returned through the breaker -- an open breaker
// that refused the call, or the wrapped adapter's own error. Per §7, the
// caller treats this as locally recoverable -- retry on the next poll
// iteration -- rather than surfacing it further.
type errBackendUnavailable struct{ cause error }

func (e *errBackendUnavailable) Error() string { return "backend unavailable: " + e.cause.Error() }
func (e *errBackendUnavailable) Unwrap() error { return e.cause }

// Resilient wraps an Adapter with a circuit breaker so that repeated
// BackendUnavailable failures (§7) open the breaker for a cooldown
// window instead of hammering a dead backend on every scheduler poll
// tick. Each adapter method call counts as one breaker request, and only
// a call that returns a non-nil error counts as a breaker failure: a
// failure reported with a nil error (Result.Success false, or
// VerifyResult.Verified false, as the linear and jira adapters report
// their HTTP failures for UpdateStatus, AddComment, CreateIssue and
// Verify) does not move the breaker.
type Resilient struct {
	inner Adapter
	cb    *gobreaker.CircuitBreaker[any]
}

// NewResilient wraps inner with a breaker that opens after 5 consecutive
// failures and allows one trial request after a 30s cooldown.
func NewResilient(inner Adapter) *Resilient {
	settings := gobreaker.Settings{
		Name:        "backend:" + inner.Tag(),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Resilient{inner: inner, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

func (r *Resilient) Tag() string { return r.inner.Tag() }

func (r *Resilient) FetchIssue(ctx context.Context, identifier string) (*Issue, error) {
	v, err := r.cb.Execute(func() (any, error) { return r.inner.FetchIssue(ctx, identifier) })
	if err != nil {
		return nil, wrapBreakerErr(err)
	}
	issue, _ := v.(*Issue)
	return issue, nil
}

func (r *Resilient) FetchSubtasks(ctx context.Context, parentID string) ([]Issue, error) {
	v, err := r.cb.Execute(func() (any, error) { return r.inner.FetchSubtasks(ctx, parentID) })
	if err != nil {
		return nil, wrapBreakerErr(err)
	}
	issues, _ := v.([]Issue)
	return issues, nil
}

func (r *Resilient) UpdateStatus(ctx context.Context, id, targetStatus string) (Result, error) {
	v, err := r.cb.Execute(func() (any, error) { return r.inner.UpdateStatus(ctx, id, targetStatus) })
	if err != nil {
		return Result{Success: false, Error: err.Error()}, wrapBreakerErr(err)
	}
	res, _ := v.(Result)
	return res, nil
}

func (r *Resilient) AddComment(ctx context.Context, id, body string) (Result, error) {
	v, err := r.cb.Execute(func() (any, error) { return r.inner.AddComment(ctx, id, body) })
	if err != nil {
		return Result{Success: false, Error: err.Error()}, wrapBreakerErr(err)
	}
	res, _ := v.(Result)
	return res, nil
}

func (r *Resilient) CreateIssue(ctx context.Context, input CreateInput) (Issue, Result, error) {
	type pair struct {
		issue  Issue
		result Result
	}
	v, err := r.cb.Execute(func() (any, error) {
		issue, result, innerErr := r.inner.CreateIssue(ctx, input)
		return pair{issue, result}, innerErr
	})
	if err != nil {
		return Issue{}, Result{Success: false, Error: err.Error()}, wrapBreakerErr(err)
	}
	p, _ := v.(pair)
	return p.issue, p.result, nil
}

func (r *Resilient) Verify(ctx context.Context, identifier string) (VerifyResult, error) {
	v, err := r.cb.Execute(func() (any, error) { return r.inner.Verify(ctx, identifier) })
	if err != nil {
		return VerifyResult{Verified: false, Error: err.Error()}, wrapBreakerErr(err)
	}
	res, _ := v.(VerifyResult)
	return res, nil
}

func wrapBreakerErr(err error) error {
	return &errBackendUnavailable{cause: err}
}
