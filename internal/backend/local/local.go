// Package local implements backend.Adapter against the on-disk model
// only. It is the reference implementation named in §4.J: no network
// failure modes, used for local-only projects and for exercising the
// rest of the orchestrator in tests without a real Linear/Jira account.
package local

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/kylesnowschwartz/mobius/internal/atomicio"
	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/kylesnowschwartz/mobius/internal/layout"
)

// counterFile is the shape of issues/counter.json (§6).
type counterFile struct {
	Next uint64 `json:"next"`
}

func (c counterFile) Validate() error { return nil }

// record is the on-disk shape of one locally-tracked issue.
type record struct {
	Issue backend.Issue
}

// Adapter is the local, file-backed backend.Adapter. Safe for
// concurrent use: a mutex serializes access to the in-memory index,
// matching the single-threaded control-plane model of §5 (the local
// backend never itself blocks on another process's lock).
type Adapter struct {
	mu     sync.Mutex
	root   string
	issues map[string]backend.Issue // keyed by identifier
}

// New returns a local adapter rooted at repoRoot (the directory
// containing .mobius).
func New(repoRoot string) *Adapter {
	return &Adapter{root: repoRoot, issues: make(map[string]backend.Issue)}
}

// Seed preloads issues, e.g. when a caller has already read
// parent.json/tasks/*.json into memory. Primarily used by tests and by
// the orchestrator's initial graph-build step.
func (a *Adapter) Seed(issues []backend.Issue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, iss := range issues {
		a.issues[iss.Identifier] = iss
	}
}

func (a *Adapter) Tag() string { return "local" }

func (a *Adapter) FetchIssue(_ context.Context, identifier string) (*backend.Issue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	iss, ok := a.issues[identifier]
	if !ok {
		return nil, nil
	}
	cp := iss
	return &cp, nil
}

func (a *Adapter) FetchSubtasks(_ context.Context, parentID string) ([]backend.Issue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	parent, ok := a.issues[parentID]
	if !ok {
		return nil, nil
	}
	var out []backend.Issue
	for _, iss := range a.issues {
		if iss.Identifier != parent.Identifier && isChildOf(iss, parent.Identifier) {
			out = append(out, iss)
		}
	}
	return out, nil
}

// isChildOf is a placeholder relation: in the local store, sub-tasks are
// those whose Identifier starts with the parent's identifier, as
// CreateIssue builds them (parent id + "-" + a number from nextID's
// repo-wide counter); the orchestrator itself tracks the real
// parent/child edges via the task graph, so this only needs to be
// good enough to support FetchSubtasks in tests and single-process use.
func isChildOf(child backend.Issue, parentIdentifier string) bool {
	return len(child.Identifier) > len(parentIdentifier) &&
		child.Identifier[:len(parentIdentifier)] == parentIdentifier
}

func (a *Adapter) UpdateStatus(_ context.Context, id, targetStatus string) (backend.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	iss, ok := a.lookupByID(id)
	if !ok {
		return backend.Result{Success: false, Error: fmt.Sprintf("local: unknown issue %q", id)}, nil
	}
	iss.Status = targetStatus
	a.issues[iss.Identifier] = iss
	return backend.Result{Success: true, ID: iss.ID, Identifier: iss.Identifier}, nil
}

func (a *Adapter) AddComment(_ context.Context, id, _ string) (backend.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	iss, ok := a.lookupByID(id)
	if !ok {
		return backend.Result{Success: false, Error: fmt.Sprintf("local: unknown issue %q", id)}, nil
	}
	return backend.Result{Success: true, ID: iss.ID, Identifier: iss.Identifier}, nil
}

func (a *Adapter) CreateIssue(_ context.Context, input backend.CreateInput) (backend.Issue, backend.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, err := a.nextID()
	if err != nil {
		return backend.Issue{}, backend.Result{Success: false, Error: err.Error()}, nil
	}
	identifier := input.ParentID + "-" + strconv.FormatUint(next, 10)
	iss := backend.Issue{
		ID:          identifier,
		Identifier:  identifier,
		Title:       input.Title,
		Description: input.Description,
		Status:      "Backlog",
		BlockedBy:   input.BlockedBy,
	}
	a.issues[identifier] = iss
	return iss, backend.Result{Success: true, ID: iss.ID, Identifier: iss.Identifier}, nil
}

func (a *Adapter) Verify(_ context.Context, identifier string) (backend.VerifyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	iss, ok := a.issues[identifier]
	if !ok {
		return backend.VerifyResult{Verified: false, Error: "unknown identifier"}, nil
	}
	return backend.VerifyResult{Verified: true, Status: iss.Status}, nil
}

func (a *Adapter) lookupByID(id string) (backend.Issue, bool) {
	for _, iss := range a.issues {
		if iss.ID == id || iss.Identifier == id {
			return iss, true
		}
	}
	return backend.Issue{}, false
}

// nextID allocates from the repo-local counter file, matching §6's
// issues/counter.json layout. Locked by the caller's a.mu, not a file
// lock -- the local adapter never shares its counter file across
// processes at the speeds the rest of the system needs, and the repo
// root's own .mobius/issues/counter.json path is available for any
// caller wanting file-level sharing in a single-writer setup.
func (a *Adapter) nextID() (uint64, error) {
	p := layout.New(a.root, "").CounterPath()
	var cf counterFile
	_ = atomicio.ReadValidated(p, &cf, nil)
	if cf.Next == 0 {
		cf.Next = 1
	}
	n := cf.Next
	cf.Next++
	if err := atomicio.WriteJSON(p, cf); err != nil {
		return 0, err
	}
	return n, nil
}

var _ backend.Adapter = (*Adapter)(nil)
