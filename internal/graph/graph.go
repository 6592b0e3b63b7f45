// Package graph builds and maintains the task graph described in §4.E:
// a DAG of sub-tasks derived from a backend's sub-task list, with a
// derived ready frontier recomputed from current statuses. The graph
// itself is two adjacency maps (id -> node, id -> blocked_by ids) per
// the design notes in §9 -- never object references -- so there is no
// ownership cycle to manage.
package graph

import (
	"sort"
	"strings"

	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/pkg/errors"
)

// ErrDuplicateID is returned by Build when two sub-tasks share an id.
var ErrDuplicateID = errors.New("graph: duplicate sub-task id")

// ErrCycle is returned by Build when the blocked_by relation contains a
// cycle. The error string names the cycle path for diagnostics (§4.E,
// §7 CycleDetected).
type ErrCycle struct {
	Path []string
}

func (e *ErrCycle) Error() string {
	return "graph: cycle detected: " + strings.Join(e.Path, " -> ")
}

// Graph is the in-memory task graph for one parent. Nodes is the
// ground truth; Ready/InProgress/Done/Failed are derived quick-access
// sets recomputed by recompute() after every status change.
type Graph struct {
	ParentID string
	Nodes    map[string]model.SubTask

	ready      map[string]struct{}
	inProgress map[string]struct{}
	done       map[string]struct{}
	failed     map[string]struct{}
}

// Build constructs a Graph from a flat sub-task list, rejecting
// duplicate identifiers and cycles in blocked_by (§4.E).
func Build(parentID string, subtasks []model.SubTask) (*Graph, error) {
	nodes := make(map[string]model.SubTask, len(subtasks))
	for _, st := range subtasks {
		if _, dup := nodes[st.ID]; dup {
			return nil, errors.Wrapf(ErrDuplicateID, "id %q", st.ID)
		}
		nodes[st.ID] = st
	}

	if path := findCycle(nodes); path != nil {
		return nil, &ErrCycle{Path: path}
	}

	g := &Graph{ParentID: parentID, Nodes: nodes}
	g.recompute()
	return g, nil
}

// findCycle runs a DFS over blocked_by edges, returning the cycle path
// if one is found, or nil if the graph is acyclic.
func findCycle(nodes map[string]model.SubTask) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	var path []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = gray
		path = append(path, id)
		for _, dep := range nodes[id].BlockedBy {
			if _, ok := nodes[dep]; !ok {
				continue // dangling reference; not this function's concern
			}
			switch color[dep] {
			case gray:
				// Found the cycle: slice path from dep's first occurrence.
				for i, p := range path {
					if p == dep {
						return append(append([]string{}, path[i:]...), dep)
					}
				}
				return append(path, dep)
			case white:
				if cyc := visit(dep); cyc != nil {
					return cyc
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return nil
	}

	ids := sortedKeys(nodes)
	for _, id := range ids {
		if color[id] == white {
			if cyc := visit(id); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

func sortedKeys(nodes map[string]model.SubTask) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// recompute rebuilds the derived quick-access sets from Nodes' current
// statuses. Called after Build and after every UpdateStatus.
func (g *Graph) recompute() {
	g.ready = make(map[string]struct{})
	g.inProgress = make(map[string]struct{})
	g.done = make(map[string]struct{})
	g.failed = make(map[string]struct{})

	for id, n := range g.Nodes {
		switch n.Status {
		case model.StatusDone:
			g.done[id] = struct{}{}
		case model.StatusFailed:
			g.failed[id] = struct{}{}
		case model.StatusInProgress:
			g.inProgress[id] = struct{}{}
		}
		if n.IsReady() && g.blockersDone(n) {
			g.ready[id] = struct{}{}
		}
	}
}

func (g *Graph) blockersDone(n model.SubTask) bool {
	for _, dep := range n.BlockedBy {
		depNode, ok := g.Nodes[dep]
		if !ok {
			continue // dangling reference treated as already satisfied
		}
		if depNode.Status != model.StatusDone {
			return false
		}
	}
	return true
}

// Ready returns the tasks eligible for immediate dispatch: status
// pending/ready and every blocked_by id done, in deterministic
// ascending-identifier order (§4.E).
func (g *Graph) Ready() []model.SubTask {
	ids := make([]string, 0, len(g.ready))
	for id := range g.ready {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return g.Nodes[ids[i]].Identifier < g.Nodes[ids[j]].Identifier
	})
	out := make([]model.SubTask, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.Nodes[id])
	}
	return out
}

// Clone returns a deep-enough copy of g: a fresh Nodes map so callers
// can apply UpdateStatus without mutating a graph another goroutine
// might still be reading.
func (g *Graph) Clone() *Graph {
	nodes := make(map[string]model.SubTask, len(g.Nodes))
	for id, n := range g.Nodes {
		cp := n
		cp.BlockedBy = append([]string(nil), n.BlockedBy...)
		cp.Blocks = append([]string(nil), n.Blocks...)
		nodes[id] = cp
	}
	cloned := &Graph{ParentID: g.ParentID, Nodes: nodes}
	cloned.recompute()
	return cloned
}

// UpdateStatus is a pure transition (§4.E): it returns a new Graph with
// id's status set to newStatus and the derived sets recomputed, leaving
// g untouched. If id moves into StatusDone, downstream tasks in Blocks
// may become ready on the returned graph's next Ready() call.
func (g *Graph) UpdateStatus(id string, newStatus model.Status) (*Graph, error) {
	if _, ok := g.Nodes[id]; !ok {
		return nil, errors.Errorf("graph: unknown task id %q", id)
	}
	next := g.Clone()
	n := next.Nodes[id]
	n.Status = newStatus
	next.Nodes[id] = n
	next.recompute()
	return next, nil
}

// Stats returns counts per internal status, for observers (§4.E).
func (g *Graph) Stats() map[model.Status]int {
	stats := map[model.Status]int{}
	for _, n := range g.Nodes {
		stats[n.Status]++
	}
	return stats
}

// InProgress, Done, and Failed mirror Ready's quick-access sets, each in
// ascending-identifier order.
func (g *Graph) InProgress() []model.SubTask { return g.collect(g.inProgress) }
func (g *Graph) Done() []model.SubTask       { return g.collect(g.done) }
func (g *Graph) Failed() []model.SubTask     { return g.collect(g.failed) }

func (g *Graph) collect(set map[string]struct{}) []model.SubTask {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return g.Nodes[ids[i]].Identifier < g.Nodes[ids[j]].Identifier
	})
	out := make([]model.SubTask, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.Nodes[id])
	}
	return out
}
