// Package watcher implements the runtime-state file observer of §4.K:
// a fsnotify watch on runtime.json with fast-path/debounce coalescing,
// grounded on the teacher's sessionWatcher (root watcher.go) debounce
// pattern -- a single goroutine owns all mutable state, timer callbacks
// only send a signal, never touch data directly.
package watcher

import (
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kylesnowschwartz/mobius/internal/layout"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/kylesnowschwartz/mobius/internal/runtimestate"
	"github.com/sirupsen/logrus"
)

// debounceInterval is the settle time for the non-fast-path per §4.K.
const debounceInterval = 150 * time.Millisecond

// Callback receives the latest observed state. state is nil when the
// runtime-state file is missing.
type Callback func(state *model.RuntimeState)

// Cancel stops a Watch call's goroutine and releases its fsnotify
// handle.
type Cancel func()

// Watch observes the runtime-state file for parentID under repoRoot and
// invokes callback per the fast-path/debounce rules of §4.K. Returns a
// Cancel func; the caller must call it to avoid leaking the watcher
// goroutine.
func Watch(repoRoot, parentID string, log *logrus.Entry, callback Callback) (Cancel, error) {
	paths := layout.New(repoRoot, parentID)
	store := runtimestate.New(repoRoot, parentID, log)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the containing directory rather than the file itself: the
	// file may not exist yet at Watch time (session not yet
	// initialized), and atomic rename-based writes (internal/atomicio)
	// replace the inode, which some platforms report against the
	// directory, not the old file handle.
	if err := os.MkdirAll(paths.ExecutionDir(), 0o755); err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(paths.ExecutionDir()); err != nil {
		fw.Close()
		return nil, err
	}

	w := &watcher{
		path:     paths.RuntimeJSONPath(),
		store:    store,
		callback: callback,
		fw:       fw,
		done:     make(chan struct{}),
		signals:  make(chan struct{}, 1),
	}
	w.last = w.read()

	go w.run()

	return func() {
		close(w.done)
	}, nil
}

type watcher struct {
	path     string
	store    *runtimestate.Store
	callback Callback

	fw      *fsnotify.Watcher
	done    chan struct{}
	signals chan struct{}

	mu       sync.Mutex
	debounce *time.Timer

	last *model.RuntimeState // only touched by run()
}

func (w *watcher) sendSignal() {
	select {
	case w.signals <- struct{}{}:
	default:
	}
}

func (w *watcher) run() {
	defer w.fw.Close()
	defer func() {
		w.mu.Lock()
		if w.debounce != nil {
			w.debounce.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-w.done:
			return

		case <-w.signals:
			w.evaluate()

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			current := w.read()
			if introducesNewActiveTask(w.last, current) {
				// Fast path: fire immediately, cancel any pending debounce.
				w.mu.Lock()
				if w.debounce != nil {
					w.debounce.Stop()
					w.debounce = nil
				}
				w.mu.Unlock()
				w.last = current
				w.callback(current)
				continue
			}

			w.mu.Lock()
			if w.debounce != nil {
				w.debounce.Stop()
			}
			w.debounce = time.AfterFunc(debounceInterval, w.sendSignal)
			w.mu.Unlock()

		case _, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			// Non-fatal: the next successful read still drives callbacks.
		}
	}
}

// evaluate re-reads the file on debounce expiry and fires the callback
// only if content changed ignoring UpdatedAt (§4.K).
func (w *watcher) evaluate() {
	current := w.read()
	if !equalIgnoringUpdatedAt(w.last, current) {
		w.last = current
		w.callback(current)
	}
}

func (w *watcher) read() *model.RuntimeState {
	s := w.store.Read()
	if s.ParentID == "" && s.StartedAt.IsZero() {
		return nil
	}
	return &s
}

// introducesNewActiveTask reports whether next has at least one active
// task id absent from prev (§4.K fast path).
func introducesNewActiveTask(prev, next *model.RuntimeState) bool {
	if next == nil {
		return false
	}
	seen := map[string]struct{}{}
	if prev != nil {
		for _, t := range prev.ActiveTasks {
			seen[t.ID] = struct{}{}
		}
	}
	for _, t := range next.ActiveTasks {
		if _, ok := seen[t.ID]; !ok {
			return true
		}
	}
	return false
}

// equalIgnoringUpdatedAt implements §4.K's comparison rule: active-task
// set by (id, started_at); completed/failed by id; backend-statuses by
// (id, status).
func equalIgnoringUpdatedAt(prev, next *model.RuntimeState) bool {
	if prev == nil || next == nil {
		return prev == next
	}
	return activeSetEqual(prev.ActiveTasks, next.ActiveTasks) &&
		idSetEqual(completedIDs(prev.CompletedTasks), completedIDs(next.CompletedTasks)) &&
		idSetEqual(failedIDs(prev.FailedTasks), failedIDs(next.FailedTasks)) &&
		backendStatusesEqual(prev.BackendStatuses, next.BackendStatuses)
}

type activeKey struct {
	id        string
	startedAt int64
}

func activeSetEqual(a, b []model.RuntimeActiveTask) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[activeKey]struct{}, len(a))
	for _, t := range a {
		set[activeKey{t.ID, t.StartedAt.UnixNano()}] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[activeKey{t.ID, t.StartedAt.UnixNano()}]; !ok {
			return false
		}
	}
	return true
}

func completedIDs(tasks []model.RuntimeCompletedTask) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func failedIDs(tasks []model.RuntimeFailedTask) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

func idSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

type statusKey struct {
	id     string
	status model.Status
}

func backendStatusesEqual(a, b map[string]model.BackendStatusRecord) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[statusKey]struct{}, len(a))
	for id, rec := range a {
		set[statusKey{id, rec.Status}] = struct{}{}
	}
	for id, rec := range b {
		if _, ok := set[statusKey{id, rec.Status}]; !ok {
			return false
		}
	}
	return true
}
