// Package outbox implements the pending-updates write-ahead queue
// described in §4.C: every backend mutation is queued durably before
// it is attempted, de-duplicated among unsynced entries, and pushed
// strictly FIFO per parent so a crash between queue and push never
// loses an update.
package outbox

import (
	"context"
	"time"

	"github.com/kylesnowschwartz/mobius/internal/atomicio"
	"github.com/kylesnowschwartz/mobius/internal/backend"
	"github.com/kylesnowschwartz/mobius/internal/layout"
	"github.com/kylesnowschwartz/mobius/internal/model"
	"github.com/sirupsen/logrus"
)

// Outbox is the durable per-parent pending-updates queue.
type Outbox struct {
	paths layout.Paths
	log   *logrus.Entry
}

// New returns an Outbox for the given parent, rooted at repoRoot.
func New(repoRoot, parentID string, log *logrus.Entry) *Outbox {
	return &Outbox{paths: layout.New(repoRoot, parentID), log: log}
}

// Read loads the current queue, treating a missing or corrupt file as
// an empty one (§4.C, DurableCorruption).
func (o *Outbox) Read() model.PendingQueue {
	var q model.PendingQueue
	if !atomicio.ReadValidated(o.paths.PendingUpdatesPath(), &q, o.log) {
		return model.PendingQueue{}
	}
	return q
}

// Queue appends update unless a semantically-identical unsynced update
// is already present (de-duplication key per §4.C). Returns true if the
// update was appended. Locked: the read-check-append sequence must be
// atomic with respect to a concurrent Queue or Push call on the same
// parent (§5 shared-resource policy), so this takes the outbox's own
// advisory lock for the duration.
func (o *Outbox) Queue(update model.PendingUpdate) (bool, error) {
	lock, err := atomicio.Acquire(layout.LockPath(o.paths.PendingUpdatesPath()))
	if err != nil {
		return false, err
	}
	defer lock.Release()

	q := o.Read()
	for _, existing := range q.Updates {
		if existing.Unsynced() && existing.DedupKey() == update.DedupKey() {
			return false, nil
		}
	}
	q.Updates = append(q.Updates, update)
	if err := atomicio.WriteJSON(o.paths.PendingUpdatesPath(), q); err != nil {
		return false, err
	}
	return true, nil
}

// PushResult summarizes one push pass.
type PushResult struct {
	Succeeded int
	Failed    int
}

// Push dispatches every unsynced update to adapter, strictly FIFO, one
// at a time. A single update's failure does not abort the remaining
// updates in the queue (§4.C). The queue is read once under the lock and
// rewritten atomically after each update's outcome is recorded, so a
// crash mid-push loses at most the in-flight call's outcome, never the
// queue itself.
func (o *Outbox) Push(ctx context.Context, adapter backend.Adapter) (PushResult, error) {
	lock, err := atomicio.Acquire(layout.LockPath(o.paths.PendingUpdatesPath()))
	if err != nil {
		return PushResult{}, err
	}
	defer lock.Release()

	q := o.Read()
	var result PushResult
	stamp := timeNow()
	q.LastSyncAttempt = &stamp

	for i := range q.Updates {
		u := &q.Updates[i]
		if !u.Unsynced() {
			continue
		}
		err := dispatch(ctx, adapter, *u)
		if err != nil {
			u.Error = err.Error()
			result.Failed++
			if o.log != nil {
				o.log.WithError(err).WithField("update_id", u.ID).Warn("outbox: push failed")
			}
		} else {
			synced := timeNow()
			u.SyncedAt = &synced
			u.Error = ""
			result.Succeeded++
		}
		if err := atomicio.WriteJSON(o.paths.PendingUpdatesPath(), q); err != nil {
			return result, err
		}
	}

	if err := atomicio.WriteJSON(o.paths.PendingUpdatesPath(), q); err != nil {
		return result, err
	}
	return result, nil
}

// dispatch sends a single update to its corresponding adapter method.
func dispatch(ctx context.Context, adapter backend.Adapter, u model.PendingUpdate) error {
	switch u.Kind {
	case model.KindStatusChange:
		res, err := adapter.UpdateStatus(ctx, u.TaskID, string(u.NewStatus))
		return resultErr(res, err)
	case model.KindAddComment:
		res, err := adapter.AddComment(ctx, u.TaskID, u.Body)
		return resultErr(res, err)
	case model.KindAddLabel:
		res, err := adapter.AddComment(ctx, u.TaskID, "label:+"+u.Label)
		return resultErr(res, err)
	case model.KindRemoveLabel:
		res, err := adapter.AddComment(ctx, u.TaskID, "label:-"+u.Label)
		return resultErr(res, err)
	case model.KindUpdateDescription:
		res, err := adapter.AddComment(ctx, u.TaskID, "description updated: "+u.Description)
		return resultErr(res, err)
	case model.KindCreateSubtask:
		_, res, err := adapter.CreateIssue(ctx, backend.CreateInput{
			ParentID:    u.ParentID,
			Title:       u.Title,
			Description: u.Description,
			BlockedBy:   u.BlockedBy,
		})
		return resultErr(res, err)
	default:
		return errUnknownKind(u.Kind)
	}
}

func resultErr(res backend.Result, err error) error {
	if err != nil {
		return err
	}
	if !res.Success {
		return errResultFailed(res.Error)
	}
	return nil
}

type errUnknownKind model.UpdateKind

func (e errUnknownKind) Error() string { return "outbox: unknown update kind " + string(e) }

type errResultFailed string

func (e errResultFailed) Error() string {
	if e == "" {
		return "outbox: backend reported failure"
	}
	return "outbox: backend reported failure: " + string(e)
}

// timeNow is a seam for deterministic tests.
var timeNow = time.Now
