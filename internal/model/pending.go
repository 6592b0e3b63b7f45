package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// UpdateKind discriminates the PendingUpdate sum type on the wire. Each
// kind carries its own field set; unused fields for a given kind are
// always zero.
type UpdateKind string

const (
	KindStatusChange     UpdateKind = "status_change"
	KindAddComment       UpdateKind = "add_comment"
	KindAddLabel         UpdateKind = "add_label"
	KindRemoveLabel      UpdateKind = "remove_label"
	KindUpdateDescription UpdateKind = "update_description"
	KindCreateSubtask    UpdateKind = "create_subtask"
)

// PendingUpdate is a single queued backend mutation. It is modeled as a
// tagged variant (Kind selects which fields are meaningful) rather than
// as one interface per variant, because the whole queue round-trips
// through JSON as a single homogeneous slice -- a sealed interface would
// need the same discriminator for (de)serialization anyway, so we keep
// it explicit and let DedupKey switch on Kind directly.
type PendingUpdate struct {
	ID        string     `json:"id"`
	Kind      UpdateKind `json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
	Error     string     `json:"error,omitempty"`

	// StatusChange
	TaskID    string `json:"task_id,omitempty"`
	OldStatus Status `json:"old_status,omitempty"`
	NewStatus Status `json:"new_status,omitempty"`

	// AddComment
	Body string `json:"body,omitempty"`

	// AddLabel / RemoveLabel
	Label string `json:"label,omitempty"`

	// UpdateDescription
	Description string `json:"description,omitempty"`

	// CreateSubtask
	ParentID  string   `json:"parent_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	BlockedBy []string `json:"blocked_by,omitempty"`
}

// Unsynced reports whether this update has neither been synced nor failed.
func (u PendingUpdate) Unsynced() bool {
	return u.SyncedAt == nil && u.Error == ""
}

// DedupKey returns the semantic identity used for de-duplication among
// unsynced updates (§4.C). Two updates with the same Kind and DedupKey
// are the same intent; once one is synced a fresh queue() call for the
// same key is allowed to append a new entry.
func (u PendingUpdate) DedupKey() string {
	switch u.Kind {
	case KindStatusChange:
		return string(u.Kind) + "|" + u.TaskID + "|" + string(u.OldStatus) + "|" + string(u.NewStatus)
	case KindAddComment:
		return string(u.Kind) + "|" + u.TaskID + "|" + u.Body
	case KindAddLabel, KindRemoveLabel:
		return string(u.Kind) + "|" + u.TaskID + "|" + u.Label
	case KindUpdateDescription:
		return string(u.Kind) + "|" + u.TaskID + "|" + u.Description
	case KindCreateSubtask:
		return string(u.Kind) + "|" + u.ParentID + "|" + u.Title + "|" + u.Description
	default:
		return string(u.Kind) + "|" + u.ID
	}
}

// NewStatusChange constructs an unsynced StatusChange update.
func NewStatusChange(taskID string, oldStatus, newStatus Status) PendingUpdate {
	return PendingUpdate{ID: newID(), Kind: KindStatusChange, CreatedAt: now(), TaskID: taskID, OldStatus: oldStatus, NewStatus: newStatus}
}

// NewAddComment constructs an unsynced AddComment update.
func NewAddComment(taskID, body string) PendingUpdate {
	return PendingUpdate{ID: newID(), Kind: KindAddComment, CreatedAt: now(), TaskID: taskID, Body: body}
}

// NewAddLabel constructs an unsynced AddLabel update.
func NewAddLabel(taskID, label string) PendingUpdate {
	return PendingUpdate{ID: newID(), Kind: KindAddLabel, CreatedAt: now(), TaskID: taskID, Label: label}
}

// NewRemoveLabel constructs an unsynced RemoveLabel update.
func NewRemoveLabel(taskID, label string) PendingUpdate {
	return PendingUpdate{ID: newID(), Kind: KindRemoveLabel, CreatedAt: now(), TaskID: taskID, Label: label}
}

// NewUpdateDescription constructs an unsynced UpdateDescription update.
func NewUpdateDescription(taskID, description string) PendingUpdate {
	return PendingUpdate{ID: newID(), Kind: KindUpdateDescription, CreatedAt: now(), TaskID: taskID, Description: description}
}

// NewCreateSubtask constructs an unsynced CreateSubtask update.
func NewCreateSubtask(parentID, title, description string, blockedBy []string) PendingUpdate {
	return PendingUpdate{ID: newID(), Kind: KindCreateSubtask, CreatedAt: now(), ParentID: parentID, Title: title, Description: description, BlockedBy: blockedBy}
}

func newID() string { return uuid.NewString() }

// now is a seam for deterministic tests; production code calls it directly
// and tests construct PendingUpdate literals instead of calling the
// constructors when they need a fixed CreatedAt.
var now = time.Now

// PendingQueue is the durable, ordered outbox for one parent.
type PendingQueue struct {
	Updates         []PendingUpdate `json:"updates"`
	LastSyncAttempt *time.Time      `json:"last_sync_attempt,omitempty"`
}

// ErrDuplicateID is returned when a PendingQueue is validated and two
// updates share the same id -- a corruption signal, since ids are
// assigned by uuid.NewString and should never collide.
var ErrDuplicateID = errors.New("pending queue: duplicate update id")

// Validate checks the structural invariant that every update id is
// unique. It does not check de-duplication among unsynced updates --
// that is an append-time invariant enforced by the outbox, not a
// read-time structural one.
func (q PendingQueue) Validate() error {
	seen := make(map[string]struct{}, len(q.Updates))
	for _, u := range q.Updates {
		if _, ok := seen[u.ID]; ok {
			return errors.Wrapf(ErrDuplicateID, "id %q", u.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}
