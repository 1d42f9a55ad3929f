// Package audit keeps the append-only trail of sharing actions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"taskshare/internal/model"
)

// Action names a recorded sharing operation.
type Action string

const (
	ActionGenerateKey      Action = "generate_key"
	ActionReuseKey         Action = "reuse_key"
	ActionJoinByKey        Action = "join_by_key"
	ActionInviteUser       Action = "invite_user"
	ActionSendInvitation   Action = "send_invitation"
	ActionAcceptInvitation Action = "accept_invitation"
	ActionRejectInvitation Action = "reject_invitation"
	ActionModifyRole       Action = "modify_role"
	ActionRevokeAccess     Action = "revoke_access"
	ActionLeave            Action = "leave"
	ActionUnshare          Action = "unshare"
)

const (
	DefaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Entry is one action to record.
type Entry struct {
	Kind       model.Kind
	ResourceID uint
	UserID     uint
	Action     Action
	Details    map[string]any
}

// Store persists entries.
type Store interface {
	Insert(ctx context.Context, entry *model.AuditEntry) error
	ListByResource(ctx context.Context, kind model.Kind, resourceID uint, limit int) ([]model.AuditEntry, error)
}

// WriteError describes an entry that could not be stored.
type WriteError struct {
	Action Action
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("audit %s: %v", e.Action, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Recorder writes entries on a best-effort basis.
type Recorder struct {
	store Store
	log   *slog.Logger
}

func NewRecorder(store Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: store, log: log}
}

// Record stores the entry. Failures are logged and never reach the caller.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if err := r.write(context.WithoutCancel(ctx), e); err != nil {
		r.log.Warn("audit write failed",
			"action", string(e.Action),
			"kind", string(e.Kind),
			"resource_id", e.ResourceID,
			"user_id", e.UserID,
			"err", err,
		)
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) error {
	var details datatypes.JSON
	if len(e.Details) > 0 {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return &WriteError{Action: e.Action, Err: err}
		}
		details = datatypes.JSON(raw)
	}
	row := model.AuditEntry{
		Kind:       e.Kind,
		ResourceID: e.ResourceID,
		UserID:     e.UserID,
		Action:     string(e.Action),
		Details:    details,
	}
	if err := r.store.Insert(ctx, &row); err != nil {
		return &WriteError{Action: e.Action, Err: err}
	}
	return nil
}

// History returns the newest entries for a resource.
func (r *Recorder) History(ctx context.Context, kind model.Kind, resourceID uint, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return r.store.ListByResource(ctx, kind, resourceID, limit)
}
