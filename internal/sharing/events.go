package sharing

import (
	"context"
	"log/slog"
	"time"

	"taskshare/internal/model"
)

// EventType names a committed sharing change.
type EventType string

const (
	EventKeyGenerated       EventType = "share.key_generated"
	EventJoined             EventType = "share.joined"
	EventGranted            EventType = "share.granted"
	EventInvitationCreated  EventType = "share.invitation_created"
	EventInvitationAccepted EventType = "share.invitation_accepted"
	EventInvitationRejected EventType = "share.invitation_rejected"
	EventRoleChanged        EventType = "share.role_changed"
	EventRevoked            EventType = "share.revoked"
	EventLeft               EventType = "share.left"
	EventUnshared           EventType = "share.unshared"
)

// Event is published after the change it describes has been committed.
type Event struct {
	Type         EventType
	Kind         model.Kind
	ResourceID   uint
	ActorID      uint
	TargetUserID uint
	Email        string
	Role         model.Role
	// Token is set for EventInvitationCreated so a notifier can mail it.
	Token string
	At    time.Time
}

// Publisher hands events to whatever delivers notifications.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event)

func (f PublisherFunc) Publish(ctx context.Context, e Event) { f(ctx, e) }

// LogPublisher writes events to a structured log.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) {
	p.log.InfoContext(ctx, "share event",
		"type", string(e.Type),
		"kind", string(e.Kind),
		"resource_id", e.ResourceID,
		"actor_id", e.ActorID,
		"target_user_id", e.TargetUserID,
		"role", string(e.Role),
	)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}
