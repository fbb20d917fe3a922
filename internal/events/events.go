// Package events publishes domain events to a message broker. Publishing is
// best effort: callers log failures and carry on with the request.
package events

import (
	"context"
	"time"
)

const (
	TypeMaterialUploaded   = "material.uploaded"
	TypeRefreshTokenReuse  = "session.reuse_detected"
	TypeAllSessionsRevoked = "session.revoked_all"
)

type Event struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(eventType string, payload any) Event {
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// MaterialUploaded is emitted after a material's blob and record are stored.
type MaterialUploaded struct {
	MaterialID string  `json:"material_id"`
	Title      string  `json:"title"`
	Type       string  `json:"type"`
	UploadedBy int64   `json:"uploaded_by"`
	AssignedTo []int64 `json:"assigned_to"`
	CourseID   string  `json:"course_id,omitempty"`
}

// RefreshTokenReuse is emitted when a revoked refresh token is presented.
type RefreshTokenReuse struct {
	UserID  int64  `json:"user_id"`
	TokenID string `json:"token_id"`
}

// AllSessionsRevoked is emitted on logout from every device.
type AllSessionsRevoked struct {
	UserID int64 `json:"user_id"`
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
