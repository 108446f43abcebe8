// Package events carries catalog and artifact notifications over an
// in-process watermill bus, optionally forwarded to NATS JetStream.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TopicCatalog is the bus topic every event is published on.
const TopicCatalog = "catalog"

// Event types.
const (
	ArtifactProposed  = "artifact.proposed"
	ArtifactCommitted = "artifact.committed"
	ArtifactDiscarded = "artifact.discarded"
	RecordCreated     = "record.created"
	RecordPublished   = "record.published"
	RecordDeleted     = "record.deleted"
)

// Event is a catalog notification. Subject is the SKU it concerns.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Subject    string         `json:"subject"`
	Session    string         `json:"session,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent creates an Event with a generated id and the current time.
func NewEvent(eventType, subject string, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// WithSession returns a copy of e tagged with a session id.
func (e Event) WithSession(id string) Event {
	e.Session = id
	return e
}

type sessionKey struct{}

// ContextWithSession returns a context carrying the session id that events
// raised under it are attributed to.
func ContextWithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionFromContext returns the session id stored by ContextWithSession.
func SessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
