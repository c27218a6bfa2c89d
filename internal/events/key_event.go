// Package events defines the key lifecycle notifications shared by the
// resolution module and the NATS publisher.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Key event types.
const (
	TypeCreated  = "created"
	TypeResolved = "resolved"
)

// KeyEvent records that an issuer was bound to an API key record. It never
// carries the secret key itself.
type KeyEvent struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	ProjectID       string    `json:"project_id"`
	CustomAccountID string    `json:"custom_account_id"`
	RequestID       string    `json:"request_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewKeyEvent builds a KeyEvent with a fresh time-ordered ID.
func NewKeyEvent(eventType, projectID, customAccountID, requestID string) KeyEvent {
	return KeyEvent{
		ID:              uuid.Must(uuid.NewV7()).String(),
		Type:            eventType,
		ProjectID:       projectID,
		CustomAccountID: customAccountID,
		RequestID:       requestID,
		OccurredAt:      time.Now().UTC(),
	}
}

// Subject derives the NATS subject for the event.
// Format: apikeys.{project_id}.{type}.
func (e KeyEvent) Subject() string {
	project := SanitizeSubjectToken(e.ProjectID)
	if project == "" {
		project = "unknown"
	}
	eventType := SanitizeSubjectToken(e.Type)
	if eventType == "" {
		eventType = "unknown"
	}
	return "apikeys." + project + "." + eventType
}

// SanitizeSubjectToken makes a value safe for use as a single NATS subject
// token. Dots, spaces and wildcards are replaced with underscores.
func SanitizeSubjectToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(
		" ", "_",
		".", "_",
		"*", "_",
		">", "_",
	).Replace(s)
}
