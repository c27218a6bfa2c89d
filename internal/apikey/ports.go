// Package apikey resolves a user's issuer identity to an API key record held
// by the external key-management service, creating the record on first use.
// It follows the hexagonal architecture pattern with ports (interfaces) and
// adapters (the HTTP directory client and the resolution handler).
package apikey

import (
	"context"

	"github.com/SebastienMelki/keyportal/internal/apikey/internal/domain"
	"github.com/SebastienMelki/keyportal/internal/events"
)

// Directory defines the port to the external key directory.
type Directory interface {
	// Lookup returns the records bound to issuer, in directory order.
	Lookup(ctx context.Context, issuer string) ([]domain.Record, error)

	// Create registers a new record for issuer named after email.
	Create(ctx context.Context, issuer, email string) (domain.Record, error)
}

// EventPublisher defines the port for key lifecycle notifications.
type EventPublisher interface {
	PublishKeyEvent(ctx context.Context, event events.KeyEvent) error
}

// Record is an API key record.
type Record = domain.Record

// Identity is the user identity a record is resolved for.
type Identity = domain.Identity

// Resolution errors. Use errors.Is to classify a Resolve failure.
var (
	ErrBadRequest = domain.ErrBadRequest
	ErrNotFound   = domain.ErrNotFound
	ErrUpstream   = domain.ErrUpstream
	ErrTransport  = domain.ErrTransport
)
