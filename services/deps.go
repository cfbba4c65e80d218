package services

import (
	"context"
	"time"

	"ticket-pass/models"
)

// TokenStore is the narrow surface the services need from the token store.
// The store is the single source of truth; ConditionalValidate must apply the
// read-check-increment sequence as one atomic operation.
type TokenStore interface {
	Create(ctx context.Context, t *models.Token) error
	GetByID(ctx context.Context, id string) (*models.Token, error)
	GetActiveByBooking(ctx context.Context, bookingID string) (*models.Token, error)
	ConditionalValidate(ctx context.Context, t *models.Token, validatorID string, now time.Time) (models.ValidateOutcome, int, error)
	Revoke(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
	ExpireBefore(ctx context.Context, now time.Time) (int, error)
}

// ValidationLogStore appends and queries immutable validation attempts.
type ValidationLogStore interface {
	Append(ctx context.Context, entry *models.ValidationLogEntry) error
	ListByToken(ctx context.Context, tokenID string, limit int) ([]models.ValidationLogEntry, error)
	ListByEvent(ctx context.Context, eventID string, limit int) ([]models.ValidationLogEntry, error)
	ListByValidator(ctx context.Context, validatorID string, limit int) ([]models.ValidationLogEntry, error)
	LastSuccessfulEntry(ctx context.Context, tokenID string) (*models.ValidationLogEntry, error)
	AggregateByEvent(ctx context.Context, eventID string, from, to time.Time) ([]models.ValidationBucket, error)
	LastValidationTime(ctx context.Context, eventID string) (*time.Time, error)
}

// Directory supplies read-only booking and event facts.
type Directory interface {
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
}

// AlertSink is the operational alerting path. Failures here never change a
// validation outcome.
type AlertSink interface {
	SecurityAlert(ctx context.Context, kind string, detail map[string]any)
	OpsAlert(ctx context.Context, kind string, detail map[string]any)
	NotifyGate(ctx context.Context, eventID string, message map[string]any)
}
