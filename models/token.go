package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenFormat selects what content gets embedded when the physical code is
// rendered. Each format has its own renderer; unknown formats are rejected
// instead of falling back to a default.
type TokenFormat string

const (
	FormatURL        TokenFormat = "url"
	FormatStructured TokenFormat = "structured"
	FormatPlainText  TokenFormat = "plain_text"
	FormatHybrid     TokenFormat = "hybrid" // url + structured payload for offline fallback
)

func (f TokenFormat) Valid() bool {
	switch f {
	case FormatURL, FormatStructured, FormatPlainText, FormatHybrid:
		return true
	}
	return false
}

type TokenStatus string

const (
	StatusPending TokenStatus = "pending"
	StatusActive  TokenStatus = "active"
	StatusUsed    TokenStatus = "used"
	StatusExpired TokenStatus = "expired"
	StatusRevoked TokenStatus = "revoked"
)

// Terminal reports whether no further validation can succeed on this status.
func (s TokenStatus) Terminal() bool {
	return s == StatusUsed || s == StatusExpired || s == StatusRevoked
}

// Token is the admission credential. The encrypted payload is immutable once
// created; regeneration issues a new token id and revokes the old one.
type Token struct {
	ID               string        `json:"id"`
	BookingID        string        `json:"booking_id"`
	EventID          string        `json:"event_id"`
	AttendeeID       string        `json:"attendee_id"`
	EncryptedPayload string        `json:"encrypted_payload"`
	ReferenceURL     string        `json:"reference_url"`
	RenderableContent string       `json:"renderable_content,omitempty"`
	Format           TokenFormat   `json:"format"`
	Status           TokenStatus   `json:"status"`
	SingleUse        bool          `json:"single_use"`
	MaxValidations   int           `json:"max_validations"`
	ValidationCount  int           `json:"validation_count"`
	CreatedAt        time.Time     `json:"created_at"`
	ExpiresAt        time.Time     `json:"expires_at"`
	UsedAt           *time.Time    `json:"used_at,omitempty"`
	LastValidatedAt  *time.Time    `json:"last_validated_at,omitempty"`
	UsedBy           string        `json:"used_by,omitempty"`
	Metadata         TokenMetadata `json:"metadata"`
}

// TokenMetadata carries read-only display copies; never authoritative.
type TokenMetadata struct {
	EventName    string          `json:"event_name"`
	Venue        string          `json:"venue,omitempty"`
	AttendeeName string          `json:"attendee_name"`
	TicketType   string          `json:"ticket_type"`
	Price        decimal.Decimal `json:"price"`
}

// TokenPayload is the decrypted content bound to a token. The checksum is a
// tamper-evidence digest over the identity fields, used by offline validation;
// it is not a substitute for store-backed status checks.
type TokenPayload struct {
	BookingID    string          `json:"booking_id"`
	EventID      string          `json:"event_id"`
	AttendeeID   string          `json:"attendee_id"`
	EventName    string          `json:"event_name"`
	AttendeeName string          `json:"attendee_name"`
	TicketType   string          `json:"ticket_type"`
	Price        decimal.Decimal `json:"price"`
	ValidFrom    time.Time       `json:"valid_from"`
	ValidUntil   time.Time       `json:"valid_until"`
	Checksum     string          `json:"checksum"`
}

// ValidateOutcome is the result of the store-side conditional update that
// applies the read-check-increment sequence atomically.
type ValidateOutcome int

const (
	OutcomeSuccess ValidateOutcome = iota
	OutcomeNotFound
	OutcomeAlreadyUsed
	OutcomeExpired
	OutcomeRevoked
	OutcomePending
	OutcomeLimitExceeded
)
