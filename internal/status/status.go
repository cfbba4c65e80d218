package status

import "errors"

var (
	// Issuance failures.
	ErrTokenAlreadyExists  = errors.New("token: active token already exists for booking")
	ErrBookingNotConfirmed = errors.New("booking: booking not found or not confirmed")

	// Terminal business outcomes of a validation attempt.
	ErrTokenNotFound           = errors.New("token: token not found")
	ErrTokenExpired            = errors.New("token: token expired")
	ErrTokenAlreadyUsed        = errors.New("token: token already used")
	ErrTokenRevoked            = errors.New("token: token revoked")
	ErrValidationLimitExceeded = errors.New("token: validation limit exceeded")
	ErrTokenNotActive          = errors.New("token: token not yet active")
	ErrEventNotActive          = errors.New("event: event not active")

	// Tamper evidence. Raises a security alert in addition to failing.
	ErrDecryptionFailed = errors.New("payload: decryption failed")
	ErrInvalidPayload   = errors.New("payload: invalid payload")

	// Infrastructure failure. Retryable, never logged as a validation attempt.
	ErrStoreUnavailable = errors.New("store: store unavailable")

	// Empty query result from the validation log. Not a token-level outcome.
	ErrNoEntries = errors.New("log: no matching entries")
)

// Reason codes surfaced to callers. They map 1:1 to the sentinel errors above.
const (
	ReasonTokenNotFound    = "TOKEN_NOT_FOUND"
	ReasonExpired          = "EXPIRED"
	ReasonAlreadyUsed      = "ALREADY_USED"
	ReasonRevoked          = "REVOKED"
	ReasonLimitExceeded    = "VALIDATION_LIMIT_EXCEEDED"
	ReasonNotYetActive     = "NOT_YET_ACTIVE"
	ReasonBookingState     = "BOOKING_NOT_CONFIRMED"
	ReasonEventNotActive   = "EVENT_NOT_ACTIVE"
	ReasonDecryptionFailed = "DECRYPTION_FAILED"
	ReasonInvalidPayload   = "INVALID_PAYLOAD"
	ReasonOutsideValidity  = "OUTSIDE_VALIDITY_WINDOW"
)

var reasonByErr = map[error]string{
	ErrTokenNotFound:           ReasonTokenNotFound,
	ErrTokenExpired:            ReasonExpired,
	ErrTokenAlreadyUsed:        ReasonAlreadyUsed,
	ErrTokenRevoked:            ReasonRevoked,
	ErrValidationLimitExceeded: ReasonLimitExceeded,
	ErrTokenNotActive:          ReasonNotYetActive,
	ErrBookingNotConfirmed:     ReasonBookingState,
	ErrEventNotActive:          ReasonEventNotActive,
	ErrDecryptionFailed:        ReasonDecryptionFailed,
	ErrInvalidPayload:          ReasonInvalidPayload,
}

var messageByReason = map[string]string{
	ReasonTokenNotFound:    "Ticket not recognized",
	ReasonExpired:          "Ticket has expired",
	ReasonAlreadyUsed:      "Ticket was already used",
	ReasonRevoked:          "Ticket has been revoked",
	ReasonLimitExceeded:    "Ticket validation limit reached",
	ReasonNotYetActive:     "Ticket is not yet activated",
	ReasonBookingState:     "Booking is not confirmed",
	ReasonEventNotActive:   "Event is not currently active",
	ReasonDecryptionFailed: "Ticket could not be verified",
	ReasonInvalidPayload:   "Ticket data is not valid",
	ReasonOutsideValidity:  "Ticket is outside its validity window",
}

// ReasonFor returns the reason code for a business error, or "" for
// infrastructure errors that must not surface internal detail.
func ReasonFor(err error) string {
	for sentinel, reason := range reasonByErr {
		if errors.Is(err, sentinel) {
			return reason
		}
	}
	return ""
}

// DisplayMessage returns the gate-display text for a reason code.
func DisplayMessage(reason string) string {
	if msg, ok := messageByReason[reason]; ok {
		return msg
	}
	return "Ticket could not be validated. Please try again."
}

// IsBusinessOutcome reports whether err is a terminal validation outcome that
// should be logged as a FAILED attempt, as opposed to a system error.
func IsBusinessOutcome(err error) bool {
	return ReasonFor(err) != ""
}
