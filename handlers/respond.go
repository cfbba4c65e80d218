package handlers

import (
	"errors"

	"github.com/pocketbase/pocketbase/apis"

	"ticket-pass/internal/status"
)

// apiError maps service errors to API responses. Store outages come back as
// 503 without internal detail; business failures carry their reason code.
func apiError(err error) error {
	switch {
	case errors.Is(err, status.ErrTokenNotFound):
		return apis.NewNotFoundError("Token not found", nil)
	case errors.Is(err, status.ErrStoreUnavailable):
		return apis.NewApiError(503, "Service temporarily unavailable. Please try again.", nil)
	case status.IsBusinessOutcome(err):
		return apis.NewBadRequestError(status.DisplayMessage(status.ReasonFor(err)), err)
	case errors.Is(err, status.ErrTokenAlreadyExists):
		return apis.NewBadRequestError("An active token already exists for this booking", err)
	default:
		return apis.NewBadRequestError("Request failed", err)
	}
}
