package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-pass/models"
	"ticket-pass/services"
)

type TokenHandler struct {
	app      *pocketbase.PocketBase
	issuance *services.IssuanceService
	tokens   services.TokenStore
}

func NewTokenHandler(app *pocketbase.PocketBase, issuance *services.IssuanceService, tokens services.TokenStore) *TokenHandler {
	return &TokenHandler{
		app:      app,
		issuance: issuance,
		tokens:   tokens,
	}
}

// GetToken - Look up a token by id
func (h *TokenHandler) GetToken(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	tokenID := e.Request.PathValue("tokenId")
	if tokenID == "" {
		return apis.NewBadRequestError("Token ID required", nil)
	}

	token, err := h.tokens.GetByID(e.Request.Context(), tokenID)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, token)
}

// IssueToken - Issue a new admission token for a confirmed booking
func (h *TokenHandler) IssueToken(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		BookingID      string `json:"booking_id"`
		Format         string `json:"format"`
		SingleUse      *bool  `json:"single_use"`
		MaxValidations int    `json:"max_validations"`
		ExpiryHours    int    `json:"expiry_hours"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.BookingID == "" {
		return apis.NewBadRequestError("Booking ID required", nil)
	}

	opts := services.IssueOptions{
		Format:         models.TokenFormat(req.Format),
		SingleUse:      req.SingleUse,
		MaxValidations: req.MaxValidations,
	}
	if req.ExpiryHours > 0 {
		opts.Expiry = time.Duration(req.ExpiryHours) * time.Hour
	}

	token, err := h.issuance.Issue(e.Request.Context(), req.BookingID, opts)
	if err != nil {
		slog.Warn("token issuance rejected", "booking_id", req.BookingID, "error", err)
		return apiError(err)
	}

	return e.JSON(http.StatusOK, token)
}

// RegenerateToken - Revoke the booking's active token and issue a replacement
func (h *TokenHandler) RegenerateToken(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		BookingID string `json:"booking_id"`
		Reason    string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.BookingID == "" {
		return apis.NewBadRequestError("Booking ID required", nil)
	}

	token, err := h.issuance.Regenerate(e.Request.Context(), req.BookingID, req.Reason)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, token)
}

// RevokeToken - Permanently invalidate a token
func (h *TokenHandler) RevokeToken(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	tokenID := e.Request.PathValue("tokenId")
	if tokenID == "" {
		return apis.NewBadRequestError("Token ID required", nil)
	}

	if err := h.issuance.Revoke(e.Request.Context(), tokenID); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Token revoked", "token_id": tokenID})
}

// ActivateToken - Promote a staged token to active (admin)
func (h *TokenHandler) ActivateToken(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	tokenID := e.Request.PathValue("tokenId")
	if tokenID == "" {
		return apis.NewBadRequestError("Token ID required", nil)
	}

	if err := h.issuance.Activate(e.Request.Context(), tokenID); err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"message": "Token activated", "token_id": tokenID})
}
