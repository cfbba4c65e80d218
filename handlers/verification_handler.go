package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-pass/services"
)

type VerificationHandler struct {
	app          *pocketbase.PocketBase
	verification *services.VerificationService
}

func NewVerificationHandler(app *pocketbase.PocketBase, verification *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		app:          app,
		verification: verification,
	}
}

// SendCode - Issue a one-time verification code for a recipient
func (h *VerificationHandler) SendCode(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Channel   string `json:"channel"`
		Recipient string `json:"recipient"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Channel == "" || req.Recipient == "" {
		return apis.NewBadRequestError("Channel and recipient required", nil)
	}

	// The code is returned to the caller, which owns delivery (email/SMS).
	code, err := h.verification.IssueCode(e.Request.Context(), req.Channel, req.Recipient)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"code": code})
}

// VerifyCode - Consume a one-time verification code
func (h *VerificationHandler) VerifyCode(e *core.RequestEvent) error {
	var req struct {
		Channel   string `json:"channel"`
		Recipient string `json:"recipient"`
		Code      string `json:"code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if err := h.verification.ConsumeCode(e.Request.Context(), req.Channel, req.Recipient, req.Code); err != nil {
		if errors.Is(err, services.ErrCodeInvalid) {
			return apis.NewBadRequestError("Code invalid or expired", nil)
		}
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"verified": true})
}
