package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-pass/models"
	"ticket-pass/services"
)

type ValidationHandler struct {
	app        *pocketbase.PocketBase
	validation *services.ValidationService
}

func NewValidationHandler(app *pocketbase.PocketBase, validation *services.ValidationService) *ValidationHandler {
	return &ValidationHandler{
		app:        app,
		validation: validation,
	}
}

// validatorID prefers the authenticated record over a client-supplied id.
func validatorID(e *core.RequestEvent, fromBody string) string {
	if e.Auth != nil {
		return e.Auth.Id
	}
	return fromBody
}

// ValidateToken - Validate a scanned token at the gate
func (h *ValidationHandler) ValidateToken(e *core.RequestEvent) error {
	var req struct {
		TokenID     string `json:"token_id"`
		ValidatorID string `json:"validator_id"`
		Scenario    string `json:"scenario"`
		Location    string `json:"location"`
		DeviceInfo  string `json:"device_info"`
		Notes       string `json:"notes"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TokenID == "" {
		return apis.NewBadRequestError("Token ID required", nil)
	}

	result, err := h.validation.Validate(e.Request.Context(), services.ValidationRequest{
		TokenID:     req.TokenID,
		ValidatorID: validatorID(e, req.ValidatorID),
		Scenario:    models.ValidationScenario(req.Scenario),
		Location:    req.Location,
		DeviceInfo:  req.DeviceInfo,
		Notes:       req.Notes,
	})
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// CheckIn - ENTRY validation with check-in details
func (h *ValidationHandler) CheckIn(e *core.RequestEvent) error {
	var req struct {
		TokenID     string `json:"token_id"`
		ValidatorID string `json:"validator_id"`
		Location    string `json:"location"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TokenID == "" {
		return apis.NewBadRequestError("Token ID required", nil)
	}

	result, err := h.validation.CheckIn(e.Request.Context(), req.TokenID, validatorID(e, req.ValidatorID), req.Location)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// CheckOut - EXIT validation with stay duration when an entry exists
func (h *ValidationHandler) CheckOut(e *core.RequestEvent) error {
	var req struct {
		TokenID     string `json:"token_id"`
		ValidatorID string `json:"validator_id"`
		Location    string `json:"location"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TokenID == "" {
		return apis.NewBadRequestError("Token ID required", nil)
	}

	result, err := h.validation.CheckOut(e.Request.Context(), req.TokenID, validatorID(e, req.ValidatorID), req.Location)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// ValidateBatch - Validate a group of tokens arriving together
func (h *ValidationHandler) ValidateBatch(e *core.RequestEvent) error {
	var req struct {
		TokenIDs    []string `json:"token_ids"`
		ValidatorID string   `json:"validator_id"`
		Scenario    string   `json:"scenario"`
		Location    string   `json:"location"`
		DeviceInfo  string   `json:"device_info"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	result, err := h.validation.ValidateMultiple(
		e.Request.Context(),
		req.TokenIDs,
		validatorID(e, req.ValidatorID),
		models.ValidationScenario(req.Scenario),
		req.Location,
		req.DeviceInfo,
	)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// ValidateOffline - Degraded validation from the self-contained payload only
func (h *ValidationHandler) ValidateOffline(e *core.RequestEvent) error {
	var req struct {
		EncryptedPayload string `json:"encrypted_payload"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EncryptedPayload == "" {
		return apis.NewBadRequestError("Encrypted payload required", nil)
	}

	result, err := h.validation.ValidateOffline(e.Request.Context(), req.EncryptedPayload)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// GetValidationHistory - List validation attempts for a token
func (h *ValidationHandler) GetValidationHistory(e *core.RequestEvent) error {
	tokenID := e.Request.PathValue("tokenId")
	if tokenID == "" {
		return apis.NewBadRequestError("Token ID required", nil)
	}

	entries, err := h.validation.GetValidationHistory(e.Request.Context(), tokenID, queryLimit(e))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"token_id": tokenID, "entries": entries})
}

// GetEventValidations - List validation attempts for an event
func (h *ValidationHandler) GetEventValidations(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	entries, err := h.validation.GetEventValidations(e.Request.Context(), eventID, queryLimit(e))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"event_id": eventID, "entries": entries})
}

// GetValidatorActivity - List validation attempts performed by a validator
func (h *ValidationHandler) GetValidatorActivity(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	vID := e.Request.PathValue("validatorId")
	if vID == "" {
		return apis.NewBadRequestError("Validator ID required", nil)
	}

	entries, err := h.validation.GetValidatorActivity(e.Request.Context(), vID, queryLimit(e))
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, map[string]any{"validator_id": vID, "entries": entries})
}

// GetEventStatistics - Aggregated validation statistics for an event
func (h *ValidationHandler) GetEventStatistics(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}

	var from, to time.Time
	if v := e.Request.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return apis.NewBadRequestError("Invalid 'from' timestamp", err)
		}
		from = t
	}
	if v := e.Request.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return apis.NewBadRequestError("Invalid 'to' timestamp", err)
		}
		to = t
	}

	stats, err := h.validation.GetEventStatistics(e.Request.Context(), eventID, from, to)
	if err != nil {
		return apiError(err)
	}

	return e.JSON(http.StatusOK, stats)
}

func queryLimit(e *core.RequestEvent) int {
	if v := e.Request.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
