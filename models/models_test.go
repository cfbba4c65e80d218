package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFormat_Valid(t *testing.T) {
	for _, format := range []TokenFormat{FormatURL, FormatStructured, FormatPlainText, FormatHybrid} {
		assert.True(t, format.Valid(), string(format))
	}

	assert.False(t, TokenFormat("").Valid())
	assert.False(t, TokenFormat("qr").Valid())
}

func TestTokenStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusUsed.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.True(t, StatusRevoked.Terminal())
}

func TestValidationScenario_Valid(t *testing.T) {
	for _, scenario := range []ValidationScenario{
		ScenarioEntry, ScenarioReEntry, ScenarioExit, ScenarioTransfer, ScenarioReplacement,
	} {
		assert.True(t, scenario.Valid(), string(scenario))
	}

	assert.False(t, ValidationScenario("entry").Valid(), "scenarios are upper case")
	assert.False(t, ValidationScenario("").Valid())
}

func TestEvent_ActiveAt(t *testing.T) {
	start := time.Date(2025, 9, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)
	event := Event{ID: "evt_1", StartTime: start, EndTime: end, Status: "started"}

	assert.True(t, event.ActiveAt(start))
	assert.True(t, event.ActiveAt(start.Add(2*time.Hour)))
	assert.True(t, event.ActiveAt(end))
	assert.False(t, event.ActiveAt(start.Add(-time.Minute)))
	assert.False(t, event.ActiveAt(end.Add(time.Minute)))

	event.Status = "cancelled"
	assert.False(t, event.ActiveAt(start.Add(2*time.Hour)))

	event.Status = "draft"
	assert.False(t, event.ActiveAt(start.Add(2*time.Hour)))
}

func TestBooking_Confirmed(t *testing.T) {
	booking := Booking{ID: "bkg_1", Status: BookingStatusConfirmed}
	assert.True(t, booking.Confirmed())

	booking.Status = "pending"
	assert.False(t, booking.Confirmed())
}

func TestToken_JSONSerialization(t *testing.T) {
	usedAt := time.Date(2025, 9, 1, 20, 30, 0, 0, time.UTC)
	token := Token{
		ID:               "tkt_abc123",
		BookingID:        "bkg_1",
		EventID:          "evt_1",
		AttendeeID:       "att_1",
		EncryptedPayload: "aabb.ccdd.eeff",
		Format:           FormatHybrid,
		Status:           StatusUsed,
		SingleUse:        true,
		MaxValidations:   1,
		ValidationCount:  1,
		CreatedAt:        usedAt.Add(-2 * time.Hour),
		ExpiresAt:        usedAt.Add(22 * time.Hour),
		UsedAt:           &usedAt,
		UsedBy:           "validator-1",
		Metadata: TokenMetadata{
			EventName:    "Summer Concert",
			AttendeeName: "Alex Doe",
			TicketType:   "VIP",
			Price:        decimal.NewFromFloat(150.50),
		},
	}

	jsonData, err := json.Marshal(token)
	require.NoError(t, err)

	var unmarshaled Token
	err = json.Unmarshal(jsonData, &unmarshaled)
	require.NoError(t, err)

	assert.Equal(t, token.ID, unmarshaled.ID)
	assert.Equal(t, token.Format, unmarshaled.Format)
	assert.Equal(t, token.Status, unmarshaled.Status)
	assert.Equal(t, token.ValidationCount, unmarshaled.ValidationCount)
	require.NotNil(t, unmarshaled.UsedAt)
	assert.WithinDuration(t, usedAt, *unmarshaled.UsedAt, time.Second)
	assert.True(t, token.Metadata.Price.Equal(unmarshaled.Metadata.Price))
}

func TestValidationResult_OmitsEmptyFields(t *testing.T) {
	result := ValidationResult{
		Valid:          false,
		ValidationTime: time.Now(),
		Reason:         "TOKEN_NOT_FOUND",
		Message:        "Ticket not recognized",
	}

	jsonData, err := json.Marshal(result)
	require.NoError(t, err)

	assert.NotContains(t, string(jsonData), "token_id")
	assert.NotContains(t, string(jsonData), "warnings")
	assert.Contains(t, string(jsonData), `"reason":"TOKEN_NOT_FOUND"`)
}
