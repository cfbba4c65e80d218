package models

import (
	"time"
)

type ValidationScenario string

const (
	ScenarioEntry       ValidationScenario = "ENTRY"
	ScenarioReEntry     ValidationScenario = "RE_ENTRY"
	ScenarioExit        ValidationScenario = "EXIT"
	ScenarioTransfer    ValidationScenario = "TRANSFER"
	ScenarioReplacement ValidationScenario = "REPLACEMENT"
)

func (s ValidationScenario) Valid() bool {
	switch s {
	case ScenarioEntry, ScenarioReEntry, ScenarioExit, ScenarioTransfer, ScenarioReplacement:
		return true
	}
	return false
}

type ValidationLogResult string

const (
	LogResultSuccess     ValidationLogResult = "SUCCESS"
	LogResultFailed      ValidationLogResult = "FAILED"
	LogResultExpired     ValidationLogResult = "EXPIRED"
	LogResultAlreadyUsed ValidationLogResult = "ALREADY_USED"
)

// ValidationLogEntry records one validation attempt. Append-only; never
// updated or deleted.
type ValidationLogEntry struct {
	ValidationID string              `json:"validation_id"`
	TokenID      string              `json:"token_id"`
	BookingID    string              `json:"booking_id"`
	EventID      string              `json:"event_id"`
	AttendeeID   string              `json:"attendee_id"`
	ValidatorID  string              `json:"validator_id"`
	Result       ValidationLogResult `json:"result"`
	Reason       string              `json:"reason,omitempty"`
	Scenario     ValidationScenario  `json:"scenario"`
	Timestamp    time.Time           `json:"timestamp"`
	Location     string              `json:"location,omitempty"`
	DeviceInfo   string              `json:"device_info,omitempty"`
	Notes        string              `json:"notes,omitempty"`
}

// StatusOfflineValidation tags results produced without store access. Strictly
// weaker guarantees than online validation.
const StatusOfflineValidation = "OFFLINE_VALIDATION"

type ValidationResult struct {
	Valid          bool      `json:"valid"`
	TokenID        string    `json:"token_id,omitempty"`
	BookingID      string    `json:"booking_id,omitempty"`
	AttendeeName   string    `json:"attendee_name,omitempty"`
	EventName      string    `json:"event_name,omitempty"`
	TicketType     string    `json:"ticket_type,omitempty"`
	ValidationTime time.Time `json:"validation_time"`
	ValidationID   string    `json:"validation_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Message        string    `json:"message,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
}

type CheckInResult struct {
	ValidationResult
	CheckInTime     time.Time `json:"check_in_time"`
	CheckInLocation string    `json:"check_in_location,omitempty"`
}

type CheckOutResult struct {
	ValidationResult
	CheckOutTime    time.Time `json:"check_out_time"`
	DurationMinutes *int64    `json:"duration_minutes,omitempty"`
}

type BatchValidationResult struct {
	Results    []ValidationResult `json:"results"`
	Total      int                `json:"total"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
}

// EventStatistics is a query-time projection over the validation log, not a
// stored materialized view.
type EventStatistics struct {
	EventID          string     `json:"event_id"`
	TotalValidations int        `json:"total_validations"`
	Successful       int        `json:"successful"`
	Failed           int        `json:"failed"`
	Entries          int        `json:"entries"`
	Exits            int        `json:"exits"`
	ValidationRate   float64    `json:"validation_rate"`
	LastValidation   *time.Time `json:"last_validation,omitempty"`
	PeakHour         int        `json:"peak_hour"`
	PeakHourCount    int        `json:"peak_hour_count"`
}

// ValidationBucket is one row of the log store's grouped aggregation.
type ValidationBucket struct {
	Result   ValidationLogResult
	Scenario ValidationScenario
	Hour     int
	Count    int
}
