package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticket-pass/config"
	"ticket-pass/internal/status"
	"ticket-pass/models"
	"ticket-pass/monitoring"
)

// PayloadDecrypter recovers token payloads. Implemented by the issuance
// service, which owns the key material.
type PayloadDecrypter interface {
	Decrypt(encryptedPayload string) (*models.TokenPayload, error)
}

// ValidationService applies the validation state machine. Each request is an
// independent, stateless unit of work; the token store is the only shared
// mutable resource and the read-check-increment sequence is committed there
// as a single conditional update.
type ValidationService struct {
	tokens    TokenStore
	logs      ValidationLogStore
	directory Directory
	codec     PayloadDecrypter
	alerts    AlertSink
	monitor   *monitoring.Monitor
	config    *config.Config
}

type ValidationRequest struct {
	TokenID     string
	ValidatorID string
	Scenario    models.ValidationScenario
	Location    string
	DeviceInfo  string
	Notes       string
}

func NewValidationService(
	tokens TokenStore,
	logs ValidationLogStore,
	directory Directory,
	codec PayloadDecrypter,
	alerts AlertSink,
	monitor *monitoring.Monitor,
	cfg *config.Config,
) *ValidationService {
	return &ValidationService{
		tokens:    tokens,
		logs:      logs,
		directory: directory,
		codec:     codec,
		alerts:    alerts,
		monitor:   monitor,
		config:    cfg,
	}
}

// Validate runs the ordered checks and, when they all pass, commits the usage
// update atomically against the store. Business failures return a result with
// Valid=false and a reason; only infrastructure failures and unknown token
// ids return an error.
func (s *ValidationService) Validate(ctx context.Context, req ValidationRequest) (*models.ValidationResult, error) {
	start := time.Now()
	if !req.Scenario.Valid() {
		req.Scenario = models.ScenarioEntry
	}

	token, err := s.tokens.GetByID(ctx, req.TokenID)
	if err != nil {
		// Unknown ids are not validation failures against a real token, and
		// infrastructure failures must never produce a FAILED log entry.
		return nil, err
	}

	now := time.Now().UTC()

	switch token.Status {
	case models.StatusActive:
		// continue
	case models.StatusUsed:
		return s.fail(ctx, token, req, status.ErrTokenAlreadyUsed, start), nil
	case models.StatusRevoked:
		return s.fail(ctx, token, req, status.ErrTokenRevoked, start), nil
	case models.StatusExpired:
		return s.fail(ctx, token, req, status.ErrTokenExpired, start), nil
	case models.StatusPending:
		return s.fail(ctx, token, req, status.ErrTokenNotActive, start), nil
	default:
		return nil, fmt.Errorf("token %s has unknown status %q", token.ID, token.Status)
	}

	// Expiry is a derived predicate, checked here even if the sweep has not
	// run yet. The conditional update below performs the actual transition.
	if now.After(token.ExpiresAt) {
		// The guarded update performs the ACTIVE -> EXPIRED transition; the
		// verdict stands even if the store write fails.
		if _, _, err := s.tokens.ConditionalValidate(ctx, token, req.ValidatorID, now); err != nil {
			slog.Error("expiry transition failed", "token_id", token.ID, "error", err)
		}
		return s.fail(ctx, token, req, status.ErrTokenExpired, start), nil
	}

	// Advisory pre-checks; the conditional update re-verifies both under the
	// store's atomicity so concurrent validations cannot race past them.
	if token.ValidationCount >= token.MaxValidations {
		return s.fail(ctx, token, req, status.ErrValidationLimitExceeded, start), nil
	}
	if token.SingleUse && token.ValidationCount > 0 {
		return s.fail(ctx, token, req, status.ErrTokenAlreadyUsed, start), nil
	}

	// External lookups are read-only and hold no lock. A directory outage is
	// a system error; only a confirmed-missing or unconfirmed booking is a
	// business rejection.
	booking, err := s.directory.GetBooking(ctx, token.BookingID)
	if err != nil {
		if status.IsBusinessOutcome(err) {
			return s.fail(ctx, token, req, err, start), nil
		}
		return nil, err
	}
	if !booking.Confirmed() {
		return s.fail(ctx, token, req, status.ErrBookingNotConfirmed, start), nil
	}
	event, err := s.directory.GetEvent(ctx, token.EventID)
	if err != nil {
		if status.IsBusinessOutcome(err) {
			return s.fail(ctx, token, req, err, start), nil
		}
		return nil, err
	}
	if !event.ActiveAt(now) {
		return s.fail(ctx, token, req, status.ErrEventNotActive, start), nil
	}

	outcome, count, err := s.tokens.ConditionalValidate(ctx, token, req.ValidatorID, now)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case models.OutcomeSuccess:
		// fall through to the success result
	case models.OutcomeAlreadyUsed:
		return s.fail(ctx, token, req, status.ErrTokenAlreadyUsed, start), nil
	case models.OutcomeExpired:
		return s.fail(ctx, token, req, status.ErrTokenExpired, start), nil
	case models.OutcomeRevoked:
		return s.fail(ctx, token, req, status.ErrTokenRevoked, start), nil
	case models.OutcomePending:
		return s.fail(ctx, token, req, status.ErrTokenNotActive, start), nil
	case models.OutcomeLimitExceeded:
		return s.fail(ctx, token, req, status.ErrValidationLimitExceeded, start), nil
	case models.OutcomeNotFound:
		return nil, status.ErrTokenNotFound
	default:
		return nil, fmt.Errorf("unexpected validation outcome %d", outcome)
	}

	result := &models.ValidationResult{
		Valid:          true,
		TokenID:        token.ID,
		BookingID:      token.BookingID,
		AttendeeName:   token.Metadata.AttendeeName,
		EventName:      token.Metadata.EventName,
		TicketType:     token.Metadata.TicketType,
		ValidationTime: now,
		ValidationID:   uuid.NewString(),
	}

	s.appendLog(ctx, &models.ValidationLogEntry{
		ValidationID: result.ValidationID,
		TokenID:      token.ID,
		BookingID:    token.BookingID,
		EventID:      token.EventID,
		AttendeeID:   token.AttendeeID,
		ValidatorID:  req.ValidatorID,
		Result:       models.LogResultSuccess,
		Scenario:     req.Scenario,
		Timestamp:    now,
		Location:     req.Location,
		DeviceInfo:   req.DeviceInfo,
		Notes:        req.Notes,
	})

	s.alerts.NotifyGate(ctx, token.EventID, map[string]any{
		"token_id": token.ID,
		"scenario": string(req.Scenario),
		"count":    count,
	})

	s.monitor.TrackValidation("success", string(req.Scenario), time.Since(start))
	log.Printf("Validated token %s (%s, count %d)", token.ID, req.Scenario, count)

	return result, nil
}

// CheckIn is an ENTRY validation with the check-in timestamp mirrored onto
// the result.
func (s *ValidationService) CheckIn(ctx context.Context, tokenID, validatorID, location string) (*models.CheckInResult, error) {
	result, err := s.Validate(ctx, ValidationRequest{
		TokenID:     tokenID,
		ValidatorID: validatorID,
		Scenario:    models.ScenarioEntry,
		Location:    location,
	})
	if err != nil {
		return nil, err
	}

	return &models.CheckInResult{
		ValidationResult: *result,
		CheckInTime:      result.ValidationTime,
		CheckInLocation:  location,
	}, nil
}

// CheckOut is an EXIT validation. When a prior successful ENTRY exists for
// the token, the stay duration is reported in whole minutes (floored).
func (s *ValidationService) CheckOut(ctx context.Context, tokenID, validatorID, location string) (*models.CheckOutResult, error) {
	result, err := s.Validate(ctx, ValidationRequest{
		TokenID:     tokenID,
		ValidatorID: validatorID,
		Scenario:    models.ScenarioExit,
		Location:    location,
	})
	if err != nil {
		return nil, err
	}

	out := &models.CheckOutResult{
		ValidationResult: *result,
		CheckOutTime:     result.ValidationTime,
	}
	if !result.Valid {
		return out, nil
	}

	entry, err := s.logs.LastSuccessfulEntry(ctx, tokenID)
	if err == nil {
		minutes := int64(out.CheckOutTime.Sub(entry.Timestamp).Minutes())
		out.DurationMinutes = &minutes
	} else if !errors.Is(err, status.ErrNoEntries) {
		slog.Error("check-out duration lookup failed", "token_id", tokenID, "error", err)
	}
	return out, nil
}

// ValidateMultiple validates each token independently and concurrently. One
// token's failure never aborts the batch.
func (s *ValidationService) ValidateMultiple(ctx context.Context, tokenIDs []string, validatorID string, scenario models.ValidationScenario, location, deviceInfo string) (*models.BatchValidationResult, error) {
	if len(tokenIDs) == 0 {
		return &models.BatchValidationResult{Results: []models.ValidationResult{}}, nil
	}
	if len(tokenIDs) > s.config.MaxBatchSize {
		return nil, fmt.Errorf("batch size %d exceeds limit %d", len(tokenIDs), s.config.MaxBatchSize)
	}

	results := make([]models.ValidationResult, len(tokenIDs))
	var wg sync.WaitGroup

	for i, tokenID := range tokenIDs {
		wg.Add(1)
		go func(i int, tokenID string) {
			defer wg.Done()

			result, err := s.Validate(ctx, ValidationRequest{
				TokenID:     tokenID,
				ValidatorID: validatorID,
				Scenario:    scenario,
				Location:    location,
				DeviceInfo:  deviceInfo,
			})
			if err != nil {
				reason := status.ReasonFor(err)
				results[i] = models.ValidationResult{
					Valid:          false,
					TokenID:        tokenID,
					ValidationTime: time.Now().UTC(),
					Reason:         reason,
					Message:        status.DisplayMessage(reason),
				}
				return
			}
			results[i] = *result
		}(i, tokenID)
	}
	wg.Wait()

	batch := &models.BatchValidationResult{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Valid {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}
	return batch, nil
}

// ValidateOffline checks only what the self-contained payload can prove:
// authenticity, checksum integrity and the validity window. Usage counts,
// revocation and single-use enforcement are NOT checked, so the result is a
// degraded-trust outcome and must never be treated as an online validation.
func (s *ValidationService) ValidateOffline(ctx context.Context, encryptedPayload string) (*models.ValidationResult, error) {
	now := time.Now().UTC()
	s.monitor.TrackOfflineValidation()

	payload, err := s.codec.Decrypt(encryptedPayload)
	if err != nil {
		reason := status.ReasonFor(err)
		s.alerts.SecurityAlert(ctx, "payload_tamper", map[string]any{
			"reason": reason,
		})
		slog.Warn("offline validation rejected payload", "reason", reason)

		return &models.ValidationResult{
			Valid:          false,
			ValidationTime: now,
			Status:         models.StatusOfflineValidation,
			Reason:         reason,
			Message:        status.DisplayMessage(reason),
		}, nil
	}

	result := &models.ValidationResult{
		TokenID:        "",
		BookingID:      payload.BookingID,
		AttendeeName:   payload.AttendeeName,
		EventName:      payload.EventName,
		TicketType:     payload.TicketType,
		ValidationTime: now,
		Status:         models.StatusOfflineValidation,
	}

	if now.Before(payload.ValidFrom) || now.After(payload.ValidUntil) {
		result.Valid = false
		result.Reason = status.ReasonOutsideValidity
		result.Message = status.DisplayMessage(status.ReasonOutsideValidity)
		return result, nil
	}

	result.Valid = true
	result.Warnings = []string{
		"offline validation: usage count not checked",
		"offline validation: revocation status not checked",
		"offline validation: single-use enforcement not applied",
	}
	return result, nil
}

func (s *ValidationService) GetValidationHistory(ctx context.Context, tokenID string, limit int) ([]models.ValidationLogEntry, error) {
	return s.logs.ListByToken(ctx, tokenID, limit)
}

func (s *ValidationService) GetEventValidations(ctx context.Context, eventID string, limit int) ([]models.ValidationLogEntry, error) {
	return s.logs.ListByEvent(ctx, eventID, limit)
}

func (s *ValidationService) GetValidatorActivity(ctx context.Context, validatorID string, limit int) ([]models.ValidationLogEntry, error) {
	return s.logs.ListByValidator(ctx, validatorID, limit)
}

// GetEventStatistics derives validation statistics from the log at query
// time. The peak hour is the mode of the hour-of-day buckets.
func (s *ValidationService) GetEventStatistics(ctx context.Context, eventID string, from, to time.Time) (*models.EventStatistics, error) {
	buckets, err := s.logs.AggregateByEvent(ctx, eventID, from, to)
	if err != nil {
		return nil, err
	}

	stats := &models.EventStatistics{EventID: eventID}
	hourCounts := make(map[int]int)

	for _, b := range buckets {
		stats.TotalValidations += b.Count
		hourCounts[b.Hour] += b.Count

		if b.Result == models.LogResultSuccess {
			stats.Successful += b.Count
			switch b.Scenario {
			case models.ScenarioEntry, models.ScenarioReEntry:
				stats.Entries += b.Count
			case models.ScenarioExit:
				stats.Exits += b.Count
			}
		} else {
			stats.Failed += b.Count
		}
	}

	if stats.TotalValidations > 0 {
		stats.ValidationRate = float64(stats.Successful) / float64(stats.TotalValidations)
	}

	for hour, count := range hourCounts {
		if count > stats.PeakHourCount || (count == stats.PeakHourCount && hour < stats.PeakHour) {
			stats.PeakHour = hour
			stats.PeakHourCount = count
		}
	}

	last, err := s.logs.LastValidationTime(ctx, eventID)
	if err == nil {
		stats.LastValidation = last
	}
	return stats, nil
}

// fail records a failed attempt and builds the gate-facing result. Log
// appends are fire-and-forget relative to the outcome: a logging failure is
// surfaced to alerting, never to the caller.
func (s *ValidationService) fail(ctx context.Context, token *models.Token, req ValidationRequest, cause error, start time.Time) *models.ValidationResult {
	now := time.Now().UTC()
	reason := status.ReasonFor(cause)

	logResult := models.LogResultFailed
	switch {
	case errors.Is(cause, status.ErrTokenExpired):
		logResult = models.LogResultExpired
	case errors.Is(cause, status.ErrTokenAlreadyUsed):
		logResult = models.LogResultAlreadyUsed
	}

	validationID := uuid.NewString()
	s.appendLog(ctx, &models.ValidationLogEntry{
		ValidationID: validationID,
		TokenID:      token.ID,
		BookingID:    token.BookingID,
		EventID:      token.EventID,
		AttendeeID:   token.AttendeeID,
		ValidatorID:  req.ValidatorID,
		Result:       logResult,
		Reason:       reason,
		Scenario:     req.Scenario,
		Timestamp:    now,
		Location:     req.Location,
		DeviceInfo:   req.DeviceInfo,
		Notes:        req.Notes,
	})

	s.monitor.TrackValidation("failed", string(req.Scenario), time.Since(start))

	return &models.ValidationResult{
		Valid:          false,
		TokenID:        token.ID,
		BookingID:      token.BookingID,
		AttendeeName:   token.Metadata.AttendeeName,
		EventName:      token.Metadata.EventName,
		TicketType:     token.Metadata.TicketType,
		ValidationTime: now,
		ValidationID:   validationID,
		Reason:         reason,
		Message:        status.DisplayMessage(reason),
	}
}

func (s *ValidationService) appendLog(ctx context.Context, entry *models.ValidationLogEntry) {
	if err := s.logs.Append(ctx, entry); err != nil {
		s.monitor.TrackLogAppendFailure()
		s.alerts.OpsAlert(ctx, "validation_log_append_failed", map[string]any{
			"token_id": entry.TokenID,
			"result":   string(entry.Result),
		})
		slog.Error("validation log append failed", "token_id", entry.TokenID, "error", err)
	}
}
