package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"ticket-pass/internal/status"
	"ticket-pass/models"
)

const validationLogsCollection = "validation_logs"

// ValidationLogStore appends immutable validation attempts to the
// validation_logs collection. Entries are never updated or deleted.
type ValidationLogStore struct {
	app core.App
}

func NewValidationLogStore(app core.App) *ValidationLogStore {
	return &ValidationLogStore{app: app}
}

func (s *ValidationLogStore) Append(ctx context.Context, entry *models.ValidationLogEntry) error {
	collection, err := s.app.FindCollectionByNameOrId(validationLogsCollection)
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	record := core.NewRecord(collection)
	record.Set("validation_id", entry.ValidationID)
	record.Set("token_id", entry.TokenID)
	record.Set("booking_id", entry.BookingID)
	record.Set("event_id", entry.EventID)
	record.Set("attendee_id", entry.AttendeeID)
	record.Set("validator_id", entry.ValidatorID)
	record.Set("result", string(entry.Result))
	record.Set("reason", entry.Reason)
	record.Set("scenario", string(entry.Scenario))
	record.Set("timestamp", entry.Timestamp.UTC())
	record.Set("location", entry.Location)
	record.Set("device_info", entry.DeviceInfo)
	record.Set("notes", entry.Notes)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *ValidationLogStore) ListByToken(ctx context.Context, tokenID string, limit int) ([]models.ValidationLogEntry, error) {
	return s.list("token_id = {:id}", dbx.Params{"id": tokenID}, limit)
}

func (s *ValidationLogStore) ListByEvent(ctx context.Context, eventID string, limit int) ([]models.ValidationLogEntry, error) {
	return s.list("event_id = {:id}", dbx.Params{"id": eventID}, limit)
}

func (s *ValidationLogStore) ListByValidator(ctx context.Context, validatorID string, limit int) ([]models.ValidationLogEntry, error) {
	return s.list("validator_id = {:id}", dbx.Params{"id": validatorID}, limit)
}

// LastSuccessfulEntry returns the most recent successful ENTRY attempt for a
// token, or ErrNoEntries when no such attempt exists.
func (s *ValidationLogStore) LastSuccessfulEntry(ctx context.Context, tokenID string) (*models.ValidationLogEntry, error) {
	records, err := s.app.FindRecordsByFilter(
		validationLogsCollection,
		"token_id = {:id} && result = 'SUCCESS' && scenario = 'ENTRY'",
		"-timestamp",
		1,
		0,
		dbx.Params{"id": tokenID},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	if len(records) == 0 {
		return nil, status.ErrNoEntries
	}
	entry := recordToEntry(records[0])
	return &entry, nil
}

// AggregateByEvent groups attempts by result, scenario and hour of day at
// query time. Statistics are derived, never stored.
func (s *ValidationLogStore) AggregateByEvent(ctx context.Context, eventID string, from, to time.Time) ([]models.ValidationBucket, error) {
	query := `
		SELECT result, scenario,
			CAST(strftime('%H', timestamp) AS INTEGER) AS hour,
			COUNT(*) AS total
		FROM validation_logs
		WHERE event_id = {:event}`
	params := dbx.Params{"event": eventID}

	if !from.IsZero() {
		query += " AND timestamp >= {:from}"
		params["from"] = from.UTC().Format(types.DefaultDateLayout)
	}
	if !to.IsZero() {
		query += " AND timestamp <= {:to}"
		params["to"] = to.UTC().Format(types.DefaultDateLayout)
	}
	query += " GROUP BY result, scenario, hour"

	var rows []struct {
		Result   string `db:"result"`
		Scenario string `db:"scenario"`
		Hour     int    `db:"hour"`
		Total    int    `db:"total"`
	}
	if err := s.app.DB().NewQuery(query).Bind(params).All(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	buckets := make([]models.ValidationBucket, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, models.ValidationBucket{
			Result:   models.ValidationLogResult(row.Result),
			Scenario: models.ValidationScenario(row.Scenario),
			Hour:     row.Hour,
			Count:    row.Total,
		})
	}
	return buckets, nil
}

func (s *ValidationLogStore) LastValidationTime(ctx context.Context, eventID string) (*time.Time, error) {
	var row struct {
		Last string `db:"last"`
	}
	err := s.app.DB().
		NewQuery("SELECT MAX(timestamp) AS last FROM validation_logs WHERE event_id = {:event}").
		Bind(dbx.Params{"event": eventID}).
		One(&row)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	if row.Last == "" {
		return nil, nil
	}
	dt, err := types.ParseDateTime(row.Last)
	if err != nil {
		return nil, nil
	}
	t := dt.Time()
	return &t, nil
}

func (s *ValidationLogStore) list(filter string, params dbx.Params, limit int) ([]models.ValidationLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	records, err := s.app.FindRecordsByFilter(
		validationLogsCollection,
		filter,
		"-timestamp",
		limit,
		0,
		params,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	entries := make([]models.ValidationLogEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, recordToEntry(record))
	}
	return entries, nil
}

func recordToEntry(record *core.Record) models.ValidationLogEntry {
	return models.ValidationLogEntry{
		ValidationID: record.GetString("validation_id"),
		TokenID:      record.GetString("token_id"),
		BookingID:    record.GetString("booking_id"),
		EventID:      record.GetString("event_id"),
		AttendeeID:   record.GetString("attendee_id"),
		ValidatorID:  record.GetString("validator_id"),
		Result:       models.ValidationLogResult(record.GetString("result")),
		Reason:       record.GetString("reason"),
		Scenario:     models.ValidationScenario(record.GetString("scenario")),
		Timestamp:    record.GetDateTime("timestamp").Time(),
		Location:     record.GetString("location"),
		DeviceInfo:   record.GetString("device_info"),
		Notes:        record.GetString("notes"),
	}
}
