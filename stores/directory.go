package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticket-pass/internal/status"
	"ticket-pass/models"
)

// RecordDirectory exposes booking and event facts from the PocketBase
// collections. Read-only; the token services never own these records.
type RecordDirectory struct {
	app core.App
}

func NewRecordDirectory(app core.App) *RecordDirectory {
	return &RecordDirectory{app: app}
}

// A missing record is a business fact; any other lookup failure is an
// infrastructure outage and must stay retryable.
func (d *RecordDirectory) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	record, err := d.app.FindRecordById("bookings", bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: booking %s", status.ErrBookingNotConfirmed, bookingID)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	return &models.Booking{
		ID:           record.Id,
		EventID:      record.GetString("event_id"),
		AttendeeID:   record.GetString("attendee_id"),
		AttendeeName: record.GetString("attendee_name"),
		TicketType:   record.GetString("ticket_type"),
		Price:        decimal.NewFromFloat(record.GetFloat("price")),
		Status:       record.GetString("status"),
		CreatedAt:    record.GetDateTime("created").Time(),
	}, nil
}

func (d *RecordDirectory) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	record, err := d.app.FindRecordById("events", eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: event %s", status.ErrEventNotActive, eventID)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	return &models.Event{
		ID:        record.Id,
		Name:      record.GetString("name"),
		Venue:     record.GetString("venue"),
		StartTime: record.GetDateTime("start_time").Time(),
		EndTime:   record.GetDateTime("end_time").Time(),
		Status:    record.GetString("status"),
	}, nil
}
