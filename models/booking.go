package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const BookingStatusConfirmed = "confirmed"

// Booking facts are read-only inputs owned by the booking collaborator.
type Booking struct {
	ID           string          `json:"id"`
	EventID      string          `json:"event_id"`
	AttendeeID   string          `json:"attendee_id"`
	AttendeeName string          `json:"attendee_name"`
	TicketType   string          `json:"ticket_type"`
	Price        decimal.Decimal `json:"price"`
	Status       string          `json:"status"` // pending, confirmed, cancelled
	CreatedAt    time.Time       `json:"created_at"`
}

func (b *Booking) Confirmed() bool {
	return b.Status == BookingStatusConfirmed
}
