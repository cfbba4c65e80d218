package models

import (
	"time"
)

// Event facts are read-only inputs owned by the event collaborator.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Venue     string    `json:"venue"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"` // draft, published, started, ended, cancelled
}

// ActiveAt reports whether the event's admission window contains t.
func (e *Event) ActiveAt(t time.Time) bool {
	if e.Status == "cancelled" || e.Status == "draft" {
		return false
	}
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}
