package services

import (
	"context"
	"sync"
	"time"

	"ticket-pass/internal/status"
	"ticket-pass/models"
)

// fakeTokenStore mirrors the Redis store's conditional-update semantics in
// memory, including the atomicity of the read-check-increment sequence.
type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.Token
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]*models.Token)}
}

func (f *fakeTokenStore) Create(ctx context.Context, t *models.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.tokens {
		if existing.BookingID == t.BookingID &&
			(existing.Status == models.StatusActive || existing.Status == models.StatusPending) {
			return status.ErrTokenAlreadyExists
		}
	}

	clone := *t
	f.tokens[t.ID] = &clone
	return nil
}

func (f *fakeTokenStore) GetByID(ctx context.Context, id string) (*models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tokens[id]
	if !ok {
		return nil, status.ErrTokenNotFound
	}
	clone := *t
	return &clone, nil
}

func (f *fakeTokenStore) GetActiveByBooking(ctx context.Context, bookingID string) (*models.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.tokens {
		if t.BookingID == bookingID &&
			(t.Status == models.StatusActive || t.Status == models.StatusPending) {
			clone := *t
			return &clone, nil
		}
	}
	return nil, status.ErrTokenNotFound
}

func (f *fakeTokenStore) ConditionalValidate(ctx context.Context, t *models.Token, validatorID string, now time.Time) (models.ValidateOutcome, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.tokens[t.ID]
	if !ok {
		return models.OutcomeNotFound, 0, nil
	}

	switch stored.Status {
	case models.StatusUsed:
		return models.OutcomeAlreadyUsed, stored.ValidationCount, nil
	case models.StatusRevoked:
		return models.OutcomeRevoked, stored.ValidationCount, nil
	case models.StatusExpired:
		return models.OutcomeExpired, stored.ValidationCount, nil
	case models.StatusPending:
		return models.OutcomePending, stored.ValidationCount, nil
	}

	if now.After(stored.ExpiresAt) {
		stored.Status = models.StatusExpired
		return models.OutcomeExpired, stored.ValidationCount, nil
	}
	if stored.ValidationCount >= stored.MaxValidations {
		return models.OutcomeLimitExceeded, stored.ValidationCount, nil
	}
	if stored.SingleUse && stored.ValidationCount > 0 {
		return models.OutcomeAlreadyUsed, stored.ValidationCount, nil
	}

	stored.ValidationCount++
	stored.UsedBy = validatorID
	at := now
	stored.LastValidatedAt = &at
	if stored.ValidationCount == 1 {
		stored.UsedAt = &at
	}
	if stored.SingleUse {
		stored.Status = models.StatusUsed
	}
	return models.OutcomeSuccess, stored.ValidationCount, nil
}

func (f *fakeTokenStore) Revoke(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tokens[id]
	if !ok {
		return status.ErrTokenNotFound
	}
	if !t.Status.Terminal() {
		t.Status = models.StatusRevoked
	}
	return nil
}

func (f *fakeTokenStore) Activate(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	t, ok := f.tokens[id]
	if !ok {
		return status.ErrTokenNotFound
	}
	if t.Status == models.StatusPending {
		t.Status = models.StatusActive
	}
	return nil
}

func (f *fakeTokenStore) ExpireBefore(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	expired := 0
	for _, t := range f.tokens {
		if t.Status == models.StatusActive && t.ExpiresAt.Before(now) {
			t.Status = models.StatusExpired
			expired++
		}
	}
	return expired, nil
}

type fakeLogStore struct {
	mu      sync.Mutex
	entries []models.ValidationLogEntry
	buckets []models.ValidationBucket
	lastAt  *time.Time
	failErr error
}

func (f *fakeLogStore) Append(ctx context.Context, entry *models.ValidationLogEntry) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLogStore) byFilter(match func(models.ValidationLogEntry) bool) []models.ValidationLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.ValidationLogEntry
	for _, e := range f.entries {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeLogStore) ListByToken(ctx context.Context, tokenID string, limit int) ([]models.ValidationLogEntry, error) {
	return f.byFilter(func(e models.ValidationLogEntry) bool { return e.TokenID == tokenID }), nil
}

func (f *fakeLogStore) ListByEvent(ctx context.Context, eventID string, limit int) ([]models.ValidationLogEntry, error) {
	return f.byFilter(func(e models.ValidationLogEntry) bool { return e.EventID == eventID }), nil
}

func (f *fakeLogStore) ListByValidator(ctx context.Context, validatorID string, limit int) ([]models.ValidationLogEntry, error) {
	return f.byFilter(func(e models.ValidationLogEntry) bool { return e.ValidatorID == validatorID }), nil
}

func (f *fakeLogStore) LastSuccessfulEntry(ctx context.Context, tokenID string) (*models.ValidationLogEntry, error) {
	entries := f.byFilter(func(e models.ValidationLogEntry) bool {
		return e.TokenID == tokenID && e.Result == models.LogResultSuccess && e.Scenario == models.ScenarioEntry
	})
	if len(entries) == 0 {
		return nil, status.ErrNoEntries
	}
	last := entries[len(entries)-1]
	return &last, nil
}

func (f *fakeLogStore) AggregateByEvent(ctx context.Context, eventID string, from, to time.Time) ([]models.ValidationBucket, error) {
	return f.buckets, nil
}

func (f *fakeLogStore) LastValidationTime(ctx context.Context, eventID string) (*time.Time, error) {
	if f.lastAt == nil {
		return nil, nil
	}
	return f.lastAt, nil
}

type fakeDirectory struct {
	bookings   map[string]*models.Booking
	events     map[string]*models.Event
	bookingErr error
	eventErr   error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		bookings: make(map[string]*models.Booking),
		events:   make(map[string]*models.Event),
	}
}

func (f *fakeDirectory) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	if f.bookingErr != nil {
		return nil, f.bookingErr
	}
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, status.ErrBookingNotConfirmed
	}
	return b, nil
}

func (f *fakeDirectory) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	if f.eventErr != nil {
		return nil, f.eventErr
	}
	e, ok := f.events[eventID]
	if !ok {
		return nil, status.ErrEventNotActive
	}
	return e, nil
}

type alertRecord struct {
	channel string
	kind    string
	detail  map[string]any
}

type fakeAlerts struct {
	mu      sync.Mutex
	records []alertRecord
}

func (f *fakeAlerts) record(channel, kind string, detail map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, alertRecord{channel: channel, kind: kind, detail: detail})
}

func (f *fakeAlerts) SecurityAlert(ctx context.Context, kind string, detail map[string]any) {
	f.record("security", kind, detail)
}

func (f *fakeAlerts) OpsAlert(ctx context.Context, kind string, detail map[string]any) {
	f.record("ops", kind, detail)
}

func (f *fakeAlerts) NotifyGate(ctx context.Context, eventID string, message map[string]any) {
	f.record("gate:"+eventID, "gate_update", message)
}

func (f *fakeAlerts) byChannel(channel string) []alertRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []alertRecord
	for _, r := range f.records {
		if r.channel == channel {
			out = append(out, r)
		}
	}
	return out
}
