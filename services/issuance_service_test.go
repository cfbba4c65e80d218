package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-pass/config"
	"ticket-pass/internal/status"
	"ticket-pass/models"
	"ticket-pass/monitoring"
)

func testConfig() *config.Config {
	return &config.Config{
		TokenSecret:            "test-master-secret",
		TokenBaseURL:           "https://tickets.example.com",
		TokenExpiry:            24 * time.Hour,
		MaxBatchSize:           50,
		VerificationCodeTTL:    10 * time.Minute,
		VerificationCodeLength: 6,
	}
}

func testMonitor() *monitoring.Monitor {
	db, _ := redismock.NewClientMock()
	return monitoring.NewMonitor(db)
}

func setupIssuanceTest(t *testing.T) (*IssuanceService, *fakeTokenStore, *fakeDirectory) {
	t.Helper()

	tokens := newFakeTokenStore()
	directory := newFakeDirectory()
	directory.bookings["bkg_1"] = &models.Booking{
		ID:           "bkg_1",
		EventID:      "evt_1",
		AttendeeID:   "att_1",
		AttendeeName: "Alex Doe",
		TicketType:   "VIP",
		Price:        decimal.NewFromInt(150),
		Status:       models.BookingStatusConfirmed,
	}
	directory.events["evt_1"] = &models.Event{
		ID:        "evt_1",
		Name:      "Summer Concert",
		Venue:     "Main Hall",
		StartTime: time.Now().UTC().Add(-time.Hour),
		EndTime:   time.Now().UTC().Add(6 * time.Hour),
		Status:    "started",
	}

	service, err := NewIssuanceService(tokens, directory, testMonitor(), testConfig())
	require.NoError(t, err)

	return service, tokens, directory
}

func TestIssuanceService_Issue_Defaults(t *testing.T) {
	service, tokens, _ := setupIssuanceTest(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, "bkg_1", IssueOptions{})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token.ID, "tkt_"))
	assert.Equal(t, models.FormatHybrid, token.Format)
	assert.Equal(t, models.StatusActive, token.Status)
	assert.True(t, token.SingleUse)
	assert.Equal(t, 1, token.MaxValidations)
	assert.Equal(t, 0, token.ValidationCount)
	assert.Equal(t, "https://tickets.example.com/t/"+token.ID, token.ReferenceURL)
	assert.True(t, strings.HasPrefix(token.RenderableContent, token.ReferenceURL+"#"))
	assert.Equal(t, "Summer Concert", token.Metadata.EventName)
	assert.WithinDuration(t, token.CreatedAt.Add(24*time.Hour), token.ExpiresAt, time.Second)

	stored, err := tokens.GetByID(ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, token.EncryptedPayload, stored.EncryptedPayload)
}

func TestIssuanceService_Issue_UnconfirmedBooking(t *testing.T) {
	service, _, directory := setupIssuanceTest(t)
	directory.bookings["bkg_1"].Status = "pending"

	_, err := service.Issue(context.Background(), "bkg_1", IssueOptions{})

	assert.ErrorIs(t, err, status.ErrBookingNotConfirmed)
}

func TestIssuanceService_Issue_UnknownBooking(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)

	_, err := service.Issue(context.Background(), "missing", IssueOptions{})

	assert.ErrorIs(t, err, status.ErrBookingNotConfirmed)
}

func TestIssuanceService_Issue_DuplicateActiveToken(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)
	ctx := context.Background()

	_, err := service.Issue(ctx, "bkg_1", IssueOptions{})
	require.NoError(t, err)

	_, err = service.Issue(ctx, "bkg_1", IssueOptions{})
	assert.ErrorIs(t, err, status.ErrTokenAlreadyExists)
}

func TestIssuanceService_Issue_UnsupportedFormat(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)

	_, err := service.Issue(context.Background(), "bkg_1", IssueOptions{Format: "carrier_pigeon"})

	assert.Error(t, err)
}

func TestIssuanceService_Issue_MultiUseOptions(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)
	multiUse := false

	token, err := service.Issue(context.Background(), "bkg_1", IssueOptions{
		Format:         models.FormatStructured,
		SingleUse:      &multiUse,
		MaxValidations: 5,
		Expiry:         2 * time.Hour,
	})

	require.NoError(t, err)
	assert.False(t, token.SingleUse)
	assert.Equal(t, 5, token.MaxValidations)
	assert.Equal(t, token.EncryptedPayload, token.RenderableContent)
	assert.WithinDuration(t, token.CreatedAt.Add(2*time.Hour), token.ExpiresAt, time.Second)
}

func TestIssuanceService_Decrypt_RoundTrip(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)

	for _, format := range []models.TokenFormat{
		models.FormatURL, models.FormatStructured, models.FormatPlainText, models.FormatHybrid,
	} {
		t.Run(string(format), func(t *testing.T) {
			tokens := newFakeTokenStore()
			svc := service
			svc.tokens = tokens

			token, err := svc.Issue(context.Background(), "bkg_1", IssueOptions{Format: format})
			require.NoError(t, err)

			payload, err := svc.Decrypt(token.EncryptedPayload)
			require.NoError(t, err)
			assert.Equal(t, "bkg_1", payload.BookingID)
			assert.Equal(t, "evt_1", payload.EventID)
			assert.Equal(t, "att_1", payload.AttendeeID)
			assert.Equal(t, "Summer Concert", payload.EventName)
			assert.True(t, payload.Price.Equal(decimal.NewFromInt(150)))
			assert.NotEmpty(t, payload.Checksum)
		})
	}
}

func TestIssuanceService_Decrypt_HybridContent(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)

	token, err := service.Issue(context.Background(), "bkg_1", IssueOptions{Format: models.FormatHybrid})
	require.NoError(t, err)

	// The rendered hybrid content carries the URL prefix; Decrypt strips it.
	payload, err := service.Decrypt(token.RenderableContent)
	require.NoError(t, err)
	assert.Equal(t, "bkg_1", payload.BookingID)
}

func TestIssuanceService_Decrypt_Tampered(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)

	token, err := service.Issue(context.Background(), "bkg_1", IssueOptions{})
	require.NoError(t, err)

	parts := strings.Split(token.EncryptedPayload, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1][:len(parts[1])-2] + "ff" + "." + parts[2]

	_, err = service.Decrypt(tampered)
	assert.ErrorIs(t, err, status.ErrDecryptionFailed)
}

func TestIssuanceService_Regenerate(t *testing.T) {
	service, tokens, _ := setupIssuanceTest(t)
	ctx := context.Background()

	multiUse := false
	original, err := service.Issue(ctx, "bkg_1", IssueOptions{
		SingleUse:      &multiUse,
		MaxValidations: 3,
	})
	require.NoError(t, err)

	replacement, err := service.Regenerate(ctx, "bkg_1", "lost ticket")
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, replacement.ID)
	assert.False(t, replacement.SingleUse)
	assert.Equal(t, 3, replacement.MaxValidations)
	assert.NotEqual(t, original.EncryptedPayload, replacement.EncryptedPayload)

	old, err := tokens.GetByID(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevoked, old.Status)
}

func TestIssuanceService_Regenerate_NoExistingToken(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)

	token, err := service.Regenerate(context.Background(), "bkg_1", "never issued")

	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, token.Status)
}

func TestIssuanceService_Revoke_Idempotent(t *testing.T) {
	service, _, _ := setupIssuanceTest(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, "bkg_1", IssueOptions{})
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, token.ID))
	require.NoError(t, service.Revoke(ctx, token.ID))
}

func TestIssuanceService_ExpireSweep(t *testing.T) {
	service, tokens, _ := setupIssuanceTest(t)
	ctx := context.Background()

	token, err := service.Issue(ctx, "bkg_1", IssueOptions{})
	require.NoError(t, err)

	tokens.mu.Lock()
	tokens.tokens[token.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)
	tokens.mu.Unlock()

	expired, err := service.ExpireSweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	stored, err := tokens.GetByID(ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, stored.Status)
}

func TestNewIssuanceService_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.TokenSecret = ""

	_, err := NewIssuanceService(newFakeTokenStore(), newFakeDirectory(), testMonitor(), cfg)

	assert.Error(t, err)
}
