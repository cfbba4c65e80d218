package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ticket-pass/config"
	"ticket-pass/internal/status"
	"ticket-pass/models"
	"ticket-pass/monitoring"
	"ticket-pass/utils"
)

const (
	payloadKeyInfo  = "token-payload-key"
	checksumKeyInfo = "payload-checksum-key"

	// Delimits the plaintext reference URL from the ciphertext in hybrid
	// renderings, so scanners can go online-first with offline fallback.
	hybridDelimiter = "#"

	plainTextVersion = "v1"
)

// IssuanceService owns token creation, the encryption key material and the
// per-format payload encoders. Tokens are immutable once written; replacement
// always means a new token id.
type IssuanceService struct {
	tokens    TokenStore
	directory Directory
	monitor   *monitoring.Monitor
	config    *config.Config

	payloadKey  []byte
	checksumKey []byte
}

type IssueOptions struct {
	Format         models.TokenFormat
	SingleUse      *bool
	MaxValidations int
	Expiry         time.Duration
}

func NewIssuanceService(tokens TokenStore, directory Directory, monitor *monitoring.Monitor, cfg *config.Config) (*IssuanceService, error) {
	if cfg.TokenSecret == "" {
		return nil, errors.New("token secret is not configured")
	}

	payloadKey, err := utils.DeriveKey([]byte(cfg.TokenSecret), payloadKeyInfo, 32)
	if err != nil {
		return nil, err
	}
	checksumKey, err := utils.DeriveKey([]byte(cfg.TokenSecret), checksumKeyInfo, 32)
	if err != nil {
		return nil, err
	}

	return &IssuanceService{
		tokens:      tokens,
		directory:   directory,
		monitor:     monitor,
		config:      cfg,
		payloadKey:  payloadKey,
		checksumKey: checksumKey,
	}, nil
}

// Issue creates a new active token for a confirmed booking. At most one
// active token may exist per booking; callers needing replacement use
// Regenerate.
func (s *IssuanceService) Issue(ctx context.Context, bookingID string, opts IssueOptions) (*models.Token, error) {
	format := opts.Format
	if format == "" {
		format = models.FormatHybrid
	}
	if !format.Valid() {
		return nil, fmt.Errorf("unsupported token format %q", opts.Format)
	}

	singleUse := true
	if opts.SingleUse != nil {
		singleUse = *opts.SingleUse
	}
	maxValidations := opts.MaxValidations
	if maxValidations < 1 {
		maxValidations = 1
	}
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = s.config.TokenExpiry
	}

	booking, err := s.directory.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !booking.Confirmed() {
		return nil, fmt.Errorf("%w: booking %s is %s", status.ErrBookingNotConfirmed, bookingID, booking.Status)
	}

	if _, err := s.tokens.GetActiveByBooking(ctx, bookingID); err == nil {
		return nil, status.ErrTokenAlreadyExists
	} else if !errors.Is(err, status.ErrTokenNotFound) {
		return nil, err
	}

	event, err := s.directory.GetEvent(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}

	code, err := utils.GenerateCode(12)
	if err != nil {
		return nil, err
	}
	id := fmt.Sprintf("tkt_%s", strings.ToLower(code))

	now := time.Now().UTC()
	expiresAt := now.Add(expiry)

	payload := models.TokenPayload{
		BookingID:    booking.ID,
		EventID:      event.ID,
		AttendeeID:   booking.AttendeeID,
		EventName:    event.Name,
		AttendeeName: booking.AttendeeName,
		TicketType:   booking.TicketType,
		Price:        booking.Price,
		ValidFrom:    now,
		ValidUntil:   expiresAt,
	}
	payload.Checksum = utils.Checksum(s.checksumKey, payload.BookingID, payload.EventID, payload.AttendeeID)

	plaintext, err := encodePayload(format, &payload)
	if err != nil {
		return nil, err
	}
	encrypted, err := utils.EncryptPayload(s.payloadKey, plaintext)
	if err != nil {
		return nil, err
	}

	token := &models.Token{
		ID:               id,
		BookingID:        booking.ID,
		EventID:          event.ID,
		AttendeeID:       booking.AttendeeID,
		EncryptedPayload: encrypted,
		ReferenceURL:     fmt.Sprintf("%s/t/%s", s.config.TokenBaseURL, id),
		Format:           format,
		Status:           models.StatusActive,
		SingleUse:        singleUse,
		MaxValidations:   maxValidations,
		CreatedAt:        now,
		ExpiresAt:        expiresAt,
		Metadata: models.TokenMetadata{
			EventName:    event.Name,
			Venue:        event.Venue,
			AttendeeName: booking.AttendeeName,
			TicketType:   booking.TicketType,
			Price:        booking.Price,
		},
	}

	content, err := renderContent(format, token)
	if err != nil {
		return nil, err
	}
	token.RenderableContent = content

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}

	s.monitor.TrackIssued(string(format))
	log.Printf("Issued token %s for booking %s (event %s)", token.ID, booking.ID, event.ID)

	return token, nil
}

// Regenerate revokes the booking's active token, if any, and issues a fresh
// one with the same settings. Used for lost or compromised physical tickets;
// the reason is recorded for audit only.
func (s *IssuanceService) Regenerate(ctx context.Context, bookingID, reason string) (*models.Token, error) {
	opts := IssueOptions{}

	existing, err := s.tokens.GetActiveByBooking(ctx, bookingID)
	switch {
	case err == nil:
		opts.Format = existing.Format
		opts.SingleUse = &existing.SingleUse
		opts.MaxValidations = existing.MaxValidations

		if err := s.tokens.Revoke(ctx, existing.ID); err != nil {
			return nil, err
		}
		s.monitor.TrackRevoked()
		slog.Info("token revoked for regeneration",
			"token_id", existing.ID,
			"booking_id", bookingID,
			"reason", reason,
		)
	case errors.Is(err, status.ErrTokenNotFound):
		// Nothing to revoke; fall through to a plain issue.
	default:
		return nil, err
	}

	return s.Issue(ctx, bookingID, opts)
}

// Revoke is idempotent: revoking an already-revoked or used token is a no-op
// success.
func (s *IssuanceService) Revoke(ctx context.Context, tokenID string) error {
	if err := s.tokens.Revoke(ctx, tokenID); err != nil {
		return err
	}
	s.monitor.TrackRevoked()
	log.Printf("Revoked token %s", tokenID)
	return nil
}

// Activate promotes a pre-issuance staged (pending) token to active.
func (s *IssuanceService) Activate(ctx context.Context, tokenID string) error {
	return s.tokens.Activate(ctx, tokenID)
}

// ExpireSweep transitions every overdue active token to expired. Safe to run
// concurrently with live validations; a token discovered expired during
// validation is authoritative over a stale sweep.
func (s *IssuanceService) ExpireSweep(ctx context.Context) (int, error) {
	expired, err := s.tokens.ExpireBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.monitor.TrackExpired(expired)
		log.Printf("Expiry sweep transitioned %d tokens", expired)
	}
	return expired, nil
}

// Decrypt recovers the payload from an encrypted blob. Authentication or
// structure failures are tamper evidence, not mere format errors.
func (s *IssuanceService) Decrypt(encryptedPayload string) (*models.TokenPayload, error) {
	blob := encryptedPayload
	if idx := strings.Index(blob, hybridDelimiter); idx >= 0 {
		blob = blob[idx+1:]
	}

	plaintext, err := utils.DecryptPayload(s.payloadKey, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrDecryptionFailed, err)
	}

	payload, err := decodePayload(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrInvalidPayload, err)
	}

	if !utils.VerifyChecksum(s.checksumKey, payload.Checksum, payload.BookingID, payload.EventID, payload.AttendeeID) {
		return nil, fmt.Errorf("%w: checksum mismatch", status.ErrInvalidPayload)
	}
	return payload, nil
}

// encodePayload serializes the payload for one format. Every format is
// handled explicitly; a new one cannot silently fall through to a default.
func encodePayload(format models.TokenFormat, p *models.TokenPayload) ([]byte, error) {
	switch format {
	case models.FormatURL, models.FormatStructured, models.FormatHybrid:
		return json.Marshal(p)
	case models.FormatPlainText:
		return []byte(strings.Join([]string{
			plainTextVersion,
			p.BookingID,
			p.EventID,
			p.AttendeeID,
			p.AttendeeName,
			p.EventName,
			p.TicketType,
			p.Price.String(),
			strconv.FormatInt(p.ValidFrom.Unix(), 10),
			strconv.FormatInt(p.ValidUntil.Unix(), 10),
			p.Checksum,
		}, "|")), nil
	default:
		return nil, fmt.Errorf("unsupported token format %q", format)
	}
}

func decodePayload(plaintext []byte) (*models.TokenPayload, error) {
	if len(plaintext) > 0 && plaintext[0] == '{' {
		var payload models.TokenPayload
		if err := json.Unmarshal(plaintext, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	}

	parts := strings.Split(string(plaintext), "|")
	if len(parts) != 11 || parts[0] != plainTextVersion {
		return nil, errors.New("unrecognized payload encoding")
	}

	price, err := decimal.NewFromString(parts[7])
	if err != nil {
		return nil, err
	}
	validFrom, err := strconv.ParseInt(parts[8], 10, 64)
	if err != nil {
		return nil, err
	}
	validUntil, err := strconv.ParseInt(parts[9], 10, 64)
	if err != nil {
		return nil, err
	}

	return &models.TokenPayload{
		BookingID:    parts[1],
		EventID:      parts[2],
		AttendeeID:   parts[3],
		AttendeeName: parts[4],
		EventName:    parts[5],
		TicketType:   parts[6],
		Price:        price,
		ValidFrom:    time.Unix(validFrom, 0).UTC(),
		ValidUntil:   time.Unix(validUntil, 0).UTC(),
		Checksum:     parts[10],
	}, nil
}

// renderContent picks what gets embedded in the physical code for one format.
func renderContent(format models.TokenFormat, t *models.Token) (string, error) {
	switch format {
	case models.FormatURL:
		return t.ReferenceURL, nil
	case models.FormatStructured:
		return t.EncryptedPayload, nil
	case models.FormatPlainText:
		return fmt.Sprintf("TICKET %s | %s | %s | %s",
			t.ID, t.Metadata.EventName, t.Metadata.AttendeeName, t.Metadata.TicketType), nil
	case models.FormatHybrid:
		return t.ReferenceURL + hybridDelimiter + t.EncryptedPayload, nil
	default:
		return "", fmt.Errorf("unsupported token format %q", format)
	}
}
