package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ticket-pass/config"
	"ticket-pass/internal/status"
	"ticket-pass/utils"
)

var ErrCodeInvalid = errors.New("verification: code invalid or expired")

// VerificationService stores email/SMS verification codes in Redis with TTL
// eviction, so codes survive process restarts and multi-instance deployment.
type VerificationService struct {
	Redis  *redis.Client
	config *config.Config
}

func NewVerificationService(redisClient *redis.Client, cfg *config.Config) *VerificationService {
	return &VerificationService{Redis: redisClient, config: cfg}
}

func codeKey(channel, recipient string) string {
	return fmt.Sprintf("verify:%s:%s", channel, recipient)
}

// IssueCode generates a fresh one-time code for a recipient. Re-issuing
// replaces any previous code and restarts its TTL.
func (s *VerificationService) IssueCode(ctx context.Context, channel, recipient string) (string, error) {
	code, err := utils.GenerateOTP(s.config.VerificationCodeLength)
	if err != nil {
		return "", err
	}

	ttl := s.config.VerificationCodeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	if err := s.Redis.Set(ctx, codeKey(channel, recipient), code, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return code, nil
}

// ConsumeCode verifies and deletes a code in one step; a code can only be
// used once.
func (s *VerificationService) ConsumeCode(ctx context.Context, channel, recipient, code string) error {
	stored, err := s.Redis.GetDel(ctx, codeKey(channel, recipient)).Result()
	if err == redis.Nil {
		return ErrCodeInvalid
	} else if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	if stored != code {
		return ErrCodeInvalid
	}
	return nil
}
