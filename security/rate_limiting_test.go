package security

import (
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestIsSuspiciousUserAgent(t *testing.T) {
	assert.True(t, isSuspiciousUserAgent("Googlebot/2.1"))
	assert.True(t, isSuspiciousUserAgent("my-crawler/1.0"))
	assert.True(t, isSuspiciousUserAgent("WebSpider"))
	assert.True(t, isSuspiciousUserAgent("site-scraper"))

	assert.False(t, isSuspiciousUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)"))
	assert.False(t, isSuspiciousUserAgent("gate-scanner-app/3.2"))
	assert.False(t, isSuspiciousUserAgent(""))
}

func TestNewRateLimiter_DefaultLimit(t *testing.T) {
	db, _ := redismock.NewClientMock()

	limiter := NewRateLimiter(db, 0)
	assert.Equal(t, 120, limiter.perMinute)

	limiter = NewRateLimiter(db, 60)
	assert.Equal(t, 60, limiter.perMinute)
}
