package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("alerts")

	assert.Equal(t, "alerts", cb.name)
	assert.Equal(t, uint32(100), cb.maxRequests)
	assert.Equal(t, 60*time.Second, cb.interval)
	assert.Equal(t, 60*time.Second, cb.timeout)
	assert.Equal(t, 0.6, cb.failureRatio)
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_Execute_CountsOutcomes(t *testing.T) {
	cb := NewCircuitBreaker("alerts")
	ctx := context.Background()

	result, err := cb.Execute(ctx, func() (interface{}, error) {
		return "published", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "published", result)

	_, err = cb.Execute(ctx, func() (interface{}, error) {
		return nil, errors.New("pubnub unreachable")
	})
	assert.Error(t, err)

	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	assert.Equal(t, uint32(2), cb.counts.Requests)
	assert.Equal(t, uint32(1), cb.counts.TotalSuccesses)
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
	assert.Equal(t, uint32(1), cb.counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), cb.counts.ConsecutiveSuccesses)
}

func TestCircuitBreaker_TripsOpenAndRejects(t *testing.T) {
	cb := NewCircuitBreaker("alerts")
	cb.maxRequests = 4
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := cb.Execute(ctx, func() (interface{}, error) {
			return nil, errors.New("pubnub unreachable")
		})
		assert.EqualError(t, err, "pubnub unreachable")
	}

	cb.mutex.RLock()
	state := cb.state
	cb.mutex.RUnlock()
	assert.Equal(t, StateOpen, state)

	// An open breaker sheds the call without running it.
	called := false
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.EqualError(t, err, "circuit breaker is open")
	assert.False(t, called)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("alerts")
	cb.maxRequests = 2
	cb.timeout = 50 * time.Millisecond
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		cb.Execute(ctx, func() (interface{}, error) {
			return nil, errors.New("pubnub unreachable")
		})
	}

	cb.mutex.RLock()
	assert.Equal(t, StateOpen, cb.state)
	cb.mutex.RUnlock()

	time.Sleep(60 * time.Millisecond)

	// First success after the timeout closes the breaker again.
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		return "published", nil
	})
	require.NoError(t, err)

	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	assert.Equal(t, StateClosed, cb.state)
}

func TestCircuitBreaker_ReadyToTrip(t *testing.T) {
	tests := []struct {
		name     string
		requests uint32
		failures uint32
		want     bool
	}{
		{"below request floor", 50, 50, false},
		{"ratio below threshold", 100, 59, false},
		{"ratio at threshold", 100, 60, true},
		{"all failing", 100, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker("alerts")
			cb.counts = Counts{Requests: tt.requests, TotalFailures: tt.failures}
			assert.Equal(t, tt.want, cb.readyToTrip())
		})
	}
}

func TestCircuitBreaker_PanicPropagates(t *testing.T) {
	cb := NewCircuitBreaker("alerts")
	ctx := context.Background()

	assert.Panics(t, func() {
		cb.Execute(ctx, func() (interface{}, error) {
			panic("publisher blew up")
		})
	})

	// The panicked call is recorded as a failure and the breaker stays usable.
	cb.mutex.RLock()
	assert.Equal(t, uint32(1), cb.counts.TotalFailures)
	cb.mutex.RUnlock()

	_, err := cb.Execute(ctx, func() (interface{}, error) {
		return "published", nil
	})
	assert.NoError(t, err)
}

func TestCircuitBreaker_ConcurrentExecute(t *testing.T) {
	cb := NewCircuitBreaker("alerts")
	ctx := context.Background()

	const calls = 50
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cb.Execute(ctx, func() (interface{}, error) {
				return nil, nil
			})
		}()
	}
	wg.Wait()

	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	assert.Equal(t, uint32(calls), cb.counts.Requests)
	assert.Equal(t, uint32(calls), cb.counts.TotalSuccesses)
}

func TestRedisHealthCheck(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	mock.ExpectPing().SetVal("PONG")

	assert.NoError(t, RedisHealthCheck(db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisHealthCheck_Unreachable(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	mock.ExpectPing().SetErr(errors.New("connection refused"))

	err := RedisHealthCheck(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis health check failed")
}
