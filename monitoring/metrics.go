package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	tokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_tokens_issued_total",
			Help: "Tokens issued, by format",
		},
		[]string{"format"},
	)

	tokensRevoked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_tokens_revoked_total",
			Help: "Tokens revoked",
		},
	)

	tokensExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_tokens_expired_total",
			Help: "Tokens expired by the sweep",
		},
	)

	validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_validations_total",
			Help: "Validation attempts by result and scenario",
		},
		[]string{"result", "scenario"},
	)

	offlineValidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_offline_validations_total",
			Help: "Degraded-trust offline validations",
		},
	)

	validationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admission_validation_duration_seconds",
			Help:    "End-to-end duration of online validations",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	logAppendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "admission_log_append_failures_total",
			Help: "Validation log writes that failed and were routed to alerting",
		},
	)

	liveTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "admission_live_tokens",
			Help: "Tokens currently tracked by the expiry index",
		},
	)
)

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	monitor := &Monitor{redis: redisClient}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()

		count, err := m.redis.ZCard(ctx, "tokens:expiry").Result()
		if err == nil {
			liveTokens.Set(float64(count))
		}
	}
}

func (m *Monitor) TrackIssued(format string) {
	tokensIssued.WithLabelValues(format).Inc()
}

func (m *Monitor) TrackRevoked() {
	tokensRevoked.Inc()
}

func (m *Monitor) TrackExpired(count int) {
	tokensExpired.Add(float64(count))
}

func (m *Monitor) TrackValidation(result, scenario string, duration time.Duration) {
	validations.WithLabelValues(result, scenario).Inc()
	validationDuration.Observe(duration.Seconds())
}

func (m *Monitor) TrackOfflineValidation() {
	offlineValidations.Inc()
}

func (m *Monitor) TrackLogAppendFailure() {
	logAppendFailures.Inc()
}
