package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Token configuration
	TokenSecret        string
	TokenBaseURL       string
	TokenExpiry        time.Duration
	MaxBatchSize       int
	ExpirySweepInterval time.Duration

	// Verification code configuration
	VerificationCodeTTL    time.Duration
	VerificationCodeLength int

	// Rate limiting
	ScanRateLimit int

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Tokens
		TokenSecret:         getEnv("TOKEN_SECRET", ""),
		TokenBaseURL:        getEnv("TOKEN_BASE_URL", "https://tickets.example.com"),
		TokenExpiry:         getEnvAsDuration("TOKEN_EXPIRY", "24h"),
		MaxBatchSize:        getEnvAsInt("MAX_BATCH_SIZE", 50),
		ExpirySweepInterval: getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", "5m"),

		// Verification codes
		VerificationCodeTTL:    getEnvAsDuration("VERIFICATION_CODE_TTL", "10m"),
		VerificationCodeLength: getEnvAsInt("VERIFICATION_CODE_LENGTH", 6),

		// Rate limiting
		ScanRateLimit: getEnvAsInt("SCAN_RATE_LIMIT", 120),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
