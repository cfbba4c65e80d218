package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"ticket-pass/config"
	"ticket-pass/handlers"
	"ticket-pass/monitoring"
	"ticket-pass/security"
	"ticket-pass/services"
	"ticket-pass/stores"
	"ticket-pass/utils"

	_ "ticket-pass/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize monitoring
	monitor := monitoring.NewMonitor(redisClient)
	alerts := monitoring.NewAlertPublisher(pn)

	// Initialize stores
	tokenStore := stores.NewTokenStore(redisClient)
	logStore := stores.NewValidationLogStore(app)
	directory := stores.NewRecordDirectory(app)

	// Initialize services
	issuanceService, err := services.NewIssuanceService(tokenStore, directory, monitor, cfg)
	if err != nil {
		return err
	}
	validationService := services.NewValidationService(tokenStore, logStore, directory, issuanceService, alerts, monitor, cfg)
	verificationService := services.NewVerificationService(redisClient, cfg)

	// Initialize handlers
	tokenHandler := handlers.NewTokenHandler(app, issuanceService, tokenStore)
	validationHandler := handlers.NewValidationHandler(app, validationService)
	verificationHandler := handlers.NewVerificationHandler(app, verificationService)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.ScanRateLimit)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	go runExpirySweep(ctx, issuanceService, cfg.ExpirySweepInterval)

	// Metrics endpoint on its own port, separate from the API surface
	if cfg.EnableMetrics {
		go serveMetrics(cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		scanLimit := rateLimiter.ScanRateLimit()
		antiBot := rateLimiter.AntiBotMiddleware()

		// Token endpoints
		e.Router.POST("/api/v1/tokens", tokenHandler.IssueToken)
		e.Router.POST("/api/v1/tokens/regenerate", tokenHandler.RegenerateToken)
		e.Router.GET("/api/v1/tokens/{tokenId}", tokenHandler.GetToken)
		e.Router.POST("/api/v1/tokens/{tokenId}/revoke", tokenHandler.RevokeToken)
		e.Router.POST("/api/v1/tokens/{tokenId}/activate", tokenHandler.ActivateToken)

		// Validation endpoints
		e.Router.POST("/api/v1/validations", validationHandler.ValidateToken).BindFunc(scanLimit)
		e.Router.POST("/api/v1/validations/check-in", validationHandler.CheckIn).BindFunc(scanLimit)
		e.Router.POST("/api/v1/validations/check-out", validationHandler.CheckOut).BindFunc(scanLimit)
		e.Router.POST("/api/v1/validations/batch", validationHandler.ValidateBatch).BindFunc(scanLimit)
		e.Router.POST("/api/v1/validations/offline", validationHandler.ValidateOffline).BindFunc(antiBot)

		// Audit and reporting endpoints
		e.Router.GET("/api/v1/validations/history/{tokenId}", validationHandler.GetValidationHistory)
		e.Router.GET("/api/v1/events/{eventId}/validations", validationHandler.GetEventValidations)
		e.Router.GET("/api/v1/events/{eventId}/statistics", validationHandler.GetEventStatistics)
		e.Router.GET("/api/v1/validators/{validatorId}/activity", validationHandler.GetValidatorActivity)

		// Verification code endpoints
		e.Router.POST("/api/v1/verification/send", verificationHandler.SendCode)
		e.Router.POST("/api/v1/verification/verify", verificationHandler.VerifyCode)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// runExpirySweep periodically transitions overdue active tokens to expired.
// Validation still treats expiry as a derived check, so a missed sweep never
// admits a stale ticket.
func runExpirySweep(ctx context.Context, issuance *services.IssuanceService, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := issuance.ExpireSweep(ctx); err != nil {
				slog.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Printf("Metrics server listening on :%s", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
