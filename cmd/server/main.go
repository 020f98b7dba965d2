package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/tenantonboard/internal/domain"
	"github.com/yourorg/tenantonboard/internal/featureflags"
	"github.com/yourorg/tenantonboard/internal/handler"
	"github.com/yourorg/tenantonboard/internal/infrastructure/logger"
	"github.com/yourorg/tenantonboard/internal/infrastructure/redis"
	"github.com/yourorg/tenantonboard/internal/ledger"
	"github.com/yourorg/tenantonboard/internal/notify"
	"github.com/yourorg/tenantonboard/internal/observability/metrics"
	"github.com/yourorg/tenantonboard/internal/observability/tracing"
	"github.com/yourorg/tenantonboard/internal/repository"
	"github.com/yourorg/tenantonboard/internal/security/audit"
	"github.com/yourorg/tenantonboard/internal/security/middleware"
	"github.com/yourorg/tenantonboard/internal/security/ratelimit"
	"github.com/yourorg/tenantonboard/internal/service"
	"github.com/yourorg/tenantonboard/internal/token"
	"github.com/yourorg/tenantonboard/internal/worker"
	"github.com/yourorg/tenantonboard/pkg/config"
	"github.com/yourorg/tenantonboard/pkg/database"
)

const serviceName = "tenant-onboard"

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting tenant onboarding server", slog.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// 4. Postgres
	pool, err := database.Open(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	prospectusRepo := repository.NewPostgresProspectusRepository(pool.DB(), log)
	if err := prospectusRepo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	// 5. Verification ledger store
	store, pingLedger, closeLedger, err := openLedgerStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()
	verificationLedger := ledger.New(store, log)

	// 6. Token codec
	codec, err := token.NewCodec(cfg.HMACSecretKey)
	if err != nil {
		return fmt.Errorf("init token codec: %w", err)
	}

	// 7. Background work and outbound mail
	tasks := worker.NewTaskQueue(cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.TaskTimeout, log)
	tasks.Start()

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(tasks, notifier, log)

	// 8. Promotion engine
	legacyGate := featureflags.Enabled(featureflags.LegacyVerificationGate)
	if legacyGate {
		log.Warn("legacy verification gate enabled", slog.String("flag", featureflags.LegacyVerificationGate))
	}
	promotion := service.NewPromotionService(
		prospectusRepo,
		codec,
		verificationLedger,
		dispatcher,
		tasks,
		audit.NewLogger(log),
		log,
		service.PromotionConfig{
			TokenTTL:               cfg.TokenTTL(),
			SSOMFAURL:              cfg.SSOMFAURL,
			Sender:                 cfg.MailSenderNoreply,
			AutoPromote:            cfg.AutoPromoteOnCreate,
			LegacyVerificationGate: legacyGate,
		},
	)

	// 9. HTTP routes
	verifyLimiter := ratelimit.NewLimiter(cfg.VerifyRateLimit, cfg.VerifyRateWindow)
	defer verifyLimiter.Stop()

	mux := http.NewServeMux()
	handler.NewProspectusHandler(promotion, log).Register(mux, cfg.APIPrefix,
		middleware.RateLimitByPathUUID(verifyLimiter, "id", log))
	handler.NewHealthHandler(log,
		handler.Check{Name: "postgres", Ping: pool.Health},
		handler.Check{Name: "ledger", Ping: pingLedger},
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Request ID -> logging -> recover -> CORS -> content type -> tracing -> metrics -> routes.
	// Metrics sits directly on the mux so it sees the matched pattern.
	root := middleware.Chain(metrics.HTTPMetricsMiddleware(mux),
		middleware.RequestID,
		middleware.Logging(log),
		middleware.Recover(log),
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.ValidateJSONContentType(log),
		func(next http.Handler) http.Handler { return otelhttp.NewHandler(next, serviceName) },
	)

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("api_prefix", cfg.APIPrefix),
		slog.String("ledger_backend", cfg.LedgerBackend),
		slog.Bool("auto_promote", cfg.AutoPromoteOnCreate),
		slog.Int("verify_rate_limit", cfg.VerifyRateLimit),
		slog.Duration("verify_rate_window", cfg.VerifyRateWindow),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	// Drain queued mail and auto-promotions before the stores close.
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		log.Error("task queue shutdown error", slog.String("error", err.Error()))
	}
	return nil
}

// openLedgerStore returns the configured ledger store with its readiness
// check and closer.
func openLedgerStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (ledger.Store, func(context.Context) error, func(), error) {
	switch cfg.LedgerBackend {
	case config.LedgerBackendMemory:
		log.Warn("using in-process verification ledger; tokens do not survive restarts or span replicas")
		store := ledger.NewMemoryStore()
		sweepCtx, stopSweep := context.WithCancel(ctx)
		go worker.NewSweeper(store, time.Minute, log).Start(sweepCtx)
		return store, store.Ping, stopSweep, nil
	default:
		client, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect ledger store: %w", err)
		}
		return client, client.Ping, func() { _ = client.Close() }, nil
	}
}

func newNotifier(cfg *config.Config, log *slog.Logger) (domain.Notifier, error) {
	if cfg.SMTP.Host == "" {
		log.Warn("SMTP_HOST not set; activation mail is logged instead of sent")
		return notify.NewLogNotifier(log), nil
	}
	mailer, err := notify.NewSMTPMailer(cfg.SMTP, log)
	if err != nil {
		return nil, fmt.Errorf("init smtp mailer: %w", err)
	}
	return mailer, nil
}
