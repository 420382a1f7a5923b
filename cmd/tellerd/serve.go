package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tellerflow/tellerflow"
	"github.com/tellerflow/tellerflow/internal/config"
	"github.com/tellerflow/tellerflow/internal/logging"
	httpadapter "github.com/tellerflow/tellerflow/pkg/adapters/http"
	"github.com/tellerflow/tellerflow/pkg/adapters/memory"
	redisadapter "github.com/tellerflow/tellerflow/pkg/adapters/redis"
	"github.com/tellerflow/tellerflow/pkg/adapters/sqlite"
	"github.com/tellerflow/tellerflow/pkg/domain"
	"github.com/tellerflow/tellerflow/pkg/gate"
	"github.com/tellerflow/tellerflow/pkg/observability"
	"github.com/tellerflow/tellerflow/pkg/persistence/middleware"
	"github.com/tellerflow/tellerflow/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tellerflow HTTP server",
	Long:  `Starts the orchestration core in server mode, exposing turn processing and the audit trail over a JSON API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger := logging.New(parseLevel(cfg.Logging.Level))

		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)

		orch, cleanup, err := buildOrchestrator(cfg, logger, metrics)
		if err != nil {
			return err
		}
		defer cleanup()

		handler := httpadapter.NewHandler(orch,
			httpadapter.WithLogger(logger),
			httpadapter.WithMetricsGatherer(registry),
		)

		srv := &http.Server{
			Addr:    cfg.Server.Address,
			Handler: handler,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting tellerflow server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete, forcing close", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("failed to stop server: %w", err)
				}
			}
			logger.Info("server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildOrchestrator wires config -> stores -> orchestrator. The returned
// cleanup closes whatever backends were opened.
func buildOrchestrator(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*tellerflow.Orchestrator, func(), error) {
	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("failed to close backend", "err", err)
			}
		}
	}

	opts := []tellerflow.Option{
		tellerflow.WithLogger(logger),
		tellerflow.WithMetrics(metrics),
		tellerflow.WithRateLimits(gate.Limits{
			PerMinute: cfg.RateLimit.PerMinute,
			PerHour:   cfg.RateLimit.PerHour,
			PerDay:    cfg.RateLimit.PerDay,
		}),
		tellerflow.WithMaxSlotAttempts(cfg.Dialogue.MaxSlotAttempts),
		tellerflow.WithExecutorTimeout(cfg.Coordinator.ExecutorTimeout.Std()),
	}

	var sessionStore ports.SessionStore
	switch cfg.Session.Backend {
	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Session.Redis.Address,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		closers = append(closers, client.Close)
		sessionStore = redisadapter.NewSessionStoreFromClient(client,
			redisadapter.WithTTL(cfg.Session.TTL.Std()))
		opts = append(opts, tellerflow.WithLocker(redisadapter.NewLocker(client, "tellerflow:")))
	default:
		sessionStore = memory.NewSessionStore(memory.WithTTL(cfg.Session.TTL.Std()))
	}

	middlewares, err := sessionMiddlewares(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sessionStore = middleware.Chain(sessionStore, middlewares...)

	var auditStore ports.AuditStore
	switch cfg.Audit.Backend {
	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Audit.Redis.Address,
			Password: cfg.Audit.Redis.Password,
			DB:       cfg.Audit.Redis.DB,
		})
		closers = append(closers, client.Close)
		auditStore = redisadapter.NewAuditStoreFromClient(client)
	case "sqlite":
		store, err := sqlite.NewAuditStore(cfg.Audit.SQLitePath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to open sqlite audit store: %w", err)
		}
		closers = append(closers, store.Close)
		auditStore = store
	default:
		auditStore = memory.NewAuditStore()
	}

	registry := domain.NewSchemaRegistry()
	overrides, err := cfg.Dialogue.IntentSchemas()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("invalid intent configuration: %w", err)
	}
	for intent, schema := range overrides {
		registry.Register(intent, schema)
	}
	opts = append(opts, tellerflow.WithSchemaRegistry(registry))

	// Executors are the host's business logic. This reference binary ships
	// echo executors so the pipeline can be exercised end to end.
	for _, intent := range registry.Intents() {
		opts = append(opts, tellerflow.WithExecutor(intent, echoExecutor(intent)))
	}

	return tellerflow.New(sessionStore, auditStore, opts...), cleanup, nil
}

// sessionMiddlewares builds the store wrappers configured for the session
// backend: PII masking first, then encryption at rest.
func sessionMiddlewares(cfg *config.Config) ([]middleware.Middleware, error) {
	var middlewares []middleware.Middleware

	if len(cfg.Session.PIIMaskPatterns) > 0 {
		mask, err := middleware.NewPIIMasking(cfg.Session.PIIMaskPatterns)
		if err != nil {
			return nil, fmt.Errorf("invalid pii configuration: %w", err)
		}
		middlewares = append(middlewares, mask)
	}

	active, fallbacks, err := cfg.Session.EncryptionKeys()
	if err != nil {
		return nil, fmt.Errorf("invalid encryption configuration: %w", err)
	}
	if active != nil {
		enc, err := middleware.NewEncryption(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallbacks,
		})
		if err != nil {
			return nil, fmt.Errorf("invalid encryption configuration: %w", err)
		}
		middlewares = append(middlewares, enc)
	}

	return middlewares, nil
}

func echoExecutor(intent string) ports.Executor {
	return ports.ExecutorFunc(func(ctx context.Context, _ string, slots map[string]any, userID string) (any, error) {
		return map[string]any{
			"intent":  intent,
			"user_id": userID,
			"slots":   slots,
			"at":      time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
}
