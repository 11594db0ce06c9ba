package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/api"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/config"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/edi"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/engine"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/queue"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/scheduler"
	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/store"
	ws "github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Insurer registry, validated up front so a bad table fails startup.
	registry, err := domain.NewInsurerRegistry(domain.DefaultInsurers())
	if err != nil {
		logger.Error("invalid insurer configuration", "error", err)
		os.Exit(1)
	}

	// Claim and audit storage. Without a database URL both fall back to
	// in-memory stores, which is enough for sandbox development.
	var (
		claims store.ClaimStore
		audit  store.AuditStore
	)
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()

		if err := pg.RunMigrations(ctx, "migrations"); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to PostgreSQL, migrations applied")
		claims, audit = pg, pg
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory claim and audit stores")
		claims = store.NewMemoryClaimStore()
		audit = store.NewMemoryAuditStore()
	}

	sandbox := cfg.Sandbox()
	gateway := edi.NewGateway(edi.GatewayConfig{
		Sandbox:       sandbox,
		Strict:        cfg.StrictIsolation,
		AllowPrefixes: cfg.AllowedHostPrefixes,
		DenyDomains:   domain.ProductionDomains(),
		Latency:       cfg.SimLatency,
		Jitter:        cfg.SimJitter,
		ErrorRate:     cfg.SimErrorRate,
	}, logger.With("component", "gateway"))

	envTag := "sandbox"
	idPrefix := cfg.SandboxIDPrefix
	if !sandbox {
		envTag = "production"
		idPrefix = "MCH"
	}
	mockgen := edi.NewMockResponseGenerator(idPrefix, envTag, logger.With("component", "mockgen"))
	connectors := edi.NewConnectorSet(registry, cfg.ConnectorTimeout, logger.With("component", "connectors"))

	router := edi.NewRouter(edi.RouterConfig{
		Sandbox:             sandbox,
		ProductionConfirmed: cfg.ProductionConfirmed,
		Timeout:             cfg.ConnectorTimeout,
	}, registry, gateway, mockgen, connectors, audit, logger.With("component", "router"))

	logger.Info("EDI router initialized", "mode", map[bool]string{true: "sandbox", false: "production"}[sandbox])

	hub := ws.NewHub(logger.With("component", "websocket"))
	go hub.Run()

	jobStore := store.NewFileJobStore(cfg.JobStorePath, logger.With("component", "jobstore"))

	q := queue.New(queue.Options{
		MaxAttempts:  cfg.MaxAttempts,
		BaseDelay:    cfg.RetryBaseDelay,
		MaxDelay:     cfg.RetryMaxDelay,
		PollInterval: cfg.QueuePollInterval,
	}, router, claims, audit, jobStore, logger.With("component", "queue")).WithHub(hub)

	if cfg.RedisURL != "" {
		rs, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		logger.Info("connected to Redis")

		q.WithBreaker(engine.NewInsurerBreaker(rs.Client(), logger.With("component", "breaker")))
		if cfg.InsurerRateLimit > 0 {
			q.WithLimiter(engine.NewInsurerLimiter(rs.Client(), logger.With("component", "limiter")), cfg.InsurerRateLimit)
		}
	}

	if err := q.Recover(time.Now().UTC()); err != nil {
		logger.Error("failed to recover job store", "error", err)
		os.Exit(1)
	}
	go q.Start(ctx)

	// Independent periodic tasks: one status poll per rail, plus cleanup.
	poller := scheduler.NewStatusPoller(registry, router, claims, audit, logger.With("component", "poller"))
	sched := scheduler.New(logger.With("component", "scheduler"))
	sched.Add("poll-eclaims", cfg.StatusPollInterval, poller.PollRail(domain.RailEClaims))
	sched.Add("poll-dental-network", cfg.StatusPollInterval*2, poller.PollRail(domain.RailDentalNetwork))
	sched.Add("poll-portal", cfg.StatusPollInterval*3, poller.PollRail(domain.RailPortalUpload))
	sched.Add("cleanup-jobs", cfg.CleanupInterval, func(ctx context.Context) error {
		removed := q.PurgeTerminal(cfg.JobRetention)
		if removed > 0 {
			logger.Info("purged terminal jobs", "removed", removed)
		}
		return nil
	})
	sched.Start(ctx)

	handler := api.NewRouter(api.Deps{
		Queue:    q,
		Claims:   claims,
		Audit:    audit,
		Gateway:  gateway,
		Registry: registry,
		Hub:      hub,
		Sandbox:  sandbox,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	sched.Wait()
	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
