package app

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

	"lobbyist/internal/config"
	"lobbyist/internal/credential"
	"lobbyist/internal/database"
	"lobbyist/internal/event"
	"lobbyist/internal/handler"
	"lobbyist/internal/metrics"
	"lobbyist/internal/model"
	"lobbyist/internal/router"
	"lobbyist/internal/service"
	"lobbyist/internal/txn"
)

type App struct {
	server       *http.Server
	handler      http.Handler
	cleanupFuncs []func()
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	slog.Info("database ready", "dialect", db.Dialect)

	hasher, err := credential.NewHasher(cfg.BcryptCost)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize hasher: %w", err)
	}

	collector := metrics.NewCollector()
	registry := metrics.NewRegistry(collector)

	executor := txn.New(db.SQL,
		txn.WithTxOptions(db.TxOptions()),
		txn.WithMaxAttempts(cfg.TxRetryAttempts),
		txn.WithBaseDelay(cfg.TxRetryBaseDelay),
		txn.WithObserver(collector),
	)

	bus := event.NewBus()
	auditEvents, unsubscribe := bus.Subscribe()
	auditCtx, auditCancel := context.WithCancel(context.Background())
	go event.RunAuditLog(auditCtx, auditEvents, slog.Default().With("component", "audit"))

	deps := service.Deps{
		Executor: executor,
		Hasher:   hasher,
		Policy:   PolicyFromConfig(cfg),
		Bus:      bus,
		Metrics:  collector,
	}

	appRouter := router.New(cfg, time.Now, router.Handlers{
		User:    handler.NewUserHandler(service.NewUserService(deps)),
		Secret:  handler.NewSecretHandler(service.NewSecretService(deps)),
		Token:   handler.NewTokenHandler(service.NewTokenService(deps)),
		Health:  healthHandler(db),
		Metrics: metrics.Handler(registry),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:  server,
		handler: appRouter,
		cleanupFuncs: []func(){
			auditCancel,
			unsubscribe,
			db.Close,
		},
	}, nil
}

// Handler exposes the routed API without a listener.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close releases everything New acquired.
func (a *App) Close() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		a.Close()
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func PolicyFromConfig(cfg *config.Config) service.Policy {
	return service.Policy{
		UsernameLength: model.Range[int]{Min: cfg.UsernameMinLength, Max: cfg.UsernameMaxLength},
		PasswordMinLen: cfg.PasswordMinLength,
		AccessLifetime: model.Range[time.Duration]{
			Min:     cfg.AccessTokenLifetimeMin,
			Max:     cfg.AccessTokenLifetimeMax,
			Default: cfg.AccessTokenLifetimeDefault,
		},
		RefreshLifetime: model.Range[time.Duration]{
			Min:     cfg.RefreshTokenLifetimeMin,
			Max:     cfg.RefreshTokenLifetimeMax,
			Default: cfg.RefreshTokenLifetimeDefault,
		},
		SecretNameEntropy:   cfg.SecretNameEntropyBits,
		SecretValueEntropy:  cfg.SecretValueEntropyBits,
		AccessTokenEntropy:  cfg.AccessTokenEntropyBits,
		RefreshTokenEntropy: cfg.RefreshTokenEntropyBits,
	}
}

func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Health(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
