package main

import (
	"chat-presence/contract"
	"chat-presence/infrastructure/rest"
	"chat-presence/infrastructure/ws"
	"chat-presence/internal"
	"chat-presence/observability"
	"chat-presence/repositories"
	"chat-presence/repositories/mongostore"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"chat-presence/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Deferred cleanups (store closing) run before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Durable store
	store, err := openStore(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing store...", "driver", config.StoreDriver)
		_ = store.Close()
	}()

	// 3. Coordination
	monitoring := observability.NewMonitoringManager(logger)
	orchestrator := runtime.NewOrchestrator(logger, store, monitoring, runtime.Config{
		DefaultRoom:      config.DefaultRoom,
		StoreTimeout:     config.StoreTimeout,
		MaxContentLength: config.MaxContentLength,
		TypingTTL:        config.TypingTTL,
	})
	// Nobody can be connected to a process that just started
	if err := orchestrator.ResetPresence(ctx); err != nil {
		return exitRuntime, fmt.Errorf("presence reset failed: %w", err)
	}
	service := services.NewChatService(orchestrator)

	// 4. Supervision
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewTypingExpiryWorker(logger, orchestrator, config.TypingSweepInterval),
		workers.NewHeartbeatWorker(logger, monitoring, config.MetricInterval),
	)
	supervised := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervised)
	}()

	// 5. Transports
	wsHandler := ws.NewHandler(logger, service, ws.NewOriginChecker(logger, config.Origins()), ws.Config{
		BufferSize:    config.ConnectionBufferSize,
		MaxFrameSize:  config.MaxFrameSize,
		RatePerSecond: config.RateLimitPerSecond,
		RateBurst:     config.RateLimitBurst,
	})
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           rest.NewRouter(logger, service, monitoring, wsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", config.Address(), "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 6. Wait for a signal or a crash
	wait := gfshutdown.GracefulShutdown(ctx, config.ShutdownTimeout, map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			return wsHandler.Shutdown(ctx)
		},
		"workers": func(ctx context.Context) error {
			sup.Stop()
			select {
			case <-supervised:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})

	select {
	case code := <-wait:
		logger.Info("Program stopped", "code", code)
		return code, nil
	case err := <-errChan:
		return exitRuntime, err
	}
}

func openStore(ctx context.Context, config internal.Config, logger *slog.Logger) (contract.Store, error) {
	switch config.StoreDriver {
	case internal.StoreMongo:
		store, err := mongostore.Open(ctx, mongostore.Config{
			URI:           config.MongoURI,
			Database:      config.MongoDatabase,
			MaxPoolSize:   config.MongoPoolSize,
			LimitMessages: config.LimitMessages,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("mongo opening failed: %w", err)
		}
		return store, nil
	default:
		db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		if config.DebugPort > 0 {
			endpoint := "/inspect"
			url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
			logger.Info("Debug Badger inspector available", "url", url)
			database.StartDebugServer(db, config.DebugPort, endpoint, repositories.InspectMapper)
		}
		return repositories.NewBadgerStore(db, logger, config.LimitMessages), nil
	}
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
