// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/cr0nhq/cr0n/internal/auth"
	authredis "github.com/cr0nhq/cr0n/internal/auth/redis"
	"github.com/cr0nhq/cr0n/internal/config"
	"github.com/cr0nhq/cr0n/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP API, the metrics/health server and the background
expired-token sweeper.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runServeWithDeps(ctx, cfg, cmd, nil)
		},
	}
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	logger := slog.Default()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	tracerProvider := installTracing(cfg)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error stopping tracer provider", "error", err)
		}
	}()

	slog.Info("starting cr0n",
		"env", cfg.Env,
		"addr", cfg.HTTP.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, store.PoolConfig{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var throttle auth.LoginThrottle
	if cfg.Redis.Addr != "" {
		client := deps.RedisFactory(cfg.Redis)
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				slog.Debug("error closing redis client", "error", closeErr)
			}
		}()
		throttle = authredis.NewLoginThrottle(client)
		slog.Info("login throttle enabled", "redis_addr", cfg.Redis.Addr)
	} else {
		slog.Warn("redis.addr is not set; login lockout is disabled")
	}

	var obsServer ObservabilityServer
	if cfg.HTTP.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.HTTP.MetricsAddr, pool.Ping)
	}

	application, err := wire(ctx, cfg, pool, deps, obsServer, throttle, logger)
	if err != nil {
		return oops.Code("STARTUP_FAILED").With("operation", "wire services").Wrap(err)
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("STARTUP_FAILED").With("operation", "start observability server").Wrap(err)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	listener, err := deps.ListenerFactory("tcp", cfg.HTTP.Addr)
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("STARTUP_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	httpServer := &http.Server{
		Handler:           application.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpErrChan := make(chan error, 1)
	go func() {
		defer close(httpErrChan)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrChan <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, httpErrChan, "http")

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		application.sweeper.loop(ctx, cfg.Auth.SweepEvery)
	}()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("cr0n started")
	slog.Info("cr0n ready", "addr", listener.Addr().String())

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}
	cancel()

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error stopping http server", "error", err)
	}
	<-sweepDone
	if err := application.dispatcher.Close(shutdownCtx); err != nil {
		slog.Warn("mail dispatcher did not drain", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

func stopObservability(obs ObservabilityServer) {
	if obs == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obs.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
