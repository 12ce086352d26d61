// Command localqueue runs the local reference queue service: a
// Postgres-backed HTTP server with SQS-style leases, speaking its own REST
// API (not the SQS wire protocol), used in place of real AWS SQS during
// development, or whenever Config.Queue.Sqs.APIEndpointURL points at a
// self-hosted endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glennschmidt/fcgiq/internal/localqueue/api"
	"github.com/glennschmidt/fcgiq/internal/localqueue/config"
	pgstore "github.com/glennschmidt/fcgiq/internal/localqueue/store/postgres"
	"github.com/glennschmidt/fcgiq/internal/localqueue/sweeper"
	"github.com/glennschmidt/fcgiq/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(os.Stdout, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "set up logging: %v\n", err)
		os.Exit(1)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DBConnectionTimeout)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("pgxpool.New failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(connectCtx); err != nil {
		logger.Error("pgx ping failed", "error", err)
		os.Exit(1)
	}

	store := pgstore.New(pool)

	swp := sweeper.New(store, cfg.SweeperInterval)
	go swp.Start(ctx)
	defer swp.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := api.NewServer(addr, store)

	logger.Info("localqueue listening", "addr", addr)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	_ = httpSrv.Shutdown(context.Background())
}
