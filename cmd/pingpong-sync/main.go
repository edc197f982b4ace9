// cmd/pingpong-sync — stream reconciliation service entrypoint.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/comppolicylab/pingpong-sub002/internal/apiserver"
	"github.com/comppolicylab/pingpong-sub002/internal/backend"
	"github.com/comppolicylab/pingpong-sub002/internal/config"
	"github.com/comppolicylab/pingpong-sub002/internal/database"
	"github.com/comppolicylab/pingpong-sub002/internal/store"
	"github.com/comppolicylab/pingpong-sub002/internal/thread"
	"github.com/comppolicylab/pingpong-sub002/pkg/logger"
	"github.com/comppolicylab/pingpong-sub002/pkg/util"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger.Init(cfg.Env)

	// PostgreSQL is optional: without it the service runs with stderr
	// logging only and no /api/system-log.
	var sysLog *store.SystemLogStore
	if cfg.PostgresConnStr != "" {
		pool, err := database.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("database init failed", logger.FieldError, err)
		}
		defer pool.Close()
		logger.AttachDBHandler(pool)
		defer logger.ShutdownDBHandler()

		if err := database.Migrate(ctx, pool, "./migrations"); err != nil {
			logger.Fatal("migration failed", logger.FieldError, err)
		}
		sysLog = store.NewSystemLogStore(pool)
	}

	client := backend.NewClient(cfg.BackendBaseURL, cfg.ProtocolVersion, cfg.BackendToken)
	registry := thread.NewRegistry(client, thread.Options{
		ProtocolVersion: cfg.ProtocolVersion,
		PageLimit:       cfg.PageLimit,
		PollInterval:    time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		PollTimeout:     time.Duration(cfg.PollTimeoutSec) * time.Second,
	})

	srv := apiserver.NewServer(registry, sysLog)

	logger.Info("pingpong-sync starting",
		logger.FieldAddr, cfg.ListenAddr,
		logger.FieldVersion, cfg.ProtocolVersion,
	)

	util.SafeGo(func() {
		if err := srv.Run(cfg.ListenAddr); err != nil {
			logger.Fatal("server failed", logger.FieldError, err)
		}
	})

	<-ctx.Done()
	logger.Info("shutting down")
}
