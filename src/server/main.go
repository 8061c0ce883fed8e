package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	billing_repository "github.com/orbitdesk/orbitdesk-server/src/billing/repository"
	billing_service "github.com/orbitdesk/orbitdesk-server/src/billing/service"
	"github.com/orbitdesk/orbitdesk-server/src/config/env"
	"github.com/orbitdesk/orbitdesk-server/src/database"
	database_migrate "github.com/orbitdesk/orbitdesk-server/src/database/migrate"
	ratelimit_service "github.com/orbitdesk/orbitdesk-server/src/ratelimit/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/pterm/pterm"
)

const shutdownTimeout = 30 * time.Second

// Run wires every service from cfg, serves HTTP and blocks until the server
// stops. SIGINT and SIGTERM trigger a graceful shutdown.
func Run(cfg env.Config) error {
	repo, err := openRepository(cfg.Database)
	if err != nil {
		return err
	}

	limiter, stopLimiter, err := openLimiter(cfg.RateLimit)
	if err != nil {
		return err
	}
	defer stopLimiter()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, sweeper := NewApp(cfg, repo, limiter, reg)

	var scheduler *billing_service.SweepScheduler
	if cfg.Sweep.Schedule != "" {
		scheduler, err = billing_service.NewSweepScheduler(sweeper, cfg.Sweep.Schedule)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		pterm.DefaultLogger.Info("Shutdown signal received, stopping services...")
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			pterm.DefaultLogger.Error(fmt.Sprintf("Failed to shut down server: %s", err))
		}
	}()

	return app.Listen(fmt.Sprintf(":%s", cfg.Server.Port))
}

func openRepository(cfg env.DatabaseConfig) (billing_repository.Repository, error) {
	if cfg.InMemory() {
		pterm.DefaultLogger.Warn("DATABASE_URL is not set, billing state is kept in memory and lost on restart")
		return billing_repository.NewMemoryRepository(), nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database_migrate.Run(db); err != nil {
		return nil, err
	}
	return billing_repository.NewGormRepository(db), nil
}

// openLimiter prefers Redis so limits hold across replicas. The in-memory
// limiter is per process and compacts itself in the background.
func openLimiter(cfg env.RateLimitConfig) (ratelimit_service.Limiter, func(), error) {
	if cfg.RedisURL != "" {
		limiter, err := ratelimit_service.NewRedisLimiter(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := limiter.Ping(ctx); err != nil {
			pterm.DefaultLogger.Warn(fmt.Sprintf("Redis is unreachable, rate limits fail open until it recovers: %s", err))
		}
		return limiter, func() {
			if err := limiter.Close(); err != nil {
				pterm.DefaultLogger.Error(fmt.Sprintf("Failed to close redis client: %s", err))
			}
		}, nil
	}

	limiter := ratelimit_service.NewMemoryLimiter()
	limiter.Start(cfg.CompactEvery)
	return limiter, limiter.Stop, nil
}
