package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/limaJavier/shiftsync/internal/api"
	"github.com/limaJavier/shiftsync/internal/config"
	"github.com/limaJavier/shiftsync/internal/generation"
	"github.com/limaJavier/shiftsync/internal/lease"
	"github.com/limaJavier/shiftsync/internal/store"
	"github.com/limaJavier/shiftsync/pkg/sat"
	"github.com/limaJavier/shiftsync/pkg/solver"
	"github.com/redis/go-redis/v9"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	backend, err := newSolver(cfg.Solver, logger)
	if err != nil {
		slog.Error("cannot initialize solver", "error", err)
		os.Exit(1)
	}

	records, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		slog.Error("cannot open database", "error", err)
		os.Exit(1)
	}
	defer records.Close()
	slog.Info("database ready", "driver", cfg.Database.Driver)

	service := generation.NewService(records, newLocker(cfg.Redis), backend, logger)

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{Addr: cfg.Server.Addr, Handler: api.NewRouter(service, logger)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		slog.Info("listening", "addr", cfg.Server.Addr, "backend", cfg.Solver.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()
	<-ctx.Done()

	// In-flight generations are bounded by the solver timeout
	shutdown, cancel := context.WithTimeout(context.Background(), cfg.Solver.Timeout+5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdown); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func newSolver(cfg config.SolverConfig, logger *slog.Logger) (solver.Solver, error) {
	if cfg.Backend == "http" {
		return solver.NewHTTPSolver(cfg.URL, cfg.Timeout, nil), nil
	}
	satSolver, err := sat.New(cfg.SAT, cfg.Executables[cfg.SAT])
	if err != nil {
		return nil, err
	}
	return solver.NewLocalSolver(satSolver, cfg.Timeout, logger), nil
}

// newLocker shares leases through Redis when configured and reachable, and falls back to
// process memory otherwise
func newLocker(cfg config.RedisConfig) lease.Locker {
	if cfg.Addr == "" {
		slog.Warn("redis address not set, generation leases are local to this process")
		return lease.NewMemoryLocker()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		slog.Error("cannot connect to redis, generation leases are local to this process", "error", err)
		return lease.NewMemoryLocker()
	}
	slog.Info("redis connected", "addr", cfg.Addr)
	return lease.NewRedisLocker(client, cfg.LeaseTTL)
}
