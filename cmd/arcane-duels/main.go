package main

import (
	"context"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emperror.dev/errors"

	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/config"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/constants"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/logging"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/telemetry"
	"github.com/KenCorbettJr/ai-wizard-duel-convex-sub000/internal/version"
)

const shutdownTimeout = 15 * time.Second

func main() {
	defer logging.Sync()

	env, err := config.LoadEnv()
	if err != nil {
		logging.Fatal("Invalid environment", err, nil)
	}
	cfg := loadConfigOrExit(env.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, version.Service, env.OTelEndpoint)
	if err != nil {
		logging.Fatal("Failed to set up tracing", err, nil)
	}

	a, err := newApp(ctx, env, cfg)
	if err != nil {
		logging.Fatal("Failed to initialize", err, nil)
	}

	sched, err := startScheduler(ctx, a.engine, env.SchedulerInterval)
	if err != nil {
		logging.Fatal("Failed to start scheduler", err, nil)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info("Server started", logging.Fields{constants.LogFieldAddr: srv.Addr, "version": version.Version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to start server", err, nil)
		}
	}()

	<-ctx.Done()
	logging.Info("Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("HTTP shutdown failed", err, nil)
	}
	if err := sched.Shutdown(); err != nil {
		logging.Error("Scheduler shutdown failed", err, nil)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logging.Error("Tracer shutdown failed", err, nil)
	}
	a.close()
}

// loadConfigOrExit falls back to defaults when the file does not exist; a
// file that exists but does not parse is fatal.
func loadConfigOrExit(path string) *config.LoadedConfig {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Warn("Config file not found, using defaults", nil, logging.Fields{"config_path": path})
		return config.Default()
	}
	if err != nil {
		logging.Fatal("Invalid duel configuration", err, logging.Fields{"config_path": path})
	}
	return cfg
}
