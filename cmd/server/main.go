package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/broadcast"
	"github.com/pscheid92/navigator-gateway/internal/cache"
	"github.com/pscheid92/navigator-gateway/internal/command"
	"github.com/pscheid92/navigator-gateway/internal/datalog"
	"github.com/pscheid92/navigator-gateway/internal/device"
	"github.com/pscheid92/navigator-gateway/internal/envelope"
	"github.com/pscheid92/navigator-gateway/internal/httpserver"
	"github.com/pscheid92/navigator-gateway/internal/platform/config"
	"github.com/pscheid92/navigator-gateway/internal/platform/logging"
	"github.com/pscheid92/navigator-gateway/internal/platform/retry"
	"github.com/pscheid92/navigator-gateway/internal/platform/version"
	"github.com/pscheid92/navigator-gateway/internal/sampler"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	deviceInitBackoff  = 500 * time.Millisecond
	minStaleReadingAge = 2 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDevice(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (*device.Port, error) {
	driver, err := device.New(cfg.DeviceDriver, clock)
	if err != nil {
		return nil, err
	}
	port := device.NewPort(driver)

	policy := retry.Policy{
		MaxAttempts:    cfg.DeviceInitAttempts,
		InitialBackoff: deviceInitBackoff,
		Clock:          clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Device init failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	alwaysRetry := func(error) retry.Action { return retry.Retry }
	if err := retry.DoVoid(ctx, policy, alwaysRetry, port.Init); err != nil {
		return nil, fmt.Errorf("failed to initialise device: %w", err)
	}
	return port, nil
}

// readinessChecks reports not ready once the sampler has died or the cache
// has gone stale. Without a sampler there is nothing to watch.
func readinessChecks(cfg *config.Config, smp *sampler.Sampler, readings *cache.Readings, registry *broadcast.Registry, clock clockwork.Clock) []httpserver.HealthCheck {
	checks := []httpserver.HealthCheck{{
		Name:    "broadcast",
		Startup: true,
		Check: func(context.Context) error {
			if registry.Count() < 0 {
				return errors.New("registry not responding")
			}
			return nil
		},
	}}
	if smp == nil {
		return checks
	}

	staleAfter := max(10*cfg.SampleInterval, minStaleReadingAge)
	return append(checks, httpserver.HealthCheck{
		Name: "sampler",
		Check: func(context.Context) error {
			if !smp.Healthy() {
				return errors.New("sampler stopped after a device failure")
			}
			if age := clock.Since(readings.UpdatedAt()); age > staleAfter {
				return fmt.Errorf("latest reading is %s old", age.Round(time.Millisecond))
			}
			return nil
		},
	})
}

func run(ctx context.Context, cfg *config.Config, clock clockwork.Clock) error {
	port, err := setupDevice(ctx, cfg, clock)
	if err != nil {
		return err
	}

	readings := cache.New(clock)
	registry := broadcast.NewRegistry(clock)
	defer registry.Stop()

	publisher := envelope.NewPublisher(envelope.NewBuilder(cfg.DeviceModel, clock), registry)
	dispatcher := command.NewDispatcher(port, readings, publisher, clock)

	var smp *sampler.Sampler
	if cfg.SampleInterval > 0 {
		smp = sampler.New(port, readings, publisher, clock, cfg.SampleInterval)
	} else {
		slog.Info("Sampler disabled, reads go live to the device")
	}

	srv := httpserver.NewServer(cfg, clock, dispatcher, registry, readinessChecks(cfg, smp, readings, registry, clock))

	g, gctx := errgroup.WithContext(ctx)

	if smp != nil {
		g.Go(func() error {
			return smp.Run(gctx)
		})
	}

	if cfg.DatalogInterval > 0 {
		logger := datalog.New(cfg.DatalogPath(), cfg.DatalogInterval, readings, clock)
		g.Go(func() error {
			// A broken log file must not take the gateway down.
			if err := logger.Run(gctx); err != nil {
				slog.Error("Datalogger stopped", "path", cfg.DatalogPath(), "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"port", cfg.Port,
		"version", version.Version,
		"driver", cfg.DeviceDriver,
		"sample_interval", cfg.SampleInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, clock); err != nil {
		slog.Error("Gateway stopped", "error", err)
		stop()
		os.Exit(1)
	}
	slog.Info("Gateway stopped")
}
