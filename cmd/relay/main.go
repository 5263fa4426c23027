package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Jeofrey10/bus-backend/internal/api"
	"github.com/Jeofrey10/bus-backend/internal/config"
	"github.com/Jeofrey10/bus-backend/internal/logging"
	"github.com/Jeofrey10/bus-backend/internal/metrics"
	"github.com/Jeofrey10/bus-backend/internal/registry"
	"github.com/Jeofrey10/bus-backend/internal/relay"
	"github.com/Jeofrey10/bus-backend/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to an optional YAML config file")
	envFile := flag.String("env-file", ".env", "path to an optional .env file")
	flag.Parse()

	logging.Init(config.DefaultLogLevel, config.DefaultLogFormat)

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("failed to load env file", "err", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	level := logging.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("bus-relay starting",
		"http_port", cfg.HTTPPort,
		"ws_port", cfg.WSPort,
		"ws_path", cfg.WSPath,
		"max_body_size", cfg.MaxBodySize,
		"max_body_bytes", cfg.BodyLimitBytes(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *configPath, level); err != nil {
		slog.Error("bus-relay stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("bus-relay stopped")
}

func run(ctx context.Context, cfg *config.Config, configPath string, level *slog.LevelVar) error {
	promReg := metrics.NewRegistry()
	relayMetrics := metrics.NewRelay(promReg)

	// Connection registry shared by the socket hub and the broadcast path.
	reg := registry.New()

	hub := ws.New(reg, ws.Options{
		SendBuffer: cfg.SendBuffer,
		ReadLimit:  cfg.ReadLimit,
		Metrics:    relayMetrics,
	})
	svc := relay.New(reg, relayMetrics)

	apiSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: api.New(svc, api.Options{
			BodyLimit: cfg.MaxBodySize,
			Metrics:   metrics.Handler(promReg),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	wsMux := http.NewServeMux()
	wsMux.Handle(cfg.WSPath, hub)
	wsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           wsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP API listening", "port", cfg.HTTPPort)
		return serve(apiSrv, "http")
	})
	g.Go(func() error {
		slog.Info("WebSocket server listening", "port", cfg.WSPort, "path", cfg.WSPath)
		return serve(wsSrv, "websocket")
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if _, err := os.Stat(configPath); err == nil {
		g.Go(func() error {
			err := config.Watch(gctx, configPath, func(next *config.Config) {
				level.Set(logging.ParseLevel(next.LogLevel))
			})
			if err != nil {
				slog.Warn("config watcher stopped", "path", configPath, "err", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("bus-relay shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			apiSrv.Shutdown(shutdownCtx),
			wsSrv.Shutdown(shutdownCtx),
		)
	})

	return g.Wait()
}

// serve runs srv until it is shut down.
func serve(srv *http.Server, name string) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server on %s: %w", name, srv.Addr, err)
	}
	return nil
}
