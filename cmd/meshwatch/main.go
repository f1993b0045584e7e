package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/meshwatch/meshwatch/internal/aggregate"
	"github.com/meshwatch/meshwatch/internal/api"
	"github.com/meshwatch/meshwatch/internal/config"
	"github.com/meshwatch/meshwatch/internal/endpoint"
	"github.com/meshwatch/meshwatch/internal/health"
	"github.com/meshwatch/meshwatch/internal/overview"
	"github.com/meshwatch/meshwatch/internal/poll"
	"github.com/meshwatch/meshwatch/internal/ws"
	"github.com/meshwatch/meshwatch/pkg/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the config")
	logLevel := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("meshwatch starting", "config", *configPath)

	if err := godotenv.Load(*envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to load env file", "path", *envFile, "err", err)
			os.Exit(1)
		}
		slog.Debug("no env file", "path", *envFile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"services", len(cfg.Services),
		"poll_interval", cfg.Dashboard.PollInterval,
		"late_probe_policy", cfg.Dashboard.LateProbePolicy,
		"always_active", cfg.Dashboard.AlwaysActive,
		"http_port", cfg.Dashboard.HTTPPort,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var client clientRef
	client.Store(endpoint.New(cfg.Services, cfg.Dashboard.RequestTimeout))
	view := poll.NewView(cfg.Dashboard.PollInterval, buildCycle(cfg, client.Load()))

	// Hot reload swaps the upstream set and poll settings. The listen port and
	// always_active are fixed for the life of the process.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			c := endpoint.New(updated.Services, updated.Dashboard.RequestTimeout)
			client.Store(c)
			view.Reconfigure(updated.Dashboard.PollInterval, buildCycle(updated, c))
			slog.Info("config hot-reloaded",
				"services", len(updated.Services),
				"poll_interval", updated.Dashboard.PollInterval,
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	// WebSocket hub: connected clients keep the view polling.
	hub := ws.New(view, cfg.Dashboard.AlwaysActive)
	go hub.Run(ctx)

	// Combined HTTP server: REST API, Prometheus exposition and websocket stream.
	apiHandler := api.New(view, &client)
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/metrics", apiHandler)
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Dashboard.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Dashboard.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("meshwatch shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	view.Deactivate()
}

// buildCycle wires prober, aggregator and formatter for cfg into a cycle
// function.
func buildCycle(cfg *config.Config, client *endpoint.Client) poll.CycleFunc {
	prober := health.New(client, cfg.Dashboard.ProbeTimeout, cfg.Dashboard.LateProbePolicy)
	agg := aggregate.New(client)
	descs := client.Descriptors()

	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, string(d.Key))
	}
	slog.Info("upstream services", "keys", strings.Join(names, ","))

	return overview.New(prober, agg, descs, cfg.Dashboard.ActivityLimit).Cycle
}

// clientRef lets the API keep using the current endpoint client across
// config reloads.
type clientRef struct {
	atomic.Pointer[endpoint.Client]
}

func (r *clientRef) GetRaw(ctx context.Context, key types.ServiceKey, path string) ([]byte, error) {
	return r.Load().GetRaw(ctx, key, path)
}
