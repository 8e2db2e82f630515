// Package main implements the entry point for autoreplyd, the auto-reply
// rule matching and dispatch service for conversation backends.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/convodesk/autoreply/config"
	"github.com/convodesk/autoreply/conversation"
	"github.com/convodesk/autoreply/dispatch"
	"github.com/convodesk/autoreply/engine"
	"github.com/convodesk/autoreply/health"
	"github.com/convodesk/autoreply/metric"
	"github.com/convodesk/autoreply/natsclient"
	"github.com/convodesk/autoreply/processor/autoreply"
	"github.com/convodesk/autoreply/rule"
	"github.com/convodesk/autoreply/service"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "autoreplyd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("configuration is valid")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsRegistry := metric.NewRegistry()

	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithLogger(logger),
		natsclient.WithReconnectHandler(func() {
			metricsRegistry.Core.NATSConnected.Set(1)
			metricsRegistry.Core.NATSReconnects.Inc()
		}),
		natsclient.WithDisconnectHandler(func(error) {
			metricsRegistry.Core.NATSConnected.Set(0)
		}),
	)
	if err != nil {
		return err
	}
	if err := natsClient.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = natsClient.Close(ctx) }()
	metricsRegistry.Core.NATSConnected.Set(1)

	repo, watchRules, err := buildRepository(ctx, cfg, natsClient, logger)
	if err != nil {
		return err
	}

	sender := autoreply.NewNATSSender(natsClient, cfg.Subjects.OutboundPrefix)

	eng := engine.New(repo, conversation.NewMemoryProvider(), sender,
		engine.WithLogger(logger.With("component", "engine")),
		engine.WithMetrics(metricsRegistry),
		engine.WithWorkers(cfg.Engine.Workers, cfg.Engine.QueueSize),
		engine.WithDispatchLog(dispatch.NewLog(cfg.Engine.DispatchLogCapacity)),
	)

	proc := autoreply.New(natsClient, eng, autoreply.Config{
		InboundSubject: cfg.Subjects.Inbound,
		AgentSubject:   cfg.Subjects.Agent,
		OutboundPrefix: cfg.Subjects.OutboundPrefix,
		EventSubject:   cfg.Subjects.Events,
	},
		autoreply.WithLogger(logger.With("component", "autoreply-processor")),
		autoreply.WithMetrics(metricsRegistry),
	)

	monitor := health.NewMonitor()
	manager := service.NewManager(monitor, logger.With("component", "service-manager"))
	if err := manager.Register(proc); err != nil {
		return err
	}

	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	metricsRegistry.Core.ComponentStatus.WithLabelValues(proc.Meta().Name).Set(1)
	defer func() {
		metricsRegistry.Core.ComponentStatus.WithLabelValues(proc.Meta().Name).Set(0)
		_ = manager.StopAll(cliCfg.ShutdownTimeout)
	}()

	if watchRules != nil {
		stop, err := watchRules(eng)
		if err != nil {
			return err
		}
		defer stop()
	}

	metricsServer := startMetricsServer(cfg.Metrics.Addr, metricsRegistry, manager, monitor, logger)
	if metricsServer != nil {
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("autoreplyd running",
		"nats_url", natsClient.URL(),
		"rules_source", cfg.Rules.Source,
		"rules", eng.Stats().Rules)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())
	return nil
}

// ruleWatcher starts hot reload for a running engine and returns a stop
// function.
type ruleWatcher func(eng *engine.Engine) (func(), error)

// buildRepository creates the rule repository named by the config: a JSON
// file loaded into memory, or a JetStream KV bucket with optional watching.
func buildRepository(ctx context.Context, cfg config.Config, natsClient *natsclient.Client, logger *slog.Logger) (rule.Repository, ruleWatcher, error) {
	switch cfg.Rules.Source {
	case "file":
		rules, err := rule.LoadFile(cfg.Rules.FilePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("loaded rule definitions", "path", cfg.Rules.FilePath, "count", len(rules))
		return rule.NewMemoryRepository(rules...), nil, nil

	case "kv":
		kv, err := natsClient.KeyValue(ctx, cfg.Rules.KVBucket)
		if err != nil {
			return nil, nil, err
		}
		repo := rule.NewKVRepository(kv, logger.With("component", "kv-repository"))

		if !cfg.Rules.Watch {
			return repo, nil, nil
		}
		watcher := func(eng *engine.Engine) (func(), error) {
			return repo.Watch(ctx, func() {
				if err := eng.ReloadRules(ctx); err != nil {
					logger.Warn("rule reload failed", "error", err)
				}
			})
		}
		return repo, watcher, nil
	}
	return nil, nil, fmt.Errorf("unknown rules source %q", cfg.Rules.Source)
}

// startMetricsServer serves /metrics and /healthz when an address is
// configured.
func startMetricsServer(addr string, registry *metric.Registry, manager *service.Manager, monitor *health.Monitor, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}

	healthHandler := health.Handler(monitor, appName)

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manager.CollectHealth()
		healthHandler.ServeHTTP(w, r)
	}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", addr)
	return server
}
