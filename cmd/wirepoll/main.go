package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wirepoll/wirepoll/internal/alert"
	"github.com/wirepoll/wirepoll/internal/config"
	"github.com/wirepoll/wirepoll/internal/event"
	"github.com/wirepoll/wirepoll/internal/inventory"
	"github.com/wirepoll/wirepoll/internal/poller"
	"github.com/wirepoll/wirepoll/internal/snmp"
	"github.com/wirepoll/wirepoll/internal/store"
	"github.com/wirepoll/wirepoll/internal/trigger"
	"github.com/wirepoll/wirepoll/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("wirepoll starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	// Open database
	dbPath := viperCfg.GetString("database.path")
	db, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.CheckVersion(ctx, version.Version); err != nil {
		logger.Fatal("database version check failed", zap.Error(err))
	}

	// Apply per-module schema migrations.
	for _, m := range []struct {
		name       string
		migrations []store.Migration
	}{
		{"inventory", inventory.Migrations()},
		{"poller", poller.Migrations()},
		{"trigger", trigger.Migrations()},
		{"alert", alert.Migrations()},
	} {
		if err := db.Migrate(ctx, m.name, m.migrations); err != nil {
			logger.Fatal("migration failed",
				zap.String("module", m.name), zap.Error(err))
		}
	}

	logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	bus := event.NewBus(logger.Named("event"))

	// Stores
	invStore := inventory.NewStore(db.DB())
	sampleStore := poller.NewSampleStore(db.DB())
	triggerStore := trigger.NewStore(db.DB())
	alertStore := alert.NewStore(db.DB())

	// Collection pipeline
	pollerCfg := poller.Config{
		SampleRetention:     viperCfg.GetDuration("poller.sample_retention"),
		MaintenanceInterval: viperCfg.GetDuration("poller.maintenance_interval"),
		PingTimeout:         viperCfg.GetDuration("poller.ping_timeout"),
		PingCount:           viperCfg.GetInt("poller.ping_count"),
	}
	collector := snmp.NewCollector(snmp.Config{
		Timeout: viperCfg.GetDuration("snmp.timeout"),
		Retries: viperCfg.GetInt("snmp.retries"),
	}, logger.Named("snmp"))
	prober := poller.NewProber(pollerCfg, logger.Named("probe"))

	evaluator := trigger.NewEvaluator(triggerStore, invStore, sampleStore, bus, logger.Named("trigger"))
	engine := poller.NewEngine(collector, invStore, sampleStore, evaluator, prober, logger.Named("poller"))
	scheduler := poller.NewScheduler(invStore, engine.PollItem, logger.Named("scheduler"))

	// Alerting
	alertCfg := alert.Config{
		EventRetention:      viperCfg.GetDuration("alert.event_retention"),
		MaintenanceInterval: viperCfg.GetDuration("alert.maintenance_interval"),
		ChannelRateLimit:    viperCfg.GetDuration("alert.channel_rate_limit"),
		ChannelBurst:        viperCfg.GetInt("alert.channel_burst"),
		SendTimeout:         viperCfg.GetDuration("alert.send_timeout"),
	}
	dispatcher := alert.NewDispatcher(alertStore, alertCfg, logger.Named("alert"))
	manager := alert.NewManager(alertStore, invStore, dispatcher, logger.Named("alert"))
	manager.Register(bus)

	// Schedule every enabled item.
	if err := scheduler.StartAll(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	logger.Info("scheduler started",
		zap.String("component", "scheduler"),
		zap.Int("items", scheduler.Count()),
	)

	// Background maintenance
	go poller.NewMaintenance(sampleStore, pollerCfg, logger.Named("poller")).Run(ctx)
	go alert.NewMaintenance(alertStore, alertCfg, logger.Named("alert")).Run(ctx)

	// Diagnostics endpoint (Prometheus metrics).
	diagAddr := viperCfg.GetString("diagnostics.addr")
	diagMux := http.NewServeMux()
	diagMux.Handle("/metrics", promhttp.Handler())
	diagSrv := &http.Server{Addr: diagAddr, Handler: diagMux}
	go func() {
		logger.Info("diagnostics listener started",
			zap.String("component", "diagnostics"),
			zap.String("addr", diagAddr),
		)
		if err := diagSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("diagnostics listener error", zap.Error(err))
		}
	}()

	logger.Info("wirepoll ready")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	scheduler.Shutdown()
	cancel()

	if err := diagSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("diagnostics shutdown error", zap.Error(err))
	}

	logger.Info("wirepoll stopped")
}
