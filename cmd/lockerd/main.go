package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arjunrose/Personal-Locker/internal/alerts"
	"github.com/arjunrose/Personal-Locker/internal/analysis"
	"github.com/arjunrose/Personal-Locker/internal/api"
	"github.com/arjunrose/Personal-Locker/internal/camera"
	"github.com/arjunrose/Personal-Locker/internal/config"
	"github.com/arjunrose/Personal-Locker/internal/engine"
	"github.com/arjunrose/Personal-Locker/internal/ingest"
	"github.com/arjunrose/Personal-Locker/internal/logging"
	"github.com/arjunrose/Personal-Locker/internal/metrics"
	"github.com/arjunrose/Personal-Locker/internal/notify"
	"github.com/arjunrose/Personal-Locker/internal/storage"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "locker.yaml", "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	path := config.ResolvePath(configPath)
	// first run: write the defaults so the file is there to edit
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := config.Save(path, config.DefaultConfig()); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("personal locker starting", "version", version, "config", path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-sigs
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := storage.NewStore(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	cam, err := camera.NewDevice(cfg.Camera, logger)
	if err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	defer cam.Release()

	metricsStore := metrics.NewStore()
	alertsStore := alerts.NewStore(cfg.Alerts.StoreLimit)
	dispatcher := notify.NewDispatcher(cfg.Alerts, alertsStore, metricsStore, logger)
	defer dispatcher.Close()
	analyzer := analysis.NewAnalyzer(cfg.Analysis, logger)

	eng := engine.NewEngine(cfg, logger, metricsStore, store, cam, analyzer, dispatcher)
	if err := eng.Boot(ctx); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	eng.Start(ctx)

	apiServer := api.Start(ctx, mgr, metricsStore, alertsStore, eng, logger, version)
	ingest.StartKeypad(ctx, mgr, eng, logger)

	go mgr.Watch(5*time.Second, func(next *config.Config) {
		logger.Info("config reloaded", "path", path)
		eng.UpdateConfig(next)
		dispatcher.Update(next.Alerts)
	}, func(err error) {
		logger.Warn("config reload failed", "err", err)
	}, ctx.Done())

	<-ctx.Done()
	if apiServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		_ = apiServer.Shutdown(shutdownCtx)
		cancelShutdown()
	}
	logger.Info("personal locker stopped")
	return nil
}
