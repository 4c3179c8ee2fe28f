// Command opioid-maps serves the opioid consumption and essential medicines datasets
// as JSON, bar charts and choropleth maps, refreshing them on a daily schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/opioid-maps/config"
	"github.com/giygas/opioid-maps/data"
	"github.com/giygas/opioid-maps/handlers"
	"github.com/giygas/opioid-maps/health"
	"github.com/giygas/opioid-maps/logging"
	"github.com/giygas/opioid-maps/scheduler"
	"github.com/giygas/opioid-maps/server"
	"github.com/giygas/opioid-maps/tableparser"
	"github.com/giygas/opioid-maps/validation"
	"github.com/joho/godotenv"
)

func loadEnv() error {
	if err := godotenv.Load(); err == nil {
		return nil
	}

	// fall back to the directory of the executable
	ex, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	if err := os.Chdir(filepath.Dir(ex)); err != nil {
		return fmt.Errorf("failed to change directory: %w", err)
	}
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment and defaults")
	}
	return nil
}

func run() error {
	if err := loadEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logging.InitLogger(logging.Options{
		Dir:           cfg.LogDir,
		Level:         level,
		RetentionDays: cfg.LogRetentionDays,
		MaxFileSize:   cfg.MaxLogFileSize,
	})
	defer func() {
		if err := logging.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to close log file:", err)
		}
	}()

	var overridden []string
	for _, key := range config.GetEnvVars() {
		if _, ok := os.LookupEnv(key); ok {
			overridden = append(overridden, key)
		}
	}
	logging.Info("Configuration loaded", "env", cfg.Env, "port", cfg.Port, "data_dir", cfg.DataDir, "from_env", overridden)

	catalog, err := tableparser.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return err
	}

	validator := validation.NewDataValidator(cfg.ExtraISO3...)
	downloader := tableparser.NewDownloader(cfg.DataDir, cfg.DownloadTimeout)
	preparer := tableparser.NewPreparer(cfg.DataDir, validator, tableparser.WithDownloader(downloader, false))

	store := data.NewDataContainer()
	store.SetServerStartTime(time.Now())

	sched := scheduler.NewScheduler(store, preparer, catalog, cfg.RefreshSchedule())
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	checker := health.NewHealthChecker(store, cfg.RefreshAt, len(catalog))
	srv := server.NewServer(cfg, handlers.NewHTTPHandler(store, validator, checker))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}

func main() {
	if err := run(); err != nil {
		logging.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}
