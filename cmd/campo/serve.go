package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mveloso/campo/internal/dashboard"
	"github.com/mveloso/campo/internal/db"
	"github.com/mveloso/campo/internal/progress"
	"github.com/mveloso/campo/internal/reconcile"
	"github.com/mveloso/campo/internal/sheet"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath   string
		port         int
		syncSchedule string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Campo API server",
		Long:  "Launches the dashboard/API server. With a sync schedule configured it also re-imports the sheet export on that cron expression.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, syncSchedule)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Campo config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (defaults to http.port)")
	cmd.Flags().StringVar(&syncSchedule, "sync-schedule", "", "5-field cron expression for scheduled imports (defaults to sync.schedule)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, syncSchedule string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.HTTP.Port
	}
	if syncSchedule == "" {
		syncSchedule = cfg.Sync.Schedule
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	tracker := progress.NewTracker()
	engine, err := reconcile.New(reconcile.Options{
		DB:            gormDB,
		Reporter:      tracker,
		Notifier:      buildNotifier(cfg, out),
		RetentionDays: cfg.Notify.RetentionDays,
		Debounce:      time.Duration(cfg.Sync.DebounceMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if syncSchedule != "" {
		if cfg.Sync.SourcePath == "" {
			return fmt.Errorf("serve: scheduled sync requires sync.source_path")
		}
		scheduler := cron.New()
		_, err := scheduler.AddFunc(syncSchedule, func() {
			scheduledSync(ctx, engine, cfg.Sync.SourcePath)
		})
		if err != nil {
			return fmt.Errorf("serve: invalid sync schedule %q: %w", syncSchedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		fmt.Fprintf(out, "Scheduled sync %q from %s\n", syncSchedule, cfg.Sync.SourcePath)
	}

	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:      gormDB,
		Engine:  engine,
		Tracker: tracker,
		Port:    port,
		Out:     out,
	})
}

// scheduledSync re-reads the configured export and reconciles it. A run
// already in flight is skipped silently; other failures are logged, the
// server keeps running.
func scheduledSync(ctx context.Context, engine *reconcile.Engine, sourcePath string) {
	sheets, err := sheet.Load(sourcePath)
	if err != nil {
		log.Printf("serve: scheduled sync: %v", err)
		return
	}
	if _, err := engine.Reconcile(ctx, sheets); err != nil && !errors.Is(err, reconcile.ErrRunInFlight) {
		log.Printf("serve: scheduled sync: %v", err)
	}
}
