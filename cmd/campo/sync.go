package main

import (
	"fmt"
	"io"
	"time"

	"github.com/mveloso/campo/internal/config"
	"github.com/mveloso/campo/internal/db"
	"github.com/mveloso/campo/internal/notify"
	"github.com/mveloso/campo/internal/notify/bridge"
	"github.com/mveloso/campo/internal/reconcile"
	"github.com/mveloso/campo/internal/sheet"
	"github.com/spf13/cobra"
)

func newSyncCmd() *cobra.Command {
	var configPath string
	var sourcePath string

	cmd := &cobra.Command{
		Use:   "sync [sheets.json]",
		Short: "Import a spreadsheet export into the database",
		Long:  "Reads a JSON sheet export (ordens, caixas, lanças, equipes) and reconciles it against the database. Field-collected progress is never clobbered; re-running against the same file is a no-op.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				sourcePath = args[0]
			}
			return runSync(cmd, configPath, sourcePath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Campo config file")
	cmd.Flags().StringVarP(&sourcePath, "source", "s", "", "path to the sheet export JSON (defaults to sync.source_path)")
	return cmd
}

func runSync(cmd *cobra.Command, configPath, sourcePath string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if sourcePath == "" {
		sourcePath = cfg.Sync.SourcePath
	}
	if sourcePath == "" {
		return fmt.Errorf("sync: no source given (use --source or set sync.source_path)")
	}

	sheets, err := sheet.Load(sourcePath)
	if err != nil {
		return err
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	engine, err := reconcile.New(reconcile.Options{
		DB:            gormDB,
		Notifier:      buildNotifier(cfg, out),
		RetentionDays: cfg.Notify.RetentionDays,
		Debounce:      time.Duration(cfg.Sync.DebounceMinutes) * time.Minute,
	})
	if err != nil {
		return err
	}

	result, err := engine.Reconcile(cmd.Context(), sheets)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result.Message)
	return nil
}

// buildNotifier assembles the fan-out pipeline from config, attaching
// Slack/Discord mirrors when their tokens are present.
func buildNotifier(cfg *config.Config, out io.Writer) *notify.Notifier {
	notifier := notify.New()
	notifier.BatchThreshold = cfg.Notify.BatchThreshold
	notifier.AdminCap = cfg.Notify.AdminCap

	if cfg.Notify.Slack.BotToken != "" {
		sender, err := bridge.NewSlack(bridge.SlackOpts{
			BotToken: cfg.Notify.Slack.BotToken,
			Channel:  cfg.Notify.Slack.Channel,
		})
		if err != nil {
			fmt.Fprintf(out, "slack mirror disabled: %v\n", err)
		} else {
			notifier.Senders = append(notifier.Senders, sender)
		}
	}
	if cfg.Notify.Discord.BotToken != "" {
		sender, err := bridge.NewDiscord(bridge.DiscordOpts{
			BotToken: cfg.Notify.Discord.BotToken,
			Channel:  cfg.Notify.Discord.Channel,
		})
		if err != nil {
			fmt.Fprintf(out, "discord mirror disabled: %v\n", err)
		} else {
			notifier.Senders = append(notifier.Senders, sender)
		}
	}
	return notifier
}
