package cli

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/mkarpov/crier/internal/config"
	"github.com/mkarpov/crier/internal/store"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll accounts and forward new posts until interrupted",
	RunE:  watchAction,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	p, err := buildPoller(cfg, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var scheduler *cron.Cron
	if cfg.Market.Enabled {
		tracker, err := buildTracker(cfg)
		if err != nil {
			return err
		}
		loc, err := cfg.MarketLocation()
		if err != nil {
			return err
		}
		scheduler = cron.New(cron.WithLocation(loc))
		_, err = scheduler.AddFunc(cfg.Market.Schedule, func() {
			if err := tracker.PostUpdate(ctx); err != nil {
				log.Printf("[market] price update failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule price update: %w", err)
		}
		scheduler.Start()
		log.Printf("[market] scheduled %s price update (%s, %s)", cfg.Market.Symbol, cfg.Market.Schedule, cfg.Market.Timezone)
	}

	log.Printf("[crier] watching %d accounts, posting to r/%s every %v",
		len(cfg.Accounts), cfg.Sink.Subreddit, cfg.Watch.Interval.Duration)

	p.Run(ctx)

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	if _, err := db.PruneOld(context.Background(), cfg.Storage.RetainDays); err != nil {
		log.Printf("[crier] prune on shutdown failed: %v", err)
	}

	log.Printf("[crier] shutting down")
	return nil
}
