package cli

import (
	"fmt"

	"github.com/mkarpov/crier/internal/config"
	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Post the daily price update now",
	RunE:  priceAction,
}

func init() {
	rootCmd.AddCommand(priceCmd)
}

func priceAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tracker, err := buildTracker(cfg)
	if err != nil {
		return err
	}

	if err := tracker.PostUpdate(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("Posted %s price update to r/%s.\n", cfg.Market.Symbol, cfg.Sink.Subreddit)
	return nil
}
