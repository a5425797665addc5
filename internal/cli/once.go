package cli

import (
	"fmt"

	"github.com/mkarpov/crier/internal/config"
	"github.com/mkarpov/crier/internal/store"
	"github.com/spf13/cobra"
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single poll cycle and exit",
	RunE:  onceAction,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func onceAction(cmd *cobra.Command, _ []string) error {
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

	ctx := cmd.Context()
	forwarded := p.Cycle(ctx)

	pruned, err := db.PruneOld(ctx, cfg.Storage.RetainDays)
	if err != nil {
		return fmt.Errorf("prune old: %w", err)
	}

	fmt.Printf("Forwarded %d posts from %d accounts", forwarded, len(cfg.Accounts))
	if pruned > 0 {
		fmt.Printf(" (%d old records pruned)", pruned)
	}
	fmt.Println()

	return nil
}
