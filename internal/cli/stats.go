package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mkarpov/crier/internal/config"
	"github.com/mkarpov/crier/internal/store"
	"github.com/spf13/cobra"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-account forwarding stats",
	RunE:  statsAction,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(statsCmd)
}

func statsAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	stats, err := db.GetAccountStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if len(stats) == 0 {
		if statsFormat == "json" {
			fmt.Fprintln(os.Stdout, `{"accounts":[]}`)
			return nil
		}
		fmt.Fprintln(os.Stdout, "No posts forwarded yet. Run 'crier once' first.")
		return nil
	}

	switch statsFormat {
	case "json":
		return printStatsJSON(os.Stdout, stats)
	case "terminal", "":
		printStats(os.Stdout, stats)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", statsFormat)
	}
}

type jsonStatsOutput struct {
	Accounts []jsonAccountStats `json:"accounts"`
}

type jsonAccountStats struct {
	Account       string    `json:"account"`
	Forwarded     int       `json:"forwarded"`
	LastForwarded time.Time `json:"last_forwarded"`
}

func printStatsJSON(w io.Writer, stats []store.AccountStats) error {
	out := jsonStatsOutput{Accounts: make([]jsonAccountStats, 0, len(stats))}
	for _, as := range stats {
		out.Accounts = append(out.Accounts, jsonAccountStats{
			Account:       as.Account,
			Forwarded:     as.Forwarded,
			LastForwarded: as.LastForwarded,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printStats(w io.Writer, stats []store.AccountStats) {
	total := 0
	for _, as := range stats {
		total += as.Forwarded
	}
	fmt.Fprintf(w, "crier stats — %d posts forwarded from %d accounts\n\n", total, len(stats))

	maxHandle := 7 // minimum "Account"
	for _, as := range stats {
		if len(as.Account) > maxHandle {
			maxHandle = len(as.Account)
		}
	}

	fmt.Fprintf(w, "  %-*s  %9s  %s\n", maxHandle, "Account", "Forwarded", "Last Forwarded")
	for _, as := range stats {
		last := "never"
		if !as.LastForwarded.IsZero() {
			last = as.LastForwarded.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "  %-*s  %9d  %s\n", maxHandle, as.Account, as.Forwarded, last)
	}
}
