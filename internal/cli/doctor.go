package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mkarpov/crier/internal/config"
	"github.com/mkarpov/crier/internal/source"
	"github.com/mkarpov/crier/internal/store"
	"github.com/spf13/cobra"
)

const sourceCheckTimeout = 15 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials and storage",
	RunE:  doctorAction,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	twitterAccounts, rssAccounts := 0, 0
	for _, acc := range cfg.Accounts {
		if acc.Kind == "rss" {
			rssAccounts++
		} else {
			twitterAccounts++
		}
	}
	printCheck(true, "config.yaml (%d twitter accounts, %d rss accounts, posting to r/%s)",
		twitterAccounts, rssAccounts, cfg.Sink.Subreddit)

	// Credentials
	if twitterAccounts > 0 {
		if cfg.Source.Twitter.BearerToken == "" {
			printCheck(false, "twitter bearer token (set %s)", envNameOrDefault(cfg.Source.Twitter.BearerTokenEnv, "source.twitter.bearer_token_env"))
			ok = false
		} else {
			printCheck(true, "twitter bearer token")
		}
	}
	if cfg.Sink.ClientID == "" || cfg.Sink.ClientSecret == "" || cfg.Sink.Username == "" || cfg.Sink.Password == "" {
		printCheck(false, "reddit credentials incomplete (client id/secret, username, password)")
		ok = false
	} else {
		printCheck(true, "reddit credentials")
	}
	if cfg.Gate.Mode == "llm" {
		if cfg.Gate.LLM.APIKey == "" {
			printCheck(false, "gate LLM API key (set %s)", envNameOrDefault(cfg.Gate.LLM.APIKeyEnv, "gate.llm.api_key_env"))
			ok = false
		} else {
			printCheck(true, "gate LLM API key")
		}
	}
	if cfg.Market.Enabled {
		if cfg.Market.APIKey == "" {
			printCheck(false, "market API key (set %s)", envNameOrDefault(cfg.Market.APIKeyEnv, "market.api_key_env"))
			ok = false
		} else {
			printCheck(true, "market API key (%s scheduled %q)", cfg.Market.Symbol, cfg.Market.Schedule)
		}
	}

	// Source connectivity (best-effort, non-fatal: the watch loop
	// retries unreachable sources every cycle)
	checkSources(cmd.Context(), cfg)

	// Database
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(false, "database: %v", err)
		ok = false
	} else {
		defer func() { _ = db.Close() }()
		count, err := db.Count(cmd.Context())
		if err != nil {
			printCheck(false, "database %s: %v", cfg.Storage.Path, err)
			ok = false
		} else {
			printCheck(true, "database %s (%d forwarded posts)", cfg.Storage.Path, count)
		}
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

// checkSources fetches one page from the first account of each kind to
// prove the credentials and feed URLs actually work.
func checkSources(ctx context.Context, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(ctx, sourceCheckTimeout)
	defer cancel()

	for _, acc := range firstOfEachKind(cfg.Accounts) {
		var src source.Source
		switch acc.Kind {
		case "rss":
			rs, err := source.NewRSS(map[string]string{acc.Handle: acc.Feed}, cfg.Source.Twitter.PageSize)
			if err != nil {
				printCheck(false, "rss source @%s: %v", acc.Handle, err)
				continue
			}
			src = rs
		default:
			if cfg.Source.Twitter.BearerToken == "" {
				// missing token already reported above
				continue
			}
			tw, err := source.NewTwitter(cfg.Source.Twitter.BearerToken, cfg.Source.Twitter.PageSize)
			if err != nil {
				printCheck(false, "twitter source @%s: %v", acc.Handle, err)
				continue
			}
			src = tw
		}

		n, err := checkSource(ctx, src, acc.Handle)
		if err != nil {
			printCheck(false, "%s source @%s unreachable: %v", src.Name(), acc.Handle, err)
			continue
		}
		printCheck(true, "%s source @%s (%d recent posts)", src.Name(), acc.Handle, n)
	}
}

// firstOfEachKind picks the first account of each kind; one live fetch
// per kind is enough connectivity evidence.
func firstOfEachKind(accounts []config.AccountConfig) []config.AccountConfig {
	var picked []config.AccountConfig
	checked := make(map[string]bool)
	for _, acc := range accounts {
		if checked[acc.Kind] {
			continue
		}
		checked[acc.Kind] = true
		picked = append(picked, acc)
	}
	return picked
}

func checkSource(ctx context.Context, src source.Source, handle string) (int, error) {
	posts, err := src.Fetch(ctx, handle)
	if err != nil {
		return 0, err
	}
	return len(posts), nil
}

func envNameOrDefault(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}
