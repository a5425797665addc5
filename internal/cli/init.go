package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkarpov/crier/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s.\n", configDir)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# crier configuration

accounts:
  - handle: larryvc
    kind: twitter
  - handle: ryancohen
    kind: twitter
  # Accounts without API access can be watched through a mirror feed:
  # - handle: TheRoaringKitty
  #   kind: rss
  #   feed: "https://example.com/rss/TheRoaringKitty"

source:
  twitter:
    bearer_token_env: TWITTER_BEARER_TOKEN
    page_size: 20

sink:
  subreddit: Gamestop_Enthusiasts
  flair_id: ""
  signature: "---\n*This is an automated bot. Contact the moderators for help.*"
  user_agent: "crier/1.0 (by /u/your_bot_account)"
  client_id_env: REDDIT_CLIENT_ID
  client_secret_env: REDDIT_CLIENT_SECRET
  username_env: REDDIT_USERNAME
  password_env: REDDIT_PASSWORD

watch:
  interval: 5m
  jitter: 30s
  lookback: 24h

storage:
  path: .crier/crier.db
  retain_days: 90

gate:
  mode: "off"
  deny_keywords: []
  min_length: 0
  llm:
    model: gpt-4o-mini
    api_key_env: OPENAI_API_KEY
    max_tokens: 200

market:
  enabled: false
  symbol: GME
  schedule: "30 16 * * 1-5"
  timezone: "America/New_York"
  api_key_env: FINNHUB_API_KEY

ratelimit:
  max_calls: 55
  period: 60s
`
