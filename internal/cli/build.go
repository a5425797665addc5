package cli

import (
	"fmt"

	"github.com/mkarpov/crier/internal/config"
	"github.com/mkarpov/crier/internal/gate"
	"github.com/mkarpov/crier/internal/market"
	"github.com/mkarpov/crier/internal/poller"
	"github.com/mkarpov/crier/internal/ratelimit"
	"github.com/mkarpov/crier/internal/sink"
	"github.com/mkarpov/crier/internal/source"
	"github.com/mkarpov/crier/internal/store"
)

// buildSink wires the rate limiter and Reddit client from config.
func buildSink(cfg *config.Config) (sink.Sink, error) {
	pacer := ratelimit.New(cfg.RateLimit.MaxCalls, cfg.RateLimit.Period.Duration)

	snk, err := sink.NewReddit(sink.Credentials{
		ClientID:     cfg.Sink.ClientID,
		ClientSecret: cfg.Sink.ClientSecret,
		Username:     cfg.Sink.Username,
		Password:     cfg.Sink.Password,
	}, cfg.Sink.UserAgent, cfg.Sink.Signature, pacer)
	if err != nil {
		return nil, fmt.Errorf("create sink: %w", err)
	}
	return snk, nil
}

// buildPoller assembles accounts, sources, sink, gate and store into a
// ready-to-run poller.
func buildPoller(cfg *config.Config, db *store.Store) (*poller.Poller, error) {
	snk, err := buildSink(cfg)
	if err != nil {
		return nil, err
	}

	rssFeeds := make(map[string]string)
	needTwitter := false
	for _, acc := range cfg.Accounts {
		switch acc.Kind {
		case "rss":
			rssFeeds[acc.Handle] = acc.Feed
		default:
			needTwitter = true
		}
	}

	var tw *source.TwitterSource
	if needTwitter {
		tw, err = source.NewTwitter(cfg.Source.Twitter.BearerToken, cfg.Source.Twitter.PageSize)
		if err != nil {
			return nil, fmt.Errorf("create twitter source: %w", err)
		}
	}

	var rs *source.RSSSource
	if len(rssFeeds) > 0 {
		rs, err = source.NewRSS(rssFeeds, cfg.Source.Twitter.PageSize)
		if err != nil {
			return nil, fmt.Errorf("create rss source: %w", err)
		}
	}

	accounts := make([]poller.Account, 0, len(cfg.Accounts))
	for _, acc := range cfg.Accounts {
		a := poller.Account{Handle: acc.Handle}
		if acc.Kind == "rss" {
			a.Source = rs
		} else {
			a.Source = tw
		}
		accounts = append(accounts, a)
	}

	return &poller.Poller{
		Accounts:  accounts,
		Sink:      snk,
		Store:     db,
		Gate:      buildGate(cfg),
		Subreddit: cfg.Sink.Subreddit,
		FlairID:   cfg.Sink.FlairID,
		Interval:  cfg.Watch.Interval.Duration,
		Jitter:    cfg.Watch.Jitter.Duration,
		Lookback:  cfg.Watch.Lookback.Duration,
	}, nil
}

func buildGate(cfg *config.Config) gate.Gate {
	heuristic := gate.NewHeuristic(cfg.Gate.DenyKeywords, cfg.Gate.MinLength)
	switch cfg.Gate.Mode {
	case "heuristic":
		return heuristic
	case "llm":
		return gate.NewLLM(cfg.Gate.LLM.APIKey, cfg.Gate.LLM.Model, cfg.Gate.LLM.MaxTokens, heuristic)
	default:
		return nil
	}
}

func buildTracker(cfg *config.Config) (*market.Tracker, error) {
	snk, err := buildSink(cfg)
	if err != nil {
		return nil, err
	}
	tracker, err := market.New(
		cfg.Market.Symbol,
		cfg.Market.APIKey,
		cfg.Market.Timezone,
		snk,
		cfg.Sink.Subreddit,
		cfg.Sink.FlairID,
	)
	if err != nil {
		return nil, fmt.Errorf("create tracker: %w", err)
	}
	return tracker, nil
}
