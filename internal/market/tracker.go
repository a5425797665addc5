// Package market posts a daily price update for a configured ticker
// symbol to the destination community.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mkarpov/crier/internal/sink"
)

const (
	finnhubBaseURL = "https://finnhub.io/api/v1"
	quoteTimeout   = 30 * time.Second
)

// Tracker fetches a daily quote and submits a formatted self post.
type Tracker struct {
	symbol    string
	apiKey    string
	location  *time.Location
	sink      sink.Sink
	subreddit string
	flairID   string
	client    *http.Client
	baseURL   string

	// overridable in tests
	now func() time.Time
}

// New creates a tracker. The timezone decides which calendar day and
// weekday the update is attributed to.
func New(symbol, apiKey, timezone string, snk sink.Sink, subreddit, flairID string) (*Tracker, error) {
	if symbol == "" {
		return nil, errors.New("market: symbol is required")
	}
	if apiKey == "" {
		return nil, errors.New("market: API key is required")
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("market: timezone: %w", err)
	}
	return &Tracker{
		symbol:    symbol,
		apiKey:    apiKey,
		location:  loc,
		sink:      snk,
		subreddit: subreddit,
		flairID:   flairID,
		client:    &http.Client{Timeout: quoteTimeout},
		baseURL:   finnhubBaseURL,
		now:       time.Now,
	}, nil
}

// PostUpdate fetches the day's quote and submits the update post.
// Weekends are skipped without error.
func (t *Tracker) PostUpdate(ctx context.Context) error {
	day := t.now().In(t.location)
	if !tradingDay(day) {
		return nil
	}

	quote, err := t.fetchQuote(ctx)
	if err != nil {
		return err
	}
	if quote.Open == 0 && quote.Current == 0 {
		return fmt.Errorf("market: no quote data for %s", t.symbol)
	}

	_, err = t.sink.Submit(ctx, sink.Submission{
		Subreddit: t.subreddit,
		Title:     updateTitle(t.symbol, quote, day),
		Body:      updateBody(t.symbol, quote, day),
		FlairID:   t.flairID,
	})
	if err != nil {
		return fmt.Errorf("submit price update: %w", err)
	}
	return nil
}

func (t *Tracker) fetchQuote(ctx context.Context) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()

	query := url.Values{}
	query.Set("symbol", t.symbol)
	query.Set("token", t.apiKey)

	endpoint := fmt.Sprintf("%s/quote?%s", t.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("fetch quote: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("quote endpoint status %d", resp.StatusCode)
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	return quote, nil
}

// tradingDay reports whether the exchange is open on the given day.
func tradingDay(day time.Time) bool {
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return true
}

func updateTitle(symbol string, q Quote, day time.Time) string {
	change := q.PercentChange()
	marker := "🟩"
	if change < 0 {
		marker = "🔻"
		change = -change
	}
	return fmt.Sprintf("%s Daily Price Update %s %.2f%% - %s", symbol, marker, change, day.Format("2006-01-02"))
}

func updateBody(symbol string, q Quote, day time.Time) string {
	return fmt.Sprintf(`**%s Daily Price Update for %s**

---

| Open | High | Low | Close | Change |
|------|------|-----|-------|--------|
| $%.2f | $%.2f | $%.2f | $%.2f | %+.2f%% |
`, symbol, day.Format("January 2, 2006"), q.Open, q.High, q.Low, q.Current, q.PercentChange())
}

// Quote is the Finnhub quote payload.
type Quote struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
}

// PercentChange is the day's move from open to current price.
func (q Quote) PercentChange() float64 {
	if q.Open == 0 {
		return 0
	}
	return (q.Current - q.Open) / q.Open * 100
}
