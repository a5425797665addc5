// Package store persists the set of already-forwarded post IDs so a
// restart never causes the same post to be submitted twice.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Record describes one forwarded post.
type Record struct {
	PostID      string
	Account     string
	Title       string
	URL         string
	ForwardedAt time.Time
}

// AccountStats holds forwarding aggregates for one monitored account.
type AccountStats struct {
	Account       string
	Forwarded     int
	LastForwarded time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx := context.Background()
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seen reports whether the post ID has already been forwarded.
func (s *Store) Seen(ctx context.Context, postID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(postID) == "" {
		return false, errors.New("post ID is required")
	}

	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM forwarded WHERE post_id = ?", postID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen: %w", err)
	}
	return true, nil
}

// Mark records a forwarded post. Marking the same ID twice is a no-op,
// so a retried mark after a partial failure cannot error.
func (s *Store) Mark(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(rec.PostID) == "" {
		return errors.New("post ID is required")
	}
	if strings.TrimSpace(rec.Account) == "" {
		return errors.New("account is required")
	}
	if rec.ForwardedAt.IsZero() {
		rec.ForwardedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO forwarded (post_id, account, title, url, forwarded_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.PostID,
		rec.Account,
		nullString(rec.Title),
		nullString(rec.URL),
		formatTime(rec.ForwardedAt),
	)
	if err != nil {
		return fmt.Errorf("mark forwarded: %w", err)
	}
	return nil
}

// Count returns the total number of forwarded records.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM forwarded").Scan(&n); err != nil {
		return 0, fmt.Errorf("count forwarded: %w", err)
	}
	return n, nil
}

// PruneOld deletes records forwarded more than retainDays ago. Returns
// the number of records removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))

	res, err := s.db.ExecContext(ctx, "DELETE FROM forwarded WHERE forwarded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune old records: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

// GetAccountStats returns per-account forwarding aggregates.
func (s *Store) GetAccountStats(ctx context.Context) ([]AccountStats, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT account, COUNT(*) AS forwarded, MAX(forwarded_at) AS last_forwarded
		FROM forwarded
		GROUP BY account
		ORDER BY account
	`)
	if err != nil {
		return nil, fmt.Errorf("get account stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []AccountStats
	for rows.Next() {
		var as AccountStats
		var last string
		if err := rows.Scan(&as.Account, &as.Forwarded, &last); err != nil {
			return nil, fmt.Errorf("scan account stats: %w", err)
		}
		as.LastForwarded, err = parseTime(last)
		if err != nil {
			return nil, fmt.Errorf("parse last_forwarded: %w", err)
		}
		stats = append(stats, as)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account stats: %w", err)
	}

	return stats, nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
