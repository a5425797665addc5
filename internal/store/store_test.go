package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "crier.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "crier.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}
}

func TestOpenRefusesNewerSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crier.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := st.db.Exec("UPDATE metadata SET value = '99' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("expected error opening a database with a newer schema version")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	if err := st.Mark(ctx, Record{PostID: "1", Account: "larryvc", ForwardedAt: time.Now()}); err != nil {
		t.Fatalf("mark: %v", err)
	}

	// Running the migration again must keep both the data and the
	// recorded version.
	if err := migrate(ctx, st.db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	seen, err := st.Seen(ctx, "1")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if !seen {
		t.Fatal("data lost after re-running migration")
	}
	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("schema version = %s after re-migration", version)
	}
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSeenAndMark(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	seen, err := st.Seen(ctx, "1828374650")
	if err != nil {
		t.Fatalf("seen: %v", err)
	}
	if seen {
		t.Fatal("unmarked ID reported as seen")
	}

	err = st.Mark(ctx, Record{
		PostID:      "1828374650",
		Account:     "larryvc",
		Title:       "New post from @larryvc: hello",
		URL:         "https://x.com/larryvc/status/1828374650",
		ForwardedAt: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}

	seen, err = st.Seen(ctx, "1828374650")
	if err != nil {
		t.Fatalf("seen after mark: %v", err)
	}
	if !seen {
		t.Fatal("marked ID not reported as seen")
	}

	// Other IDs stay unseen
	seen, err = st.Seen(ctx, "other")
	if err != nil {
		t.Fatalf("seen other: %v", err)
	}
	if seen {
		t.Fatal("unrelated ID reported as seen")
	}
}

func TestMarkIdempotent(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	rec := Record{PostID: "42", Account: "ryancohen", ForwardedAt: time.Now()}
	if err := st.Mark(ctx, rec); err != nil {
		t.Fatalf("first mark: %v", err)
	}
	if err := st.Mark(ctx, rec); err != nil {
		t.Fatalf("second mark should be a no-op: %v", err)
	}

	count, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestMarkValidation(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	if err := st.Mark(ctx, Record{Account: "a"}); err == nil {
		t.Error("expected error for missing post ID")
	}
	if err := st.Mark(ctx, Record{PostID: "1"}); err == nil {
		t.Error("expected error for missing account")
	}
	if _, err := st.Seen(ctx, ""); err == nil {
		t.Error("expected error for empty post ID")
	}
}

func TestSeenSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crier.db")
	ctx := context.Background()

	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Mark(ctx, Record{PostID: "777", Account: "larryvc", ForwardedAt: time.Now()}); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = st2.Close() }()

	seen, err := st2.Seen(ctx, "777")
	if err != nil {
		t.Fatalf("seen after reopen: %v", err)
	}
	if !seen {
		t.Fatal("mark did not survive reopen")
	}
}

func TestPruneOld(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -120)
	recent := time.Now().AddDate(0, 0, -1)

	if err := st.Mark(ctx, Record{PostID: "old1", Account: "a", ForwardedAt: old}); err != nil {
		t.Fatalf("mark old: %v", err)
	}
	if err := st.Mark(ctx, Record{PostID: "new1", Account: "a", ForwardedAt: recent}); err != nil {
		t.Fatalf("mark new: %v", err)
	}

	pruned, err := st.PruneOld(ctx, 90)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}

	seen, err := st.Seen(ctx, "old1")
	if err != nil {
		t.Fatalf("seen old: %v", err)
	}
	if seen {
		t.Error("pruned ID still reported as seen")
	}
	seen, err = st.Seen(ctx, "new1")
	if err != nil {
		t.Fatalf("seen new: %v", err)
	}
	if !seen {
		t.Error("recent ID was pruned")
	}
}

func TestPruneOldDisabled(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	if err := st.Mark(ctx, Record{PostID: "1", Account: "a", ForwardedAt: time.Now().AddDate(-1, 0, 0)}); err != nil {
		t.Fatalf("mark: %v", err)
	}

	pruned, err := st.PruneOld(ctx, 0)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 0 {
		t.Fatalf("pruned = %d, want 0 when retention disabled", pruned)
	}
}

func TestGetAccountStats(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	second := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	records := []Record{
		{PostID: "1", Account: "larryvc", ForwardedAt: first},
		{PostID: "2", Account: "larryvc", ForwardedAt: second},
		{PostID: "3", Account: "ryancohen", ForwardedAt: first},
	}
	for _, rec := range records {
		if err := st.Mark(ctx, rec); err != nil {
			t.Fatalf("mark %s: %v", rec.PostID, err)
		}
	}

	stats, err := st.GetAccountStats(ctx)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d accounts, want 2", len(stats))
	}

	// Sorted by account name
	if stats[0].Account != "larryvc" || stats[0].Forwarded != 2 {
		t.Errorf("stats[0] = %+v", stats[0])
	}
	if !stats[0].LastForwarded.Equal(second) {
		t.Errorf("last forwarded = %v, want %v", stats[0].LastForwarded, second)
	}
	if stats[1].Account != "ryancohen" || stats[1].Forwarded != 1 {
		t.Errorf("stats[1] = %+v", stats[1])
	}
}

func TestGetAccountStatsEmpty(t *testing.T) {
	st, _ := openTestStore(t)

	stats, err := st.GetAccountStats(context.Background())
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if len(stats) != 0 {
		t.Fatalf("got %d accounts, want 0", len(stats))
	}
}
