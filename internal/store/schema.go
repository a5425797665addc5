package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "embed"
)

// schema.sql only uses IF NOT EXISTS statements, so migrate is safe to
// run on every open.
//
//go:embed schema.sql
var schemaSQL string

// schemaVersion is recorded in the metadata table on first open. A
// database written by a newer build is refused rather than reinterpreted.
const schemaVersion = 1

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	stored, err := storedVersion(ctx, tx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			"INSERT INTO metadata(key, value) VALUES('schema_version', ?)",
			strconv.Itoa(schemaVersion))
		if err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return err
	case stored > schemaVersion:
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", stored, schemaVersion)
	}
	// stored == schemaVersion needs nothing, and there is no older
	// on-disk layout to upgrade from yet.

	return tx.Commit()
}

func storedVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var raw string
	err := tx.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&raw)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("schema version %q is not a number: %w", raw, err)
	}
	return v, nil
}
