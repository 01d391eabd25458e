package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// GetEntry reads a cache entry; expired entries read as absent.
func (db *DB) GetEntry(ctx context.Context, kind, key string) ([]byte, bool, error) {
	var value []byte

	err := db.Pool.QueryRow(ctx, `
		SELECT value FROM cache_entries
		WHERE kind = $1 AND key = $2 AND expires_at > now()`,
		kind, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("get cache entry: %w", err)
	}

	return value, true, nil
}

// SetEntry upserts a cache entry atomically.
func (db *DB) SetEntry(ctx context.Context, kind, key string, value []byte, expiresAt time.Time) error {
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO cache_entries (kind, key, value, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		kind, key, value, expiresAt); err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}

	return nil
}

// DeleteExpiredEntries removes entries past their expiry.
func (db *DB) DeleteExpiredEntries(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}

	return tag.RowsAffected(), nil
}
