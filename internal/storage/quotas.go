package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Quota resources.
const (
	ResourceNotifications = "notifications"
	ResourceOracleCalls   = "oracle_calls"
)

// TryConsumeQuota increments the per-subscriber daily counter for a
// resource iff the result stays within cap, and reports whether the
// unit was granted. localDate is the current date in the subscriber's
// timezone (YYYY-MM-DD); when it advances past the stored reset date
// the counter restarts from zero. The whole check-and-increment is one
// statement, so concurrent cycles serialise on the row.
func (db *DB) TryConsumeQuota(ctx context.Context, subscriberID int64, resource, localDate string, limit int) (bool, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO quotas (subscriber_id, resource, count, reset_on)
		SELECT $1, $2, 1, $3::date WHERE 1 <= $4
		ON CONFLICT (subscriber_id, resource) DO UPDATE
		SET count = CASE WHEN quotas.reset_on < EXCLUDED.reset_on THEN 1 ELSE quotas.count + 1 END,
		    reset_on = GREATEST(quotas.reset_on, EXCLUDED.reset_on)
		WHERE CASE WHEN quotas.reset_on < EXCLUDED.reset_on THEN 1 ELSE quotas.count + 1 END <= $4
		RETURNING count`,
		subscriberID, resource, localDate, limit).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("consume quota: %w", err)
	}

	return true, nil
}

// QuotaUsed returns the counter for a resource on the given local date;
// zero when the stored date is older.
func (db *DB) QuotaUsed(ctx context.Context, subscriberID int64, resource, localDate string) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT count FROM quotas
		WHERE subscriber_id = $1 AND resource = $2 AND reset_on = $3::date`,
		subscriberID, resource, localDate).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}

		return 0, fmt.Errorf("quota used: %w", err)
	}

	return count, nil
}
