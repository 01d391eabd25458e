package storage

import (
	"context"
	"fmt"
)

// RecordFeedback stores an inline-action signal from a notification.
// Consumed by analytics outside the pipeline.
func (db *DB) RecordFeedback(ctx context.Context, subscriberID, filterID int64, tenderID, action string) error {
	if _, err := db.Pool.Exec(ctx, `
		INSERT INTO feedback (subscriber_id, filter_id, tender_id, action, at)
		VALUES ($1, $2, $3, $4, now())`,
		subscriberID, filterID, tenderID, action); err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}

	return nil
}
