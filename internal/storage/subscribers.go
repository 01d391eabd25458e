package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	var s domain.Subscriber

	err := row.Scan(&s.ID, &s.ChatID, &s.Tier, &s.QuietStart, &s.QuietEnd, &s.Timezone, &s.DeliveryBlocked, &s.Data)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

const subscriberColumns = `id, chat_id, tier, quiet_start, quiet_end, tz, delivery_blocked, data`

// GetSubscriber returns one subscriber by id, or nil when absent.
func (db *DB) GetSubscriber(ctx context.Context, id int64) (*domain.Subscriber, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)

	s, err := scanSubscriber(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("get subscriber: %w", err)
	}

	return s, nil
}

// MarkDeliveryBlocked flags a subscriber after a permanent sink failure
// and deactivates their filters until liveness returns.
func (db *DB) MarkDeliveryBlocked(ctx context.Context, subscriberID int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mark blocked: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`UPDATE subscribers SET delivery_blocked = TRUE WHERE id = $1`, subscriberID); err != nil {
		return fmt.Errorf("mark delivery blocked: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE filters SET is_active = FALSE, blocked_by_delivery = TRUE
		 WHERE subscriber_id = $1 AND is_active AND deleted_at IS NULL`, subscriberID); err != nil {
		return fmt.Errorf("deactivate filters of blocked subscriber: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mark blocked: %w", err)
	}

	return nil
}

// ClearDeliveryBlocked clears the blocked flag on an inbound liveness
// signal and restores the filters that were deactivated by blocking.
func (db *DB) ClearDeliveryBlocked(ctx context.Context, subscriberID int64) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin clear blocked: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`UPDATE subscribers SET delivery_blocked = FALSE WHERE id = $1`, subscriberID); err != nil {
		return fmt.Errorf("clear delivery blocked: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE filters SET is_active = TRUE, blocked_by_delivery = FALSE
		 WHERE subscriber_id = $1 AND blocked_by_delivery AND deleted_at IS NULL`, subscriberID); err != nil {
		return fmt.Errorf("reactivate filters of unblocked subscriber: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit clear blocked: %w", err)
	}

	return nil
}
