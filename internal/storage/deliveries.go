package storage

import (
	"context"
	"fmt"
	"time"
)

// Delivery states.
const (
	DeliveryTentative = "tentative"
	DeliveryConfirmed = "confirmed"
)

// ReserveOutcome is the result of a reservation attempt.
type ReserveOutcome int

const (
	// Reserved means a tentative row was inserted and the caller owns
	// the delivery.
	Reserved ReserveOutcome = iota
	// AlreadyDelivered means a row for the triple exists (or the
	// subscriber is delivery-blocked); no notification may be sent.
	AlreadyDelivered
)

// Reservation is a handle on a tentative delivery row. Confirm or
// Abandon must be called on every path.
type Reservation struct {
	SubscriberID int64
	FilterID     int64
	TenderID     string
}

// ReserveDelivery atomically claims the (subscriber, filter, tender)
// triple. The unique constraint on the triple is the at-most-once
// mechanism: a conflicting insert affects zero rows and reports
// AlreadyDelivered. A delivery-blocked subscriber never reserves.
func (db *DB) ReserveDelivery(ctx context.Context, subscriberID, filterID int64, tenderID string) (ReserveOutcome, *Reservation, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO deliveries (subscriber_id, filter_id, tender_id, state, reserved_at)
		SELECT $1, $2, $3, $4, now()
		WHERE NOT EXISTS (SELECT 1 FROM subscribers WHERE id = $1 AND delivery_blocked)
		ON CONFLICT (subscriber_id, filter_id, tender_id) DO NOTHING`,
		subscriberID, filterID, tenderID, DeliveryTentative)
	if err != nil {
		return AlreadyDelivered, nil, fmt.Errorf("reserve delivery: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return AlreadyDelivered, nil, nil
	}

	return Reserved, &Reservation{SubscriberID: subscriberID, FilterID: filterID, TenderID: tenderID}, nil
}

// ConfirmDelivery marks a reservation as successfully delivered.
func (db *DB) ConfirmDelivery(ctx context.Context, r *Reservation) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE deliveries SET state = $4, sent_at = now()
		WHERE subscriber_id = $1 AND filter_id = $2 AND tender_id = $3 AND state = $5`,
		r.SubscriberID, r.FilterID, r.TenderID, DeliveryConfirmed, DeliveryTentative); err != nil {
		return fmt.Errorf("confirm delivery: %w", err)
	}

	return nil
}

// AbandonDelivery discards a tentative row so the tender may be retried
// in a later cycle. Used for quiet-hours deferral, quota exhaustion and
// transient sink failures; the cause is recorded by the caller's log.
func (db *DB) AbandonDelivery(ctx context.Context, r *Reservation) error {
	if _, err := db.Pool.Exec(ctx, `
		DELETE FROM deliveries
		WHERE subscriber_id = $1 AND filter_id = $2 AND tender_id = $3 AND state = $4`,
		r.SubscriberID, r.FilterID, r.TenderID, DeliveryTentative); err != nil {
		return fmt.Errorf("abandon delivery: %w", err)
	}

	return nil
}

// SweepTentativeDeliveries reclaims tentative rows older than the given
// age. A crash strictly before send leaves such a row; sweeping it lets
// the next cycle retry the tender instead of suppressing it forever.
func (db *DB) SweepTentativeDeliveries(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM deliveries
		WHERE state = $1 AND reserved_at < now() - make_interval(secs => $2)`,
		DeliveryTentative, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("sweep tentative deliveries: %w", err)
	}

	return tag.RowsAffected(), nil
}
