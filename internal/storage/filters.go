package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

// ActiveFilter pairs a filter with its owning subscriber, as the
// pipeline consumes them.
type ActiveFilter struct {
	Filter     domain.Filter
	Subscriber domain.Subscriber
}

// GetActiveFilters returns every filter that is active, not
// soft-deleted and owned by a subscriber that is not delivery-blocked,
// joined with its owner.
func (db *DB) GetActiveFilters(ctx context.Context) ([]ActiveFilter, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT f.id, f.subscriber_id, f.name,
		       f.keywords, f.exclude_keywords, f.primary_keywords, f.secondary_keywords,
		       f.expanded_keywords, f.regions, f.price_min, f.price_max,
		       f.tender_types, f.law_type, f.ai_intent, f.ai_intent_version,
		       f.min_deadline_days, f.notify_chat_ids,
		       s.id, s.chat_id, s.tier, s.quiet_start, s.quiet_end, s.tz, s.delivery_blocked, s.data
		FROM filters f
		JOIN subscribers s ON s.id = f.subscriber_id
		WHERE f.is_active AND f.deleted_at IS NULL AND NOT s.delivery_blocked
		ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("get active filters: %w", err)
	}
	defer rows.Close()

	var out []ActiveFilter

	for rows.Next() {
		var (
			af                                                                 ActiveFilter
			keywords, excludeKw, primaryKw, secondaryKw, expandedKw, regionsKw []byte
			tenderTypes, notifyChats                                           []byte
		)

		err := rows.Scan(
			&af.Filter.ID, &af.Filter.SubscriberID, &af.Filter.Name,
			&keywords, &excludeKw, &primaryKw, &secondaryKw,
			&expandedKw, &regionsKw, &af.Filter.PriceMin, &af.Filter.PriceMax,
			&tenderTypes, &af.Filter.LawType, &af.Filter.AIIntent, &af.Filter.AIIntentVersion,
			&af.Filter.MinDeadlineDays, &notifyChats,
			&af.Subscriber.ID, &af.Subscriber.ChatID, &af.Subscriber.Tier,
			&af.Subscriber.QuietStart, &af.Subscriber.QuietEnd, &af.Subscriber.Timezone,
			&af.Subscriber.DeliveryBlocked, &af.Subscriber.Data,
		)
		if err != nil {
			return nil, fmt.Errorf("scan active filter: %w", err)
		}

		af.Filter.IsActive = true
		af.Filter.Keywords = unmarshalStrings(keywords)
		af.Filter.ExcludeKeywords = unmarshalStrings(excludeKw)
		af.Filter.PrimaryKeywords = unmarshalStrings(primaryKw)
		af.Filter.SecondaryKeywords = unmarshalStrings(secondaryKw)
		af.Filter.ExpandedKeywords = unmarshalStrings(expandedKw)
		af.Filter.Regions = unmarshalStrings(regionsKw)
		af.Filter.TenderTypes = unmarshalStrings(tenderTypes)
		af.Filter.NotifyChatIDs = unmarshalInt64s(notifyChats)

		out = append(out, af)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active filters: %w", err)
	}

	return out, nil
}

// UpdateFilterIntent stores a regenerated intent and its version.
func (db *DB) UpdateFilterIntent(ctx context.Context, filterID int64, intent, version string) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE filters SET ai_intent = $2, ai_intent_version = $3 WHERE id = $1`,
		filterID, intent, version); err != nil {
		return fmt.Errorf("update filter intent: %w", err)
	}

	return nil
}

// SoftDeleteFilter marks a filter deleted; it stays restorable until
// hard-expired. Already-delivered tenders keep their ledger rows, so a
// restore cannot re-send them.
func (db *DB) SoftDeleteFilter(ctx context.Context, filterID int64) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE filters SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, filterID); err != nil {
		return fmt.Errorf("soft delete filter: %w", err)
	}

	return nil
}

// RestoreFilter undoes a soft delete.
func (db *DB) RestoreFilter(ctx context.Context, filterID int64) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE filters SET deleted_at = NULL WHERE id = $1`, filterID); err != nil {
		return fmt.Errorf("restore filter: %w", err)
	}

	return nil
}

// PurgeDeletedFilters removes filters whose soft deletion is older than
// the retention window.
func (db *DB) PurgeDeletedFilters(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM filters WHERE deleted_at IS NOT NULL AND deleted_at < now() - make_interval(secs => $1)`,
		olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("purge deleted filters: %w", err)
	}

	return tag.RowsAffected(), nil
}
