// Package notify renders and delivers tender notifications.
//
// The Telegram implementation classifies send failures into transient
// (retry next cycle) and permanent (recipient unreachable; block the
// subscriber until liveness returns).
package notify

import (
	"context"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

// Outcome of a send attempt.
type Outcome int

const (
	// Sent means delivery was acknowledged.
	Sent Outcome = iota
	// Transient covers rate limits, timeouts and 5xx: the reservation
	// is abandoned and the tender retried in a later cycle.
	Transient
	// Permanent means the recipient is blocked, deleted or invalid: the
	// subscriber is delivery-blocked until an inbound signal clears it.
	Permanent
)

// Sink delivers one formatted notification.
type Sink interface {
	Send(ctx context.Context, subscriber *domain.Subscriber, filter *domain.Filter, tender *domain.EnrichedTender, report *domain.ScoreReport) Outcome
}
