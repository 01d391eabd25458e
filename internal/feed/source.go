// Package feed implements polling of the zakupki.gov.ru RSS search feed
// and best-effort enrichment of candidates from their detail pages.
package feed

import (
	"context"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

// Query parameterises one poll: keyword set, price band, legal regime
// and the requested procurement types.
type Query struct {
	Keywords    []string
	PriceMin    *float64
	PriceMax    *float64
	LawType     string
	TenderTypes []string
	MaxResults  int
}

// Source yields raw candidate tenders for a query and enriches them on
// demand. Poll results are finite per call and not restartable.
type Source interface {
	Poll(ctx context.Context, q Query) ([]domain.Tender, error)
	Enrich(ctx context.Context, t domain.Tender) domain.EnrichedTender
}
