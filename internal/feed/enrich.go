package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/tendersniper/tender-sniper/internal/cache"
	"github.com/tendersniper/tender-sniper/internal/core/domain"
	"github.com/tendersniper/tender-sniper/internal/regions"
)

const maxPageBytes = 2 << 20

// Enricher wraps a ZakupkiSource with the persistent enrichment cache.
type Enricher struct {
	source *ZakupkiSource
	cache  *cache.Cache
	ttl    time.Duration
}

func NewEnricher(source *ZakupkiSource, c *cache.Cache, ttl time.Duration) *Enricher {
	return &Enricher{source: source, cache: c, ttl: ttl}
}

// Poll delegates to the underlying source, so an Enricher satisfies the
// full Source contract.
func (e *Enricher) Poll(ctx context.Context, q Query) ([]domain.Tender, error) {
	return e.source.Poll(ctx, q)
}

// Enrich returns the cached enriched record for a tender, fetching it on
// a miss. Only records whose detail page was fetched (Enriched) are
// cached; partial records are fetched again next time.
func (e *Enricher) Enrich(ctx context.Context, t domain.Tender) domain.EnrichedTender {
	if data, ok := e.cache.Get(ctx, cache.KindEnrichment, t.ID); ok {
		var enriched domain.EnrichedTender
		if err := json.Unmarshal(data, &enriched); err == nil {
			return enriched
		}
	}

	enriched := e.source.Enrich(ctx, t)

	if enriched.Enriched {
		if data, err := json.Marshal(enriched); err == nil {
			e.cache.Set(ctx, cache.KindEnrichment, t.ID, data, e.ttl)
		}
	}

	return enriched
}

// Enrich fetches the tender detail page and extracts the precise price,
// the submission deadline and the canonical customer region. Every
// failure degrades to a partial record carrying the feed-level fields;
// enrichment never fails the pipeline.
func (s *ZakupkiSource) Enrich(ctx context.Context, t domain.Tender) domain.EnrichedTender {
	enriched := domain.EnrichedTender{Tender: t}

	// Whatever the page yields, the region may already be resolvable
	// from feed-level fields.
	enriched.CustomerRegion = resolveRegion(t.CustomerName, t.CustomerINN, "")

	if t.URL == "" {
		return enriched
	}

	body, ok := s.fetchPage(ctx, t.URL)
	if !ok {
		return enriched
	}

	enriched.Enriched = true

	sum := sha256.Sum256(body)
	enriched.PageFingerprint = hex.EncodeToString(sum[:8])

	page := string(body)

	text := page
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page)); err == nil {
		text = doc.Text()
	}

	if price := extractPrice(text); price > 0 {
		enriched.PrecisePrice = price
	}

	if enriched.Deadline == nil {
		enriched.Deadline = extractDeadline(text)
	}

	if enriched.CustomerName == "" {
		enriched.CustomerName = extractCustomer(page)
	}

	if title := extractPurchaseObject(page); title != "" {
		enriched.EnrichedTitle = title
	}

	if inn := extractINN(text); inn != "" && enriched.CustomerINN == "" {
		enriched.CustomerINN = inn
	}

	if enriched.CustomerRegion == "" {
		enriched.CustomerRegion = resolveRegion(enriched.CustomerName, enriched.CustomerINN, text)
	}

	return enriched
}

func (s *ZakupkiSource) fetchPage(ctx context.Context, pageURL string) ([]byte, bool) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Str("url", pageURL).Msg("detail page fetch failed")
		return nil, false
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		s.logger.Debug().Int("status", resp.StatusCode).Str("url", pageURL).Msg("detail page fetch failed")
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, false
	}

	return body, true
}

// resolveRegion resolves the canonical customer region: customer-name
// tail first, then the INN prefix, then explicit address fields.
// Unresolvable input stays empty; raw text is never stored.
func resolveRegion(customerName, inn, pageText string) string {
	if customerName != "" {
		if region, ok := regions.FindIn(customerName); ok {
			return region
		}
	}

	if inn != "" {
		if region, ok := regions.FromINN(inn); ok {
			return region
		}
	}

	if pageText != "" {
		if region, ok := extractAddressRegion(pageText); ok {
			return region
		}
	}

	return ""
}
