package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

const (
	rssPath           = "/epz/order/extendedsearch/rss.html"
	defaultMaxResults = 50
	userAgent         = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Options configures the zakupki source.
type Options struct {
	BaseURL            string
	HTTPTimeout        time.Duration
	MinRequestInterval time.Duration
}

// ZakupkiSource polls the procurement feed over HTTP. All requests to
// the feed host share one rate limiter: the upstream bans aggressive
// clients.
type ZakupkiSource struct {
	baseURL string
	client  *http.Client
	parser  *gofeed.Parser
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func NewZakupkiSource(opts Options, logger *zerolog.Logger) *ZakupkiSource {
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	interval := opts.MinRequestInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &ZakupkiSource{
		baseURL: opts.BaseURL,
		client:  &http.Client{Timeout: timeout},
		parser:  gofeed.NewParser(),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// Poll issues one RSS request per keyword (OR logic), deduplicates by
// procurement number and applies the client-side type filter the feed
// does not honour server-side.
func (s *ZakupkiSource) Poll(ctx context.Context, q Query) ([]domain.Tender, error) {
	maxResults := q.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	seen := make(map[string]struct{})

	var out []domain.Tender

	for _, keyword := range q.Keywords {
		if len(out) >= maxResults {
			break
		}

		tenders, err := s.pollKeyword(ctx, q, keyword)
		if err != nil {
			// One failing query must not sink the whole poll; the next
			// cycle retries.
			s.logger.Warn().Err(err).Str("keyword", keyword).Msg("feed query failed")
			continue
		}

		for _, t := range tenders {
			if t.ID == "" {
				continue
			}

			if _, dup := seen[t.ID]; dup {
				continue
			}

			if !typeAllowed(t, q.TenderTypes) {
				continue
			}

			seen[t.ID] = struct{}{}

			out = append(out, t)
			if len(out) >= maxResults {
				break
			}
		}
	}

	return out, nil
}

func (s *ZakupkiSource) pollKeyword(ctx context.Context, q Query, keyword string) ([]domain.Tender, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed rate limiter: %w", err)
	}

	reqURL := s.buildRSSURL(q, keyword)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	parsed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	tenders := make([]domain.Tender, 0, len(parsed.Items))

	for _, item := range parsed.Items {
		if t, ok := parseEntry(item, s.baseURL); ok {
			tenders = append(tenders, t)
		}
	}

	return tenders, nil
}

// buildRSSURL assembles the search query the way the upstream expects
// it. The "товары" object-type filter is intentionally absent: the feed
// misclassifies goods, so goods filtering happens client-side.
func (s *ZakupkiSource) buildRSSURL(q Query, keyword string) string {
	params := url.Values{}
	params.Set("morphology", "on")
	params.Set("sortBy", "UPDATE_DATE")
	params.Set("sortDirection", "false")
	params.Set("currencyIdGeneral", "-1")
	params.Set("af", "on")

	switch q.LawType {
	case domain.Law44FZ:
		params.Set("fz44", "on")
	case domain.Law223FZ:
		params.Set("fz223", "on")
	default:
		params.Set("fz44", "on")
		params.Set("fz223", "on")
	}

	if keyword != "" {
		params.Set("searchString", keyword)
	}

	if q.PriceMin != nil {
		params.Set("priceFromGeneral", strconv.FormatFloat(*q.PriceMin, 'f', 0, 64))
	}

	if q.PriceMax != nil {
		params.Set("priceToGeneral", strconv.FormatFloat(*q.PriceMax, 'f', 0, 64))
	}

	if code, ok := serverSideTypeCode(q.TenderTypes); ok {
		params.Set("purchaseObjectTypeCode", code)
	}

	return s.baseURL + rssPath + "?" + params.Encode()
}

// serverSideTypeCode returns the object-type code for filters that the
// upstream honours reliably: works and services only.
func serverSideTypeCode(types []string) (string, bool) {
	if len(types) != 1 {
		return "", false
	}

	switch types[0] {
	case domain.TypeWorks:
		return "2", true
	case domain.TypeServices:
		return "3", true
	default:
		return "", false
	}
}

// typeAllowed applies the client-side type filter. A declared type must
// be in the requested set; an unknown type passes here and is decided
// by the matcher, which knows the goods/services title heuristics.
func typeAllowed(t domain.Tender, wanted []string) bool {
	if len(wanted) == 0 || t.Type == "" {
		return true
	}

	for _, w := range wanted {
		if w == t.Type {
			return true
		}
	}

	return false
}
