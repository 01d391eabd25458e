package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
	"github.com/tendersniper/tender-sniper/internal/feed"
	"github.com/tendersniper/tender-sniper/internal/match"
	"github.com/tendersniper/tender-sniper/internal/notify"
	"github.com/tendersniper/tender-sniper/internal/oracle"
	"github.com/tendersniper/tender-sniper/internal/platform/config"
	db "github.com/tendersniper/tender-sniper/internal/storage"
)

func ptr[T any](v T) *T { return &v }

// fakeRepo is an in-memory Repository with the same atomicity
// semantics as the Postgres implementation.
type fakeRepo struct {
	mu         sync.Mutex
	filters    []db.ActiveFilter
	deliveries map[string]string
	quotas     map[string]int
	quotaDates map[string]string
	blocked    map[int64]bool
}

func newFakeRepo(filters ...db.ActiveFilter) *fakeRepo {
	return &fakeRepo{
		filters:    filters,
		deliveries: make(map[string]string),
		quotas:     make(map[string]int),
		quotaDates: make(map[string]string),
		blocked:    make(map[int64]bool),
	}
}

func deliveryKey(subscriberID, filterID int64, tenderID string) string {
	return fmt.Sprintf("%d:%d:%s", subscriberID, filterID, tenderID)
}

func (r *fakeRepo) GetActiveFilters(context.Context) ([]db.ActiveFilter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]db.ActiveFilter, 0, len(r.filters))

	for _, af := range r.filters {
		if !r.blocked[af.Subscriber.ID] {
			out = append(out, af)
		}
	}

	return out, nil
}

func (r *fakeRepo) ReserveDelivery(_ context.Context, subscriberID, filterID int64, tenderID string) (db.ReserveOutcome, *db.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.blocked[subscriberID] {
		return db.AlreadyDelivered, nil, nil
	}

	key := deliveryKey(subscriberID, filterID, tenderID)
	if _, exists := r.deliveries[key]; exists {
		return db.AlreadyDelivered, nil, nil
	}

	r.deliveries[key] = db.DeliveryTentative

	return db.Reserved, &db.Reservation{SubscriberID: subscriberID, FilterID: filterID, TenderID: tenderID}, nil
}

func (r *fakeRepo) ConfirmDelivery(_ context.Context, res *db.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deliveries[deliveryKey(res.SubscriberID, res.FilterID, res.TenderID)] = db.DeliveryConfirmed

	return nil
}

func (r *fakeRepo) AbandonDelivery(_ context.Context, res *db.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := deliveryKey(res.SubscriberID, res.FilterID, res.TenderID)
	if r.deliveries[key] == db.DeliveryTentative {
		delete(r.deliveries, key)
	}

	return nil
}

func (r *fakeRepo) TryConsumeQuota(_ context.Context, subscriberID int64, resource, localDate string, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%d:%s", subscriberID, resource)

	if r.quotaDates[key] != localDate {
		r.quotaDates[key] = localDate
		r.quotas[key] = 0
	}

	if r.quotas[key]+1 > limit {
		return false, nil
	}

	r.quotas[key]++

	return true, nil
}

func (r *fakeRepo) MarkDeliveryBlocked(_ context.Context, subscriberID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.blocked[subscriberID] = true

	return nil
}

func (r *fakeRepo) ClearDeliveryBlocked(subscriberID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.blocked[subscriberID] = false
}

func (r *fakeRepo) SweepTentativeDeliveries(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) PurgeDeletedFilters(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (r *fakeRepo) deliveryState(subscriberID, filterID int64, tenderID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.deliveries[deliveryKey(subscriberID, filterID, tenderID)]
}

func (r *fakeRepo) quotaCount(subscriberID int64, resource string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.quotas[fmt.Sprintf("%d:%s", subscriberID, resource)]
}

// fakeFeed serves a fixed poll result and per-tender enrichments.
type fakeFeed struct {
	mu          sync.Mutex
	tenders     []domain.Tender
	enrichments map[string]domain.EnrichedTender
	enrichCalls int
}

func (f *fakeFeed) Poll(context.Context, feed.Query) ([]domain.Tender, error) {
	return f.tenders, nil
}

func (f *fakeFeed) Enrich(_ context.Context, t domain.Tender) domain.EnrichedTender {
	f.mu.Lock()
	f.enrichCalls++
	f.mu.Unlock()

	if enriched, ok := f.enrichments[t.ID]; ok {
		return enriched
	}

	return domain.EnrichedTender{Tender: t}
}

// fakeOracle returns a fixed confidence.
type fakeOracle struct {
	mu         sync.Mutex
	confidence int
	unknown    bool
	calls      int
}

func (o *fakeOracle) Assess(context.Context, *domain.EnrichedTender, oracle.Intent) oracle.Assessment {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()

	if o.unknown {
		return oracle.Unknown()
	}

	return oracle.FromConfidence(o.confidence)
}

// fakeSink records sends and returns scripted outcomes.
type fakeSink struct {
	mu       sync.Mutex
	outcomes []notify.Outcome
	sent     []string
}

func (s *fakeSink) Send(_ context.Context, _ *domain.Subscriber, _ *domain.Filter, tender *domain.EnrichedTender, _ *domain.ScoreReport) notify.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := notify.Sent
	if len(s.outcomes) > 0 {
		outcome = s.outcomes[0]
		s.outcomes = s.outcomes[1:]
	}

	if outcome == notify.Sent {
		s.sent = append(s.sent, tender.ID)
	}

	return outcome
}

func (s *fakeSink) sentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.sent))
	copy(out, s.sent)

	return out
}

func testConfig() *config.Config {
	return &config.Config{
		PollInterval:              300 * time.Second,
		FilterConcurrency:         2,
		EnrichConcurrency:         4,
		EnrichGlobalConcurrency:   8,
		MaxCandidatesPerFilter:    50,
		MaxTendersPerPoll:         100,
		PreScoreThreshold:         1,
		PreNotifyScore:            30,
		MinNotifyScore:            35,
		ArchiveMaxAge:             90 * 24 * time.Hour,
		DeletedFilterRetention:    30 * 24 * time.Hour,
		QuotaTrialNotifications:   20,
		QuotaTrialOracleCalls:     20,
		QuotaBasicNotifications:   50,
		QuotaBasicOracleCalls:     100,
		QuotaPremiumNotifications: 100,
		QuotaPremiumOracleCalls:   10000,
	}
}

func basicSubscriber() domain.Subscriber {
	return domain.Subscriber{
		ID:         1,
		ChatID:     100,
		Tier:       domain.TierBasic,
		QuietStart: "22:00",
		QuietEnd:   "09:00",
		Timezone:   "UTC",
	}
}

func laptopActiveFilter() db.ActiveFilter {
	return db.ActiveFilter{
		Subscriber: alwaysAwake(basicSubscriber()),
		Filter: domain.Filter{
			ID:              10,
			SubscriberID:    1,
			Name:            "IT оборудование",
			IsActive:        true,
			Keywords:        []string{"ноутбук"},
			Regions:         []string{"Москва"},
			PriceMin:        ptr(500000.0),
			PriceMax:        ptr(2000000.0),
			TenderTypes:     []string{domain.TypeGoods},
			LawType:         domain.Law44FZ,
			MinDeadlineDays: 5,
		},
	}
}

// alwaysAwake disables quiet hours so scenario tests are independent of
// the wall clock.
func alwaysAwake(s domain.Subscriber) domain.Subscriber {
	s.QuietStart = ""
	s.QuietEnd = ""

	return s
}

func laptopTender() (domain.Tender, domain.EnrichedTender) {
	deadline := time.Now().Add(10 * 24 * time.Hour)

	raw := domain.Tender{
		ID:          "0372-1",
		Title:       "Поставка ноутбуков",
		Price:       1200000,
		Type:        domain.TypeGoods,
		LawType:     domain.Law44FZ,
		PublishedAt: time.Now().Add(-48 * time.Hour),
	}

	enriched := domain.EnrichedTender{
		Tender:         raw,
		PrecisePrice:   1200000,
		CustomerRegion: "Москва",
		Enriched:       true,
	}
	enriched.Deadline = &deadline

	return raw, enriched
}

func newEngine(cfg *config.Config, repo Repository, f *fakeFeed, o oracle.Oracle, s notify.Sink) *Engine {
	logger := zerolog.Nop()
	return New(cfg, repo, f, match.New(match.NullRegionPenalise), o, s, nil, &logger)
}

func TestCycleBasicMatchAndSend(t *testing.T) {
	raw, enriched := laptopTender()

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{}
	o := &fakeOracle{confidence: 72}

	engine := newEngine(testConfig(), repo, feedSrc, o, sink)

	require.NoError(t, engine.RunCycle(context.Background()))

	assert.Equal(t, []string{"0372-1"}, sink.sentIDs())
	assert.Equal(t, db.DeliveryConfirmed, repo.deliveryState(1, 10, "0372-1"))
	assert.Equal(t, 1, repo.quotaCount(1, db.ResourceNotifications))
	assert.Equal(t, 1, o.calls)
}

func TestCycleDedupAcrossCycles(t *testing.T) {
	raw, enriched := laptopTender()

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))
	require.NoError(t, engine.RunCycle(context.Background()))

	assert.Len(t, sink.sentIDs(), 1)
	assert.Equal(t, 1, repo.quotaCount(1, db.ResourceNotifications))
}

func TestCycleIdempotentAgainstSameFeed(t *testing.T) {
	raw, enriched := laptopTender()

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{
		tenders:     []domain.Tender{raw, raw},
		enrichments: map[string]domain.EnrichedTender{raw.ID: enriched},
	}
	sink := &fakeSink{}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))

	assert.Len(t, sink.sentIDs(), 1)
}

func TestCycleNotificationQuotaExhaustion(t *testing.T) {
	raw1, enriched1 := laptopTender()

	raw2 := raw1
	raw2.ID = "0372-2"
	enriched2 := enriched1
	enriched2.ID = "0372-2"

	cfg := testConfig()
	cfg.QuotaBasicNotifications = 1

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{
		tenders: []domain.Tender{raw1, raw2},
		enrichments: map[string]domain.EnrichedTender{
			raw1.ID: enriched1,
			raw2.ID: enriched2,
		},
	}
	sink := &fakeSink{}

	engine := newEngine(cfg, repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))

	// Feed order decides who gets the last quota unit; the loser keeps
	// no ledger row and stays eligible after the reset.
	assert.Equal(t, []string{"0372-1"}, sink.sentIDs())
	assert.Equal(t, db.DeliveryConfirmed, repo.deliveryState(1, 10, "0372-1"))
	assert.Empty(t, repo.deliveryState(1, 10, "0372-2"))

	// Same day: nothing more goes out.
	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Len(t, sink.sentIDs(), 1)
}

func TestCycleBlockedRecipient(t *testing.T) {
	raw, enriched := laptopTender()

	repo := newFakeRepo(laptopActiveFilter())
	repo.blocked[1] = true

	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Empty(t, sink.sentIDs())
	assert.Empty(t, repo.deliveryState(1, 10, raw.ID))

	// Liveness returns: the next cycle delivers.
	repo.ClearDeliveryBlocked(1)

	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Equal(t, []string{raw.ID}, sink.sentIDs())
}

func TestCyclePermanentSinkFailureBlocksSubscriber(t *testing.T) {
	raw, enriched := laptopTender()

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{outcomes: []notify.Outcome{notify.Permanent}}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))

	assert.Empty(t, sink.sentIDs())
	assert.True(t, repo.blocked[1])
	assert.Empty(t, repo.deliveryState(1, 10, raw.ID))
}

func TestCycleTransientSinkFailureRetriesNextCycle(t *testing.T) {
	raw, enriched := laptopTender()

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{outcomes: []notify.Outcome{notify.Transient}}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Empty(t, sink.sentIDs())
	assert.Empty(t, repo.deliveryState(1, 10, raw.ID))

	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Equal(t, []string{raw.ID}, sink.sentIDs())
	assert.Equal(t, db.DeliveryConfirmed, repo.deliveryState(1, 10, raw.ID))
}

func TestCycleQuietHoursDefersDelivery(t *testing.T) {
	raw, enriched := laptopTender()

	af := laptopActiveFilter()
	af.Subscriber.QuietStart = "00:00"
	af.Subscriber.QuietEnd = "23:59"
	af.Subscriber.Timezone = "UTC"

	repo := newFakeRepo(af)
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))

	// Deferred: no send, no ledger row, no notification quota charged.
	assert.Empty(t, sink.sentIDs())
	assert.Empty(t, repo.deliveryState(1, 10, raw.ID))
	assert.Equal(t, 0, repo.quotaCount(1, db.ResourceNotifications))
}

func TestCycleOracleQuotaExhaustedMeansNoBoost(t *testing.T) {
	raw, enriched := laptopTender()

	cfg := testConfig()
	cfg.MinNotifyScore = 50

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{}
	o := &fakeOracle{confidence: 72}

	cfg.QuotaBasicOracleCalls = 0

	engine := newEngine(cfg, repo, feedSrc, o, sink)

	require.NoError(t, engine.RunCycle(context.Background()))

	// Full score is 48 (root 18 + price 20 + region 10). With the
	// oracle quota exhausted there is no +15 boost, so the composite
	// stays below 50 and nothing is sent.
	assert.Empty(t, sink.sentIDs())
	assert.Equal(t, 0, o.calls)

	// With quota available the boost lifts the composite to 63.
	cfg.QuotaBasicOracleCalls = 100

	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Equal(t, []string{raw.ID}, sink.sentIDs())
	assert.Equal(t, 1, o.calls)
}

func TestCycleOracleRejectDrops(t *testing.T) {
	raw, enriched := laptopTender()

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 10}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Empty(t, sink.sentIDs())
}

func TestCycleArchiveGuard(t *testing.T) {
	raw, enriched := laptopTender()
	raw.PublishedAt = time.Now().Add(-100 * 24 * time.Hour)

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))

	assert.Empty(t, sink.sentIDs())
	assert.Equal(t, 0, feedSrc.enrichCalls)
}

func TestCycleExpiredDeadlineGuard(t *testing.T) {
	raw, enriched := laptopTender()
	soon := time.Now().Add(2 * 24 * time.Hour)
	enriched.Deadline = &soon // filter requires 5 days of margin

	repo := newFakeRepo(laptopActiveFilter())
	feedSrc := &fakeFeed{tenders: []domain.Tender{raw}, enrichments: map[string]domain.EnrichedTender{raw.ID: enriched}}
	sink := &fakeSink{}

	engine := newEngine(testConfig(), repo, feedSrc, &fakeOracle{confidence: 72}, sink)

	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Empty(t, sink.sentIDs())
}

func TestEngineStateTransitions(t *testing.T) {
	repo := newFakeRepo()
	engine := newEngine(testConfig(), repo, &fakeFeed{}, &fakeOracle{}, &fakeSink{})

	assert.Equal(t, StateIdle, engine.State())
	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Equal(t, StateIdle, engine.State())
}
