// Package pipeline orchestrates one poll cycle per active filter: feed
// poll, staged scoring, oracle verification, idempotent reservation and
// notification delivery.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tendersniper/tender-sniper/internal/core/domain"
	"github.com/tendersniper/tender-sniper/internal/feed"
	"github.com/tendersniper/tender-sniper/internal/intent"
	"github.com/tendersniper/tender-sniper/internal/match"
	"github.com/tendersniper/tender-sniper/internal/notify"
	"github.com/tendersniper/tender-sniper/internal/oracle"
	"github.com/tendersniper/tender-sniper/internal/platform/config"
	"github.com/tendersniper/tender-sniper/internal/platform/observability"
	"github.com/tendersniper/tender-sniper/internal/platform/worker"
	db "github.com/tendersniper/tender-sniper/internal/storage"
)

// Engine states.
const (
	StateIdle     = "idle"
	StatePolling  = "polling"
	StateDraining = "draining"
	StateStopping = "stopping"
)

// Drop stages for metrics.
const (
	dropStageArchive   = "archive"
	dropStagePreScore  = "prescore"
	dropStageFullScore = "fullscore"
	dropStageCap       = "cap"
	dropStageOracle    = "oracle"
	dropStageComposite = "composite"
	dropStageDedup     = "dedup"
)

// Abandon causes, logged when a reservation is released unsent.
const (
	abandonCauseQuiet     = "quiet"
	abandonCauseQuota     = "quota"
	abandonCauseTransient = "transient"
	abandonCauseBlocked   = "blocked"
)

// Repository is the persistence surface the engine needs.
type Repository interface {
	GetActiveFilters(ctx context.Context) ([]db.ActiveFilter, error)
	ReserveDelivery(ctx context.Context, subscriberID, filterID int64, tenderID string) (db.ReserveOutcome, *db.Reservation, error)
	ConfirmDelivery(ctx context.Context, r *db.Reservation) error
	AbandonDelivery(ctx context.Context, r *db.Reservation) error
	TryConsumeQuota(ctx context.Context, subscriberID int64, resource, localDate string, limit int) (bool, error)
	MarkDeliveryBlocked(ctx context.Context, subscriberID int64) error
	SweepTentativeDeliveries(ctx context.Context, olderThan time.Duration) (int64, error)
	PurgeDeletedFilters(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Compile-time assertion that *db.DB implements Repository.
var _ Repository = (*db.DB)(nil)

// Sweeper is the cache maintenance surface.
type Sweeper interface {
	Sweep(ctx context.Context)
}

// Engine runs the poll/match/notify cycle.
type Engine struct {
	cfg     *config.Config
	repo    Repository
	source  feed.Source
	matcher *match.Matcher
	oracle  oracle.Oracle
	sink    notify.Sink
	sweeper Sweeper
	logger  *zerolog.Logger

	// globalEnrich bounds concurrent enrichments across all filters.
	globalEnrich chan struct{}

	mu    sync.Mutex
	state string
}

func New(cfg *config.Config, repo Repository, source feed.Source, m *match.Matcher, o oracle.Oracle, sink notify.Sink, sweeper Sweeper, logger *zerolog.Logger) *Engine {
	globalLimit := cfg.EnrichGlobalConcurrency
	if globalLimit <= 0 {
		globalLimit = 16
	}

	return &Engine{
		cfg:          cfg,
		repo:         repo,
		source:       source,
		matcher:      m,
		oracle:       o,
		sink:         sink,
		sweeper:      sweeper,
		logger:       logger,
		globalEnrich: make(chan struct{}, globalLimit),
		state:        StateIdle,
	}
}

// State returns the current engine state.
func (e *Engine) State() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

func (e *Engine) setState(s string) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// maxConsecutiveCycleFailures is the fatal threshold: repeated failures
// to even enumerate filters mean the persistent backend is gone and a
// human operator is required.
const maxConsecutiveCycleFailures = 3

// Run executes cycles until the context is cancelled. The pause is
// measured from the end of one cycle to the start of the next, so
// cycles never overlap.
func (e *Engine) Run(ctx context.Context) error {
	defer e.setState(StateStopping)

	failures := 0

	return worker.Loop(ctx, worker.Config{
		Name:               "pipeline",
		PauseBetweenCycles: e.cfg.PollInterval,
		Process: func(ctx context.Context) error {
			if err := e.RunCycle(ctx); err != nil {
				failures++
				if failures >= maxConsecutiveCycleFailures {
					return fmt.Errorf("persistent backend unavailable for %d cycles: %w", failures, err)
				}

				return err
			}

			failures = 0

			return nil
		},
		OnError: func(error) bool {
			return failures < maxConsecutiveCycleFailures
		},
		PeriodicTasks: []worker.PeriodicTask{
			{
				Name:     "sweep-tentative",
				Interval: e.cfg.PollInterval,
				Run:      e.sweepTentative,
			},
			{
				Name:     "sweep-cache",
				Interval: time.Hour,
				Run:      e.sweepCache,
			},
			{
				Name:     "purge-deleted-filters",
				Interval: 24 * time.Hour,
				Run:      e.purgeDeletedFilters,
			},
		},
		Logger: e.logger,
	})
}

// RunCycle processes every active filter once.
func (e *Engine) RunCycle(ctx context.Context) error {
	started := time.Now()
	correlationID := uuid.New().String()
	logger := e.logger.With().Str("correlation_id", correlationID).Logger()

	e.setState(StatePolling)
	defer e.setState(StateIdle)

	filters, err := e.repo.GetActiveFilters(ctx)
	if err != nil {
		observability.CyclesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("get active filters: %w", err)
	}

	observability.ActiveFilters.Set(float64(len(filters)))
	logger.Info().Int("filters", len(filters)).Msg("starting poll cycle")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.filterConcurrency())

	for i := range filters {
		af := filters[i]

		g.Go(func() error {
			defer worker.RecoverPanic(&logger, "process filter")

			e.processFilter(gctx, logger, &af)

			return nil
		})
	}

	e.setState(StateDraining)

	if err := g.Wait(); err != nil {
		observability.CyclesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("cycle: %w", err)
	}

	observability.CyclesTotal.WithLabelValues("ok").Inc()
	observability.CycleDurationSeconds.Observe(time.Since(started).Seconds())
	logger.Info().Dur("took", time.Since(started)).Msg("poll cycle finished")

	return nil
}

func (e *Engine) filterConcurrency() int {
	if e.cfg.FilterConcurrency > 0 {
		return e.cfg.FilterConcurrency
	}

	return 4
}

// processFilter runs the staged cascade for one filter. Failures are
// contained: a broken feed query or sink skips this filter for the
// cycle, never the whole cycle.
func (e *Engine) processFilter(ctx context.Context, logger zerolog.Logger, af *db.ActiveFilter) {
	flog := logger.With().Int64("filter_id", af.Filter.ID).Int64("subscriber_id", af.Subscriber.ID).Logger()

	// A filter without keywords cannot be queried; the front-end
	// validates this, so hitting it here means bad data.
	if len(af.Filter.Keywords) == 0 {
		flog.Warn().Msg("filter has no keywords, skipping")
		return
	}

	tenders, err := e.source.Poll(ctx, feed.Query{
		Keywords:    af.Filter.Keywords,
		PriceMin:    af.Filter.PriceMin,
		PriceMax:    af.Filter.PriceMax,
		LawType:     af.Filter.LawType,
		TenderTypes: af.Filter.TenderTypes,
		MaxResults:  e.cfg.MaxTendersPerPoll,
	})
	if err != nil {
		flog.Warn().Err(err).Msg("feed poll failed, retrying next cycle")
		return
	}

	observability.CandidatesSeen.Add(float64(len(tenders)))

	now := time.Now()
	candidates := e.preScreen(tenders, &af.Filter, now)

	if len(candidates) == 0 {
		return
	}

	enriched := e.enrichAll(ctx, candidates)
	survivors := e.fullScore(enriched, &af.Filter, now, flog)

	if limit := e.cfg.MaxCandidatesPerFilter; limit > 0 && len(survivors) > limit {
		observability.CandidatesDropped.WithLabelValues(dropStageCap).Add(float64(len(survivors) - limit))
		flog.Info().Int("dropped", len(survivors)-limit).Msg("candidate cap reached, dropping tail")

		survivors = survivors[:limit]
	}

	// Delivery is strictly sequential per filter and in feed order, so
	// a crash mid-filter loses nothing already confirmed and duplicates
	// nothing on the next cycle.
	for _, s := range survivors {
		e.deliver(ctx, flog, af, s.tender, s.report)
	}
}

type scored struct {
	tender *domain.EnrichedTender
	report *domain.ScoreReport
}

// preScreen applies the archive guard and the pre-score gate to raw
// feed candidates.
func (e *Engine) preScreen(tenders []domain.Tender, f *domain.Filter, now time.Time) []domain.Tender {
	out := make([]domain.Tender, 0, len(tenders))

	for _, t := range tenders {
		if !t.PublishedAt.IsZero() && now.Sub(t.PublishedAt) > e.cfg.ArchiveMaxAge {
			observability.CandidatesDropped.WithLabelValues(dropStageArchive).Inc()
			continue
		}

		report := e.matcher.PreScore(&t, f)
		if report.Class == domain.ClassReject || report.Score < e.cfg.PreScoreThreshold {
			observability.CandidatesDropped.WithLabelValues(dropStagePreScore).Inc()
			continue
		}

		out = append(out, t)
	}

	return out
}

// enrichAll fetches detail pages with bounded parallelism per filter
// and globally, preserving feed order in the result.
func (e *Engine) enrichAll(ctx context.Context, tenders []domain.Tender) []domain.EnrichedTender {
	out := make([]domain.EnrichedTender, len(tenders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.enrichConcurrency())

	for i := range tenders {
		g.Go(func() error {
			select {
			case e.globalEnrich <- struct{}{}:
			case <-gctx.Done():
				out[i] = domain.EnrichedTender{Tender: tenders[i]}
				return nil
			}

			defer func() { <-e.globalEnrich }()

			out[i] = e.source.Enrich(gctx, tenders[i])

			if out[i].Enriched {
				observability.EnrichmentsTotal.WithLabelValues("ok").Inc()
			} else {
				observability.EnrichmentsTotal.WithLabelValues("partial").Inc()
			}

			return nil
		})
	}

	_ = g.Wait()

	return out
}

func (e *Engine) enrichConcurrency() int {
	if e.cfg.EnrichConcurrency > 0 {
		return e.cfg.EnrichConcurrency
	}

	return 8
}

// fullScore re-scores enriched candidates and keeps those clearing the
// pre-notify threshold, in feed order.
func (e *Engine) fullScore(tenders []domain.EnrichedTender, f *domain.Filter, now time.Time, flog zerolog.Logger) []scored {
	out := make([]scored, 0, len(tenders))

	for i := range tenders {
		t := &tenders[i]

		report := e.matcher.Score(t, f, now)
		if report.Class == domain.ClassReject || report.Score < e.cfg.PreNotifyScore {
			observability.CandidatesDropped.WithLabelValues(dropStageFullScore).Inc()
			flog.Debug().Str("tender", t.ID).Str("cause", report.RejectCause).Int("score", report.Score).Msg("dropped at full score")

			continue
		}

		out = append(out, scored{tender: t, report: report})
	}

	return out
}

// deliver runs the oracle, reservation, quota and send steps for one
// survivor. The reservation is confirmed or abandoned on every path.
func (e *Engine) deliver(ctx context.Context, flog zerolog.Logger, af *db.ActiveFilter, tender *domain.EnrichedTender, report *domain.ScoreReport) {
	sub := &af.Subscriber
	now := time.Now()

	assessment := e.assess(ctx, flog, af, tender)
	report.OracleConfidence = assessment.Confidence
	report.Boost = assessment.Boost()

	if assessment.Decision == oracle.DecisionReject || assessment.Decision == oracle.DecisionRecheck {
		observability.CandidatesDropped.WithLabelValues(dropStageOracle).Inc()
		flog.Debug().Str("tender", tender.ID).Str("decision", string(assessment.Decision)).Msg("dropped by oracle")

		return
	}

	if report.Composite() < e.cfg.MinNotifyScore {
		observability.CandidatesDropped.WithLabelValues(dropStageComposite).Inc()
		return
	}

	outcome, reservation, err := e.repo.ReserveDelivery(ctx, sub.ID, af.Filter.ID, tender.ID)
	if err != nil {
		flog.Error().Err(err).Str("tender", tender.ID).Msg("reserve failed")
		return
	}

	if outcome == db.AlreadyDelivered {
		observability.CandidatesDropped.WithLabelValues(dropStageDedup).Inc()
		return
	}

	// From here the tentative row must be resolved on every exit.
	if inQuietHours(now, sub) {
		e.abandon(ctx, flog, reservation, abandonCauseQuiet)
		return
	}

	granted, err := e.repo.TryConsumeQuota(ctx, sub.ID, db.ResourceNotifications, localDate(now, sub), e.cfg.NotificationCap(sub.Tier))
	if err != nil || !granted {
		if err != nil {
			flog.Error().Err(err).Msg("notification quota check failed")
		}

		e.abandon(ctx, flog, reservation, abandonCauseQuota)

		return
	}

	switch e.sink.Send(ctx, sub, &af.Filter, tender, report) {
	case notify.Sent:
		observability.SendsTotal.WithLabelValues("sent").Inc()

		if err := e.repo.ConfirmDelivery(ctx, reservation); err != nil {
			flog.Error().Err(err).Str("tender", tender.ID).Msg("confirm failed")
		}
	case notify.Transient:
		observability.SendsTotal.WithLabelValues("transient").Inc()
		e.abandon(ctx, flog, reservation, abandonCauseTransient)
	case notify.Permanent:
		observability.SendsTotal.WithLabelValues("permanent").Inc()
		e.abandon(ctx, flog, reservation, abandonCauseBlocked)

		if err := e.repo.MarkDeliveryBlocked(ctx, sub.ID); err != nil {
			flog.Error().Err(err).Int64("subscriber_id", sub.ID).Msg("failed to mark subscriber blocked")
		}
	}
}

// assess consults the oracle under the subscriber's oracle quota.
// Exhausted quota yields UNKNOWN: no boost and nothing cached.
func (e *Engine) assess(ctx context.Context, flog zerolog.Logger, af *db.ActiveFilter, tender *domain.EnrichedTender) oracle.Assessment {
	sub := &af.Subscriber

	granted, err := e.repo.TryConsumeQuota(ctx, sub.ID, db.ResourceOracleCalls, localDate(time.Now(), sub), e.cfg.OracleCap(sub.Tier))
	if err != nil {
		flog.Error().Err(err).Msg("oracle quota check failed")
		return oracle.Unknown()
	}

	if !granted {
		flog.Debug().Int64("subscriber_id", sub.ID).Msg("oracle quota exhausted, treating as UNKNOWN")
		observability.OracleCallsTotal.WithLabelValues(string(oracle.DecisionUnknown)).Inc()

		return oracle.Unknown()
	}

	assessment := e.oracle.Assess(ctx, tender, intent.Derive(&af.Filter))
	observability.OracleCallsTotal.WithLabelValues(string(assessment.Decision)).Inc()

	return assessment
}

func (e *Engine) abandon(ctx context.Context, flog zerolog.Logger, r *db.Reservation, cause string) {
	flog.Debug().Str("tender", r.TenderID).Str("cause", cause).Msg("abandoning reservation")

	if err := e.repo.AbandonDelivery(ctx, r); err != nil {
		flog.Error().Err(err).Str("tender", r.TenderID).Msg("abandon failed")
	}
}

func (e *Engine) sweepTentative(ctx context.Context) {
	swept, err := e.repo.SweepTentativeDeliveries(ctx, e.cfg.PollInterval)
	if err != nil {
		e.logger.Error().Err(err).Msg("tentative sweep failed")
		return
	}

	if swept > 0 {
		observability.TentativeSwept.Add(float64(swept))
		e.logger.Info().Int64("swept", swept).Msg("reclaimed stale tentative deliveries")
	}
}

func (e *Engine) sweepCache(ctx context.Context) {
	if e.sweeper != nil {
		e.sweeper.Sweep(ctx)
	}
}

func (e *Engine) purgeDeletedFilters(ctx context.Context) {
	purged, err := e.repo.PurgeDeletedFilters(ctx, e.cfg.DeletedFilterRetention)
	if err != nil {
		e.logger.Error().Err(err).Msg("deleted-filter purge failed")
		return
	}

	if purged > 0 {
		e.logger.Info().Int64("purged", purged).Msg("hard-expired soft-deleted filters")
	}
}
