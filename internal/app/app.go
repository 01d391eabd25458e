// Package app wires the service dependencies and exposes the
// operational modes: the long-running pipeline and a single-cycle run.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tendersniper/tender-sniper/internal/cache"
	"github.com/tendersniper/tender-sniper/internal/feed"
	"github.com/tendersniper/tender-sniper/internal/match"
	"github.com/tendersniper/tender-sniper/internal/notify"
	"github.com/tendersniper/tender-sniper/internal/oracle"
	"github.com/tendersniper/tender-sniper/internal/pipeline"
	"github.com/tendersniper/tender-sniper/internal/platform/config"
	"github.com/tendersniper/tender-sniper/internal/platform/observability"
	db "github.com/tendersniper/tender-sniper/internal/storage"
)

// App holds the wired dependencies.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
	engine   *pipeline.Engine
}

// New wires the pipeline: layered cache (memory → optional Redis →
// Postgres), feed source with cached enrichment, matcher, oracle and
// the Telegram sink.
func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) (*App, error) {
	var rdb *redis.Client

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		rdb = redis.NewClient(opts)
	}

	tierCache := cache.New(database, rdb, logger)

	source := feed.NewZakupkiSource(feed.Options{
		BaseURL:            cfg.FeedBaseURL,
		HTTPTimeout:        cfg.HTTPTimeout,
		MinRequestInterval: cfg.FeedMinRequestInterval,
	}, logger)

	enricher := feed.NewEnricher(source, tierCache, cfg.EnrichmentCacheTTL)

	var verifier oracle.Oracle
	if cfg.LLMAPIKey == "mock" {
		verifier = oracle.NewMock()
	} else {
		verifier = oracle.NewOpenAI(oracle.Config{
			APIKey:   cfg.LLMAPIKey,
			BaseURL:  cfg.LLMBaseURL,
			Model:    cfg.LLMModel,
			RateRPS:  cfg.RateLimitRPS,
			CacheTTL: cfg.OracleCacheTTL,
		}, tierCache, logger)
	}

	sink, err := notify.NewTelegramSink(cfg.BotToken, logger)
	if err != nil {
		return nil, fmt.Errorf("telegram sink init: %w", err)
	}

	matcher := match.New(match.NullRegionPolicy(cfg.NullRegionPolicy))

	engine := pipeline.New(cfg, database, enricher, matcher, verifier, sink, tierCache, logger)

	return &App{cfg: cfg, database: database, logger: logger, engine: engine}, nil
}

// StartHealthServer serves health and metrics endpoints until ctx ends.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.StartHealthServer(ctx, a.cfg.HealthPort, a.database.Pool, a.logger)
}

// RunPipeline runs poll cycles until the context is cancelled.
func (a *App) RunPipeline(ctx context.Context) error {
	return a.engine.Run(ctx)
}

// RunOnce runs exactly one poll cycle.
func (a *App) RunOnce(ctx context.Context) error {
	return a.engine.RunCycle(ctx)
}
