// Package config loads the environment-driven service configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	BotToken    string `env:"BOT_TOKEN,required"`
	RedisURL    string `env:"REDIS_URL"`

	// Oracle.
	LLMAPIKey      string        `env:"LLM_API_KEY,required"`
	LLMBaseURL     string        `env:"LLM_BASE_URL"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	RateLimitRPS   int           `env:"RATE_LIMIT_RPS" envDefault:"1"`
	OracleCacheTTL time.Duration `env:"ORACLE_CACHE_TTL" envDefault:"24h"`

	// Feed.
	FeedBaseURL            string        `env:"FEED_BASE_URL" envDefault:"https://zakupki.gov.ru"`
	HTTPTimeout            time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	FeedMinRequestInterval time.Duration `env:"FEED_MIN_REQUEST_INTERVAL" envDefault:"2s"`
	EnrichmentCacheTTL     time.Duration `env:"ENRICHMENT_CACHE_TTL" envDefault:"168h"`

	// Pipeline cadence and concurrency.
	PollInterval            time.Duration `env:"POLL_INTERVAL" envDefault:"300s"`
	FilterConcurrency       int           `env:"FILTER_CONCURRENCY" envDefault:"4"`
	EnrichConcurrency       int           `env:"ENRICH_CONCURRENCY" envDefault:"8"`
	EnrichGlobalConcurrency int           `env:"ENRICH_GLOBAL_CONCURRENCY" envDefault:"16"`
	MaxCandidatesPerFilter  int           `env:"MAX_CANDIDATES_PER_FILTER" envDefault:"50"`
	MaxTendersPerPoll       int           `env:"MAX_TENDERS_PER_POLL" envDefault:"100"`

	// Scoring thresholds.
	PreScoreThreshold int    `env:"PRE_SCORE_THRESHOLD" envDefault:"1"`
	PreNotifyScore    int    `env:"PRE_NOTIFY_SCORE" envDefault:"30"`
	MinNotifyScore    int    `env:"MIN_NOTIFY_SCORE" envDefault:"35"`
	NullRegionPolicy  string `env:"NULL_REGION_POLICY" envDefault:"penalise"`

	// Guards and retention.
	ArchiveMaxAge          time.Duration `env:"ARCHIVE_MAX_AGE" envDefault:"2160h"`
	DeletedFilterRetention time.Duration `env:"DELETED_FILTER_RETENTION" envDefault:"720h"`

	// Per-tier daily quota caps.
	QuotaTrialNotifications   int `env:"QUOTA_TRIAL_NOTIFICATIONS" envDefault:"20"`
	QuotaTrialOracleCalls     int `env:"QUOTA_TRIAL_ORACLE_CALLS" envDefault:"20"`
	QuotaBasicNotifications   int `env:"QUOTA_BASIC_NOTIFICATIONS" envDefault:"50"`
	QuotaBasicOracleCalls     int `env:"QUOTA_BASIC_ORACLE_CALLS" envDefault:"100"`
	QuotaPremiumNotifications int `env:"QUOTA_PREMIUM_NOTIFICATIONS" envDefault:"100"`
	QuotaPremiumOracleCalls   int `env:"QUOTA_PREMIUM_ORACLE_CALLS" envDefault:"10000"`

	// Observability.
	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`

	// Database pool.
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}

// NotificationCap returns the daily notification cap for a tier.
// Unknown tiers fall back to trial.
func (c *Config) NotificationCap(tier string) int {
	switch tier {
	case "premium":
		return c.QuotaPremiumNotifications
	case "basic":
		return c.QuotaBasicNotifications
	default:
		return c.QuotaTrialNotifications
	}
}

// OracleCap returns the daily oracle-call cap for a tier.
func (c *Config) OracleCap(tier string) int {
	switch tier {
	case "premium":
		return c.QuotaPremiumOracleCalls
	case "basic":
		return c.QuotaBasicOracleCalls
	default:
		return c.QuotaTrialOracleCalls
	}
}
