package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/tendersniper/tender-sniper/internal/cache"
	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = time.Minute

	defaultModel = openai.GPT4oMini
)

// Config for the OpenAI-backed oracle.
type Config struct {
	APIKey   string
	BaseURL  string // empty for the default endpoint
	Model    string
	RateRPS  int
	CacheTTL time.Duration
}

type openaiOracle struct {
	cfg     Config
	client  *openai.Client
	cache   *cache.Cache
	logger  *zerolog.Logger
	limiter *rate.Limiter

	// Circuit breaker state.
	mu                  sync.Mutex
	consecutiveFailures int
	circuitOpenUntil    time.Time
}

// NewOpenAI builds an Oracle backed by an OpenAI-compatible endpoint.
func NewOpenAI(cfg Config, c *cache.Cache, logger *zerolog.Logger) Oracle {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	if cfg.RateRPS <= 0 {
		cfg.RateRPS = 1
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &openaiOracle{
		cfg:     cfg,
		client:  openai.NewClientWithConfig(clientCfg),
		cache:   c,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateRPS)), 5),
	}
}

type assessPayload struct {
	Tender struct {
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
		Customer    string `json:"customer"`
		Region      string `json:"region,omitempty"`
	} `json:"tender"`
	Intent struct {
		Text    string `json:"text"`
		Version string `json:"version"`
	} `json:"intent"`
}

type assessResponse struct {
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning,omitempty"`
}

const systemPrompt = `Ты проверяешь релевантность госзакупки запросу пользователя.
Оцени, насколько тендер соответствует намерению, по шкале 0-100:
0-25 — совершенно не о том; 25-40 — сомнительно; 40-60 — вероятно подходит; 60-100 — точно подходит.
Ответь JSON-объектом: {"confidence": <0-100>, "reasoning": "<краткое объяснение>"}.`

// Assess returns the cached confidence when available, otherwise asks
// the model. Any failure degrades to UNKNOWN and is never cached.
func (o *openaiOracle) Assess(ctx context.Context, tender *domain.EnrichedTender, intent Intent) Assessment {
	key := CacheKey(tender.ID, intent.Version)

	if data, ok := o.cache.Get(ctx, cache.KindOracle, key); ok {
		if confidence, err := strconv.Atoi(string(data)); err == nil {
			return FromConfidence(confidence)
		}
	}

	if err := o.checkCircuit(); err != nil {
		o.logger.Warn().Err(err).Msg("oracle circuit open, returning UNKNOWN")
		return Unknown()
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return Unknown()
	}

	confidence, err := o.ask(ctx, tender, intent)
	if err != nil {
		o.recordFailure()
		o.logger.Warn().Err(err).Str("tender", tender.ID).Msg("oracle call failed, returning UNKNOWN")

		return Unknown()
	}

	o.recordSuccess()
	o.cache.Set(ctx, cache.KindOracle, key, []byte(strconv.Itoa(confidence)), o.cfg.CacheTTL)

	return FromConfidence(confidence)
}

func (o *openaiOracle) ask(ctx context.Context, tender *domain.EnrichedTender, intent Intent) (int, error) {
	var payload assessPayload
	payload.Tender.Title = tender.SearchableText()
	payload.Tender.Description = tender.Description
	payload.Tender.Customer = tender.CustomerName
	payload.Tender.Region = tender.CustomerRegion
	payload.Intent.Text = intent.Text
	payload.Intent.Version = intent.Version

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal oracle payload: %w", err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(body)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("oracle chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("oracle returned no choices")
	}

	var parsed assessResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return 0, fmt.Errorf("parse oracle response: %w", err)
	}

	return clampConfidence(parsed.Confidence), nil
}

func (o *openaiOracle) checkCircuit() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if time.Now().Before(o.circuitOpenUntil) {
		return fmt.Errorf("circuit breaker is open until %v", o.circuitOpenUntil)
	}

	return nil
}

func (o *openaiOracle) recordSuccess() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.consecutiveFailures = 0
}

func (o *openaiOracle) recordFailure() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.consecutiveFailures++
	if o.consecutiveFailures >= circuitBreakerThreshold {
		o.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		o.logger.Warn().
			Int("consecutive_failures", o.consecutiveFailures).
			Time("open_until", o.circuitOpenUntil).
			Msg("oracle circuit breaker opened")
	}
}
