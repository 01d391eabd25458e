package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendersniper/tender-sniper/internal/cache"
	"github.com/tendersniper/tender-sniper/internal/core/domain"
)

func TestFromConfidence(t *testing.T) {
	tests := []struct {
		confidence int
		want       Decision
	}{
		{72, DecisionAccept},
		{40, DecisionAccept},
		{39, DecisionRecheck},
		{25, DecisionRecheck},
		{24, DecisionReject},
		{0, DecisionReject},
	}

	for _, tt := range tests {
		a := FromConfidence(tt.confidence)
		require.NotNil(t, a.Confidence)
		assert.Equal(t, tt.want, a.Decision, "confidence %d", tt.confidence)
	}
}

func TestBoostLadder(t *testing.T) {
	assert.Equal(t, 15, FromConfidence(60).Boost())
	assert.Equal(t, 15, FromConfidence(95).Boost())
	assert.Equal(t, 10, FromConfidence(40).Boost())
	assert.Equal(t, 10, FromConfidence(59).Boost())
	assert.Equal(t, 0, FromConfidence(39).Boost())
	assert.Equal(t, 0, Unknown().Boost())
}

func TestUnknownHasNoConfidence(t *testing.T) {
	a := Unknown()
	assert.Nil(t, a.Confidence)
	assert.Equal(t, DecisionUnknown, a.Decision)
}

func TestCacheKeyStableAndVersionSensitive(t *testing.T) {
	k1 := CacheKey("T1", "v1")
	k2 := CacheKey("T1", "v1")
	k3 := CacheKey("T1", "v2")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

type memStore struct {
	entries map[string][]byte
	expires map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte), expires: make(map[string]time.Time)}
}

func (s *memStore) GetEntry(_ context.Context, kind, key string) ([]byte, bool, error) {
	full := kind + ":" + key

	value, ok := s.entries[full]
	if !ok || time.Now().After(s.expires[full]) {
		return nil, false, nil
	}

	return value, true, nil
}

func (s *memStore) SetEntry(_ context.Context, kind, key string, value []byte, expiresAt time.Time) error {
	full := kind + ":" + key
	s.entries[full] = value
	s.expires[full] = expiresAt

	return nil
}

func (s *memStore) DeleteExpiredEntries(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func completionBody(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	})

	return body
}

func newOracleAgainst(t *testing.T, handler http.Handler) Oracle {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	c := cache.New(newMemStore(), nil, &logger)

	return NewOpenAI(Config{
		APIKey:   "test",
		BaseURL:  srv.URL + "/v1",
		RateRPS:  100,
		CacheTTL: time.Hour,
	}, c, &logger)
}

func laptopTender() *domain.EnrichedTender {
	return &domain.EnrichedTender{
		Tender: domain.Tender{ID: "0372-1", Title: "Поставка ноутбуков", CustomerName: "ГБУ г. Москва"},
	}
}

func TestOpenAIAssessParsesConfidence(t *testing.T) {
	calls := 0

	o := newOracleAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionBody(`{"confidence": 72, "reasoning": "прямое совпадение"}`))
	}))

	intent := Intent{Text: "ноутбуки для офиса", Version: "v1"}

	a := o.Assess(context.Background(), laptopTender(), intent)
	require.NotNil(t, a.Confidence)
	assert.Equal(t, 72, *a.Confidence)
	assert.Equal(t, DecisionAccept, a.Decision)

	// Second assessment is served from cache.
	again := o.Assess(context.Background(), laptopTender(), intent)
	require.NotNil(t, again.Confidence)
	assert.Equal(t, 72, *again.Confidence)
	assert.Equal(t, 1, calls)
}

func TestOpenAIAssessTransportErrorIsUnknownAndUncached(t *testing.T) {
	calls := 0

	o := newOracleAgainst(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	intent := Intent{Text: "ноутбуки", Version: "v1"}

	a := o.Assess(context.Background(), laptopTender(), intent)
	assert.Equal(t, DecisionUnknown, a.Decision)
	assert.Nil(t, a.Confidence)

	// UNKNOWN must not be cached: the next call hits the endpoint again.
	_ = o.Assess(context.Background(), laptopTender(), intent)
	assert.Equal(t, 2, calls)
}

func TestMockOracle(t *testing.T) {
	m := NewMock()

	hit := m.Assess(context.Background(), laptopTender(), Intent{Text: "поставка ноутбуков", Version: "v1"})
	miss := m.Assess(context.Background(), laptopTender(), Intent{Text: "медицинское оборудование", Version: "v1"})

	require.NotNil(t, hit.Confidence)
	require.NotNil(t, miss.Confidence)
	assert.Greater(t, *hit.Confidence, *miss.Confidence)
	assert.Equal(t, DecisionReject, miss.Decision)
}
