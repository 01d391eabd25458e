package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	entries map[string][]byte
	expires map[string]time.Time
	failing bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: make(map[string][]byte),
		expires: make(map[string]time.Time),
	}
}

func (s *fakeStore) GetEntry(_ context.Context, kind, key string) ([]byte, bool, error) {
	if s.failing {
		return nil, false, errors.New("store down")
	}

	full := kind + ":" + key

	value, ok := s.entries[full]
	if !ok || time.Now().After(s.expires[full]) {
		return nil, false, nil
	}

	return value, true, nil
}

func (s *fakeStore) SetEntry(_ context.Context, kind, key string, value []byte, expiresAt time.Time) error {
	if s.failing {
		return errors.New("store down")
	}

	full := kind + ":" + key
	s.entries[full] = value
	s.expires[full] = expiresAt

	return nil
}

func (s *fakeStore) DeleteExpiredEntries(_ context.Context, now time.Time) (int64, error) {
	if s.failing {
		return 0, errors.New("store down")
	}

	var removed int64

	for key, exp := range s.expires {
		if now.After(exp) {
			delete(s.entries, key)
			delete(s.expires, key)
			removed++
		}
	}

	return removed, nil
}

func newTestCache(t *testing.T, store Store) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := zerolog.Nop()

	return New(store, rdb, &logger), mr
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c, _ := newTestCache(t, store)

	_, ok := c.Get(ctx, KindEnrichment, "t1")
	require.False(t, ok)

	c.Set(ctx, KindEnrichment, "t1", []byte(`{"price":100}`), time.Hour)

	value, ok := c.Get(ctx, KindEnrichment, "t1")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"price":100}`), value)
}

func TestCachePersistentTierSurvivesMemoryLoss(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	logger := zerolog.Nop()

	first := New(store, nil, &logger)
	first.Set(ctx, KindOracle, "h1", []byte("72"), time.Hour)

	// A fresh Cache simulates a process restart: memory and Redis are
	// gone, the store still answers.
	second := New(store, nil, &logger)

	value, ok := second.Get(ctx, KindOracle, "h1")
	require.True(t, ok)
	assert.Equal(t, []byte("72"), value)
}

func TestCacheRedisTier(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	c, mr := newTestCache(t, store)

	c.Set(ctx, KindOracle, "h2", []byte("55"), time.Hour)

	got, err := mr.Get("oracle:h2")
	require.NoError(t, err)
	assert.Equal(t, "55", got)
}

func TestCacheDegradesWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.failing = true
	logger := zerolog.Nop()
	c := New(store, nil, &logger)

	// Neither call may fail or panic; reads just miss.
	c.Set(ctx, KindEnrichment, "t1", []byte("x"), time.Hour)

	value, ok := c.Get(ctx, KindEnrichment, "t2")
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestCacheSweepRemovesExpired(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	logger := zerolog.Nop()
	c := New(store, nil, &logger)

	c.Set(ctx, KindEnrichment, "old", []byte("x"), time.Millisecond)
	c.Set(ctx, KindEnrichment, "fresh", []byte("y"), time.Hour)

	time.Sleep(5 * time.Millisecond)
	c.Sweep(ctx)

	_, ok := store.entries["enrichment:old"]
	assert.False(t, ok)

	value, ok := c.Get(ctx, KindEnrichment, "fresh")
	require.True(t, ok)
	assert.Equal(t, []byte("y"), value)
}

func TestCacheExpiredMemoryEntryMisses(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	logger := zerolog.Nop()
	c := New(store, nil, &logger)

	c.Set(ctx, KindEnrichment, "t1", []byte("x"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, KindEnrichment, "t1")
	assert.False(t, ok)
}
