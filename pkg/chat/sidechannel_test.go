package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
)

// memoryCache is an in-process cache with TTL support for tests.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	getErr  error
	setErr  error
}

type memoryEntry struct {
	content   []byte
	expiresAt time.Time
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]memoryEntry{}}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	entry, ok := m.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.content, nil
}

func (m *memoryCache) Set(_ context.Context, key string, content []byte, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = memoryEntry{content: content, expiresAt: time.Now().Add(duration)}
	return nil
}

func TestSideChannelCacheRoundTrip(t *testing.T) {
	cache := newMemoryCache()
	sc := chat.NewSideChannelCache(cache)
	ctx := context.Background()

	sources := json.RawMessage(`[{"url":"https://example.com"}]`)
	sc.StoreSources(ctx, "corr-1", sources)

	got := sc.Sources(ctx, "corr-1")
	assert.Equal(t, sources, got)

	// A different correlation id sees nothing.
	assert.Nil(t, sc.Sources(ctx, "corr-2"))
}

func TestSideChannelCacheKnowledgeResults(t *testing.T) {
	sc := chat.NewSideChannelCache(newMemoryCache())
	ctx := context.Background()

	results := json.RawMessage(`{"knowledge_results":[{"content":"doshas"}]}`)
	sc.StoreKnowledgeResults(ctx, "corr-1", results)

	assert.Equal(t, results, sc.KnowledgeResults(ctx, "corr-1"))

	// Sources and knowledge results are namespaced independently.
	assert.Nil(t, sc.Sources(ctx, "corr-1"))
}

func TestSideChannelCacheMissIsNotAnError(t *testing.T) {
	sc := chat.NewSideChannelCache(newMemoryCache())
	assert.Nil(t, sc.Sources(context.Background(), "never-written"))
}

func TestSideChannelCacheEmptyCorrelationID(t *testing.T) {
	cache := newMemoryCache()
	sc := chat.NewSideChannelCache(cache)
	ctx := context.Background()

	sc.StoreSources(ctx, "", json.RawMessage(`[]`))
	assert.Empty(t, cache.entries)
	assert.Nil(t, sc.Sources(ctx, ""))
}

func TestSideChannelCacheNilClient(t *testing.T) {
	sc := chat.NewSideChannelCache(nil)
	ctx := context.Background()

	// No-ops rather than panics.
	sc.StoreSources(ctx, "corr-1", json.RawMessage(`[]`))
	assert.Nil(t, sc.Sources(ctx, "corr-1"))
}

func TestSideChannelCacheDegradesOnErrors(t *testing.T) {
	cache := newMemoryCache()
	cache.setErr = fmt.Errorf("write failed")
	sc := chat.NewSideChannelCache(cache)
	ctx := context.Background()

	sc.StoreSources(ctx, "corr-1", json.RawMessage(`[]`))

	cache.setErr = nil
	cache.getErr = fmt.Errorf("read failed")
	assert.Nil(t, sc.Sources(ctx, "corr-1"))
}
