package chat

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sandeepstele/guruheal-agent/pkg/apis/cache"
)

const (
	sourcesKeyPrefix   = "web_search:"
	knowledgeKeyPrefix = "knowledge_base:"

	// DefaultSourcesTTL bounds how long side-channel payloads outlive the
	// request that wrote them.
	DefaultSourcesTTL = 180 * time.Second
)

// SideChannelCache bridges tool executions and the outer request handler:
// tools have no return channel to the orchestrator, so they drop retrieved
// payloads here keyed by the request's correlation id, and the orchestrator
// picks them up after generation finishes. Reads are best-effort; a miss, an
// absent correlation id, or a cache transport failure all degrade to "no
// payload".
type SideChannelCache struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSideChannelCache wraps a cache client. A nil client is allowed and
// degrades every operation to a no-op.
func NewSideChannelCache(c cache.Cache) *SideChannelCache {
	return &SideChannelCache{cache: c, ttl: DefaultSourcesTTL}
}

// StoreSources records web-search citations for the given correlation id.
// Write-once per request: callers invoke it at most once per tool run.
func (s *SideChannelCache) StoreSources(ctx context.Context, correlationID string, sources json.RawMessage) {
	s.store(ctx, sourcesKeyPrefix, correlationID, sources, "web search sources")
}

// Sources returns the citations recorded for the correlation id, or nil when
// none are available for any reason.
func (s *SideChannelCache) Sources(ctx context.Context, correlationID string) json.RawMessage {
	return s.load(ctx, sourcesKeyPrefix, correlationID, "web search sources")
}

// StoreKnowledgeResults records knowledge-base query output (filter params
// plus matched documents) for the given correlation id.
func (s *SideChannelCache) StoreKnowledgeResults(ctx context.Context, correlationID string, results json.RawMessage) {
	s.store(ctx, knowledgeKeyPrefix, correlationID, results, "knowledge base results")
}

// KnowledgeResults returns the knowledge-base payload recorded for the
// correlation id, or nil when none is available.
func (s *SideChannelCache) KnowledgeResults(ctx context.Context, correlationID string) json.RawMessage {
	return s.load(ctx, knowledgeKeyPrefix, correlationID, "knowledge base results")
}

func (s *SideChannelCache) store(ctx context.Context, prefix, correlationID string, payload json.RawMessage, what string) {
	if s == nil || s.cache == nil || correlationID == "" || len(payload) == 0 {
		return
	}

	if err := s.cache.Set(ctx, prefix+correlationID, payload, s.ttl); err != nil {
		log.WithError(err).WithField("correlationID", correlationID).Warnf("could not store %s", what)
		return
	}
	log.WithField("correlationID", correlationID).Debugf("stored %s", what)
}

func (s *SideChannelCache) load(ctx context.Context, prefix, correlationID, what string) json.RawMessage {
	if s == nil || s.cache == nil || correlationID == "" {
		return nil
	}

	b, err := s.cache.Get(ctx, prefix+correlationID)
	if err != nil {
		log.WithError(err).WithField("correlationID", correlationID).Warnf("could not read %s", what)
		return nil
	}
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
