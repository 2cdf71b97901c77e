package group_cache

import (
	"context"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/protocol"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultTTL = 300 * time.Second

type groupCacheMetrics struct {
	lookupCounter *prometheus.CounterVec
	storeCounter  prometheus.Counter
}

var metrics *groupCacheMetrics

func init() {
	metrics = new(groupCacheMetrics)

	metrics.lookupCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_connector_group_metadata_cache_lookup_count",
		Help: "The number of group metadata cache lookups",
	}, []string{"result"})

	metrics.storeCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_connector_group_metadata_cache_store_count",
		Help: "The number of group metadata entries written to the cache",
	})
}

// Cache holds group metadata keyed by group id.  Entries expire after the ttl
// and are handed out by reference, so callers must not mutate them.
type Cache struct {
	entries *expirable.LRU[string, *protocol.GroupMetadata]
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	// size 0 means unbounded
	return &Cache{entries: expirable.NewLRU[string, *protocol.GroupMetadata](0, nil, ttl)}
}

func (c *Cache) Get(groupID string) (*protocol.GroupMetadata, bool) {
	metadata, ok := c.entries.Get(groupID)
	if ok {
		metrics.lookupCounter.WithLabelValues("hit").Inc()
	} else {
		metrics.lookupCounter.WithLabelValues("miss").Inc()
	}
	return metadata, ok
}

func (c *Cache) Set(groupID string, metadata *protocol.GroupMetadata) {
	metrics.storeCounter.Inc()
	c.entries.Add(groupID, metadata)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

// Lookup adapts the cache to the protocol's cached group metadata callback
func (c *Cache) Lookup(ctx context.Context, groupID string) (*protocol.GroupMetadata, bool) {
	return c.Get(groupID)
}
