package sources

import (
	"context"
	"time"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

// BatchCache keeps recent batches keyed by Query.Key so repeated runs inside
// the TTL do not hit Reddit again. Batches with failures are never cached.
type BatchCache struct {
	lru *expirable.LRU[string, *models.Batch]
}

// NewBatchCache creates a cache holding at most size batches for ttl
func NewBatchCache(size int, ttl time.Duration) *BatchCache {
	if size <= 0 {
		size = 16
	}
	return &BatchCache{
		lru: expirable.NewLRU[string, *models.Batch](size, nil, ttl),
	}
}

// Get returns the batch cached for q, if it has not expired
func (c *BatchCache) Get(q Query) (*models.Batch, bool) {
	return c.lru.Get(q.Key())
}

// Put caches a batch for q. Batches with failed communities are not cached.
func (c *BatchCache) Put(q Query, batch *models.Batch) {
	if batch == nil || len(batch.Failures()) > 0 {
		return
	}
	c.lru.Add(q.Key(), batch)
}

// Invalidate drops the batch cached for q
func (c *BatchCache) Invalidate(q Query) {
	c.lru.Remove(q.Key())
}

// Purge drops every cached batch
func (c *BatchCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cached batches
func (c *BatchCache) Len() int {
	return c.lru.Len()
}

// CachedCollect returns a cached batch for q when present, otherwise collects
// and stores it. A nil cache always collects.
func CachedCollect(ctx context.Context, cache *BatchCache, source Source, q Query) *models.Batch {
	if cache != nil {
		if batch, ok := cache.Get(q); ok {
			logrus.Debugf("Using cached batch for %s", q.Key())
			return markCached(batch)
		}
	}

	batch := Collect(ctx, source, q)
	if cache != nil {
		cache.Put(q, batch)
	}
	return batch
}

// markCached returns a copy of batch whose results are flagged as cached
func markCached(batch *models.Batch) *models.Batch {
	cp := *batch
	cp.Results = make([]models.CommunityResult, len(batch.Results))
	for i, r := range batch.Results {
		r.Cached = true
		cp.Results[i] = r
	}
	return &cp
}
