package inference

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"ShiftMetrics/internal/models/domain"
)

// rollingKey identifies one memoized rolling average. The key matches the
// grouping of the historical query; staleness is bounded by the TTL.
type rollingKey struct {
	client     domain.ClientID
	styleModel string
	field      domain.Field
	windowDays int
}

type rollingEntry struct {
	avg     float64
	samples int
}

// rollingCache is a TTL'd LRU in front of the history provider.
type rollingCache struct {
	lru *expirable.LRU[rollingKey, rollingEntry]
}

func newRollingCache(size int, ttl time.Duration) *rollingCache {
	return &rollingCache{
		lru: expirable.NewLRU[rollingKey, rollingEntry](size, nil, ttl),
	}
}

func (c *rollingCache) get(key rollingKey) (rollingEntry, bool) {
	return c.lru.Get(key)
}

func (c *rollingCache) add(key rollingKey, entry rollingEntry) {
	c.lru.Add(key, entry)
}
