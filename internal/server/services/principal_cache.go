package services

import (
	"time"

	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	principalCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bdk_principal_cache_hits_total",
		Help: "Token principal lookups served from cache.",
	})
	principalCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bdk_principal_cache_misses_total",
		Help: "Token principal lookups that went to the database.",
	})
)

// PrincipalCache keeps recently resolved active accounts for a short TTL so
// every authenticated request does not hit the users table. Entries are
// dropped when an account is updated, toggled or deleted.
type PrincipalCache struct {
	lru *expirable.LRU[string, models.User]
}

// NewPrincipalCache returns a cache of at most size entries. A zero size or
// ttl disables caching.
func NewPrincipalCache(size int, ttl time.Duration) *PrincipalCache {
	if size <= 0 || ttl <= 0 {
		return &PrincipalCache{}
	}
	return &PrincipalCache{lru: expirable.NewLRU[string, models.User](size, nil, ttl)}
}

func (c *PrincipalCache) Get(userID string) (*models.User, bool) {
	if c == nil || c.lru == nil {
		return nil, false
	}
	u, ok := c.lru.Get(userID)
	if !ok {
		principalCacheMisses.Inc()
		return nil, false
	}
	principalCacheHits.Inc()
	return &u, true
}

func (c *PrincipalCache) Add(u *models.User) {
	if c == nil || c.lru == nil || u == nil {
		return
	}
	c.lru.Add(u.ID, *u)
}

func (c *PrincipalCache) Remove(userID string) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Remove(userID)
}

// Len is the number of live entries.
func (c *PrincipalCache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
