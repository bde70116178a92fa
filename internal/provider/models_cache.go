package provider

import (
	"slices"
	"sync"
	"time"

	"github.com/set-night/mindchat/internal/domain"
)

// ModelsCache keeps a listed model set for ttl.
type ModelsCache struct {
	mu       sync.RWMutex
	models   []domain.Model
	cachedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewModelsCache(ttl time.Duration) *ModelsCache {
	return &ModelsCache{ttl: ttl, now: time.Now}
}

// Get returns nil when the cache is empty or expired.
func (c *ModelsCache) Get() []domain.Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.models == nil || c.now().Sub(c.cachedAt) > c.ttl {
		return nil
	}
	return slices.Clone(c.models)
}

func (c *ModelsCache) Set(models []domain.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = slices.Clone(models)
	c.cachedAt = c.now()
}
