package storage

import (
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/generators"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
)

// NewRefCache builds the media reference cache selected by cache.driver.
// The store is nil unless the redis driver is in use; the caller closes it.
// When redis is unreachable the in-memory cache is returned with the error.
func NewRefCache(cfg *config.Config, logger *zap.Logger) (interfaces.RefCache, *RedisStore, error) {
	memory := generators.NewMemoryRefCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	if cfg.Cache.Driver != "redis" {
		return memory, nil, nil
	}

	store, err := NewRedisStore(cfg.Redis)
	if err != nil {
		return memory, nil, err
	}
	return NewRedisRefCache(store, cfg.Cache.TTL, logger), store, nil
}
