package store

import (
	"fmt"

	"gatekeeper/internal/models"
)

// New instantiates a store from configuration.
// Supported types:
//   - redis: shared Redis store (production, multi-instance)
//   - memory: in-process store (development, tests, single instance)
func New(cfg models.StoreConfig) (Store, error) {
	switch cfg.Type {
	case models.StoreTypeRedis:
		return NewRedisStore(cfg.Redis, cfg.OpTimeout)
	case models.StoreTypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
