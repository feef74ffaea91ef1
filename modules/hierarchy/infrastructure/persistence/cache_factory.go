package persistence

import (
	"github.com/redis/go-redis/v9"

	"github.com/tradelift/tradelift-sdk/modules/hierarchy/services"
	"github.com/tradelift/tradelift-sdk/pkg/configuration"
)

// NewTreeCacheFromConfig picks the tree cache backend from configuration.
// Returns nil when caching is disabled; the service treats a nil cache as
// a no-op.
func NewTreeCacheFromConfig(conf *configuration.Configuration) services.TreeCache {
	if !conf.Hierarchy.CacheEnabled {
		return nil
	}
	if conf.Hierarchy.CacheBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: conf.RedisURL})
		return NewRedisTreeCache(client, conf.Hierarchy.CacheTTL, conf.Logger())
	}
	return services.NewMemoryTreeCache(conf.Hierarchy.CacheTTL)
}
