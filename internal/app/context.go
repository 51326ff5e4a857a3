// Package app carries the process-wide dependencies that the service and
// lifecycle layers share.
package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/cache"
)

// AppContext bundles the DB handle, the Redis cache and the logger.
// RedisCache may be nil in commands that run without a cache; callers
// check CacheAvailable before touching it.
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
}

// New creates an AppContext.
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
	}
}

// CacheAvailable reports whether a Redis cache was wired in.
func (a *AppContext) CacheAvailable() bool {
	return a.RedisCache != nil
}
