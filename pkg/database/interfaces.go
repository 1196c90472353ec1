package database

import (
	"context"
	"time"

	"github.com/latoulicious/Hokko/pkg/common"
)

// ResolveCache stores resolve results keyed by the normalized query
type ResolveCache interface {
	CacheResolve(ctx context.Context, query string, result *common.LoadResult, ttl time.Duration) error
	GetCachedResolve(ctx context.Context, query string) (*common.LoadResult, error)
	CleanExpiredCache(ctx context.Context) (int64, error)
	GetCacheStats(ctx context.Context) (*CacheStats, error)
}
