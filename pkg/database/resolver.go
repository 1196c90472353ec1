package database

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

// Resolver turns a query into tracks
type Resolver interface {
	Resolve(ctx context.Context, query string) (*common.LoadResult, error)
}

// CachedResolver serves repeated queries from the resolve cache and falls
// through to the wrapped resolver on a miss. Only playable results are cached.
type CachedResolver struct {
	next   Resolver
	cache  ResolveCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedResolver wraps next with cache
func NewCachedResolver(next Resolver, cache ResolveCache, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedResolver{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.Named("resolve_cache"),
	}
}

// Resolve implements Resolver. Cache failures are logged and never fail the lookup.
func (r *CachedResolver) Resolve(ctx context.Context, query string) (*common.LoadResult, error) {
	cached, err := r.cache.GetCachedResolve(ctx, query)
	if err != nil {
		r.logger.Warn("Failed to read resolve cache", zap.String("query", query), zap.Error(err))
	}
	if cached != nil && !cached.IsEmpty() {
		r.logger.Debug("Resolve cache hit", zap.String("query", query))
		return cached, nil
	}

	result, err := r.next.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	if !result.IsEmpty() {
		if err := r.cache.CacheResolve(ctx, query, result, r.ttl); err != nil {
			r.logger.Warn("Failed to write resolve cache", zap.String("query", query), zap.Error(err))
		}
	}
	return result, nil
}
