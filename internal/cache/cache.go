// Package cache memoizes successful upstream responses for a bounded time.
package cache

import (
	"context"
	"net/url"
	"time"

	"bookgateway/internal/components/assert"
	"bookgateway/internal/components/metrics"

	"github.com/PuerkitoBio/purell"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("bookgateway/internal/cache")

const (
	resultHit    = "hit"
	resultMiss   = "miss"
	resultShared = "shared"
)

// Cache is a size bounded LRU whose entries expire after a ttl. Concurrent
// lookups of the same missing key share a single fetch.
//
// A nil *Cache is valid and calls fetch every time.
type Cache[T any] struct {
	name  string
	lru   *expirable.LRU[string, T]
	group singleflight.Group
}

func New[T any](name string, size int, ttl time.Duration) *Cache[T] {
	assert.NotEmptyStr(name, "name")
	assert.Positive(size, "size")
	assert.Positive(int(ttl), "ttl")

	return &Cache[T]{
		name: name,
		lru:  expirable.NewLRU[string, T](size, nil, ttl),
	}
}

// Key builds the cache key of an upstream request, urls that only differ in
// ways that don't change the response (case of the host, default port,
// fragment, query order) give the same key. u is left untouched.
func Key(op string, u *url.URL) string {
	copied := *u
	normalized := purell.NormalizeURL(
		&copied,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveDirectoryIndex|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	)
	return op + ":" + normalized
}

// Get returns the value cached under key or calls fetch to produce it. Errors
// are returned to every caller waiting on the fetch but are never stored.
//
// The fetch runs detached from the cancellation of whichever caller started
// it but keeps that caller's deadline, every caller stops waiting when its own
// ctx is done.
func (c *Cache[T]) Get(ctx context.Context, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fetch(ctx)
	}

	ctx, span := tracer.Start(ctx, "cache.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("cache_name", c.name),
		attribute.String("cache_key", key),
	)

	if value, ok := c.lru.Get(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues(c.name, resultHit).Inc()
		span.AddEvent("cache hit")
		return value, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := detach(ctx)
		defer cancel()

		value, err := fetch(fetchCtx)
		if err != nil {
			return value, err
		}
		c.lru.Add(key, value)
		return value, nil
	})

	select {
	case res := <-ch:
		result := resultMiss
		if res.Shared {
			result = resultShared
		}
		metrics.CacheLookupsTotal.WithLabelValues(c.name, result).Inc()

		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, "fetch failed")
			var zero T
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	case <-ctx.Done():
		span.SetStatus(codes.Error, "caller gave up waiting")
		var zero T
		return zero, ctx.Err()
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(detached, deadline)
	}
	return context.WithCancel(detached)
}

// Len returns the number of live entries.
func (c *Cache[T]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
