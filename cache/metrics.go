package cache

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("covariant.cache")

var (
	cacheHits         metric.Int64Counter
	cacheMisses       metric.Int64Counter
	cacheComputations metric.Int64Counter
	cacheEvictions    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the counters once. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		counters := []struct {
			dst  *metric.Int64Counter
			name string
			desc string
		}{
			{&cacheHits, "covariant_cache_hits_total", "Total number of cache hits"},
			{&cacheMisses, "covariant_cache_misses_total", "Total number of cache misses"},
			{&cacheComputations, "covariant_cache_computations_total", "Total number of values computed on a miss"},
			{&cacheEvictions, "covariant_cache_evictions_total", "Total number of LRU evictions"},
		}
		for _, c := range counters {
			var err error
			*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
			if err != nil {
				metricsErr = err
				return
			}
		}
	})
	return metricsErr
}

func cacheAttr(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("cache.name", name))
}

func recordHit(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1, cacheAttr(name))
}

func recordMiss(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1, cacheAttr(name))
}

func recordComputation(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheComputations.Add(ctx, 1, cacheAttr(name))
}

func recordEviction(ctx context.Context, name string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheEvictions.Add(ctx, 1, cacheAttr(name))
}
