package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/cache"
	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/observability"
)

// Cache TTLs per data type. Weather moves fastest, forecasts slowest.
const (
	weatherTTL  = 10 * time.Minute
	aqiTTL      = 30 * time.Minute
	forecastTTL = time.Hour
)

var (
	// ErrInvalidDays rejects forecast requests outside the supported range.
	ErrInvalidDays = errors.New("days must be between 1 and 7")

	// ErrSubscriptionNotFound marks lookups of unknown subscription IDs.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

func weatherKey(locationKey string) string { return "weather:" + locationKey }
func aqiKey(locationKey string) string     { return "aqi:" + locationKey }
func forecastKey(locationKey string, days int) string {
	return fmt.Sprintf("forecast:%s:%d", locationKey, days)
}

// loggerFromContext extracts the request-scoped zap.Logger if the middleware
// put one there. Returns a no-op logger otherwise so call sites stay clean.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}

// cacheGet wraps Cache.Get with error metrics. Cache trouble degrades to a
// miss, never to a request failure.
func cacheGet(ctx context.Context, c cache.Cache, key string, dest any) bool {
	if c == nil {
		return false
	}
	ok, err := c.Get(ctx, key, dest)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		loggerFromContext(ctx).Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

// cachePut wraps Cache.Put the same way; a failed put is logged and dropped.
func cachePut(ctx context.Context, c cache.Cache, key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	if err := c.Put(ctx, key, value, ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("put").Inc()
		loggerFromContext(ctx).Warn("cache put failed", zap.String("key", key), zap.Error(err))
	}
}

func recordStage(dataType, stage string) {
	observability.FallbackStageTotal.WithLabelValues(dataType, stage).Inc()
}

func newLocation(city, country string) models.Location {
	return models.Location{City: city, Country: country}
}
