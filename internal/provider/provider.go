package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/observability"
)

// WeatherProvider is the primary upstream for current weather and forecast
// granules. A nil reading with a nil error means the provider had no data.
type WeatherProvider interface {
	GetCurrentWeather(ctx context.Context, city, country string) (*models.WeatherReading, error)
	GetForecast(ctx context.Context, city, country string, days int) ([]models.ForecastGranule, error)
	IsAvailable() bool
	Name() string
}

// AirQualityProvider is the primary upstream for AQI readings.
type AirQualityProvider interface {
	GetCurrentAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error)
	IsAvailable() bool
	Name() string
}

// Scraper is the web fallback consulted when the primary providers fail.
// IsEnabled gates every call; a disabled scraper is skipped entirely.
type Scraper interface {
	ScrapeWeather(ctx context.Context, city, country string) (*models.WeatherReading, error)
	ScrapeAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error)
	ScrapeForecast(ctx context.Context, city, country string, days int) ([]models.Forecast, error)
	IsEnabled() bool
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
)

// RetryPolicy controls the retry loop around provider calls.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy matches the historical 3-attempt, 100ms-base behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// backoff computes the exponential delay with 10% jitter for the given attempt.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

// newBreaker builds the circuit breaker shared shape for all providers:
// trip after five consecutive failures, probe again after the open timeout.
func newBreaker(name string, openTimeout time.Duration) *gobreaker.CircuitBreaker {
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// getJSON performs one GET through the breaker, records provider metrics,
// maps HTTP status codes to the package sentinels and decodes the body into dest.
func getJSON(ctx context.Context, client *http.Client, breaker *gobreaker.CircuitBreaker, provider, url string, dest any) error {
	start := time.Now()

	_, err := breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if corrID := correlationID(ctx); corrID != "" {
			req.Header.Set("X-Correlation-ID", corrID)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		if err := statusError(resp.StatusCode); err != nil {
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		if err := json.Unmarshal(body, dest); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		return nil, nil
	})

	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = errorStatusLabel(err)
	}
	observability.ProviderCallsTotal.WithLabelValues(provider, status).Inc()
	observability.ProviderCallDuration.WithLabelValues(provider, status).Observe(duration)

	return err
}

func statusError(code int) error {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidAPIKey, code)
	case http.StatusNotFound:
		return ErrLocationNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, code)
	}
	return nil
}

func errorStatusLabel(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidAPIKey), errors.Is(err, ErrLocationNotFound):
		return "client_error"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	default:
		return "error"
	}
}

// isRetryable reports whether a failed attempt is worth repeating. Client
// errors and an open breaker fail fast.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidAPIKey) || errors.Is(err, ErrLocationNotFound) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "connection")
}

// withRetry runs call up to policy.Attempts times, sleeping the backoff
// between attempts and honoring context cancellation.
func withRetry(ctx context.Context, provider string, policy RetryPolicy, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			observability.ProviderRetriesTotal.WithLabelValues(provider).Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(policy.backoff(attempt)):
			}
		}

		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

// locationQuery builds the "city" or "city,country" query value upstream
// APIs expect.
func locationQuery(city, country string) string {
	if country == "" {
		return city
	}
	return city + "," + country
}

func correlationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}
