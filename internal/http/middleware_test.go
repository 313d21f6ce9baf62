package http

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-platform/internal/cache"
	"github.com/kjstillabower/weather-platform/internal/service"
)

func TestRateLimitMiddleware(t *testing.T) {
	store := newStubStorage()
	weatherSvc := service.NewWeatherService(&stubWeatherProvider{}, &stubAirProvider{}, &stubScraper{}, cache.NewInMemoryCache(), store)
	h := NewHandler(weatherSvc, service.NewSubscriptionService(store), HealthDeps{}, zap.NewNop())
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	router := NewRouter(h, zap.NewNop(), limiter, time.Second)

	if rec := doRequest(router, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}
	rec := doRequest(router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "RATE_LIMITED") {
		t.Errorf("body = %s, want RATE_LIMITED envelope", rec.Body.String())
	}
}

func TestRateLimitDisabledWhenNil(t *testing.T) {
	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())
	for i := 0; i < 20; i++ {
		if rec := doRequest(router, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 with no limiter", i, rec.Code)
		}
	}
}

func TestStatusCodeString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{404, "4xx"},
		{503, "5xx"},
	}
	for _, tc := range tests {
		if got := statusCodeString(tc.code); got != tc.want {
			t.Errorf("statusCodeString(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}
