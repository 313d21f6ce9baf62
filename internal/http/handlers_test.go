package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/cache"
	"github.com/kjstillabower/weather-platform/internal/lifecycle"
	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/service"
)

// stubStorage is an in-memory storage.Storage good enough to drive the
// handlers end to end.
type stubStorage struct {
	mu     sync.Mutex
	subs   map[int64]models.Subscription
	nextID int64

	weatherHist []models.WeatherReading
	aqiHist     []models.AQIReading
}

func newStubStorage() *stubStorage {
	return &stubStorage{subs: make(map[int64]models.Subscription)}
}

func (s *stubStorage) SaveWeatherReading(ctx context.Context, r *models.WeatherReading) error {
	return nil
}
func (s *stubStorage) LatestWeatherReading(ctx context.Context, key string) (*models.WeatherReading, error) {
	return nil, nil
}
func (s *stubStorage) WeatherHistory(ctx context.Context, key string, from, to time.Time) ([]models.WeatherReading, error) {
	return s.weatherHist, nil
}
func (s *stubStorage) SaveAQIReading(ctx context.Context, r *models.AQIReading) error { return nil }
func (s *stubStorage) LatestAQIReading(ctx context.Context, key string) (*models.AQIReading, error) {
	return nil, nil
}
func (s *stubStorage) AQIHistory(ctx context.Context, key string, from, to time.Time) ([]models.AQIReading, error) {
	return s.aqiHist, nil
}
func (s *stubStorage) SaveForecast(ctx context.Context, f *models.Forecast) error { return nil }
func (s *stubStorage) Forecasts(ctx context.Context, key string, days int) ([]models.Forecast, error) {
	return nil, nil
}

func (s *stubStorage) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == 0 {
		s.nextID++
		sub.ID = s.nextID
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *stubStorage) DeleteSubscription(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	return nil
}

func (s *stubStorage) SubscriptionByID(ctx context.Context, id int64) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (s *stubStorage) SubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Subscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubStorage) ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return nil, nil
}
func (s *stubStorage) UpdateLastNotified(ctx context.Context, id int64, t time.Time) error {
	return nil
}

type stubWeatherProvider struct {
	reading  *models.WeatherReading
	granules []models.ForecastGranule
}

func (p *stubWeatherProvider) GetCurrentWeather(ctx context.Context, city, country string) (*models.WeatherReading, error) {
	return p.reading, nil
}
func (p *stubWeatherProvider) GetForecast(ctx context.Context, city, country string, days int) ([]models.ForecastGranule, error) {
	return p.granules, nil
}
func (p *stubWeatherProvider) IsAvailable() bool { return p.reading != nil || p.granules != nil }
func (p *stubWeatherProvider) Name() string      { return "stub" }

type stubAirProvider struct{}

func (p *stubAirProvider) GetCurrentAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error) {
	return nil, nil
}
func (p *stubAirProvider) IsAvailable() bool { return false }
func (p *stubAirProvider) Name() string      { return "stub-air" }

type stubScraper struct{}

func (s *stubScraper) ScrapeWeather(ctx context.Context, city, country string) (*models.WeatherReading, error) {
	return nil, nil
}
func (s *stubScraper) ScrapeAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error) {
	return nil, nil
}
func (s *stubScraper) ScrapeForecast(ctx context.Context, city, country string, days int) ([]models.Forecast, error) {
	return nil, nil
}
func (s *stubScraper) IsEnabled() bool { return false }

func newTestRouter(t *testing.T, provider *stubWeatherProvider, store *stubStorage) http.Handler {
	t.Helper()
	weatherSvc := service.NewWeatherService(provider, &stubAirProvider{}, &stubScraper{}, cache.NewInMemoryCache(), store)
	subSvc := service.NewSubscriptionService(store)
	h := NewHandler(weatherSvc, subSvc, HealthDeps{}, zap.NewNop())
	return NewRouter(h, zap.NewNop(), nil, 5*time.Second)
}

func doRequest(router http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetWeatherRequiresCity(t *testing.T) {
	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())

	rec := doRequest(router, http.MethodGet, "/api/v1/weather", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"requestId"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "INVALID_CITY" {
		t.Errorf("error code = %q, want INVALID_CITY", body.Error.Code)
	}
	if body.Error.RequestID == "" {
		t.Error("requestId missing from error envelope")
	}
}

func TestGetWeatherSuccess(t *testing.T) {
	provider := &stubWeatherProvider{reading: &models.WeatherReading{
		Location:           models.Location{City: "London", Country: "UK"},
		Timestamp:          time.Now().UTC(),
		TemperatureCelsius: 19.5,
	}}
	router := newTestRouter(t, provider, newStubStorage())

	rec := doRequest(router, http.MethodGet, "/api/v1/weather?city=London&country=UK", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Weather   *models.WeatherReading `json:"weather"`
		FromCache bool                   `json:"fromCache"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Weather == nil || resp.Weather.TemperatureCelsius != 19.5 {
		t.Errorf("weather = %+v", resp.Weather)
	}
	if resp.FromCache {
		t.Error("fromCache = true on first fetch")
	}
}

func TestGetWeatherTotalExhaustionIs200(t *testing.T) {
	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())

	rec := doRequest(router, http.MethodGet, "/api/v1/weather?city=Nowhere", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with absent fields", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"weather":{`) {
		t.Errorf("expected absent weather field, got: %s", rec.Body.String())
	}
}

func TestGetForecastRejectsBadDays(t *testing.T) {
	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())

	for _, days := range []string{"0", "8", "x"} {
		rec := doRequest(router, http.MethodGet, "/api/v1/forecast?city=London&days="+days, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("days=%s: status = %d, want 400", days, rec.Code)
		}
	}
}

func TestGetForecastSuccess(t *testing.T) {
	base := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	provider := &stubWeatherProvider{granules: []models.ForecastGranule{
		{Timestamp: base.Add(3 * time.Hour), Temp: 11, TempMin: 9, TempMax: 13},
		{Timestamp: base.Add(9 * time.Hour), Temp: 17, TempMin: 15, TempMax: 19},
	}}
	router := newTestRouter(t, provider, newStubStorage())

	rec := doRequest(router, http.MethodGet, "/api/v1/forecast?city=London&country=UK&days=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var forecasts []models.Forecast
	if err := json.Unmarshal(rec.Body.Bytes(), &forecasts); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(forecasts) != 1 {
		t.Fatalf("len(forecasts) = %d, want 1", len(forecasts))
	}
	if forecasts[0].TempMin != 9 || forecasts[0].TempMax != 19 || forecasts[0].TempAvg != 14 {
		t.Errorf("aggregation = %v/%v/%v, want 9/19/14", forecasts[0].TempMin, forecasts[0].TempMax, forecasts[0].TempAvg)
	}
}

func TestWeatherHistoryRequiresRange(t *testing.T) {
	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())

	rec := doRequest(router, http.MethodGet, "/api/v1/history/weather?city=London", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without from/to", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INVALID_TIME_RANGE") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWeatherHistorySuccess(t *testing.T) {
	store := newStubStorage()
	store.weatherHist = []models.WeatherReading{{TemperatureCelsius: 8}}
	router := newTestRouter(t, &stubWeatherProvider{}, store)

	rec := doRequest(router, http.MethodGet,
		"/api/v1/history/weather?city=London&from=2026-08-01T00:00:00Z&to=2026-08-31T00:00:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var readings []models.WeatherReading
	if err := json.Unmarshal(rec.Body.Bytes(), &readings); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(readings) != 1 {
		t.Errorf("len(readings) = %d, want 1", len(readings))
	}
}

func validSubscriptionBody() []byte {
	return []byte(`{
		"userId": "user-1",
		"email": "user@example.com",
		"city": "London",
		"country": "UK",
		"alertTypes": ["HIGH_TEMPERATURE", "POOR_AIR_QUALITY"],
		"thresholds": {"maxTemperature": 30, "maxAQI": 100}
	}`)
}

func TestSubscriptionLifecycle(t *testing.T) {
	store := newStubStorage()
	router := newTestRouter(t, &stubWeatherProvider{}, store)

	rec := doRequest(router, http.MethodPost, "/api/v1/subscriptions", validSubscriptionBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var created models.Subscription
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == 0 || !created.Active {
		t.Errorf("created = %+v, want assigned id and active", created)
	}

	rec = doRequest(router, http.MethodGet, "/api/v1/subscriptions/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doRequest(router, http.MethodGet, "/api/v1/subscriptions/user/user-1", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "user@example.com") {
		t.Fatalf("list status = %d, body: %s", rec.Code, rec.Body.String())
	}

	update := []byte(`{
		"userId": "user-1",
		"email": "new@example.com",
		"city": "London",
		"country": "UK",
		"alertTypes": ["LOW_TEMPERATURE"],
		"thresholds": {"minTemperature": -5}
	}`)
	rec = doRequest(router, http.MethodPut, "/api/v1/subscriptions/1", update)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "new@example.com") {
		t.Fatalf("update status = %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, http.MethodDelete, "/api/v1/subscriptions/1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	rec = doRequest(router, http.MethodGet, "/api/v1/subscriptions/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestSubscriptionValidation(t *testing.T) {
	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{`, "INVALID_PAYLOAD"},
		{"missing email", `{"userId":"u","city":"London","alertTypes":["HIGH_TEMPERATURE"]}`, "INVALID_PAYLOAD"},
		{"bad email", `{"userId":"u","email":"not-an-email","city":"London","alertTypes":["HIGH_TEMPERATURE"]}`, "INVALID_PAYLOAD"},
		{"empty alert types", `{"userId":"u","email":"u@example.com","city":"London","alertTypes":[]}`, "INVALID_PAYLOAD"},
		{"unknown alert type", `{"userId":"u","email":"u@example.com","city":"London","alertTypes":["SOLAR_FLARE"]}`, "INVALID_ALERT_TYPE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/api/v1/subscriptions", []byte(tc.body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Errorf("body = %s, want code %s", rec.Body.String(), tc.want)
			}
		})
	}
}

func TestSubscriptionNotFoundResponses(t *testing.T) {
	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())

	if rec := doRequest(router, http.MethodGet, "/api/v1/subscriptions/99", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get status = %d, want 404", rec.Code)
	}
	if rec := doRequest(router, http.MethodPut, "/api/v1/subscriptions/99", validSubscriptionBody()); rec.Code != http.StatusNotFound {
		t.Errorf("put status = %d, want 404", rec.Code)
	}
	if rec := doRequest(router, http.MethodDelete, "/api/v1/subscriptions/99", nil); rec.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", rec.Code)
	}
}

func TestHealthHealthy(t *testing.T) {
	store := newStubStorage()
	weatherSvc := service.NewWeatherService(&stubWeatherProvider{}, &stubAirProvider{}, &stubScraper{}, cache.NewInMemoryCache(), store)
	h := NewHandler(weatherSvc, service.NewSubscriptionService(store), HealthDeps{
		DBPing:           func() error { return nil },
		CachePing:        func() error { return nil },
		WeatherAvailable: func() bool { return true },
	}, zap.NewNop())
	router := NewRouter(h, zap.NewNop(), nil, time.Second)

	rec := doRequest(router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"status":"healthy"`) {
		t.Errorf("body = %s", body)
	}
	if !strings.Contains(body, `"database":"healthy"`) {
		t.Errorf("missing database check: %s", body)
	}
}

func TestHealthShuttingDown(t *testing.T) {
	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)

	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())
	rec := doRequest(router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "shutting-down") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCorrelationIDPropagation(t *testing.T) {
	router := newTestRouter(t, &stubWeatherProvider{}, newStubStorage())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("X-Correlation-ID = %q, want abc-123 echoed back", got)
	}

	rec = doRequest(router, http.MethodGet, "/health", nil)
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("X-Correlation-ID not generated when absent")
	}
}
