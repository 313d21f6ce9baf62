package sweep

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/alert"
	"github.com/kjstillabower/weather-platform/internal/cache"
	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/notify"
	"github.com/kjstillabower/weather-platform/internal/service"
)

type sweepStorage struct {
	subs         []models.Subscription
	lastNotified map[int64]time.Time
}

func (s *sweepStorage) SaveWeatherReading(ctx context.Context, r *models.WeatherReading) error {
	return nil
}
func (s *sweepStorage) LatestWeatherReading(ctx context.Context, key string) (*models.WeatherReading, error) {
	return nil, nil
}
func (s *sweepStorage) WeatherHistory(ctx context.Context, key string, from, to time.Time) ([]models.WeatherReading, error) {
	return nil, nil
}
func (s *sweepStorage) SaveAQIReading(ctx context.Context, r *models.AQIReading) error { return nil }
func (s *sweepStorage) LatestAQIReading(ctx context.Context, key string) (*models.AQIReading, error) {
	return nil, nil
}
func (s *sweepStorage) AQIHistory(ctx context.Context, key string, from, to time.Time) ([]models.AQIReading, error) {
	return nil, nil
}
func (s *sweepStorage) SaveForecast(ctx context.Context, f *models.Forecast) error { return nil }
func (s *sweepStorage) Forecasts(ctx context.Context, key string, days int) ([]models.Forecast, error) {
	return nil, nil
}
func (s *sweepStorage) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return nil
}
func (s *sweepStorage) DeleteSubscription(ctx context.Context, id int64) error { return nil }
func (s *sweepStorage) SubscriptionByID(ctx context.Context, id int64) (*models.Subscription, error) {
	return nil, nil
}
func (s *sweepStorage) SubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	return nil, nil
}
func (s *sweepStorage) ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	return s.subs, nil
}
func (s *sweepStorage) UpdateLastNotified(ctx context.Context, id int64, t time.Time) error {
	if s.lastNotified == nil {
		s.lastNotified = make(map[int64]time.Time)
	}
	s.lastNotified[id] = t
	return nil
}

type sweepWeatherProvider struct {
	calls int
	temp  float64
}

func (p *sweepWeatherProvider) GetCurrentWeather(ctx context.Context, city, country string) (*models.WeatherReading, error) {
	p.calls++
	return &models.WeatherReading{
		Location:           models.Location{City: city, Country: country},
		Timestamp:          time.Now().UTC(),
		TemperatureCelsius: p.temp,
	}, nil
}
func (p *sweepWeatherProvider) GetForecast(ctx context.Context, city, country string, days int) ([]models.ForecastGranule, error) {
	return nil, nil
}
func (p *sweepWeatherProvider) IsAvailable() bool { return true }
func (p *sweepWeatherProvider) Name() string      { return "sweep-test" }

type sweepAirProvider struct{}

func (p *sweepAirProvider) GetCurrentAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error) {
	return nil, nil
}
func (p *sweepAirProvider) IsAvailable() bool { return false }
func (p *sweepAirProvider) Name() string      { return "sweep-test-air" }

type sweepScraper struct{}

func (s *sweepScraper) ScrapeWeather(ctx context.Context, city, country string) (*models.WeatherReading, error) {
	return nil, nil
}
func (s *sweepScraper) ScrapeAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error) {
	return nil, nil
}
func (s *sweepScraper) ScrapeForecast(ctx context.Context, city, country string, days int) ([]models.Forecast, error) {
	return nil, nil
}
func (s *sweepScraper) IsEnabled() bool { return false }

type countingNotifier struct {
	sent int
}

func (n *countingNotifier) SendAlert(ctx context.Context, sub models.Subscription, msg notify.Message) error {
	n.sent++
	return nil
}

func maxTemp(f float64) *models.AlertThresholds {
	return &models.AlertThresholds{MaxTemperature: &f}
}

func TestRunFetchesOncePerLocation(t *testing.T) {
	store := &sweepStorage{subs: []models.Subscription{
		{ID: 1, Email: "a@example.com", Active: true,
			Location:   models.Location{City: "London", Country: "UK"},
			AlertTypes: []models.AlertType{models.AlertHighTemperature},
			Thresholds: maxTemp(30)},
		{ID: 2, Email: "b@example.com", Active: true,
			Location:   models.Location{City: "london", Country: "uk"}, // same key
			AlertTypes: []models.AlertType{models.AlertHighTemperature},
			Thresholds: maxTemp(25)},
		{ID: 3, Email: "c@example.com", Active: true,
			Location:   models.Location{City: "Paris", Country: "FR"},
			AlertTypes: []models.AlertType{models.AlertHighTemperature},
			Thresholds: maxTemp(30)},
	}}

	weatherProvider := &sweepWeatherProvider{temp: 35}
	weatherSvc := service.NewWeatherService(weatherProvider, &sweepAirProvider{}, &sweepScraper{}, cache.NewInMemoryCache(), store)
	notifier := &countingNotifier{}
	engine := alert.NewEngine(store, notifier, time.Hour, zap.NewNop())

	sweeper := NewSweeper(store, weatherSvc, engine, time.Minute, zap.NewNop())
	sweeper.Run(context.Background())

	if weatherProvider.calls != 2 {
		t.Errorf("provider calls = %d, want 2 (one per unique location)", weatherProvider.calls)
	}
	if notifier.sent != 3 {
		t.Errorf("alerts sent = %d, want 3 (all subscriptions breached)", notifier.sent)
	}
	for _, id := range []int64{1, 2, 3} {
		if _, ok := store.lastNotified[id]; !ok {
			t.Errorf("subscription %d: LastNotifiedAt not recorded", id)
		}
	}
}

func TestRunWithNoSubscriptionsIsQuiet(t *testing.T) {
	store := &sweepStorage{}
	weatherProvider := &sweepWeatherProvider{}
	weatherSvc := service.NewWeatherService(weatherProvider, &sweepAirProvider{}, &sweepScraper{}, cache.NewInMemoryCache(), store)
	engine := alert.NewEngine(store, &countingNotifier{}, time.Hour, zap.NewNop())

	sweeper := NewSweeper(store, weatherSvc, engine, time.Minute, zap.NewNop())
	sweeper.Run(context.Background())

	if weatherProvider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 with no subscriptions", weatherProvider.calls)
	}
}

func TestGroupByLocation(t *testing.T) {
	subs := []models.Subscription{
		{Location: models.Location{City: "London", Country: "UK"}},
		{Location: models.Location{City: "LONDON", Country: "uk"}},
		{Location: models.Location{City: "Tokyo"}},
	}
	locations := groupByLocation(subs)
	if len(locations) != 2 {
		t.Fatalf("len(locations) = %d, want 2", len(locations))
	}
	if locations[0].City != "London" {
		t.Errorf("first spelling = %q, want the first one seen", locations[0].City)
	}
}
