package service

import (
	"context"
	"time"

	"github.com/kjstillabower/weather-platform/internal/models"
)

// mockWeatherProvider is a hand-rolled WeatherProvider double. Unset function
// fields report absent data.
type mockWeatherProvider struct {
	available    bool
	currentFn    func(ctx context.Context, city, country string) (*models.WeatherReading, error)
	forecastFn   func(ctx context.Context, city, country string, days int) ([]models.ForecastGranule, error)
	currentCalls int
}

func (m *mockWeatherProvider) GetCurrentWeather(ctx context.Context, city, country string) (*models.WeatherReading, error) {
	m.currentCalls++
	if m.currentFn == nil {
		return nil, nil
	}
	return m.currentFn(ctx, city, country)
}

func (m *mockWeatherProvider) GetForecast(ctx context.Context, city, country string, days int) ([]models.ForecastGranule, error) {
	if m.forecastFn == nil {
		return nil, nil
	}
	return m.forecastFn(ctx, city, country, days)
}

func (m *mockWeatherProvider) IsAvailable() bool { return m.available }
func (m *mockWeatherProvider) Name() string      { return "mock-weather" }

type mockAirProvider struct {
	available bool
	currentFn func(ctx context.Context, city, country string) (*models.AQIReading, error)
	calls     int
}

func (m *mockAirProvider) GetCurrentAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error) {
	m.calls++
	if m.currentFn == nil {
		return nil, nil
	}
	return m.currentFn(ctx, city, country)
}

func (m *mockAirProvider) IsAvailable() bool { return m.available }
func (m *mockAirProvider) Name() string      { return "mock-air" }

type mockScraper struct {
	enabled    bool
	weatherFn  func(ctx context.Context, city, country string) (*models.WeatherReading, error)
	aqiFn      func(ctx context.Context, city, country string) (*models.AQIReading, error)
	forecastFn func(ctx context.Context, city, country string, days int) ([]models.Forecast, error)
}

func (m *mockScraper) ScrapeWeather(ctx context.Context, city, country string) (*models.WeatherReading, error) {
	if m.weatherFn == nil {
		return nil, nil
	}
	return m.weatherFn(ctx, city, country)
}

func (m *mockScraper) ScrapeAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error) {
	if m.aqiFn == nil {
		return nil, nil
	}
	return m.aqiFn(ctx, city, country)
}

func (m *mockScraper) ScrapeForecast(ctx context.Context, city, country string, days int) ([]models.Forecast, error) {
	if m.forecastFn == nil {
		return nil, nil
	}
	return m.forecastFn(ctx, city, country, days)
}

func (m *mockScraper) IsEnabled() bool { return m.enabled }

// mockStorage implements storage.Storage with overridable function fields.
// Unset lookups report absence; unset writes succeed and are recorded.
type mockStorage struct {
	savedWeather  []*models.WeatherReading
	savedAQI      []*models.AQIReading
	savedForecast []*models.Forecast
	savedSubs     []*models.Subscription

	latestWeatherFn func(ctx context.Context, key string) (*models.WeatherReading, error)
	latestAQIFn     func(ctx context.Context, key string) (*models.AQIReading, error)
	weatherHistFn   func(ctx context.Context, key string, from, to time.Time) ([]models.WeatherReading, error)
	aqiHistFn       func(ctx context.Context, key string, from, to time.Time) ([]models.AQIReading, error)
	forecastsFn     func(ctx context.Context, key string, days int) ([]models.Forecast, error)
	subByIDFn       func(ctx context.Context, id int64) (*models.Subscription, error)
	subsByUserFn    func(ctx context.Context, userID string) ([]models.Subscription, error)
	activeSubsFn    func(ctx context.Context) ([]models.Subscription, error)

	deletedSubs  []int64
	lastNotified map[int64]time.Time
}

func (m *mockStorage) SaveWeatherReading(ctx context.Context, r *models.WeatherReading) error {
	m.savedWeather = append(m.savedWeather, r)
	return nil
}

func (m *mockStorage) LatestWeatherReading(ctx context.Context, key string) (*models.WeatherReading, error) {
	if m.latestWeatherFn == nil {
		return nil, nil
	}
	return m.latestWeatherFn(ctx, key)
}

func (m *mockStorage) WeatherHistory(ctx context.Context, key string, from, to time.Time) ([]models.WeatherReading, error) {
	if m.weatherHistFn == nil {
		return nil, nil
	}
	return m.weatherHistFn(ctx, key, from, to)
}

func (m *mockStorage) SaveAQIReading(ctx context.Context, r *models.AQIReading) error {
	m.savedAQI = append(m.savedAQI, r)
	return nil
}

func (m *mockStorage) LatestAQIReading(ctx context.Context, key string) (*models.AQIReading, error) {
	if m.latestAQIFn == nil {
		return nil, nil
	}
	return m.latestAQIFn(ctx, key)
}

func (m *mockStorage) AQIHistory(ctx context.Context, key string, from, to time.Time) ([]models.AQIReading, error) {
	if m.aqiHistFn == nil {
		return nil, nil
	}
	return m.aqiHistFn(ctx, key, from, to)
}

func (m *mockStorage) SaveForecast(ctx context.Context, f *models.Forecast) error {
	m.savedForecast = append(m.savedForecast, f)
	return nil
}

func (m *mockStorage) Forecasts(ctx context.Context, key string, days int) ([]models.Forecast, error) {
	if m.forecastsFn == nil {
		return nil, nil
	}
	return m.forecastsFn(ctx, key, days)
}

func (m *mockStorage) SaveSubscription(ctx context.Context, s *models.Subscription) error {
	if s.ID == 0 {
		s.ID = int64(len(m.savedSubs) + 1)
	}
	m.savedSubs = append(m.savedSubs, s)
	return nil
}

func (m *mockStorage) DeleteSubscription(ctx context.Context, id int64) error {
	m.deletedSubs = append(m.deletedSubs, id)
	return nil
}

func (m *mockStorage) SubscriptionByID(ctx context.Context, id int64) (*models.Subscription, error) {
	if m.subByIDFn == nil {
		return nil, nil
	}
	return m.subByIDFn(ctx, id)
}

func (m *mockStorage) SubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	if m.subsByUserFn == nil {
		return nil, nil
	}
	return m.subsByUserFn(ctx, userID)
}

func (m *mockStorage) ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	if m.activeSubsFn == nil {
		return nil, nil
	}
	return m.activeSubsFn(ctx)
}

func (m *mockStorage) UpdateLastNotified(ctx context.Context, id int64, t time.Time) error {
	if m.lastNotified == nil {
		m.lastNotified = make(map[int64]time.Time)
	}
	m.lastNotified[id] = t
	return nil
}
