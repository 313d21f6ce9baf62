package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/cache"
	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/observability"
	"github.com/kjstillabower/weather-platform/internal/provider"
	"github.com/kjstillabower/weather-platform/internal/storage"
)

// WeatherResponse is the combined current-conditions payload. Either leg may
// be nil when every acquisition stage came up empty; that is a valid outcome,
// not an error.
type WeatherResponse struct {
	Weather    *models.WeatherReading `json:"weather,omitempty"`
	AirQuality *models.AQIReading     `json:"airQuality,omitempty"`
	FromCache  bool                   `json:"fromCache"`
}

// WeatherService runs the acquisition fallback chain for current conditions
// and forecasts: primary provider, then scraper, then the latest stored
// record. History queries pass straight through to storage.
type WeatherService struct {
	weather provider.WeatherProvider
	air     provider.AirQualityProvider
	scraper provider.Scraper
	cache   cache.Cache
	store   storage.Storage
}

func NewWeatherService(weather provider.WeatherProvider, air provider.AirQualityProvider, scraper provider.Scraper, c cache.Cache, store storage.Storage) *WeatherService {
	return &WeatherService{weather: weather, air: air, scraper: scraper, cache: c, store: store}
}

// GetCurrentWeather returns the current weather and air quality for a
// location. A joint cache hit with a recent weather reading short-circuits
// the chain; a partial hit refetches both legs so the pair stays coherent.
func (s *WeatherService) GetCurrentWeather(ctx context.Context, city, country string) (*WeatherResponse, error) {
	key := newLocation(city, country).Key()
	logger := loggerFromContext(ctx)

	var cachedWeather models.WeatherReading
	var cachedAQI models.AQIReading
	weatherHit := cacheGet(ctx, s.cache, weatherKey(key), &cachedWeather)
	aqiHit := cacheGet(ctx, s.cache, aqiKey(key), &cachedAQI)
	if weatherHit && aqiHit && cachedWeather.IsRecent() {
		observability.CacheHitsTotal.WithLabelValues("weather").Inc()
		observability.CacheHitsTotal.WithLabelValues("aqi").Inc()
		recordStage("weather", "cache")
		recordStage("aqi", "cache")
		cachedWeather.DataSource = models.SourceCached
		cachedAQI.DataSource = models.SourceCached
		logger.Debug("serving cached weather pair", zap.String("location", key))
		return &WeatherResponse{Weather: &cachedWeather, AirQuality: &cachedAQI, FromCache: true}, nil
	}

	weather := s.fetchWeather(ctx, city, country, key)
	aqi := s.fetchAirQuality(ctx, city, country, key)
	return &WeatherResponse{Weather: weather, AirQuality: aqi}, nil
}

// fetchWeather walks the weather fallback chain. Provider errors are logged
// and converted into the next stage.
func (s *WeatherService) fetchWeather(ctx context.Context, city, country, key string) *models.WeatherReading {
	logger := loggerFromContext(ctx)

	if s.weather != nil && s.weather.IsAvailable() {
		reading, err := s.weather.GetCurrentWeather(ctx, city, country)
		if err != nil {
			logger.Warn("primary weather provider failed",
				zap.String("provider", s.weather.Name()), zap.String("location", key), zap.Error(err))
		} else if reading != nil {
			reading.DataSource = models.SourceOpenWeather
			reading.CreatedAt = time.Now().UTC()
			s.persistWeather(ctx, key, reading)
			cachePut(ctx, s.cache, weatherKey(key), reading, weatherTTL)
			recordStage("weather", "primary")
			return reading
		}
	}

	if s.scraper != nil && s.scraper.IsEnabled() {
		reading, err := s.scraper.ScrapeWeather(ctx, city, country)
		if err != nil {
			logger.Warn("weather scraper failed", zap.String("location", key), zap.Error(err))
		} else if reading != nil {
			reading.DataSource = models.SourceScraper
			reading.CreatedAt = time.Now().UTC()
			s.persistWeather(ctx, key, reading)
			cachePut(ctx, s.cache, weatherKey(key), reading, weatherTTL)
			recordStage("weather", "scraper")
			return reading
		}
	}

	stored, err := s.store.LatestWeatherReading(ctx, key)
	if err != nil {
		logger.Error("weather storage lookup failed", zap.String("location", key), zap.Error(err))
	} else if stored != nil {
		recordStage("weather", "storage")
		logger.Warn("serving stored weather reading, may be stale",
			zap.String("location", key), zap.Time("timestamp", stored.Timestamp))
		return stored
	}

	recordStage("weather", "none")
	return nil
}

// fetchAirQuality walks the AQI fallback chain.
func (s *WeatherService) fetchAirQuality(ctx context.Context, city, country, key string) *models.AQIReading {
	logger := loggerFromContext(ctx)

	if s.air != nil && s.air.IsAvailable() {
		reading, err := s.air.GetCurrentAirQuality(ctx, city, country)
		if err != nil {
			logger.Warn("primary air quality provider failed",
				zap.String("provider", s.air.Name()), zap.String("location", key), zap.Error(err))
		} else if reading != nil {
			reading.DataSource = models.SourceIQAir
			reading.CreatedAt = time.Now().UTC()
			s.persistAQI(ctx, key, reading)
			cachePut(ctx, s.cache, aqiKey(key), reading, aqiTTL)
			recordStage("aqi", "primary")
			return reading
		}
	}

	if s.scraper != nil && s.scraper.IsEnabled() {
		reading, err := s.scraper.ScrapeAirQuality(ctx, city, country)
		if err != nil {
			logger.Warn("air quality scraper failed", zap.String("location", key), zap.Error(err))
		} else if reading != nil {
			reading.DataSource = models.SourceScraper
			reading.CreatedAt = time.Now().UTC()
			s.persistAQI(ctx, key, reading)
			cachePut(ctx, s.cache, aqiKey(key), reading, aqiTTL)
			recordStage("aqi", "scraper")
			return reading
		}
	}

	stored, err := s.store.LatestAQIReading(ctx, key)
	if err != nil {
		logger.Error("aqi storage lookup failed", zap.String("location", key), zap.Error(err))
	} else if stored != nil {
		recordStage("aqi", "storage")
		logger.Warn("serving stored aqi reading, may be stale",
			zap.String("location", key), zap.Time("timestamp", stored.Timestamp))
		return stored
	}

	recordStage("aqi", "none")
	return nil
}

func (s *WeatherService) persistWeather(ctx context.Context, key string, r *models.WeatherReading) {
	if err := s.store.SaveWeatherReading(ctx, r); err != nil {
		loggerFromContext(ctx).Error("persist weather reading failed",
			zap.String("location", key), zap.Error(err))
	}
}

func (s *WeatherService) persistAQI(ctx context.Context, key string, r *models.AQIReading) {
	if err := s.store.SaveAQIReading(ctx, r); err != nil {
		loggerFromContext(ctx).Error("persist aqi reading failed",
			zap.String("location", key), zap.Error(err))
	}
}

// WeatherHistory returns stored weather readings in [from, to]. Pure storage
// query: no fallback, no caching, empty result is valid.
func (s *WeatherService) WeatherHistory(ctx context.Context, city, country string, from, to time.Time) ([]models.WeatherReading, error) {
	return s.store.WeatherHistory(ctx, newLocation(city, country).Key(), from, to)
}

// AQIHistory returns stored AQI readings in [from, to].
func (s *WeatherService) AQIHistory(ctx context.Context, city, country string, from, to time.Time) ([]models.AQIReading, error) {
	return s.store.AQIHistory(ctx, newLocation(city, country).Key(), from, to)
}
