package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/observability"
)

// GetForecast returns the daily forecast for the next days calendar dates.
// days outside [1,7] is rejected before any I/O. The primary provider hands
// back three-hour granules which are aggregated per date here; the scraper
// and storage stages already speak in whole days.
func (s *WeatherService) GetForecast(ctx context.Context, city, country string, days int) ([]models.Forecast, error) {
	if days < 1 || days > 7 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDays, days)
	}

	key := newLocation(city, country).Key()
	logger := loggerFromContext(ctx)

	var cached []models.Forecast
	if cacheGet(ctx, s.cache, forecastKey(key, days), &cached) {
		observability.CacheHitsTotal.WithLabelValues("forecast").Inc()
		recordStage("forecast", "cache")
		return cached, nil
	}

	if s.weather != nil && s.weather.IsAvailable() {
		granules, err := s.weather.GetForecast(ctx, city, country, days)
		if err != nil {
			logger.Warn("primary forecast provider failed",
				zap.String("provider", s.weather.Name()), zap.String("location", key), zap.Error(err))
		} else if len(granules) > 0 {
			forecasts := aggregateGranules(newLocation(city, country), granules)
			s.storeForecasts(ctx, key, days, forecasts)
			recordStage("forecast", "primary")
			return forecasts, nil
		}
	}

	if s.scraper != nil && s.scraper.IsEnabled() {
		forecasts, err := s.scraper.ScrapeForecast(ctx, city, country, days)
		if err != nil {
			logger.Warn("forecast scraper failed", zap.String("location", key), zap.Error(err))
		} else if len(forecasts) > 0 {
			now := time.Now().UTC()
			for i := range forecasts {
				forecasts[i].DataSource = models.SourceScraper
				forecasts[i].CreatedAt = now
			}
			s.storeForecasts(ctx, key, days, forecasts)
			recordStage("forecast", "scraper")
			return forecasts, nil
		}
	}

	stored, err := s.store.Forecasts(ctx, key, days)
	if err != nil {
		logger.Error("forecast storage lookup failed", zap.String("location", key), zap.Error(err))
	} else if len(stored) > 0 {
		recordStage("forecast", "storage")
		logger.Warn("serving stored forecasts, may be stale", zap.String("location", key))
		return stored, nil
	}

	recordStage("forecast", "none")
	return []models.Forecast{}, nil
}

// storeForecasts persists each day and caches the list as one unit.
func (s *WeatherService) storeForecasts(ctx context.Context, key string, days int, forecasts []models.Forecast) {
	for i := range forecasts {
		if err := s.store.SaveForecast(ctx, &forecasts[i]); err != nil {
			loggerFromContext(ctx).Error("persist forecast failed",
				zap.String("location", key), zap.Time("date", forecasts[i].Date), zap.Error(err))
		}
	}
	cachePut(ctx, s.cache, forecastKey(key, days), forecasts, forecastTTL)
}

// aggregateGranules folds three-hour slices into one Forecast per calendar
// date. Only temperature is aggregated: TempMin is the minimum, TempMax the
// maximum, TempAvg the mean of the slice temperatures. Every other field
// (humidity, wind, precipitation, condition) comes from the date's first
// granule.
func aggregateGranules(loc models.Location, granules []models.ForecastGranule) []models.Forecast {
	type dayAgg struct {
		forecast models.Forecast
		tempSum  float64
		count    int
	}

	now := time.Now().UTC()
	byDate := make(map[string]*dayAgg)
	order := make([]string, 0, 8)

	for _, g := range granules {
		date := g.Timestamp.Format("2006-01-02")
		agg, seen := byDate[date]
		if !seen {
			day, _ := time.Parse("2006-01-02", date)
			agg = &dayAgg{forecast: models.Forecast{
				Location:                 loc,
				Date:                     day,
				TempMin:                  g.TempMin,
				TempMax:                  g.TempMax,
				Humidity:                 g.Humidity,
				WindSpeed:                g.WindSpeed,
				Condition:                g.Condition,
				Description:              g.Description,
				Icon:                     g.Icon,
				PrecipitationProbability: g.PrecipitationProbability,
				Cloudiness:               g.Cloudiness,
				DataSource:               models.SourceOpenWeather,
				CreatedAt:                now,
			}}
			byDate[date] = agg
			order = append(order, date)
		}

		if g.TempMin < agg.forecast.TempMin {
			agg.forecast.TempMin = g.TempMin
		}
		if g.TempMax > agg.forecast.TempMax {
			agg.forecast.TempMax = g.TempMax
		}
		agg.tempSum += g.Temp
		agg.count++
	}

	forecasts := make([]models.Forecast, 0, len(order))
	for _, date := range order {
		agg := byDate[date]
		agg.forecast.TempAvg = agg.tempSum / float64(agg.count)
		forecasts = append(forecasts, agg.forecast)
	}
	sort.Slice(forecasts, func(i, j int) bool { return forecasts[i].Date.Before(forecasts[j].Date) })
	return forecasts
}
