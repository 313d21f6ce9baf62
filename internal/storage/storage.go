package storage

import (
	"context"
	"time"

	"github.com/kjstillabower/weather-platform/internal/models"
)

// Storage is the durable store behind the orchestrators, the history
// service and the subscription engine. Lookups that find nothing return
// (nil, nil); absence is not an error at this layer.
type Storage interface {
	SaveWeatherReading(ctx context.Context, r *models.WeatherReading) error
	LatestWeatherReading(ctx context.Context, locationKey string) (*models.WeatherReading, error)
	WeatherHistory(ctx context.Context, locationKey string, from, to time.Time) ([]models.WeatherReading, error)

	SaveAQIReading(ctx context.Context, r *models.AQIReading) error
	LatestAQIReading(ctx context.Context, locationKey string) (*models.AQIReading, error)
	AQIHistory(ctx context.Context, locationKey string, from, to time.Time) ([]models.AQIReading, error)

	SaveForecast(ctx context.Context, f *models.Forecast) error
	Forecasts(ctx context.Context, locationKey string, days int) ([]models.Forecast, error)

	SaveSubscription(ctx context.Context, s *models.Subscription) error
	DeleteSubscription(ctx context.Context, id int64) error
	SubscriptionByID(ctx context.Context, id int64) (*models.Subscription, error)
	SubscriptionsByUser(ctx context.Context, userID string) ([]models.Subscription, error)
	ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error)
	UpdateLastNotified(ctx context.Context, id int64, t time.Time) error
}
