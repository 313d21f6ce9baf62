package sweep

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/alert"
	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/observability"
	"github.com/kjstillabower/weather-platform/internal/service"
	"github.com/kjstillabower/weather-platform/internal/storage"
)

// Sweeper periodically re-evaluates every active subscription: it groups
// subscriptions by location, fetches the current reading pair once per
// location through the orchestrator (which doubles as a cache warmer for
// subscribed locations) and hands the pair to the alert engine. Ticks are
// independent; the scheduler may overlap a slow sweep with the next one.
type Sweeper struct {
	store     storage.Storage
	weather   *service.WeatherService
	engine    *alert.Engine
	interval  time.Duration
	logger    *zap.Logger
	scheduler *gocron.Scheduler
}

func NewSweeper(store storage.Storage, weather *service.WeatherService, engine *alert.Engine, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		weather:   weather,
		engine:    engine,
		interval:  interval,
		logger:    logger,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start schedules the recurring sweep and returns immediately.
func (s *Sweeper) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(func() {
		s.Run(context.Background())
	}); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("subscription sweep scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the scheduler. A sweep already in flight finishes on its own.
func (s *Sweeper) Stop() {
	s.scheduler.Stop()
	s.logger.Info("subscription sweep stopped")
}

// Run executes one sweep over all active subscriptions.
func (s *Sweeper) Run(ctx context.Context) {
	start := time.Now()
	observability.SweepRunsTotal.Inc()
	defer func() {
		observability.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	subs, err := s.store.ActiveSubscriptions(ctx)
	if err != nil {
		s.logger.Error("sweep: list active subscriptions failed", zap.Error(err))
		return
	}
	if len(subs) == 0 {
		return
	}

	locations := groupByLocation(subs)
	s.logger.Debug("sweep started",
		zap.Int("subscriptions", len(subs)), zap.Int("locations", len(locations)))

	for _, loc := range locations {
		resp, err := s.weather.GetCurrentWeather(ctx, loc.City, loc.Country)
		if err != nil {
			s.logger.Warn("sweep: fetch failed", zap.String("location", loc.Key()), zap.Error(err))
			continue
		}
		if resp.Weather == nil && resp.AirQuality == nil {
			continue
		}
		if err := s.engine.EvaluateAndNotify(ctx, resp.Weather, resp.AirQuality); err != nil {
			s.logger.Error("sweep: evaluation failed", zap.String("location", loc.Key()), zap.Error(err))
		}
	}

	s.logger.Debug("sweep finished", zap.Duration("duration", time.Since(start)))
}

// groupByLocation deduplicates subscription locations by key, keeping the
// first city/country spelling seen for the upstream query.
func groupByLocation(subs []models.Subscription) []models.Location {
	seen := make(map[string]bool, len(subs))
	locations := make([]models.Location, 0, len(subs))
	for _, sub := range subs {
		key := sub.Location.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		locations = append(locations, sub.Location)
	}
	return locations
}
