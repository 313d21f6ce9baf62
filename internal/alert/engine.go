package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/notify"
	"github.com/kjstillabower/weather-platform/internal/observability"
	"github.com/kjstillabower/weather-platform/internal/storage"
)

// Trigger is one breached threshold: the alert type plus a human-readable
// description of the breach for the message body.
type Trigger struct {
	Type   models.AlertType
	Detail string
}

// Engine evaluates subscriptions against fresh readings and dispatches
// notifications. Delivery is fire-and-forget; the cooldown clock advances
// after every dispatch attempt, delivered or not, so a broken mail server
// cannot turn into a retry storm.
type Engine struct {
	store    storage.Storage
	notifier notify.Notifier
	cooldown time.Duration
	logger   *zap.Logger
}

func NewEngine(store storage.Storage, notifier notify.Notifier, cooldown time.Duration, logger *zap.Logger) *Engine {
	return &Engine{store: store, notifier: notifier, cooldown: cooldown, logger: logger}
}

// EvaluateAndNotify checks every active subscription for the readings'
// location and notifies subscribers whose thresholds are breached. Either
// reading may be nil when that acquisition leg came up empty.
func (e *Engine) EvaluateAndNotify(ctx context.Context, weather *models.WeatherReading, aqi *models.AQIReading) error {
	key := readingLocationKey(weather, aqi)
	if key == "" {
		return nil
	}

	subs, err := e.store.ActiveSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list active subscriptions: %w", err)
	}

	for _, sub := range subs {
		if sub.Location.Key() != key {
			continue
		}
		observability.AlertsEvaluatedTotal.Inc()

		triggers := e.evaluate(sub, weather, aqi)
		if len(triggers) == 0 {
			continue
		}
		if !sub.CanSendNotification(e.cooldown) {
			observability.AlertsSuppressedTotal.Inc()
			e.logger.Debug("alert suppressed by cooldown",
				zap.Int64("subscriptionId", sub.ID), zap.String("location", key))
			continue
		}

		e.dispatch(ctx, sub, triggers, weather, aqi)
	}
	return nil
}

// evaluate returns each individually breached threshold. The per-type checks
// mirror Subscription.ShouldAlertWeather / ShouldAlertAQI, broken out so the
// message can name every triggering metric.
func (e *Engine) evaluate(sub models.Subscription, weather *models.WeatherReading, aqi *models.AQIReading) []Trigger {
	if !sub.Active || sub.Thresholds == nil {
		return nil
	}

	var triggers []Trigger
	if weather != nil && sub.ShouldAlertWeather(*weather) {
		t := sub.Thresholds
		if sub.HasAlertType(models.AlertHighTemperature) && t.MaxTemperature != nil && weather.TemperatureCelsius > *t.MaxTemperature {
			triggers = append(triggers, Trigger{
				Type:   models.AlertHighTemperature,
				Detail: fmt.Sprintf("Temperature %.1f°C is above your maximum of %.1f°C", weather.TemperatureCelsius, *t.MaxTemperature),
			})
		}
		if sub.HasAlertType(models.AlertLowTemperature) && t.MinTemperature != nil && weather.TemperatureCelsius < *t.MinTemperature {
			triggers = append(triggers, Trigger{
				Type:   models.AlertLowTemperature,
				Detail: fmt.Sprintf("Temperature %.1f°C is below your minimum of %.1f°C", weather.TemperatureCelsius, *t.MinTemperature),
			})
		}
		if sub.HasAlertType(models.AlertHighWind) && t.MaxWindSpeed != nil && weather.WindSpeed > *t.MaxWindSpeed {
			triggers = append(triggers, Trigger{
				Type:   models.AlertHighWind,
				Detail: fmt.Sprintf("Wind speed %.1f m/s is above your maximum of %.1f m/s", weather.WindSpeed, *t.MaxWindSpeed),
			})
		}
	}
	if aqi != nil && sub.ShouldAlertAQI(*aqi) {
		triggers = append(triggers, Trigger{
			Type: models.AlertPoorAirQuality,
			Detail: fmt.Sprintf("Air quality index %d (%s) is above your maximum of %d",
				aqi.AQI, aqi.Level().Description(), *sub.Thresholds.MaxAQI),
		})
	}
	return triggers
}

// dispatch sends one message covering every trigger, then records the
// notification time regardless of transport outcome.
func (e *Engine) dispatch(ctx context.Context, sub models.Subscription, triggers []Trigger, weather *models.WeatherReading, aqi *models.AQIReading) {
	msg := buildMessage(sub, triggers, weather, aqi)

	if err := e.notifier.SendAlert(ctx, sub, msg); err != nil {
		observability.NotificationFailuresTotal.Inc()
		e.logger.Error("alert dispatch failed",
			zap.Int64("subscriptionId", sub.ID), zap.String("email", sub.Email), zap.Error(err))
	} else {
		for _, tr := range triggers {
			observability.AlertsSentTotal.WithLabelValues(string(tr.Type)).Inc()
		}
		e.logger.Info("alert dispatched",
			zap.Int64("subscriptionId", sub.ID),
			zap.String("location", sub.Location.Key()),
			zap.Int("triggers", len(triggers)))
	}

	if err := e.store.UpdateLastNotified(ctx, sub.ID, time.Now().UTC()); err != nil {
		e.logger.Error("update last notified failed", zap.Int64("subscriptionId", sub.ID), zap.Error(err))
	}
}

func readingLocationKey(weather *models.WeatherReading, aqi *models.AQIReading) string {
	if weather != nil {
		return weather.Location.Key()
	}
	if aqi != nil {
		return aqi.Location.Key()
	}
	return ""
}
