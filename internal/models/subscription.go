package models

import "time"

// AlertType names a condition a subscription can watch for.
type AlertType string

const (
	AlertHighTemperature AlertType = "HIGH_TEMPERATURE"
	AlertLowTemperature  AlertType = "LOW_TEMPERATURE"
	AlertPoorAirQuality  AlertType = "POOR_AIR_QUALITY"
	AlertExtremeWeather  AlertType = "EXTREME_WEATHER"
	AlertHighWind        AlertType = "HIGH_WIND"
	AlertHeavyRain       AlertType = "HEAVY_RAIN"
	AlertUVWarning       AlertType = "UV_WARNING"
)

// ValidAlertType reports whether t is part of the recognized vocabulary.
// EXTREME_WEATHER, HEAVY_RAIN and UV_WARNING are accepted but currently have
// no evaluation rule wired to any reading type.
func ValidAlertType(t AlertType) bool {
	switch t {
	case AlertHighTemperature, AlertLowTemperature, AlertPoorAirQuality,
		AlertExtremeWeather, AlertHighWind, AlertHeavyRain, AlertUVWarning:
		return true
	}
	return false
}

// AlertThresholds holds the per-metric limits a subscription alerts on.
// Each field is independently optional; nil means the metric is not watched.
type AlertThresholds struct {
	MaxTemperature   *float64 `json:"maxTemperature,omitempty"`
	MinTemperature   *float64 `json:"minTemperature,omitempty"`
	MaxAQI           *int     `json:"maxAQI,omitempty"`
	MaxWindSpeed     *float64 `json:"maxWindSpeed,omitempty"`
	MaxPrecipitation *float64 `json:"maxPrecipitation,omitempty"`
	MaxUVIndex       *int     `json:"maxUVIndex,omitempty"`
}

// Subscription is a user's alert registration for one location.
// LastNotifiedAt is mutated only by the alert engine after a dispatch attempt.
type Subscription struct {
	ID             int64            `json:"id"`
	UserID         string           `json:"userId"`
	Email          string           `json:"email"`
	Location       Location         `json:"location"`
	AlertTypes     []AlertType      `json:"alertTypes"`
	Thresholds     *AlertThresholds `json:"thresholds,omitempty"`
	Active         bool             `json:"active"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastNotifiedAt *time.Time       `json:"lastNotifiedAt,omitempty"`
}

// HasAlertType reports whether the subscription watches the given type.
// AlertTypes is compared as a set; order is irrelevant.
func (s Subscription) HasAlertType(t AlertType) bool {
	for _, at := range s.AlertTypes {
		if at == t {
			return true
		}
	}
	return false
}

// ShouldAlertWeather decides whether the reading breaches any subscribed
// weather threshold. Inactive subscriptions and subscriptions without
// thresholds never alert.
func (s Subscription) ShouldAlertWeather(r WeatherReading) bool {
	if !s.Active || s.Thresholds == nil {
		return false
	}
	if s.HasAlertType(AlertHighTemperature) &&
		s.Thresholds.MaxTemperature != nil &&
		r.TemperatureCelsius > *s.Thresholds.MaxTemperature {
		return true
	}
	if s.HasAlertType(AlertLowTemperature) &&
		s.Thresholds.MinTemperature != nil &&
		r.TemperatureCelsius < *s.Thresholds.MinTemperature {
		return true
	}
	if s.HasAlertType(AlertHighWind) &&
		s.Thresholds.MaxWindSpeed != nil &&
		r.WindSpeed > *s.Thresholds.MaxWindSpeed {
		return true
	}
	return false
}

// ShouldAlertAQI decides whether the AQI reading breaches the subscribed
// air-quality threshold.
func (s Subscription) ShouldAlertAQI(r AQIReading) bool {
	if !s.Active || s.Thresholds == nil {
		return false
	}
	return s.HasAlertType(AlertPoorAirQuality) &&
		s.Thresholds.MaxAQI != nil &&
		r.AQI > *s.Thresholds.MaxAQI
}

// CanSendNotification enforces the per-subscription cooldown: true when the
// subscription was never notified, or when at least cooldown has elapsed
// since the last notification.
func (s Subscription) CanSendNotification(cooldown time.Duration) bool {
	if s.LastNotifiedAt == nil {
		return true
	}
	return time.Since(*s.LastNotifiedAt) >= cooldown
}
