package models

import (
	"math"
	"testing"
	"time"
)

// TestLocationKey verifies that the join key is lowercase "city,country",
// or just the lowercase city when no country is set.
func TestLocationKey(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want string
	}{
		{
			name: "city and country",
			loc:  Location{City: "London", Country: "GB"},
			want: "london,gb",
		},
		{
			name: "city only",
			loc:  Location{City: "Tokyo"},
			want: "tokyo",
		},
		{
			name: "already lowercase",
			loc:  Location{City: "paris", Country: "fr"},
			want: "paris,fr",
		},
		{
			name: "multi word city",
			loc:  Location{City: "New York", Country: "US"},
			want: "new york,us",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.loc.Key(); got != tc.want {
				t.Fatalf("Key() = %q, want %q", got, tc.want)
			}
		})
	}
}

// TestLevelFromAQI verifies the EPA breakpoint table, including the
// fall-to-HAZARDOUS behavior for out-of-range values.
func TestLevelFromAQI(t *testing.T) {
	tests := []struct {
		aqi  int
		want AQILevel
	}{
		{0, AQIGood},
		{42, AQIGood},
		{50, AQIGood},
		{51, AQIModerate},
		{100, AQIModerate},
		{101, AQIUnhealthySensitive},
		{150, AQIUnhealthySensitive},
		{151, AQIUnhealthy},
		{200, AQIUnhealthy},
		{201, AQIVeryUnhealthy},
		{300, AQIVeryUnhealthy},
		{301, AQIHazardous},
		{500, AQIHazardous},
		{750, AQIHazardous},
	}

	for _, tc := range tests {
		if got := LevelFromAQI(tc.aqi); got != tc.want {
			t.Errorf("LevelFromAQI(%d) = %s, want %s", tc.aqi, got, tc.want)
		}
	}
}

// TestAQIReadingLevel verifies that an explicit level wins over derivation
// and that an unset level is derived from the AQI value.
func TestAQIReadingLevel(t *testing.T) {
	derived := AQIReading{AQI: 42}
	if got := derived.Level(); got != AQIGood {
		t.Errorf("Level() = %s, want %s", got, AQIGood)
	}

	explicit := AQIReading{AQI: 42, RawLevel: AQIModerate}
	if got := explicit.Level(); got != AQIModerate {
		t.Errorf("Level() = %s, want %s (explicit level must win)", got, AQIModerate)
	}
}

// TestAQIReadingRequiresAlert verifies the alert threshold at the
// UNHEALTHY boundary.
func TestAQIReadingRequiresAlert(t *testing.T) {
	tests := []struct {
		aqi  int
		want bool
	}{
		{42, false},
		{150, false},
		{151, true},
		{250, true},
		{400, true},
	}

	for _, tc := range tests {
		r := AQIReading{AQI: tc.aqi}
		if got := r.RequiresAlert(); got != tc.want {
			t.Errorf("RequiresAlert() with aqi=%d = %v, want %v", tc.aqi, got, tc.want)
		}
	}
}

// TestTemperatureFahrenheit verifies the derived Fahrenheit view and the
// reverse Celsius derivation.
func TestTemperatureFahrenheit(t *testing.T) {
	r := WeatherReading{TemperatureCelsius: 20}
	if got := r.TemperatureFahrenheit(); got != 68 {
		t.Errorf("TemperatureFahrenheit() = %v, want 68", got)
	}

	if got := CelsiusFromFahrenheit(68); math.Abs(got-20) > 1e-9 {
		t.Errorf("CelsiusFromFahrenheit(68) = %v, want 20", got)
	}

	// Round trip through both derivations must be stable.
	if got := CelsiusFromFahrenheit(r.TemperatureFahrenheit()); math.Abs(got-20) > 1e-9 {
		t.Errorf("round trip = %v, want 20", got)
	}
}

// TestWeatherReadingIsRecent verifies the one-hour freshness predicate.
func TestWeatherReadingIsRecent(t *testing.T) {
	tests := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{
			name: "just now",
			ts:   time.Now(),
			want: true,
		},
		{
			name: "59 minutes ago",
			ts:   time.Now().Add(-59 * time.Minute),
			want: true,
		},
		{
			name: "61 minutes ago",
			ts:   time.Now().Add(-61 * time.Minute),
			want: false,
		},
		{
			name: "zero timestamp",
			ts:   time.Time{},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := WeatherReading{Timestamp: tc.ts}
			if got := r.IsRecent(); got != tc.want {
				t.Fatalf("IsRecent() = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestForecastPredicates verifies the rain and UV convenience predicates.
func TestForecastPredicates(t *testing.T) {
	if (Forecast{PrecipitationProbability: 50}).IsLikelyToRain() {
		t.Error("IsLikelyToRain() with pop=50 = true, want false (strictly greater)")
	}
	if !(Forecast{PrecipitationProbability: 50.1}).IsLikelyToRain() {
		t.Error("IsLikelyToRain() with pop=50.1 = false, want true")
	}
	if (Forecast{UVIndex: 5}).HasHighUV() {
		t.Error("HasHighUV() with uv=5 = true, want false")
	}
	if !(Forecast{UVIndex: 6}).HasHighUV() {
		t.Error("HasHighUV() with uv=6 = false, want true")
	}
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// TestShouldAlertWeather verifies the threshold predicates for weather
// readings, including the active and nil-threshold short circuits.
func TestShouldAlertWeather(t *testing.T) {
	base := Subscription{
		Active:     true,
		AlertTypes: []AlertType{AlertHighTemperature},
		Thresholds: &AlertThresholds{MaxTemperature: floatPtr(30)},
	}

	tests := []struct {
		name    string
		sub     func() Subscription
		reading WeatherReading
		want    bool
	}{
		{
			name:    "high temp breach",
			sub:     func() Subscription { return base },
			reading: WeatherReading{TemperatureCelsius: 31},
			want:    true,
		},
		{
			name:    "high temp under threshold",
			sub:     func() Subscription { return base },
			reading: WeatherReading{TemperatureCelsius: 29},
			want:    false,
		},
		{
			name:    "high temp exactly at threshold",
			sub:     func() Subscription { return base },
			reading: WeatherReading{TemperatureCelsius: 30},
			want:    false,
		},
		{
			name: "inactive subscription never alerts",
			sub: func() Subscription {
				s := base
				s.Active = false
				return s
			},
			reading: WeatherReading{TemperatureCelsius: 35},
			want:    false,
		},
		{
			name: "nil thresholds never alert",
			sub: func() Subscription {
				s := base
				s.Thresholds = nil
				return s
			},
			reading: WeatherReading{TemperatureCelsius: 35},
			want:    false,
		},
		{
			name: "threshold set but type not subscribed",
			sub: func() Subscription {
				s := base
				s.AlertTypes = []AlertType{AlertPoorAirQuality}
				return s
			},
			reading: WeatherReading{TemperatureCelsius: 35},
			want:    false,
		},
		{
			name: "low temperature breach",
			sub: func() Subscription {
				return Subscription{
					Active:     true,
					AlertTypes: []AlertType{AlertLowTemperature},
					Thresholds: &AlertThresholds{MinTemperature: floatPtr(-5)},
				}
			},
			reading: WeatherReading{TemperatureCelsius: -10},
			want:    true,
		},
		{
			name: "high wind breach",
			sub: func() Subscription {
				return Subscription{
					Active:     true,
					AlertTypes: []AlertType{AlertHighWind},
					Thresholds: &AlertThresholds{MaxWindSpeed: floatPtr(20)},
				}
			},
			reading: WeatherReading{WindSpeed: 25},
			want:    true,
		},
		{
			name: "inert alert types never fire on weather",
			sub: func() Subscription {
				return Subscription{
					Active:     true,
					AlertTypes: []AlertType{AlertExtremeWeather, AlertHeavyRain, AlertUVWarning},
					Thresholds: &AlertThresholds{MaxPrecipitation: floatPtr(1), MaxUVIndex: intPtr(1)},
				}
			},
			reading: WeatherReading{TemperatureCelsius: 45, WindSpeed: 50},
			want:    false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.sub().ShouldAlertWeather(tc.reading); got != tc.want {
				t.Fatalf("ShouldAlertWeather() = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestShouldAlertAQI verifies the air-quality threshold predicate.
func TestShouldAlertAQI(t *testing.T) {
	sub := Subscription{
		Active:     true,
		AlertTypes: []AlertType{AlertPoorAirQuality},
		Thresholds: &AlertThresholds{MaxAQI: intPtr(100)},
	}

	if !sub.ShouldAlertAQI(AQIReading{AQI: 101}) {
		t.Error("ShouldAlertAQI(101) = false, want true")
	}
	if sub.ShouldAlertAQI(AQIReading{AQI: 100}) {
		t.Error("ShouldAlertAQI(100) = true, want false (strictly greater)")
	}

	sub.Active = false
	if sub.ShouldAlertAQI(AQIReading{AQI: 300}) {
		t.Error("inactive subscription alerted")
	}
}

// TestCanSendNotification verifies the cooldown gate around LastNotifiedAt.
func TestCanSendNotification(t *testing.T) {
	cooldown := 60 * time.Minute

	never := Subscription{}
	if !never.CanSendNotification(cooldown) {
		t.Error("CanSendNotification() with nil LastNotifiedAt = false, want true")
	}

	justNotified := time.Now()
	recent := Subscription{LastNotifiedAt: &justNotified}
	if recent.CanSendNotification(cooldown) {
		t.Error("CanSendNotification() immediately after notify = true, want false")
	}

	past := time.Now().Add(-61 * time.Minute)
	elapsed := Subscription{LastNotifiedAt: &past}
	if !elapsed.CanSendNotification(cooldown) {
		t.Error("CanSendNotification() after cooldown elapsed = false, want true")
	}
}
