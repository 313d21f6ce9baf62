package models

import "time"

// DataSource tags a reading with the acquisition path that produced it.
type DataSource string

const (
	SourceOpenWeather DataSource = "OPENWEATHER_API"
	SourceIQAir       DataSource = "IQAIR_API"
	SourceScraper     DataSource = "SCRAPER_FALLBACK"
	SourceCached      DataSource = "CACHED"
)

// WeatherReading is a point-in-time weather observation for a location.
// Temperature is stored in Celsius only; Fahrenheit is a derived view.
type WeatherReading struct {
	ID                 int64      `json:"id,omitempty"`
	Location           Location   `json:"location"`
	Timestamp          time.Time  `json:"timestamp"`
	TemperatureCelsius float64    `json:"temperatureCelsius"`
	Humidity           float64    `json:"humidity"`
	Pressure           float64    `json:"pressure"`
	WindSpeed          float64    `json:"windSpeed"`
	WindDirection      int        `json:"windDirection"`
	Condition          string     `json:"weatherCondition,omitempty"`
	Description        string     `json:"weatherDescription,omitempty"`
	Icon               string     `json:"weatherIcon,omitempty"`
	Visibility         float64    `json:"visibility,omitempty"`
	Cloudiness         int        `json:"cloudiness,omitempty"`
	DataSource         DataSource `json:"dataSource"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// TemperatureFahrenheit derives the Fahrenheit view of the stored Celsius
// value. Never persisted as a second source of truth.
func (r WeatherReading) TemperatureFahrenheit() float64 {
	return r.TemperatureCelsius*9/5 + 32
}

// CelsiusFromFahrenheit is the reverse derivation, used when an upstream
// source reports Fahrenheit only.
func CelsiusFromFahrenheit(f float64) float64 {
	return (f - 32) * 5 / 9
}

// recentWindow is the freshness horizon used to gate cache short-circuits.
const recentWindow = time.Hour

// IsRecent reports whether the reading was taken within the last hour.
func (r WeatherReading) IsRecent() bool {
	if r.Timestamp.IsZero() {
		return false
	}
	return r.Timestamp.After(time.Now().Add(-recentWindow))
}
