package models

import "time"

// Forecast is the aggregated outlook for one calendar date at a location.
// A location's forecast set holds at most one entry per date.
type Forecast struct {
	ID                       int64      `json:"id,omitempty"`
	Location                 Location   `json:"location"`
	Date                     time.Time  `json:"date"`
	TempMin                  float64    `json:"tempMin"`
	TempMax                  float64    `json:"tempMax"`
	TempAvg                  float64    `json:"tempAvg"`
	Humidity                 int        `json:"humidity"`
	WindSpeed                float64    `json:"windSpeed"`
	Condition                string     `json:"weatherCondition,omitempty"`
	Description              string     `json:"weatherDescription,omitempty"`
	Icon                     string     `json:"weatherIcon,omitempty"`
	PrecipitationProbability float64    `json:"precipitationProbability"`
	PrecipitationAmount      float64    `json:"precipitationAmount,omitempty"`
	Cloudiness               int        `json:"cloudiness,omitempty"`
	UVIndex                  int        `json:"uvIndex,omitempty"`
	Sunrise                  time.Time  `json:"sunrise,omitempty"`
	Sunset                   time.Time  `json:"sunset,omitempty"`
	DataSource               DataSource `json:"dataSource"`
	CreatedAt                time.Time  `json:"createdAt"`
}

// IsLikelyToRain reports whether precipitation probability exceeds 50%.
func (f Forecast) IsLikelyToRain() bool {
	return f.PrecipitationProbability > 50.0
}

// HasHighUV reports whether the UV index is 6 or above.
func (f Forecast) HasHighUV() bool {
	return f.UVIndex >= 6
}

// ForecastGranule is one three-hour slice as returned by the forecast
// provider, before daily aggregation.
type ForecastGranule struct {
	Timestamp                time.Time
	Temp                     float64
	TempMin                  float64
	TempMax                  float64
	Humidity                 int
	WindSpeed                float64
	Condition                string
	Description              string
	Icon                     string
	PrecipitationProbability float64
	Cloudiness               int
}
