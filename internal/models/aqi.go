package models

import "time"

// AQILevel is the EPA category for an AQI value.
type AQILevel string

const (
	AQIGood               AQILevel = "GOOD"
	AQIModerate           AQILevel = "MODERATE"
	AQIUnhealthySensitive AQILevel = "UNHEALTHY_SENSITIVE"
	AQIUnhealthy          AQILevel = "UNHEALTHY"
	AQIVeryUnhealthy      AQILevel = "VERY_UNHEALTHY"
	AQIHazardous          AQILevel = "HAZARDOUS"
)

// aqiBreakpoints are the fixed EPA bucket upper bounds, in order.
var aqiBreakpoints = []struct {
	max   int
	level AQILevel
}{
	{50, AQIGood},
	{100, AQIModerate},
	{150, AQIUnhealthySensitive},
	{200, AQIUnhealthy},
	{300, AQIVeryUnhealthy},
	{500, AQIHazardous},
}

// LevelFromAQI maps an AQI value to its EPA category. Total over all inputs:
// anything above the last breakpoint falls to HAZARDOUS.
func LevelFromAQI(aqi int) AQILevel {
	for _, b := range aqiBreakpoints {
		if aqi <= b.max {
			return b.level
		}
	}
	return AQIHazardous
}

// Description returns the human-readable EPA category name.
func (l AQILevel) Description() string {
	switch l {
	case AQIGood:
		return "Good"
	case AQIModerate:
		return "Moderate"
	case AQIUnhealthySensitive:
		return "Unhealthy for Sensitive Groups"
	case AQIUnhealthy:
		return "Unhealthy"
	case AQIVeryUnhealthy:
		return "Very Unhealthy"
	case AQIHazardous:
		return "Hazardous"
	}
	return string(l)
}

// AQIReading is a point-in-time air quality observation for a location.
type AQIReading struct {
	ID         int64      `json:"id,omitempty"`
	Location   Location   `json:"location"`
	Timestamp  time.Time  `json:"timestamp"`
	AQI        int        `json:"aqi"`
	RawLevel   AQILevel   `json:"level,omitempty"`
	PM25       float64    `json:"pm25,omitempty"`
	PM10       float64    `json:"pm10,omitempty"`
	CO         float64    `json:"co,omitempty"`
	NO2        float64    `json:"no2,omitempty"`
	SO2        float64    `json:"so2,omitempty"`
	O3         float64    `json:"o3,omitempty"`
	DataSource DataSource `json:"dataSource"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Level returns the explicit level when set, otherwise derives it from the
// AQI value via the EPA breakpoints.
func (r AQIReading) Level() AQILevel {
	if r.RawLevel != "" {
		return r.RawLevel
	}
	return LevelFromAQI(r.AQI)
}

// RequiresAlert reports whether air quality is bad enough to warrant an
// alert regardless of user thresholds.
func (r AQIReading) RequiresAlert() bool {
	switch r.Level() {
	case AQIUnhealthy, AQIVeryUnhealthy, AQIHazardous:
		return true
	}
	return false
}
