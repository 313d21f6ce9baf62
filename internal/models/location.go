package models

import "strings"

// Location identifies a place readings are attributed to. Immutable value;
// Key is the join key across weather, AQI, forecast and subscription stores.
type Location struct {
	City      string  `json:"city"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Key returns the canonical lowercase "city,country" key, or just "city"
// when no country is set. Every store lookup must derive keys through here.
func (l Location) Key() string {
	if l.Country == "" {
		return strings.ToLower(l.City)
	}
	return strings.ToLower(l.City + "," + l.Country)
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}
