package alert

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/kjstillabower/weather-platform/internal/models"
	"github.com/kjstillabower/weather-platform/internal/notify"
)

var alertTypeTitles = map[models.AlertType]string{
	models.AlertHighTemperature: "High temperature",
	models.AlertLowTemperature:  "Low temperature",
	models.AlertPoorAirQuality:  "Poor air quality",
	models.AlertExtremeWeather:  "Extreme weather",
	models.AlertHighWind:        "High wind",
	models.AlertHeavyRain:       "Heavy rain",
	models.AlertUVWarning:       "UV warning",
}

var bodyTemplate = template.Must(template.New("alert").Parse(`Hello,

The following alert condition{{if .Plural}}s{{end}} triggered for {{.Place}}:

{{range .Details}}  - {{.}}
{{end}}{{if .Weather}}
Current weather:
  Temperature: {{printf "%.1f" .Weather.TemperatureCelsius}}°C ({{printf "%.1f" .Weather.TemperatureFahrenheit}}°F)
  Humidity:    {{printf "%.0f" .Weather.Humidity}}%
  Wind:        {{printf "%.1f" .Weather.WindSpeed}} m/s{{if .Weather.Condition}}
  Conditions:  {{.Weather.Condition}}{{end}}
{{end}}{{if .AQI}}
Current air quality:
  AQI:   {{.AQI.AQI}}
  Level: {{.AQI.LevelDescription}}
{{end}}
You are receiving this because you subscribed to weather alerts for this
location. Manage your subscription to change thresholds or unsubscribe.

Weather & Air Quality Platform
`))

type bodyData struct {
	Place   string
	Details []string
	Plural  bool
	Weather *models.WeatherReading
	AQI     *aqiView
}

type aqiView struct {
	AQI              int
	LevelDescription string
}

// buildMessage renders the notification for a set of triggers. The subject
// names the first triggering condition; the body lists them all plus a
// snapshot of the readings that tripped them.
func buildMessage(sub models.Subscription, triggers []Trigger, weather *models.WeatherReading, aqi *models.AQIReading) notify.Message {
	place := displayLocation(sub.Location)
	title := alertTypeTitles[triggers[0].Type]
	if title == "" {
		title = string(triggers[0].Type)
	}

	subject := fmt.Sprintf("%s alert for %s", title, place)
	if len(triggers) > 1 {
		subject = fmt.Sprintf("%s (+%d more) alert for %s", title, len(triggers)-1, place)
	}

	details := make([]string, 0, len(triggers))
	for _, tr := range triggers {
		details = append(details, tr.Detail)
	}

	data := bodyData{Place: place, Details: details, Plural: len(details) > 1, Weather: weather}
	if aqi != nil {
		data.AQI = &aqiView{AQI: aqi.AQI, LevelDescription: aqi.Level().Description()}
	}

	var b strings.Builder
	if err := bodyTemplate.Execute(&b, data); err != nil {
		// Template data is fully controlled; fall back to the bare details.
		return notify.Message{Subject: subject, Body: strings.Join(details, "\n")}
	}
	return notify.Message{Subject: subject, Body: b.String()}
}

func displayLocation(loc models.Location) string {
	if loc.Country == "" {
		return loc.City
	}
	return loc.City + ", " + loc.Country
}
