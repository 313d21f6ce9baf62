package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-platform/internal/models"
)

// WttrScraper implements Scraper against the wttr.in JSON endpoint. It is the
// web fallback for the primary weather provider: no API key, best-effort data.
// wttr.in carries no air quality data, so ScrapeAirQuality always reports
// absence and the orchestrator moves on to stored readings.
type WttrScraper struct {
	enabled bool
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	policy  RetryPolicy
}

func NewWttrScraper(enabled bool, baseURL string, timeout, breakerOpenTimeout time.Duration, policy RetryPolicy) *WttrScraper {
	if baseURL == "" {
		baseURL = "https://wttr.in"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WttrScraper{
		enabled: enabled,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: newBreaker("wttr", breakerOpenTimeout),
		policy:  policy,
	}
}

func (s *WttrScraper) IsEnabled() bool { return s.enabled }

// wttr.in reports every numeric field as a string.
type wttrResponse struct {
	CurrentCondition []struct {
		LocalObsDateTime string `json:"localObsDateTime"`
		TempC            string `json:"temp_C"`
		Humidity         string `json:"humidity"`
		Pressure         string `json:"pressure"`
		WindspeedKmph    string `json:"windspeedKmph"`
		WinddirDegree    string `json:"winddirDegree"`
		Visibility       string `json:"visibility"`
		Cloudcover       string `json:"cloudcover"`
		WeatherDesc      []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
	Weather []struct {
		Date     string `json:"date"`
		MaxtempC string `json:"maxtempC"`
		MintempC string `json:"mintempC"`
		AvgtempC string `json:"avgtempC"`
		UVIndex  string `json:"uvIndex"`
		Hourly   []struct {
			Humidity      string `json:"humidity"`
			WindspeedKmph string `json:"windspeedKmph"`
			Chanceofrain  string `json:"chanceofrain"`
			Cloudcover    string `json:"cloudcover"`
			WeatherDesc   []struct {
				Value string `json:"value"`
			} `json:"weatherDesc"`
		} `json:"hourly"`
	} `json:"weather"`
}

func (s *WttrScraper) fetch(ctx context.Context, city, country string) (*wttrResponse, error) {
	endpoint := s.baseURL + "/" + url.PathEscape(locationQuery(city, country)) + "?format=j1"

	var resp wttrResponse
	err := withRetry(ctx, "wttr", s.policy, func() error {
		return getJSON(ctx, s.client, s.breaker, "wttr", endpoint, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("wttr scrape for %s: %w", locationQuery(city, country), err)
	}
	return &resp, nil
}

// ScrapeWeather fetches current conditions from wttr.in.
func (s *WttrScraper) ScrapeWeather(ctx context.Context, city, country string) (*models.WeatherReading, error) {
	if !s.enabled {
		return nil, nil
	}

	resp, err := s.fetch(ctx, city, country)
	if err != nil {
		return nil, err
	}
	if len(resp.CurrentCondition) == 0 {
		return nil, nil
	}

	cc := resp.CurrentCondition[0]
	reading := &models.WeatherReading{
		Location:           models.Location{City: city, Country: country},
		Timestamp:          parseWttrTime(cc.LocalObsDateTime),
		TemperatureCelsius: parseFloat(cc.TempC),
		Humidity:           parseFloat(cc.Humidity),
		Pressure:           parseFloat(cc.Pressure),
		WindSpeed:          kmphToMps(parseFloat(cc.WindspeedKmph)),
		WindDirection:      parseInt(cc.WinddirDegree),
		Visibility:         parseFloat(cc.Visibility) * 1000, // km upstream, meters stored
		Cloudiness:         parseInt(cc.Cloudcover),
	}
	if len(cc.WeatherDesc) > 0 {
		reading.Condition = cc.WeatherDesc[0].Value
		reading.Description = cc.WeatherDesc[0].Value
	}
	return reading, nil
}

// ScrapeAirQuality reports absence: wttr.in has no AQI data.
func (s *WttrScraper) ScrapeAirQuality(ctx context.Context, city, country string) (*models.AQIReading, error) {
	return nil, nil
}

// ScrapeForecast fetches the daily outlook. wttr.in aggregates per day
// already, so unlike the primary provider this returns finished forecasts.
func (s *WttrScraper) ScrapeForecast(ctx context.Context, city, country string, days int) ([]models.Forecast, error) {
	if !s.enabled {
		return nil, nil
	}

	resp, err := s.fetch(ctx, city, country)
	if err != nil {
		return nil, err
	}
	if len(resp.Weather) == 0 {
		return nil, nil
	}
	if days > len(resp.Weather) {
		days = len(resp.Weather)
	}

	loc := models.Location{City: city, Country: country}
	forecasts := make([]models.Forecast, 0, days)
	for _, day := range resp.Weather[:days] {
		date, err := time.Parse("2006-01-02", day.Date)
		if err != nil {
			continue
		}
		f := models.Forecast{
			Location:   loc,
			Date:       date,
			TempMin:    parseFloat(day.MintempC),
			TempMax:    parseFloat(day.MaxtempC),
			TempAvg:    parseFloat(day.AvgtempC),
			UVIndex:    parseInt(day.UVIndex),
			DataSource: models.SourceScraper,
		}
		if len(day.Hourly) > 0 {
			// Midday slice is the day's representative sample.
			h := day.Hourly[len(day.Hourly)/2]
			f.Humidity = parseInt(h.Humidity)
			f.WindSpeed = kmphToMps(parseFloat(h.WindspeedKmph))
			f.Cloudiness = parseInt(h.Cloudcover)
			if len(h.WeatherDesc) > 0 {
				f.Condition = h.WeatherDesc[0].Value
				f.Description = h.WeatherDesc[0].Value
			}
			for _, hour := range day.Hourly {
				if p := parseFloat(hour.Chanceofrain); p > f.PrecipitationProbability {
					f.PrecipitationProbability = p
				}
			}
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func kmphToMps(kmph float64) float64 {
	return kmph / 3.6
}

func parseWttrTime(s string) time.Time {
	for _, layout := range []string{"2006-01-02 03:04 PM", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
