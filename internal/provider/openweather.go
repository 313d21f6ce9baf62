package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-platform/internal/models"
)

// OpenWeatherProvider implements WeatherProvider against the OpenWeatherMap
// current-weather and 5-day/3-hour forecast endpoints.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	policy  RetryPolicy
}

// NewOpenWeatherProvider creates the provider. An empty API key is allowed:
// the provider then reports itself unavailable and every call yields no data,
// which pushes the orchestrator down the fallback chain.
func NewOpenWeatherProvider(apiKey, baseURL string, timeout, breakerOpenTimeout time.Duration, policy RetryPolicy) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: newBreaker("openweather", breakerOpenTimeout),
		policy:  policy,
	}
}

func (p *OpenWeatherProvider) Name() string { return "OpenWeatherMap" }

// IsAvailable reports whether the provider is configured with an API key.
func (p *OpenWeatherProvider) IsAvailable() bool { return p.apiKey != "" }

type owmCurrentResponse struct {
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Visibility float64 `json:"visibility"`
	Wind       *struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds *struct {
		All int `json:"all"`
	} `json:"clouds"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
	Sys  *struct {
		Country string `json:"country"`
	} `json:"sys"`
}

// GetCurrentWeather fetches the current conditions for city/country.
func (p *OpenWeatherProvider) GetCurrentWeather(ctx context.Context, city, country string) (*models.WeatherReading, error) {
	if !p.IsAvailable() {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", locationQuery(city, country))
	params.Set("appid", p.apiKey)
	params.Set("units", "metric")
	endpoint := p.baseURL + "/weather?" + params.Encode()

	var resp owmCurrentResponse
	err := withRetry(ctx, "openweather", p.policy, func() error {
		return getJSON(ctx, p.client, p.breaker, "openweather", endpoint, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("openweather current weather for %s: %w", locationQuery(city, country), err)
	}

	return p.mapCurrent(resp, city, country), nil
}

func (p *OpenWeatherProvider) mapCurrent(resp owmCurrentResponse, city, country string) *models.WeatherReading {
	loc := models.Location{City: city, Country: country}
	if resp.Name != "" {
		loc.City = resp.Name
	}
	if resp.Sys != nil && resp.Sys.Country != "" {
		loc.Country = resp.Sys.Country
	}
	if resp.Coord != nil {
		loc.Latitude = resp.Coord.Lat
		loc.Longitude = resp.Coord.Lon
	}

	reading := &models.WeatherReading{
		Location:           loc,
		Timestamp:          time.Unix(resp.Dt, 0).UTC(),
		TemperatureCelsius: resp.Main.Temp,
		Humidity:           resp.Main.Humidity,
		Pressure:           resp.Main.Pressure,
		Visibility:         resp.Visibility,
	}
	if resp.Wind != nil {
		reading.WindSpeed = resp.Wind.Speed
		reading.WindDirection = resp.Wind.Deg
	}
	if resp.Clouds != nil {
		reading.Cloudiness = resp.Clouds.All
	}
	if len(resp.Weather) > 0 {
		reading.Condition = resp.Weather[0].Main
		reading.Description = resp.Weather[0].Description
		reading.Icon = resp.Weather[0].Icon
	}
	return reading
}

type owmForecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Clouds *struct {
			All int `json:"all"`
		} `json:"clouds"`
		Wind *struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Pop float64 `json:"pop"`
	} `json:"list"`
}

// GetForecast fetches days*8 three-hour granules (8 slices per day). Daily
// aggregation is the orchestrator's job, not the provider's.
func (p *OpenWeatherProvider) GetForecast(ctx context.Context, city, country string, days int) ([]models.ForecastGranule, error) {
	if !p.IsAvailable() {
		return nil, nil
	}

	params := url.Values{}
	params.Set("q", locationQuery(city, country))
	params.Set("appid", p.apiKey)
	params.Set("units", "metric")
	params.Set("cnt", fmt.Sprintf("%d", days*8))
	endpoint := p.baseURL + "/forecast?" + params.Encode()

	var resp owmForecastResponse
	err := withRetry(ctx, "openweather", p.policy, func() error {
		return getJSON(ctx, p.client, p.breaker, "openweather", endpoint, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("openweather forecast for %s: %w", locationQuery(city, country), err)
	}
	if len(resp.List) == 0 {
		return nil, nil
	}

	granules := make([]models.ForecastGranule, 0, len(resp.List))
	for _, item := range resp.List {
		g := models.ForecastGranule{
			Timestamp: time.Unix(item.Dt, 0).UTC(),
			Temp:      item.Main.Temp,
			TempMin:   item.Main.TempMin,
			TempMax:   item.Main.TempMax,
			Humidity:  item.Main.Humidity,
			// pop is a 0..1 probability upstream; stored as percent.
			PrecipitationProbability: item.Pop * 100,
		}
		if item.Wind != nil {
			g.WindSpeed = item.Wind.Speed
		}
		if item.Clouds != nil {
			g.Cloudiness = item.Clouds.All
		}
		if len(item.Weather) > 0 {
			g.Condition = item.Weather[0].Main
			g.Description = item.Weather[0].Description
			g.Icon = item.Weather[0].Icon
		}
		granules = append(granules, g)
	}
	return granules, nil
}
