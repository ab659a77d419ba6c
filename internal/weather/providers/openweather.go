package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/geometric-weather/internal/common"
	"github.com/i474232898/geometric-weather/internal/weather"
)

const (
	openWeatherBaseURL = "https://api.openweathermap.org"
	msToKph            = 3.6
)

// OpenWeatherProvider implements weather.Service for OpenWeatherMap.
type OpenWeatherProvider struct {
	apiKey   string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	requests common.Inflight
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: openWeatherBaseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Source() weather.Source {
	return weather.SourceOpenWeather
}

func (p *OpenWeatherProvider) Cancel() {
	p.requests.CancelAll()
}

type openWeatherCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

type openWeatherCurrent struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Visibility float64 `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Weather []openWeatherCondition `json:"weather"`
}

type openWeatherForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []openWeatherCondition `json:"weather"`
		Wind    struct {
			Speed float64 `json:"speed"`
			Deg   float64 `json:"deg"`
		} `json:"wind"`
		Pop  float64 `json:"pop"`
		Rain struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
		Snow struct {
			ThreeH float64 `json:"3h"`
		} `json:"snow"`
		Sys struct {
			Pod string `json:"pod"`
		} `json:"sys"`
	} `json:"list"`
	City struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
		// Timezone is the city's UTC offset in seconds.
		Timezone *int `json:"timezone"`
	} `json:"city"`
}

func (p *OpenWeatherProvider) endpoint(path string, values url.Values) string {
	values.Set("appid", p.apiKey)
	return fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
}

func (p *OpenWeatherProvider) coordValues(loc weather.Location) url.Values {
	values := url.Values{}
	values.Set("lat", formatCoord(loc.Latitude))
	values.Set("lon", formatCoord(loc.Longitude))
	values.Set("units", "metric")
	return values
}

func (p *OpenWeatherProvider) RequestWeather(ctx context.Context, loc weather.Location) (*weather.Weather, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errNoAPIKey)
	}
	ctx, done := p.requests.Begin(ctx)
	defer done()

	var (
		current  openWeatherCurrent
		forecast openWeatherForecast
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return getJSON(gctx, p.httpCfg, p.circuit, p.endpoint("/data/2.5/weather", p.coordValues(loc)), &current)
	})
	g.Go(func() error {
		return getJSON(gctx, p.httpCfg, p.circuit, p.endpoint("/data/2.5/forecast", p.coordValues(loc)), &forecast)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	publish := time.Unix(current.Dt, 0).UTC()
	if current.Dt == 0 {
		publish = time.Now().UTC()
	}

	w := &weather.Weather{
		Base: weather.Base{CityID: loc.CityID, PublishTime: publish},
		Current: weather.Current{
			WeatherText:      openWeatherText(current.Weather),
			Condition:        mapOpenWeatherCondition(current.Weather),
			TemperatureC:     current.Main.Temp,
			FeelsLikeC:       current.Main.FeelsLike,
			Wind:             windFromKph(current.Wind.Speed*msToKph, current.Wind.Deg),
			RelativeHumidity: current.Main.Humidity,
			PressureHpa:      current.Main.Pressure,
			VisibilityKm:     current.Visibility / 1000,
			CloudCover:       current.Clouds.All,
		},
	}

	for _, item := range forecast.List {
		precip := item.Rain.ThreeH + item.Snow.ThreeH
		w.Hourly = append(w.Hourly, weather.Hourly{
			Time:                     time.Unix(item.Dt, 0).UTC(),
			Daylight:                 item.Sys.Pod == "d",
			WeatherText:              openWeatherText(item.Weather),
			Condition:                mapOpenWeatherCondition(item.Weather),
			TemperatureC:             item.Main.Temp,
			PrecipitationMm:          precip,
			PrecipitationProbability: item.Pop * 100,
			Wind:                     windFromKph(item.Wind.Speed*msToKph, item.Wind.Deg),
		})
	}

	// The free forecast only has 3-hour slots; days are derived from them.
	w.Daily = weather.AggregateDaily(w.Hourly, forecastZone(loc, forecast.City.Timezone, publish))
	if len(w.Daily) > 0 && forecast.City.Sunrise > 0 {
		w.Daily[0].Sunrise = time.Unix(forecast.City.Sunrise, 0).UTC()
		w.Daily[0].Sunset = time.Unix(forecast.City.Sunset, 0).UTC()
	}

	return w, nil
}

// forecastZone picks the zone days are cut in. The location's own zone wins
// while it agrees with the offset the forecast reports for the city.
func forecastZone(loc weather.Location, offset *int, at time.Time) *time.Location {
	if offset == nil {
		return loc.Zone()
	}
	if loc.TimeZone != "" {
		if z, err := time.LoadLocation(loc.TimeZone); err == nil {
			if _, off := at.In(z).Zone(); off == *offset {
				return z
			}
		}
	}
	return time.FixedZone("", *offset)
}

type openWeatherPlace struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	State   string  `json:"state"`
}

func (p *OpenWeatherProvider) RequestLocation(ctx context.Context, loc weather.Location) ([]weather.Location, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errNoAPIKey)
	}
	ctx, done := p.requests.Begin(ctx)
	defer done()

	values := url.Values{}
	values.Set("lat", formatCoord(loc.Latitude))
	values.Set("lon", formatCoord(loc.Longitude))
	values.Set("limit", "1")

	var places []openWeatherPlace
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("/geo/1.0/reverse", values), &places); err != nil {
		return nil, err
	}
	return p.toLocations(places, loc.TimeZone), nil
}

func (p *OpenWeatherProvider) QueryLocation(ctx context.Context, query string) ([]weather.Location, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather: %w", errNoAPIKey)
	}
	ctx, done := p.requests.Begin(ctx)
	defer done()

	values := url.Values{}
	values.Set("q", query)
	values.Set("limit", "5")

	var places []openWeatherPlace
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("/geo/1.0/direct", values), &places); err != nil {
		return nil, err
	}
	return p.toLocations(places, ""), nil
}

func (p *OpenWeatherProvider) toLocations(places []openWeatherPlace, tz string) []weather.Location {
	locs := make([]weather.Location, 0, len(places))
	for _, pl := range places {
		locs = append(locs, weather.Location{
			CityID:    coordinatesID(pl.Lat, pl.Lon),
			Latitude:  pl.Lat,
			Longitude: pl.Lon,
			TimeZone:  tz,
			Country:   pl.Country,
			Province:  pl.State,
			City:      pl.Name,
			Source:    weather.SourceOpenWeather,
			China:     strings.EqualFold(pl.Country, "CN"),
		})
	}
	return locs
}

func openWeatherText(items []openWeatherCondition) string {
	if len(items) == 0 {
		return ""
	}
	if items[0].Description != "" {
		return items[0].Description
	}
	return items[0].Main
}

func mapOpenWeatherCondition(items []openWeatherCondition) weather.Condition {
	if len(items) == 0 {
		return weather.ConditionUnknown
	}
	switch items[0].Main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		if items[0].ID == 801 || items[0].ID == 802 {
			return weather.ConditionPartlyCloudy
		}
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		if items[0].ID == 511 {
			return weather.ConditionSleet
		}
		return weather.ConditionRain
	case "Snow":
		if items[0].ID >= 611 && items[0].ID <= 616 {
			return weather.ConditionSleet
		}
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist":
		return weather.ConditionMist
	case "Fog":
		return weather.ConditionFog
	case "Haze", "Smoke", "Dust", "Sand", "Ash":
		return weather.ConditionHaze
	case "Squall", "Tornado":
		return weather.ConditionWind
	default:
		return weather.ConditionUnknown
	}
}
