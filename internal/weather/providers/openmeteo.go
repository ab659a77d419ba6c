package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/geometric-weather/internal/common"
	"github.com/i474232898/geometric-weather/internal/weather"
)

const (
	openMeteoForecastURL  = "https://api.open-meteo.com/v1/forecast"
	openMeteoGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	openMeteoForecastDays = 7
)

// OpenMeteoProvider implements weather.Service for Open-Meteo. It needs no API key.
type OpenMeteoProvider struct {
	forecastURL  string
	geocodingURL string
	httpCfg      HTTPClientConfig
	circuit      *gobreaker.CircuitBreaker
	requests     common.Inflight
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		forecastURL:  openMeteoForecastURL,
		geocodingURL: openMeteoGeocodingURL,
		httpCfg:      HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit:      newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Source() weather.Source {
	return weather.SourceOpenMeteo
}

func (p *OpenMeteoProvider) Cancel() {
	p.requests.CancelAll()
}

type openMeteoForecast struct {
	Timezone string `json:"timezone"`
	Current  struct {
		Time                int64   `json:"time"`
		Temperature         float64 `json:"temperature_2m"`
		ApparentTemperature float64 `json:"apparent_temperature"`
		RelativeHumidity    float64 `json:"relative_humidity_2m"`
		DewPoint            float64 `json:"dew_point_2m"`
		WeatherCode         int     `json:"weather_code"`
		WindSpeed           float64 `json:"wind_speed_10m"`
		WindDirection       float64 `json:"wind_direction_10m"`
		Pressure            float64 `json:"pressure_msl"`
		CloudCover          int     `json:"cloud_cover"`
		Visibility          float64 `json:"visibility"`
		UVIndex             float64 `json:"uv_index"`
		IsDay               int     `json:"is_day"`
	} `json:"current"`
	Hourly struct {
		Time                     []int64   `json:"time"`
		Temperature              []float64 `json:"temperature_2m"`
		Precipitation            []float64 `json:"precipitation"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
		WeatherCode              []int     `json:"weather_code"`
		WindSpeed                []float64 `json:"wind_speed_10m"`
		WindDirection            []float64 `json:"wind_direction_10m"`
		UVIndex                  []float64 `json:"uv_index"`
		IsDay                    []int     `json:"is_day"`
	} `json:"hourly"`
	Daily struct {
		Time                     []int64   `json:"time"`
		WeatherCode              []int     `json:"weather_code"`
		TemperatureMax           []float64 `json:"temperature_2m_max"`
		TemperatureMin           []float64 `json:"temperature_2m_min"`
		PrecipitationSum         []float64 `json:"precipitation_sum"`
		PrecipitationProbability []float64 `json:"precipitation_probability_max"`
		Sunrise                  []int64   `json:"sunrise"`
		Sunset                   []int64   `json:"sunset"`
		UVIndexMax               []float64 `json:"uv_index_max"`
		WindSpeedMax             []float64 `json:"wind_speed_10m_max"`
		WindDirection            []float64 `json:"wind_direction_10m_dominant"`
		SunshineDuration         []float64 `json:"sunshine_duration"`
	} `json:"daily"`
	Minutely15 struct {
		Time          []int64   `json:"time"`
		Precipitation []float64 `json:"precipitation"`
		WeatherCode   []int     `json:"weather_code"`
		IsDay         []int     `json:"is_day"`
	} `json:"minutely_15"`
}

func (p *OpenMeteoProvider) RequestWeather(ctx context.Context, loc weather.Location) (*weather.Weather, error) {
	ctx, done := p.requests.Begin(ctx)
	defer done()

	values := url.Values{}
	values.Set("latitude", formatCoord(loc.Latitude))
	values.Set("longitude", formatCoord(loc.Longitude))
	values.Set("current", "temperature_2m,apparent_temperature,relative_humidity_2m,dew_point_2m,weather_code,"+
		"wind_speed_10m,wind_direction_10m,pressure_msl,cloud_cover,visibility,uv_index,is_day")
	values.Set("hourly", "temperature_2m,precipitation,precipitation_probability,weather_code,"+
		"wind_speed_10m,wind_direction_10m,uv_index,is_day")
	values.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum,"+
		"precipitation_probability_max,sunrise,sunset,uv_index_max,wind_speed_10m_max,"+
		"wind_direction_10m_dominant,sunshine_duration")
	values.Set("minutely_15", "precipitation,weather_code,is_day")
	values.Set("forecast_days", strconv.Itoa(openMeteoForecastDays))
	values.Set("timezone", "auto")
	values.Set("timeformat", "unixtime")

	var payload openMeteoForecast
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.forecastURL+"?"+values.Encode(), &payload); err != nil {
		return nil, err
	}

	publish := time.Unix(payload.Current.Time, 0).UTC()
	if payload.Current.Time == 0 {
		publish = time.Now().UTC()
	}

	cur := payload.Current
	w := &weather.Weather{
		Base: weather.Base{CityID: loc.CityID, PublishTime: publish},
		Current: weather.Current{
			WeatherText:      openMeteoText(cur.WeatherCode),
			Condition:        mapOpenMeteoCondition(cur.WeatherCode),
			TemperatureC:     cur.Temperature,
			FeelsLikeC:       cur.ApparentTemperature,
			Wind:             windFromKph(cur.WindSpeed, cur.WindDirection),
			UVIndex:          cur.UVIndex,
			RelativeHumidity: cur.RelativeHumidity,
			PressureHpa:      cur.Pressure,
			VisibilityKm:     cur.Visibility / 1000,
			DewPointC:        cur.DewPoint,
			CloudCover:       cur.CloudCover,
		},
	}

	h := payload.Hourly
	for i, ts := range h.Time {
		code := intAt(h.WeatherCode, i)
		w.Hourly = append(w.Hourly, weather.Hourly{
			Time:                     time.Unix(ts, 0).UTC(),
			Daylight:                 intAt(h.IsDay, i) == 1,
			WeatherText:              openMeteoText(code),
			Condition:                mapOpenMeteoCondition(code),
			TemperatureC:             floatAt(h.Temperature, i),
			PrecipitationMm:          floatAt(h.Precipitation, i),
			PrecipitationProbability: floatAt(h.PrecipitationProbability, i),
			Wind:                     windFromKph(floatAt(h.WindSpeed, i), floatAt(h.WindDirection, i)),
			UVIndex:                  floatAt(h.UVIndex, i),
		})
	}

	d := payload.Daily
	for i, ts := range d.Time {
		code := intAt(d.WeatherCode, i)
		wind := windFromKph(floatAt(d.WindSpeedMax, i), floatAt(d.WindDirection, i))
		// Open-Meteo publishes whole-day values; both halves share them.
		day := weather.HalfDay{
			WeatherText:              openMeteoText(code),
			Condition:                mapOpenMeteoCondition(code),
			TemperatureC:             floatAt(d.TemperatureMax, i),
			PrecipitationMm:          floatAt(d.PrecipitationSum, i),
			PrecipitationProbability: floatAt(d.PrecipitationProbability, i),
			Wind:                     wind,
		}
		night := day
		night.TemperatureC = floatAt(d.TemperatureMin, i)

		daily := weather.Daily{
			Date:       time.Unix(ts, 0).UTC(),
			Day:        day,
			Night:      night,
			UVIndex:    floatAt(d.UVIndexMax, i),
			HoursOfSun: floatAt(d.SunshineDuration, i) / 3600,
		}
		if s := int64At(d.Sunrise, i); s > 0 {
			daily.Sunrise = time.Unix(s, 0).UTC()
		}
		if s := int64At(d.Sunset, i); s > 0 {
			daily.Sunset = time.Unix(s, 0).UTC()
		}
		w.Daily = append(w.Daily, daily)
	}

	m := payload.Minutely15
	for i, ts := range m.Time {
		code := intAt(m.WeatherCode, i)
		w.Minutely = append(w.Minutely, weather.Minutely{
			Time:            time.Unix(ts, 0).UTC(),
			Daylight:        intAt(m.IsDay, i) == 1,
			WeatherText:     openMeteoText(code),
			Condition:       mapOpenMeteoCondition(code),
			MinuteInterval:  15,
			PrecipitationMm: floatAt(m.Precipitation, i),
		})
	}

	if len(w.Daily) > 0 {
		w.Current.DailySummary = fmt.Sprintf("%s, %.0f°C / %.0f°C",
			w.Daily[0].Day.WeatherText, w.Daily[0].Day.TemperatureC, w.Daily[0].Night.TemperatureC)
	}

	return w, nil
}

type openMeteoPlace struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Country   string  `json:"country"`
	CountryCC string  `json:"country_code"`
	Admin1    string  `json:"admin1"`
	Admin2    string  `json:"admin2"`
}

// RequestLocation has no reverse geocoding endpoint to call; Open-Meteo forecasts
// any coordinate, so the location itself is returned keyed by its coordinates.
func (p *OpenMeteoProvider) RequestLocation(ctx context.Context, loc weather.Location) ([]weather.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := loc
	out.CityID = coordinatesID(loc.Latitude, loc.Longitude)
	out.Source = weather.SourceOpenMeteo
	return []weather.Location{out}, nil
}

func (p *OpenMeteoProvider) QueryLocation(ctx context.Context, query string) ([]weather.Location, error) {
	ctx, done := p.requests.Begin(ctx)
	defer done()

	values := url.Values{}
	values.Set("name", query)
	values.Set("count", "10")
	values.Set("format", "json")

	var payload struct {
		Results []openMeteoPlace `json:"results"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.geocodingURL+"?"+values.Encode(), &payload); err != nil {
		return nil, err
	}

	locs := make([]weather.Location, 0, len(payload.Results))
	for _, r := range payload.Results {
		locs = append(locs, weather.Location{
			CityID:    strconv.FormatInt(r.ID, 10),
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			TimeZone:  r.Timezone,
			Country:   r.Country,
			Province:  r.Admin1,
			City:      r.Name,
			District:  r.Admin2,
			Source:    weather.SourceOpenMeteo,
			China:     strings.EqualFold(r.CountryCC, "CN"),
		})
	}
	return locs, nil
}

func windFromKph(kph, deg float64) weather.Wind {
	return weather.Wind{
		Direction: windDirection(deg),
		Degree:    deg,
		SpeedKph:  kph,
		Level:     windLevel(kph),
	}
}

func floatAt(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func intAt(s []int, i int) int {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func int64At(s []int64, i int) int64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// WMO weather interpretation codes.
	switch {
	case code == 0:
		return weather.ConditionClear
	case code == 1 || code == 2:
		return weather.ConditionPartlyCloudy
	case code == 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionFog
	case code >= 51 && code <= 55:
		return weather.ConditionRain
	case code == 56 || code == 57 || code == 66 || code == 67:
		return weather.ConditionSleet
	case (code >= 61 && code <= 65) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code == 96 || code == 99:
		return weather.ConditionHail
	case code == 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}

func openMeteoText(code int) string {
	switch mapOpenMeteoCondition(code) {
	case weather.ConditionClear:
		return "Clear"
	case weather.ConditionPartlyCloudy:
		return "Partly cloudy"
	case weather.ConditionCloudy:
		return "Overcast"
	case weather.ConditionFog:
		return "Fog"
	case weather.ConditionSleet:
		return "Freezing rain"
	case weather.ConditionRain:
		if code >= 51 && code <= 55 {
			return "Drizzle"
		}
		return "Rain"
	case weather.ConditionSnow:
		return "Snow"
	case weather.ConditionHail:
		return "Thunderstorm with hail"
	case weather.ConditionStorm:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
