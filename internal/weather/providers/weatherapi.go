package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/i474232898/geometric-weather/internal/common"
	"github.com/i474232898/geometric-weather/internal/weather"
)

const (
	weatherAPIBaseURL      = "https://api.weatherapi.com/v1"
	weatherAPIForecastDays = 3
)

// WeatherAPIProvider implements weather.Service for WeatherAPI.com.
type WeatherAPIProvider struct {
	apiKey   string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	requests common.Inflight
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		apiKey:  apiKey,
		baseURL: weatherAPIBaseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: DefaultBackoff},
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Source() weather.Source {
	return weather.SourceWeatherAPI
}

func (p *WeatherAPIProvider) Cancel() {
	p.requests.CancelAll()
}

type weatherAPICondition struct {
	Text string `json:"text"`
	Code int    `json:"code"`
}

type weatherAPIForecast struct {
	Location struct {
		TzID string `json:"tz_id"`
	} `json:"location"`
	Current struct {
		LastUpdatedEpoch int64               `json:"last_updated_epoch"`
		TempC            float64             `json:"temp_c"`
		FeelsLikeC       float64             `json:"feelslike_c"`
		DewPointC        float64             `json:"dewpoint_c"`
		Humidity         float64             `json:"humidity"`
		WindKph          float64             `json:"wind_kph"`
		WindDegree       float64             `json:"wind_degree"`
		WindDir          string              `json:"wind_dir"`
		PressureMb       float64             `json:"pressure_mb"`
		Cloud            int                 `json:"cloud"`
		VisKm            float64             `json:"vis_km"`
		UV               float64             `json:"uv"`
		Condition        weatherAPICondition `json:"condition"`
		AirQuality       *struct {
			USEPAIndex int `json:"us-epa-index"`
		} `json:"air_quality"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC          float64             `json:"maxtemp_c"`
				MinTempC          float64             `json:"mintemp_c"`
				TotalPrecipMm     float64             `json:"totalprecip_mm"`
				DailyChanceOfRain float64             `json:"daily_chance_of_rain"`
				MaxWindKph        float64             `json:"maxwind_kph"`
				UV                float64             `json:"uv"`
				Condition         weatherAPICondition `json:"condition"`
			} `json:"day"`
			Astro struct {
				Sunrise string `json:"sunrise"`
				Sunset  string `json:"sunset"`
			} `json:"astro"`
			Hour []struct {
				TimeEpoch    int64               `json:"time_epoch"`
				TempC        float64             `json:"temp_c"`
				IsDay        int                 `json:"is_day"`
				WindKph      float64             `json:"wind_kph"`
				WindDegree   float64             `json:"wind_degree"`
				WindDir      string              `json:"wind_dir"`
				PrecipMm     float64             `json:"precip_mm"`
				ChanceOfRain float64             `json:"chance_of_rain"`
				UV           float64             `json:"uv"`
				Condition    weatherAPICondition `json:"condition"`
			} `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Alerts struct {
		Alert []struct {
			Headline    string `json:"headline"`
			Severity    string `json:"severity"`
			Event       string `json:"event"`
			Effective   string `json:"effective"`
			Description string `json:"desc"`
			Instruction string `json:"instruction"`
		} `json:"alert"`
	} `json:"alerts"`
}

func (p *WeatherAPIProvider) RequestWeather(ctx context.Context, loc weather.Location) (*weather.Weather, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi: %w", errNoAPIKey)
	}
	ctx, done := p.requests.Begin(ctx)
	defer done()

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", fmt.Sprintf("%s,%s", formatCoord(loc.Latitude), formatCoord(loc.Longitude)))
	values.Set("days", strconv.Itoa(weatherAPIForecastDays))
	values.Set("aqi", "yes")
	values.Set("alerts", "yes")

	var payload weatherAPIForecast
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/forecast.json?"+values.Encode(), &payload); err != nil {
		return nil, err
	}

	zone := loc.Zone()
	if payload.Location.TzID != "" {
		if z, err := time.LoadLocation(payload.Location.TzID); err == nil {
			zone = z
		}
	}

	publish := time.Unix(payload.Current.LastUpdatedEpoch, 0).UTC()
	if payload.Current.LastUpdatedEpoch == 0 {
		publish = time.Now().UTC()
	}

	cur := payload.Current
	w := &weather.Weather{
		Base: weather.Base{CityID: loc.CityID, PublishTime: publish},
		Current: weather.Current{
			WeatherText:      cur.Condition.Text,
			Condition:        mapWeatherAPICondition(cur.Condition.Text),
			TemperatureC:     cur.TempC,
			FeelsLikeC:       cur.FeelsLikeC,
			Wind:             weather.Wind{Direction: cur.WindDir, Degree: cur.WindDegree, SpeedKph: cur.WindKph, Level: windLevel(cur.WindKph)},
			UVIndex:          cur.UV,
			RelativeHumidity: cur.Humidity,
			PressureHpa:      cur.PressureMb,
			VisibilityKm:     cur.VisKm,
			DewPointC:        cur.DewPointC,
			CloudCover:       cur.Cloud,
		},
	}
	if cur.AirQuality != nil {
		aqi := cur.AirQuality.USEPAIndex
		w.Current.AirQualityIndex = &aqi
	}

	for _, fd := range payload.Forecast.ForecastDay {
		date, err := time.ParseInLocation("2006-01-02", fd.Date, zone)
		if err != nil {
			continue
		}
		day := weather.HalfDay{
			WeatherText:              fd.Day.Condition.Text,
			Condition:                mapWeatherAPICondition(fd.Day.Condition.Text),
			TemperatureC:             fd.Day.MaxTempC,
			PrecipitationMm:          fd.Day.TotalPrecipMm,
			PrecipitationProbability: fd.Day.DailyChanceOfRain,
			Wind:                     windFromKph(fd.Day.MaxWindKph, 0),
		}
		night := day
		night.TemperatureC = fd.Day.MinTempC

		daily := weather.Daily{
			Date:    date.UTC(),
			Day:     day,
			Night:   night,
			UVIndex: fd.Day.UV,
		}
		daily.Sunrise = parseAstro(fd.Date, fd.Astro.Sunrise, zone)
		daily.Sunset = parseAstro(fd.Date, fd.Astro.Sunset, zone)
		if !daily.Sunrise.IsZero() && daily.Sunset.After(daily.Sunrise) {
			daily.HoursOfSun = daily.Sunset.Sub(daily.Sunrise).Hours()
		}
		w.Daily = append(w.Daily, daily)

		for _, h := range fd.Hour {
			w.Hourly = append(w.Hourly, weather.Hourly{
				Time:                     time.Unix(h.TimeEpoch, 0).UTC(),
				Daylight:                 h.IsDay == 1,
				WeatherText:              h.Condition.Text,
				Condition:                mapWeatherAPICondition(h.Condition.Text),
				TemperatureC:             h.TempC,
				PrecipitationMm:          h.PrecipMm,
				PrecipitationProbability: h.ChanceOfRain,
				Wind:                     weather.Wind{Direction: h.WindDir, Degree: h.WindDegree, SpeedKph: h.WindKph, Level: windLevel(h.WindKph)},
				UVIndex:                  h.UV,
			})
		}
	}

	for _, a := range payload.Alerts.Alert {
		issued, err := time.Parse(time.RFC3339, a.Effective)
		if err != nil {
			issued = publish
		}
		w.Alerts = append(w.Alerts, weather.Alert{
			// WeatherAPI alerts carry no ID; derive a stable one so reruns compare equal.
			ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(a.Headline+"|"+a.Effective)).String(),
			Time:        issued.UTC(),
			Description: a.Headline,
			Content:     strings.TrimSpace(a.Description + "\n" + a.Instruction),
			Type:        a.Event,
			Priority:    severityPriority(a.Severity),
		})
	}

	return w, nil
}

type weatherAPIPlace struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (p *WeatherAPIProvider) search(ctx context.Context, q string, tz string) ([]weather.Location, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("weatherapi: %w", errNoAPIKey)
	}
	ctx, done := p.requests.Begin(ctx)
	defer done()

	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", q)

	var places []weatherAPIPlace
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"/search.json?"+values.Encode(), &places); err != nil {
		return nil, err
	}

	locs := make([]weather.Location, 0, len(places))
	for _, pl := range places {
		locs = append(locs, weather.Location{
			CityID:    strconv.FormatInt(pl.ID, 10),
			Latitude:  pl.Lat,
			Longitude: pl.Lon,
			TimeZone:  tz,
			Country:   pl.Country,
			Province:  pl.Region,
			City:      pl.Name,
			Source:    weather.SourceWeatherAPI,
			China:     pl.Country == "China",
		})
	}
	return locs, nil
}

// RequestLocation uses the search endpoint with a "lat,lon" query, which
// returns the nearest known places first.
func (p *WeatherAPIProvider) RequestLocation(ctx context.Context, loc weather.Location) ([]weather.Location, error) {
	return p.search(ctx, fmt.Sprintf("%s,%s", formatCoord(loc.Latitude), formatCoord(loc.Longitude)), loc.TimeZone)
}

func (p *WeatherAPIProvider) QueryLocation(ctx context.Context, query string) ([]weather.Location, error) {
	return p.search(ctx, query, "")
}

func parseAstro(date, clock string, zone *time.Location) time.Time {
	if clock == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02 03:04 PM", date+" "+clock, zone)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func severityPriority(severity string) int {
	switch strings.ToLower(severity) {
	case "extreme":
		return 1
	case "severe":
		return 2
	case "moderate":
		return 3
	case "minor":
		return 4
	default:
		return 5
	}
}

func mapWeatherAPICondition(text string) weather.Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return weather.ConditionUnknown
	case common.HasAny(t, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAny(t, "sleet", "freezing", "ice pellets"):
		return weather.ConditionSleet
	case common.HasAny(t, "snow", "blizzard"):
		return weather.ConditionSnow
	case common.HasAny(t, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAny(t, "fog"):
		return weather.ConditionFog
	case common.HasAny(t, "mist"):
		return weather.ConditionMist
	case common.HasAny(t, "partly"):
		return weather.ConditionPartlyCloudy
	case common.HasAny(t, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAny(t, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
