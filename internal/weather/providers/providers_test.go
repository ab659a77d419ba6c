package providers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/geometric-weather/internal/weather"
)

var fastBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func activate(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func paris() weather.Location {
	return weather.Location{
		CityID:    "paris",
		Latitude:  48.8566,
		Longitude: 2.3522,
		TimeZone:  "Europe/Paris",
		Source:    weather.SourceOpenMeteo,
	}
}

const openMeteoForecastBody = `{
  "timezone": "Europe/Paris",
  "current": {
    "time": 1717236000, "temperature_2m": 18.4, "apparent_temperature": 17.9,
    "relative_humidity_2m": 64, "dew_point_2m": 11.2, "weather_code": 61,
    "wind_speed_10m": 14.4, "wind_direction_10m": 225, "pressure_msl": 1012.3,
    "cloud_cover": 80, "visibility": 24000, "uv_index": 3.1, "is_day": 1
  },
  "hourly": {
    "time": [1717236000, 1717239600],
    "temperature_2m": [18.4, 19.0],
    "precipitation": [0.4, 0],
    "precipitation_probability": [70, 20],
    "weather_code": [61, 2],
    "wind_speed_10m": [14.4, 10],
    "wind_direction_10m": [225, 200],
    "uv_index": [3.1, 3.5],
    "is_day": [1, 1]
  },
  "daily": {
    "time": [1717192800],
    "weather_code": [63],
    "temperature_2m_max": [21.5],
    "temperature_2m_min": [12.1],
    "precipitation_sum": [4.2],
    "precipitation_probability_max": [80],
    "sunrise": [1717213500],
    "sunset": [1717270800],
    "uv_index_max": [5.2],
    "wind_speed_10m_max": [25],
    "wind_direction_10m_dominant": [230],
    "sunshine_duration": [18000]
  },
  "minutely_15": {
    "time": [1717236000, 1717236900],
    "precipitation": [0.1, 0],
    "weather_code": [61, 3],
    "is_day": [1, 1]
  }
}`

func TestOpenMeteoRequestWeather(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, openMeteoForecastURL,
		httpmock.NewStringResponder(200, openMeteoForecastBody))

	p := NewOpenMeteoProvider(&http.Client{})
	w, err := p.RequestWeather(context.Background(), paris())
	require.NoError(t, err)

	assert.Equal(t, "paris", w.Base.CityID)
	assert.True(t, w.Base.PublishTime.Equal(time.Unix(1717236000, 0)))
	assert.Equal(t, weather.ConditionRain, w.Current.Condition)
	assert.Equal(t, 18.4, w.Current.TemperatureC)
	assert.Equal(t, 24.0, w.Current.VisibilityKm)
	assert.Equal(t, "SW", w.Current.Wind.Direction)
	assert.Equal(t, 3, w.Current.Wind.Level)

	require.Len(t, w.Hourly, 2)
	assert.Equal(t, weather.ConditionPartlyCloudy, w.Hourly[1].Condition)
	assert.Equal(t, 70.0, w.Hourly[0].PrecipitationProbability)

	require.Len(t, w.Daily, 1)
	assert.Equal(t, 21.5, w.Daily[0].Day.TemperatureC)
	assert.Equal(t, 12.1, w.Daily[0].Night.TemperatureC)
	assert.Equal(t, 5.0, w.Daily[0].HoursOfSun)
	assert.False(t, w.Daily[0].Sunrise.IsZero())

	require.Len(t, w.Minutely, 2)
	assert.Equal(t, 15, w.Minutely[0].MinuteInterval)
	assert.Contains(t, w.Current.DailySummary, "22°C")
}

func TestOpenMeteoRequestLocationUsesCoordinates(t *testing.T) {
	p := NewOpenMeteoProvider(&http.Client{})
	locs, err := p.RequestLocation(context.Background(), paris())
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "48.8566,2.3522", locs[0].CityID)
	assert.Equal(t, weather.SourceOpenMeteo, locs[0].Source)
}

func TestOpenMeteoQueryLocation(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, openMeteoGeocodingURL,
		httpmock.NewStringResponder(200, `{"results":[
			{"id":1816670,"name":"Beijing","latitude":39.9075,"longitude":116.39723,
			 "timezone":"Asia/Shanghai","country":"China","country_code":"CN","admin1":"Beijing"}
		]}`))

	p := NewOpenMeteoProvider(&http.Client{})
	locs, err := p.QueryLocation(context.Background(), "Beijing")
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "1816670", locs[0].CityID)
	assert.True(t, locs[0].China)
	assert.Equal(t, "Asia/Shanghai", locs[0].TimeZone)
}

func TestRetryOnServerError(t *testing.T) {
	activate(t)
	calls := 0
	httpmock.RegisterResponder(http.MethodGet, openMeteoGeocodingURL,
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 2 {
				return httpmock.NewStringResponse(503, "busy"), nil
			}
			return httpmock.NewStringResponse(200, `{"results":[]}`), nil
		})

	p := NewOpenMeteoProvider(&http.Client{})
	p.httpCfg.Backoff = fastBackoff

	locs, err := p.QueryLocation(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, locs)
	assert.Equal(t, 2, calls)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, openMeteoGeocodingURL,
		httpmock.NewStringResponder(400, `{"error":true}`))

	p := NewOpenMeteoProvider(&http.Client{})
	p.httpCfg.Backoff = fastBackoff

	_, err := p.QueryLocation(context.Background(), "x")
	assert.ErrorIs(t, err, errUnexpected)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRetriesExhausted(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, openMeteoGeocodingURL,
		httpmock.NewStringResponder(429, "slow down"))

	p := NewOpenMeteoProvider(&http.Client{})
	p.httpCfg.Backoff = fastBackoff

	_, err := p.QueryLocation(context.Background(), "x")
	assert.ErrorIs(t, err, errRateLimited)
	assert.Equal(t, fastBackoff.MaxRetries+1, httpmock.GetTotalCallCount())
}

func TestNoHTTPClient(t *testing.T) {
	p := NewOpenMeteoProvider(nil)
	_, err := p.QueryLocation(context.Background(), "x")
	assert.ErrorIs(t, err, errNoHTTPClient)
}

func TestCancelAbortsInflight(t *testing.T) {
	activate(t)
	started := make(chan struct{})
	httpmock.RegisterResponder(http.MethodGet, openMeteoGeocodingURL,
		func(req *http.Request) (*http.Response, error) {
			close(started)
			<-req.Context().Done()
			return nil, req.Context().Err()
		})

	p := NewOpenMeteoProvider(&http.Client{})
	p.httpCfg.Backoff = BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond}

	errs := make(chan error, 1)
	go func() {
		_, err := p.QueryLocation(context.Background(), "x")
		errs <- err
	}()

	<-started
	p.Cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("request was not canceled")
	}
}

func TestOpenWeatherRequestWeather(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, openWeatherBaseURL+"/data/2.5/weather",
		httpmock.NewStringResponder(200, `{
			"dt": 1717236000,
			"main": {"temp": 16.2, "feels_like": 15.8, "humidity": 71, "pressure": 1009},
			"visibility": 10000,
			"wind": {"speed": 5, "deg": 90},
			"clouds": {"all": 40},
			"weather": [{"id": 802, "main": "Clouds", "description": "scattered clouds"}]
		}`))
	httpmock.RegisterResponder(http.MethodGet, openWeatherBaseURL+"/data/2.5/forecast",
		httpmock.NewStringResponder(200, `{
			"list": [
				{"dt": 1717236000, "main": {"temp": 16}, "weather": [{"id": 500, "main": "Rain", "description": "light rain"}],
				 "wind": {"speed": 4, "deg": 80}, "pop": 0.6, "rain": {"3h": 1.5}, "sys": {"pod": "d"}},
				{"dt": 1717246800, "main": {"temp": 19}, "weather": [{"id": 800, "main": "Clear", "description": "clear sky"}],
				 "wind": {"speed": 3, "deg": 70}, "pop": 0, "sys": {"pod": "d"}}
			],
			"city": {"sunrise": 1717213500, "sunset": 1717270800}
		}`))

	p := NewOpenWeatherProvider(&http.Client{}, "key")
	loc := paris()
	loc.Source = weather.SourceOpenWeather
	w, err := p.RequestWeather(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, weather.ConditionPartlyCloudy, w.Current.Condition)
	assert.Equal(t, "scattered clouds", w.Current.WeatherText)
	assert.InDelta(t, 18.0, w.Current.Wind.SpeedKph, 1e-9)
	assert.Equal(t, "E", w.Current.Wind.Direction)

	require.Len(t, w.Hourly, 2)
	assert.Equal(t, 60.0, w.Hourly[0].PrecipitationProbability)
	assert.Equal(t, 1.5, w.Hourly[0].PrecipitationMm)

	require.Len(t, w.Daily, 1)
	assert.Equal(t, 19.0, w.Daily[0].Day.TemperatureC)
	assert.False(t, w.Daily[0].Sunrise.IsZero())
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestOpenWeatherDaysFollowCityOffset(t *testing.T) {
	// 23:00 and 02:00 local time in a UTC+08:00 city, one UTC day apart only locally.
	const forecast = `{
		"list": [
			{"dt": 1717254000, "main": {"temp": 21}, "sys": {"pod": "n"}},
			{"dt": 1717264800, "main": {"temp": 18}, "sys": {"pod": "n"}}
		],
		"city": {"sunrise": 1717189800, "sunset": 1717241400, "timezone": 28800}
	}`

	tests := []struct {
		name     string
		timeZone string
	}{
		{name: "unknown zone", timeZone: ""},
		{name: "host zone disagrees", timeZone: "Europe/Paris"},
		{name: "matching zone", timeZone: "Asia/Shanghai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activate(t)
			httpmock.RegisterResponder(http.MethodGet, openWeatherBaseURL+"/data/2.5/weather",
				httpmock.NewStringResponder(200, `{"dt": 1717254000, "main": {"temp": 21}}`))
			httpmock.RegisterResponder(http.MethodGet, openWeatherBaseURL+"/data/2.5/forecast",
				httpmock.NewStringResponder(200, forecast))

			p := NewOpenWeatherProvider(&http.Client{}, "key")
			loc := weather.Location{
				CityID:    "39.9,116.4",
				Latitude:  39.9,
				Longitude: 116.4,
				TimeZone:  tt.timeZone,
				Source:    weather.SourceOpenWeather,
			}
			w, err := p.RequestWeather(context.Background(), loc)
			require.NoError(t, err)

			require.Len(t, w.Daily, 2)
			local := time.FixedZone("", 8*3600)
			assert.True(t, w.Daily[0].Date.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, local)))
			assert.True(t, w.Daily[1].Date.Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, local)))
		})
	}
}

func TestForecastZone(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	offset := 8 * 3600

	z := forecastZone(weather.Location{TimeZone: "Asia/Shanghai"}, &offset, at)
	assert.Equal(t, "Asia/Shanghai", z.String())

	z = forecastZone(weather.Location{TimeZone: "Europe/Paris"}, &offset, at)
	_, off := at.In(z).Zone()
	assert.Equal(t, offset, off)

	z = forecastZone(weather.Location{TimeZone: "Europe/Paris"}, nil, at)
	assert.Equal(t, "Europe/Paris", z.String())
}

func TestOpenWeatherDaysWithoutCityOffset(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, openWeatherBaseURL+"/data/2.5/weather",
		httpmock.NewStringResponder(200, `{"dt": 1717254000, "main": {"temp": 21}}`))
	httpmock.RegisterResponder(http.MethodGet, openWeatherBaseURL+"/data/2.5/forecast",
		httpmock.NewStringResponder(200, `{"list": [
			{"dt": 1717254000, "main": {"temp": 21}},
			{"dt": 1717264800, "main": {"temp": 18}}
		]}`))

	p := NewOpenWeatherProvider(&http.Client{}, "key")
	w, err := p.RequestWeather(context.Background(), weather.Location{CityID: "x", Source: weather.SourceOpenWeather})
	require.NoError(t, err)
	require.Len(t, w.Daily, 1, "falls back to the location zone")
}

func TestOpenWeatherNeedsKey(t *testing.T) {
	p := NewOpenWeatherProvider(&http.Client{}, "")
	_, err := p.RequestWeather(context.Background(), paris())
	assert.ErrorIs(t, err, errNoAPIKey)
	_, err = p.QueryLocation(context.Background(), "x")
	assert.ErrorIs(t, err, errNoAPIKey)
}

func TestOpenWeatherReverse(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, openWeatherBaseURL+"/geo/1.0/reverse",
		httpmock.NewStringResponder(200, `[{"name":"Paris","lat":48.8589,"lon":2.32,"country":"FR","state":"Ile-de-France"}]`))

	p := NewOpenWeatherProvider(&http.Client{}, "key")
	locs, err := p.RequestLocation(context.Background(), paris())
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Paris", locs[0].City)
	assert.Equal(t, "Europe/Paris", locs[0].TimeZone, "time zone carried from the request")
	assert.Equal(t, weather.SourceOpenWeather, locs[0].Source)
}

func TestWeatherAPIRequestWeather(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, weatherAPIBaseURL+"/forecast.json",
		httpmock.NewStringResponder(200, `{
			"location": {"tz_id": "Europe/Paris"},
			"current": {
				"last_updated_epoch": 1717236000, "temp_c": 17, "feelslike_c": 16,
				"dewpoint_c": 9, "humidity": 60, "wind_kph": 20, "wind_degree": 270, "wind_dir": "W",
				"pressure_mb": 1011, "cloud": 50, "vis_km": 10, "uv": 4,
				"condition": {"text": "Patchy rain nearby", "code": 1063},
				"air_quality": {"us-epa-index": 2}
			},
			"forecast": {"forecastday": [{
				"date": "2024-06-01",
				"day": {"maxtemp_c": 22, "mintemp_c": 11, "totalprecip_mm": 3.1,
				        "daily_chance_of_rain": 85, "maxwind_kph": 28, "uv": 5,
				        "condition": {"text": "Moderate rain", "code": 1189}},
				"astro": {"sunrise": "05:48 AM", "sunset": "09:47 PM"},
				"hour": [{"time_epoch": 1717192800, "temp_c": 12, "is_day": 0, "wind_kph": 8,
				          "wind_degree": 200, "wind_dir": "SSW", "precip_mm": 0, "chance_of_rain": 10,
				          "uv": 0, "condition": {"text": "Clear", "code": 1000}}]
			}]},
			"alerts": {"alert": [{
				"headline": "Thunderstorm warning", "severity": "Severe", "event": "Thunderstorms",
				"effective": "2024-06-01T12:00:00+02:00", "desc": "Strong storms.", "instruction": "Stay inside."
			}]}
		}`))

	p := NewWeatherAPIProvider(&http.Client{}, "key")
	loc := paris()
	loc.Source = weather.SourceWeatherAPI
	w, err := p.RequestWeather(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, weather.ConditionRain, w.Current.Condition)
	require.NotNil(t, w.Current.AirQualityIndex)
	assert.Equal(t, 2, *w.Current.AirQualityIndex)

	require.Len(t, w.Daily, 1)
	zone, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	assert.True(t, w.Daily[0].Date.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, zone)))
	assert.True(t, w.Daily[0].Sunrise.Equal(time.Date(2024, 6, 1, 5, 48, 0, 0, zone)))
	assert.InDelta(t, 15.98, w.Daily[0].HoursOfSun, 0.01)

	require.Len(t, w.Hourly, 1)
	assert.Equal(t, weather.ConditionClear, w.Hourly[0].Condition)

	require.Len(t, w.Alerts, 1)
	a := w.Alerts[0]
	assert.Equal(t, 2, a.Priority)
	assert.Equal(t, "Strong storms.\nStay inside.", a.Content)
	assert.True(t, a.Time.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)))

	again, err := p.RequestWeather(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.Alerts[0].ID, "alert IDs are stable across fetches")
}

func TestWeatherAPISearch(t *testing.T) {
	activate(t)
	httpmock.RegisterResponder(http.MethodGet, weatherAPIBaseURL+"/search.json",
		httpmock.NewStringResponder(200, `[{"id":2801268,"name":"London","region":"City of London, Greater London","country":"United Kingdom","lat":51.52,"lon":-0.11}]`))

	p := NewWeatherAPIProvider(&http.Client{}, "key")
	locs, err := p.QueryLocation(context.Background(), "london")
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "2801268", locs[0].CityID)
	assert.Equal(t, weather.SourceWeatherAPI, locs[0].Source)
	assert.False(t, locs[0].China)
}

func TestConditionMapping(t *testing.T) {
	tests := []struct {
		text string
		want weather.Condition
	}{
		{"Thundery outbreaks possible", weather.ConditionStorm},
		{"Light sleet", weather.ConditionSleet},
		{"Blizzard", weather.ConditionSnow},
		{"Light drizzle", weather.ConditionRain},
		{"Freezing fog", weather.ConditionSleet},
		{"Fog", weather.ConditionFog},
		{"Mist", weather.ConditionMist},
		{"Partly cloudy", weather.ConditionPartlyCloudy},
		{"Overcast", weather.ConditionCloudy},
		{"Sunny", weather.ConditionClear},
		{"", weather.ConditionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, mapWeatherAPICondition(tt.text))
		})
	}

	assert.Equal(t, weather.ConditionHail, mapOpenMeteoCondition(99))
	assert.Equal(t, weather.ConditionFog, mapOpenMeteoCondition(45))
	assert.Equal(t, weather.ConditionSleet, mapOpenMeteoCondition(66))
	assert.Equal(t, weather.ConditionSleet, mapOpenWeatherCondition([]openWeatherCondition{{ID: 511, Main: "Rain"}}))
	assert.Equal(t, weather.ConditionHaze, mapOpenWeatherCondition([]openWeatherCondition{{ID: 721, Main: "Haze"}}))
}

func TestWindHelpers(t *testing.T) {
	assert.Equal(t, "N", windDirection(0))
	assert.Equal(t, "N", windDirection(359))
	assert.Equal(t, "S", windDirection(180))
	assert.Equal(t, "NW", windDirection(-45))

	assert.Equal(t, 0, windLevel(0.5))
	assert.Equal(t, 4, windLevel(25))
	assert.Equal(t, 12, windLevel(150))
}

func TestRateLimitedHonorsContext(t *testing.T) {
	p := NewRateLimited(NewOpenMeteoProvider(&http.Client{}), 0.001, 1)

	_, err := p.RequestLocation(context.Background(), paris())
	require.NoError(t, err, "first call uses the burst")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.RequestLocation(ctx, paris())
	assert.Error(t, err)
}
