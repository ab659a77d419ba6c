package weather

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a stored record does not exist.
var ErrNotFound = errors.New("not found")

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown      Condition = "unknown"
	ConditionClear        Condition = "clear"
	ConditionPartlyCloudy Condition = "partly_cloudy"
	ConditionCloudy       Condition = "cloudy"
	ConditionRain         Condition = "rain"
	ConditionSnow         Condition = "snow"
	ConditionSleet        Condition = "sleet"
	ConditionHail         Condition = "hail"
	ConditionStorm        Condition = "storm"
	ConditionMist         Condition = "mist"
	ConditionFog          Condition = "fog"
	ConditionHaze         Condition = "haze"
	ConditionWind         Condition = "wind"
)

// Wet reports whether the condition implies precipitation.
func (c Condition) Wet() bool {
	switch c {
	case ConditionRain, ConditionSnow, ConditionSleet, ConditionHail, ConditionStorm:
		return true
	}
	return false
}

// Source identifies a weather data provider.
type Source string

const (
	SourceOpenMeteo   Source = "openmeteo"
	SourceOpenWeather Source = "openweather"
	SourceWeatherAPI  Source = "weatherapi"
)

// Sources lists every supported source in display order.
var Sources = []Source{SourceOpenMeteo, SourceOpenWeather, SourceWeatherAPI}

// ParseSource maps a configuration value onto a Source.
func ParseSource(s string) (Source, error) {
	for _, src := range Sources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSource, s)
}

// Weather is the full forecast bundle stored per location.
type Weather struct {
	Base      Base       `json:"base"`
	Current   Current    `json:"current"`
	Yesterday *History   `json:"yesterday,omitempty"`
	Daily     []Daily    `json:"daily"`
	Hourly    []Hourly   `json:"hourly"`
	Minutely  []Minutely `json:"minutely,omitempty"`
	Alerts    []Alert    `json:"alerts,omitempty"`
}

// Base carries the provenance of a Weather bundle.
type Base struct {
	CityID      string    `json:"cityId"`
	PublishTime time.Time `json:"publishTime"` // provider observation time, UTC
	UpdateTime  time.Time `json:"updateTime"`  // local fetch time, UTC
}

// IsValid reports whether the bundle was fetched within maxAge of now.
func (w *Weather) IsValid(now time.Time, maxAge time.Duration) bool {
	if w == nil || w.Base.UpdateTime.IsZero() {
		return false
	}
	age := now.Sub(w.Base.UpdateTime)
	return age >= 0 && age < maxAge
}

// Wind describes wind at a point in time. Speed is always km/h.
type Wind struct {
	Direction string  `json:"direction,omitempty"`
	Degree    float64 `json:"degree"`
	SpeedKph  float64 `json:"speedKph"`
	Level     int     `json:"level"`
}

// Current holds present conditions.
type Current struct {
	WeatherText      string    `json:"weatherText"`
	Condition        Condition `json:"condition"`
	TemperatureC     float64   `json:"temperatureC"`
	FeelsLikeC       float64   `json:"feelsLikeC"`
	Wind             Wind      `json:"wind"`
	UVIndex          float64   `json:"uvIndex"`
	RelativeHumidity float64   `json:"relativeHumidity"`
	PressureHpa      float64   `json:"pressureHpa"`
	VisibilityKm     float64   `json:"visibilityKm"`
	DewPointC        float64   `json:"dewPointC"`
	CloudCover       int       `json:"cloudCover"`
	AirQualityIndex  *int      `json:"airQualityIndex,omitempty"`
	DailySummary     string    `json:"dailySummary,omitempty"`
	HourlySummary    string    `json:"hourlySummary,omitempty"`
}

// HalfDay is the daytime or nighttime part of a Daily forecast.
type HalfDay struct {
	WeatherText              string    `json:"weatherText"`
	Condition                Condition `json:"condition"`
	TemperatureC             float64   `json:"temperatureC"`
	PrecipitationMm          float64   `json:"precipitationMm"`
	PrecipitationProbability float64   `json:"precipitationProbability"` // percent
	Wind                     Wind      `json:"wind"`
}

// Daily is one forecast day.
type Daily struct {
	Date       time.Time `json:"date"`
	Day        HalfDay   `json:"day"`
	Night      HalfDay   `json:"night"`
	Sunrise    time.Time `json:"sunrise,omitempty"`
	Sunset     time.Time `json:"sunset,omitempty"`
	UVIndex    float64   `json:"uvIndex"`
	HoursOfSun float64   `json:"hoursOfSun"`
}

// Hourly is one forecast hour (or provider slot).
type Hourly struct {
	Time                     time.Time `json:"time"`
	Daylight                 bool      `json:"daylight"`
	WeatherText              string    `json:"weatherText"`
	Condition                Condition `json:"condition"`
	TemperatureC             float64   `json:"temperatureC"`
	PrecipitationMm          float64   `json:"precipitationMm"`
	PrecipitationProbability float64   `json:"precipitationProbability"`
	Wind                     Wind      `json:"wind"`
	UVIndex                  float64   `json:"uvIndex"`
}

// Minutely is a short-range precipitation nowcast slot.
type Minutely struct {
	Time            time.Time `json:"time"`
	Daylight        bool      `json:"daylight"`
	WeatherText     string    `json:"weatherText"`
	Condition       Condition `json:"condition"`
	MinuteInterval  int       `json:"minuteInterval"`
	PrecipitationMm float64   `json:"precipitationMm"`
	CloudCover      int       `json:"cloudCover"`
}

// Alert is a severe weather warning issued for a location.
type Alert struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Type        string    `json:"type"`
	Priority    int       `json:"priority"`
	Color       string    `json:"color,omitempty"`
}

// History is the daytime/nighttime temperature recorded for one day.
type History struct {
	CityID                string    `json:"cityId"`
	Source                Source    `json:"source"`
	Date                  time.Time `json:"date"`
	DaytimeTemperatureC   float64   `json:"daytimeTemperatureC"`
	NighttimeTemperatureC float64   `json:"nighttimeTemperatureC"`
}

// ChineseCity is one entry of the bundled China administrative-region catalogue.
type ChineseCity struct {
	CityID    string  `json:"cityId"`
	Province  string  `json:"province"`
	City      string  `json:"city"`
	District  string  `json:"district"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location converts the catalogue entry into a trackable location.
func (c ChineseCity) Location(source Source) Location {
	return Location{
		CityID:    c.CityID,
		Latitude:  c.Latitude,
		Longitude: c.Longitude,
		TimeZone:  "Asia/Shanghai",
		Country:   "中国",
		Province:  c.Province,
		City:      c.City,
		District:  c.District,
		Source:    source,
		China:     true,
	}
}
