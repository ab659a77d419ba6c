package db

import (
	"time"

	"github.com/i474232898/geometric-weather/internal/weather"
)

// LocationEntity is a stored location keyed by its formatted ID.
type LocationEntity struct {
	FormattedID string `gorm:"primaryKey;size:128"`
	SortOrder   int    `gorm:"index"`

	CityID    string `gorm:"size:64"`
	Latitude  float64
	Longitude float64
	TimeZone  string `gorm:"size:64"`

	Country  string
	Province string
	City     string
	District string

	Source           string `gorm:"size:32"`
	CurrentPosition  bool
	ResidentPosition bool
	China            bool
}

func (LocationEntity) TableName() string { return "locations" }

// WeatherEntity holds the base and current conditions of one weather bundle.
type WeatherEntity struct {
	ID          uint   `gorm:"primaryKey"`
	CityID      string `gorm:"size:64;index:idx_weather_city_source"`
	Source      string `gorm:"size:32;index:idx_weather_city_source"`
	PublishTime time.Time
	UpdateTime  time.Time

	WeatherText      string
	Condition        string `gorm:"size:32"`
	TemperatureC     float64
	FeelsLikeC       float64
	Wind             weather.Wind `gorm:"embedded;embeddedPrefix:wind_"`
	UVIndex          float64
	RelativeHumidity float64
	PressureHpa      float64
	VisibilityKm     float64
	DewPointC        float64
	CloudCover       int
	AirQualityIndex  *int
	DailySummary     string
	HourlySummary    string
}

func (WeatherEntity) TableName() string { return "weather" }

// HalfDayColumns is embedded twice in DailyEntity with day_ / night_ prefixes.
type HalfDayColumns struct {
	WeatherText              string
	Condition                string `gorm:"size:32"`
	TemperatureC             float64
	PrecipitationMm          float64
	PrecipitationProbability float64
	Wind                     weather.Wind `gorm:"embedded;embeddedPrefix:wind_"`
}

type DailyEntity struct {
	ID         uint   `gorm:"primaryKey"`
	CityID     string `gorm:"size:64;index:idx_daily_city_source"`
	Source     string `gorm:"size:32;index:idx_daily_city_source"`
	Date       time.Time
	Day        HalfDayColumns `gorm:"embedded;embeddedPrefix:day_"`
	Night      HalfDayColumns `gorm:"embedded;embeddedPrefix:night_"`
	Sunrise    time.Time
	Sunset     time.Time
	UVIndex    float64
	HoursOfSun float64
}

func (DailyEntity) TableName() string { return "daily" }

type HourlyEntity struct {
	ID                       uint   `gorm:"primaryKey"`
	CityID                   string `gorm:"size:64;index:idx_hourly_city_source"`
	Source                   string `gorm:"size:32;index:idx_hourly_city_source"`
	Time                     time.Time
	Daylight                 bool
	WeatherText              string
	Condition                string `gorm:"size:32"`
	TemperatureC             float64
	PrecipitationMm          float64
	PrecipitationProbability float64
	Wind                     weather.Wind `gorm:"embedded;embeddedPrefix:wind_"`
	UVIndex                  float64
}

func (HourlyEntity) TableName() string { return "hourly" }

type MinutelyEntity struct {
	ID              uint   `gorm:"primaryKey"`
	CityID          string `gorm:"size:64;index:idx_minutely_city_source"`
	Source          string `gorm:"size:32;index:idx_minutely_city_source"`
	Time            time.Time
	Daylight        bool
	WeatherText     string
	Condition       string `gorm:"size:32"`
	MinuteInterval  int
	PrecipitationMm float64
	CloudCover      int
}

func (MinutelyEntity) TableName() string { return "minutely" }

type AlertEntity struct {
	ID          uint   `gorm:"primaryKey"`
	CityID      string `gorm:"size:64;index:idx_alert_city_source"`
	Source      string `gorm:"size:32;index:idx_alert_city_source"`
	AlertID     string `gorm:"size:64"`
	Time        time.Time
	Description string
	Content     string
	Type        string
	Priority    int
	Color       string `gorm:"size:16"`
}

func (AlertEntity) TableName() string { return "alerts" }

type HistoryEntity struct {
	ID                    uint   `gorm:"primaryKey"`
	CityID                string `gorm:"size:64;index:idx_history_city_source_date"`
	Source                string `gorm:"size:32;index:idx_history_city_source_date"`
	Date                  time.Time `gorm:"index:idx_history_city_source_date"`
	DaytimeTemperatureC   float64
	NighttimeTemperatureC float64
}

func (HistoryEntity) TableName() string { return "history" }

type ChineseCityEntity struct {
	ID        uint   `gorm:"primaryKey"`
	CityID    string `gorm:"size:32;index"`
	Province  string `gorm:"index:idx_chinese_city_region"`
	City      string `gorm:"index:idx_chinese_city_region"`
	District  string `gorm:"index:idx_chinese_city_region"`
	Latitude  float64
	Longitude float64
}

func (ChineseCityEntity) TableName() string { return "chinese_cities" }

func allEntities() []any {
	return []any{
		&LocationEntity{},
		&WeatherEntity{},
		&DailyEntity{},
		&HourlyEntity{},
		&MinutelyEntity{},
		&AlertEntity{},
		&HistoryEntity{},
		&ChineseCityEntity{},
	}
}
