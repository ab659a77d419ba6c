package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/geometric-weather/internal/location"
	"github.com/i474232898/geometric-weather/internal/weather"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string

	// Outbound provider calls.
	HTTPTimeout   time.Duration
	ProviderRPS   float64
	ProviderBurst int

	// Location pipeline.
	LocationProvider location.Provider
	WeatherSource    weather.Source
	TimeZone         string
	Permissions      []location.Permission
	PlatformLevel    int
	NetworkProbeAddr string
	GeocoderAPIKey   string
	GeocoderAddress  location.Address
	LookupCacheTTL   time.Duration

	// Native position fixes reported by the host.
	DeviceID         string
	PositionMaxAge   time.Duration
	PositionWait     time.Duration
	PositionHistory  int
	PositionRetained time.Duration

	// Storage.
	DBDriver         string
	DBDSN            string
	DBDebug          bool
	CityListPath     string
	ChineseCityCount int // 0 = size of the catalogue in use

	// Polling.
	PollInterval   time.Duration
	PollRetryDelay time.Duration
	PollTimeout    time.Duration
	WeatherValid   time.Duration

	Port     string
	LogLevel string
}

// Load reads configuration from environment with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProviderRPS, err = getenvFloat("PROVIDER_RPS", 2); err != nil {
		return nil, err
	}
	cfg.ProviderBurst = getenvInt("PROVIDER_BURST", 4)

	cfg.LocationProvider = location.ParseProvider(getenvDefault("LOCATION_PROVIDER", string(location.ProviderNative)))
	if cfg.WeatherSource, err = weather.ParseSource(getenvDefault("WEATHER_SOURCE", string(weather.SourceOpenMeteo))); err != nil {
		return nil, fmt.Errorf("invalid WEATHER_SOURCE: %w", err)
	}
	cfg.TimeZone = os.Getenv("TIME_ZONE")
	if cfg.TimeZone != "" {
		if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
			return nil, fmt.Errorf("invalid TIME_ZONE: %w", err)
		}
	}
	cfg.Permissions = location.ParsePermissions(splitList(getenvDefault("LOCATION_PERMISSIONS", "coarse_location,fine_location")))
	cfg.PlatformLevel = getenvInt("PLATFORM_LEVEL", location.PlatformR)
	cfg.NetworkProbeAddr = os.Getenv("NETWORK_PROBE_ADDR")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	cfg.GeocoderAddress = location.Address{
		Street:  os.Getenv("GEOCODER_ADDRESS_STREET"),
		City:    os.Getenv("GEOCODER_ADDRESS_CITY"),
		State:   os.Getenv("GEOCODER_ADDRESS_STATE"),
		Country: os.Getenv("GEOCODER_ADDRESS_COUNTRY"),
	}
	if cfg.LookupCacheTTL, err = getenvDuration("LOCATION_CACHE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	cfg.DeviceID = getenvDefault("DEVICE_ID", "default")
	if cfg.PositionMaxAge, err = getenvDuration("POSITION_MAX_AGE", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PositionWait, err = getenvDuration("POSITION_WAIT", 0); err != nil {
		return nil, err
	}
	cfg.PositionHistory = getenvInt("POSITION_HISTORY", 96)
	if cfg.PositionRetained, err = getenvDuration("POSITION_RETAINED", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.DBDriver = getenvDefault("DB_DRIVER", "sqlite")
	cfg.DBDSN = getenvDefault("DB_DSN", "data/geometric_weather.db")
	cfg.DBDebug = getenvBool("DB_DEBUG", false)
	cfg.CityListPath = os.Getenv("CITY_LIST_PATH")
	cfg.ChineseCityCount = getenvInt("CHINESE_CITY_COUNT", 0)

	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.PollRetryDelay, err = getenvDuration("POLL_RETRY_DELAY", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PollTimeout, err = getenvDuration("POLL_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WeatherValid, err = getenvDuration("WEATHER_VALID_FOR", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
