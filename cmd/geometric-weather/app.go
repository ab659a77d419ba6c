package main

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/citylist"
	"github.com/i474232898/geometric-weather/internal/config"
	"github.com/i474232898/geometric-weather/internal/db"
	"github.com/i474232898/geometric-weather/internal/location"
	"github.com/i474232898/geometric-weather/internal/polling"
	"github.com/i474232898/geometric-weather/internal/scheduler"
	"github.com/i474232898/geometric-weather/internal/store"
	"github.com/i474232898/geometric-weather/internal/weather"
	"github.com/i474232898/geometric-weather/internal/weather/providers"
)

// components holds everything a command may need, wired from configuration.
type components struct {
	store     *db.Helper
	weather   *weather.Helper
	positions *store.PositionStore
	native    *location.NativeService
	locator   *location.Helper
	updater   *polling.Updater
	scheduler *scheduler.Scheduler
	cities    func() ([]weather.ChineseCity, error)
}

func build(cfg *config.AppConfig, logger *zap.Logger) (*components, error) {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	cities, cityCount, err := cityCatalogue(cfg.CityListPath, cfg.ChineseCityCount)
	if err != nil {
		return nil, err
	}

	helper, err := db.Open(db.Options{
		Driver:           cfg.DBDriver,
		DSN:              cfg.DBDSN,
		DefaultSource:    cfg.WeatherSource,
		ChineseCityCount: cityCount,
		Debug:            cfg.DBDebug,
	}, logger)
	if err != nil {
		return nil, err
	}

	// Providers with resilience (backoff + circuit breaker), each under its own request budget.
	var services []weather.Service
	for _, svc := range []weather.Service{
		providers.NewOpenMeteoProvider(httpClient),
		providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey),
		providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey),
	} {
		if cfg.ProviderRPS > 0 {
			svc = providers.NewRateLimited(svc, cfg.ProviderRPS, cfg.ProviderBurst)
		}
		services = append(services, svc)
	}
	set := weather.NewServiceSet(services...)
	weatherHelper := weather.NewHelper(set, helper, logger.Named("weather"))

	positions := store.NewPositionStore(cfg.PositionHistory, cfg.PositionRetained)
	native := location.NewNativeService(positions, location.NativeConfig{
		Device: cfg.DeviceID,
		MaxAge: cfg.PositionMaxAge,
		Wait:   cfg.PositionWait,
	}, logger.Named("native"))

	locator := location.NewHelper(
		location.Options{
			Provider: cfg.LocationProvider,
			Source:   cfg.WeatherSource,
			TimeZone: cfg.TimeZone,
		},
		map[location.Provider]location.Service{
			location.ProviderNative:   native,
			location.ProviderIP:       location.NewIPService(httpClient, cfg.LookupCacheTTL, logger.Named("ip")),
			location.ProviderGeocoder: location.NewGeocoderService(cfg.GeocoderAPIKey, cfg.GeocoderAddress, cfg.LookupCacheTTL, logger.Named("geocoder")),
		},
		set,
		helper,
		&location.HostEnvironment{
			Permissions: cfg.Permissions,
			Level:       cfg.PlatformLevel,
			ProbeAddr:   cfg.NetworkProbeAddr,
		},
		logger.Named("location"),
	)

	updater := polling.NewUpdater(helper, locator, weatherHelper, polling.Options{
		ValidFor: cfg.WeatherValid,
	}, logger.Named("polling"))

	sched := scheduler.New(updater, scheduler.Options{
		Interval:   cfg.PollInterval,
		RetryDelay: cfg.PollRetryDelay,
		Timeout:    cfg.PollTimeout,
	}, logger)

	return &components{
		store:     helper,
		weather:   weatherHelper,
		positions: positions,
		native:    native,
		locator:   locator,
		updater:   updater,
		scheduler: sched,
		cities:    cities,
	}, nil
}

// close cancels outstanding provider requests and releases the database.
func (c *components) close() {
	c.scheduler.Stop()
	c.locator.Cancel()
	if err := c.store.Close(); err != nil {
		logger.Warn("closing database", zap.Error(err))
	}
}

// cityCatalogue loads the configured catalogue once. Without an explicit
// count, the catalogue's own size is the reload threshold.
func cityCatalogue(path string, count int) (func() ([]weather.ChineseCity, error), int, error) {
	list, err := citylist.Loader(path)()
	if err != nil {
		return nil, 0, fmt.Errorf("load city catalogue: %w", err)
	}
	if count <= 0 {
		count = len(list)
	}
	return func() ([]weather.ChineseCity, error) { return list, nil }, count, nil
}
