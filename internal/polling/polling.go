// Package polling refreshes the weather of every stored location.
package polling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/weather"
)

// Store is the persistence the updater needs.
type Store interface {
	ReadLocationList(ctx context.Context) ([]weather.Location, error)
	WriteLocationList(ctx context.Context, list []weather.Location) error
	ReadWeather(ctx context.Context, loc weather.Location) (*weather.Weather, error)
}

// Locator resolves the current position.
type Locator interface {
	RequestLocation(ctx context.Context, loc weather.Location, background bool) (weather.Location, error)
}

// Fetcher requests and stores fresh weather.
type Fetcher interface {
	RequestWeather(ctx context.Context, loc weather.Location) (*weather.Weather, error)
}

// Result is the outcome for one location.
type Result struct {
	Location  weather.Location `json:"location"`
	Old       *weather.Weather `json:"-"`
	New       *weather.Weather `json:"-"`
	Succeeded bool             `json:"succeeded"`
	Index     int              `json:"index"`
	Total     int              `json:"total"`

	// Set only for the first location, and only on success.
	NewAlerts     []weather.Alert                `json:"newAlerts,omitempty"`
	Precipitation *weather.PrecipitationForecast `json:"precipitation,omitempty"`

	LocationErr error `json:"-"`
	WeatherErr  error `json:"-"`
}

// Report summarizes one polling pass.
type Report struct {
	Results   []Result           `json:"results"`
	Locations []weather.Location `json:"locations"`
	// Failed is set when the first location could not be updated; the pass should be retried.
	Failed bool `json:"failed"`
}

// Options tunes an Updater.
type Options struct {
	// ValidFor skips locations whose stored weather is younger than this.
	ValidFor time.Duration
	// PrecipitationWindow is how far ahead precipitation is looked for.
	PrecipitationWindow time.Duration
}

// Updater runs polling passes.
type Updater struct {
	store   Store
	locator Locator
	fetcher Fetcher
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// NewUpdater creates an Updater.
func NewUpdater(store Store, locator Locator, fetcher Fetcher, opts Options, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PrecipitationWindow <= 0 {
		opts.PrecipitationWindow = time.Hour
	}
	return &Updater{
		store:   store,
		locator: locator,
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// PollingUpdate updates every stored location in list order and writes the
// list back, with the current position as resolved during the pass.
func (u *Updater) PollingUpdate(ctx context.Context) (Report, error) {
	list, err := u.store.ReadLocationList(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read location list: %w", err)
	}

	report := Report{
		Results:   make([]Result, 0, len(list)),
		Locations: make([]weather.Location, len(list)),
	}
	copy(report.Locations, list)

	for i, loc := range list {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := u.update(ctx, loc, i, len(list))
		report.Locations[i] = res.Location
		report.Results = append(report.Results, res)

		if i == 0 && !res.Succeeded {
			report.Failed = true
		}
	}

	if err := u.store.WriteLocationList(ctx, report.Locations); err != nil {
		return report, fmt.Errorf("write location list: %w", err)
	}

	u.logger.Info("polling update completed",
		zap.Int("locations", len(list)),
		zap.Bool("failed", report.Failed))
	return report, nil
}

func (u *Updater) update(ctx context.Context, loc weather.Location, index, total int) Result {
	res := Result{Location: loc, Index: index, Total: total}

	old, err := u.store.ReadWeather(ctx, loc)
	switch {
	case err == nil:
		res.Old = old
	case errors.Is(err, weather.ErrNotFound):
	default:
		u.logger.Debug("read stored weather failed", zap.Error(err))
	}

	if old.IsValid(u.now(), u.opts.ValidFor) {
		res.New = old
		res.Succeeded = true
		return res
	}

	if loc.CurrentPosition {
		resolved, err := u.locator.RequestLocation(ctx, loc, true)
		res.Location = resolved
		res.LocationErr = err
		if err != nil {
			u.logger.Warn("current position not updated",
				zap.String("location", resolved.FormattedID()),
				zap.Error(err))
		}
		if !resolved.IsUsable() {
			return res
		}
		if resolved.CityID != loc.CityID {
			res.Old = nil
			if prev, err := u.store.ReadWeather(ctx, resolved); err == nil {
				res.Old = prev
			}
		}
	}

	fresh, err := u.fetcher.RequestWeather(ctx, res.Location)
	if err != nil {
		res.WeatherErr = err
		u.logger.Warn("weather update failed",
			zap.String("location", res.Location.FormattedID()),
			zap.Int("index", index),
			zap.Error(err))
		return res
	}
	res.New = fresh
	res.Succeeded = true

	if index == 0 {
		res.NewAlerts = weather.NewAlerts(res.Old, fresh)
		if p, ok := weather.PrecipitationWithin(fresh, u.now(), u.opts.PrecipitationWindow); ok {
			res.Precipitation = &p
		}
	}
	return res
}
