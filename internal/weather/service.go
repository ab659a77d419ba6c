package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrUnusableLocation is returned when weather is requested for an unresolved location.
var ErrUnusableLocation = errors.New("location is not usable")

// Helper fetches weather from the location's source and persists it.
type Helper struct {
	services *ServiceSet
	store    Store
	logger   *zap.Logger
	now      func() time.Time
}

// NewHelper creates a new Helper.
func NewHelper(services *ServiceSet, store Store, logger *zap.Logger) *Helper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Helper{
		services: services,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Services exposes the underlying service set.
func (h *Helper) Services() *ServiceSet {
	return h.services
}

// RequestWeather fetches weather for loc, fills in yesterday from stored
// history when the source has none, and writes the bundle.
func (h *Helper) RequestWeather(ctx context.Context, loc Location) (*Weather, error) {
	if !loc.IsUsable() {
		return nil, fmt.Errorf("%w: %s", ErrUnusableLocation, loc.FormattedID())
	}

	svc, err := h.services.Get(loc.Source)
	if err != nil {
		return nil, err
	}

	w, err := svc.RequestWeather(ctx, loc)
	if err != nil {
		h.logger.Warn("weather request failed",
			zap.String("location", loc.FormattedID()),
			zap.String("source", string(loc.Source)),
			zap.Error(err))
		return nil, fmt.Errorf("request weather from %s: %w", loc.Source, err)
	}

	if w.Base.UpdateTime.IsZero() {
		w.Base.UpdateTime = h.now().UTC()
	}
	if w.Base.PublishTime.IsZero() {
		w.Base.PublishTime = w.Base.UpdateTime
	}
	w.Base.CityID = loc.CityID

	if w.Yesterday == nil {
		hist, err := h.store.ReadHistory(ctx, loc, w.Base.PublishTime)
		switch {
		case err == nil:
			w.Yesterday = hist
		case errors.Is(err, ErrNotFound):
		default:
			h.logger.Debug("read yesterday history failed",
				zap.String("location", loc.FormattedID()), zap.Error(err))
		}
	}

	if err := h.store.WriteWeather(ctx, loc, w); err != nil {
		return nil, fmt.Errorf("write weather: %w", err)
	}

	h.logger.Debug("weather updated",
		zap.String("location", loc.FormattedID()),
		zap.Int("daily", len(w.Daily)),
		zap.Int("hourly", len(w.Hourly)),
		zap.Int("alerts", len(w.Alerts)))
	return w, nil
}

// QueryLocation searches the given source for locations matching query.
func (h *Helper) QueryLocation(ctx context.Context, source Source, query string) ([]Location, error) {
	svc, err := h.services.Get(source)
	if err != nil {
		return nil, err
	}
	locs, err := svc.QueryLocation(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s locations: %w", source, err)
	}
	return locs, nil
}

// Cancel aborts in-flight requests on every source.
func (h *Helper) Cancel() {
	for _, s := range h.services.All() {
		s.Cancel()
	}
}
