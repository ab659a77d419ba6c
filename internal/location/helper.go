package location

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/weather"
)

// Writer persists a resolved location.
type Writer interface {
	WriteLocation(ctx context.Context, loc weather.Location) error
}

// Options selects the providers a Helper uses.
type Options struct {
	Provider Provider
	Source   weather.Source
	// TimeZone is given to positions before the weather source resolves them.
	TimeZone string
}

// Helper turns a device position into a stored weather location.
type Helper struct {
	services map[Provider]Service
	weather  *weather.ServiceSet
	store    Writer
	env      Environment
	opts     Options
	logger   *zap.Logger
}

// NewHelper creates a Helper. services must contain at least the native provider.
func NewHelper(
	opts Options,
	services map[Provider]Service,
	weatherServices *weather.ServiceSet,
	store Writer,
	env Environment,
	logger *zap.Logger,
) *Helper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TimeZone == "" {
		opts.TimeZone = weather.LocalZoneName()
	}
	return &Helper{
		services: services,
		weather:  weatherServices,
		store:    store,
		env:      env,
		opts:     opts,
		logger:   logger,
	}
}

func (h *Helper) service() (Service, error) {
	if s, ok := h.services[h.opts.Provider]; ok {
		return s, nil
	}
	if s, ok := h.services[ProviderNative]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no location service for provider %q", h.opts.Provider)
}

// RequestLocation resolves the current position of loc. On success the
// resolved location is stored and returned with a nil error. On failure the
// error is returned together with loc when it is still usable, or with the
// default location (also stored) when it is not.
func (h *Helper) RequestLocation(ctx context.Context, loc weather.Location, background bool) (weather.Location, error) {
	svc, err := h.service()
	if err != nil {
		return h.failed(ctx, loc, err)
	}

	if len(svc.Permissions()) > 0 {
		if !h.env.NetworkAvailable(ctx) {
			return h.failed(ctx, loc, ErrNetworkUnavailable)
		}
		if !h.env.Granted(PermissionCoarse) && !h.env.Granted(PermissionFine) {
			return h.failed(ctx, loc, ErrPermissionDenied)
		}
		if background && h.env.PlatformLevel() >= PlatformQ && !h.env.Granted(PermissionBackground) {
			return h.failed(ctx, loc, fmt.Errorf("%w: background", ErrPermissionDenied))
		}
	}

	result, err := svc.RequestLocation(ctx)
	if err != nil {
		return h.failed(ctx, loc, err)
	}
	if result == nil {
		return h.failed(ctx, loc, ErrNoFix)
	}

	positioned := loc.WithCoordinates(result.Latitude, result.Longitude, h.opts.TimeZone)
	return h.resolve(ctx, positioned)
}

// resolve asks the configured weather source which of its locations covers
// the position.
func (h *Helper) resolve(ctx context.Context, positioned weather.Location) (weather.Location, error) {
	src, err := h.weather.Get(h.opts.Source)
	if err != nil {
		return h.failed(ctx, positioned, err)
	}

	list, err := src.RequestLocation(ctx, positioned)
	if err != nil {
		return h.failed(ctx, positioned, fmt.Errorf("%w: %v", ErrUnresolved, err))
	}
	if len(list) == 0 {
		return h.failed(ctx, positioned, ErrUnresolved)
	}

	first := list[0]
	resolved := first.WithPositionFlags(true, first.ResidentPosition)
	if err := h.store.WriteLocation(ctx, resolved); err != nil {
		return h.failed(ctx, positioned, fmt.Errorf("write location: %w", err))
	}

	h.logger.Info("current position resolved",
		zap.String("city_id", resolved.CityID),
		zap.String("name", resolved.Name()),
		zap.String("source", string(resolved.Source)))
	return resolved, nil
}

func (h *Helper) failed(ctx context.Context, loc weather.Location, cause error) (weather.Location, error) {
	if loc.IsUsable() {
		h.logger.Warn("location request failed; keeping last location",
			zap.String("location", loc.FormattedID()),
			zap.Error(cause))
		return loc, cause
	}

	fallback := weather.BuildDefault(h.opts.Source).WithPositionFlags(true, false)
	if err := h.store.WriteLocation(ctx, fallback); err != nil {
		h.logger.Error("write default location failed", zap.Error(err))
		cause = errors.Join(cause, err)
	}
	h.logger.Warn("location request failed; using default location",
		zap.String("city_id", fallback.CityID),
		zap.Error(cause))
	return fallback, cause
}

// Permissions lists what the configured provider needs on this platform.
func (h *Helper) Permissions() []Permission {
	svc, err := h.service()
	if err != nil {
		return nil
	}
	perms := svc.Permissions()
	if len(perms) == 0 || h.env.PlatformLevel() < PlatformQ {
		return perms
	}
	if h.env.PlatformLevel() < PlatformR {
		return append(append([]Permission(nil), perms...), PermissionBackground)
	}
	return perms
}

// Cancel aborts running requests on every location and weather service.
func (h *Helper) Cancel() {
	for _, s := range h.services {
		s.Cancel()
	}
	for _, s := range h.weather.All() {
		s.Cancel()
	}
}

// Provider returns the configured location provider.
func (h *Helper) Provider() Provider {
	return h.opts.Provider
}
