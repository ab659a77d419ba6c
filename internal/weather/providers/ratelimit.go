package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/i474232898/geometric-weather/internal/weather"
)

// RateLimited wraps a weather.Service so outbound calls respect a request budget.
type RateLimited struct {
	weather.Service
	limiter *rate.Limiter
}

// NewRateLimited creates a rate limited service.
// rps is the maximum requests per second allowed (can be fractional);
// burst is the maximum burst size allowed.
func NewRateLimited(svc weather.Service, rps float64, burst int) *RateLimited {
	return &RateLimited{
		Service: svc,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return nil
}

func (r *RateLimited) RequestWeather(ctx context.Context, loc weather.Location) (*weather.Weather, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.Service.RequestWeather(ctx, loc)
}

func (r *RateLimited) RequestLocation(ctx context.Context, loc weather.Location) ([]weather.Location, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.Service.RequestLocation(ctx, loc)
}

func (r *RateLimited) QueryLocation(ctx context.Context, query string) ([]weather.Location, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.Service.QueryLocation(ctx, query)
}

var (
	_ weather.Service = (*OpenMeteoProvider)(nil)
	_ weather.Service = (*OpenWeatherProvider)(nil)
	_ weather.Service = (*WeatherAPIProvider)(nil)
	_ weather.Service = (*RateLimited)(nil)
)
