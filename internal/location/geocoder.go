package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoAddress is returned when the geocoder service has no address to resolve.
var ErrNoAddress = errors.New("no address configured")

// geocoderKeyMu guards geocoder.ApiKey. The library reads the key while the
// request runs, so the lock is held for the whole lookup.
var geocoderKeyMu sync.Mutex

const defaultGeocodeTimeout = 10 * time.Second

// Address is the fixed place a GeocoderService resolves.
type Address struct {
	Street  string
	City    string
	State   string
	Country string
}

func (a Address) empty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.Country == ""
}

func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.State, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// GeocoderService places the host at a configured street address using the
// Google geocoding API. It needs no permissions.
type GeocoderService struct {
	apiKey  string
	address Address
	cache   *cache.Cache
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration

	lookups  singleflight.Group
	mu       sync.Mutex
	canceled chan struct{}
}

// NewGeocoderService creates a GeocoderService. Results are cached for ttl.
func NewGeocoderService(apiKey string, address Address, ttl time.Duration, logger *zap.Logger) *GeocoderService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeocoderService{
		apiKey:   apiKey,
		address:  address,
		cache:    cache.New(ttl, ttl*2),
		logger:   logger,
		now:      time.Now,
		timeout:  defaultGeocodeTimeout,
		canceled: make(chan struct{}),
	}
}

func (s *GeocoderService) Permissions() []Permission { return nil }

func (s *GeocoderService) RequestLocation(ctx context.Context) (*Result, error) {
	if s.address.empty() {
		return nil, ErrNoAddress
	}
	key := s.address.String()
	if r, ok := s.cached(key); ok {
		return &r, nil
	}

	s.mu.Lock()
	canceled := s.canceled
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The geocoder client takes no context, so a lookup runs to completion in
	// the background. Concurrent callers share the one in flight.
	out := s.lookups.DoChan(key, func() (any, error) {
		return s.geocode(key)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("geocode %q: %w", key, ctx.Err())
	case <-canceled:
		return nil, fmt.Errorf("%w: canceled", ErrNoFix)
	case res := <-out:
		if res.Err != nil {
			return nil, fmt.Errorf("geocode %q: %w", key, res.Err)
		}
		r := res.Val.(Result)
		return &r, nil
	}
}

func (s *GeocoderService) cached(key string) (Result, bool) {
	if v, found := s.cache.Get(key); found {
		if r, ok := v.(Result); ok {
			return r, true
		}
	}
	return Result{}, false
}

func (s *GeocoderService) geocode(key string) (Result, error) {
	geocoderKeyMu.Lock()
	geocoder.ApiKey = s.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{
		Street:  s.address.Street,
		City:    s.address.City,
		State:   s.address.State,
		Country: s.address.Country,
	})
	geocoderKeyMu.Unlock()
	if err != nil {
		return Result{}, err
	}

	r := Result{Latitude: loc.Latitude, Longitude: loc.Longitude, Time: s.now().UTC()}
	s.cache.Set(key, r, cache.DefaultExpiration)
	s.logger.Info("located by address",
		zap.String("address", key),
		zap.Float64("lat", r.Latitude),
		zap.Float64("lon", r.Longitude))
	return r, nil
}

func (s *GeocoderService) Cancel() {
	s.mu.Lock()
	close(s.canceled)
	s.canceled = make(chan struct{})
	s.mu.Unlock()
}
