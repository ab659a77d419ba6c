package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/common"
)

const (
	ipAPIURL      = "http://ip-api.com/json/?fields=status,message,lat,lon,timezone,query"
	ipCacheKey    = "self"
	defaultIPTTL  = 30 * time.Minute
	ipBodyLimit   = 64 << 10
	ipStatusValid = "success"
)

var errIPLookup = errors.New("ip geolocation failed")

// IPService locates the host by its public IP address. It needs no permissions.
type IPService struct {
	url      string
	client   *http.Client
	cache    *cache.Cache
	circuit  *gobreaker.CircuitBreaker
	requests common.Inflight
	logger   *zap.Logger
	now      func() time.Time
}

// NewIPService creates an IPService. Results are cached for ttl.
func NewIPService(client *http.Client, ttl time.Duration, logger *zap.Logger) *IPService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl <= 0 {
		ttl = defaultIPTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IPService{
		url:    ipAPIURL,
		client: client,
		cache:  cache.New(ttl, ttl*2),
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "ip-location",
			MaxRequests: 1,
			Timeout:     time.Minute,
		}),
		logger: logger,
		now:    time.Now,
	}
}

func (s *IPService) Permissions() []Permission { return nil }

type ipAPIResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Timezone string  `json:"timezone"`
	Query    string  `json:"query"`
}

func (s *IPService) RequestLocation(ctx context.Context) (*Result, error) {
	if cached, found := s.cache.Get(ipCacheKey); found {
		if r, ok := cached.(Result); ok {
			s.logger.Debug("ip location cache hit")
			return &r, nil
		}
	}

	ctx, done := s.requests.Begin(ctx)
	defer done()

	out, err := s.circuit.Execute(func() (interface{}, error) {
		return s.lookup(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errIPLookup, err)
	}
	payload, ok := out.(*ipAPIResponse)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type", errIPLookup)
	}

	r := Result{Latitude: payload.Lat, Longitude: payload.Lon, Time: s.now().UTC()}
	s.cache.Set(ipCacheKey, r, cache.DefaultExpiration)

	s.logger.Info("located by ip",
		zap.String("ip", payload.Query),
		zap.Float64("lat", r.Latitude),
		zap.Float64("lon", r.Longitude))
	return &r, nil
}

func (s *IPService) lookup(ctx context.Context) (*ipAPIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, ipBodyLimit))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload ipAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, ipBodyLimit)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status != ipStatusValid {
		return nil, fmt.Errorf("status %q: %s", payload.Status, payload.Message)
	}
	return &payload, nil
}

// Cancel aborts running lookups.
func (s *IPService) Cancel() {
	s.requests.CancelAll()
}
