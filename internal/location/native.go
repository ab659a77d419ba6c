package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/store"
)

// NativeService serves positions the host reports for a device. A request
// waits up to Wait for a fix younger than MaxAge.
type NativeService struct {
	positions *store.PositionStore
	device    string
	maxAge    time.Duration
	wait      time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	updated  chan struct{} // closed and replaced on every report
	canceled chan struct{} // closed and replaced on Cancel
}

// NativeConfig tunes a NativeService.
type NativeConfig struct {
	Device string
	MaxAge time.Duration
	Wait   time.Duration
}

// NewNativeService creates a service backed by positions.
func NewNativeService(positions *store.PositionStore, cfg NativeConfig, logger *zap.Logger) *NativeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Device == "" {
		cfg.Device = "default"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 10 * time.Minute
	}
	return &NativeService{
		positions: positions,
		device:    cfg.Device,
		maxAge:    cfg.MaxAge,
		wait:      cfg.Wait,
		logger:    logger,
		now:       time.Now,
		updated:   make(chan struct{}),
		canceled:  make(chan struct{}),
	}
}

func (s *NativeService) Permissions() []Permission {
	return []Permission{PermissionCoarse, PermissionFine}
}

// Report records a fix for the service's device and wakes waiting requests.
func (s *NativeService) Report(fix store.Fix) {
	s.positions.Save(s.device, fix)

	s.mu.Lock()
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()

	s.logger.Debug("position reported",
		zap.String("device", s.device),
		zap.Float64("lat", fix.Latitude),
		zap.Float64("lon", fix.Longitude))
}

func (s *NativeService) RequestLocation(ctx context.Context) (*Result, error) {
	var deadline <-chan time.Time
	if s.wait > 0 {
		timer := time.NewTimer(s.wait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		s.mu.Lock()
		updated, canceled := s.updated, s.canceled
		s.mu.Unlock()

		fix, err := s.positions.Latest(s.device)
		switch {
		case err == nil && s.now().Sub(fix.Time) <= s.maxAge:
			return &Result{Latitude: fix.Latitude, Longitude: fix.Longitude, Time: fix.Time}, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return nil, err
		}

		if deadline == nil {
			return nil, fmt.Errorf("%w: no recent fix for %s", ErrNoFix, s.device)
		}
		select {
		case <-updated:
		case <-deadline:
			return nil, fmt.Errorf("%w: timed out waiting for %s", ErrNoFix, s.device)
		case <-canceled:
			return nil, fmt.Errorf("%w: canceled", ErrNoFix)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *NativeService) Cancel() {
	s.mu.Lock()
	close(s.canceled)
	s.canceled = make(chan struct{})
	s.mu.Unlock()
}
