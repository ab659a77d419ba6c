package store

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no fix is available for a device.
	ErrNotFound = errors.New("no position fix for device")
)

// Fix is one position reported by a device.
type Fix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"` // meters
	Time      time.Time `json:"time"`
}

// FixHistory holds a time-ordered list of fixes for a device.
type FixHistory struct {
	Fixes []Fix
}

// PositionStore is a concurrency-safe in-memory store of device positions.
type PositionStore struct {
	mu sync.RWMutex

	// key: device ID, value: history
	data map[string]*FixHistory

	// retention configuration
	maxHistory int           // max number of fixes per device
	maxAge     time.Duration // optional max age for fixes

	now func() time.Time
}

// NewPositionStore creates a new PositionStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewPositionStore(maxHistory int, maxAge time.Duration) *PositionStore {
	return &PositionStore{
		data:       make(map[string]*FixHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Save records a fix for a device and enforces retention. Fixes arriving out
// of order are inserted at their place in time.
func (s *PositionStore) Save(device string, fix Fix) {
	if fix.Time.IsZero() {
		fix.Time = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[device]
	if !ok {
		history = &FixHistory{}
		s.data[device] = history
	}

	i := len(history.Fixes)
	for i > 0 && history.Fixes[i-1].Time.After(fix.Time) {
		i--
	}
	history.Fixes = append(history.Fixes, Fix{})
	copy(history.Fixes[i+1:], history.Fixes[i:])
	history.Fixes[i] = fix

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Fixes) > s.maxHistory {
		over := len(history.Fixes) - s.maxHistory
		history.Fixes = history.Fixes[over:]
	}

	// Enforce retention by age, always keeping the newest fix.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Fixes)-1; i++ {
			if !history.Fixes[i].Time.Before(cutoff) {
				break
			}
		}
		history.Fixes = history.Fixes[i:]
	}
}

// Latest returns the most recent fix for a device.
func (s *PositionStore) Latest(device string) (Fix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[device]
	if !ok || len(history.Fixes) == 0 {
		return Fix{}, ErrNotFound
	}
	return history.Fixes[len(history.Fixes)-1], nil
}

// Range returns all fixes for a device between from and to (inclusive).
func (s *PositionStore) Range(device string, from, to time.Time) ([]Fix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[device]
	if !ok || len(history.Fixes) == 0 {
		return nil, ErrNotFound
	}

	var result []Fix
	for _, fix := range history.Fixes {
		if !fix.Time.Before(from) && !fix.Time.After(to) {
			result = append(result, fix)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
