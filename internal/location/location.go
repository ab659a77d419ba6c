// Package location resolves the device's current position into a weather
// location, falling back to a default city when positioning fails.
package location

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrPermissionDenied is returned when the required location permissions are missing.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrNetworkUnavailable is returned when positioning needs a network that is down.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrNoFix is returned when a location service cannot produce a position.
	ErrNoFix = errors.New("no position fix")
	// ErrUnresolved is returned when the weather source knows no location at the position.
	ErrUnresolved = errors.New("position not resolved by weather source")
)

// Provider selects the location service.
type Provider string

const (
	ProviderNative   Provider = "native"
	ProviderIP       Provider = "ip"
	ProviderGeocoder Provider = "geocoder"
)

// ParseProvider maps a configuration value onto a Provider. Unknown values
// select the native provider.
func ParseProvider(s string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderIP, ProviderGeocoder:
		return p
	default:
		return ProviderNative
	}
}

// Permission is a location permission the host may grant.
type Permission string

const (
	PermissionCoarse     Permission = "coarse_location"
	PermissionFine       Permission = "fine_location"
	PermissionBackground Permission = "background_location"
)

// Platform levels at which background location handling changed.
const (
	PlatformQ = 29
	PlatformR = 30
)

// Result is a position produced by a location service.
type Result struct {
	Latitude  float64
	Longitude float64
	Time      time.Time
}

// Service produces the device position.
type Service interface {
	// Permissions lists what the service needs; empty means none.
	Permissions() []Permission
	RequestLocation(ctx context.Context) (*Result, error)
	Cancel()
}
