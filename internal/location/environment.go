package location

import (
	"context"
	"net"
	"slices"
	"time"
)

// Environment describes what the host allows positioning to do.
type Environment interface {
	NetworkAvailable(ctx context.Context) bool
	Granted(p Permission) bool
	PlatformLevel() int
}

// HostEnvironment is an Environment configured at startup.
type HostEnvironment struct {
	Permissions []Permission
	Level       int

	// ProbeAddr is dialed to check connectivity; empty means always online.
	ProbeAddr    string
	ProbeTimeout time.Duration
}

func (e *HostEnvironment) Granted(p Permission) bool {
	return slices.Contains(e.Permissions, p)
}

func (e *HostEnvironment) PlatformLevel() int {
	return e.Level
}

func (e *HostEnvironment) NetworkAvailable(ctx context.Context) bool {
	if e.ProbeAddr == "" {
		return true
	}
	timeout := e.ProbeTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", e.ProbeAddr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// ParsePermissions maps configuration values onto permissions, skipping unknown ones.
func ParsePermissions(values []string) []Permission {
	var out []Permission
	for _, v := range values {
		switch p := Permission(v); p {
		case PermissionCoarse, PermissionFine, PermissionBackground:
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}
