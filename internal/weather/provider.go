package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownSource is returned when no service is registered for a source.
var ErrUnknownSource = errors.New("unknown weather source")

// Service abstracts one weather source (e.g. Open-Meteo, OpenWeather, WeatherAPI).
type Service interface {
	Source() Source
	// RequestWeather fetches the full forecast bundle for a resolved location.
	RequestWeather(ctx context.Context, loc Location) (*Weather, error)
	// RequestLocation resolves coordinates into the source's own locations.
	RequestLocation(ctx context.Context, loc Location) ([]Location, error)
	// QueryLocation searches the source's locations by name.
	QueryLocation(ctx context.Context, query string) ([]Location, error)
	// Cancel aborts every in-flight request of this service.
	Cancel()
}

// Store is the persistence contract the weather helper needs.
type Store interface {
	WriteWeather(ctx context.Context, loc Location, w *Weather) error
	ReadHistory(ctx context.Context, loc Location, publish time.Time) (*History, error)
}

// ServiceSet indexes services by source.
type ServiceSet struct {
	services map[Source]Service
	order    []Service
}

// NewServiceSet builds a set; later services replace earlier ones for the same source.
func NewServiceSet(services ...Service) *ServiceSet {
	set := &ServiceSet{services: make(map[Source]Service, len(services))}
	for _, s := range services {
		if _, dup := set.services[s.Source()]; !dup {
			set.order = append(set.order, s)
		} else {
			for i, o := range set.order {
				if o.Source() == s.Source() {
					set.order[i] = s
				}
			}
		}
		set.services[s.Source()] = s
	}
	return set
}

// Get returns the service registered for source.
func (s *ServiceSet) Get(source Source) (Service, error) {
	svc, ok := s.services[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return svc, nil
}

// All returns every registered service in registration order.
func (s *ServiceSet) All() []Service {
	out := make([]Service, len(s.order))
	copy(out, s.order)
	return out
}
