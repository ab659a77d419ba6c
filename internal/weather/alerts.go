package weather

import "time"

// precipitationProbabilityThreshold is the hourly probability (percent) at
// which a slot counts as rainy even without an amount.
const precipitationProbabilityThreshold = 50

// NewAlerts returns the alerts of next that were not present in prev.
func NewAlerts(prev, next *Weather) []Alert {
	if next == nil || len(next.Alerts) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	if prev != nil {
		for _, a := range prev.Alerts {
			seen[a.ID] = struct{}{}
		}
	}

	var fresh []Alert
	for _, a := range next.Alerts {
		if _, ok := seen[a.ID]; !ok {
			fresh = append(fresh, a)
		}
	}
	return fresh
}

// PrecipitationForecast describes upcoming precipitation.
type PrecipitationForecast struct {
	Start       time.Time `json:"start"`
	WeatherText string    `json:"weatherText"`
	Minutely    bool      `json:"minutely"`
}

// PrecipitationWithin looks for precipitation starting in [now, now+window).
// Minutely data is preferred over hourly data when present.
func PrecipitationWithin(w *Weather, now time.Time, window time.Duration) (PrecipitationForecast, bool) {
	if w == nil {
		return PrecipitationForecast{}, false
	}
	end := now.Add(window)
	inWindow := func(t time.Time) bool {
		return !t.Before(now) && t.Before(end)
	}

	if len(w.Minutely) > 0 {
		for _, m := range w.Minutely {
			if inWindow(m.Time) && (m.PrecipitationMm > 0 || m.Condition.Wet()) {
				return PrecipitationForecast{Start: m.Time, WeatherText: m.WeatherText, Minutely: true}, true
			}
		}
		return PrecipitationForecast{}, false
	}

	for _, h := range w.Hourly {
		if !inWindow(h.Time) {
			continue
		}
		if h.PrecipitationMm > 0 || h.PrecipitationProbability >= precipitationProbabilityThreshold || h.Condition.Wet() {
			return PrecipitationForecast{Start: h.Time, WeatherText: h.WeatherText}, true
		}
	}
	return PrecipitationForecast{}, false
}
