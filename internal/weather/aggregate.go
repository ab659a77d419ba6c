package weather

import (
	"sort"
	"time"
)

// Hours in [daytimeStart, daytimeEnd) count towards the daytime half of a day.
const (
	daytimeStart = 6
	daytimeEnd   = 18
)

// AggregateDaily folds hourly slots into per-day forecasts in the given zone.
// Daytime temperature is the warmest daytime slot, nighttime the coldest slot
// of the day; conditions are picked by majority (earliest slot wins ties),
// precipitation is summed and probability is the maximum seen.
func AggregateDaily(hourly []Hourly, zone *time.Location) []Daily {
	if len(hourly) == 0 {
		return nil
	}
	if zone == nil {
		zone = time.UTC
	}

	buckets := make(map[time.Time][]Hourly)
	for _, h := range hourly {
		t := h.Time.In(zone)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, zone)
		buckets[day] = append(buckets[day], h)
	}

	days := make([]time.Time, 0, len(buckets))
	for d := range buckets {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]Daily, 0, len(days))
	for _, d := range days {
		slots := buckets[d]
		sort.Slice(slots, func(i, j int) bool { return slots[i].Time.Before(slots[j].Time) })

		var dayPart, nightPart []Hourly
		for _, h := range slots {
			hr := h.Time.In(zone).Hour()
			if hr >= daytimeStart && hr < daytimeEnd {
				dayPart = append(dayPart, h)
			} else {
				nightPart = append(nightPart, h)
			}
		}
		if len(dayPart) == 0 {
			dayPart = slots
		}
		if len(nightPart) == 0 {
			nightPart = slots
		}

		day := aggregateHalf(dayPart)
		night := aggregateHalf(nightPart)
		day.TemperatureC = maxTemperature(dayPart)
		night.TemperatureC = minTemperature(slots)

		var uv float64
		for _, h := range slots {
			if h.UVIndex > uv {
				uv = h.UVIndex
			}
		}

		out = append(out, Daily{
			Date:    d.UTC(),
			Day:     day,
			Night:   night,
			UVIndex: uv,
		})
	}
	return out
}

func aggregateHalf(slots []Hourly) HalfDay {
	counts := make(map[Condition]int)
	first := make(map[Condition]int)
	texts := make(map[Condition]string)

	var half HalfDay
	for i, h := range slots {
		if _, ok := first[h.Condition]; !ok {
			first[h.Condition] = i
			texts[h.Condition] = h.WeatherText
		}
		counts[h.Condition]++
		half.PrecipitationMm += h.PrecipitationMm
		if h.PrecipitationProbability > half.PrecipitationProbability {
			half.PrecipitationProbability = h.PrecipitationProbability
		}
		if h.Wind.SpeedKph >= half.Wind.SpeedKph {
			half.Wind = h.Wind
		}
	}

	best := ConditionUnknown
	bestCount := 0
	for cond, n := range counts {
		if n > bestCount || (n == bestCount && first[cond] < first[best]) {
			best = cond
			bestCount = n
		}
	}
	half.Condition = best
	half.WeatherText = texts[best]
	return half
}

func maxTemperature(slots []Hourly) float64 {
	m := slots[0].TemperatureC
	for _, h := range slots[1:] {
		if h.TemperatureC > m {
			m = h.TemperatureC
		}
	}
	return m
}

func minTemperature(slots []Hourly) float64 {
	m := slots[0].TemperatureC
	for _, h := range slots[1:] {
		if h.TemperatureC < m {
			m = h.TemperatureC
		}
	}
	return m
}
