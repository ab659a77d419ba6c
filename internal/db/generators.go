package db

import (
	"github.com/i474232898/geometric-weather/internal/weather"
)

// Generators convert between domain models and table rows.

func locationEntity(l weather.Location) LocationEntity {
	return LocationEntity{
		FormattedID:      l.FormattedID(),
		CityID:           l.CityID,
		Latitude:         l.Latitude,
		Longitude:        l.Longitude,
		TimeZone:         l.TimeZone,
		Country:          l.Country,
		Province:         l.Province,
		City:             l.City,
		District:         l.District,
		Source:           string(l.Source),
		CurrentPosition:  l.CurrentPosition,
		ResidentPosition: l.ResidentPosition,
		China:            l.China,
	}
}

func locationEntities(list []weather.Location) []LocationEntity {
	out := make([]LocationEntity, 0, len(list))
	for i, l := range list {
		e := locationEntity(l)
		e.SortOrder = i
		out = append(out, e)
	}
	return out
}

func locationModel(e LocationEntity) weather.Location {
	return weather.Location{
		CityID:           e.CityID,
		Latitude:         e.Latitude,
		Longitude:        e.Longitude,
		TimeZone:         e.TimeZone,
		Country:          e.Country,
		Province:         e.Province,
		City:             e.City,
		District:         e.District,
		Source:           weather.Source(e.Source),
		CurrentPosition:  e.CurrentPosition,
		ResidentPosition: e.ResidentPosition,
		China:            e.China,
	}
}

func locationModels(list []LocationEntity) []weather.Location {
	out := make([]weather.Location, 0, len(list))
	for _, e := range list {
		out = append(out, locationModel(e))
	}
	return out
}

func weatherEntity(loc weather.Location, w *weather.Weather) WeatherEntity {
	c := w.Current
	return WeatherEntity{
		CityID:           loc.CityID,
		Source:           string(loc.Source),
		PublishTime:      w.Base.PublishTime.UTC(),
		UpdateTime:       w.Base.UpdateTime.UTC(),
		WeatherText:      c.WeatherText,
		Condition:        string(c.Condition),
		TemperatureC:     c.TemperatureC,
		FeelsLikeC:       c.FeelsLikeC,
		Wind:             c.Wind,
		UVIndex:          c.UVIndex,
		RelativeHumidity: c.RelativeHumidity,
		PressureHpa:      c.PressureHpa,
		VisibilityKm:     c.VisibilityKm,
		DewPointC:        c.DewPointC,
		CloudCover:       c.CloudCover,
		AirQualityIndex:  c.AirQualityIndex,
		DailySummary:     c.DailySummary,
		HourlySummary:    c.HourlySummary,
	}
}

func weatherModel(e WeatherEntity) *weather.Weather {
	return &weather.Weather{
		Base: weather.Base{
			CityID:      e.CityID,
			PublishTime: e.PublishTime.UTC(),
			UpdateTime:  e.UpdateTime.UTC(),
		},
		Current: weather.Current{
			WeatherText:      e.WeatherText,
			Condition:        weather.Condition(e.Condition),
			TemperatureC:     e.TemperatureC,
			FeelsLikeC:       e.FeelsLikeC,
			Wind:             e.Wind,
			UVIndex:          e.UVIndex,
			RelativeHumidity: e.RelativeHumidity,
			PressureHpa:      e.PressureHpa,
			VisibilityKm:     e.VisibilityKm,
			DewPointC:        e.DewPointC,
			CloudCover:       e.CloudCover,
			AirQualityIndex:  e.AirQualityIndex,
			DailySummary:     e.DailySummary,
			HourlySummary:    e.HourlySummary,
		},
	}
}

func halfDayColumns(h weather.HalfDay) HalfDayColumns {
	return HalfDayColumns{
		WeatherText:              h.WeatherText,
		Condition:                string(h.Condition),
		TemperatureC:             h.TemperatureC,
		PrecipitationMm:          h.PrecipitationMm,
		PrecipitationProbability: h.PrecipitationProbability,
		Wind:                     h.Wind,
	}
}

func halfDayModel(c HalfDayColumns) weather.HalfDay {
	return weather.HalfDay{
		WeatherText:              c.WeatherText,
		Condition:                weather.Condition(c.Condition),
		TemperatureC:             c.TemperatureC,
		PrecipitationMm:          c.PrecipitationMm,
		PrecipitationProbability: c.PrecipitationProbability,
		Wind:                     c.Wind,
	}
}

func dailyEntities(cityID string, source weather.Source, list []weather.Daily) []DailyEntity {
	out := make([]DailyEntity, 0, len(list))
	for _, d := range list {
		out = append(out, DailyEntity{
			CityID:     cityID,
			Source:     string(source),
			Date:       d.Date.UTC(),
			Day:        halfDayColumns(d.Day),
			Night:      halfDayColumns(d.Night),
			Sunrise:    d.Sunrise.UTC(),
			Sunset:     d.Sunset.UTC(),
			UVIndex:    d.UVIndex,
			HoursOfSun: d.HoursOfSun,
		})
	}
	return out
}

func dailyModels(list []DailyEntity) []weather.Daily {
	out := make([]weather.Daily, 0, len(list))
	for _, e := range list {
		out = append(out, weather.Daily{
			Date:       e.Date.UTC(),
			Day:        halfDayModel(e.Day),
			Night:      halfDayModel(e.Night),
			Sunrise:    e.Sunrise.UTC(),
			Sunset:     e.Sunset.UTC(),
			UVIndex:    e.UVIndex,
			HoursOfSun: e.HoursOfSun,
		})
	}
	return out
}

func hourlyEntities(cityID string, source weather.Source, list []weather.Hourly) []HourlyEntity {
	out := make([]HourlyEntity, 0, len(list))
	for _, h := range list {
		out = append(out, HourlyEntity{
			CityID:                   cityID,
			Source:                   string(source),
			Time:                     h.Time.UTC(),
			Daylight:                 h.Daylight,
			WeatherText:              h.WeatherText,
			Condition:                string(h.Condition),
			TemperatureC:             h.TemperatureC,
			PrecipitationMm:          h.PrecipitationMm,
			PrecipitationProbability: h.PrecipitationProbability,
			Wind:                     h.Wind,
			UVIndex:                  h.UVIndex,
		})
	}
	return out
}

func hourlyModels(list []HourlyEntity) []weather.Hourly {
	out := make([]weather.Hourly, 0, len(list))
	for _, e := range list {
		out = append(out, weather.Hourly{
			Time:                     e.Time.UTC(),
			Daylight:                 e.Daylight,
			WeatherText:              e.WeatherText,
			Condition:                weather.Condition(e.Condition),
			TemperatureC:             e.TemperatureC,
			PrecipitationMm:          e.PrecipitationMm,
			PrecipitationProbability: e.PrecipitationProbability,
			Wind:                     e.Wind,
			UVIndex:                  e.UVIndex,
		})
	}
	return out
}

func minutelyEntities(cityID string, source weather.Source, list []weather.Minutely) []MinutelyEntity {
	out := make([]MinutelyEntity, 0, len(list))
	for _, m := range list {
		out = append(out, MinutelyEntity{
			CityID:          cityID,
			Source:          string(source),
			Time:            m.Time.UTC(),
			Daylight:        m.Daylight,
			WeatherText:     m.WeatherText,
			Condition:       string(m.Condition),
			MinuteInterval:  m.MinuteInterval,
			PrecipitationMm: m.PrecipitationMm,
			CloudCover:      m.CloudCover,
		})
	}
	return out
}

func minutelyModels(list []MinutelyEntity) []weather.Minutely {
	out := make([]weather.Minutely, 0, len(list))
	for _, e := range list {
		out = append(out, weather.Minutely{
			Time:            e.Time.UTC(),
			Daylight:        e.Daylight,
			WeatherText:     e.WeatherText,
			Condition:       weather.Condition(e.Condition),
			MinuteInterval:  e.MinuteInterval,
			PrecipitationMm: e.PrecipitationMm,
			CloudCover:      e.CloudCover,
		})
	}
	return out
}

func alertEntities(cityID string, source weather.Source, list []weather.Alert) []AlertEntity {
	out := make([]AlertEntity, 0, len(list))
	for _, a := range list {
		out = append(out, AlertEntity{
			CityID:      cityID,
			Source:      string(source),
			AlertID:     a.ID,
			Time:        a.Time.UTC(),
			Description: a.Description,
			Content:     a.Content,
			Type:        a.Type,
			Priority:    a.Priority,
			Color:       a.Color,
		})
	}
	return out
}

func alertModels(list []AlertEntity) []weather.Alert {
	out := make([]weather.Alert, 0, len(list))
	for _, e := range list {
		out = append(out, weather.Alert{
			ID:          e.AlertID,
			Time:        e.Time.UTC(),
			Description: e.Description,
			Content:     e.Content,
			Type:        e.Type,
			Priority:    e.Priority,
			Color:       e.Color,
		})
	}
	return out
}

// historyFromWeather records today's temperatures of w as a history row.
// It returns false when w has no daily forecast to take them from.
func historyFromWeather(cityID string, source weather.Source, w *weather.Weather) (HistoryEntity, bool) {
	if len(w.Daily) == 0 {
		return HistoryEntity{}, false
	}
	return HistoryEntity{
		CityID:                cityID,
		Source:                string(source),
		Date:                  w.Base.PublishTime.UTC(),
		DaytimeTemperatureC:   w.Daily[0].Day.TemperatureC,
		NighttimeTemperatureC: w.Daily[0].Night.TemperatureC,
	}, true
}

func historyEntity(cityID string, source weather.Source, h *weather.History) HistoryEntity {
	return HistoryEntity{
		CityID:                cityID,
		Source:                string(source),
		Date:                  h.Date.UTC(),
		DaytimeTemperatureC:   h.DaytimeTemperatureC,
		NighttimeTemperatureC: h.NighttimeTemperatureC,
	}
}

func historyModel(e HistoryEntity) *weather.History {
	return &weather.History{
		CityID:                e.CityID,
		Source:                weather.Source(e.Source),
		Date:                  e.Date.UTC(),
		DaytimeTemperatureC:   e.DaytimeTemperatureC,
		NighttimeTemperatureC: e.NighttimeTemperatureC,
	}
}

func chineseCityEntities(list []weather.ChineseCity) []ChineseCityEntity {
	out := make([]ChineseCityEntity, 0, len(list))
	for _, c := range list {
		out = append(out, ChineseCityEntity{
			CityID:    c.CityID,
			Province:  c.Province,
			City:      c.City,
			District:  c.District,
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
		})
	}
	return out
}

func chineseCityModel(e ChineseCityEntity) weather.ChineseCity {
	return weather.ChineseCity{
		CityID:    e.CityID,
		Province:  e.Province,
		City:      e.City,
		District:  e.District,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
}

func chineseCityModels(list []ChineseCityEntity) []weather.ChineseCity {
	out := make([]weather.ChineseCity, 0, len(list))
	for _, e := range list {
		out = append(out, chineseCityModel(e))
	}
	return out
}
