package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/i474232898/geometric-weather/internal/weather"
)

// WriteWeather replaces the stored weather of loc with w. Today's temperatures
// are kept as history, along with w.Yesterday when it is set.
func (h *Helper) WriteWeather(ctx context.Context, loc weather.Location, w *weather.Weather) error {
	if w == nil {
		return errors.New("write weather: nil weather")
	}
	cityID, source := loc.CityID, loc.Source

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteWeatherEntities(tx, cityID, source); err != nil {
			return err
		}

		entity := weatherEntity(loc, w)
		if err := tx.Create(&entity).Error; err != nil {
			return fmt.Errorf("insert weather: %w", err)
		}
		if err := insertRows(tx, "daily", dailyEntities(cityID, source, w.Daily)); err != nil {
			return err
		}
		if err := insertRows(tx, "hourly", hourlyEntities(cityID, source, w.Hourly)); err != nil {
			return err
		}
		if err := insertRows(tx, "minutely", minutelyEntities(cityID, source, w.Minutely)); err != nil {
			return err
		}
		if err := insertRows(tx, "alerts", alertEntities(cityID, source, w.Alerts)); err != nil {
			return err
		}

		history := make([]HistoryEntity, 0, 2)
		if today, ok := historyFromWeather(cityID, source, w); ok {
			history = append(history, today)
		}
		if w.Yesterday != nil {
			history = append(history, historyEntity(cityID, source, w.Yesterday))
		}
		return insertRows(tx, "history", history)
	})
	if err != nil {
		return fmt.Errorf("write weather %s: %w", loc.FormattedID(), err)
	}

	h.logger.Debug("weather written",
		zap.String("city_id", cityID),
		zap.String("source", string(source)))
	return nil
}

// ReadWeather loads the stored weather of loc with yesterday's history attached.
// It returns ErrNotFound when nothing is stored.
func (h *Helper) ReadWeather(ctx context.Context, loc weather.Location) (*weather.Weather, error) {
	tx := h.db.WithContext(ctx)
	cityID, source := loc.CityID, string(loc.Source)

	var entity WeatherEntity
	err := tx.Where("city_id = ? AND source = ?", cityID, source).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("weather %s: %w", loc.FormattedID(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select weather %s: %w", loc.FormattedID(), err)
	}
	w := weatherModel(entity)

	var daily []DailyEntity
	if err := selectRows(tx, cityID, source, "date", &daily); err != nil {
		return nil, err
	}
	w.Daily = dailyModels(daily)

	var hourly []HourlyEntity
	if err := selectRows(tx, cityID, source, "time", &hourly); err != nil {
		return nil, err
	}
	w.Hourly = hourlyModels(hourly)

	var minutely []MinutelyEntity
	if err := selectRows(tx, cityID, source, "time", &minutely); err != nil {
		return nil, err
	}
	w.Minutely = minutelyModels(minutely)

	var alerts []AlertEntity
	if err := selectRows(tx, cityID, source, "priority", &alerts); err != nil {
		return nil, err
	}
	w.Alerts = alertModels(alerts)

	yesterday, err := selectYesterdayHistory(tx, loc, w.Base.PublishTime)
	switch {
	case err == nil:
		w.Yesterday = yesterday
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return w, nil
}

// DeleteWeather removes every stored row for loc, history included.
func (h *Helper) DeleteWeather(ctx context.Context, loc weather.Location) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteWeatherEntities(tx, loc.CityID, loc.Source)
	})
}

// ReadHistory returns the history recorded for the day before publish, in the
// location's own time zone.
func (h *Helper) ReadHistory(ctx context.Context, loc weather.Location, publish time.Time) (*weather.History, error) {
	return selectYesterdayHistory(h.db.WithContext(ctx), loc, publish)
}

// Weather table controllers.

func insertRows[T any](tx *gorm.DB, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func selectRows[T any](tx *gorm.DB, cityID, source, order string, out *[]T) error {
	err := tx.Where("city_id = ? AND source = ?", cityID, source).
		Order(order + " ASC").
		Order("id ASC").
		Find(out).Error
	if err != nil {
		return fmt.Errorf("select %T: %w", *out, err)
	}
	return nil
}

func deleteWeatherEntities(tx *gorm.DB, cityID string, source weather.Source) error {
	for _, model := range []any{
		&WeatherEntity{},
		&DailyEntity{},
		&HourlyEntity{},
		&MinutelyEntity{},
		&AlertEntity{},
		&HistoryEntity{},
	} {
		err := tx.Where("city_id = ? AND source = ?", cityID, string(source)).Delete(model).Error
		if err != nil {
			return fmt.Errorf("delete %T: %w", model, err)
		}
	}
	return nil
}

func selectYesterdayHistory(tx *gorm.DB, loc weather.Location, publish time.Time) (*weather.History, error) {
	if publish.IsZero() {
		return nil, fmt.Errorf("history %s: %w", loc.FormattedID(), ErrNotFound)
	}
	zone := loc.Zone()
	local := publish.In(zone)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	yesterday := today.AddDate(0, 0, -1)

	var entity HistoryEntity
	err := tx.Where("city_id = ? AND source = ? AND date >= ? AND date < ?",
		loc.CityID, string(loc.Source), yesterday.UTC(), today.UTC()).
		Order("date DESC").
		Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("history %s: %w", loc.FormattedID(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select history %s: %w", loc.FormattedID(), err)
	}
	return historyModel(entity), nil
}
