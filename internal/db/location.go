package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/i474232898/geometric-weather/internal/weather"
)

// WriteLocation inserts loc, or updates it in place when its formatted ID exists.
// New locations are appended to the end of the list.
func (h *Helper) WriteLocation(ctx context.Context, loc weather.Location) error {
	entity := locationEntity(loc)

	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := selectLocationEntity(tx, entity.FormattedID)
		switch {
		case errors.Is(err, ErrNotFound):
			var maxOrder sql.NullInt64
			if err := tx.Model(&LocationEntity{}).Select("MAX(sort_order)").Row().Scan(&maxOrder); err != nil {
				return fmt.Errorf("select max sort order: %w", err)
			}
			if maxOrder.Valid {
				entity.SortOrder = int(maxOrder.Int64) + 1
			}
			return insertLocationEntities(tx, []LocationEntity{entity})
		case err != nil:
			return err
		default:
			entity.SortOrder = existing.SortOrder
			return updateLocationEntity(tx, entity)
		}
	})
}

// WriteLocationList replaces the whole stored list, keeping the given order.
func (h *Helper) WriteLocationList(ctx context.Context, list []weather.Location) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteLocationEntities(tx); err != nil {
			return err
		}
		return insertLocationEntities(tx, locationEntities(list))
	})
}

// DeleteLocation removes loc from the list. Its weather is left untouched.
func (h *Helper) DeleteLocation(ctx context.Context, loc weather.Location) error {
	err := h.db.WithContext(ctx).
		Where("formatted_id = ?", loc.FormattedID()).
		Delete(&LocationEntity{}).Error
	if err != nil {
		return fmt.Errorf("delete location %s: %w", loc.FormattedID(), err)
	}
	return nil
}

// ReadLocation returns the stored location with the given formatted ID.
func (h *Helper) ReadLocation(ctx context.Context, formattedID string) (weather.Location, error) {
	entity, err := selectLocationEntity(h.db.WithContext(ctx), formattedID)
	if err != nil {
		return weather.Location{}, err
	}
	return locationModel(entity), nil
}

// ReadLocationList returns every stored location in list order. An empty
// store is seeded with the unresolved current-position location first.
func (h *Helper) ReadLocationList(ctx context.Context) ([]weather.Location, error) {
	tx := h.db.WithContext(ctx)

	entities, err := selectLocationEntityList(tx)
	if err != nil {
		return nil, err
	}
	if len(entities) > 0 {
		return locationModels(entities), nil
	}

	h.writing.Lock()
	defer h.writing.Unlock()

	n, err := countLocationEntities(tx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		// Another caller seeded or wrote the list while we waited.
		entities, err = selectLocationEntityList(tx)
		if err != nil {
			return nil, err
		}
		return locationModels(entities), nil
	}

	local := weather.BuildLocal(h.defaultSource)
	entities = []LocationEntity{locationEntity(local)}
	if err := insertLocationEntities(tx, entities); err != nil {
		return nil, err
	}
	h.logger.Info("seeded location list with local position")
	return locationModels(entities), nil
}

// CountLocation returns the number of stored locations.
func (h *Helper) CountLocation(ctx context.Context) (int, error) {
	return countLocationEntities(h.db.WithContext(ctx))
}

// Location table controllers.

func selectLocationEntity(tx *gorm.DB, formattedID string) (LocationEntity, error) {
	var entity LocationEntity
	err := tx.Where("formatted_id = ?", formattedID).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LocationEntity{}, fmt.Errorf("location %s: %w", formattedID, ErrNotFound)
	}
	if err != nil {
		return LocationEntity{}, fmt.Errorf("select location %s: %w", formattedID, err)
	}
	return entity, nil
}

func selectLocationEntityList(tx *gorm.DB) ([]LocationEntity, error) {
	var list []LocationEntity
	if err := tx.Order("sort_order ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	return list, nil
}

func insertLocationEntities(tx *gorm.DB, list []LocationEntity) error {
	if len(list) == 0 {
		return nil
	}
	if err := tx.Create(&list).Error; err != nil {
		return fmt.Errorf("insert locations: %w", err)
	}
	return nil
}

func updateLocationEntity(tx *gorm.DB, entity LocationEntity) error {
	if err := tx.Save(&entity).Error; err != nil {
		return fmt.Errorf("update location %s: %w", entity.FormattedID, err)
	}
	return nil
}

func deleteLocationEntities(tx *gorm.DB) error {
	if err := tx.Where("1 = 1").Delete(&LocationEntity{}).Error; err != nil {
		return fmt.Errorf("delete locations: %w", err)
	}
	return nil
}

func countLocationEntities(tx *gorm.DB) (int, error) {
	var n int64
	if err := tx.Model(&LocationEntity{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return int(n), nil
}
