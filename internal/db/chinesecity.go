package db

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/i474232898/geometric-weather/internal/common"
	"github.com/i474232898/geometric-weather/internal/weather"
)

// nearestSearchDegrees bounds the first pass of ReadChineseCityNearest.
const nearestSearchDegrees = 1.0

// EnsureChineseCityList reloads the city catalogue from load when the stored
// copy is incomplete. It reports whether a reload happened.
func (h *Helper) EnsureChineseCityList(ctx context.Context, load func() ([]weather.ChineseCity, error)) (bool, error) {
	tx := h.db.WithContext(ctx)

	n, err := countChineseCityEntities(tx)
	if err != nil {
		return false, err
	}
	if n >= h.chineseCityCount {
		return false, nil
	}

	h.writing.Lock()
	defer h.writing.Unlock()

	n, err = countChineseCityEntities(tx)
	if err != nil {
		return false, err
	}
	if n >= h.chineseCityCount {
		return false, nil
	}

	list, err := load()
	if err != nil {
		return false, fmt.Errorf("load chinese cities: %w", err)
	}

	err = tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ChineseCityEntity{}).Error; err != nil {
			return fmt.Errorf("delete chinese cities: %w", err)
		}
		return insertRows(tx, "chinese cities", chineseCityEntities(list))
	})
	if err != nil {
		return false, err
	}

	h.logger.Info("chinese city catalogue reloaded",
		zap.Int("previous", n),
		zap.Int("loaded", len(list)))
	return true, nil
}

// ReadChineseCity finds a city by name, trying district, then city, then province.
func (h *Helper) ReadChineseCity(ctx context.Context, name string) (weather.ChineseCity, error) {
	tx := h.db.WithContext(ctx)
	for _, column := range []string{"district", "city", "province"} {
		entity, err := takeChineseCity(tx, map[string]any{column: name})
		if err == nil {
			return chineseCityModel(entity), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return weather.ChineseCity{}, err
		}
	}
	return weather.ChineseCity{}, fmt.Errorf("chinese city %q: %w", name, ErrNotFound)
}

// ReadChineseCityByRegion matches an administrative region, relaxing the
// match step by step when the exact triple is unknown.
func (h *Helper) ReadChineseCityByRegion(ctx context.Context, province, city, district string) (weather.ChineseCity, error) {
	tx := h.db.WithContext(ctx)
	attempts := []map[string]any{
		{"province": province, "city": city, "district": district},
		{"city": city, "district": district},
		{"district": district},
		{"province": province, "city": city},
	}
	for _, conds := range attempts {
		if hasEmpty(conds) {
			continue
		}
		entity, err := takeChineseCity(tx, conds)
		if err == nil {
			return chineseCityModel(entity), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return weather.ChineseCity{}, err
		}
	}
	return weather.ChineseCity{}, fmt.Errorf("chinese city %s/%s/%s: %w", province, city, district, ErrNotFound)
}

// ReadChineseCityNearest returns the catalogue entry closest to the coordinates.
// The search box grows until its best candidate is closer than any entry
// outside the box could be; the full catalogue is the last resort.
func (h *Helper) ReadChineseCityNearest(ctx context.Context, lat, lon float64) (weather.ChineseCity, error) {
	tx := h.db.WithContext(ctx)

	for deg := nearestSearchDegrees; deg < 90; deg *= 2 {
		var candidates []ChineseCityEntity
		err := tx.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?",
			lat-deg, lat+deg, lon-deg, lon+deg).
			Find(&candidates).Error
		if err != nil {
			return weather.ChineseCity{}, fmt.Errorf("select nearby chinese cities: %w", err)
		}
		if best, d, ok := nearestEntity(lat, lon, candidates); ok && d <= boxRadius(lat, deg) {
			return chineseCityModel(best), nil
		}
	}

	var all []ChineseCityEntity
	if err := tx.Find(&all).Error; err != nil {
		return weather.ChineseCity{}, fmt.Errorf("select chinese cities: %w", err)
	}
	best, _, ok := nearestEntity(lat, lon, all)
	if !ok {
		return weather.ChineseCity{}, fmt.Errorf("nearest chinese city: %w", ErrNotFound)
	}
	return chineseCityModel(best), nil
}

func nearestEntity(lat, lon float64, candidates []ChineseCityEntity) (ChineseCityEntity, float64, bool) {
	if len(candidates) == 0 {
		return ChineseCityEntity{}, 0, false
	}
	best := candidates[0]
	bestDistance := common.Distance(lat, lon, best.Latitude, best.Longitude)
	for _, c := range candidates[1:] {
		if d := common.Distance(lat, lon, c.Latitude, c.Longitude); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best, bestDistance, true
}

// boxRadius is the distance in meters within which every point lies inside
// the ±deg box around lat. The longitude edge is a meridian, measured from the
// box's highest absolute latitude.
func boxRadius(lat, deg float64) float64 {
	perDegree := common.Distance(0, 0, 1, 0)
	edge := math.Min(math.Abs(lat)+deg, 90) * math.Pi / 180
	lonArc := math.Asin(math.Min(1, math.Sin(deg*math.Pi/180)*math.Cos(edge))) * 180 / math.Pi
	return math.Min(deg, lonArc) * perDegree
}

// ReadChineseCityList returns every entry whose province, city or district
// contains name, ordered by region.
func (h *Helper) ReadChineseCityList(ctx context.Context, name string) ([]weather.ChineseCity, error) {
	like := "%" + name + "%"
	var list []ChineseCityEntity
	err := h.db.WithContext(ctx).
		Where("district LIKE ? OR city LIKE ? OR province LIKE ?", like, like, like).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("select chinese cities like %q: %w", name, err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Province != b.Province {
			return a.Province < b.Province
		}
		if a.City != b.City {
			return a.City < b.City
		}
		return a.District < b.District
	})
	return chineseCityModels(list), nil
}

// CountChineseCity returns the number of catalogue entries.
func (h *Helper) CountChineseCity(ctx context.Context) (int, error) {
	return countChineseCityEntities(h.db.WithContext(ctx))
}

// Chinese city table controllers.

func takeChineseCity(tx *gorm.DB, conds map[string]any) (ChineseCityEntity, error) {
	var entity ChineseCityEntity
	err := tx.Where(conds).Order("id ASC").Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ChineseCityEntity{}, ErrNotFound
	}
	if err != nil {
		return ChineseCityEntity{}, fmt.Errorf("select chinese city: %w", err)
	}
	return entity, nil
}

func countChineseCityEntities(tx *gorm.DB) (int, error) {
	var n int64
	if err := tx.Model(&ChineseCityEntity{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chinese cities: %w", err)
	}
	return int(n), nil
}

func hasEmpty(conds map[string]any) bool {
	for _, v := range conds {
		if s, _ := v.(string); s == "" {
			return true
		}
	}
	return false
}
