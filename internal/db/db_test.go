package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/i474232898/geometric-weather/internal/weather"
)

func newTestHelper(t *testing.T, opts Options) *Helper {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	h, err := New(gdb, opts, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func testLocation(cityID string) weather.Location {
	return weather.Location{
		CityID:    cityID,
		Latitude:  48.85,
		Longitude: 2.35,
		TimeZone:  "Europe/Paris",
		Country:   "France",
		City:      "Paris",
		Source:    weather.SourceOpenMeteo,
	}
}

func TestReadLocationListSeedsLocal(t *testing.T) {
	h := newTestHelper(t, Options{DefaultSource: weather.SourceWeatherAPI})
	ctx := context.Background()

	list, err := h.ReadLocationList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].CurrentPosition)
	assert.False(t, list[0].IsUsable())
	assert.Equal(t, weather.SourceWeatherAPI, list[0].Source)

	// A second read must not seed again.
	list, err = h.ReadLocationList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReadLocationListConcurrentSeed(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ReadLocationList(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := h.CountLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWriteLocationUpsert(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()

	paris := testLocation("paris")
	berlin := testLocation("berlin")
	berlin.City = "Berlin"

	require.NoError(t, h.WriteLocation(ctx, paris))
	require.NoError(t, h.WriteLocation(ctx, berlin))

	paris.District = "1er"
	paris.ResidentPosition = true
	require.NoError(t, h.WriteLocation(ctx, paris))

	list, err := h.ReadLocationList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "paris", list[0].CityID, "update keeps list position")
	assert.Equal(t, "1er", list[0].District)
	assert.True(t, list[0].ResidentPosition)
	assert.Equal(t, "berlin", list[1].CityID)

	got, err := h.ReadLocation(ctx, paris.FormattedID())
	require.NoError(t, err)
	assert.Equal(t, paris, got)
}

func TestWriteLocationListReplacesInOrder(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.WriteLocation(ctx, testLocation("old")))

	current := testLocation("here").WithPositionFlags(true, false)
	list := []weather.Location{testLocation("b"), current, testLocation("a")}
	require.NoError(t, h.WriteLocationList(ctx, list))

	got, err := h.ReadLocationList(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].CityID)
	assert.Equal(t, weather.CurrentPositionID, got[1].FormattedID())
	assert.Equal(t, "a", got[2].CityID)

	_, err = h.ReadLocation(ctx, testLocation("old").FormattedID())
	assert.True(t, errors.Is(err, ErrNotFound))
}

// failInserts makes every insert into table fail until the test ends.
func failInserts(t *testing.T, h *Helper, table string, err error) {
	t.Helper()
	name := "test:fail_" + table
	require.NoError(t, h.db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(err)
		}
	}))
	t.Cleanup(func() { _ = h.db.Callback().Create().Remove(name) })
}

func TestWriteLocationListRollsBack(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.WriteLocationList(ctx, []weather.Location{testLocation("a"), testLocation("b")}))

	boom := errors.New("disk full")
	failInserts(t, h, "locations", boom)
	err := h.WriteLocationList(ctx, []weather.Location{testLocation("c")})
	assert.ErrorIs(t, err, boom)

	got, err := h.ReadLocationList(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].CityID)
	assert.Equal(t, "b", got[1].CityID)
}

func TestDeleteLocation(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()

	loc := testLocation("paris")
	require.NoError(t, h.WriteLocation(ctx, loc))
	require.NoError(t, h.DeleteLocation(ctx, loc))

	n, err := h.CountLocation(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testWeather(publish time.Time) *weather.Weather {
	aqi := 42
	return &weather.Weather{
		Base: weather.Base{PublishTime: publish, UpdateTime: publish.Add(time.Minute)},
		Current: weather.Current{
			WeatherText:     "Rain",
			Condition:       weather.ConditionRain,
			TemperatureC:    12.5,
			Wind:            weather.Wind{Direction: "NE", Degree: 45, SpeedKph: 18, Level: 3},
			AirQualityIndex: &aqi,
		},
		Daily: []weather.Daily{
			{Date: publish, Day: weather.HalfDay{TemperatureC: 15}, Night: weather.HalfDay{TemperatureC: 7}},
			{Date: publish.AddDate(0, 0, 1), Day: weather.HalfDay{TemperatureC: 16}, Night: weather.HalfDay{TemperatureC: 8}},
		},
		Hourly: []weather.Hourly{
			{Time: publish.Add(2 * time.Hour), TemperatureC: 13},
			{Time: publish.Add(time.Hour), TemperatureC: 12},
		},
		Minutely: []weather.Minutely{
			{Time: publish, MinuteInterval: 15, PrecipitationMm: 0.4},
		},
		Alerts: []weather.Alert{
			{ID: "a1", Time: publish, Description: "Storm", Priority: 2},
		},
	}
}

func TestWriteAndReadWeather(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()
	loc := testLocation("paris")
	publish := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, h.WriteWeather(ctx, loc, testWeather(publish)))

	w, err := h.ReadWeather(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "Rain", w.Current.WeatherText)
	assert.Equal(t, 45.0, w.Current.Wind.Degree)
	require.NotNil(t, w.Current.AirQualityIndex)
	assert.Equal(t, 42, *w.Current.AirQualityIndex)
	assert.True(t, w.Base.PublishTime.Equal(publish))
	require.Len(t, w.Daily, 2)
	assert.Equal(t, 15.0, w.Daily[0].Day.TemperatureC)
	require.Len(t, w.Hourly, 2)
	assert.True(t, w.Hourly[0].Time.Before(w.Hourly[1].Time), "hourly sorted by time")
	assert.Len(t, w.Minutely, 1)
	require.Len(t, w.Alerts, 1)
	assert.Equal(t, "a1", w.Alerts[0].ID)
	assert.Nil(t, w.Yesterday)

	// Rewriting replaces rather than appends.
	next := testWeather(publish)
	next.Alerts = nil
	require.NoError(t, h.WriteWeather(ctx, loc, next))
	w, err = h.ReadWeather(ctx, loc)
	require.NoError(t, err)
	assert.Empty(t, w.Alerts)
	assert.Len(t, w.Daily, 2)
}

func TestWriteWeatherRollsBack(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()
	loc := testLocation("paris")
	publish := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, h.WriteWeather(ctx, loc, testWeather(publish)))

	boom := errors.New("disk full")
	failInserts(t, h, "alerts", boom)
	next := testWeather(publish.Add(time.Hour))
	next.Current.WeatherText = "Sunny"
	next.Daily = next.Daily[:1]
	err := h.WriteWeather(ctx, loc, next)
	assert.ErrorIs(t, err, boom)

	w, err := h.ReadWeather(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, "Rain", w.Current.WeatherText)
	assert.True(t, w.Base.PublishTime.Equal(publish))
	assert.Len(t, w.Daily, 2)
	assert.Len(t, w.Hourly, 2)
	require.Len(t, w.Alerts, 1)
	assert.Equal(t, "a1", w.Alerts[0].ID)
}

func TestReadWeatherNotFound(t *testing.T) {
	h := newTestHelper(t, Options{})
	_, err := h.ReadWeather(context.Background(), testLocation("nowhere"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestYesterdayHistoryCarriedForward(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()
	loc := testLocation("paris")

	day1 := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, h.WriteWeather(ctx, loc, testWeather(day1)))

	day2 := day1.AddDate(0, 0, 1)
	hist, err := h.ReadHistory(ctx, loc, day2)
	require.NoError(t, err)
	assert.Equal(t, 15.0, hist.DaytimeTemperatureC)
	assert.Equal(t, 7.0, hist.NighttimeTemperatureC)

	w := testWeather(day2)
	w.Yesterday = hist
	require.NoError(t, h.WriteWeather(ctx, loc, w))

	got, err := h.ReadWeather(ctx, loc)
	require.NoError(t, err)
	require.NotNil(t, got.Yesterday)
	assert.True(t, got.Yesterday.Date.Equal(day1))

	// Same-day history is not yesterday.
	_, err = h.ReadHistory(ctx, loc, day1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteWeather(t *testing.T) {
	h := newTestHelper(t, Options{})
	ctx := context.Background()
	loc := testLocation("paris")

	require.NoError(t, h.WriteWeather(ctx, loc, testWeather(time.Now().UTC())))
	require.NoError(t, h.DeleteWeather(ctx, loc))

	_, err := h.ReadWeather(ctx, loc)
	assert.True(t, errors.Is(err, ErrNotFound))
}

var testCities = []weather.ChineseCity{
	{CityID: "101010100", Province: "北京", City: "北京", District: "北京", Latitude: 39.904, Longitude: 116.391},
	{CityID: "101010200", Province: "北京", City: "北京", District: "海淀", Latitude: 39.956, Longitude: 116.310},
	{CityID: "101020100", Province: "上海", City: "上海", District: "上海", Latitude: 31.230, Longitude: 121.473},
	{CityID: "101280101", Province: "广东", City: "广州", District: "广州", Latitude: 23.129, Longitude: 113.264},
	{CityID: "101280601", Province: "广东", City: "深圳", District: "深圳", Latitude: 22.543, Longitude: 114.057},
}

func TestEnsureChineseCityList(t *testing.T) {
	h := newTestHelper(t, Options{ChineseCityCount: len(testCities)})
	ctx := context.Background()

	calls := 0
	load := func() ([]weather.ChineseCity, error) {
		calls++
		return testCities, nil
	}

	reloaded, err := h.EnsureChineseCityList(ctx, load)
	require.NoError(t, err)
	assert.True(t, reloaded)

	reloaded, err = h.EnsureChineseCityList(ctx, load)
	require.NoError(t, err)
	assert.False(t, reloaded)
	assert.Equal(t, 1, calls)

	n, err := h.CountChineseCity(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(testCities), n)
}

func TestEnsureChineseCityListLoadError(t *testing.T) {
	h := newTestHelper(t, Options{})
	boom := errors.New("boom")
	_, err := h.EnsureChineseCityList(context.Background(), func() ([]weather.ChineseCity, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestReadChineseCity(t *testing.T) {
	h := newTestHelper(t, Options{ChineseCityCount: len(testCities)})
	ctx := context.Background()
	_, err := h.EnsureChineseCityList(ctx, func() ([]weather.ChineseCity, error) { return testCities, nil })
	require.NoError(t, err)

	c, err := h.ReadChineseCity(ctx, "海淀")
	require.NoError(t, err)
	assert.Equal(t, "101010200", c.CityID)

	c, err = h.ReadChineseCity(ctx, "广东")
	require.NoError(t, err)
	assert.Equal(t, "广东", c.Province)

	_, err = h.ReadChineseCity(ctx, "火星")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadChineseCityByRegion(t *testing.T) {
	h := newTestHelper(t, Options{ChineseCityCount: len(testCities)})
	ctx := context.Background()
	_, err := h.EnsureChineseCityList(ctx, func() ([]weather.ChineseCity, error) { return testCities, nil })
	require.NoError(t, err)

	c, err := h.ReadChineseCityByRegion(ctx, "广东", "深圳", "深圳")
	require.NoError(t, err)
	assert.Equal(t, "101280601", c.CityID)

	// Unknown province still matches on city and district.
	c, err = h.ReadChineseCityByRegion(ctx, "广东省", "深圳", "深圳")
	require.NoError(t, err)
	assert.Equal(t, "101280601", c.CityID)

	// Unknown district falls back to province and city.
	c, err = h.ReadChineseCityByRegion(ctx, "广东", "广州", "天河")
	require.NoError(t, err)
	assert.Equal(t, "101280101", c.CityID)

	_, err = h.ReadChineseCityByRegion(ctx, "", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadChineseCityNearest(t *testing.T) {
	h := newTestHelper(t, Options{ChineseCityCount: len(testCities)})
	ctx := context.Background()
	_, err := h.EnsureChineseCityList(ctx, func() ([]weather.ChineseCity, error) { return testCities, nil })
	require.NoError(t, err)

	c, err := h.ReadChineseCityNearest(ctx, 39.95, 116.30)
	require.NoError(t, err)
	assert.Equal(t, "101010200", c.CityID)

	// Far from every entry, the whole catalogue is searched.
	c, err = h.ReadChineseCityNearest(ctx, 25.0, 110.0)
	require.NoError(t, err)
	assert.Equal(t, "101280101", c.CityID)
}

func TestReadChineseCityNearestOutsideFirstBox(t *testing.T) {
	cities := []weather.ChineseCity{
		{CityID: "corner", Province: "河北", City: "承德", District: "承德", Latitude: 40.95, Longitude: 116.95},
		{CityID: "east", Province: "北京", City: "北京", District: "怀柔", Latitude: 40.0, Longitude: 117.05},
	}
	h := newTestHelper(t, Options{ChineseCityCount: len(cities)})
	ctx := context.Background()
	_, err := h.EnsureChineseCityList(ctx, func() ([]weather.ChineseCity, error) { return cities, nil })
	require.NoError(t, err)

	// The corner entry sits inside the first box but is farther than east.
	c, err := h.ReadChineseCityNearest(ctx, 40.0, 116.0)
	require.NoError(t, err)
	assert.Equal(t, "east", c.CityID)
}

func TestBoxRadius(t *testing.T) {
	perDegree := 111194.9
	assert.InDelta(t, perDegree, boxRadius(0, 1), 1)
	// Meridians converge, so the longitude edge is the binding one away from the equator.
	r := boxRadius(40, 1)
	assert.Less(t, r, 0.76*perDegree)
	assert.Greater(t, r, 0.75*perDegree)
}

func TestReadChineseCityNearestEmpty(t *testing.T) {
	h := newTestHelper(t, Options{})
	_, err := h.ReadChineseCityNearest(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadChineseCityList(t *testing.T) {
	h := newTestHelper(t, Options{ChineseCityCount: len(testCities)})
	ctx := context.Background()
	_, err := h.EnsureChineseCityList(ctx, func() ([]weather.ChineseCity, error) { return testCities, nil })
	require.NoError(t, err)

	list, err := h.ReadChineseCityList(ctx, "北京")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = h.ReadChineseCityList(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, list)
}
