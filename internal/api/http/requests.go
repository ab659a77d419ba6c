package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/geometric-weather/internal/store"
	"github.com/i474232898/geometric-weather/internal/weather"
)

// searchQuery holds query parameters for the location search endpoint.
type searchQuery struct {
	Source weather.Source
	Query  string `validate:"required,max=100"`
}

func (q *searchQuery) bind(c *fiber.Ctx, def weather.Source) error {
	q.Query = c.Query("q")
	q.Source = def
	if s := c.Query("source"); s != "" {
		src, err := weather.ParseSource(s)
		if err != nil {
			return err
		}
		q.Source = src
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// coordinateQuery holds lat/lon query parameters.
type coordinateQuery struct {
	Latitude  *float64 `validate:"required,gte=-90,lte=90"`
	Longitude *float64 `validate:"required,gte=-180,lte=180"`
}

func (q *coordinateQuery) bind(c *fiber.Ctx) error {
	var err error
	if q.Latitude, err = parseFloat(c, "lat"); err != nil {
		return err
	}
	if q.Longitude, err = parseFloat(c, "lon"); err != nil {
		return err
	}
	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// positionRequest is a fix reported by the host device.
type positionRequest struct {
	Latitude  *float64  `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64  `json:"longitude" validate:"required,gte=-180,lte=180"`
	Accuracy  float64   `json:"accuracy" validate:"gte=0"`
	Time      time.Time `json:"time"`
}

func (r positionRequest) fix() store.Fix {
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	return store.Fix{
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		Accuracy:  r.Accuracy,
		Time:      t.UTC(),
	}
}

// historyQuery holds query parameters for the position history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
