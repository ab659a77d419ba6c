package httpapi

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/i474232898/geometric-weather/internal/db"
	"github.com/i474232898/geometric-weather/internal/location"
	"github.com/i474232898/geometric-weather/internal/polling"
	"github.com/i474232898/geometric-weather/internal/store"
	"github.com/i474232898/geometric-weather/internal/units"
	"github.com/i474232898/geometric-weather/internal/weather"
)

var validate = validator.New()

// Locator resolves the current position.
type Locator interface {
	RequestLocation(ctx context.Context, loc weather.Location, background bool) (weather.Location, error)
	Permissions() []location.Permission
	Provider() location.Provider
}

// Weather fetches weather and searches locations.
type Weather interface {
	RequestWeather(ctx context.Context, loc weather.Location) (*weather.Weather, error)
	QueryLocation(ctx context.Context, source weather.Source, query string) ([]weather.Location, error)
}

// Poller runs a polling pass on demand.
type Poller interface {
	RunNow(ctx context.Context) (polling.Report, error)
}

// Deps are the components the HTTP API serves.
type Deps struct {
	Store     *db.Helper
	Locator   Locator
	Weather   Weather
	Poller    Poller
	Native    *location.NativeService
	Positions *store.PositionStore
	DeviceID  string
	Source    weather.Source
	Logger    *zap.Logger
}

// ErrorHandler renders every error as JSON, mapping domain errors onto status codes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, db.ErrNotFound), errors.Is(err, store.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, weather.ErrUnknownSource):
		code = fiber.StatusBadRequest
	case errors.Is(err, weather.ErrUnusableLocation):
		code = fiber.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusGatewayTimeout
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Source == "" {
		deps.Source = weather.SourceOpenMeteo
	}
	h := &handlers{Deps: deps}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "geometric-weather",
		})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/locations", h.listLocations)
	v1.Put("/locations", h.replaceLocations)
	v1.Post("/locations", h.upsertLocation)
	v1.Post("/locations/current/resolve", h.resolveCurrent)
	v1.Get("/locations/search", h.searchLocations)
	v1.Get("/locations/:id", h.getLocation)
	v1.Delete("/locations/:id", h.deleteLocation)
	v1.Get("/locations/:id/weather", h.getWeather)
	v1.Post("/locations/:id/weather/refresh", h.refreshWeather)
	v1.Get("/locations/:id/summary", h.summary)

	v1.Post("/device/position", h.reportPosition)
	v1.Get("/device/position/history", h.positionHistory)

	v1.Get("/cities", h.listCities)
	v1.Get("/cities/nearest", h.nearestCity)

	v1.Get("/permissions", h.permissions)
	v1.Post("/poll", h.poll)
}

type handlers struct {
	Deps
}

func (h *handlers) listLocations(c *fiber.Ctx) error {
	list, err := h.Store.ReadLocationList(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *handlers) replaceLocations(c *fiber.Ctx) error {
	var list []weather.Location
	if err := c.BodyParser(&list); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	seen := make(map[string]struct{}, len(list))
	for _, loc := range list {
		if err := validateLocation(loc); err != nil {
			return err
		}
		id := loc.FormattedID()
		if _, dup := seen[id]; dup {
			return fiber.NewError(fiber.StatusBadRequest, "duplicate location "+id)
		}
		seen[id] = struct{}{}
	}
	if err := h.Store.WriteLocationList(c.UserContext(), list); err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *handlers) upsertLocation(c *fiber.Ctx) error {
	var loc weather.Location
	if err := c.BodyParser(&loc); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validateLocation(loc); err != nil {
		return err
	}
	if err := h.Store.WriteLocation(c.UserContext(), loc); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(loc)
}

func (h *handlers) getLocation(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}
	return c.JSON(loc)
}

func (h *handlers) deleteLocation(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}
	if err := h.Store.DeleteLocation(c.UserContext(), loc); err != nil {
		return err
	}
	if err := h.Store.DeleteWeather(c.UserContext(), loc); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) resolveCurrent(c *fiber.Ctx) error {
	background := c.QueryBool("background", false)

	list, err := h.Store.ReadLocationList(c.UserContext())
	if err != nil {
		return err
	}
	current := weather.BuildLocal(h.Source)
	for _, loc := range list {
		if loc.CurrentPosition {
			current = loc
			break
		}
	}

	resolved, err := h.Locator.RequestLocation(c.UserContext(), current, background)
	resp := fiber.Map{
		"location": resolved,
		"resolved": err == nil,
	}
	if err != nil {
		h.Logger.Info("current position not resolved", zap.Error(err))
		resp["reason"] = err.Error()
	}
	return c.JSON(resp)
}

func (h *handlers) searchLocations(c *fiber.Ctx) error {
	var q searchQuery
	if err := q.bind(c, h.Source); err != nil {
		return err
	}
	locs, err := h.Weather.QueryLocation(c.UserContext(), q.Source, q.Query)
	if err != nil {
		return err
	}
	return c.JSON(locs)
}

func (h *handlers) getWeather(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}
	w, err := h.Store.ReadWeather(c.UserContext(), loc)
	if err != nil {
		return err
	}
	return c.JSON(w)
}

func (h *handlers) refreshWeather(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}
	w, err := h.Weather.RequestWeather(c.UserContext(), loc)
	if err != nil {
		return err
	}
	return c.JSON(w)
}

func (h *handlers) summary(c *fiber.Ctx) error {
	loc, err := h.location(c)
	if err != nil {
		return err
	}
	w, err := h.Store.ReadWeather(c.UserContext(), loc)
	if err != nil {
		return err
	}

	speed := units.ParseSpeedUnit(c.Query("speedUnit"))
	temp := units.ParseTemperatureUnit(c.Query("temperatureUnit"))
	humidity := units.ParseRelativeHumidityUnit(c.Query("humidityUnit"))
	rtl := c.QueryBool("rtl", false)

	cur := w.Current
	return c.JSON(fiber.Map{
		"location":    loc.Name(),
		"weather":     cur.WeatherText,
		"condition":   cur.Condition,
		"temperature": temp.ValueText(cur.TemperatureC, rtl),
		"feelsLike":   temp.ValueText(cur.FeelsLikeC, rtl),
		"wind":        speed.ValueText(cur.Wind.SpeedKph, rtl),
		"humidity":    humidity.ValueText(cur.RelativeHumidity, rtl),
		"updated":     w.Base.UpdateTime,
	})
}

func (h *handlers) reportPosition(c *fiber.Ctx) error {
	if h.Native == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "native positioning is not enabled")
	}
	var req positionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	fix := req.fix()
	h.Native.Report(fix)
	return c.Status(fiber.StatusAccepted).JSON(fix)
}

func (h *handlers) positionHistory(c *fiber.Ctx) error {
	if h.Positions == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "native positioning is not enabled")
	}
	var req historyQuery
	if err := req.bind(c); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	fixes, err := h.Positions.Range(h.DeviceID, req.From, req.To)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"device": h.DeviceID,
		"from":   req.From,
		"to":     req.To,
		"fixes":  fixes,
	})
}

func (h *handlers) listCities(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name query parameter is required")
	}
	cities, err := h.Store.ReadChineseCityList(c.UserContext(), name)
	if err != nil {
		return err
	}
	return c.JSON(cities)
}

func (h *handlers) nearestCity(c *fiber.Ctx) error {
	var q coordinateQuery
	if err := q.bind(c); err != nil {
		return err
	}
	city, err := h.Store.ReadChineseCityNearest(c.UserContext(), *q.Latitude, *q.Longitude)
	if err != nil {
		return err
	}
	return c.JSON(city)
}

func (h *handlers) permissions(c *fiber.Ctx) error {
	perms := h.Locator.Permissions()
	if perms == nil {
		perms = []location.Permission{}
	}
	return c.JSON(fiber.Map{
		"provider":    h.Locator.Provider(),
		"permissions": perms,
	})
}

func (h *handlers) poll(c *fiber.Ctx) error {
	if h.Poller == nil {
		return fiber.NewError(fiber.StatusNotImplemented, "polling is not enabled")
	}
	report, err := h.Poller.RunNow(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// location loads the stored location named by the :id path parameter.
func (h *handlers) location(c *fiber.Ctx) (weather.Location, error) {
	id, err := url.PathUnescape(c.Params("id"))
	if err != nil || id == "" {
		return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, "invalid location id")
	}
	return h.Store.ReadLocation(c.UserContext(), id)
}

func validateLocation(loc weather.Location) error {
	if err := validate.Struct(loc); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if _, err := weather.ParseSource(string(loc.Source)); err != nil {
		return err
	}
	return nil
}

func parseFloat(c *fiber.Ctx, key string) (*float64, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return &f, nil
}
