// Package units converts stored weather values (km/h, °C, %) into display units.
package units

import (
	"math"
	"strconv"
	"strings"
)

// narrowNoBreakSpace separates a value from its unit.
const narrowNoBreakSpace = "\u202f"

// SpeedUnit converts speeds stored in km/h.
type SpeedUnit struct {
	ID     string
	factor float64 // display = kph * factor
}

var (
	SpeedKPH  = SpeedUnit{ID: "kph", factor: 1}
	SpeedMPS  = SpeedUnit{ID: "mps", factor: 1 / 3.6}
	SpeedKN   = SpeedUnit{ID: "kn", factor: 1 / 1.852}
	SpeedMPH  = SpeedUnit{ID: "mph", factor: 1 / 1.609}
	SpeedFTPS = SpeedUnit{ID: "ftps", factor: 0.9113}
)

// SpeedUnits lists every speed unit.
var SpeedUnits = []SpeedUnit{SpeedKPH, SpeedMPS, SpeedKN, SpeedMPH, SpeedFTPS}

// ParseSpeedUnit returns the unit with the given id, or km/h.
func ParseSpeedUnit(id string) SpeedUnit {
	for _, u := range SpeedUnits {
		if u.ID == id {
			return u
		}
	}
	return SpeedKPH
}

// Value converts a km/h value into this unit.
func (u SpeedUnit) Value(kph float64) float64 { return kph * u.factor }

// ValueInDefault converts a value in this unit back to km/h.
func (u SpeedUnit) ValueInDefault(v float64) float64 { return v / u.factor }

// ValueText formats a km/h value in this unit with one decimal.
func (u SpeedUnit) ValueText(kph float64, rtl bool) string {
	return join(formatFloat(u.Value(kph), 1), u.ID, rtl)
}

// RelativeHumidityUnit formats relative humidity stored in percent.
type RelativeHumidityUnit struct {
	ID     string
	factor float64
}

var HumidityPercent = RelativeHumidityUnit{ID: "%", factor: 1}

// ParseRelativeHumidityUnit returns the unit with the given id. Percent is the only one.
func ParseRelativeHumidityUnit(string) RelativeHumidityUnit { return HumidityPercent }

func (u RelativeHumidityUnit) Value(percent float64) int {
	return int(percent * u.factor)
}

func (u RelativeHumidityUnit) ValueInDefault(v int) int {
	return int(float64(v) / u.factor)
}

// ValueText always puts the percent sign after the value, in either direction.
func (u RelativeHumidityUnit) ValueText(percent float64, _ bool) string {
	return strconv.Itoa(u.Value(percent)) + narrowNoBreakSpace + u.ID
}

// TemperatureUnit converts temperatures stored in °C.
type TemperatureUnit struct {
	ID     string
	Symbol string
	scale  float64
	offset float64 // display = c * scale + offset
}

var (
	TemperatureC = TemperatureUnit{ID: "c", Symbol: "°C", scale: 1}
	TemperatureF = TemperatureUnit{ID: "f", Symbol: "°F", scale: 9.0 / 5.0, offset: 32}
	TemperatureK = TemperatureUnit{ID: "k", Symbol: "K", scale: 1, offset: 273.15}
)

// TemperatureUnits lists every temperature unit.
var TemperatureUnits = []TemperatureUnit{TemperatureC, TemperatureF, TemperatureK}

// ParseTemperatureUnit returns the unit with the given id, or °C.
func ParseTemperatureUnit(id string) TemperatureUnit {
	id = strings.ToLower(id)
	for _, u := range TemperatureUnits {
		if u.ID == id {
			return u
		}
	}
	return TemperatureC
}

func (u TemperatureUnit) Value(c float64) float64 { return c*u.scale + u.offset }

func (u TemperatureUnit) ValueInDefault(v float64) float64 { return (v - u.offset) / u.scale }

// ValueText formats a °C value in this unit, rounded to a whole degree.
func (u TemperatureUnit) ValueText(c float64, rtl bool) string {
	return join(strconv.Itoa(int(math.Round(u.Value(c)))), u.Symbol, rtl)
}

func formatFloat(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func join(value, unit string, rtl bool) string {
	if rtl {
		return unit + narrowNoBreakSpace + value
	}
	return value + narrowNoBreakSpace + unit
}
