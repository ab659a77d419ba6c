package weather

import (
	"strings"
	"time"
)

const (
	// CurrentPositionID is the formatted ID shared by every current-position location.
	CurrentPositionID = "CURRENT_POSITION"
	// NullID marks a location that has never been resolved.
	NullID = "NULL_ID"
)

// Location represents a place for which weather is tracked.
type Location struct {
	CityID    string  `json:"cityId" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	TimeZone  string  `json:"timeZone"`

	Country  string `json:"country"`
	Province string `json:"province"`
	City     string `json:"city"`
	District string `json:"district"`

	Source           Source `json:"source" validate:"required"`
	CurrentPosition  bool   `json:"currentPosition"`
	ResidentPosition bool   `json:"residentPosition"`
	China            bool   `json:"china"`
}

// FormattedID is the primary key of a stored location.
func (l Location) FormattedID() string {
	if l.CurrentPosition {
		return CurrentPositionID
	}
	return l.CityID + "&" + string(l.Source)
}

// IsUsable reports whether the location has been resolved to a real city.
func (l Location) IsUsable() bool {
	return l.CityID != "" && l.CityID != NullID
}

// Name returns a short human-readable label.
func (l Location) Name() string {
	parts := make([]string, 0, 2)
	if l.District != "" && l.District != l.City {
		parts = append(parts, l.District)
	}
	if l.City != "" {
		parts = append(parts, l.City)
	}
	if len(parts) == 0 {
		return l.Province
	}
	return strings.Join(parts, ", ")
}

// Zone resolves TimeZone, falling back to UTC.
func (l Location) Zone() *time.Location {
	if l.TimeZone == "" {
		return time.UTC
	}
	z, err := time.LoadLocation(l.TimeZone)
	if err != nil {
		return time.UTC
	}
	return z
}

// WithPositionFlags returns a copy with the position flags replaced.
func (l Location) WithPositionFlags(current, resident bool) Location {
	l.CurrentPosition = current
	l.ResidentPosition = resident
	return l
}

// WithCoordinates returns a copy placed at the given coordinates.
func (l Location) WithCoordinates(lat, lon float64, tz string) Location {
	l.Latitude = lat
	l.Longitude = lon
	l.TimeZone = tz
	return l
}

// BuildLocal returns the unresolved current-position placeholder.
func BuildLocal(source Source) Location {
	return Location{
		CityID:          NullID,
		TimeZone:        LocalZoneName(),
		Source:          source,
		CurrentPosition: true,
	}
}

// BuildDefault returns the fallback city used when positioning fails.
func BuildDefault(source Source) Location {
	return Location{
		CityID:    "101924",
		Latitude:  39.904000,
		Longitude: 116.391000,
		TimeZone:  "Asia/Shanghai",
		Country:   "中国",
		Province:  "直辖市",
		City:      "北京",
		Source:    source,
		China:     true,
	}
}

// LocalZoneName is the IANA name of the host time zone, or UTC when unknown.
func LocalZoneName() string {
	name := time.Local.String()
	if name == "Local" {
		return "UTC"
	}
	return name
}
