// Package citylist loads the China administrative-region catalogue.
package citylist

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/i474232898/geometric-weather/internal/weather"
)

//go:embed cities.json
var bundled []byte

// ErrEmpty is returned when a catalogue holds no entries.
var ErrEmpty = errors.New("city list is empty")

// LoadFile reads a JSON array of cities from path.
func LoadFile(path string) ([]weather.ChineseCity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read city list: %w", err)
	}
	return parse(data)
}

// Bundled returns the small catalogue shipped with the binary.
func Bundled() ([]weather.ChineseCity, error) {
	return parse(bundled)
}

// Loader returns a catalogue loader for path, or the bundled one when path is empty.
func Loader(path string) func() ([]weather.ChineseCity, error) {
	if path == "" {
		return Bundled
	}
	return func() ([]weather.ChineseCity, error) { return LoadFile(path) }
}

func parse(data []byte) ([]weather.ChineseCity, error) {
	var list []weather.ChineseCity
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode city list: %w", err)
	}
	if len(list) == 0 {
		return nil, ErrEmpty
	}
	for i, c := range list {
		if c.CityID == "" {
			return nil, fmt.Errorf("city list entry %d: missing cityId", i)
		}
	}
	return list, nil
}
