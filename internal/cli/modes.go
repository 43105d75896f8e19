package cli

import (
	"fmt"
	"strconv"
	"strings"

	"delivery-dispatch/internal/domain/geo"
)

const (
	ModeDispatch = "dispatch-service"
	ModeAgent    = "driver-agent"
	ModeToken    = "token"
)

// Aliases lists the shorthand names accepted for each mode.
var Aliases = map[string][]string{
	ModeDispatch: {"dispatch", "d"},
	ModeAgent:    {"agent", "a"},
	ModeToken:    {"key", "t"},
}

// ParsePoint reads "lat,lng" into a validated point.
func ParsePoint(s string) (geo.Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("point %q: expected lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("point %q: latitude: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("point %q: longitude: %w", s, err)
	}
	return geo.NewPoint(lat, lng)
}
