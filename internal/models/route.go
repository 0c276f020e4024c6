package models

import (
	"fmt"
	"time"
)

// RouteSummary describes the whole driving route.
type RouteSummary struct {
	DistanceMeters int           `json:"distance"`
	Duration       time.Duration `json:"duration"`
	DepartureTime  time.Time     `json:"departure_time"`
}

// GuideStep is one turn-by-turn instruction. PointIndex refers to Route.Path.
type GuideStep struct {
	DistanceMeters int           `json:"distance"`
	Duration       time.Duration `json:"duration"`
	PointIndex     int           `json:"point_index"`
	Instructions   string        `json:"instructions"`
}

// Route is the result of a directions request.
type Route struct {
	Path    []Coordinates `json:"path"`
	Summary RouteSummary  `json:"summary"`
	Guide   []GuideStep   `json:"guide"`
}

// Bounds returns the bounds of the route path.
func (r Route) Bounds() (Bounds, bool) {
	return BoundsOf(r.Path)
}

// RoutePoints is a pending start/end pair for a directions request.
type RoutePoints struct {
	Start Coordinates `json:"start"`
	End   Coordinates `json:"end"`
}

// FormatDistance renders a distance the way the route panel shows it: "850m", "1.2km".
func FormatDistance(meters int) string {
	const metersInKm = 1000
	if meters >= metersInKm {
		return fmt.Sprintf("%.1fkm", float64(meters)/metersInKm)
	}

	return fmt.Sprintf("%dm", meters)
}

// FormatDuration renders a travel time as hours and minutes, minutes, or seconds.
func FormatDuration(d time.Duration) string {
	total := int(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%d시간 %d분", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%d분", minutes)
	default:
		return fmt.Sprintf("%d초", seconds)
	}
}
