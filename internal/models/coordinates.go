package models

import (
	"math"

	"github.com/paulmach/orb"
)

// Coordinates represents a geographical point defined by its latitude and longitude in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"lat"` // Latitude of the geographical point.
	Longitude float64 `json:"lon"` // Longitude of the geographical point.
}

// Valid reports whether the coordinates are finite and inside the WGS 84 range.
// The zero value is treated as missing, as catalog rows with empty LA/LO parse to it.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	if c.Latitude == 0 && c.Longitude == 0 {
		return false
	}

	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Point converts the coordinates into an orb point (x = longitude, y = latitude).
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// FromPoint converts an orb point back into coordinates.
func FromPoint(p orb.Point) Coordinates {
	return Coordinates{Latitude: p.Lat(), Longitude: p.Lon()}
}

// Bounds is a rectangular map area described by its south-west and north-east corners.
type Bounds struct {
	SouthWest Coordinates `json:"sw"`
	NorthEast Coordinates `json:"ne"`
}

// Bound returns the orb representation of the bounds.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest.Point(), Max: b.NorthEast.Point()}
}

// IsZero reports whether no bounds have been reported yet.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Contains reports whether the point lies inside the bounds, edges included.
func (b Bounds) Contains(c Coordinates) bool {
	return b.Bound().Contains(c.Point())
}

// Center returns the middle of the bounds.
func (b Bounds) Center() Coordinates {
	return FromPoint(b.Bound().Center())
}

// BoundsOf returns the smallest bounds containing every point.
// The second value is false when the list is empty.
func BoundsOf(points []Coordinates) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}

	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		mp = append(mp, p.Point())
	}
	bound := mp.Bound()

	return Bounds{SouthWest: FromPoint(bound.Min), NorthEast: FromPoint(bound.Max)}, true
}
