// Package cluster groups places whose coordinates fall into the same tolerance bucket.
package cluster

import (
	"fmt"
	"math"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

// DefaultEpsilon is the bucket size in degrees, roughly 11 m of latitude.
const DefaultEpsilon = 1e-4

// Clusterer buckets places by rounded coordinates. It holds no state besides its tolerance,
// so Group is a pure function of its input.
type Clusterer struct {
	epsilon float64
}

// New returns a Clusterer with the given tolerance. Non-positive values fall back to DefaultEpsilon.
func New(epsilon float64) *Clusterer {
	if epsilon <= 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		epsilon = DefaultEpsilon
	}

	return &Clusterer{epsilon: epsilon}
}

// Epsilon returns the configured tolerance.
func (c *Clusterer) Epsilon() float64 {
	return c.epsilon
}

// Key returns the bucket key for a coordinate.
func (c *Clusterer) Key(pos models.Coordinates) string {
	lat := int64(math.Round(pos.Latitude / c.epsilon))
	lon := int64(math.Round(pos.Longitude / c.epsilon))

	return fmt.Sprintf("%d:%d", lat, lon)
}

// Group partitions the places into clusters. Buckets are returned in order of first
// appearance, members in input order, and the first member's position represents the cluster.
// Places without usable coordinates cannot be bucketed; they are returned separately.
func (c *Clusterer) Group(places []models.Place) ([]models.Cluster, []models.Place) {
	index := make(map[string]int, len(places))
	clusters := make([]models.Cluster, 0, len(places))
	var rejected []models.Place

	for _, place := range places {
		if !place.Position.Valid() {
			rejected = append(rejected, place)
			continue
		}

		key := c.Key(place.Position)
		idx, ok := index[key]
		if !ok {
			idx = len(clusters)
			index[key] = idx
			clusters = append(clusters, models.Cluster{Key: key, Position: place.Position})
		}
		clusters[idx].Members = append(clusters[idx].Members, place)
	}

	return clusters, rejected
}
