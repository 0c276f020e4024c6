package directions

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"googlemaps.github.io/maps"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// GoogleAPIClient is the part of *maps.Client used by GoogleProvider.
type GoogleAPIClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
}

// GoogleProvider requests driving routes from the Google Maps Directions API.
type GoogleProvider struct {
	client GoogleAPIClient
	log    *slog.Logger
}

// NewGoogleProvider creates a GoogleProvider on top of the given client.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Route requests a driving route. The path is the decoded overview polyline and
// each guide step points at the path vertex closest to where the step ends.
func (gp *GoogleProvider) Route(ctx context.Context, start, end models.Coordinates) (*models.Route, error) {
	req := &maps.DirectionsRequest{
		Origin:      latLng(start),
		Destination: latLng(end),
		Mode:        maps.TravelModeDriving,
		Language:    "ko",
	}

	gp.log.DebugContext(ctx, "Requesting route from Google Maps", "origin", req.Origin, "destination", req.Destination)

	routes, _, err := gp.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to request directions: %w", ErrDirections, err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrDirections, ErrNoRoute)
	}

	first := routes[0]
	points, err := first.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode polyline: %w", ErrDirections, err)
	}

	route := models.Route{Path: make([]models.Coordinates, 0, len(points))}
	path := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		route.Path = append(route.Path, models.Coordinates{Latitude: p.Lat, Longitude: p.Lng})
		path = append(path, orb.Point{p.Lng, p.Lat})
	}

	for i, leg := range first.Legs {
		if i == 0 {
			route.Summary.DepartureTime = leg.DepartureTime
		}
		route.Summary.DistanceMeters += leg.Meters
		route.Summary.Duration += leg.Duration

		for _, step := range leg.Steps {
			index := 0
			if len(path) > 0 {
				_, index = planar.DistanceFromWithIndex(path, orb.Point{step.EndLocation.Lng, step.EndLocation.Lat})
			}
			route.Guide = append(route.Guide, models.GuideStep{
				DistanceMeters: step.Meters,
				Duration:       step.Duration,
				PointIndex:     index,
				Instructions:   htmlTag.ReplaceAllString(step.HTMLInstructions, ""),
			})
		}
	}

	return &route, nil
}

func latLng(c models.Coordinates) string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
