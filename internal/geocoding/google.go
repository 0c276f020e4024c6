package geocoding

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/UnknownOlympus/nightspot/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider reverse-geocodes coordinates with the Google Maps Geocoding API.
type GoogleProvider struct {
	client   GoogleAPIClient // client is the Google Maps API client
	language string
	log      *slog.Logger
}

// GoogleAPIClient is the part of *maps.Client used by GoogleProvider.
type GoogleAPIClient interface {
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// NewGoogleProvider creates a GoogleProvider on top of the given client.
// Addresses are requested in Korean.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, language: "ko", log: log}
}

// ReverseGeocode returns the address of the coordinate. The road address is taken from the first
// street-level result, the lot address from the first premise or sublocality result.
func (gp *GoogleProvider) ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.Address, error) {
	gp.log.DebugContext(ctx, "Reverse geocoding using Google Maps",
		"lat", coords.Latitude, "lon", coords.Longitude)

	req := maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: coords.Latitude, Lng: coords.Longitude},
		Language: gp.language,
	}
	results, err := gp.client.ReverseGeocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to reverse geocode coordinate: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNoAddress
	}

	var address models.Address
	for _, res := range results {
		switch {
		case address.Road == "" && hasType(res, "street_address", "route"):
			address.Road = res.FormattedAddress
		case address.Lot == "" && hasType(res, "premise", "sublocality_level_4", "political"):
			address.Lot = res.FormattedAddress
		}
	}
	if address.Display() == "" {
		address.Road = results[0].FormattedAddress
	}

	return &address, nil
}

func hasType(res maps.GeocodingResult, types ...string) bool {
	for _, t := range res.Types {
		if slices.Contains(types, t) {
			return true
		}
	}

	return false
}
