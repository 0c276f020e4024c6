package geocoding

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

// ErrNoAddress is returned when a provider has no address for the coordinate.
var ErrNoAddress = errors.New("no address found for coordinate")

// Provider turns a coordinate into a human readable address.
// The ReverseGeocode method returns ErrNoAddress (possibly wrapped) when nothing was found.
type Provider interface {
	ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.Address, error)
}
