package directions

import (
	"context"
	"errors"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

// ErrDirections is wrapped by every error a directions provider returns.
var ErrDirections = errors.New("directions request failed")

// Provider requests a driving route between two coordinates.
type Provider interface {
	Route(ctx context.Context, start, end models.Coordinates) (*models.Route, error)
}
