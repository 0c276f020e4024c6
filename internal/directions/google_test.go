package directions_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/directions"
	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/UnknownOlympus/nightspot/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGoogleProvider_Route(t *testing.T) {
	mockClient := mocks.NewGoogleDirectionsClient(t)
	provider := directions.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()
	start := models.Coordinates{Latitude: 37.5666103, Longitude: 126.9783882}
	end := models.Coordinates{Latitude: 37.5512, Longitude: 126.9882}
	req := &maps.DirectionsRequest{
		Origin:      "37.5666103,126.9783882",
		Destination: "37.5512,126.9882",
		Mode:        maps.TravelModeDriving,
		Language:    "ko",
	}

	t.Run("api returns error", func(t *testing.T) {
		mockClient.On("Directions", ctx, req).Return(nil, nil, assert.AnError).Once()

		route, err := provider.Route(ctx, start, end)

		require.Nil(t, route)
		require.ErrorIs(t, err, directions.ErrDirections)
		require.ErrorIs(t, err, assert.AnError)
		mockClient.AssertExpectations(t)
	})

	t.Run("no routes", func(t *testing.T) {
		mockClient.On("Directions", ctx, req).Return([]maps.Route{}, nil, nil).Once()

		_, err := provider.Route(ctx, start, end)

		require.ErrorIs(t, err, directions.ErrNoRoute)
		mockClient.AssertExpectations(t)
	})

	t.Run("successful route", func(t *testing.T) {
		path := []maps.LatLng{
			{Lat: 37.56661, Lng: 126.97839},
			{Lat: 37.56, Lng: 126.98},
			{Lat: 37.5512, Lng: 126.9882},
		}
		departure := time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)
		routes := []maps.Route{{
			OverviewPolyline: maps.Polyline{Points: maps.Encode(path)},
			Legs: []*maps.Leg{{
				Distance:      maps.Distance{Meters: 2450},
				Duration:      9 * time.Minute,
				DepartureTime: departure,
				Steps: []*maps.Step{
					{
						HTMLInstructions: "<b>세종대로</b> 방면으로 우회전",
						Distance:         maps.Distance{Meters: 800},
						Duration:         2 * time.Minute,
						EndLocation:      maps.LatLng{Lat: 37.5601, Lng: 126.9799},
					},
					{
						HTMLInstructions: "목적지",
						Distance:         maps.Distance{Meters: 1650},
						Duration:         7 * time.Minute,
						EndLocation:      maps.LatLng{Lat: 37.5512, Lng: 126.9882},
					},
				},
			}},
		}}
		mockClient.On("Directions", ctx, mock.AnythingOfType("*maps.DirectionsRequest")).Return(routes, nil, nil).Once()

		route, err := provider.Route(ctx, start, end)

		require.NoError(t, err)
		require.Len(t, route.Path, 3)
		assert.InDelta(t, 37.5512, route.Path[2].Latitude, 1e-5)
		assert.Equal(t, 2450, route.Summary.DistanceMeters)
		assert.Equal(t, 9*time.Minute, route.Summary.Duration)
		assert.Equal(t, departure, route.Summary.DepartureTime)
		require.Len(t, route.Guide, 2)
		assert.Equal(t, "세종대로 방면으로 우회전", route.Guide[0].Instructions)
		assert.Equal(t, 1, route.Guide[0].PointIndex)
		assert.Equal(t, 2, route.Guide[1].PointIndex)
		mockClient.AssertExpectations(t)
	})
}
