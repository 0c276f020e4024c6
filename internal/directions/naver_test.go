package directions_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/directions"
	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func respond(status int, body string) func(*http.Request) (*http.Response, error) {
	return func(_ *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
		}, nil
	}
}

const naverRoute = `{
	"code": 0,
	"message": "길찾기를 성공하였습니다.",
	"route": {"traoptimal": [{
		"summary": {"distance": 2450, "duration": 540000, "departureTime": "2024-05-01T21:30:00"},
		"path": [[126.9783882, 37.5666103], [126.98, 37.56], [126.9882, 37.5512]],
		"guide": [
			{"pointIndex": 1, "type": 3, "instructions": "세종대로 방면으로 우회전", "distance": 800, "duration": 120000},
			{"pointIndex": 2, "type": 88, "instructions": "목적지", "distance": 1650, "duration": 420000}
		]
	}]}
}`

func TestNaverProvider_Route(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()
	limiter := rate.NewLimiter(rate.Inf, 0)
	start := models.Coordinates{Latitude: 37.5666103, Longitude: 126.9783882}
	end := models.Coordinates{Latitude: 37.5512, Longitude: 126.9882}

	t.Run("successful route", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Contains(t, req.URL.String(), directions.NaverBaseURL)
				assert.Equal(t, "126.9783882,37.5666103", req.URL.Query().Get("start"))
				assert.Equal(t, "126.9882,37.5512", req.URL.Query().Get("goal"))
				assert.Equal(t, "id", req.Header.Get("X-NCP-APIGW-API-KEY-ID"))
				assert.Equal(t, "secret", req.Header.Get("X-NCP-APIGW-API-KEY"))

				return respond(http.StatusOK, naverRoute)(req)
			},
		}

		provider := directions.NewNaverProviderWithClient(mockClient, "id", "secret", limiter, logger)
		route, err := provider.Route(ctx, start, end)

		require.NoError(t, err)
		require.Len(t, route.Path, 3)
		assert.Equal(t, start, route.Path[0])
		assert.Equal(t, 2450, route.Summary.DistanceMeters)
		assert.Equal(t, 9*time.Minute, route.Summary.Duration)
		assert.Equal(t, 21, route.Summary.DepartureTime.Hour())
		require.Len(t, route.Guide, 2)
		assert.Equal(t, 1, route.Guide[0].PointIndex)
		assert.Equal(t, "세종대로 방면으로 우회전", route.Guide[0].Instructions)
		assert.Equal(t, 2*time.Minute, route.Guide[0].Duration)
	})

	t.Run("non-success code", func(t *testing.T) {
		mockClient := &mockHTTPClient{doFunc: respond(http.StatusOK, `{"code": 1, "message": "출발지와 도착지가 동일합니다."}`)}

		provider := directions.NewNaverProviderWithClient(mockClient, "id", "secret", limiter, logger)
		route, err := provider.Route(ctx, start, end)

		require.Nil(t, route)
		require.ErrorIs(t, err, directions.ErrDirections)
		assert.ErrorContains(t, err, "naver code 1")
	})

	t.Run("empty route list", func(t *testing.T) {
		mockClient := &mockHTTPClient{doFunc: respond(http.StatusOK, `{"code": 0, "route": {}}`)}

		provider := directions.NewNaverProviderWithClient(mockClient, "id", "secret", limiter, logger)
		_, err := provider.Route(ctx, start, end)

		require.ErrorIs(t, err, directions.ErrDirections)
		require.ErrorIs(t, err, directions.ErrNoRoute)
	})

	t.Run("HTTP error status", func(t *testing.T) {
		mockClient := &mockHTTPClient{doFunc: respond(http.StatusUnauthorized, `{}`)}

		provider := directions.NewNaverProviderWithClient(mockClient, "id", "secret", limiter, logger)
		_, err := provider.Route(ctx, start, end)

		require.ErrorIs(t, err, directions.ErrDirections)
		assert.ErrorContains(t, err, "status 401")
	})

	t.Run("transport error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		}

		provider := directions.NewNaverProviderWithClient(mockClient, "id", "secret", limiter, logger)
		_, err := provider.Route(ctx, start, end)

		require.ErrorIs(t, err, directions.ErrDirections)
		require.ErrorIs(t, err, assert.AnError)
	})

	t.Run("rate limit exceeded", func(t *testing.T) {
		rateCtx, cancel := context.WithCancel(context.Background())
		cancel()
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				t.Fatal("HTTP client should not be called when rate limit blocks")
				return &http.Response{}, nil
			},
		}

		provider := directions.NewNaverProviderWithClient(mockClient, "id", "secret",
			rate.NewLimiter(rate.Every(time.Second), 1), logger)
		_, err := provider.Route(rateCtx, start, end)

		require.ErrorIs(t, err, directions.ErrDirections)
		assert.ErrorContains(t, err, "rate limit exceeded")
	})
}
