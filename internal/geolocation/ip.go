package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

// IPAPIBaseURL is the ip-api.com endpoint returning the caller's approximate position.
const IPAPIBaseURL = "http://ip-api.com/json/"

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// IPLocator estimates the position from the public IP address.
type IPLocator struct {
	client  HTTPClient
	baseURL string
	log     *slog.Logger
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// NewIPLocator creates an IPLocator using the default HTTP client.
func NewIPLocator(log *slog.Logger) *IPLocator {
	return NewIPLocatorWithClient(&http.Client{Timeout: DefaultTimeout}, log)
}

// NewIPLocatorWithClient creates an IPLocator with a custom HTTP client.
func NewIPLocatorWithClient(client HTTPClient, log *slog.Logger) *IPLocator {
	return &IPLocator{client: client, baseURL: IPAPIBaseURL, log: log}
}

// Locate implements Locator.
func (l *IPLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?fields=status,message,lat,lon", nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: failed to create request: %w", ErrUnavailable, err)
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	l.log.DebugContext(ctx, "IP location lookup finished", "status", resp.StatusCode, "took", time.Since(start))

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusUnauthorized:
		return models.Coordinates{}, ErrPermissionDenied
	default:
		return models.Coordinates{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result ipAPIResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: failed to decode response: %w", ErrUnavailable, err)
	}
	if result.Status != "success" {
		return models.Coordinates{}, fmt.Errorf("%w: %s", ErrUnavailable, result.Message)
	}

	return models.Coordinates{Latitude: result.Lat, Longitude: result.Lon}, nil
}
