package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

const nominatimBaseURL = "https://nominatim.openstreetmap.org/reverse"

// NominatimProvider implements the Provider interface using OpenStreetMap's Nominatim API.
// The public instance allows about one request per second.
type NominatimProvider struct {
	client  HTTPClient
	baseURL string
	log     *slog.Logger
	// userAgent is required by Nominatim usage policy
	userAgent string
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type nominatimResponse struct {
	Error       string `json:"error"`
	DisplayName string `json:"display_name"`
	Address     struct {
		Road        string `json:"road"`
		HouseNumber string `json:"house_number"`
		Quarter     string `json:"quarter"`
		Suburb      string `json:"suburb"`
		Borough     string `json:"borough"`
		City        string `json:"city"`
	} `json:"address"`
}

// NewNominatimProvider creates a new Nominatim reverse geocoding provider.
func NewNominatimProvider(log *slog.Logger) *NominatimProvider {
	const timeout = 10
	return NewNominatimProviderWithClient(&http.Client{Timeout: timeout * time.Second}, log)
}

// NewNominatimProviderWithClient creates a Nominatim provider with a custom HTTP client.
func NewNominatimProviderWithClient(client HTTPClient, log *slog.Logger) *NominatimProvider {
	return &NominatimProvider{
		client:    client,
		baseURL:   nominatimBaseURL,
		log:       log,
		userAgent: "Nightspot/1.0 (https://github.com/UnknownOlympus/nightspot)",
	}
}

// ReverseGeocode resolves the coordinate with the /reverse endpoint.
// The road form is built from road and house number, the lot form from the district parts.
func (np *NominatimProvider) ReverseGeocode(ctx context.Context, coords models.Coordinates) (*models.Address, error) {
	reqURL, err := url.Parse(np.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("lat", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	query.Set("format", "jsonv2")
	query.Set("addressdetails", "1")
	query.Set("accept-language", "ko,en")
	reqURL.RawQuery = query.Encode()

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", np.userAgent)

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute reverse geocoding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result nominatimResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if result.Error != "" || result.DisplayName == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoAddress, result.Error)
	}

	addr := result.Address
	address := models.Address{Lot: joinNonEmpty(addr.City, addr.Borough, addr.Suburb, addr.Quarter)}
	if addr.Road != "" {
		address.Road = joinNonEmpty(addr.City, addr.Borough, addr.Road, addr.HouseNumber)
	}
	if address.Display() == "" {
		address.Lot = result.DisplayName
	}

	return &address, nil
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, " ")
}
