package directions

import (
	"errors"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"
)

// ProviderType represents the type of directions provider.
type ProviderType string

const (
	// ProviderTypeNaver represents the Naver Cloud Directions 5 API.
	ProviderTypeNaver ProviderType = "naver"
	// ProviderTypeGoogle represents the Google Maps Directions API.
	ProviderTypeGoogle ProviderType = "google"
)

// ProviderConfig holds configuration for creating a directions provider.
type ProviderConfig struct {
	Type      ProviderType
	KeyID     string // Naver client id, unused by Google
	Key       string // API key or Naver client secret
	RateLimit int    // Requests per second
	Logger    *slog.Logger
}

// NewProvider creates a directions provider based on the provided configuration.
func NewProvider(config ProviderConfig) (Provider, error) {
	switch config.Type {
	case ProviderTypeNaver:
		if config.KeyID == "" || config.Key == "" {
			return nil, errors.New("key id and key are required for Naver provider")
		}
		if config.RateLimit == 0 {
			config.RateLimit = 5
			config.Logger.Warn("Rate limit for Naver API not set, set a default value", "value", config.RateLimit)
		}
		return NewNaverProvider(config.KeyID, config.Key, config.RateLimit, config.Logger), nil
	case ProviderTypeGoogle:
		if config.Key == "" {
			return nil, errors.New("API key is required for Google provider")
		}
		opts := []maps.ClientOption{maps.WithAPIKey(config.Key)}
		if config.RateLimit > 0 {
			opts = append(opts, maps.WithRateLimit(config.RateLimit))
		}
		client, err := maps.NewClient(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
		}
		return NewGoogleProvider(client, config.Logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}
