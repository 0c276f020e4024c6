package poi

import (
	"errors"
	"fmt"
	"log/slog"
)

// SourceType represents the kind of catalog source.
type SourceType string

const (
	// SourceTypeSeoul reads the Seoul open-data API.
	SourceTypeSeoul SourceType = "seoul"
	// SourceTypeFile reads a JSON snapshot from disk.
	SourceTypeFile SourceType = "file"
)

// SourceConfig holds configuration for creating a catalog source.
type SourceConfig struct {
	Type      SourceType
	APIKey    string // Seoul open-data key
	Path      string // snapshot path for the file source
	RateLimit int    // requests per second for the Seoul source
	Logger    *slog.Logger
}

// NewSource creates a catalog source based on the provided configuration.
func NewSource(config SourceConfig) (Source, error) {
	switch config.Type {
	case SourceTypeSeoul:
		if config.APIKey == "" {
			return nil, errors.New("API key is required for Seoul source")
		}
		if config.RateLimit == 0 {
			config.RateLimit = 1
		}
		return NewSeoulSource(config.APIKey, config.RateLimit, config.Logger), nil
	case SourceTypeFile:
		if config.Path == "" {
			return nil, errors.New("path is required for file source")
		}
		return NewFileSource(config.Path), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", config.Type)
	}
}
