package config

import (
	"errors"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the configuration settings for the place browser.
//
// Fields:
// - Env: The current environment (e.g., local, development, production).
// - Port: The port for the monitoring server.
// - Interval: The duration between catalog reloads.
// - Workers: The number of concurrent address workers.
// - UserID: The profile the working set is built for.
// - Source, Directions, Geocoder: External collaborators.
// - Map: Clustering tolerance, focus zoom and the fallback position.
// - Locator: Which position source to use (static, ip, geoclue).
// - Database: Configuration settings for the PostgreSQL database.
type Config struct {
	Env        string        // Env is the current environment: local, development, production.
	Port       int           // Port is the monitoring server port.
	Interval   time.Duration // Interval between catalog reloads.
	Workers    int           // Workers resolving addresses concurrently.
	UserID     string
	Source     SourceConfig
	Directions DirectionsConfig
	Geocoder   GeocoderConfig
	Map        MapConfig
	Locator    string
	Database   PostgresConfig // Database holds the postgres database configuration.
}

// SourceConfig selects the catalog source.
type SourceConfig struct {
	Type      string // seoul or file
	APIKey    string // Seoul open-data key
	Path      string // snapshot file for the file source
	RateLimit int    // requests per second
}

// DirectionsConfig selects the driving directions provider.
type DirectionsConfig struct {
	Provider string // naver or google, empty disables routing
	KeyID    string
	Key      string
}

// GeocoderConfig selects the reverse geocoder.
type GeocoderConfig struct {
	Provider string // google or nominatim, empty disables address lookup
	APIKey   string
}

// MapConfig holds the map engine tuning.
type MapConfig struct {
	Epsilon    float64
	FocusZoom  int
	DefaultLat float64
	DefaultLon float64
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
// An empty Host means the profiles are kept in memory.
type PostgresConfig struct {
	Host     string // Host is the database server address.
	Port     string // Port is the database server port.
	User     string // User is the database user.
	Password string // Password is the database user's password.
	Name     string // Name is the name of the database.
}

var defaults = map[string]string{
	"env":                 "production",
	"health_port":         "8080",
	"interval":            "10m",
	"workers":             "4",
	"user_id":             "guest",
	"poi_source":          "seoul",
	"poi_rate_limit":      "5",
	"cluster_epsilon":     "0.0001",
	"focus_zoom":          "17",
	"default_lat":         "37.5666103",
	"default_lon":         "126.9783882",
	"locator":             "static",
	"geocoder_provider":   "",
	"directions_provider": "",
}

// MustLoad reads the configuration from the environment, a .env file and an
// optional nightspot.yaml in the working directory. Environment variables use
// the NIGHTSPOT_ prefix, the database keeps its DB_ names. It panics when a
// value cannot be parsed.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("nightspot")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("NIGHTSPOT")
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, env := range map[string]string{
		"db.host":     "DB_HOST",
		"db.port":     "DB_PORT",
		"db.user":     "DB_USERNAME",
		"db.password": "DB_PASSWORD",
		"db.name":     "DB_NAME",
	} {
		_ = v.BindEnv(key, env)
	}
	v.SetDefault("db.port", "5432")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic("failed to read configuration file: " + err.Error())
		}
	}

	interval, err := time.ParseDuration(v.GetString("interval"))
	if err != nil {
		panic("failed to parse interval from configuration")
	}

	healthPort, err := strconv.Atoi(v.GetString("health_port"))
	if err != nil {
		panic("failed to parse port for monitoring server from configuration")
	}

	workers, err := strconv.Atoi(v.GetString("workers"))
	if err != nil {
		panic("failed to parse workers from configuration, must be an integer types")
	}

	rateLimit, err := strconv.Atoi(v.GetString("poi_rate_limit"))
	if err != nil {
		panic("failed to parse catalog rate limit from configuration, must be an integer types")
	}

	epsilon, err := strconv.ParseFloat(v.GetString("cluster_epsilon"), 64)
	if err != nil || epsilon <= 0 {
		panic("failed to parse cluster epsilon from configuration, must be a positive number")
	}

	focusZoom, err := strconv.Atoi(v.GetString("focus_zoom"))
	if err != nil {
		panic("failed to parse focus zoom from configuration, must be an integer types")
	}

	lat, errLat := strconv.ParseFloat(v.GetString("default_lat"), 64)
	lon, errLon := strconv.ParseFloat(v.GetString("default_lon"), 64)
	if errLat != nil || errLon != nil {
		panic("failed to parse default position from configuration")
	}

	return &Config{
		Env:      v.GetString("env"),
		Port:     healthPort,
		Interval: interval,
		Workers:  workers,
		UserID:   v.GetString("user_id"),
		Source: SourceConfig{
			Type:      v.GetString("poi_source"),
			APIKey:    v.GetString("poi_api_key"),
			Path:      v.GetString("poi_file"),
			RateLimit: rateLimit,
		},
		Directions: DirectionsConfig{
			Provider: v.GetString("directions_provider"),
			KeyID:    v.GetString("directions_key_id"),
			Key:      v.GetString("directions_key"),
		},
		Geocoder: GeocoderConfig{
			Provider: v.GetString("geocoder_provider"),
			APIKey:   v.GetString("geocoder_api_key"),
		},
		Map: MapConfig{
			Epsilon:    epsilon,
			FocusZoom:  focusZoom,
			DefaultLat: lat,
			DefaultLon: lon,
		},
		Locator: v.GetString("locator"),
		Database: PostgresConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
		},
	}
}
