package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/config"
	"github.com/UnknownOlympus/nightspot/internal/directions"
	"github.com/UnknownOlympus/nightspot/internal/engine"
	"github.com/UnknownOlympus/nightspot/internal/geocoding"
	"github.com/UnknownOlympus/nightspot/internal/geolocation"
	"github.com/UnknownOlympus/nightspot/internal/mapview"
	"github.com/UnknownOlympus/nightspot/internal/metrics"
	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/UnknownOlympus/nightspot/internal/poi"
	"github.com/UnknownOlympus/nightspot/internal/repository"
	"github.com/UnknownOlympus/nightspot/internal/service"
	"github.com/UnknownOlympus/nightspot/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

const (
	initialZoom  = 13
	geoClueAppID = "nightspot"
	// providerRateLimit is shared by all workers talking to one provider.
	providerRateLimit = 20
)

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	dtb, users := setupProfiles(ctx, cfg, logger)
	if dtb != nil {
		defer dtb.Close()
	}

	source, err := poi.NewSource(poi.SourceConfig{
		Type:      poi.SourceType(cfg.Source.Type),
		APIKey:    cfg.Source.APIKey,
		Path:      cfg.Source.Path,
		RateLimit: cfg.Source.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create catalog source: %v", err)
	}

	var router directions.Provider
	if cfg.Directions.Provider != "" {
		router, err = directions.NewProvider(directions.ProviderConfig{
			Type:      directions.ProviderType(cfg.Directions.Provider),
			KeyID:     cfg.Directions.KeyID,
			Key:       cfg.Directions.Key,
			RateLimit: providerRateLimit,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("Failed to create directions provider: %v", err)
		}
		logger.InfoContext(ctx, "Directions provider initialized", "type", cfg.Directions.Provider)
	}

	var geocoder geocoding.Provider
	if cfg.Geocoder.Provider != "" {
		geocoder, err = geocoding.NewProvider(geocoding.ProviderConfig{
			Type:      geocoding.ProviderType(cfg.Geocoder.Provider),
			APIKey:    cfg.Geocoder.APIKey,
			RateLimit: max(1, providerRateLimit/max(1, cfg.Workers)),
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("Failed to create geocoding provider: %v", err)
		}
		logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.Geocoder.Provider)
	}

	home := models.Coordinates{Latitude: cfg.Map.DefaultLat, Longitude: cfg.Map.DefaultLon}
	places := store.New(source, users, cfg.UserID, logger, appMetrics)

	eng := engine.New(engine.Deps{
		Map:        mapview.NewHeadless(home, initialZoom),
		Store:      places,
		Directions: router,
		Geocoder:   geocoder,
		Locator:    setupLocator(cfg.Locator, home, logger),
		Metrics:    appMetrics,
		Logger:     logger,
	}, engine.Options{
		Epsilon:         cfg.Map.Epsilon,
		FocusZoom:       cfg.Map.FocusZoom,
		DefaultPosition: home,
	})

	if err = eng.Dispatch(ctx, engine.Reload{}); err != nil {
		logger.ErrorContext(ctx, "Initial catalog load failed", "error", err)
	}
	if err = eng.Dispatch(ctx, engine.Locate{}); err != nil {
		logger.WarnContext(ctx, "Could not determine position", "error", err)
	}

	syncService := service.NewSyncService(
		logger,
		places,
		geocoder,
		cfg.Geocoder.Provider, // Provider name for metrics
		appMetrics,
		cfg.Workers,
		cfg.Interval,
	)

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.",
		"places", places.Len(), "visible", len(eng.Visible()))

	// Start the monitoring server in a goroutine to allow main to listen for signals.
	go startMonitoringServer(ctx, logger, reg, dtb, cfg.Port)

	go syncService.Run(ctx)

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// setupProfiles connects to PostgreSQL when a database host is configured and
// falls back to in-memory profiles otherwise.
func setupProfiles(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, repository.Interface) {
	if cfg.Database.Host == "" {
		logger.InfoContext(ctx, "No database configured, profiles are kept in memory")
		return nil, repository.NewMemory(models.User{ID: cfg.UserID, Username: cfg.UserID})
	}

	dtb, err := repository.NewDatabase(
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
	)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	repo := repository.NewRepository(dtb, logger)
	if err = repo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare DB: %v", err)
	}
	if err = repo.EnsureUser(ctx, cfg.UserID, cfg.UserID); err != nil {
		log.Fatalf("Failed to prepare user profile: %v", err)
	}

	return dtb, repo
}

// setupLocator returns the position source named in the configuration.
func setupLocator(kind string, home models.Coordinates, logger *slog.Logger) geolocation.Locator {
	switch kind {
	case "ip":
		return geolocation.NewIPLocator(logger)
	case "geoclue":
		return geolocation.NewGeoClueLocator(geoClueAppID, logger)
	default:
		return geolocation.Static{Position: home}
	}
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints.
// It listens on the specified port and logs the server's status and any errors encountered.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - dtb: A pgxpool connector for database methods (ping), nil without a database
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	dtb *pgxpool.Pool,
	port int,
) {
	http.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		status, body := http.StatusOK, "OK"
		if dtb == nil {
			log.DebugContext(ctx, "No database to check")
		} else if err := dtb.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, "DB ping failed"
		}
		writer.WriteHeader(status)
		_, err := writer.Write([]byte(body))
		if err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}

		log.DebugContext(ctx, "Health checks completed", "status", http.StatusOK)
	})
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      http.DefaultServeMux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelInfo,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					return a
				},
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified	 or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
