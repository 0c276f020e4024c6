package geolocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/godbus/dbus/v5"
)

const (
	geoService    = "org.freedesktop.GeoClue2"
	managerPath   = dbus.ObjectPath("/org/freedesktop/GeoClue2/Manager")
	managerIface  = "org.freedesktop.GeoClue2.Manager"
	clientIface   = "org.freedesktop.GeoClue2.Client"
	locationIface = "org.freedesktop.GeoClue2.Location"
	propsIface    = "org.freedesktop.DBus.Properties"

	accuracyExact = uint32(8)
	pollInterval  = 250 * time.Millisecond
)

// GeoClueLocator asks the GeoClue2 service on the system bus for a single fix.
type GeoClueLocator struct {
	desktopID string
	log       *slog.Logger
}

// NewGeoClueLocator creates a locator registered under the given desktop id.
// GeoClue refuses clients whose desktop id has no matching .desktop file.
func NewGeoClueLocator(desktopID string, log *slog.Logger) *GeoClueLocator {
	return &GeoClueLocator{desktopID: desktopID, log: log}
}

// Locate starts a GeoClue client, waits for the first location and stops the client.
func (g *GeoClueLocator) Locate(ctx context.Context) (models.Coordinates, error) {
	bus, err := dbus.ConnectSystemBus()
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: failed to connect to system bus: %w", ErrUnavailable, err)
	}
	defer bus.Close()

	var clientPath dbus.ObjectPath
	call := bus.Object(geoService, managerPath).CallWithContext(ctx, managerIface+".CreateClient", 0)
	if call.Err != nil {
		return models.Coordinates{}, classifyBusError(call.Err)
	}
	if err = call.Store(&clientPath); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	client := bus.Object(geoService, clientPath)
	props := []struct {
		name  string
		value any
	}{
		{"DesktopId", g.desktopID},
		{"RequestedAccuracyLevel", accuracyExact},
	}
	for _, prop := range props {
		err = client.CallWithContext(ctx, propsIface+".Set", 0, clientIface, prop.name, dbus.MakeVariant(prop.value)).Err
		if err != nil {
			return models.Coordinates{}, classifyBusError(err)
		}
	}

	if err = client.CallWithContext(ctx, clientIface+".Start", 0).Err; err != nil {
		return models.Coordinates{}, classifyBusError(err)
	}
	defer client.Call(clientIface+".Stop", 0)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var location dbus.Variant
		call = client.CallWithContext(ctx, propsIface+".Get", 0, clientIface, "Location")
		if call.Err == nil && call.Store(&location) == nil {
			if path, ok := location.Value().(dbus.ObjectPath); ok && path != "/" && path != "" {
				return g.readLocation(ctx, bus, path)
			}
		}

		select {
		case <-ctx.Done():
			return models.Coordinates{}, classifyBusError(ctx.Err())
		case <-ticker.C:
		}
	}
}

func (g *GeoClueLocator) readLocation(ctx context.Context, bus *dbus.Conn, path dbus.ObjectPath) (models.Coordinates, error) {
	var props map[string]dbus.Variant
	call := bus.Object(geoService, path).CallWithContext(ctx, propsIface+".GetAll", 0, locationIface)
	if call.Err != nil {
		return models.Coordinates{}, classifyBusError(call.Err)
	}
	if err := call.Store(&props); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	lat, okLat := props["Latitude"].Value().(float64)
	lon, okLon := props["Longitude"].Value().(float64)
	if !okLat || !okLon {
		return models.Coordinates{}, fmt.Errorf("%w: incomplete fix", ErrUnavailable)
	}

	g.log.DebugContext(ctx, "GeoClue fix received", "lat", lat, "lon", lon)

	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// classifyBusError maps D-Bus errors onto the package failure kinds.
func classifyBusError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	var busErr dbus.Error
	if errors.As(err, &busErr) {
		switch {
		case busErr.Name == "org.freedesktop.DBus.Error.AccessDenied",
			strings.HasSuffix(busErr.Name, ".PermissionDenied"):
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		case busErr.Name == "org.freedesktop.DBus.Error.NoReply",
			busErr.Name == "org.freedesktop.DBus.Error.Timeout":
			return ErrTimeout
		}
	}

	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
