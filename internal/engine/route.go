package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/directions"
	"github.com/UnknownOlympus/nightspot/internal/models"
)

// requestRoute asks for a route along the pending start/end pair of the
// selection. The answer is dropped if the selection or route changed meanwhile.
func (e *Engine) requestRoute(ctx context.Context) ([]effect, error) {
	if e.sel == nil || e.pending == nil {
		return nil, ErrNoSelection
	}
	if e.directions == nil {
		return nil, fmt.Errorf("%w: no directions provider configured", directions.ErrDirections)
	}

	e.routeEpisode++
	episode := e.routeEpisode
	points := *e.pending

	run := func(ctx context.Context) (Action, error) {
		start := time.Now()
		route, err := e.directions.Route(ctx, points.Start, points.End)
		e.metrics.RequestSeconds.WithLabelValues("directions").Observe(time.Since(start).Seconds())

		if err == nil && (route == nil || len(route.Path) == 0) {
			err = errors.New("empty route")
		}
		if err != nil {
			e.metrics.ProviderErrors.WithLabelValues("directions").Inc()
			if !errors.Is(err, directions.ErrDirections) {
				err = fmt.Errorf("%w: %w", directions.ErrDirections, err)
			}
			return routeFailed{episode: episode, err: err}, err
		}

		return routeReady{episode: episode, route: route}, nil
	}

	return []effect{run}, nil
}

func (e *Engine) applyRoute(ctx context.Context, r routeReady) {
	if r.episode != e.routeEpisode || e.sel == nil {
		e.log.DebugContext(ctx, "Stale route discarded", "episode", r.episode)
		return
	}

	e.route = r.route
	e.filter.RouteActive = true
	e.m.DrawPath(r.route.Path)
	if bounds, ok := r.route.Bounds(); ok {
		e.m.FitBounds(bounds)
	}
	e.metrics.Routes.WithLabelValues("success").Inc()

	e.log.DebugContext(ctx, "Route shown",
		"place", e.sel.id,
		"distance", models.FormatDistance(r.route.Summary.DistanceMeters),
		"duration", models.FormatDuration(r.route.Summary.Duration))
}

// routeFailure keeps the state as it was before the request.
func (e *Engine) routeFailure(ctx context.Context, r routeFailed) {
	if r.episode != e.routeEpisode {
		return
	}

	e.metrics.Routes.WithLabelValues("failure").Inc()
	e.log.WarnContext(ctx, "Failed to get directions", "error", r.err)
	e.notify(NoticeDirections, "길찾기 정보를 가져오지 못했습니다.")
}

// clearRoute removes the overlay and invalidates requests in flight.
func (e *Engine) clearRoute() {
	e.routeEpisode++
	if e.route == nil && !e.filter.RouteActive {
		return
	}

	e.m.ClearPath()
	e.route = nil
	e.filter.RouteActive = false
}

func (e *Engine) focusStep(index int) error {
	if e.route == nil {
		return ErrNoRoute
	}
	if index < 0 || index >= len(e.route.Guide) {
		return fmt.Errorf("%w: %d of %d", ErrStepOutOfRange, index, len(e.route.Guide))
	}

	pi := e.route.Guide[index].PointIndex
	if pi < 0 || pi >= len(e.route.Path) {
		return fmt.Errorf("%w: point %d of %d", ErrStepOutOfRange, pi, len(e.route.Path))
	}
	e.m.Morph(e.route.Path[pi], e.opts.StepZoom)

	return nil
}
