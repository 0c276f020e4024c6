package engine

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/nightspot/internal/mapview"
	"github.com/UnknownOlympus/nightspot/internal/models"
)

// selection is the selected place and the marker standing for it. While
// synthesized is set, the cluster marker under key is hidden and the selection
// is drawn by its own single marker.
type selection struct {
	id          string
	key         string
	synthesized mapview.Handle
	z           int
}

func (e *Engine) setState(ctx context.Context, next State) {
	if e.state == next {
		return
	}
	e.metrics.SelectionTransitions.WithLabelValues(e.state.String(), next.String()).Inc()
	e.log.DebugContext(ctx, "Selection state changed", "from", e.state, "to", next)
	e.state = next
}

// selectPlace runs the exit effect of the current selection, if any, and then
// the entry effect for the place.
func (e *Engine) selectPlace(ctx context.Context, id string) error {
	place, ok := e.places[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !place.Position.Valid() {
		return fmt.Errorf("%w: place %s has no usable position", ErrMarkerSynthesis, id)
	}

	e.clickToken++
	e.openGroup = ""

	if e.sel != nil && e.sel.id == id {
		e.m.OpenPopup(mapview.Popup{Kind: mapview.PopupPlace, Anchor: place.Position, PlaceID: id})
		e.m.Morph(place.Position, e.opts.FocusZoom)
		e.panelOpen = true
		return nil
	}

	if e.sel != nil {
		e.exitSelection(ctx)
	} else if e.savedView == nil {
		view := e.m.Viewport()
		e.savedView = &view
	}

	e.sel = &selection{id: id, key: e.clusterOf[id]}
	e.ensureSelectionMarker(ctx)

	e.m.OpenPopup(mapview.Popup{Kind: mapview.PopupPlace, Anchor: place.Position, PlaceID: id})
	e.m.Morph(place.Position, e.opts.FocusZoom)
	e.panelOpen = true

	start := e.opts.DefaultPosition
	if e.userPos != nil {
		start = *e.userPos
	}
	e.pending = &models.RoutePoints{Start: start, End: place.Position}

	e.log.DebugContext(ctx, "Place selected", "place", id, "state", e.state)

	return nil
}

// ensureSelectionMarker picks the marker for the selection. When the cluster
// marker is a single marker of the selected place it is used directly;
// otherwise the selection is split out into a synthesized marker.
func (e *Engine) ensureSelectionMarker(ctx context.Context) {
	sel := e.sel
	if rm := e.markers[sel.key]; rm != nil && rm.kind == KindSingle && rm.placeID == sel.id {
		if sel.synthesized != 0 {
			e.m.DestroyMarker(sel.synthesized)
			sel.synthesized = 0
		}
		e.setState(ctx, SelectedSingle)
		return
	}

	place := e.places[sel.id]
	if sel.synthesized != 0 {
		e.m.SetPosition(sel.synthesized, place.Position)
		e.setState(ctx, SelectedFromGroup)
		return
	}

	handle, err := e.m.CreateMarker(mapview.MarkerSpec{
		Position: place.Position,
		Icon:     mapview.IconSelected,
		Z:        ZSelected,
		Title:    place.Title,
		Count:    1,
	})
	if err != nil {
		e.synthesisFailed(ctx, sel.id, err)
	} else {
		sel.synthesized = handle
		sel.z = ZSelected
	}
	e.setState(ctx, SelectedFromGroup)
}

// exitSelection undoes the selection marker, the popup and the route. The
// panel and the saved view are left to the caller.
func (e *Engine) exitSelection(ctx context.Context) {
	sel := e.sel
	if sel.synthesized != 0 {
		e.m.DestroyMarker(sel.synthesized)
		if e.hovered == sel.synthesized {
			e.hovered = 0
		}
	}
	e.m.ClosePopup()
	e.clearRoute()
	e.pending = nil
	e.sel = nil
	e.restyle()
	e.setState(ctx, Idle)
}

// deselect returns to Idle and restores the view saved when the selection
// episode began.
func (e *Engine) deselect(ctx context.Context) {
	if e.sel == nil {
		return
	}

	id := e.sel.id
	e.exitSelection(ctx)
	e.panelOpen = false

	if e.savedView != nil {
		e.m.Morph(e.savedView.Center, e.savedView.Zoom)
		e.savedView = nil
	}

	e.log.DebugContext(ctx, "Place deselected", "place", id)
}
