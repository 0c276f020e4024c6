package engine

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/nightspot/internal/mapview"
	"github.com/UnknownOlympus/nightspot/internal/models"
)

// Kind tells whether a marker stands for one place or for a cluster.
type Kind string

const (
	KindSingle Kind = "single"
	KindGroup  Kind = "group"
)

// renderMarker is the engine's record of a cluster marker. A marker never
// changes kind or place: a different shape is a new marker.
type renderMarker struct {
	handle   mapview.Handle
	kind     Kind
	key      string
	placeID  string // single only
	count    int    // group badge
	position models.Coordinates
	visible  bool
	icon     mapview.Icon
	z        int
}

// desired is the marker a cluster should have.
type desired struct {
	kind    Kind
	place   models.Place // single only
	count   int
	keepOld bool
}

// want decides the marker shape from the members passing the filter.
// A cluster with no passing member keeps whatever marker it has, hidden.
func want(c models.Cluster, passing []models.Place) desired {
	switch len(passing) {
	case 0:
		if len(c.Members) == 1 {
			return desired{kind: KindSingle, place: c.Members[0], count: 1, keepOld: true}
		}
		return desired{kind: KindGroup, count: len(c.Members), keepOld: true}
	case 1:
		return desired{kind: KindSingle, place: passing[0], count: 1}
	default:
		return desired{kind: KindGroup, count: len(passing)}
	}
}

func (rm *renderMarker) matches(d desired) bool {
	if rm.kind != d.kind {
		return false
	}

	return d.kind == KindGroup || rm.placeID == d.place.ID
}

// syncClusterMarker brings the marker of one cluster in line with its passing
// members: create when missing, rebuild on a shape change, or only update the
// badge of a group that stays a group.
func (e *Engine) syncClusterMarker(ctx context.Context, c models.Cluster, passing []models.Place) {
	d := want(c, passing)
	rm := e.markers[c.Key]

	if rm != nil && (d.keepOld || rm.matches(d)) {
		if rm.kind == KindGroup && !d.keepOld && rm.count != d.count {
			rm.count = d.count
			e.m.SetIcon(rm.handle, rm.icon, rm.count)
		}
		if rm.kind == KindGroup && rm.position != c.Position {
			rm.position = c.Position
			e.m.SetPosition(rm.handle, c.Position)
		}
		return
	}

	if rm != nil {
		e.destroyMarker(rm)
	}

	spec := mapview.MarkerSpec{Position: c.Position, Icon: mapview.IconGroup, Z: ZNormal, Count: d.count}
	if d.kind == KindSingle {
		spec.Position = d.place.Position
		spec.Icon = mapview.IconSingle
		spec.Title = d.place.Title
	}

	handle, err := e.m.CreateMarker(spec)
	if err != nil {
		e.synthesisFailed(ctx, c.Key, err)
		return
	}

	rm = &renderMarker{
		handle:   handle,
		kind:     d.kind,
		key:      c.Key,
		placeID:  d.place.ID,
		count:    d.count,
		position: spec.Position,
		visible:  true,
		icon:     spec.Icon,
		z:        spec.Z,
	}
	e.markers[c.Key] = rm
	e.byHandle[handle] = c.Key
}

func (e *Engine) destroyMarker(rm *renderMarker) {
	e.m.DestroyMarker(rm.handle)
	delete(e.markers, rm.key)
	delete(e.byHandle, rm.handle)
	if e.hovered == rm.handle {
		e.hovered = 0
	}
}

func (e *Engine) synthesisFailed(ctx context.Context, subject string, err error) {
	e.metrics.SynthesisFailures.Inc()
	e.log.WarnContext(ctx, "Marker not rendered",
		"subject", subject, "error", fmt.Errorf("%w: %w", ErrMarkerSynthesis, err))
}

// reconcile is run after every state change. It syncs the cluster markers,
// the selection marker, visibility, styling and the visible list.
func (e *Engine) reconcile(ctx context.Context) {
	e.metrics.ReconcilePasses.Inc()

	live := make(map[string]struct{}, len(e.clusters))
	for _, c := range e.clusters {
		live[c.Key] = struct{}{}
		e.syncClusterMarker(ctx, c, e.filter.Passing(c.Members))
	}
	for key, rm := range e.markers {
		if _, ok := live[key]; !ok {
			e.destroyMarker(rm)
		}
	}

	if e.sel != nil {
		e.ensureSelectionMarker(ctx)
	}

	selectedID := ""
	if e.sel != nil {
		selectedID = e.sel.id
	}
	e.visible = Resolve(e.clusters, e.filter, selectedID, e.index.inView(e.m.Bounds()))

	shown := make(map[string]struct{}, len(e.visible))
	shownPlaces := make(map[string]struct{}, len(e.visible))
	for _, p := range e.visible {
		shown[e.clusterOf[p.ID]] = struct{}{}
		shownPlaces[p.ID] = struct{}{}
	}
	for key, rm := range e.markers {
		_, show := shown[key]
		if e.sel != nil && e.sel.synthesized != 0 && e.sel.key == key {
			// The synthesized marker stands in for the group. A single marker
			// of another member stays mapped while that member is visible.
			if rm.kind == KindGroup {
				show = false
			} else {
				_, show = shownPlaces[rm.placeID]
			}
		}
		e.setVisible(rm, show)
	}
	e.restyle()

	if e.filter.Search && !e.searchFitted {
		e.fitSearch(ctx)
	}

	e.countMarkers()
}

func (e *Engine) setVisible(rm *renderMarker, visible bool) {
	if rm.visible == visible {
		return
	}
	rm.visible = visible
	e.m.SetVisible(rm.handle, visible)
}

// restyle applies icon and stacking order: selected single markers use the
// selected icon above everything but a hovered marker.
func (e *Engine) restyle() {
	for _, rm := range e.markers {
		icon, z := mapview.IconSingle, ZNormal
		if rm.kind == KindGroup {
			icon = mapview.IconGroup
		}
		if e.sel != nil && e.sel.synthesized == 0 && rm.kind == KindSingle && rm.placeID == e.sel.id {
			icon, z = mapview.IconSelected, ZSelected
		}
		if e.hovered == rm.handle {
			z = ZHovered
		}

		if icon != rm.icon {
			rm.icon = icon
			e.m.SetIcon(rm.handle, icon, rm.count)
		}
		if z != rm.z {
			rm.z = z
			e.m.SetZIndex(rm.handle, z)
		}
	}

	if e.sel != nil && e.sel.synthesized != 0 {
		z := ZSelected
		if e.hovered == e.sel.synthesized {
			z = ZHovered
		}
		if z != e.sel.z {
			e.sel.z = z
			e.m.SetZIndex(e.sel.synthesized, z)
		}
	}
}

func (e *Engine) fitSearch(ctx context.Context) {
	points := make([]models.Coordinates, 0, len(e.visible))
	for _, p := range e.visible {
		points = append(points, p.Position)
	}

	bounds, ok := models.BoundsOf(points)
	if !ok {
		return
	}

	e.searchFitted = true
	e.m.FitBounds(bounds)
	e.log.DebugContext(ctx, "Map fitted to search results", "keyword", e.filter.Keyword, "matches", len(points))
}

func (e *Engine) countMarkers() {
	var single, group float64
	for _, rm := range e.markers {
		if rm.kind == KindGroup {
			group++
		} else {
			single++
		}
	}
	if e.sel != nil && e.sel.synthesized != 0 {
		single++
	}

	e.metrics.Markers.WithLabelValues(string(KindSingle)).Set(single)
	e.metrics.Markers.WithLabelValues(string(KindGroup)).Set(group)
}
