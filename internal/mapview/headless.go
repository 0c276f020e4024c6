package mapview

import (
	"errors"
	"math"
	"slices"
	"sync"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

// ErrInvalidPosition is returned when a marker is requested at unusable coordinates.
var ErrInvalidPosition = errors.New("marker position is invalid")

// Marker is the recorded state of a headless marker.
type Marker struct {
	Handle  Handle
	Spec    MarkerSpec
	Visible bool
}

// Headless is an in-memory Map. It records every call so that a shell without a
// rendering SDK, and tests, can inspect what would be drawn.
type Headless struct {
	mu        sync.Mutex
	next      Handle
	markers   map[Handle]*Marker
	popup     *Popup
	viewport  Viewport
	bounds    models.Bounds
	path      []models.Coordinates
	created   int
	destroyed int
	reject    func(MarkerSpec) error
}

// NewHeadless creates a headless map centered on the given point.
// Bounds start empty, meaning the whole world is considered in view.
func NewHeadless(center models.Coordinates, zoom int) *Headless {
	return &Headless{
		markers:  make(map[Handle]*Marker),
		viewport: Viewport{Center: center, Zoom: zoom},
	}
}

// RejectMarkers installs a hook that can fail marker creation.
func (h *Headless) RejectMarkers(fn func(MarkerSpec) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reject = fn
}

// SetBounds simulates the user panning the map to the given area.
func (h *Headless) SetBounds(b models.Bounds) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bounds = b
	if !b.IsZero() {
		h.viewport.Center = b.Center()
	}
}

// CreateMarker implements Map.
func (h *Headless) CreateMarker(spec MarkerSpec) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !spec.Position.Valid() {
		return 0, ErrInvalidPosition
	}
	if h.reject != nil {
		if err := h.reject(spec); err != nil {
			return 0, err
		}
	}

	h.next++
	h.markers[h.next] = &Marker{Handle: h.next, Spec: spec, Visible: true}
	h.created++

	return h.next, nil
}

// DestroyMarker implements Map.
func (h *Headless) DestroyMarker(handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.markers[handle]; ok {
		delete(h.markers, handle)
		h.destroyed++
	}
}

// SetIcon implements Map.
func (h *Headless) SetIcon(handle Handle, icon Icon, count int) {
	h.update(handle, func(m *Marker) {
		m.Spec.Icon = icon
		m.Spec.Count = count
	})
}

// SetZIndex implements Map.
func (h *Headless) SetZIndex(handle Handle, z int) {
	h.update(handle, func(m *Marker) { m.Spec.Z = z })
}

// SetPosition implements Map.
func (h *Headless) SetPosition(handle Handle, pos models.Coordinates) {
	h.update(handle, func(m *Marker) { m.Spec.Position = pos })
}

// SetVisible implements Map.
func (h *Headless) SetVisible(handle Handle, visible bool) {
	h.update(handle, func(m *Marker) { m.Visible = visible })
}

func (h *Headless) update(handle Handle, fn func(m *Marker)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.markers[handle]; ok {
		fn(m)
	}
}

// OpenPopup implements Map. Only one popup is open at a time.
func (h *Headless) OpenPopup(p Popup) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p.Members = slices.Clone(p.Members)
	h.popup = &p
}

// ClosePopup implements Map.
func (h *Headless) ClosePopup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.popup = nil
}

// Bounds implements Map.
func (h *Headless) Bounds() models.Bounds {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bounds
}

// Viewport implements Map.
func (h *Headless) Viewport() Viewport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.viewport
}

// Morph moves the map to the center and zoom. Known bounds are recentered and
// scaled by the zoom change, each level halving the span.
func (h *Headless) Morph(center models.Coordinates, zoom int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.bounds.IsZero() {
		scale := math.Pow(2, float64(h.viewport.Zoom-zoom))
		halfLat := (h.bounds.NorthEast.Latitude - h.bounds.SouthWest.Latitude) / 2 * scale
		halfLon := (h.bounds.NorthEast.Longitude - h.bounds.SouthWest.Longitude) / 2 * scale
		h.bounds = models.Bounds{
			SouthWest: models.Coordinates{Latitude: center.Latitude - halfLat, Longitude: center.Longitude - halfLon},
			NorthEast: models.Coordinates{Latitude: center.Latitude + halfLat, Longitude: center.Longitude + halfLon},
		}
	}
	h.viewport = Viewport{Center: center, Zoom: zoom}
}

// FitBounds implements Map. The zoom level is left untouched.
func (h *Headless) FitBounds(b models.Bounds) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bounds = b
	h.viewport.Center = b.Center()
}

// DrawPath implements Map.
func (h *Headless) DrawPath(path []models.Coordinates) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = slices.Clone(path)
}

// ClearPath implements Map.
func (h *Headless) ClearPath() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = nil
}

// Markers returns every live marker ordered by handle.
func (h *Headless) Markers() []Marker {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Marker, 0, len(h.markers))
	for _, m := range h.markers {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Marker) int { return int(a.Handle - b.Handle) })

	return out
}

// Marker returns the recorded state of one marker.
func (h *Headless) Marker(handle Handle) (Marker, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.markers[handle]
	if !ok {
		return Marker{}, false
	}

	return *m, true
}

// Popup returns the open popup, if any.
func (h *Headless) Popup() (Popup, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.popup == nil {
		return Popup{}, false
	}

	return *h.popup, true
}

// Path returns the drawn route path.
func (h *Headless) Path() []models.Coordinates {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.path)
}

// Stats returns how many markers were created and destroyed so far.
func (h *Headless) Stats() (created, destroyed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created, h.destroyed
}
