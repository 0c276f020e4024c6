// Package mapview describes the map rendering surface driven by the engine.
package mapview

import "github.com/UnknownOlympus/nightspot/internal/models"

// Handle identifies a marker created on the map. The zero value never refers to a marker.
type Handle int64

// Icon selects the marker appearance.
type Icon string

const (
	IconSingle          Icon = "single"
	IconSelected        Icon = "selected"
	IconGroup           Icon = "group"
	IconCurrentLocation Icon = "current-location"
)

// MarkerSpec holds everything needed to create a marker.
type MarkerSpec struct {
	Position models.Coordinates
	Icon     Icon
	Z        int
	Title    string
	Count    int // badge value for group markers
}

// PopupKind tells which info window content is shown.
type PopupKind string

const (
	PopupPlace    PopupKind = "place"
	PopupGroup    PopupKind = "group"
	PopupAddPlace PopupKind = "add-place"
)

// Popup is the content of the single info window the map can show.
type Popup struct {
	Kind     PopupKind
	Anchor   models.Coordinates
	PlaceID  string         // PopupPlace
	GroupKey string         // PopupGroup
	Members  []models.Place // PopupGroup
	Address  models.Address // PopupAddPlace
}

// Viewport is the visible map center and zoom level.
type Viewport struct {
	Center models.Coordinates
	Zoom   int
}

// Map is the rendering SDK as seen by the engine. Calls are made from a single
// logical thread; implementations do not have to tolerate re-entrancy.
type Map interface {
	CreateMarker(spec MarkerSpec) (Handle, error)
	DestroyMarker(h Handle)
	SetIcon(h Handle, icon Icon, count int)
	SetZIndex(h Handle, z int)
	SetPosition(h Handle, pos models.Coordinates)
	SetVisible(h Handle, visible bool)

	OpenPopup(p Popup)
	ClosePopup()

	Bounds() models.Bounds
	Viewport() Viewport
	Morph(center models.Coordinates, zoom int)
	FitBounds(b models.Bounds)

	DrawPath(path []models.Coordinates)
	ClearPath()
}
