package engine

import (
	"github.com/UnknownOlympus/nightspot/internal/mapview"
	"github.com/UnknownOlympus/nightspot/internal/models"
)

// Action is a request to change the engine state. See Dispatch.
type Action interface {
	action()
}

// Select selects a place, from a single marker, the list view or a search result.
type Select struct{ ID string }

// OpenGroup opens the member list of a group marker.
type OpenGroup struct{ Key string }

// SelectGroupMember selects one member from an opened group.
type SelectGroupMember struct {
	Key string
	ID  string
}

// Deselect returns to Idle.
type Deselect struct{}

// DataRefresh re-reads the working set from the store.
type DataRefresh struct{}

// Reload fetches the catalog again.
type Reload struct{}

// FilterChange replaces the category set and the favorite-only flag.
type FilterChange struct {
	Categories    []string
	FavoritesOnly bool
}

// ToggleCategory adds or removes one category. An empty category selects all.
type ToggleCategory struct{ Category string }

// ToggleFavoritesOnly flips the favorite-only flag.
type ToggleFavoritesOnly struct{}

// BoundsChanged is sent when the map settles after a pan or zoom.
type BoundsChanged struct{}

// MarkerClicked is a click on a marker.
type MarkerClicked struct{ Handle mapview.Handle }

// MarkerHover is a pointer entering or leaving a marker.
type MarkerHover struct {
	Handle mapview.Handle
	In     bool
}

// MapClicked is a click on the map background.
type MapClicked struct{ At models.Coordinates }

// MapDragged is sent when the user starts dragging the map.
type MapDragged struct{}

// SearchStart enters search mode. An empty keyword leaves it.
type SearchStart struct{ Keyword string }

// SearchClear leaves search mode.
type SearchClear struct{}

// ToggleListView is the list view button.
type ToggleListView struct{}

// RouteRequest asks for a route from the user to the selected place.
type RouteRequest struct{}

// RouteClear removes the route overlay.
type RouteClear struct{}

// FocusRouteStep moves the map to a turn-by-turn step.
type FocusRouteStep struct{ Index int }

// Locate acquires the user position.
type Locate struct{}

// AddPlace stores a new authored place and selects it.
type AddPlace struct{ Place models.Place }

// UpdatePlace edits an authored place and selects it.
type UpdatePlace struct{ Place models.Place }

// DeletePlace removes an authored place.
type DeletePlace struct{ ID string }

// ToggleFavorite flips the favorite flag of a place.
type ToggleFavorite struct{ ID string }

// results of effects
type (
	routeReady struct {
		episode uint64
		route   *models.Route
	}
	routeFailed struct {
		episode uint64
		err     error
	}
	addressResolved struct {
		token   uint64
		at      models.Coordinates
		address *models.Address
		err     error
	}
	located struct {
		pos models.Coordinates
		err error
	}
	loadFailed   struct{ err error }
	placeSaved   struct{ id string }
	placeFailed  struct{ err error }
	placeDeleted struct{ id string }
)

func (Select) action()              {}
func (OpenGroup) action()           {}
func (SelectGroupMember) action()   {}
func (Deselect) action()            {}
func (DataRefresh) action()         {}
func (Reload) action()              {}
func (FilterChange) action()        {}
func (ToggleCategory) action()      {}
func (ToggleFavoritesOnly) action() {}
func (BoundsChanged) action()       {}
func (MarkerClicked) action()       {}
func (MarkerHover) action()         {}
func (MapClicked) action()          {}
func (MapDragged) action()          {}
func (SearchStart) action()         {}
func (SearchClear) action()         {}
func (ToggleListView) action()      {}
func (RouteRequest) action()        {}
func (RouteClear) action()          {}
func (FocusRouteStep) action()      {}
func (Locate) action()              {}
func (AddPlace) action()            {}
func (UpdatePlace) action()         {}
func (DeletePlace) action()         {}
func (ToggleFavorite) action()      {}
func (routeReady) action()          {}
func (routeFailed) action()         {}
func (addressResolved) action()     {}
func (located) action()             {}
func (loadFailed) action()          {}
func (placeSaved) action()          {}
func (placeFailed) action()         {}
func (placeDeleted) action()        {}
