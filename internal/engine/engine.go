// Package engine keeps the map markers, the visible list, the selection and the
// route overlay consistent with the working set of places.
//
// Every change goes through Dispatch. Handlers run one at a time and only touch
// the map; slow work (catalog loads, directions, geolocation, reverse geocoding,
// profile writes) runs after the handler returns and comes back as a new action.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/UnknownOlympus/nightspot/internal/cluster"
	"github.com/UnknownOlympus/nightspot/internal/directions"
	"github.com/UnknownOlympus/nightspot/internal/geocoding"
	"github.com/UnknownOlympus/nightspot/internal/geolocation"
	"github.com/UnknownOlympus/nightspot/internal/mapview"
	"github.com/UnknownOlympus/nightspot/internal/metrics"
	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/UnknownOlympus/nightspot/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Marker stacking order.
const (
	ZNormal          = 50
	ZCurrentLocation = 100
	ZSelected        = 1000
	ZHovered         = 1001
)

// DefaultFocusZoom is the zoom level used when moving to a place or a route step.
const DefaultFocusZoom = 17

// minAutocompleteRunes is the shortest keyword that produces suggestions.
const minAutocompleteRunes = 2

// Engine errors.
var (
	ErrMarkerSynthesis = errors.New("failed to build marker")
	ErrNotFound        = errors.New("place is not in the working set")
	ErrUnknownMarker   = errors.New("unknown marker")
	ErrNoSelection     = errors.New("no place is selected")
	ErrNoRoute         = errors.New("no route is shown")
	ErrStepOutOfRange  = errors.New("route step out of range")
)

// State is the selection state.
type State int

const (
	Idle State = iota
	SelectedSingle
	SelectedFromGroup
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SelectedSingle:
		return "selected_single"
	case SelectedFromGroup:
		return "selected_from_group"
	default:
		return "unknown"
	}
}

// NoticeKind classifies a user-facing message.
type NoticeKind string

const (
	NoticeDataFetch   NoticeKind = "data-fetch"
	NoticeGeolocation NoticeKind = "geolocation"
	NoticeDirections  NoticeKind = "directions"
	NoticePlace       NoticeKind = "place"
)

// Notice is a message the shell should show once.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Deps are the collaborators of the engine. Directions, Geocoder and Locator may
// be nil, which disables the matching feature.
type Deps struct {
	Map        mapview.Map
	Store      *store.Store
	Directions directions.Provider
	Geocoder   geocoding.Provider
	Locator    geolocation.Locator
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Options tune the engine.
type Options struct {
	Epsilon         float64            // cluster bucket size in degrees
	FocusZoom       int                // zoom used when a place is selected
	StepZoom        int                // zoom used when a route step is focused
	DefaultPosition models.Coordinates // start of routes before the user is located
}

// effect is slow work run outside the state lock. It may return a follow-up action.
type effect func(ctx context.Context) (Action, error)

// Engine is the marker and viewport synchronization engine.
type Engine struct {
	m          mapview.Map
	store      *store.Store
	directions directions.Provider
	geocoder   geocoding.Provider
	locator    geolocation.Locator
	metrics    *metrics.Metrics
	log        *slog.Logger
	clusterer  *cluster.Clusterer
	opts       Options

	queueMu  sync.Mutex
	queue    []Action
	draining bool

	mu           sync.Mutex
	places       map[string]models.Place
	clusters     []models.Cluster
	clusterOf    map[string]string
	index        *viewIndex
	markers      map[string]*renderMarker
	byHandle     map[mapview.Handle]string
	filter       Filter
	searchFitted bool
	sel          *selection
	state        State
	savedView    *mapview.Viewport
	hovered      mapview.Handle
	openGroup    string
	panelOpen    bool
	route        *models.Route
	pending      *models.RoutePoints
	routeEpisode uint64
	clickToken   uint64
	userPos      *models.Coordinates
	userMarker   mapview.Handle
	visible      []models.Place
	notices      []Notice
}

// New creates an engine and subscribes it to store changes. The engine starts
// empty; dispatch Reload or DataRefresh to populate it.
func New(deps Deps, opts Options) *Engine {
	if opts.FocusZoom == 0 {
		opts.FocusZoom = DefaultFocusZoom
	}
	if opts.StepZoom == 0 {
		opts.StepZoom = DefaultFocusZoom
	}
	if !opts.DefaultPosition.Valid() {
		opts.DefaultPosition = geolocation.DefaultPosition
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Locator != nil {
		deps.Locator = geolocation.WithTimeout(deps.Locator, geolocation.DefaultTimeout)
	}

	e := &Engine{
		m:          deps.Map,
		store:      deps.Store,
		directions: deps.Directions,
		geocoder:   deps.Geocoder,
		locator:    deps.Locator,
		metrics:    deps.Metrics,
		log:        deps.Logger,
		clusterer:  cluster.New(opts.Epsilon),
		opts:       opts,
		places:     make(map[string]models.Place),
		clusterOf:  make(map[string]string),
		index:      newViewIndex(nil),
		markers:    make(map[string]*renderMarker),
		byHandle:   make(map[mapview.Handle]string),
	}

	deps.Store.Subscribe(func(ctx context.Context) {
		if err := e.Dispatch(ctx, DataRefresh{}); err != nil {
			e.log.ErrorContext(ctx, "Failed to apply store change", "error", err)
		}
	})

	return e
}

// Dispatch applies the action and everything it triggers.
//
// Actions dispatched while another Dispatch is draining the queue (from an
// effect, a store listener or another goroutine) are queued behind it and the
// nested call returns nil at once. The draining call processes the whole queue
// and returns the first error met. Queued actions run with the draining
// caller's ctx, and their errors are returned to that caller, not to the
// goroutine that queued them.
func (e *Engine) Dispatch(ctx context.Context, action Action) error {
	e.queueMu.Lock()
	e.queue = append(e.queue, action)
	if e.draining {
		e.queueMu.Unlock()
		return nil
	}
	e.draining = true
	e.queueMu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for {
		e.queueMu.Lock()
		if len(e.queue) == 0 {
			e.draining = false
			e.queueMu.Unlock()
			return firstErr
		}
		next := e.queue[0]
		e.queue = e.queue[1:]
		e.queueMu.Unlock()

		effects, err := e.handle(ctx, next)
		record(err)

		for _, run := range effects {
			follow, errEff := run(ctx)
			record(errEff)
			if follow != nil {
				e.enqueue(follow)
			}
		}
	}
}

func (e *Engine) enqueue(action Action) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	e.queue = append(e.queue, action)
}

// Visible returns the places currently shown, the content of the list view.
func (e *Engine) Visible() []models.Place {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.visible)
}

// TakeNotices returns and forgets the pending user-facing messages.
func (e *Engine) TakeNotices() []Notice {
	e.mu.Lock()
	defer e.mu.Unlock()

	notices := e.notices
	e.notices = nil

	return notices
}

// Autocomplete suggests places whose title or address contains the keyword and
// that pass the active category and favorite filters.
func (e *Engine) Autocomplete(keyword string) []models.Place {
	if utf8.RuneCountInString(keyword) < minAutocompleteRunes {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.filter
	f.Search = true
	f.Keyword = keyword

	var out []models.Place
	for _, c := range e.clusters {
		out = append(out, f.Passing(c.Members)...)
	}

	return out
}

// MarkerView describes one live marker.
type MarkerView struct {
	Handle      mapview.Handle
	Kind        Kind
	Key         string // cluster key
	PlaceID     string // single markers only
	Count       int
	Visible     bool
	Synthesized bool // the selection marker split out of its cluster marker
}

// Snapshot is a read-only copy of the engine state for a UI shell.
type Snapshot struct {
	State         State
	SelectedID    string
	PanelOpen     bool
	SearchMode    bool
	Keyword       string
	Categories    []string
	FavoritesOnly bool
	RouteActive   bool
	Route         *models.Route
	PendingRoute  *models.RoutePoints
	UserPosition  *models.Coordinates
	OpenGroup     string
	Markers       []MarkerView
}

// Snapshot returns the current state. Markers are ordered by cluster key with
// the synthesized selection marker last.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		State:         e.state,
		PanelOpen:     e.panelOpen,
		SearchMode:    e.filter.Search,
		Keyword:       e.filter.Keyword,
		Categories:    slices.Clone(e.filter.Categories),
		FavoritesOnly: e.filter.FavoritesOnly,
		RouteActive:   e.filter.RouteActive,
		Route:         e.route,
		OpenGroup:     e.openGroup,
	}
	if e.sel != nil {
		snap.SelectedID = e.sel.id
	}
	if e.pending != nil {
		p := *e.pending
		snap.PendingRoute = &p
	}
	if e.userPos != nil {
		p := *e.userPos
		snap.UserPosition = &p
	}

	for _, rm := range e.markers {
		snap.Markers = append(snap.Markers, MarkerView{
			Handle:  rm.handle,
			Kind:    rm.kind,
			Key:     rm.key,
			PlaceID: rm.placeID,
			Count:   rm.count,
			Visible: rm.visible,
		})
	}
	slices.SortFunc(snap.Markers, func(a, b MarkerView) int { return strings.Compare(a.Key, b.Key) })
	if e.sel != nil && e.sel.synthesized != 0 {
		snap.Markers = append(snap.Markers, MarkerView{
			Handle:      e.sel.synthesized,
			Kind:        KindSingle,
			Key:         e.sel.key,
			PlaceID:     e.sel.id,
			Count:       1,
			Visible:     true,
			Synthesized: true,
		})
	}

	return snap
}

func (e *Engine) notify(kind NoticeKind, message string) {
	e.notices = append(e.notices, Notice{Kind: kind, Message: message})
}
