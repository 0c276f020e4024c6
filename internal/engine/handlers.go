package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/geolocation"
	"github.com/UnknownOlympus/nightspot/internal/mapview"
	"github.com/UnknownOlympus/nightspot/internal/models"
)

// handle applies one action under the state lock and returns the effects to
// run once the lock is released.
func (e *Engine) handle(ctx context.Context, action Action) ([]effect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		effects []effect
		err     error
	)

	switch act := action.(type) {
	case Select:
		err = e.selectPlace(ctx, act.ID)
	case SelectGroupMember:
		err = e.selectGroupMember(ctx, act)
	case OpenGroup:
		err = e.openGroupPopup(act.Key)
	case Deselect:
		e.deselect(ctx)
	case DataRefresh:
		e.refresh(ctx)
	case Reload:
		effects = append(effects, e.reload)
	case FilterChange:
		e.filter.Categories = normalizeCategories(act.Categories)
		e.filter.FavoritesOnly = act.FavoritesOnly
	case ToggleCategory:
		e.toggleCategory(act.Category)
	case ToggleFavoritesOnly:
		e.filter.FavoritesOnly = !e.filter.FavoritesOnly
	case BoundsChanged:
	case MarkerClicked:
		err = e.markerClicked(ctx, act.Handle)
	case MarkerHover:
		e.hover(act.Handle, act.In)
	case MapClicked:
		effects = e.mapClicked(ctx, act.At)
	case MapDragged:
		e.panelOpen = false
	case SearchStart:
		e.startSearch(ctx, act.Keyword)
	case SearchClear:
		e.filter.Search = false
		e.filter.Keyword = ""
		e.searchFitted = false
	case ToggleListView:
		e.toggleListView(ctx)
	case RouteRequest:
		effects, err = e.requestRoute(ctx)
	case RouteClear:
		e.clearRoute()
	case FocusRouteStep:
		err = e.focusStep(act.Index)
	case Locate:
		effects, err = e.locate()
	case AddPlace:
		act.Place.ID = ""
		effects = append(effects, e.savePlace(act.Place))
	case UpdatePlace:
		if act.Place.ID == "" {
			err = fmt.Errorf("%w: empty id", ErrNotFound)
			break
		}
		effects = append(effects, e.savePlace(act.Place))
	case DeletePlace:
		effects = append(effects, e.deletePlace(act.ID))
	case ToggleFavorite:
		effects = append(effects, e.toggleFavorite(act.ID))

	case routeReady:
		e.applyRoute(ctx, act)
	case routeFailed:
		e.routeFailure(ctx, act)
	case addressResolved:
		e.addressResolved(ctx, act)
	case located:
		e.applyLocation(ctx, act)
	case loadFailed:
		e.log.WarnContext(ctx, "Catalog reload failed", "error", act.err)
		e.notify(NoticeDataFetch, "장소 정보를 불러오지 못했습니다. 다시 시도해 주세요.")
	case placeSaved:
		err = e.selectPlace(ctx, act.id)
	case placeFailed:
		e.log.WarnContext(ctx, "Failed to change place", "error", act.err)
		e.notify(NoticePlace, "장소 정보를 변경하지 못했습니다.")
	case placeDeleted:
		if e.sel != nil && e.sel.id == act.id {
			e.deselect(ctx)
		}
		e.panelOpen = false
	default:
		err = fmt.Errorf("unsupported action %T", action)
	}

	e.reconcile(ctx)

	return effects, err
}

// refresh re-reads the working set and reclusters it. A selection whose place
// is gone ends; one whose place survived follows it to its new cluster.
func (e *Engine) refresh(ctx context.Context) {
	places := e.store.Snapshot()

	e.places = make(map[string]models.Place, len(places))
	for _, p := range places {
		e.places[p.ID] = p
	}

	clusters, rejected := e.clusterer.Group(places)
	for _, p := range rejected {
		e.synthesisFailed(ctx, p.ID, errors.New("invalid coordinates"))
	}

	e.clusters = clusters
	e.clusterOf = make(map[string]string, len(places))
	for _, c := range clusters {
		for _, p := range c.Members {
			e.clusterOf[p.ID] = c.Key
		}
	}
	e.index = newViewIndex(clusters)

	if e.sel != nil {
		key, ok := e.clusterOf[e.sel.id]
		switch {
		case !ok:
			e.log.InfoContext(ctx, "Selected place left the working set", "place", e.sel.id)
			e.deselect(ctx)
		case key != e.sel.key:
			if e.sel.synthesized != 0 {
				e.m.DestroyMarker(e.sel.synthesized)
				e.sel.synthesized = 0
			}
			e.sel.key = key
		}
	}

	if e.openGroup != "" {
		if _, ok := e.clusterIndex(e.openGroup); !ok {
			e.m.ClosePopup()
			e.openGroup = ""
		}
	}

	e.log.DebugContext(ctx, "Working set clustered", "places", len(places), "clusters", len(clusters))
}

func (e *Engine) clusterIndex(key string) (int, bool) {
	i := slices.IndexFunc(e.clusters, func(c models.Cluster) bool { return c.Key == key })
	return i, i >= 0
}

func (e *Engine) reload(ctx context.Context) (Action, error) {
	if err := e.store.Load(ctx); err != nil {
		return loadFailed{err: err}, err
	}

	return nil, nil
}

func normalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	slices.Sort(out)

	return out
}

func (e *Engine) toggleCategory(category string) {
	if category == "" {
		e.filter.Categories = nil
		return
	}

	if i := slices.Index(e.filter.Categories, category); i >= 0 {
		e.filter.Categories = slices.Delete(slices.Clone(e.filter.Categories), i, i+1)
		return
	}
	e.filter.Categories = normalizeCategories(append(slices.Clone(e.filter.Categories), category))
}

func (e *Engine) openGroupPopup(key string) error {
	i, ok := e.clusterIndex(key)
	if !ok {
		return fmt.Errorf("%w: group %s", ErrUnknownMarker, key)
	}

	c := e.clusters[i]
	members := e.filter.Passing(c.Members)
	if len(members) == 0 {
		members = c.Members
	}

	e.openGroup = key
	e.m.OpenPopup(mapview.Popup{Kind: mapview.PopupGroup, Anchor: c.Position, GroupKey: key, Members: members})

	return nil
}

func (e *Engine) selectGroupMember(ctx context.Context, act SelectGroupMember) error {
	if key, ok := e.clusterOf[act.ID]; !ok || key != act.Key {
		return fmt.Errorf("%w: %s in group %s", ErrNotFound, act.ID, act.Key)
	}

	return e.selectPlace(ctx, act.ID)
}

func (e *Engine) markerClicked(ctx context.Context, handle mapview.Handle) error {
	if e.sel != nil && handle == e.sel.synthesized {
		return e.selectPlace(ctx, e.sel.id)
	}
	if handle == e.userMarker && handle != 0 {
		return nil
	}

	key, ok := e.byHandle[handle]
	if !ok {
		return fmt.Errorf("%w: handle %d", ErrUnknownMarker, handle)
	}

	rm := e.markers[key]
	if rm.kind == KindSingle {
		return e.selectPlace(ctx, rm.placeID)
	}

	return e.openGroupPopup(key)
}

func (e *Engine) hover(handle mapview.Handle, in bool) {
	switch {
	case in:
		e.hovered = handle
	case e.hovered == handle:
		e.hovered = 0
	}
}

// mapClicked deselects and, when nothing was selected, looks up the address of
// the clicked point to offer adding a place there.
func (e *Engine) mapClicked(ctx context.Context, at models.Coordinates) []effect {
	hadSelection := e.sel != nil

	e.clickToken++
	e.deselect(ctx)
	e.clearRoute()
	e.panelOpen = false
	e.openGroup = ""
	e.m.ClosePopup()

	if hadSelection || e.geocoder == nil || !at.Valid() {
		return nil
	}

	token := e.clickToken
	lookup := func(ctx context.Context) (Action, error) {
		start := time.Now()
		address, err := e.geocoder.ReverseGeocode(ctx, at)
		e.metrics.RequestSeconds.WithLabelValues("geocoder").Observe(time.Since(start).Seconds())
		if err != nil {
			e.metrics.ProviderErrors.WithLabelValues("geocoder").Inc()
		}

		return addressResolved{token: token, at: at, address: address, err: err}, nil
	}

	return []effect{lookup}
}

func (e *Engine) addressResolved(ctx context.Context, r addressResolved) {
	if r.token != e.clickToken || e.sel != nil {
		e.log.DebugContext(ctx, "Stale address lookup discarded", "token", r.token)
		return
	}
	if r.err != nil || r.address == nil {
		e.log.WarnContext(ctx, "Failed to resolve clicked address", "error", r.err)
		return
	}

	e.m.OpenPopup(mapview.Popup{Kind: mapview.PopupAddPlace, Anchor: r.at, Address: *r.address})
}

func (e *Engine) startSearch(ctx context.Context, keyword string) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		e.filter.Search = false
		e.filter.Keyword = ""
		e.searchFitted = false
		return
	}

	e.deselect(ctx)
	e.filter.Search = true
	e.filter.Keyword = keyword
	e.searchFitted = false
}

// toggleListView follows the list button: open the closed panel, close it over
// a shown route, and end the selection otherwise.
func (e *Engine) toggleListView(ctx context.Context) {
	switch {
	case !e.panelOpen:
		if !e.filter.RouteActive {
			e.deselect(ctx)
		}
		e.panelOpen = true
	case e.sel != nil:
		if e.filter.RouteActive {
			e.panelOpen = false
			return
		}
		e.deselect(ctx)
	default:
		e.panelOpen = false
	}
}

func (e *Engine) locate() ([]effect, error) {
	if e.locator == nil {
		return nil, fmt.Errorf("%w: no locator configured", geolocation.ErrUnavailable)
	}

	run := func(ctx context.Context) (Action, error) {
		pos, err := geolocation.Resolve(ctx, e.locator)
		return located{pos: pos, err: err}, err
	}

	return []effect{run}, nil
}

// applyLocation moves the current location marker and centers the map. A
// failed lookup has already fallen back to the default position.
func (e *Engine) applyLocation(ctx context.Context, l located) {
	if l.err != nil {
		e.log.WarnContext(ctx, "Failed to locate user, using default position", "error", l.err)
		e.notify(NoticeGeolocation, locationMessage(l.err))
	}

	pos := l.pos
	e.userPos = &pos
	if e.pending != nil && !e.filter.RouteActive {
		e.pending.Start = pos
	}

	if e.userMarker != 0 {
		e.m.SetPosition(e.userMarker, pos)
	} else {
		handle, err := e.m.CreateMarker(mapview.MarkerSpec{
			Position: pos,
			Icon:     mapview.IconCurrentLocation,
			Z:        ZCurrentLocation,
		})
		if err != nil {
			e.synthesisFailed(ctx, "current-location", err)
		} else {
			e.userMarker = handle
		}
	}
	e.m.Morph(pos, e.m.Viewport().Zoom)
}

func locationMessage(err error) string {
	switch {
	case errors.Is(err, geolocation.ErrPermissionDenied):
		return "위치 정보 접근 권한이 거부되었습니다."
	case errors.Is(err, geolocation.ErrTimeout):
		return "위치 정보를 가져오는 시간이 초과되었습니다."
	default:
		return "현재 위치를 확인할 수 없습니다."
	}
}

func (e *Engine) savePlace(place models.Place) effect {
	return func(ctx context.Context) (Action, error) {
		stored, err := e.store.Upsert(ctx, place)
		if err != nil {
			return placeFailed{err: err}, err
		}

		return placeSaved{id: stored.ID}, nil
	}
}

func (e *Engine) deletePlace(id string) effect {
	return func(ctx context.Context) (Action, error) {
		if err := e.store.Remove(ctx, id); err != nil {
			return placeFailed{err: err}, err
		}

		return placeDeleted{id: id}, nil
	}
}

func (e *Engine) toggleFavorite(id string) effect {
	return func(ctx context.Context) (Action, error) {
		if _, err := e.store.ToggleFavorite(ctx, id); err != nil {
			return placeFailed{err: err}, err
		}

		return nil, nil
	}
}
