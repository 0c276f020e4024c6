package engine_test

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/UnknownOlympus/nightspot/internal/cluster"
	"github.com/UnknownOlympus/nightspot/internal/engine"
	"github.com/UnknownOlympus/nightspot/internal/mapview"
	"github.com/UnknownOlympus/nightspot/internal/metrics"
	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/UnknownOlympus/nightspot/internal/poi"
	"github.com/UnknownOlympus/nightspot/internal/repository"
	"github.com/UnknownOlympus/nightspot/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cityHall = models.Coordinates{Latitude: 37.5666103, Longitude: 126.9783882}
	parkPos  = models.Coordinates{Latitude: 37.5283, Longitude: 126.9326}
	towerPos = models.Coordinates{Latitude: 37.5512, Longitude: 126.9882}
	bridge   = models.Coordinates{Latitude: 37.51, Longitude: 126.996}

	busan = models.Bounds{
		SouthWest: models.Coordinates{Latitude: 35.0, Longitude: 128.9},
		NorthEast: models.Coordinates{Latitude: 35.3, Longitude: 129.2},
	}
)

const (
	parkID     = "37.5283_126.9326"
	towerID    = "37.5512_126.9882"
	banpoID    = "37.5100_126.9960"
	fountainID = "37.51001_126.99601"
	sebitID    = "37.51002_126.99602"
)

// seoulNight has two lone places and a group of three around Banpo bridge.
var seoulNight = []poi.Record{
	{Num: "1", Category: models.CategoryPark, Title: "Han River Park", Latitude: "37.5283", Longitude: "126.9326"},
	{Num: "2", Category: models.CategoryCulture, Title: "Namsan Tower", Latitude: "37.5512", Longitude: "126.9882"},
	{Num: "3", Category: models.CategoryPark, Title: "Banpo Bridge", Latitude: "37.5100", Longitude: "126.9960"},
	{Num: "4", Category: models.CategoryCulture, Title: "Moonlight Fountain", Latitude: "37.51001", Longitude: "126.99601"},
	{Num: "5", Category: models.CategoryPublic, Title: "Sebitseom", Latitude: "37.51002", Longitude: "126.99602"},
}

type staticSource struct {
	mu      sync.Mutex
	records []poi.Record
	err     error
}

func (s *staticSource) Fetch(context.Context) ([]poi.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	return slices.Clone(s.records), nil
}

func (s *staticSource) set(records []poi.Record, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records, s.err = records, err
}

type fixture struct {
	engine  *engine.Engine
	m       *mapview.Headless
	store   *store.Store
	source  *staticSource
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, records []poi.Record, deps engine.Deps, favorites []string, setup ...func(*mapview.Headless)) *fixture {
	t.Helper()

	m := mapview.NewHeadless(cityHall, 13)
	for _, fn := range setup {
		fn(m)
	}

	met := metrics.NewMetrics(prometheus.NewRegistry())
	source := &staticSource{records: records}
	users := repository.NewMemory(models.User{ID: "u1", FavoriteIDs: favorites})
	st := store.New(source, users, "u1", slog.Default(), met)

	deps.Map = m
	deps.Store = st
	deps.Metrics = met
	deps.Logger = slog.Default()

	f := &fixture{
		engine:  engine.New(deps, engine.Options{}),
		m:       m,
		store:   st,
		source:  source,
		metrics: met,
	}
	require.NoError(t, f.engine.Dispatch(t.Context(), engine.Reload{}))

	return f
}

func (f *fixture) dispatch(t *testing.T, actions ...engine.Action) {
	t.Helper()
	for _, a := range actions {
		require.NoError(t, f.engine.Dispatch(t.Context(), a))
	}
}

func (f *fixture) visibleIDs() []string {
	var ids []string
	for _, p := range f.engine.Visible() {
		ids = append(ids, p.ID)
	}

	return ids
}

// clusterMarker returns the cluster marker under key, never the synthesized one.
func (f *fixture) clusterMarker(t *testing.T, key string) engine.MarkerView {
	t.Helper()
	for _, mv := range f.engine.Snapshot().Markers {
		if mv.Key == key && !mv.Synthesized {
			return mv
		}
	}
	require.FailNow(t, "no marker for cluster", key)

	return engine.MarkerView{}
}

func (f *fixture) synthesized() (engine.MarkerView, bool) {
	for _, mv := range f.engine.Snapshot().Markers {
		if mv.Synthesized {
			return mv, true
		}
	}

	return engine.MarkerView{}, false
}

// selectionMarker returns whichever marker currently draws the selected place.
func (f *fixture) selectionMarker(t *testing.T) engine.MarkerView {
	t.Helper()
	if mv, ok := f.synthesized(); ok {
		return mv
	}

	id := f.engine.Snapshot().SelectedID
	for _, mv := range f.engine.Snapshot().Markers {
		if mv.Kind == engine.KindSingle && mv.PlaceID == id {
			return mv
		}
	}
	require.FailNow(t, "no marker for selection", id)

	return engine.MarkerView{}
}

func keyOf(pos models.Coordinates) string {
	return cluster.New(0).Key(pos)
}

func TestReconcileBuildsOneMarkerPerCluster(t *testing.T) {
	f := newFixture(t, seoulNight, engine.Deps{}, nil)

	snap := f.engine.Snapshot()
	require.Len(t, snap.Markers, 3)
	assert.Len(t, f.m.Markers(), 3)

	var represented int
	for _, mv := range snap.Markers {
		assert.True(t, mv.Visible)
		represented += mv.Count
	}
	assert.Equal(t, len(seoulNight), represented)

	group := f.clusterMarker(t, keyOf(bridge))
	assert.Equal(t, engine.KindGroup, group.Kind)
	assert.Equal(t, 3, group.Count)

	single := f.clusterMarker(t, keyOf(parkPos))
	assert.Equal(t, engine.KindSingle, single.Kind)
	assert.Equal(t, parkID, single.PlaceID)

	t.Run("refresh with same data keeps marker identity", func(t *testing.T) {
		f.dispatch(t, engine.Reload{})
		again := f.engine.Snapshot()
		assert.Equal(t, snap.Markers, again.Markers)
		assert.Equal(t, []string{parkID, towerID, banpoID, fountainID, sebitID}, f.visibleIDs())
	})
}

func TestMarkerFailureIsolation(t *testing.T) {
	records := append(slices.Clone(seoulNight),
		poi.Record{Num: "9", Category: models.CategoryOther, Title: "Lost", Latitude: "", Longitude: ""})

	f := newFixture(t, records, engine.Deps{}, nil, func(m *mapview.Headless) {
		m.RejectMarkers(func(spec mapview.MarkerSpec) error {
			if spec.Title == "Namsan Tower" {
				return assert.AnError
			}
			return nil
		})
	})

	snap := f.engine.Snapshot()
	require.Len(t, snap.Markers, 2)
	assert.Equal(t, parkID, f.clusterMarker(t, keyOf(parkPos)).PlaceID)
	assert.Equal(t, 3, f.clusterMarker(t, keyOf(bridge)).Count)
	assert.GreaterOrEqual(t, testutil.ToFloat64(f.metrics.SynthesisFailures), 2.0)
	assert.NotContains(t, f.visibleIDs(), "_")
}

func TestReloadFailureKeepsWorkingSet(t *testing.T) {
	f := newFixture(t, seoulNight, engine.Deps{}, nil)
	before := f.engine.Snapshot().Markers

	f.source.set(nil, poi.ErrResultCode)
	err := f.engine.Dispatch(t.Context(), engine.Reload{})

	require.ErrorIs(t, err, store.ErrDataFetch)
	assert.Equal(t, before, f.engine.Snapshot().Markers)
	assert.Len(t, f.engine.Visible(), len(seoulNight))
	assert.Equal(t, []engine.Notice{{Kind: engine.NoticeDataFetch, Message: "장소 정보를 불러오지 못했습니다. 다시 시도해 주세요."}},
		f.engine.TakeNotices())
	assert.Empty(t, f.engine.TakeNotices())
}

func TestFavoriteFilter(t *testing.T) {
	f := newFixture(t, seoulNight[:2], engine.Deps{}, []string{parkID})

	assert.Equal(t, []string{parkID, towerID}, f.visibleIDs())

	f.dispatch(t, engine.ToggleFavoritesOnly{})
	assert.Equal(t, []string{parkID}, f.visibleIDs())
	assert.False(t, f.clusterMarker(t, keyOf(towerPos)).Visible)

	f.dispatch(t, engine.ToggleFavoritesOnly{})
	assert.Equal(t, []string{parkID, towerID}, f.visibleIDs())
	assert.True(t, f.clusterMarker(t, keyOf(towerPos)).Visible)
}

func TestToggleFavoriteAction(t *testing.T) {
	f := newFixture(t, seoulNight, engine.Deps{}, nil)

	f.dispatch(t, engine.ToggleFavorite{ID: towerID}, engine.ToggleFavoritesOnly{})

	assert.Equal(t, []string{towerID}, f.visibleIDs())
	assert.True(t, f.engine.Visible()[0].Favorite)
}

func TestCategoryFilter(t *testing.T) {
	f := newFixture(t, seoulNight, engine.Deps{}, nil)

	f.dispatch(t, engine.ToggleCategory{Category: models.CategoryPark})
	assert.Equal(t, []string{parkID, banpoID}, f.visibleIDs())
	assert.Equal(t, []string{models.CategoryPark}, f.engine.Snapshot().Categories)

	f.dispatch(t, engine.ToggleCategory{Category: models.CategoryCulture})
	assert.Equal(t, []string{parkID, towerID, banpoID, fountainID}, f.visibleIDs())

	f.dispatch(t, engine.ToggleCategory{Category: models.CategoryPark})
	assert.Equal(t, []string{towerID, fountainID}, f.visibleIDs())

	f.dispatch(t, engine.ToggleCategory{})
	assert.Empty(t, f.engine.Snapshot().Categories)
	assert.Len(t, f.visibleIDs(), len(seoulNight))
}

func TestClusterShrinkToOne(t *testing.T) {
	f := newFixture(t, seoulNight, engine.Deps{}, nil)
	key := keyOf(bridge)
	group := f.clusterMarker(t, key)
	require.Equal(t, engine.KindGroup, group.Kind)

	f.dispatch(t, engine.FilterChange{Categories: []string{models.CategoryCulture}})

	single := f.clusterMarker(t, key)
	assert.Equal(t, engine.KindSingle, single.Kind)
	assert.Equal(t, fountainID, single.PlaceID)
	assert.Equal(t, 1, single.Count)
	assert.NotEqual(t, group.Handle, single.Handle)
	_, alive := f.m.Marker(group.Handle)
	assert.False(t, alive)

	drawn, ok := f.m.Marker(single.Handle)
	require.True(t, ok)
	assert.Equal(t, mapview.IconSingle, drawn.Spec.Icon)

	t.Run("growing back to two rebuilds a group", func(t *testing.T) {
		f.dispatch(t, engine.FilterChange{Categories: []string{models.CategoryCulture, models.CategoryPark}})

		two := f.clusterMarker(t, key)
		assert.Equal(t, engine.KindGroup, two.Kind)
		assert.Equal(t, 2, two.Count)
		_, alive := f.m.Marker(single.Handle)
		assert.False(t, alive)

		f.dispatch(t, engine.FilterChange{})

		three := f.clusterMarker(t, key)
		assert.Equal(t, two.Handle, three.Handle)
		assert.Equal(t, 3, three.Count)
		drawn, _ := f.m.Marker(three.Handle)
		assert.Equal(t, 3, drawn.Spec.Count)
	})

	t.Run("no passing member hides the marker", func(t *testing.T) {
		f.dispatch(t, engine.FilterChange{Categories: []string{models.CategoryStreet}})

		hidden := f.clusterMarker(t, key)
		assert.False(t, hidden.Visible)
		assert.Empty(t, f.visibleIDs())
	})
}

func TestBrowseBounds(t *testing.T) {
	f := newFixture(t, seoulNight, engine.Deps{}, nil)

	f.m.SetBounds(models.Bounds{
		SouthWest: models.Coordinates{Latitude: 37.52, Longitude: 126.90},
		NorthEast: models.Coordinates{Latitude: 37.56, Longitude: 127.00},
	})
	f.dispatch(t, engine.BoundsChanged{})

	assert.Equal(t, []string{parkID, towerID}, f.visibleIDs())
	assert.False(t, f.clusterMarker(t, keyOf(bridge)).Visible)

	f.m.SetBounds(busan)
	f.dispatch(t, engine.BoundsChanged{})
	assert.Empty(t, f.visibleIDs())
}

func TestSearch(t *testing.T) {
	f := newFixture(t, seoulNight[:2], engine.Deps{}, nil)
	f.m.SetBounds(busan)
	f.dispatch(t, engine.BoundsChanged{})
	require.Empty(t, f.visibleIDs())

	f.dispatch(t, engine.SearchStart{Keyword: "Park"})

	assert.Equal(t, []string{parkID}, f.visibleIDs())
	assert.True(t, f.m.Bounds().Contains(parkPos))
	assert.True(t, f.engine.Snapshot().SearchMode)

	t.Run("initial fit happens once", func(t *testing.T) {
		f.m.SetBounds(busan)
		f.dispatch(t, engine.BoundsChanged{})

		assert.Equal(t, busan, f.m.Bounds())
		assert.Equal(t, []string{parkID}, f.visibleIDs())
	})

	t.Run("clearing search returns to bounds", func(t *testing.T) {
		f.dispatch(t, engine.SearchClear{})
		assert.Empty(t, f.visibleIDs())
		assert.False(t, f.engine.Snapshot().SearchMode)
	})

	t.Run("blank keyword leaves search mode", func(t *testing.T) {
		f.dispatch(t, engine.SearchStart{Keyword: "Tower"}, engine.SearchStart{Keyword: "  "})
		assert.False(t, f.engine.Snapshot().SearchMode)
	})
}

func TestAutocomplete(t *testing.T) {
	f := newFixture(t, seoulNight, engine.Deps{}, nil)

	assert.Nil(t, f.engine.Autocomplete("P"))

	got := f.engine.Autocomplete("Park")
	require.Len(t, got, 1)
	assert.Equal(t, parkID, got[0].ID)

	f.dispatch(t, engine.ToggleCategory{Category: models.CategoryCulture})
	assert.Empty(t, f.engine.Autocomplete("Park"))
}

func TestConcurrentDispatch(t *testing.T) {
	f := newFixture(t, seoulNight, engine.Deps{}, nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.engine.Dispatch(context.Background(), engine.ToggleFavoritesOnly{}))
		}()
	}
	wg.Wait()

	assert.False(t, f.engine.Snapshot().FavoritesOnly)
	assert.Len(t, f.visibleIDs(), len(seoulNight))
}
