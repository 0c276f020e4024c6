package store_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/nightspot/internal/metrics"
	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/UnknownOlympus/nightspot/internal/poi"
	"github.com/UnknownOlympus/nightspot/internal/repository"
	"github.com/UnknownOlympus/nightspot/internal/store"
	"github.com/UnknownOlympus/nightspot/test/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var catalog = []poi.Record{
	{Num: "1", Category: models.CategoryPark, Title: "Han River Park", Latitude: "37.5283", Longitude: "126.9326"},
	{Num: "2", Category: models.CategoryCulture, Title: "Namsan Tower", Latitude: "37.5512", Longitude: "126.9882"},
}

func newStore(t *testing.T, source poi.Source, users repository.Interface) *store.Store {
	t.Helper()
	return store.New(source, users, "u1", slog.Default(), metrics.NewMetrics(prometheus.NewRegistry()))
}

func TestLoad(t *testing.T) {
	ctx := t.Context()

	t.Run("merges catalog with profile", func(t *testing.T) {
		source := mocks.NewSource(t)
		source.On("Fetch", mock.Anything).Return(catalog, nil).Once()
		users := repository.NewMemory(models.User{
			ID:          "u1",
			FavoriteIDs: []string{"37.5512_126.9882"},
			Places: []models.Place{{
				ID:       "my_37.5_126.9",
				Title:    "Rooftop",
				Position: models.Coordinates{Latitude: 37.5, Longitude: 126.9},
			}},
		})
		s := newStore(t, source, users)

		var notified int
		s.Subscribe(func(context.Context) { notified++ })

		require.NoError(t, s.Load(ctx))

		places := s.Snapshot()
		require.Len(t, places, 3)
		assert.Equal(t, "37.5283_126.9326", places[0].ID)
		assert.False(t, places[0].Favorite)
		assert.True(t, places[1].Favorite)
		assert.Equal(t, models.OriginAuthored, places[2].Origin)
		assert.Equal(t, 1, notified)
		assert.Equal(t, uint64(1), s.Version())
	})

	t.Run("unknown user browses as guest", func(t *testing.T) {
		source := mocks.NewSource(t)
		source.On("Fetch", mock.Anything).Return(catalog, nil).Once()
		s := newStore(t, source, repository.NewMemory())

		require.NoError(t, s.Load(ctx))
		assert.Equal(t, 2, s.Len())
	})

	t.Run("fetch failure keeps last good working set", func(t *testing.T) {
		source := mocks.NewSource(t)
		source.On("Fetch", mock.Anything).Return(catalog, nil).Once()
		source.On("Fetch", mock.Anything).Return(nil, poi.ErrResultCode).Once()
		s := newStore(t, source, repository.NewMemory())

		require.NoError(t, s.Load(ctx))
		err := s.Load(ctx)

		require.ErrorIs(t, err, store.ErrDataFetch)
		require.ErrorIs(t, err, poi.ErrResultCode)
		assert.Equal(t, 2, s.Len())
		assert.Equal(t, uint64(1), s.Version())
	})

	t.Run("profile failure keeps last good working set", func(t *testing.T) {
		source := mocks.NewSource(t)
		source.On("Fetch", mock.Anything).Return(catalog, nil).Once()
		users := mocks.NewInterface(t)
		users.On("GetUser", mock.Anything, "u1").Return(nil, assert.AnError).Once()
		s := newStore(t, source, users)

		err := s.Load(ctx)

		require.ErrorIs(t, err, store.ErrDataFetch)
		assert.Zero(t, s.Len())
	})
}

func TestToggleFavorite(t *testing.T) {
	ctx := t.Context()
	source := mocks.NewSource(t)
	source.On("Fetch", mock.Anything).Return(catalog, nil).Once()
	users := repository.NewMemory(models.User{ID: "u1"})
	s := newStore(t, source, users)
	require.NoError(t, s.Load(ctx))

	fav, err := s.ToggleFavorite(ctx, "37.5283_126.9326")
	require.NoError(t, err)
	assert.True(t, fav)

	place, ok := s.Get("37.5283_126.9326")
	require.True(t, ok)
	assert.True(t, place.Favorite)

	user, err := users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"37.5283_126.9326"}, user.FavoriteIDs)

	fav, err = s.ToggleFavorite(ctx, "37.5283_126.9326")
	require.NoError(t, err)
	assert.False(t, fav)

	_, err = s.ToggleFavorite(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	t.Run("persist failure leaves flag untouched", func(t *testing.T) {
		failing := mocks.NewInterface(t)
		failing.On("GetUser", mock.Anything, "u1").Return(&models.User{ID: "u1"}, nil).Once()
		failing.On("AddFavorite", mock.Anything, "u1", "37.5283_126.9326").Return(assert.AnError).Once()
		src := mocks.NewSource(t)
		src.On("Fetch", mock.Anything).Return(catalog, nil).Once()
		s := newStore(t, src, failing)
		require.NoError(t, s.Load(ctx))

		_, err := s.ToggleFavorite(ctx, "37.5283_126.9326")

		require.ErrorIs(t, err, assert.AnError)
		place, _ := s.Get("37.5283_126.9326")
		assert.False(t, place.Favorite)
	})
}

func TestUpsertAndRemove(t *testing.T) {
	ctx := t.Context()
	source := mocks.NewSource(t)
	source.On("Fetch", mock.Anything).Return(catalog, nil).Once()
	users := repository.NewMemory(models.User{ID: "u1"})
	s := newStore(t, source, users)
	require.NoError(t, s.Load(ctx))

	var notified int
	s.Subscribe(func(context.Context) { notified++ })

	pos := models.Coordinates{Latitude: 37.57, Longitude: 126.98}
	added, err := s.Upsert(ctx, models.Place{Title: "Bridge view", Position: pos})
	require.NoError(t, err)
	assert.Equal(t, "my_37.57_126.98", added.ID)
	assert.Equal(t, models.OriginAuthored, added.Origin)
	assert.Equal(t, models.CategoryOther, added.Category)
	assert.False(t, added.Registered.IsZero())
	assert.Equal(t, 3, s.Len())

	added.Title = "Bridge night view"
	updated, err := s.Upsert(ctx, added)
	require.NoError(t, err)
	assert.Equal(t, "Bridge night view", updated.Title)
	assert.Equal(t, added.Registered, updated.Registered)
	assert.Equal(t, 3, s.Len())

	_, err = s.Upsert(ctx, models.Place{ID: "37.5283_126.9326", Position: pos})
	require.ErrorIs(t, err, store.ErrNotAuthored)

	_, err = s.Upsert(ctx, models.Place{Title: "nowhere"})
	require.ErrorIs(t, err, store.ErrInvalidPosition)

	tasks := s.AuthoredWithoutAddress()
	require.Len(t, tasks, 1)
	assert.Equal(t, added.ID, tasks[0].PlaceID)

	require.ErrorIs(t, s.Remove(ctx, "37.5283_126.9326"), store.ErrNotAuthored)
	require.ErrorIs(t, s.Remove(ctx, "missing"), store.ErrNotFound)
	require.NoError(t, s.Remove(ctx, added.ID))
	assert.Equal(t, 2, s.Len())

	user, err := users.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, user.Places)
	assert.Equal(t, 3, notified)
}

func TestAuthoredID(t *testing.T) {
	assert.Equal(t, "my_37.5666103_126.9783882",
		store.AuthoredID(models.Coordinates{Latitude: 37.5666103, Longitude: 126.9783882}))
}
