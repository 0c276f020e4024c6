// Package store holds the working set of places: the catalog merged with the
// current user's authored places and favorite flags.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/UnknownOlympus/nightspot/internal/metrics"
	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/UnknownOlympus/nightspot/internal/poi"
	"github.com/UnknownOlympus/nightspot/internal/repository"
)

// Common store errors.
var (
	ErrDataFetch       = errors.New("failed to load places")
	ErrNotFound        = errors.New("place not found")
	ErrNotAuthored     = errors.New("place was not authored by the user")
	ErrInvalidPosition = errors.New("place position is invalid")
)

// Listener is notified after every change of the working set.
type Listener func(ctx context.Context)

// Store owns the working set. Reads return copies; writes go through the
// profile repository first and only touch the working set once persisted.
type Store struct {
	source  poi.Source
	users   repository.Interface
	userID  string
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu        sync.RWMutex
	catalog   []models.Place
	user      *models.User
	places    []models.Place
	index     map[string]int
	version   uint64
	listeners []Listener
}

// New creates an empty Store. Call Load to populate it.
func New(
	source poi.Source,
	users repository.Interface,
	userID string,
	log *slog.Logger,
	metrics *metrics.Metrics,
) *Store {
	return &Store{
		source:  source,
		users:   users,
		userID:  userID,
		log:     log,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		index:   make(map[string]int),
	}
}

// AuthoredID returns the id given to a place the user adds at pos.
func AuthoredID(pos models.Coordinates) string {
	return "my_" + strconv.FormatFloat(pos.Latitude, 'f', -1, 64) +
		"_" + strconv.FormatFloat(pos.Longitude, 'f', -1, 64)
}

// Subscribe registers a listener for working set changes.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load fetches the catalog and the user's profile and rebuilds the working set.
// On failure the previous working set is kept and the error wraps ErrDataFetch.
// A user without a stored profile browses as a guest.
func (s *Store) Load(ctx context.Context) error {
	records, err := s.source.Fetch(ctx)
	if err != nil {
		s.metrics.CatalogFetches.WithLabelValues("failure").Inc()
		s.log.ErrorContext(ctx, "Failed to fetch catalog, keeping last good places", "error", err)
		return fmt.Errorf("%w: %w", ErrDataFetch, err)
	}

	user, err := s.users.GetUser(ctx, s.userID)
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		s.log.InfoContext(ctx, "No profile for user, browsing as guest", "user", s.userID)
		user = nil
	case err != nil:
		s.metrics.CatalogFetches.WithLabelValues("failure").Inc()
		s.log.ErrorContext(ctx, "Failed to load user profile, keeping last good places", "error", err)
		return fmt.Errorf("%w: %w", ErrDataFetch, err)
	}

	s.metrics.CatalogFetches.WithLabelValues("success").Inc()

	s.mu.Lock()
	s.catalog = poi.ToPlaces(records)
	s.user = user
	s.rebuild(ctx)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.log.InfoContext(ctx, "Places loaded", "catalog", len(records), "total", s.Len())
	s.notify(ctx, listeners)

	return nil
}

// Upsert adds or edits an authored place. A place without an id is new and
// receives one derived from its position. The stored place is returned.
func (s *Store) Upsert(ctx context.Context, place models.Place) (models.Place, error) {
	if !place.Position.Valid() {
		return models.Place{}, ErrInvalidPosition
	}

	now := s.now()
	if place.ID == "" {
		place.ID = AuthoredID(place.Position)
		place.Registered = now
	} else {
		existing, ok := s.Get(place.ID)
		if ok && !existing.Authored() {
			return models.Place{}, ErrNotAuthored
		}
		if ok {
			place.Registered = existing.Registered
		} else if place.Registered.IsZero() {
			place.Registered = now
		}
	}
	if place.Category == "" {
		place.Category = models.CategoryOther
	}
	place.Origin = models.OriginAuthored
	place.Modified = now

	if err := s.users.SavePlace(ctx, s.userID, place); err != nil {
		return models.Place{}, fmt.Errorf("failed to persist place: %w", err)
	}

	s.mu.Lock()
	user := s.ensureUser()
	if i := slices.IndexFunc(user.Places, func(p models.Place) bool { return p.ID == place.ID }); i >= 0 {
		user.Places[i] = place
	} else {
		user.Places = append(user.Places, place)
	}
	s.rebuild(ctx)
	stored := s.places[s.index[place.ID]]
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.log.DebugContext(ctx, "Authored place saved", "place", place.ID)
	s.notify(ctx, listeners)

	return stored, nil
}

// Remove deletes an authored place together with its favorite entry.
func (s *Store) Remove(ctx context.Context, id string) error {
	place, ok := s.Get(id)
	if !ok {
		return ErrNotFound
	}
	if !place.Authored() {
		return ErrNotAuthored
	}

	if err := s.users.DeletePlace(ctx, s.userID, id); err != nil {
		return fmt.Errorf("failed to delete place: %w", err)
	}

	s.mu.Lock()
	user := s.ensureUser()
	user.Places = slices.DeleteFunc(user.Places, func(p models.Place) bool { return p.ID == id })
	user.FavoriteIDs = slices.DeleteFunc(user.FavoriteIDs, func(f string) bool { return f == id })
	s.rebuild(ctx)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.log.DebugContext(ctx, "Authored place removed", "place", id)
	s.notify(ctx, listeners)

	return nil
}

// ToggleFavorite flips the favorite flag of the place for the current user and
// returns the new value.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	place, ok := s.Get(id)
	if !ok {
		return false, ErrNotFound
	}

	var err error
	if place.Favorite {
		err = s.users.RemoveFavorite(ctx, s.userID, id)
	} else {
		err = s.users.AddFavorite(ctx, s.userID, id)
	}
	if err != nil {
		return place.Favorite, fmt.Errorf("failed to toggle favorite: %w", err)
	}

	s.mu.Lock()
	user := s.ensureUser()
	if place.Favorite {
		user.FavoriteIDs = slices.DeleteFunc(user.FavoriteIDs, func(f string) bool { return f == id })
	} else {
		user.FavoriteIDs = append(user.FavoriteIDs, id)
	}
	s.rebuild(ctx)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.notify(ctx, listeners)

	return !place.Favorite, nil
}

// Snapshot returns a copy of the working set in stable order: catalog first,
// then authored places.
func (s *Store) Snapshot() []models.Place {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.places)
}

// Get returns the place with the given id.
func (s *Store) Get(id string) (models.Place, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.Place{}, false
	}

	return s.places[i], true
}

// Len returns the size of the working set.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.places)
}

// Version increases with every change of the working set.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// AuthoredWithoutAddress lists authored places whose address is still empty.
func (s *Store) AuthoredWithoutAddress() []models.AddressTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []models.AddressTask
	for _, p := range s.places {
		if p.Authored() && p.Address == "" && p.Position.Valid() {
			tasks = append(tasks, models.AddressTask{PlaceID: p.ID, Position: p.Position})
		}
	}

	return tasks
}

// ensureUser must be called with mu held.
func (s *Store) ensureUser() *models.User {
	if s.user == nil {
		s.user = &models.User{ID: s.userID}
	}

	return s.user
}

// rebuild must be called with mu held.
func (s *Store) rebuild(ctx context.Context) {
	places := make([]models.Place, 0, len(s.catalog)+s.authoredCount())
	index := make(map[string]int, cap(places))

	add := func(p models.Place) {
		if _, dup := index[p.ID]; dup {
			s.log.WarnContext(ctx, "Duplicate place id skipped", "place", p.ID)
			return
		}
		p.Favorite = s.user.IsFavorite(p.ID)
		index[p.ID] = len(places)
		places = append(places, p)
	}

	for _, p := range s.catalog {
		add(p)
	}
	if s.user != nil {
		for _, p := range s.user.Places {
			p.Origin = models.OriginAuthored
			add(p)
		}
	}

	s.places = places
	s.index = index
	s.version++
}

func (s *Store) authoredCount() int {
	if s.user == nil {
		return 0
	}

	return len(s.user.Places)
}

func (s *Store) notify(ctx context.Context, listeners []Listener) {
	for _, fn := range listeners {
		fn(ctx)
	}
}
