package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/UnknownOlympus/nightspot/internal/models"
)

// Memory is an in-process profile store used when no database is configured.
type Memory struct {
	mu    sync.Mutex
	users map[string]*models.User
}

// NewMemory creates a Memory store seeded with the given users.
func NewMemory(users ...models.User) *Memory {
	m := &Memory{users: make(map[string]*models.User, len(users))}
	for _, u := range users {
		m.users[u.ID] = cloneUser(&u)
	}

	return m
}

// GetUser returns a copy of the stored user.
func (m *Memory) GetUser(_ context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}

	return cloneUser(user), nil
}

// AddFavorite adds the place id to the user's favorites.
func (m *Memory) AddFavorite(_ context.Context, userID, placeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if !slices.Contains(user.FavoriteIDs, placeID) {
		user.FavoriteIDs = append(user.FavoriteIDs, placeID)
	}

	return nil
}

// RemoveFavorite drops the place id from the user's favorites.
func (m *Memory) RemoveFavorite(_ context.Context, userID, placeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.FavoriteIDs = slices.DeleteFunc(user.FavoriteIDs, func(id string) bool { return id == placeID })

	return nil
}

// SavePlace inserts or replaces an authored place.
func (m *Memory) SavePlace(_ context.Context, userID string, place models.Place) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}

	place.Origin = models.OriginAuthored
	place.Favorite = false
	for i := range user.Places {
		if user.Places[i].ID == place.ID {
			user.Places[i] = place
			return nil
		}
	}
	user.Places = append(user.Places, place)

	return nil
}

// DeletePlace removes an authored place and its favorite entry.
func (m *Memory) DeletePlace(_ context.Context, userID, placeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.Places = slices.DeleteFunc(user.Places, func(p models.Place) bool { return p.ID == placeID })
	user.FavoriteIDs = slices.DeleteFunc(user.FavoriteIDs, func(id string) bool { return id == placeID })

	return nil
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.FavoriteIDs = slices.Clone(u.FavoriteIDs)
	c.Places = slices.Clone(u.Places)

	return &c
}
