package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/jackc/pgx/v5"
)

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		user_id  TEXT PRIMARY KEY,
		username TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS favorites (
		user_id  TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		place_id TEXT NOT NULL,
		PRIMARY KEY (user_id, place_id)
	);
	CREATE TABLE IF NOT EXISTS places (
		place_id      TEXT NOT NULL,
		user_id       TEXT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
		category      TEXT NOT NULL,
		title         TEXT NOT NULL,
		address       TEXT NOT NULL DEFAULT '',
		latitude      DOUBLE PRECISION NOT NULL,
		longitude     DOUBLE PRECISION NOT NULL,
		hours         TEXT NOT NULL DEFAULT '',
		phone         TEXT NOT NULL DEFAULT '',
		url           TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL DEFAULT '',
		registered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		modified_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, place_id)
	);
`

// EnsureSchema creates the profile tables when they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// EnsureUser inserts the user when missing and leaves an existing row untouched.
func (r *Repository) EnsureUser(ctx context.Context, userID, username string) error {
	query := `
		INSERT INTO users (user_id, username)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING;
	`

	if _, err := r.db.Exec(ctx, query, userID, username); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}

	return nil
}

// GetUser loads the user's profile together with favorite ids and authored places.
// It returns ErrUserNotFound when no such user exists.
func (r *Repository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := models.User{ID: userID}

	err := r.db.QueryRow(ctx, `SELECT username FROM users WHERE user_id = $1;`, userID).Scan(&user.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	favorites, err := r.fetchFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FavoriteIDs = favorites

	places, err := r.fetchPlaces(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Places = places

	r.log.DebugContext(ctx, "User profile loaded",
		"user", userID, "favorites", len(favorites), "places", len(places))

	return &user, nil
}

func (r *Repository) fetchFavorites(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT place_id
		FROM favorites
		WHERE user_id = $1
		ORDER BY place_id;
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if errScan := rows.Scan(&id); errScan != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", errScan)
		}
		ids = append(ids, id)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return ids, nil
}

func (r *Repository) fetchPlaces(ctx context.Context, userID string) ([]models.Place, error) {
	query := `
		SELECT place_id, category, title, address, latitude, longitude,
			hours, phone, url, description, registered_at, modified_at
		FROM places
		WHERE user_id = $1
		ORDER BY registered_at ASC;
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query authored places: %w", err)
	}
	defer rows.Close()

	var places []models.Place
	for rows.Next() {
		place := models.Place{Origin: models.OriginAuthored}
		errScan := rows.Scan(
			&place.ID, &place.Category, &place.Title, &place.Address,
			&place.Position.Latitude, &place.Position.Longitude,
			&place.Details.Hours, &place.Details.Phone, &place.Details.URL, &place.Details.Description,
			&place.Registered, &place.Modified,
		)
		if errScan != nil {
			return nil, fmt.Errorf("failed to scan authored place: %w", errScan)
		}
		places = append(places, place)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return places, nil
}

// AddFavorite marks the place as a favorite of the user. Adding twice is a no-op.
func (r *Repository) AddFavorite(ctx context.Context, userID, placeID string) error {
	query := `
		INSERT INTO favorites (user_id, place_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING;
	`

	if _, err := r.db.Exec(ctx, query, userID, placeID); err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}

	return nil
}

// RemoveFavorite removes the place from the user's favorites.
func (r *Repository) RemoveFavorite(ctx context.Context, userID, placeID string) error {
	query := `
		DELETE FROM favorites
		WHERE user_id = $1 AND place_id = $2;
	`

	if _, err := r.db.Exec(ctx, query, userID, placeID); err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}

	return nil
}

// SavePlace inserts or updates an authored place.
func (r *Repository) SavePlace(ctx context.Context, userID string, place models.Place) error {
	query := `
		INSERT INTO places (place_id, user_id, category, title, address, latitude, longitude,
			hours, phone, url, description, registered_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, place_id) DO UPDATE SET
			category = EXCLUDED.category,
			title = EXCLUDED.title,
			address = EXCLUDED.address,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			hours = EXCLUDED.hours,
			phone = EXCLUDED.phone,
			url = EXCLUDED.url,
			description = EXCLUDED.description,
			modified_at = EXCLUDED.modified_at;
	`

	_, err := r.db.Exec(ctx, query,
		place.ID, userID, place.Category, place.Title, place.Address,
		place.Position.Latitude, place.Position.Longitude,
		place.Details.Hours, place.Details.Phone, place.Details.URL, place.Details.Description,
		place.Registered, place.Modified,
	)
	if err != nil {
		return fmt.Errorf("failed to save authored place: %w", err)
	}

	return nil
}

// DeletePlace removes an authored place and any favorite pointing at it.
// Both rows go in one transaction.
func (r *Repository) DeletePlace(ctx context.Context, userID, placeID string) error {
	placeQuery := `
		DELETE FROM places
		WHERE user_id = $1 AND place_id = $2;
	`
	favoriteQuery := `
		DELETE FROM favorites
		WHERE user_id = $1 AND place_id = $2;
	`

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, placeQuery, userID, placeID); err != nil {
			return fmt.Errorf("failed to delete authored place: %w", err)
		}
		if _, err := tx.Exec(ctx, favoriteQuery, userID, placeID); err != nil {
			return fmt.Errorf("failed to remove favorite: %w", err)
		}
		return nil
	})
}
