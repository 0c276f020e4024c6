package models

// User is the current user's profile as seen by the map: favorites and authored places.
type User struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	FavoriteIDs []string `json:"favorite_place_ids"`
	Places      []Place  `json:"places"`
}

// IsFavorite reports whether the place id is in the user's favorites.
func (u *User) IsFavorite(id string) bool {
	if u == nil {
		return false
	}
	for _, fav := range u.FavoriteIDs {
		if fav == id {
			return true
		}
	}

	return false
}
