package models

import (
	"strings"
	"time"
)

// Origin tells where a place came from.
type Origin string

const (
	// OriginCatalog marks places fetched from the external points-of-interest source.
	OriginCatalog Origin = "catalog"
	// OriginAuthored marks places added by the current user.
	OriginAuthored Origin = "authored"
)

// Category codes used by the night-view catalog.
const (
	CategoryCulture = "문화/체육"
	CategoryPark    = "공원/광장"
	CategoryPublic  = "공공시설"
	CategoryStreet  = "가로/마을"
	CategoryOther   = "기타"
)

// Categories lists every known category code in display order.
var Categories = []string{CategoryCulture, CategoryPark, CategoryPublic, CategoryStreet, CategoryOther}

// PlaceDetails holds the optional metadata shown in the detail panel.
type PlaceDetails struct {
	Hours       string `json:"hours,omitempty"`
	Phone       string `json:"phone,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
	FreeEntry   string `json:"free_entry,omitempty"`
	Fee         string `json:"fee,omitempty"`
	Subway      string `json:"subway,omitempty"`
	Bus         string `json:"bus,omitempty"`
	Parking     string `json:"parking,omitempty"`
}

// Place is a geo-located point of interest in the working set.
type Place struct {
	ID         string       `json:"id"`
	Number     string       `json:"number,omitempty"`
	Category   string       `json:"category"`
	Title      string       `json:"title"`
	Address    string       `json:"address"`
	Position   Coordinates  `json:"position"`
	Details    PlaceDetails `json:"details"`
	Favorite   bool         `json:"favorite"`
	Origin     Origin       `json:"origin"`
	Registered time.Time    `json:"registered"`
	Modified   time.Time    `json:"modified"`
}

// Authored reports whether the place was added by the user.
func (p Place) Authored() bool {
	return p.Origin == OriginAuthored
}

// Matches reports whether the keyword occurs in the title or the address.
// Matching ignores case so that Latin titles behave the way users expect.
func (p Place) Matches(keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return false
	}

	return strings.Contains(strings.ToLower(p.Title), keyword) ||
		strings.Contains(strings.ToLower(p.Address), keyword)
}
