package models

// AddressTask represents an authored place whose address still has to be resolved.
type AddressTask struct {
	PlaceID  string      // PlaceID is the identifier of the authored place.
	Position Coordinates // Position is the coordinate to reverse-geocode.
}
