package models

// Address is a reverse-geocoded address with its road-name and lot-number forms.
type Address struct {
	Road string `json:"road"`
	Lot  string `json:"lot"`
}

// Display prefers the road address and falls back to the lot address.
func (a Address) Display() string {
	if a.Road != "" {
		return a.Road
	}

	return a.Lot
}
