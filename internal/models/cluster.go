package models

// Cluster groups places whose coordinates fall into the same tolerance bucket.
type Cluster struct {
	Key      string      // Key identifies the tolerance bucket.
	Position Coordinates // Position is the first member's coordinates.
	Members  []Place     // Members of the bucket in input order.
}

// Count returns the number of members.
func (c Cluster) Count() int {
	return len(c.Members)
}

// IDs returns the member ids in order.
func (c Cluster) IDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.ID)
	}

	return ids
}
