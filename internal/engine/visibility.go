package engine

import (
	"slices"

	"github.com/UnknownOlympus/nightspot/internal/models"
	"github.com/dhconnelly/rtreego"
)

// Filter is the part of the view state that decides what is shown.
type Filter struct {
	Categories    []string // empty means every category passes
	FavoritesOnly bool
	Search        bool
	Keyword       string
	RouteActive   bool
}

// Passes reports whether the place survives the category, favorite and, in
// search mode, keyword tests.
func (f Filter) Passes(p models.Place) bool {
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, p.Category) {
		return false
	}
	if f.FavoritesOnly && !p.Favorite {
		return false
	}
	if f.Search && !p.Matches(f.Keyword) {
		return false
	}

	return true
}

// Passing returns the members that pass the filter, in order.
func (f Filter) Passing(members []models.Place) []models.Place {
	var out []models.Place
	for _, p := range members {
		if f.Passes(p) {
			out = append(out, p)
		}
	}

	return out
}

// Resolve returns the places that are currently visible, in cluster order.
//
// Search mode shows every passing place regardless of the viewport. An active
// route shows nothing but the selection. Otherwise a place is shown when it
// passes the filter and its cluster lies in view; a nil inView puts every
// cluster in view. The selected place is always part of the result.
func Resolve(clusters []models.Cluster, f Filter, selectedID string, inView func(models.Cluster) bool) []models.Place {
	var out []models.Place

	browse := !f.Search && !f.RouteActive

	for _, c := range clusters {
		in := browse && (inView == nil || inView(c))
		for _, p := range c.Members {
			switch {
			case selectedID != "" && p.ID == selectedID:
				out = append(out, p)
			case f.Search:
				if f.Passes(p) {
					out = append(out, p)
				}
			case in && f.Passes(p):
				out = append(out, p)
			}
		}
	}

	return out
}

const (
	dimensions     = 2
	minChildren    = 25
	maxChildren    = 50
	pointTolerance = 1e-9
)

type clusterItem struct {
	key  string
	rect rtreego.Rect
}

func (c *clusterItem) Bounds() rtreego.Rect {
	return c.rect
}

// viewIndex answers "which clusters are inside these bounds" with an R-tree
// over cluster positions. It is rebuilt whenever the clusters are.
type viewIndex struct {
	tree *rtreego.Rtree
}

func newViewIndex(clusters []models.Cluster) *viewIndex {
	items := make([]rtreego.Spatial, 0, len(clusters))
	for _, c := range clusters {
		point := rtreego.Point{c.Position.Latitude, c.Position.Longitude}
		items = append(items, &clusterItem{key: c.Key, rect: point.ToRect(pointTolerance)})
	}

	return &viewIndex{tree: rtreego.NewTree(dimensions, minChildren, maxChildren, items...)}
}

// inView returns the predicate used by Resolve for the given bounds.
func (v *viewIndex) inView(b models.Bounds) func(models.Cluster) bool {
	if b.IsZero() {
		return nil
	}

	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.SouthWest.Latitude - pointTolerance, b.SouthWest.Longitude - pointTolerance},
		rtreego.Point{b.NorthEast.Latitude + pointTolerance, b.NorthEast.Longitude + pointTolerance},
	)
	if err != nil {
		return func(c models.Cluster) bool { return b.Contains(c.Position) }
	}

	keys := make(map[string]struct{})
	for _, s := range v.tree.SearchIntersect(rect) {
		if item, ok := s.(*clusterItem); ok {
			keys[item.key] = struct{}{}
		}
	}

	// the tree answers with a tolerance; the exact test keeps edges inclusive
	return func(c models.Cluster) bool {
		_, ok := keys[c.Key]
		return ok && b.Contains(c.Position)
	}
}
