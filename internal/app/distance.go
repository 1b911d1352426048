package app

import (
	"cmp"
	"slices"
	"strings"

	"localdir/internal/domain"
	"localdir/internal/geo"
)

// Result is a listing as shown in a result list. DistanceMiles is nil when
// the search had no origin.
type Result struct {
	Listing       domain.Listing `json:"listing"`
	DistanceMiles *float64       `json:"distance_miles,omitempty"`
}

func resultID(r Result) int64 { return r.Listing.ID }

// EffectiveSort resolves the sort key actually applied: distance needs an origin.
func EffectiveSort(key domain.SortKey, hasOrigin bool) domain.SortKey {
	switch {
	case key == "" && hasOrigin:
		return domain.SortDistance
	case key == "", key == domain.SortDistance && !hasOrigin:
		return domain.SortRating
	}
	return key
}

// placeResult builds the Result for l. ok is false when an origin is set and l
// is unlocated or farther than radius.
func placeResult(l domain.Listing, origin *domain.Coords, radius float64) (Result, bool) {
	if origin == nil {
		return Result{Listing: l}, true
	}
	if l.Coords == nil {
		return Result{}, false
	}
	d := geo.DistanceMiles(*origin, *l.Coords)
	if d > radius {
		return Result{}, false
	}
	return Result{Listing: l, DistanceMiles: &d}, true
}

// ApplyDistance filters candidates to radius around origin and sorts them.
// A nil origin skips distance entirely; the listings keep no distance and
// are ordered by the sort key (rating by default).
func ApplyDistance(origin *domain.Coords, radius float64, candidates []domain.Listing, key domain.SortKey) []Result {
	out := make([]Result, 0, len(candidates))
	if origin == nil {
		for _, l := range candidates {
			out = append(out, Result{Listing: l})
		}
	} else {
		radius = ClampRadius(radius)
		for _, l := range candidates {
			if r, ok := placeResult(l, origin, radius); ok {
				out = append(out, r)
			}
		}
	}
	slices.SortStableFunc(out, resultCompare(EffectiveSort(key, origin != nil)))
	return out
}

// resultCompare orders by the key, then by distance when known, then by ID so
// that equal inputs always produce the same order.
func resultCompare(key domain.SortKey) func(a, b Result) int {
	return func(a, b Result) int {
		var c int
		switch key {
		case domain.SortDistance:
			c = cmpNilLast(a.DistanceMiles, b.DistanceMiles, false)
			if c == 0 {
				c = cmpNilLast(a.Listing.Rating, b.Listing.Rating, true)
			}
		case domain.SortRating:
			c = cmpNilLast(a.Listing.Rating, b.Listing.Rating, true)
			if c == 0 {
				c = cmp.Compare(b.Listing.ReviewCount, a.Listing.ReviewCount)
			}
		case domain.SortNewest:
			c = b.Listing.CreatedAt.Compare(a.Listing.CreatedAt)
		case domain.SortPriceAsc:
			c = cmpPrice(a.Listing.PriceLevel, b.Listing.PriceLevel, false)
		case domain.SortPriceDesc:
			c = cmpPrice(a.Listing.PriceLevel, b.Listing.PriceLevel, true)
		case domain.SortName:
			c = cmp.Compare(strings.ToLower(a.Listing.Title), strings.ToLower(b.Listing.Title))
		}
		if c == 0 && key != domain.SortDistance {
			c = cmpNilLast(a.DistanceMiles, b.DistanceMiles, false)
		}
		if c == 0 {
			c = cmp.Compare(a.Listing.ID, b.Listing.ID)
		}
		return c
	}
}

func cmpNilLast(a, b *float64, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case desc:
		return cmp.Compare(*b, *a)
	}
	return cmp.Compare(*a, *b)
}

// unknown price (0) sorts last in both directions
func cmpPrice(a, b int, desc bool) int {
	switch {
	case a == b:
		return 0
	case a == 0:
		return 1
	case b == 0:
		return -1
	case desc:
		return cmp.Compare(b, a)
	}
	return cmp.Compare(a, b)
}
