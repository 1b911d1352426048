package domain

import (
	"fmt"
	"slices"
	"strings"
)

const (
	MinRadiusMiles     = 1
	MaxRadiusMiles     = 50
	DefaultRadiusMiles = 10

	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
)

type SortKey string

const (
	SortDistance  SortKey = "distance"
	SortRating    SortKey = "rating"
	SortNewest    SortKey = "newest"
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortName      SortKey = "name"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortDistance, SortRating, SortNewest, SortPriceAsc, SortPriceDesc, SortName:
		return true
	}
	return false
}

// SearchFilter is the normalized, transient filter of one search interaction.
// Zero values mean "no constraint".
type SearchFilter struct {
	Query              string   `json:"q,omitempty"`
	CategoryID         *int64   `json:"category_id,omitempty"`
	Location           string   `json:"location,omitempty"`
	Origin             *Coords  `json:"origin,omitempty"`
	UseCurrentLocation bool     `json:"use_current_location,omitempty"`
	RadiusMiles        float64  `json:"radius_miles"`
	PriceMin           int      `json:"price_min,omitempty"`
	PriceMax           int      `json:"price_max,omitempty"`
	MinRating          float64  `json:"min_rating,omitempty"`
	Amenities          []string `json:"amenities,omitempty"`
	Sort               SortKey  `json:"sort,omitempty"`
	Limit              int      `json:"limit,omitempty"`
}

// Key is a canonical representation; two filters with equal keys select the
// same results.
func (f SearchFilter) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s|", strings.ToLower(f.Query))
	if f.CategoryID != nil {
		fmt.Fprintf(&b, "cat=%d|", *f.CategoryID)
	}
	fmt.Fprintf(&b, "loc=%s|", strings.ToLower(f.Location))
	if f.Origin != nil {
		fmt.Fprintf(&b, "o=%.6f,%.6f|", f.Origin.Lat, f.Origin.Lng)
	}
	fmt.Fprintf(&b, "r=%g|p=%d-%d|mr=%g|", f.RadiusMiles, f.PriceMin, f.PriceMax, f.MinRating)
	am := make([]string, len(f.Amenities))
	for i, a := range f.Amenities {
		am[i] = strings.ToLower(a)
	}
	slices.Sort(am)
	fmt.Fprintf(&b, "a=%s|s=%s|l=%d", strings.Join(am, ","), f.Sort, f.Limit)
	return b.String()
}

// Matches applies the store-level predicates of the filter to a single listing.
// Distance is not part of it.
func (f SearchFilter) Matches(l Listing) bool {
	if !l.Status.Visible() {
		return false
	}
	if f.CategoryID != nil && l.CategoryID != *f.CategoryID {
		return false
	}
	if f.PriceMin > 0 && (l.PriceLevel == 0 || l.PriceLevel < f.PriceMin) {
		return false
	}
	if f.PriceMax > 0 && (l.PriceLevel == 0 || l.PriceLevel > f.PriceMax) {
		return false
	}
	if f.MinRating > 0 && (l.Rating == nil || *l.Rating < f.MinRating) {
		return false
	}
	for _, a := range f.Amenities {
		if !l.HasAmenity(a) {
			return false
		}
	}
	if q := strings.ToLower(f.Query); q != "" {
		if !strings.Contains(strings.ToLower(l.Title), q) &&
			!strings.Contains(strings.ToLower(l.Description), q) &&
			!strings.Contains(strings.ToLower(l.Location), q) {
			return false
		}
	}
	return true
}

// ListingQuery is what the query layer receives: the filter minus anything
// that has to be evaluated client-side.
type ListingQuery struct {
	Query      string
	CategoryID *int64
	Statuses   []ListingStatus
	PriceMin   int
	PriceMax   int
	MinRating  float64
	Amenities  []string
	// Box, when set, restricts to listings with coordinates inside it.
	Box   *Box
	Limit int
}

// Box is a lat/lng rectangle, bounds inclusive.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func (b Box) Contains(c Coords) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

func (f SearchFilter) ListingQuery() ListingQuery {
	return ListingQuery{
		Query:      f.Query,
		CategoryID: f.CategoryID,
		Statuses:   VisibleStatuses,
		PriceMin:   f.PriceMin,
		PriceMax:   f.PriceMax,
		MinRating:  f.MinRating,
		Amenities:  f.Amenities,
		Limit:      f.Limit,
	}
}
