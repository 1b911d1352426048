package domain

import "time"

type ListingStatus string

const (
	ListingPending  ListingStatus = "pending"
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
	ListingFeatured ListingStatus = "featured"
	ListingRejected ListingStatus = "rejected"
)

func (s ListingStatus) Valid() bool {
	switch s {
	case ListingPending, ListingActive, ListingInactive, ListingFeatured, ListingRejected:
		return true
	}
	return false
}

// Visible reports whether a listing with this status shows up in public search.
func (s ListingStatus) Visible() bool {
	return s == ListingActive || s == ListingFeatured
}

// VisibleStatuses is the status set the public query layer filters on.
var VisibleStatuses = []ListingStatus{ListingActive, ListingFeatured}

var transitions = map[ListingStatus][]ListingStatus{
	ListingPending:  {ListingActive, ListingRejected},
	ListingActive:   {ListingInactive, ListingFeatured},
	ListingInactive: {ListingActive},
	ListingFeatured: {ListingActive},
}

// CanTransition reports whether a listing may move from one status to another.
// Rejected is terminal.
func CanTransition(from, to ListingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid rejects out-of-range values; (0,0) is accepted.
func (c Coords) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

type DayHours struct {
	Day   string `json:"day"`
	Range string `json:"range"`
}

type Listing struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	CategoryID  int64         `json:"category_id"`
	Status      ListingStatus `json:"status"`
	Coords      *Coords       `json:"coords,omitempty"`
	PriceLevel  int           `json:"price_level,omitempty"` // 1..4, 0 = unknown
	Rating      *float64      `json:"rating,omitempty"`
	ReviewCount int           `json:"review_count"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location,omitempty"`
	Contact     string        `json:"contact,omitempty"`
	Amenities   []string      `json:"amenities,omitempty"`
	Hours       []DayHours    `json:"hours,omitempty"`
	Images      []string      `json:"images,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	OwnerID     *int64        `json:"owner_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// HasAmenity matches case-insensitively.
func (l Listing) HasAmenity(name string) bool {
	for _, a := range l.Amenities {
		if equalFold(a, name) {
			return true
		}
	}
	return false
}

// ListingInput is the mutable part of a listing accepted from admin forms.
type ListingInput struct {
	Title       string     `json:"title"`
	CategoryID  int64      `json:"category_id"`
	Coords      *Coords    `json:"coords,omitempty"`
	PriceLevel  int        `json:"price_level,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Contact     string     `json:"contact,omitempty"`
	Amenities   []string   `json:"amenities,omitempty"`
	Hours       []DayHours `json:"hours,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	OwnerID     *int64     `json:"owner_id,omitempty"`
}

func (in ListingInput) Validate() error {
	var errs []FieldError
	if in.Title == "" {
		errs = append(errs, FieldError{Field: "title", Message: "title is required"})
	}
	if in.CategoryID <= 0 {
		errs = append(errs, FieldError{Field: "category_id", Message: "a listing belongs to exactly one category"})
	}
	if in.PriceLevel < 0 || in.PriceLevel > 4 {
		errs = append(errs, FieldError{Field: "price_level", Message: "price level must be between 1 and 4"})
	}
	if in.Coords != nil && !in.Coords.Valid() {
		errs = append(errs, FieldError{Field: "coords", Message: "coordinates out of range"})
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
