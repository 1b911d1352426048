package domain

import "time"

type Table string

const (
	TableListings Table = "listings"
	TableReviews  Table = "reviews"
)

type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is one row-level notification. Listing or Review is set
// according to Table; delete events may carry only ID.
type ChangeEvent struct {
	Kind    ChangeKind `json:"kind"`
	Table   Table      `json:"table"`
	ID      int64      `json:"id"`
	Listing *Listing   `json:"listing,omitempty"`
	Review  *Review    `json:"review,omitempty"`
	At      time.Time  `json:"at"`
}

// Scope narrows a subscription to one table and optionally one listing.
type Scope struct {
	Table     Table
	ListingID int64 // reviews only; 0 = all
}

func (s Scope) Includes(ev ChangeEvent) bool {
	if ev.Table != s.Table {
		return false
	}
	if s.ListingID == 0 {
		return true
	}
	switch {
	case ev.Review != nil:
		return ev.Review.ListingID == s.ListingID
	case ev.Listing != nil:
		return ev.Listing.ID == s.ListingID
	}
	// bare delete: let the receiver decide by ID
	return ev.Kind == ChangeDelete
}
