package domain

import "time"

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return true
	}
	return false
}

const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

type Review struct {
	ID        int64        `json:"id"`
	ListingID int64        `json:"listing_id"`
	AuthorID  int64        `json:"author_id"`
	Rating    int          `json:"rating"`
	Comment   string       `json:"comment,omitempty"`
	Status    ReviewStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

func (r Review) Validate() error {
	var errs []FieldError
	if r.ListingID <= 0 {
		errs = append(errs, FieldError{Field: "listing_id", Message: "review must reference a listing"})
	}
	if r.AuthorID <= 0 {
		errs = append(errs, FieldError{Field: "author_id", Message: "review must reference an author"})
	}
	if r.Rating < MinReviewRating || r.Rating > MaxReviewRating {
		errs = append(errs, FieldError{Field: "rating", Message: "rating must be between 1 and 5"})
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

type ReviewsPage struct {
	Items      []Review `json:"items"`
	NextCursor *string  `json:"next_cursor,omitempty"`
}
