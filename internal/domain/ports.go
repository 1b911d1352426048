package domain

import "context"

type ListingRepository interface {
	// Read paths
	Search(ctx context.Context, q ListingQuery) ([]Listing, error)
	GetListing(ctx context.Context, id int64) (Listing, error)
	ListUnlocated(ctx context.Context, limit int) ([]Listing, error)
	CountByStatus(ctx context.Context) (map[ListingStatus]int, error)

	// Write paths
	CreateListing(ctx context.Context, in ListingInput, status ListingStatus) (Listing, error)
	UpdateListing(ctx context.Context, id int64, in ListingInput) (Listing, error)
	SetListingStatus(ctx context.Context, id int64, status ListingStatus) error
	SetCoords(ctx context.Context, id int64, c Coords) error
	AddListingImage(ctx context.Context, id int64, uri string) error
	DeleteListing(ctx context.Context, id int64) error
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, r Review) (Review, error)
	GetReview(ctx context.Context, id int64) (Review, error)
	ListReviews(ctx context.Context, listingID int64, pg PageQuery) (ReviewsPage, error)
	SetReviewStatus(ctx context.Context, id int64, status ReviewStatus) error
	// RefreshListingRating recomputes rating and review_count from approved reviews.
	RefreshListingRating(ctx context.Context, listingID int64) error
	CountReviews(ctx context.Context, status ReviewStatus) (int, error)
}

type CatalogRepository interface {
	ListCategories(ctx context.Context) ([]Category, error)
	SaveCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListTags(ctx context.Context) ([]Tag, error)
	SaveTag(ctx context.Context, t Tag) (Tag, error)
	DeleteTag(ctx context.Context, id int64) error

	CreateReport(ctx context.Context, r Report) (Report, error)
	ListReports(ctx context.Context, status ReportStatus) ([]Report, error)
	SetReportStatus(ctx context.Context, id int64, status ReportStatus) error
	CountReports(ctx context.Context, status ReportStatus) (int, error)

	ListUsers(ctx context.Context, limit int) ([]User, error)
	SetUserStatus(ctx context.Context, id int64, status string) error
	CountUsers(ctx context.Context) (int, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	// Del removes key; a key ending in '*' removes every key with that prefix.
	Del(ctx context.Context, key string) error
}

// Geocoder resolves a place name. ErrLocationNotFound when it cannot.
type Geocoder interface {
	Resolve(ctx context.Context, name string) (Coords, error)
}

// Locator yields the device position of the searching client.
// ErrGeolocationDenied when unavailable.
type Locator interface {
	CurrentPosition(ctx context.Context) (Coords, error)
}

type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

type ChangeFeed interface {
	Subscribe(ctx context.Context, scope Scope) (Subscription, error)
	Publish(ctx context.Context, ev ChangeEvent) error
}

type ObjectStore interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

type PageQuery struct {
	Limit  int
	Cursor *string
	Sort   string
	Status ReviewStatus // empty = any
}
