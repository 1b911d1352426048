package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"localdir/internal/domain"
)

// AdminService implements the back-office writes. Every successful write
// evicts the affected cache entries and publishes a change event; a failed
// publish is logged, not returned, because the store already holds the truth.
type AdminService struct {
	listings domain.ListingRepository
	reviews  domain.ReviewRepository
	catalog  domain.CatalogRepository
	cache    domain.Cache
	feed     domain.ChangeFeed
	store    domain.ObjectStore
	now      func() time.Time
}

func NewAdminService(l domain.ListingRepository, r domain.ReviewRepository, c domain.CatalogRepository,
	cache domain.Cache, feed domain.ChangeFeed, store domain.ObjectStore) *AdminService {
	return &AdminService{listings: l, reviews: r, catalog: c, cache: cache, feed: feed, store: store, now: time.Now}
}

/********** listings **********/

func (s *AdminService) CreateListing(ctx context.Context, in domain.ListingInput) (domain.Listing, error) {
	in = cleanListingInput(in)
	if err := in.Validate(); err != nil {
		return domain.Listing{}, err
	}
	l, err := s.listings.CreateListing(ctx, in, domain.ListingPending)
	if err != nil {
		return domain.Listing{}, err
	}
	s.publishListing(ctx, domain.ChangeCreate, l)
	return l, nil
}

func (s *AdminService) UpdateListing(ctx context.Context, id int64, in domain.ListingInput) (domain.Listing, error) {
	in = cleanListingInput(in)
	if err := in.Validate(); err != nil {
		return domain.Listing{}, err
	}
	l, err := s.listings.UpdateListing(ctx, id, in)
	if err != nil {
		return domain.Listing{}, err
	}
	s.invalidateListing(ctx, id)
	s.publishListing(ctx, domain.ChangeUpdate, l)
	return l, nil
}

// SetListingStatus moves a listing along the allowed status graph. Setting
// the current status again is a no-op.
func (s *AdminService) SetListingStatus(ctx context.Context, id int64, to domain.ListingStatus) (domain.Listing, error) {
	if !to.Valid() {
		return domain.Listing{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "status", Message: "unknown status"}}}
	}
	l, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if l.Status == to {
		return l, nil
	}
	if !domain.CanTransition(l.Status, to) {
		return domain.Listing{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, l.Status, to)
	}
	if err := s.listings.SetListingStatus(ctx, id, to); err != nil {
		return domain.Listing{}, err
	}
	l.Status = to
	l.UpdatedAt = s.now().UTC()
	s.invalidateListing(ctx, id)
	s.publishListing(ctx, domain.ChangeUpdate, l)
	log.Info().Int64("listing_id", id).Str("status", string(to)).Msg("listing status changed")
	return l, nil
}

func (s *AdminService) DeleteListing(ctx context.Context, id int64) error {
	if err := s.listings.DeleteListing(ctx, id); err != nil {
		return err
	}
	s.invalidateListing(ctx, id)
	s.invalidateReviews(ctx, id)
	s.publish(ctx, domain.ChangeEvent{Kind: domain.ChangeDelete, Table: domain.TableListings, ID: id})
	return nil
}

// AttachImage uploads data to the object store and appends its URI to the
// listing's images.
func (s *AdminService) AttachImage(ctx context.Context, id int64, name, contentType string, data []byte) (domain.Listing, error) {
	if s.store == nil {
		return domain.Listing{}, errors.New("object storage is not configured")
	}
	if len(data) == 0 {
		return domain.Listing{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "file", Message: "empty upload"}}}
	}
	if _, err := s.listings.GetListing(ctx, id); err != nil {
		return domain.Listing{}, err
	}
	uri, err := s.store.Upload(ctx, name, contentType, data)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("upload image for listing %d: %w", id, err)
	}
	if err := s.listings.AddListingImage(ctx, id, uri); err != nil {
		return domain.Listing{}, err
	}
	l, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	s.invalidateListing(ctx, id)
	s.publishListing(ctx, domain.ChangeUpdate, l)
	return l, nil
}

/********** reviews **********/

// ModerateReview approves or rejects a review and refreshes the listing's
// derived rating.
func (s *AdminService) ModerateReview(ctx context.Context, id int64, status domain.ReviewStatus) (domain.Review, error) {
	if !status.Valid() || status == domain.ReviewPending {
		return domain.Review{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "status", Message: "must be approved or rejected"}}}
	}
	r, err := s.reviews.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	if r.Status == status {
		return r, nil
	}
	if err := s.reviews.SetReviewStatus(ctx, id, status); err != nil {
		return domain.Review{}, err
	}
	r.Status = status
	if err := s.reviews.RefreshListingRating(ctx, r.ListingID); err != nil {
		return domain.Review{}, fmt.Errorf("refresh rating for listing %d: %w", r.ListingID, err)
	}

	s.invalidateListing(ctx, r.ListingID)
	s.invalidateReviews(ctx, r.ListingID)
	rv := r
	s.publish(ctx, domain.ChangeEvent{Kind: domain.ChangeUpdate, Table: domain.TableReviews, ID: r.ID, Review: &rv})
	if l, err := s.listings.GetListing(ctx, r.ListingID); err == nil {
		s.publishListing(ctx, domain.ChangeUpdate, l)
	}
	return r, nil
}

/********** categories & tags **********/

func (s *AdminService) SaveCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return domain.Category{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "name", Message: "name is required"}}}
	}
	if c.Slug == "" {
		c.Slug = domain.Slugify(c.Name)
	}
	if c.Status == "" {
		c.Status = "active"
	}
	out, err := s.catalog.SaveCategory(ctx, c)
	if err != nil {
		return domain.Category{}, err
	}
	_ = s.cache.Del(ctx, "categories")
	return out, nil
}

func (s *AdminService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.catalog.DeleteCategory(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Del(ctx, "categories")
	return nil
}

func (s *AdminService) SaveTag(ctx context.Context, t domain.Tag) (domain.Tag, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return domain.Tag{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "name", Message: "name is required"}}}
	}
	if t.Slug == "" {
		t.Slug = domain.Slugify(t.Name)
	}
	if t.Status == "" {
		t.Status = "active"
	}
	out, err := s.catalog.SaveTag(ctx, t)
	if err != nil {
		return domain.Tag{}, err
	}
	_ = s.cache.Del(ctx, "tags")
	return out, nil
}

func (s *AdminService) DeleteTag(ctx context.Context, id int64) error {
	if err := s.catalog.DeleteTag(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Del(ctx, "tags")
	return nil
}

/********** reports & users **********/

func (s *AdminService) ListReports(ctx context.Context, status domain.ReportStatus) ([]domain.Report, error) {
	return s.catalog.ListReports(ctx, status)
}

func (s *AdminService) SetReportStatus(ctx context.Context, id int64, status domain.ReportStatus) error {
	switch status {
	case domain.ReportOpen, domain.ReportResolved, domain.ReportDismissed:
	default:
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "status", Message: "must be open, resolved or dismissed"}}}
	}
	return s.catalog.SetReportStatus(ctx, id, status)
}

func (s *AdminService) ListUsers(ctx context.Context, limit int) ([]domain.User, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.catalog.ListUsers(ctx, limit)
}

func (s *AdminService) SetUserStatus(ctx context.Context, id int64, status string) error {
	if status != "active" && status != "suspended" {
		return &domain.ValidationError{Fields: []domain.FieldError{{Field: "status", Message: "must be active or suspended"}}}
	}
	return s.catalog.SetUserStatus(ctx, id, status)
}

// Stats gathers the dashboard counters concurrently.
func (s *AdminService) Stats(ctx context.Context) (domain.Stats, error) {
	var out domain.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.ListingsByStatus, err = s.listings.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.PendingReviews, err = s.reviews.CountReviews(gctx, domain.ReviewPending)
		return err
	})
	g.Go(func() (err error) {
		out.OpenReports, err = s.catalog.CountReports(gctx, domain.ReportOpen)
		return err
	})
	g.Go(func() (err error) {
		out.Users, err = s.catalog.CountUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Stats{}, err
	}
	return out, nil
}

/********** helpers **********/

func cleanListingInput(in domain.ListingInput) domain.ListingInput {
	in.Title = SanitizeText(in.Title)
	in.Description = SanitizeText(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Contact = strings.TrimSpace(in.Contact)
	amen := in.Amenities[:0:0]
	for _, a := range in.Amenities {
		if a = strings.TrimSpace(a); a != "" {
			amen = append(amen, a)
		}
	}
	in.Amenities = amen
	return in
}

func (s *AdminService) publishListing(ctx context.Context, kind domain.ChangeKind, l domain.Listing) {
	s.publish(ctx, domain.ChangeEvent{Kind: kind, Table: domain.TableListings, ID: l.ID, Listing: &l})
}

func (s *AdminService) publish(ctx context.Context, ev domain.ChangeEvent) {
	publish(ctx, s.feed, ev, s.now)
}

func publish(ctx context.Context, feed domain.ChangeFeed, ev domain.ChangeEvent, now func() time.Time) {
	if feed == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = now().UTC()
	}
	if err := feed.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("table", string(ev.Table)).
			Str("kind", string(ev.Kind)).
			Int64("id", ev.ID).
			Msg("publish change event failed")
	}
}

func (s *AdminService) invalidateListing(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, listingKey(id))
}

func (s *AdminService) invalidateReviews(ctx context.Context, id int64) {
	invalidateReviews(ctx, s.cache, id)
}

func invalidateReviews(ctx context.Context, cache domain.Cache, id int64) {
	if cache == nil {
		return
	}
	_ = cache.Del(ctx, reviewsPrefix(id))
}
