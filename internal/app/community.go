package app

import (
	"context"
	"strings"
	"time"

	"localdir/internal/domain"
)

// CommunityService handles writes made by regular visitors: reviews and
// abuse reports.
type CommunityService struct {
	listings domain.ListingRepository
	reviews  domain.ReviewRepository
	catalog  domain.CatalogRepository
	feed     domain.ChangeFeed
	now      func() time.Time
}

func NewCommunityService(l domain.ListingRepository, r domain.ReviewRepository, c domain.CatalogRepository, feed domain.ChangeFeed) *CommunityService {
	return &CommunityService{listings: l, reviews: r, catalog: c, feed: feed, now: time.Now}
}

// SubmitReview stores a pending review by authorID. Anonymous visitors
// (authorID 0) cannot review.
func (s *CommunityService) SubmitReview(ctx context.Context, authorID, listingID int64, rating int, comment string) (domain.Review, error) {
	if authorID <= 0 {
		return domain.Review{}, domain.ErrForbidden
	}
	r := domain.Review{
		ListingID: listingID,
		AuthorID:  authorID,
		Rating:    rating,
		Comment:   SanitizeText(comment),
		Status:    domain.ReviewPending,
		CreatedAt: s.now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return domain.Review{}, err
	}
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return domain.Review{}, err
	}
	if !l.Status.Visible() {
		return domain.Review{}, domain.ErrNotFound
	}
	out, err := s.reviews.CreateReview(ctx, r)
	if err != nil {
		return domain.Review{}, err
	}
	rv := out
	publish(ctx, s.feed, domain.ChangeEvent{Kind: domain.ChangeCreate, Table: domain.TableReviews, ID: out.ID, Review: &rv}, s.now)
	return out, nil
}

// SubmitReport files an abuse report against a listing or review.
// reporterID may be nil for anonymous reports.
func (s *CommunityService) SubmitReport(ctx context.Context, reporterID *int64, targetType string, targetID int64, reason string) (domain.Report, error) {
	targetType = strings.ToLower(strings.TrimSpace(targetType))
	reason = SanitizeText(reason)

	var errs []domain.FieldError
	if targetType != "listing" && targetType != "review" {
		errs = append(errs, domain.FieldError{Field: "target_type", Message: "must be listing or review"})
	}
	if targetID <= 0 {
		errs = append(errs, domain.FieldError{Field: "target_id", Message: "required"})
	}
	if reason == "" {
		errs = append(errs, domain.FieldError{Field: "reason", Message: "required"})
	}
	if len(errs) > 0 {
		return domain.Report{}, &domain.ValidationError{Fields: errs}
	}

	var err error
	switch targetType {
	case "listing":
		_, err = s.listings.GetListing(ctx, targetID)
	case "review":
		_, err = s.reviews.GetReview(ctx, targetID)
	}
	if err != nil {
		return domain.Report{}, err
	}

	return s.catalog.CreateReport(ctx, domain.Report{
		TargetType: targetType,
		TargetID:   targetID,
		ReporterID: reporterID,
		Reason:     reason,
		Status:     domain.ReportOpen,
		CreatedAt:  s.now().UTC(),
	})
}
