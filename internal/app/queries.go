package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"localdir/internal/domain"
)

type QueryService struct {
	listings domain.ListingRepository
	reviews  domain.ReviewRepository
	catalog  domain.CatalogRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(l domain.ListingRepository, r domain.ReviewRepository, c domain.CatalogRepository, cache domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{listings: l, reviews: r, catalog: c, cache: cache, cacheTTL: ttl}
}

func listingKey(id int64) string { return fmt.Sprintf("listing:%d", id) }

func reviewsKey(id int64, limit int) string { return fmt.Sprintf("reviews:%d:%d", id, limit) }

// reviewsPrefix matches the cached first page for every page size.
func reviewsPrefix(id int64) string { return fmt.Sprintf("reviews:%d:*", id) }

// GetListing returns a publicly visible listing. Pending, inactive and
// rejected listings read as not found.
func (s *QueryService) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	key := listingKey(id)
	var l domain.Listing
	if ok, _ := s.cache.Get(ctx, key, &l); ok {
		return l, nil
	}
	l, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	if !l.Status.Visible() {
		return domain.Listing{}, domain.ErrNotFound
	}
	_ = s.cache.Set(ctx, key, l, int(s.cacheTTL.Seconds()))
	return l, nil
}

// ListReviews returns approved reviews, newest first. Only first pages are
// cached.
func (s *QueryService) ListReviews(ctx context.Context, id int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	key := reviewsKey(id, pg.Limit)
	cacheable := pg.Cursor == nil
	var out domain.ReviewsPage
	if cacheable {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	pg.Status = domain.ReviewApproved
	rs, err := s.reviews.ListReviews(ctx, id, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy so later mutation of the repo's slice cannot leak into the cache
	copyRS := deepCopyReviewsPage(rs)

	if b, _ := json.Marshal(copyRS); cacheable && len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, copyRS, int(s.cacheTTL.Seconds()))
	}
	return copyRS, nil
}

func (s *QueryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if ok, _ := s.cache.Get(ctx, "categories", &out); ok {
		return out, nil
	}
	out, err := s.catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, "categories", out, int(s.cacheTTL.Seconds()))
	return out, nil
}

func (s *QueryService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	var out []domain.Tag
	if ok, _ := s.cache.Get(ctx, "tags", &out); ok {
		return out, nil
	}
	out, err := s.catalog.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, "tags", out, int(s.cacheTTL.Seconds()))
	return out, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{NextCursor: in.NextCursor}
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
