package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"localdir/internal/domain"
)

// BackfillService fills in coordinates for listings that only have a
// location string, so they become reachable by radius search.
type BackfillService struct {
	listings domain.ListingRepository
	geocoder domain.Geocoder
	cache    domain.Cache
	feed     domain.ChangeFeed
	now      func() time.Time
}

func NewBackfillService(l domain.ListingRepository, g domain.Geocoder, cache domain.Cache, feed domain.ChangeFeed) *BackfillService {
	return &BackfillService{listings: l, geocoder: g, cache: cache, feed: feed, now: time.Now}
}

// Pending lists listings that have a location but no coordinates.
func (s *BackfillService) Pending(ctx context.Context, limit int) ([]domain.Listing, error) {
	return s.listings.ListUnlocated(ctx, limit)
}

// GeocodeListing resolves one listing. A location that cannot be resolved is
// a miss (resolved=false, nil error); anything else unexpected is returned.
func (s *BackfillService) GeocodeListing(ctx context.Context, l domain.Listing) (resolved bool, err error) {
	name := strings.TrimSpace(l.Location)
	if name == "" || l.Coords != nil {
		return false, nil
	}
	c, err := s.geocoder.Resolve(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrLocationNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.listings.SetCoords(ctx, l.ID, c); err != nil {
		return false, err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, listingKey(l.ID))
	}
	l.Coords = &c
	publish(ctx, s.feed, domain.ChangeEvent{Kind: domain.ChangeUpdate, Table: domain.TableListings, ID: l.ID, Listing: &l}, s.now)
	return true, nil
}
