package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"localdir/internal/adapters/memfeed"
	"localdir/internal/app"
	"localdir/internal/app/apptest"
	"localdir/internal/domain"
)

type brokenGeocoder struct{}

func (brokenGeocoder) Resolve(context.Context, string) (domain.Coords, error) {
	return domain.Coords{}, errors.New("upstream 503")
}

func TestBackfill_GeocodesPendingListings(t *testing.T) {
	ctx := context.Background()
	store := apptest.NewStore()
	cache := apptest.NewCache()
	feed := memfeed.New()
	rec := record(t, feed, domain.TableListings)
	hit := store.PutListing(domain.Listing{Title: "a", CategoryID: 1, Status: domain.ListingActive, Location: "New York"})
	miss := store.PutListing(domain.Listing{Title: "b", CategoryID: 1, Status: domain.ListingActive, Location: "Atlantis"})
	store.PutListing(domain.Listing{Title: "c", CategoryID: 1, Status: domain.ListingActive})
	require.NoError(t, cache.Set(ctx, "listing:1", hit, 60))

	svc := app.NewBackfillService(store, apptest.Geocoder{"new york": newYork}, cache, feed)
	pending, err := svc.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	ok, err := svc.GeocodeListing(ctx, pending[0])
	require.NoError(t, err)
	require.True(t, ok)
	ev := rec.next(t)
	require.Equal(t, hit.ID, ev.ID)
	require.Equal(t, newYork, *ev.Listing.Coords)
	require.False(t, cache.Has("listing:1"))

	ok, err = svc.GeocodeListing(ctx, pending[1])
	require.NoError(t, err)
	require.False(t, ok)

	got, _ := store.GetListing(ctx, miss.ID)
	require.Nil(t, got.Coords)
	rest, _ := svc.Pending(ctx, 10)
	require.Len(t, rest, 1)
}

func TestBackfill_UpstreamErrorIsReturned(t *testing.T) {
	store := apptest.NewStore()
	l := store.PutListing(domain.Listing{Title: "a", CategoryID: 1, Status: domain.ListingActive, Location: "Boston"})
	svc := app.NewBackfillService(store, brokenGeocoder{}, nil, nil)
	_, err := svc.GeocodeListing(context.Background(), l)
	require.Error(t, err)
}
