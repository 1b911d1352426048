package app_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"localdir/internal/adapters/memfeed"
	"localdir/internal/app"
	"localdir/internal/domain"
)

func reviewEvent(id, listingID int64) domain.ChangeEvent {
	r := domain.Review{ID: id, ListingID: listingID, Rating: 5, Status: domain.ReviewApproved}
	return domain.ChangeEvent{Kind: domain.ChangeCreate, Table: domain.TableReviews, ID: id, Review: &r}
}

func TestLiveChannel_ScopeSwitchDropsOldScope(t *testing.T) {
	ctx := context.Background()
	feed := memfeed.New()
	ch := app.NewLiveChannel(feed)
	defer ch.Unsubscribe()

	var fromA, fromB atomic.Int32
	require.NoError(t, ch.Subscribe(ctx, domain.Scope{Table: domain.TableReviews, ListingID: 1}, func(domain.ChangeEvent) { fromA.Add(1) }))
	require.NoError(t, feed.Publish(ctx, reviewEvent(100, 1)))
	require.Eventually(t, func() bool { return fromA.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ch.Subscribe(ctx, domain.Scope{Table: domain.TableReviews, ListingID: 2}, func(domain.ChangeEvent) { fromB.Add(1) }))
	require.Equal(t, 1, feed.Subscribers())
	require.Equal(t, int64(2), ch.Scope().ListingID)

	require.NoError(t, feed.Publish(ctx, reviewEvent(101, 1)))
	require.NoError(t, feed.Publish(ctx, reviewEvent(102, 2)))
	require.Eventually(t, func() bool { return fromB.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), fromA.Load())
}

func TestLiveChannel_SameScopeIsNoop(t *testing.T) {
	ctx := context.Background()
	feed := memfeed.New()
	ch := app.NewLiveChannel(feed)
	defer ch.Unsubscribe()

	scope := domain.Scope{Table: domain.TableListings}
	require.NoError(t, ch.Subscribe(ctx, scope, func(domain.ChangeEvent) {}))
	require.NoError(t, ch.Subscribe(ctx, scope, func(domain.ChangeEvent) {}))
	require.Equal(t, 1, feed.Subscribers())
	require.Equal(t, app.Subscribed, ch.State())
}

func TestLiveChannel_NoDeliveryAfterUnsubscribe(t *testing.T) {
	ctx := context.Background()
	feed := memfeed.New()
	ch := app.NewLiveChannel(feed)

	var n atomic.Int32
	require.NoError(t, ch.Subscribe(ctx, domain.Scope{Table: domain.TableReviews}, func(domain.ChangeEvent) { n.Add(1) }))
	ch.Unsubscribe()
	ch.Unsubscribe()
	require.Equal(t, app.Unsubscribed, ch.State())
	require.Equal(t, 0, feed.Subscribers())

	require.NoError(t, feed.Publish(ctx, reviewEvent(1, 1)))
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, n.Load())
}

func TestLiveChannel_NoFeed(t *testing.T) {
	ch := app.NewLiveChannel(nil)
	err := ch.Subscribe(context.Background(), domain.Scope{Table: domain.TableListings}, func(domain.ChangeEvent) {})
	require.ErrorIs(t, err, domain.ErrSubscriptionFailed)
	require.Equal(t, app.Unsubscribed, ch.State())
}
