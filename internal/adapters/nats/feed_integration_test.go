//go:build integration || !unit

package natsad

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"

	"localdir/internal/domain"
)

func startNATS(t *testing.T) *Feed {
	t.Helper()
	pool, err := dockertest.NewPool("")
	require.NoError(t, err)

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "nats",
		Tag:        "2.10",
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(res) })

	url := fmt.Sprintf("nats://%s", res.GetHostPort("4222/tcp"))
	var feed *Feed
	require.NoError(t, pool.Retry(func() error {
		var e error
		feed, e = Connect(url, "localdir-test")
		return e
	}))
	t.Cleanup(feed.Close)
	return feed
}

func TestFeed_RoundTrip(t *testing.T) {
	feed := startNATS(t)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, domain.Scope{Table: domain.TableListings})
	require.NoError(t, err)
	defer sub.Close()

	rating := 4.5
	require.NoError(t, feed.Publish(ctx, domain.ChangeEvent{
		Kind: domain.ChangeUpdate, Table: domain.TableReviews, ID: 9,
		Review: &domain.Review{ID: 9, ListingID: 1},
	}))
	require.NoError(t, feed.Publish(ctx, domain.ChangeEvent{
		Kind: domain.ChangeUpdate, Table: domain.TableListings, ID: 1,
		Listing: &domain.Listing{ID: 1, Title: "Blue Bottle", Status: domain.ListingActive, Rating: &rating},
	}))

	select {
	case ev := <-sub.Events():
		require.Equal(t, domain.TableListings, ev.Table)
		require.Equal(t, int64(1), ev.ID)
		require.NotNil(t, ev.Listing)
		require.Equal(t, "Blue Bottle", ev.Listing.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}

	require.NoError(t, sub.Close())
	_, open := <-sub.Events()
	require.False(t, open)
}
