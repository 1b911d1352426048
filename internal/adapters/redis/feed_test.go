package redisad

import (
	"context"
	"testing"
	"time"

	"localdir/internal/domain"
)

func recv(t *testing.T, sub domain.Subscription) domain.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.ChangeEvent{}
}

func TestFeed_PublishSubscribe_ScopeFilter(t *testing.T) {
	_, c := newTestClient(t)
	feed := NewFeed(c)
	ctx := context.Background()

	sub, err := feed.Subscribe(ctx, domain.Scope{Table: domain.TableReviews, ListingID: 7})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	other := domain.ChangeEvent{Kind: domain.ChangeCreate, Table: domain.TableReviews, ID: 1,
		Review: &domain.Review{ID: 1, ListingID: 8, Rating: 4, Status: domain.ReviewApproved}}
	mine := domain.ChangeEvent{Kind: domain.ChangeCreate, Table: domain.TableReviews, ID: 2,
		Review: &domain.Review{ID: 2, ListingID: 7, Rating: 5, Status: domain.ReviewApproved}}
	listing := domain.ChangeEvent{Kind: domain.ChangeUpdate, Table: domain.TableListings, ID: 7,
		Listing: &domain.Listing{ID: 7, Title: "x"}}

	for _, ev := range []domain.ChangeEvent{other, listing, mine} {
		if err := feed.Publish(ctx, ev); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	got := recv(t, sub)
	if got.ID != 2 || got.Review == nil || got.Review.ListingID != 7 {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestFeed_CloseEndsEvents(t *testing.T) {
	_, c := newTestClient(t)
	feed := NewFeed(c)

	sub, err := feed.Subscribe(context.Background(), domain.Scope{Table: domain.TableListings})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_ = sub.Close()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Close")
	}
}
