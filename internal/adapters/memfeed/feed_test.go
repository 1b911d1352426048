package memfeed_test

import (
	"context"
	"testing"
	"time"

	"localdir/internal/adapters/memfeed"
	"localdir/internal/domain"
)

func TestFeed_FanOutByScope(t *testing.T) {
	f := memfeed.New()
	ctx := context.Background()

	all, _ := f.Subscribe(ctx, domain.Scope{Table: domain.TableListings})
	reviews7, _ := f.Subscribe(ctx, domain.Scope{Table: domain.TableReviews, ListingID: 7})
	defer all.Close()
	defer reviews7.Close()

	_ = f.Publish(ctx, domain.ChangeEvent{Kind: domain.ChangeUpdate, Table: domain.TableListings, ID: 1, Listing: &domain.Listing{ID: 1}})
	_ = f.Publish(ctx, domain.ChangeEvent{Kind: domain.ChangeCreate, Table: domain.TableReviews, ID: 2, Review: &domain.Review{ID: 2, ListingID: 8}})
	_ = f.Publish(ctx, domain.ChangeEvent{Kind: domain.ChangeCreate, Table: domain.TableReviews, ID: 3, Review: &domain.Review{ID: 3, ListingID: 7}})

	select {
	case ev := <-all.Events():
		if ev.ID != 1 {
			t.Fatalf("listings subscriber got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no listing event")
	}
	select {
	case ev := <-reviews7.Events():
		if ev.ID != 3 {
			t.Fatalf("review subscriber got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no review event")
	}
	if len(all.Events()) != 0 || len(reviews7.Events()) != 0 {
		t.Fatal("out-of-scope events delivered")
	}
}

func TestFeed_CloseDetaches(t *testing.T) {
	f := memfeed.New()
	sub, _ := f.Subscribe(context.Background(), domain.Scope{Table: domain.TableListings})
	if f.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", f.Subscribers())
	}
	_ = sub.Close()
	_ = sub.Close()
	if f.Subscribers() != 0 {
		t.Fatalf("subscribers after close = %d", f.Subscribers())
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("events channel should be closed")
	}
	// publishing after close must not panic
	_ = f.Publish(context.Background(), domain.ChangeEvent{Table: domain.TableListings, ID: 1})
}
