package redisad

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"localdir/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestCache_SetGetDel(t *testing.T) {
	mr, c := newTestClient(t)
	cache := New(c, "ld:")
	ctx := context.Background()

	var miss domain.Category
	ok, err := cache.Get(ctx, "categories", &miss)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	in := domain.Category{ID: 3, Name: "Cafes", Slug: "cafes", Status: "active"}
	if err := cache.Set(ctx, "cat:3", in, 60); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got domain.Category
	ok, err = cache.Get(ctx, "cat:3", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got != in {
		t.Fatalf("got %+v want %+v", got, in)
	}

	mr.FastForward(61 * time.Second)
	ok, _ = cache.Get(ctx, "cat:3", &got)
	if ok {
		t.Fatal("entry should have expired")
	}

	_ = cache.Set(ctx, "cat:3", in, 60)
	if err := cache.Del(ctx, "cat:3"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if mr.Exists("ld:cat:3") {
		t.Fatal("key still present after Del")
	}
}

func TestCache_DelPrefix(t *testing.T) {
	mr, c := newTestClient(t)
	cache := New(c, "ld:")
	ctx := context.Background()

	for _, k := range []string{"reviews:7:20", "reviews:7:50", "reviews:70:20", "listing:7"} {
		if err := cache.Set(ctx, k, []int{1}, 60); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	if err := cache.Del(ctx, "reviews:7:*"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	for k, want := range map[string]bool{
		"ld:reviews:7:20":  false,
		"ld:reviews:7:50":  false,
		"ld:reviews:70:20": true,
		"ld:listing:7":     true,
	} {
		if mr.Exists(k) != want {
			t.Fatalf("%s exists=%v, want %v", k, !want, want)
		}
	}
}

func TestCache_UndecodableEntryIsAMiss(t *testing.T) {
	mr, c := newTestClient(t)
	cache := New(c, "")
	if err := mr.Set("listing:1", "not json"); err != nil {
		t.Fatal(err)
	}
	var dst domain.Category
	ok, err := cache.Get(context.Background(), "listing:1", &dst)
	if ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if mr.Exists("listing:1") {
		t.Fatal("bad entry should be dropped")
	}
}
