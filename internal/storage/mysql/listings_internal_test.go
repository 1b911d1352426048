package mysql

import (
	"strings"
	"testing"

	"localdir/internal/domain"
)

func TestBuildSearch_Box(t *testing.T) {
	q, args := buildSearch(domain.ListingQuery{
		Box:   &domain.Box{MinLat: 40, MaxLat: 41, MinLng: -75, MaxLng: -73},
		Limit: 10,
	})
	if !strings.Contains(q, "l.lat BETWEEN ? AND ?") || !strings.Contains(q, "l.lng BETWEEN ? AND ?") {
		t.Fatalf("box predicates missing:\n%s", q)
	}
	// statuses, box, limit
	want := []any{"active", "featured", 40.0, 41.0, -75.0, -73.0, 10}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d = %v, want %v", i, args[i], want[i])
		}
	}
}

func TestBuildSearch_NoBoxNoCoordinatePredicate(t *testing.T) {
	q, _ := buildSearch(domain.ListingQuery{})
	if strings.Contains(q, "l.lat") {
		t.Fatalf("unexpected coordinate predicate:\n%s", q)
	}
}
