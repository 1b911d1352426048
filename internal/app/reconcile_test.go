package app_test

import (
	"cmp"
	"testing"

	"localdir/internal/app"
	"localdir/internal/domain"
)

type item struct {
	id   int64
	rank int
	ok   bool
}

func itemID(i item) int64  { return i.id }
func itemKeep(i item) bool { return i.ok }
func byRank(a, b item) int { return cmp.Compare(a.rank, b.rank) }
func itemIDs(is []item) []int64 {
	out := make([]int64, len(is))
	for i, it := range is {
		out[i] = it.id
	}
	return out
}

func TestReconcile(t *testing.T) {
	base := []item{{1, 10, true}, {2, 20, true}, {3, 30, true}}

	cases := []struct {
		name     string
		kind     domain.ChangeKind
		id       int64
		incoming *item
		want     []int64
	}{
		{"insert in sort position", domain.ChangeCreate, 4, &item{4, 15, true}, []int64{1, 4, 2, 3}},
		{"insert at end", domain.ChangeCreate, 4, &item{4, 99, true}, []int64{1, 2, 3, 4}},
		{"absent update that now matches is inserted", domain.ChangeUpdate, 4, &item{4, 5, true}, []int64{4, 1, 2, 3}},
		{"absent non-matching ignored", domain.ChangeCreate, 4, &item{4, 15, false}, []int64{1, 2, 3}},
		{"update replaces in place", domain.ChangeUpdate, 2, &item{2, 99, true}, []int64{1, 2, 3}},
		{"replayed create is an update", domain.ChangeCreate, 1, &item{1, 10, true}, []int64{1, 2, 3}},
		{"update that stops matching removes", domain.ChangeUpdate, 2, &item{2, 20, false}, []int64{1, 3}},
		{"delete", domain.ChangeDelete, 3, nil, []int64{1, 2}},
		{"delete absent is a no-op", domain.ChangeDelete, 42, nil, []int64{1, 2, 3}},
		{"update without payload is a no-op", domain.ChangeUpdate, 1, nil, []int64{1, 2, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := app.Reconcile(base, tc.kind, tc.id, tc.incoming, itemID, itemKeep, byRank)
			if !equalIDs(itemIDs(got), tc.want) {
				t.Fatalf("got %v want %v", itemIDs(got), tc.want)
			}
			if !equalIDs(itemIDs(base), []int64{1, 2, 3}) {
				t.Fatalf("input was mutated: %v", itemIDs(base))
			}
		})
	}
}

func TestReconcile_IdempotentReplay(t *testing.T) {
	ev := &item{7, 25, true}
	once := app.Reconcile([]item{{1, 10, true}}, domain.ChangeCreate, 7, ev, itemID, itemKeep, byRank)
	twice := app.Reconcile(once, domain.ChangeCreate, 7, ev, itemID, itemKeep, byRank)
	if !equalIDs(itemIDs(once), itemIDs(twice)) {
		t.Fatalf("replay changed the list: %v vs %v", itemIDs(once), itemIDs(twice))
	}
}

func TestReconcile_NilCompareInsertsAtFront(t *testing.T) {
	got := app.Reconcile([]item{{1, 0, true}}, domain.ChangeCreate, 2, &item{2, 0, true}, itemID, itemKeep, nil)
	if !equalIDs(itemIDs(got), []int64{2, 1}) {
		t.Fatalf("got %v", itemIDs(got))
	}
}
