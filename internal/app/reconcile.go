package app

import (
	"slices"

	"localdir/internal/domain"
)

// Reconcile merges one change notification into items, keyed by idOf.
//
//   - create/update of a present entity replaces it in place, or removes it
//     when keep no longer holds; a replayed create is therefore a no-op update
//   - create/update of an absent entity inserts it at its sort position
//     (prepends when compare is nil) if keep holds, otherwise it is ignored
//   - delete removes the entity; absent ids are a no-op
//
// The returned slice never aliases items.
func Reconcile[T any](items []T, kind domain.ChangeKind, id int64, incoming *T,
	idOf func(T) int64, keep func(T) bool, compare func(a, b T) int) []T {

	idx := slices.IndexFunc(items, func(it T) bool { return idOf(it) == id })
	out := slices.Clone(items)

	switch kind {
	case domain.ChangeDelete:
		if idx >= 0 {
			out = slices.Delete(out, idx, idx+1)
		}
		return out

	case domain.ChangeCreate, domain.ChangeUpdate:
		if incoming == nil {
			return out
		}
		v := *incoming
		if idx >= 0 {
			if keep(v) {
				out[idx] = v
			} else {
				out = slices.Delete(out, idx, idx+1)
			}
			return out
		}
		if !keep(v) {
			return out
		}
		if compare == nil {
			return slices.Insert(out, 0, v)
		}
		pos := slices.IndexFunc(out, func(it T) bool { return compare(v, it) < 0 })
		if pos < 0 {
			pos = len(out)
		}
		return slices.Insert(out, pos, v)
	}
	return out
}
