// Package reconcile maintains one de-duplicated in-memory list per record
// collection, assembled from a remote store, the local store and seed data.
package reconcile

import "github.com/reggaepotato22/krugerr-brendt/internal/domain"

// Merge combines the three sources into one list keyed by id.
//
// Precedence is remote, then local, then seed: the first source holding an
// id owns it and later copies are dropped, including repeats inside one
// source. The output is the remote records, then local records whose ids
// were not remote, then the remaining seed records, each in source order.
// Records without an id cannot be addressed and are skipped.
func Merge[T domain.Record[T]](remote, local, seed []T) []T {
	seen := make(map[string]struct{}, len(remote)+len(local)+len(seed))
	out := make([]T, 0, len(remote)+len(local)+len(seed))

	for _, source := range [][]T{remote, local, seed} {
		for _, rec := range source {
			id := rec.RecordMeta().ID
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}
