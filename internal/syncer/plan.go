package syncer

import (
	"sort"

	"github.com/galaxy-pkgs/mirror/internal/core"
)

// plan computes the membership delta turning current into the new
// snapshot. Mirror mode makes the result exactly equal to desired;
// additive mode only adds, never removes. Deprecation markers and
// signatures pass through the same rule as collection versions: desired
// is already the merged output of every producer, so one plan feeds one
// atomic commit.
func plan(desired, current map[string]core.Unit, mirror bool) (added []core.Unit, removed []string) {
	for id, u := range desired {
		if _, ok := current[id]; !ok {
			added = append(added, u)
		}
	}
	if mirror {
		for id := range current {
			if _, ok := desired[id]; !ok {
				removed = append(removed, id)
			}
		}
	}

	sort.Slice(added, func(i, j int) bool {
		return added[i].ID() < added[j].ID()
	})
	sort.Strings(removed)
	return added, removed
}
