// Package store holds repository content as immutable, numbered
// snapshots. Membership history is kept as an arena of add/remove
// records: a unit is a member of snapshot N exactly when one of its
// records satisfies added <= N < removed (or removed is unset). Records
// are append-only; committed snapshots are never mutated.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/galaxy-pkgs/mirror/internal/core"
)

// Store owns a set of named repositories.
type Store struct {
	mu    sync.RWMutex
	repos map[string]*Repository
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{repos: make(map[string]*Repository)}
}

// Repository returns the named repository, creating it with an empty
// baseline snapshot (number 0) on first use.
func (s *Store) Repository(name string) *Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.repos[name]; ok {
		return r
	}
	r := newRepository(name)
	s.repos[name] = r
	return r
}

// span is one membership interval of a unit. removed == 0 means the unit
// is still a member. The zero snapshot is the empty baseline, so 0 can
// never be a real removal number.
type span struct {
	added   int64
	removed int64
}

// Repository is an ordered, gapless sequence of snapshots. All mutation
// goes through a reservation (Begin/TryBegin) so at most one commit is in
// flight per repository; readers always observe fully committed snapshots.
type Repository struct {
	name string

	// res serializes snapshot-creating operations. A weight-1 semaphore
	// rather than a mutex so waiters queue with context cancellation.
	res *semaphore.Weighted

	mu       sync.RWMutex
	units    map[string]core.Unit
	records  map[string][]span
	versions []*RepositoryVersion
}

func newRepository(name string) *Repository {
	r := &Repository{
		name:    name,
		res:     semaphore.NewWeighted(1),
		units:   make(map[string]core.Unit),
		records: make(map[string][]span),
	}
	r.versions = []*RepositoryVersion{{repo: r, number: 0, members: map[string]core.Unit{}}}
	return r
}

// Name returns the repository name.
func (r *Repository) Name() string {
	return r.name
}

// Latest returns the highest-numbered snapshot.
func (r *Repository) Latest() *RepositoryVersion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versions[len(r.versions)-1]
}

// Version returns snapshot n.
func (r *Repository) Version(n int64) (*RepositoryVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n < 0 || n >= int64(len(r.versions)) {
		return nil, fmt.Errorf("repository %s has no version %d", r.name, n)
	}
	return r.versions[n], nil
}

// Begin takes the repository's exclusive sync reservation, blocking until
// it is free or ctx is done. The returned Txn must be ended.
func (r *Repository) Begin(ctx context.Context) (*Txn, error) {
	if err := r.res.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return &Txn{repo: r}, nil
}

// TryBegin takes the reservation without blocking, failing with
// ErrSyncInProgress when it is already held.
func (r *Repository) TryBegin() (*Txn, error) {
	if !r.res.TryAcquire(1) {
		return nil, fmt.Errorf("repository %s: %w", r.name, core.ErrSyncInProgress)
	}
	return &Txn{repo: r}, nil
}

// Txn is a held commit reservation. It is the explicit lock object passed
// through the diff/commit path; at most one exists per repository at a
// time. Ending without committing has no observable effect.
type Txn struct {
	repo  *Repository
	ended bool
}

// Latest returns the latest snapshot under the reservation.
func (t *Txn) Latest() *RepositoryVersion {
	return t.repo.Latest()
}

// Commit creates the next snapshot from a membership delta. Units in
// added that are already members and ids in removed that are not members
// are ignored; ids not mentioned keep their prior state. When the
// effective delta is empty no snapshot number is allocated and the
// current latest is returned unchanged (the externally visible numbering
// policy: no-op syncs do not advance the sequence).
func (t *Txn) Commit(added []core.Unit, removed []string) *RepositoryVersion {
	if t.ended {
		panic("store: commit on ended transaction")
	}
	r := t.repo

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.versions[len(r.versions)-1]

	var effAdded []core.Unit
	for _, u := range added {
		if _, ok := current.members[u.ID()]; !ok {
			effAdded = append(effAdded, u)
		}
	}
	var effRemoved []string
	for _, id := range removed {
		if _, ok := current.members[id]; ok {
			effRemoved = append(effRemoved, id)
		}
	}

	if len(effAdded) == 0 && len(effRemoved) == 0 {
		return current
	}

	n := current.number + 1

	members := make(map[string]core.Unit, len(current.members)+len(effAdded))
	for id, u := range current.members {
		members[id] = u
	}
	for _, u := range effAdded {
		id := u.ID()
		r.units[id] = u
		r.records[id] = append(r.records[id], span{added: n})
		members[id] = u
	}
	for _, id := range effRemoved {
		spans := r.records[id]
		spans[len(spans)-1].removed = n
		delete(members, id)
	}

	nv := &RepositoryVersion{repo: r, number: n, members: members}
	r.versions = append(r.versions, nv)
	return nv
}

// End releases the reservation. Safe to call after Commit and idempotent.
func (t *Txn) End() {
	if t.ended {
		return
	}
	t.ended = true
	t.repo.res.Release(1)
}

// RepositoryVersion is one immutable snapshot of repository membership.
type RepositoryVersion struct {
	repo    *Repository
	number  int64
	members map[string]core.Unit
}

// Number returns the snapshot's sequence number. Snapshot 0 is the empty
// baseline.
func (v *RepositoryVersion) Number() int64 {
	return v.number
}

// Contains reports whether the unit id is a member of this snapshot.
func (v *RepositoryVersion) Contains(id string) bool {
	_, ok := v.members[id]
	return ok
}

// Members returns the snapshot's content units sorted by id.
func (v *RepositoryVersion) Members() []core.Unit {
	out := make([]core.Unit, 0, len(v.members))
	for _, u := range v.members {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// MemberSet returns the membership as an id-keyed map copy.
func (v *RepositoryVersion) MemberSet() map[string]core.Unit {
	out := make(map[string]core.Unit, len(v.members))
	for id, u := range v.members {
		out[id] = u
	}
	return out
}

// MemberRecord is one membership row of the listing surface: a unit with
// the snapshot numbers that added and (if applicable) removed it.
type MemberRecord struct {
	Unit    core.Unit
	AddedAt int64
	// RemovedAt is zero while the unit is still a member of the latest
	// snapshot, otherwise the number of the snapshot that removed it.
	RemovedAt int64
}

// Report returns the add/remove records of every unit that is a member of
// this snapshot, sorted by unit id. This is the "added at / removed at"
// query surface callers build listings on.
func (v *RepositoryVersion) Report() []MemberRecord {
	v.repo.mu.RLock()
	defer v.repo.mu.RUnlock()

	out := make([]MemberRecord, 0, len(v.members))
	for id, u := range v.members {
		for _, sp := range v.repo.records[id] {
			if sp.added <= v.number && (sp.removed == 0 || v.number < sp.removed) {
				out = append(out, MemberRecord{Unit: u, AddedAt: sp.added, RemovedAt: sp.removed})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Unit.ID() < out[j].Unit.ID()
	})
	return out
}
