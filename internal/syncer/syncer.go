// Package syncer drives repository synchronization: it resolves a
// remote's requirements into a desired content set, diffs that set
// against the repository's latest snapshot, and commits the result as a
// single new snapshot under the repository's exclusive reservation.
package syncer

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/galaxy-pkgs/mirror/internal/core"
	"github.com/galaxy-pkgs/mirror/internal/resolve"
	"github.com/galaxy-pkgs/mirror/internal/store"
)

const defaultConcurrency = 15

// IndexOpener connects to the remote index a Remote points at. The url
// argument is the remote's URL, or a per-requirement source override.
type IndexOpener func(ctx context.Context, remote core.Remote, url string) (core.Index, error)

// ArtifactValidator fetches a backing artifact and verifies it against
// its expected digest. Implementations fail with a digest-mismatch error
// when content does not match; any failure aborts the whole sync.
type ArtifactValidator interface {
	Validate(ctx context.Context, ref core.ArtifactRef) error
}

// Syncer is the mirror/additive sync controller. It is stateless across
// calls; per-repository exclusion lives in the store's reservation.
type Syncer struct {
	open        IndexOpener
	validator   ArtifactValidator
	log         *log.Logger
	concurrency int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithValidator enables artifact fetching and digest validation for
// remotes with the immediate download policy.
func WithValidator(v ArtifactValidator) Option {
	return func(s *Syncer) {
		s.validator = v
	}
}

// WithLogger sets the logger. A nil logger keeps the syncer silent.
func WithLogger(l *log.Logger) Option {
	return func(s *Syncer) {
		s.log = l
	}
}

// WithConcurrency bounds parallel artifact validation.
func WithConcurrency(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Syncer that opens remote indexes through open.
func New(open IndexOpener, opts ...Option) *Syncer {
	s := &Syncer{open: open, concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync synchronizes repo with remote and commits one new snapshot,
// blocking while another sync holds the repository's reservation. In
// mirror mode the new snapshot's membership equals exactly the resolved
// desired set; otherwise the sync is additive and nothing already present
// is removed. Idempotent: an unchanged desired set commits nothing and
// returns the current latest snapshot. No snapshot is created on failure.
func (s *Syncer) Sync(ctx context.Context, repo *store.Repository, remote core.Remote, mirror bool) (*store.RepositoryVersion, error) {
	txn, err := repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer txn.End()
	return s.run(ctx, txn, repo, remote, mirror)
}

// TrySync is Sync without queueing: it fails with ErrSyncInProgress when
// another sync holds the repository's reservation.
func (s *Syncer) TrySync(ctx context.Context, repo *store.Repository, remote core.Remote, mirror bool) (*store.RepositoryVersion, error) {
	txn, err := repo.TryBegin()
	if err != nil {
		return nil, err
	}
	defer txn.End()
	return s.run(ctx, txn, repo, remote, mirror)
}

func (s *Syncer) run(ctx context.Context, txn *store.Txn, repo *store.Repository, remote core.Remote, mirror bool) (*store.RepositoryVersion, error) {
	reqs, err := core.ParseRequirements(remote.RequirementsFile)
	if err != nil {
		return nil, err
	}

	desired, err := s.buildDesired(ctx, remote, reqs)
	if err != nil {
		return nil, err
	}

	current := txn.Latest().MemberSet()
	added, removed := plan(desired, current, mirror)
	nv := txn.Commit(added, removed)

	if s.log != nil {
		s.log.Info("sync committed",
			"repository", repo.Name(),
			"remote", remote.URL,
			"mirror", mirror,
			"added", len(added),
			"removed", len(removed),
			"version", nv.Number())
	}
	return nv, nil
}

// buildDesired resolves the requirement set (or the whole remote when the
// set is blank) and merges collection versions, their signatures, and
// upstream deprecation markers into one desired membership map.
func (s *Syncer) buildDesired(ctx context.Context, remote core.Remote, reqs []core.Requirement) (map[string]core.Unit, error) {
	desired := make(map[string]core.Unit)
	deprecated := make(map[core.Identity]bool)

	for _, group := range groupBySource(reqs) {
		index, err := s.open(ctx, remote, group.source)
		if err != nil {
			return nil, err
		}

		groupReqs := group.reqs
		if groupReqs == nil {
			// Blank specification: walk everything the remote has,
			// unconstrained. Generated entries deliberately are not
			// explicit, so every published version is taken.
			ids, err := index.ListCollections(ctx)
			if err != nil {
				return nil, err
			}
			sort.Slice(ids, func(i, j int) bool {
				return ids[i].String() < ids[j].String()
			})
			for _, id := range ids {
				groupReqs = append(groupReqs, core.Requirement{
					Identity:   id,
					Constraint: core.AnyConstraint(),
				})
			}
		}

		resolved, err := resolve.New(index, resolve.WithLogger(s.log)).
			Resolve(ctx, groupReqs, remote.SyncDependencies)
		if err != nil {
			return nil, err
		}

		if remote.Policy != core.PolicyDeferred && s.validator != nil {
			if err := s.validateArtifacts(ctx, resolved); err != nil {
				return nil, err
			}
		}

		seen := make(map[core.Identity]bool)
		for _, cv := range resolved {
			desired[cv.Unit().ID()] = cv.Unit()
			for _, sig := range cv.Signatures {
				u := core.SignatureUnit(cv, sig.Fingerprint)
				desired[u.ID()] = u
			}

			if seen[cv.Identity] {
				continue
			}
			seen[cv.Identity] = true
			info, err := index.GetCollection(ctx, cv.Identity)
			if err != nil {
				return nil, err
			}
			if info.Deprecated {
				deprecated[cv.Identity] = true
			}
		}
	}

	for id := range deprecated {
		u := core.DeprecationUnit(id)
		desired[u.ID()] = u
	}
	return desired, nil
}

// validateArtifacts fetches and digest-checks every resolved artifact,
// bounded by the configured concurrency. The first failure cancels the
// rest and aborts the sync before any commit.
func (s *Syncer) validateArtifacts(ctx context.Context, resolved []*core.CollectionVersion) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, cv := range resolved {
		if cv.Artifact.URL == "" {
			continue
		}
		g.Go(func() error {
			if err := s.validator.Validate(ctx, cv.Artifact); err != nil {
				return fmt.Errorf("validating %s: %w", cv.Unit().ID(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// SetDeprecated flips the deprecation marker of a collection family and
// commits the flip as its own single snapshot transition. Setting the
// current state again is a no-op returning the latest snapshot.
func (s *Syncer) SetDeprecated(ctx context.Context, repo *store.Repository, id core.Identity, deprecated bool) (*store.RepositoryVersion, error) {
	txn, err := repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer txn.End()

	marker := core.DeprecationUnit(id)
	var nv *store.RepositoryVersion
	if deprecated {
		nv = txn.Commit([]core.Unit{marker}, nil)
	} else {
		nv = txn.Commit(nil, []string{marker.ID()})
	}

	if s.log != nil {
		s.log.Info("deprecation updated",
			"repository", repo.Name(),
			"collection", id,
			"deprecated", deprecated,
			"version", nv.Number())
	}
	return nv, nil
}

// sourceGroup is the slice of requirements addressed to one index root.
type sourceGroup struct {
	source string
	reqs   []core.Requirement
}

// groupBySource splits requirements by their per-entry source override,
// preserving order inside each group. A blank requirement set yields a
// single group with nil reqs (the sync-everything case) against the
// remote's own URL.
func groupBySource(reqs []core.Requirement) []sourceGroup {
	if len(reqs) == 0 {
		return []sourceGroup{{}}
	}

	groups := []sourceGroup{}
	at := make(map[string]int)
	for _, req := range reqs {
		i, ok := at[req.Source]
		if !ok {
			i = len(groups)
			at[req.Source] = i
			groups = append(groups, sourceGroup{source: req.Source})
		}
		groups[i].reqs = append(groups[i].reqs, req)
	}
	return groups
}
