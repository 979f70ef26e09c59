// Package resolve turns a requirement set into a closed, consistent set
// of concrete collection versions by querying a remote index.
package resolve

import (
	"context"
	"errors"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"

	"github.com/galaxy-pkgs/mirror/internal/core"
)

// Resolver resolves requirement sets against a remote index. It holds no
// shared mutable state across calls; one Resolver may serve concurrent
// resolutions.
type Resolver struct {
	index core.Index
	log   *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. A nil logger keeps the resolver silent.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		r.log = l
	}
}

// New creates a resolver querying the given index.
func New(index core.Index, opts ...Option) *Resolver {
	r := &Resolver{index: index}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// workItem is one pending requirement on the resolution worklist.
type workItem struct {
	id         core.Identity
	constraint core.Constraint
	explicit   bool
}

// Resolve computes the set of collection versions a sync must materialize.
//
// Explicit requirements pin their identity to the single highest version
// satisfying the constraint. Generated requirements (dependency edges, or
// sync-everything expansion) pull in every published version the
// constraint admits, so a dependency spanning several versions of one
// identity is preserved as distinct content. Either way the identity is
// pinned to the highest selected version: a later requirement for a
// pinned identity is validated against the pin and never re-resolved,
// which both guarantees convergence across passes and drains dependency
// cycles.
//
// If syncDeps is true, each selected version's declared dependencies are
// pushed onto the worklist. Output is deterministic for a fixed index
// state and requirement order: dependency identities are pushed in sorted
// order and the result is sorted by unit id.
func (r *Resolver) Resolve(ctx context.Context, reqs []core.Requirement, syncDeps bool) ([]*core.CollectionVersion, error) {
	worklist := make([]workItem, 0, len(reqs))
	for _, req := range reqs {
		worklist = append(worklist, workItem{
			id:         req.Identity,
			constraint: req.Constraint,
			explicit:   req.Explicit,
		})
	}

	pins := make(map[core.Identity]*semver.Version)
	selected := make(map[string]*core.CollectionVersion)

	for len(worklist) > 0 {
		item := worklist[0]
		worklist = worklist[1:]

		if pinned, ok := pins[item.id]; ok {
			if item.constraint.Matches(pinned) {
				continue
			}
			return nil, &core.VersionConflictError{
				Identity:   item.id,
				Constraint: item.constraint,
				Pinned:     pinned,
			}
		}

		matching, err := r.matchingVersions(ctx, item.id, item.constraint)
		if err != nil {
			return nil, err
		}

		// Highest first; explicit requirements take only the highest.
		core.SortVersionsDesc(matching)
		if item.explicit {
			matching = matching[:1]
		}
		pins[item.id] = matching[0]

		for _, v := range matching {
			cv, err := r.index.GetVersion(ctx, item.id, v)
			if err != nil {
				return nil, err
			}
			selected[cv.Unit().ID()] = cv
			if r.log != nil {
				r.log.Debug("selected collection version",
					"collection", item.id, "version", v, "constraint", item.constraint)
			}

			if !syncDeps {
				continue
			}
			for _, dep := range sortedDeps(cv.Dependencies) {
				worklist = append(worklist, workItem{
					id:         dep,
					constraint: cv.Dependencies[dep],
				})
			}
		}
	}

	out := make([]*core.CollectionVersion, 0, len(selected))
	for _, cv := range selected {
		out = append(out, cv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Unit().ID() < out[j].Unit().ID()
	})
	return out, nil
}

// matchingVersions lists the published versions of id admitted by the
// constraint, failing with UnresolvableDependencyError when none match.
func (r *Resolver) matchingVersions(ctx context.Context, id core.Identity, c core.Constraint) ([]*semver.Version, error) {
	versions, err := r.index.ListVersions(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, &core.UnresolvableDependencyError{Identity: id, Constraint: c}
		}
		return nil, err
	}

	var matching []*semver.Version
	for _, v := range versions {
		if c.Matches(v) {
			matching = append(matching, v)
		}
	}
	if len(matching) == 0 {
		return nil, &core.UnresolvableDependencyError{Identity: id, Constraint: c}
	}
	return matching, nil
}

func sortedDeps(deps map[core.Identity]core.Constraint) []core.Identity {
	ids := make([]core.Identity, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Namespace != ids[j].Namespace {
			return ids[i].Namespace < ids[j].Namespace
		}
		return ids[i].Name < ids[j].Name
	})
	return ids
}
