// Package mirror synchronizes repositories of Ansible collections from
// Galaxy-compatible remotes, with constraint-based dependency resolution
// and immutable repository version snapshots.
//
// Basic usage:
//
//	store := mirror.NewStore()
//	repo := store.Repository("automation")
//
//	syncer := mirror.NewSyncer(mirror.GalaxyOpener())
//	version, err := syncer.Sync(ctx, repo, mirror.Remote{
//		URL:              "https://galaxy.ansible.com",
//		RequirementsFile: "collections:\n  - community.general\n",
//		SyncDependencies: true,
//	}, false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(version.Number(), len(version.Members()))
//
// Every successful sync commits a new numbered snapshot; earlier
// snapshots stay queryable through repo.Version(n) and Report().
package mirror

import (
	"context"

	"github.com/galaxy-pkgs/mirror/fetch"
	"github.com/galaxy-pkgs/mirror/galaxy"
	"github.com/galaxy-pkgs/mirror/internal/core"
	"github.com/galaxy-pkgs/mirror/internal/resolve"
	"github.com/galaxy-pkgs/mirror/internal/store"
	"github.com/galaxy-pkgs/mirror/internal/syncer"
)

// Re-export types from internal/core
type (
	// Identity names a collection as namespace plus name.
	Identity = core.Identity

	// Requirement is one entry of a requirements spec.
	Requirement = core.Requirement

	// Constraint is a semver range expression over versions.
	Constraint = core.Constraint

	// Remote describes an upstream Galaxy server and what to sync
	// from it.
	Remote = core.Remote

	// DownloadPolicy selects when artifact bytes are validated.
	DownloadPolicy = core.DownloadPolicy

	// CollectionVersion is the full metadata of one published version.
	CollectionVersion = core.CollectionVersion

	// CollectionInfo is collection-level metadata such as deprecation.
	CollectionInfo = core.CollectionInfo

	// ArtifactRef locates a collection tarball and its expected digest.
	ArtifactRef = core.ArtifactRef

	// Signature is a detached signature over a collection version.
	Signature = core.Signature

	// Unit is one repository member: a collection version, a
	// deprecation marker, or a signature.
	Unit = core.Unit

	// UnitKind discriminates the Unit variants.
	UnitKind = core.UnitKind

	// Index is the remote metadata surface consumed by the resolver.
	Index = core.Index
)

// Re-export constants
const (
	KindCollectionVersion = core.KindCollectionVersion
	KindDeprecation       = core.KindDeprecation
	KindSignature         = core.KindSignature

	PolicyImmediate = core.PolicyImmediate
	PolicyDeferred  = core.PolicyDeferred
)

// Re-export sentinel errors
var (
	ErrNotFound          = core.ErrNotFound
	ErrRemoteUnavailable = core.ErrRemoteUnavailable
	ErrSyncInProgress    = core.ErrSyncInProgress
)

// Error types
type (
	MalformedRequirementError   = core.MalformedRequirementError
	UnresolvableDependencyError = core.UnresolvableDependencyError
	VersionConflictError        = core.VersionConflictError
	NotFoundError               = core.NotFoundError
	RemoteUnavailableError      = core.RemoteUnavailableError
	DigestMismatchError         = fetch.DigestMismatchError
)

// ParseIdentity parses "namespace.name" into an Identity.
func ParseIdentity(s string) (Identity, error) {
	return core.ParseIdentity(s)
}

// ParseConstraint parses a semver range expression. Empty and "*" mean
// any version, prereleases included.
func ParseConstraint(s string) (Constraint, error) {
	return core.ParseConstraint(s)
}

// ParseRequirements parses a YAML requirements spec. A blank spec
// returns nil, which syncs everything the remote has.
func ParseRequirements(spec string) ([]Requirement, error) {
	return core.ParseRequirements(spec)
}

// ParseUnitID parses a Package-URL unit identifier back into a Unit.
func ParseUnitID(id string) (Unit, error) {
	return core.ParseUnitID(id)
}

// Re-export types from internal/store
type (
	// Store holds named repositories.
	Store = store.Store

	// Repository is a named sequence of snapshots.
	Repository = store.Repository

	// RepositoryVersion is one immutable snapshot.
	RepositoryVersion = store.RepositoryVersion

	// Txn is an exclusive reservation on a repository.
	Txn = store.Txn

	// MemberRecord pairs a unit with the snapshots that added and
	// removed it.
	MemberRecord = store.MemberRecord
)

// NewStore creates an empty in-memory Store.
func NewStore() *Store {
	return store.NewStore()
}

// Re-export resolver
type (
	Resolver       = resolve.Resolver
	ResolverOption = resolve.Option
)

// NewResolver creates a Resolver reading from index.
func NewResolver(index Index, opts ...ResolverOption) *Resolver {
	return resolve.New(index, opts...)
}

// Re-export syncer
type (
	Syncer       = syncer.Syncer
	SyncerOption = syncer.Option

	// IndexOpener opens a remote index for a source URL. An empty URL
	// means the remote's main URL.
	IndexOpener = syncer.IndexOpener

	// ArtifactValidator checks a fetched artifact against its
	// advertised digest.
	ArtifactValidator = syncer.ArtifactValidator
)

// WithValidator sets the artifact validator used on immediate-policy
// syncs.
var WithValidator = syncer.WithValidator

// WithConcurrency sets the artifact validation concurrency limit.
var WithConcurrency = syncer.WithConcurrency

// WithLogger sets the Syncer's logger; the resolver it drives logs
// through the same one. A nil logger keeps syncs silent.
var WithLogger = syncer.WithLogger

// NewSyncer creates a Syncer that opens remote indexes with open.
func NewSyncer(open IndexOpener, opts ...SyncerOption) *Syncer {
	return syncer.New(open, opts...)
}

// GalaxyOpener returns an IndexOpener backed by the Galaxy API client.
// API discovery runs once per opened source URL.
func GalaxyOpener(opts ...galaxy.Option) IndexOpener {
	return func(ctx context.Context, remote Remote, url string) (Index, error) {
		if url == "" {
			url = remote.URL
		}
		return galaxy.New(ctx, url, remote.Token, opts...)
	}
}

// NewVerifier returns an ArtifactValidator that downloads artifacts
// with retry and per-host circuit breaking and checks their SHA-256
// digests.
func NewVerifier(opts ...fetch.Option) ArtifactValidator {
	return fetch.NewVerifier(fetch.NewBreakerFetcher(fetch.NewFetcher(opts...)))
}
