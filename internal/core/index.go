package core

import (
	"context"

	"github.com/Masterminds/semver/v3"
)

// Index is the remote index consumed during resolution. Implementations
// report transient failures as RemoteUnavailableError and missing content
// as NotFoundError.
type Index interface {
	// ListCollections walks every collection identity the remote publishes.
	ListCollections(ctx context.Context) ([]Identity, error)

	// ListVersions returns the published versions of a collection,
	// highest first.
	ListVersions(ctx context.Context, id Identity) ([]*semver.Version, error)

	// GetVersion returns the full metadata of one published version,
	// including its dependency map and artifact reference.
	GetVersion(ctx context.Context, id Identity, version *semver.Version) (*CollectionVersion, error)

	// GetCollection returns collection-level metadata, notably the
	// upstream deprecation flag.
	GetCollection(ctx context.Context, id Identity) (*CollectionInfo, error)
}
