// Package core provides the shared model for collection repositories:
// identities, versions, constraints, content units, and the interfaces
// consumed from remote indexes.
package core

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Identity uniquely identifies a collection family by namespace and name.
// Many versions may exist per identity.
type Identity struct {
	Namespace string
	Name      string
}

// ParseIdentity parses a "namespace.name" string.
func ParseIdentity(s string) (Identity, error) {
	ns, name, ok := strings.Cut(s, ".")
	if !ok || ns == "" || name == "" {
		return Identity{}, &MalformedRequirementError{
			Entry:  s,
			Reason: "expected namespace.name",
		}
	}
	return Identity{Namespace: ns, Name: name}, nil
}

func (i Identity) String() string {
	return i.Namespace + "." + i.Name
}

// Requirement is one entry of a requirements specification: an identity
// plus the constraint its synced versions must satisfy.
//
// Explicit requirements (parsed from a requirements file) pin exactly one
// version per identity, the highest satisfying the constraint. Generated
// requirements (dependency edges, or the "sync everything" expansion) pull
// in every published version satisfying the constraint.
type Requirement struct {
	Identity   Identity
	Constraint Constraint

	// Source optionally overrides the remote URL for this entry.
	Source string

	// Explicit marks a requirement written by the user rather than
	// derived from a dependency edge or a full-remote walk.
	Explicit bool
}

func (r Requirement) String() string {
	if r.Constraint.IsAny() {
		return r.Identity.String()
	}
	return r.Identity.String() + ":" + r.Constraint.String()
}

// ArtifactRef points at the backing artifact of a collection version.
type ArtifactRef struct {
	URL    string
	SHA256 string
	Size   int64
}

// Signature is a detached signature published for a collection version.
type Signature struct {
	Fingerprint string
	Data        string
}

// CollectionVersion is one published version of a collection, as reported
// by a remote index. Immutable once published; dependencies reference
// other identities by constraint, not by concrete version.
type CollectionVersion struct {
	Identity     Identity
	Version      *semver.Version
	Dependencies map[Identity]Constraint

	Artifact   ArtifactRef
	Signatures []Signature

	// License holds the declared license expressions verbatim.
	License []string
}

// Unit returns the content unit representing this collection version.
func (cv *CollectionVersion) Unit() Unit {
	return Unit{Kind: KindCollectionVersion, Identity: cv.Identity, Version: cv.Version}
}

// CollectionInfo is collection-level metadata from a remote index.
type CollectionInfo struct {
	Identity   Identity
	Deprecated bool
}

// DownloadPolicy controls when backing artifacts are fetched.
type DownloadPolicy string

const (
	// PolicyImmediate fetches and digest-validates artifacts during sync.
	PolicyImmediate DownloadPolicy = "immediate"
	// PolicyDeferred records artifact references and leaves the download
	// to a later on-demand fetch.
	PolicyDeferred DownloadPolicy = "deferred"
)

// Remote describes where to sync from: the index location, credentials,
// an optional requirements specification restricting the synced subset,
// and the dependency-sync flag.
type Remote struct {
	URL   string
	Token string

	// RequirementsFile is the raw YAML requirements specification.
	// Empty means "sync everything available from the remote".
	RequirementsFile string

	SyncDependencies bool
	Policy           DownloadPolicy
}

func (r Remote) String() string {
	return fmt.Sprintf("remote(%s)", r.URL)
}
