package core

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ErrNotFound is returned when a collection or version is not found
// on the remote index.
var ErrNotFound = errors.New("not found")

// ErrRemoteUnavailable is returned on transient index failures. The core
// never retries internally; callers decide whether to requeue.
var ErrRemoteUnavailable = errors.New("remote unavailable")

// ErrSyncInProgress is returned by non-blocking sync entry points when the
// repository's exclusive reservation is already held. Callers should queue
// and retry rather than treat it as a hard failure.
var ErrSyncInProgress = errors.New("sync already in progress")

// MalformedRequirementError reports unparsable requirement input.
// Not retried; surfaced to the caller verbatim.
type MalformedRequirementError struct {
	Entry  string
	Reason string
}

func (e *MalformedRequirementError) Error() string {
	return fmt.Sprintf("malformed requirement %q: %s", e.Entry, e.Reason)
}

// UnresolvableDependencyError reports a constraint matching zero published
// versions of an identity.
type UnresolvableDependencyError struct {
	Identity   Identity
	Constraint Constraint
}

func (e *UnresolvableDependencyError) Error() string {
	return fmt.Sprintf("no version of %s satisfies %s", e.Identity, e.Constraint)
}

// VersionConflictError reports a requirement that contradicts the version
// an identity is already pinned to in the same resolution pass.
type VersionConflictError struct {
	Identity   Identity
	Constraint Constraint
	Pinned     *semver.Version
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s pinned to %s, conflicting requirement %s",
		e.Identity, e.Pinned, e.Constraint)
}

// NotFoundError wraps ErrNotFound with the identity that was missing.
type NotFoundError struct {
	Identity Identity
	Version  string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("collection %s version %s not found", e.Identity, e.Version)
	}
	return fmt.Sprintf("collection %s not found", e.Identity)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RemoteUnavailableError wraps ErrRemoteUnavailable with the failing URL.
type RemoteUnavailableError struct {
	URL string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote %s unavailable: %v", e.URL, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error {
	return ErrRemoteUnavailable
}
