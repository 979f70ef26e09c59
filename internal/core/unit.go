package core

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/git-pkgs/purl"
)

// UnitKind enumerates the closed set of content kinds a repository stores.
type UnitKind uint8

const (
	// KindCollectionVersion is one published version of a collection.
	KindCollectionVersion UnitKind = iota
	// KindDeprecation marks a whole collection family as deprecated.
	KindDeprecation
	// KindSignature is a detached signature attached to a collection version.
	KindSignature
)

func (k UnitKind) String() string {
	switch k {
	case KindCollectionVersion:
		return "collection-version"
	case KindDeprecation:
		return "deprecation"
	case KindSignature:
		return "signature"
	}
	return fmt.Sprintf("unit-kind(%d)", uint8(k))
}

// Unit is the content unit stored in a repository: a collection version,
// a deprecation marker, or a signature. All kinds share an opaque stable
// identifier in Package URL form, so membership diffing treats them
// uniformly.
type Unit struct {
	Kind     UnitKind
	Identity Identity

	// Version is set for collection versions and signatures.
	Version *semver.Version

	// Fingerprint is set for signatures.
	Fingerprint string
}

// DeprecationUnit returns the deprecation marker for a collection family.
func DeprecationUnit(id Identity) Unit {
	return Unit{Kind: KindDeprecation, Identity: id}
}

// SignatureUnit returns the signature unit for a collection version.
func SignatureUnit(cv *CollectionVersion, fingerprint string) Unit {
	return Unit{
		Kind:        KindSignature,
		Identity:    cv.Identity,
		Version:     cv.Version,
		Fingerprint: fingerprint,
	}
}

// ID returns the stable identifier of the unit:
//
//	pkg:ansible/ns/name@1.2.3                      collection version
//	pkg:ansible/ns/name?marker=deprecated          deprecation marker
//	pkg:ansible/ns/name@1.2.3?signature=<fpr>      signature
func (u Unit) ID() string {
	base := fmt.Sprintf("pkg:ansible/%s/%s", u.Identity.Namespace, u.Identity.Name)
	switch u.Kind {
	case KindDeprecation:
		return base + "?marker=deprecated"
	case KindSignature:
		return fmt.Sprintf("%s@%s?signature=%s", base, u.Version, url.QueryEscape(u.Fingerprint))
	default:
		return fmt.Sprintf("%s@%s", base, u.Version)
	}
}

// ParseUnitID parses a unit identifier back into its typed form.
func ParseUnitID(id string) (Unit, error) {
	base, query, _ := strings.Cut(id, "?")

	p, err := purl.Parse(base)
	if err != nil {
		return Unit{}, fmt.Errorf("parsing unit id %q: %w", id, err)
	}
	if p.Type != "ansible" {
		return Unit{}, fmt.Errorf("unit id %q: unexpected type %q", id, p.Type)
	}

	u := Unit{
		Kind:     KindCollectionVersion,
		Identity: Identity{Namespace: p.Namespace, Name: p.Name},
	}
	if p.Version != "" {
		v, err := ParseVersion(p.Version)
		if err != nil {
			return Unit{}, fmt.Errorf("parsing unit id %q: %w", id, err)
		}
		u.Version = v
	}

	if query != "" {
		q, err := url.ParseQuery(query)
		if err != nil {
			return Unit{}, fmt.Errorf("parsing unit id %q: %w", id, err)
		}
		switch {
		case q.Get("marker") == "deprecated":
			if u.Version != nil {
				return Unit{}, fmt.Errorf("unit id %q: deprecation marker carries a version", id)
			}
			u.Kind = KindDeprecation
		case q.Has("signature"):
			if u.Version == nil {
				return Unit{}, fmt.Errorf("unit id %q: signature without a version", id)
			}
			u.Kind = KindSignature
			u.Fingerprint = q.Get("signature")
		default:
			return Unit{}, fmt.Errorf("unit id %q: unknown qualifier", id)
		}
	} else if u.Version == nil {
		return Unit{}, fmt.Errorf("unit id %q: collection version without a version", id)
	}

	return u, nil
}

func (u Unit) String() string {
	return u.ID()
}
