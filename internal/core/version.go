package core

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a semantic version string.
func ParseVersion(s string) (*semver.Version, error) {
	return semver.StrictNewVersion(strings.TrimSpace(s))
}

// SortVersionsDesc sorts versions highest first, per full semantic-version
// precedence (pre-release of a core version orders below its release).
// This is the single ordering used anywhere versions are ranked.
func SortVersionsDesc(versions []*semver.Version) {
	sort.Sort(sort.Reverse(semver.Collection(versions)))
}

// Constraint is a predicate over versions: an exact pin, a range, or "any".
//
// "Any" deliberately is not the Masterminds "*" range: "*" excludes
// pre-releases, while an unconstrained requirement must admit every
// published version, pre-releases included.
type Constraint struct {
	raw string
	rng *semver.Constraints // nil means any
}

// AnyConstraint matches every version.
func AnyConstraint() Constraint {
	return Constraint{}
}

// ParseConstraint parses a version constraint expression. Supported forms
// are those of semver ranges (">=1.0.0,<2.0.0", "~1.2", "^1.0", "=1.2.3")
// plus "==1.2.3" for an exact pin and ""/"*" for any.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return AnyConstraint(), nil
	}
	expr := strings.ReplaceAll(s, "==", "=")
	rng, err := semver.NewConstraint(expr)
	if err != nil {
		return Constraint{}, &MalformedRequirementError{Entry: s, Reason: err.Error()}
	}
	return Constraint{raw: s, rng: rng}, nil
}

// MustConstraint is ParseConstraint for statically known expressions.
func MustConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// IsAny reports whether the constraint admits every version.
func (c Constraint) IsAny() bool {
	return c.rng == nil
}

// Matches reports whether v satisfies the constraint.
func (c Constraint) Matches(v *semver.Version) bool {
	if v == nil {
		return false
	}
	if c.rng == nil {
		return true
	}
	return c.rng.Check(v)
}

func (c Constraint) String() string {
	if c.rng == nil {
		return "*"
	}
	return c.raw
}
