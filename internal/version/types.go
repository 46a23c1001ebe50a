package version

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the resolver.
var (
	// ErrInvalidVersion is returned when a string does not match major.minor[.patch][-prerelease].
	ErrInvalidVersion = errors.New("invalid version")

	// ErrEmptySet is returned when Latest is asked to pick from no versions.
	ErrEmptySet = errors.New("empty version set")
)

// Version represents a dotted numeric version with an optional pre-release label.
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string // e.g., "rc1", "beta.2"; not part of ordering
	Original   string // Original string for reference
}

// String returns the normalized major.minor.patch[-prerelease] form.
func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// Ordering is the result of comparing two versions.
type Ordering int

const (
	// Less indicates the left version sorts before the right one
	Less Ordering = -1
	// Equal indicates both versions have the same numeric components
	Equal Ordering = 0
	// Greater indicates the left version sorts after the right one
	Greater Ordering = 1
)

// String returns the string representation of the ordering.
func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "unknown"
	}
}
