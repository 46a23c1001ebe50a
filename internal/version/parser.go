package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	// Strict pattern: requires at least major.minor, all components numeric.
	// The pre-release label is anything after the first dash.
	strictPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)(?:\.(\d+))?(?:-([0-9A-Za-z][0-9A-Za-z.-]*))?$`)
)

// Parse parses a version string of the form major.minor[.patch][-prerelease].
// A leading "v" is accepted. A bare major number is rejected; use Normalize
// for partial input.
func Parse(raw string) (Version, error) {
	matches := strictPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if matches == nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, raw)
	}

	v := Version{Original: raw, Prerelease: matches[4]}

	var err error
	if v.Major, err = strconv.Atoi(matches[1]); err != nil {
		return Version{}, fmt.Errorf("%w: %q: major: %v", ErrInvalidVersion, raw, err)
	}
	if v.Minor, err = strconv.Atoi(matches[2]); err != nil {
		return Version{}, fmt.Errorf("%w: %q: minor: %v", ErrInvalidVersion, raw, err)
	}
	if matches[3] != "" {
		if v.Patch, err = strconv.Atoi(matches[3]); err != nil {
			return Version{}, fmt.Errorf("%w: %q: patch: %v", ErrInvalidVersion, raw, err)
		}
	}

	return v, nil
}

// Normalize converts any version-like string into a three-component Version.
// It never fails: absent minor/patch become 0, and components that are not
// numeric are read as 0. Examples:
//   - "20"      -> 20.0.0
//   - "24.04"   -> 24.4.0
//   - "v1.2-rc" -> 1.2.0-rc
func Normalize(raw string) Version {
	trimmed := strings.TrimSpace(raw)

	// semver's loose parser covers the common shapes ("1", "1.2", "v1.2.3-rc.1")
	if sv, err := semver.NewVersion(trimmed); err == nil {
		return Version{
			Major:      clampInt(sv.Major()),
			Minor:      clampInt(sv.Minor()),
			Patch:      clampInt(sv.Patch()),
			Prerelease: sv.Prerelease(),
			Original:   raw,
		}
	}

	return lenientNormalize(raw, trimmed)
}

// lenientNormalize handles what semver refuses: four-component versions,
// non-numeric components and empty input.
func lenientNormalize(raw, trimmed string) Version {
	v := Version{Original: raw}

	core := strings.TrimPrefix(trimmed, "v")
	if idx := strings.Index(core, "-"); idx >= 0 {
		v.Prerelease = core[idx+1:]
		core = core[:idx]
	}

	parts := strings.Split(core, ".")
	components := [3]int{}
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			n = 0
		}
		components[i] = n
	}

	v.Major, v.Minor, v.Patch = components[0], components[1], components[2]
	return v
}

func clampInt(n uint64) int {
	const maxInt = int(^uint(0) >> 1)
	if n > uint64(maxInt) {
		return maxInt
	}
	return int(n)
}

// SplitList splits a comma-separated allow-list ("18,20,22") into its entries.
// Surrounding whitespace is trimmed and empty entries are dropped.
func SplitList(list string) []string {
	fields := strings.Split(list, ",")
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
