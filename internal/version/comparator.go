package version

// Compare compares two versions numerically and returns:
//
//	Less    if a < b
//	Equal   if a == b
//	Greater if a > b
//
// Major, minor and patch are compared as integers ("9" < "10"). Pre-release
// labels do not take part in ordering: 1.0.0-rc1 and 1.0.0 are Equal.
func Compare(a, b Version) Ordering {
	if a.Major != b.Major {
		if a.Major < b.Major {
			return Less
		}
		return Greater
	}

	if a.Minor != b.Minor {
		if a.Minor < b.Minor {
			return Less
		}
		return Greater
	}

	if a.Patch != b.Patch {
		if a.Patch < b.Patch {
			return Less
		}
		return Greater
	}

	return Equal
}

// CompareStrings normalizes both inputs before comparing them, so missing
// trailing components count as zero.
func CompareStrings(a, b string) Ordering {
	return Compare(Normalize(a), Normalize(b))
}

// Latest returns the highest version of the set. Entries are normalized, so
// partial versions are accepted. When several entries compare Equal the first
// one seen wins.
func Latest(raws []string) (Version, error) {
	if len(raws) == 0 {
		return Version{}, ErrEmptySet
	}

	best := Normalize(raws[0])
	for _, raw := range raws[1:] {
		candidate := Normalize(raw)
		if Compare(candidate, best) == Greater {
			best = candidate
		}
	}
	return best, nil
}

// ValidateMembership reports whether version appears verbatim in allowed.
// This is raw string equality: "20" matches "20" but "20.0" does not.
// Callers that want numeric equality use SemanticMembership.
func ValidateMembership(version string, allowed []string) bool {
	for _, a := range allowed {
		if a == version {
			return true
		}
	}
	return false
}

// SemanticMembership reports whether version is numerically equal to any
// entry of allowed after normalizing both sides.
func SemanticMembership(version string, allowed []string) bool {
	want := Normalize(version)
	for _, a := range allowed {
		if Compare(want, Normalize(a)) == Equal {
			return true
		}
	}
	return false
}
