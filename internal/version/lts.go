package version

import "strings"

// Kinds with a known LTS allow-list.
const (
	KindNode   = "node"
	KindUbuntu = "ubuntu"
	KindJava   = "java"
	KindDotnet = "dotnet"
)

// ltsReleases lists LTS identifiers per ecosystem. Identifiers are compared as
// raw strings against the version, its major, and its major.minor.
var ltsReleases = map[string]map[string]bool{
	KindNode: {
		"4": true, "6": true, "8": true, "10": true, "12": true,
		"14": true, "16": true, "18": true, "20": true, "22": true, "24": true,
	},
	KindUbuntu: {
		"14.04": true, "16.04": true, "18.04": true,
		"20.04": true, "22.04": true, "24.04": true,
	},
	KindJava: {
		"8": true, "11": true, "17": true, "21": true, "25": true,
	},
	KindDotnet: {
		"6.0": true, "8.0": true, "10.0": true,
	},
}

// IsLTS reports whether version is a long-term-support release of kind.
// Unknown kinds are never LTS. The check accepts full versions of an LTS line,
// so "20.11.1" is LTS for node and "22.04.3" is LTS for ubuntu.
func IsLTS(kind, version string) bool {
	releases, ok := ltsReleases[strings.ToLower(kind)]
	if !ok {
		return false
	}

	for _, candidate := range ltsCandidates(version) {
		if releases[candidate] {
			return true
		}
	}
	return false
}

// LTSKinds returns the kinds that have an allow-list.
func LTSKinds() []string {
	return []string{KindDotnet, KindJava, KindNode, KindUbuntu}
}

// ltsCandidates returns version, its major and its major.minor, all taken from
// the raw text so zero-padded minors ("24.04") survive.
func ltsCandidates(version string) []string {
	core := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if idx := strings.Index(core, "-"); idx >= 0 {
		core = core[:idx]
	}

	candidates := []string{version}
	parts := strings.Split(core, ".")
	if parts[0] != "" {
		candidates = append(candidates, parts[0])
	}
	if len(parts) >= 2 {
		candidates = append(candidates, parts[0]+"."+parts[1])
	}
	return candidates
}
