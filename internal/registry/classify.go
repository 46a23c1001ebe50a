package registry

import "strings"

const (
	ghcrHost      = "ghcr.io"
	awsHostSuffix = ".amazonaws.com"
)

// dockerHubAliases are the hostnames that mean Docker Hub.
var dockerHubAliases = map[string]bool{
	"docker.io":       true,
	"index.docker.io": true,
}

// Classify maps a registry endpoint to its provider kind. It is a pure
// function of the string: scheme and path are ignored, matching is
// case-insensitive, and nothing is cached.
func Classify(endpoint string) ProviderKind {
	host := Host(endpoint)

	switch {
	case host == ghcrHost:
		return ProviderGHCR
	case dockerHubAliases[host]:
		return ProviderDockerHub
	case strings.HasSuffix(host, awsHostSuffix):
		return ProviderECR
	default:
		return ProviderGeneric
	}
}

// Host extracts the lowercase host[:port] part of an endpoint such as
// "https://ghcr.io/owner".
func Host(endpoint string) string {
	host := strings.ToLower(strings.TrimSpace(endpoint))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	if idx := strings.Index(host, "/"); idx >= 0 {
		host = host[:idx]
	}
	return host
}
