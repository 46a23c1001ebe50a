package docker

import (
	"context"
	"strings"
)

// ImageLister enumerates images in the local engine store.
// This interface allows for easy mocking in tests.
type ImageLister interface {
	// ListImages returns every local image with at least one tag.
	ListImages(ctx context.Context) ([]Image, error)

	// ImageDigest returns the registry digest of a local image, or its ID
	// when it has none.
	ImageDigest(ctx context.Context, ref string) (string, error)

	// Close releases resources held by the Docker client
	Close() error
}

// Image is a local image with its repository tags.
type Image struct {
	ID       string
	RepoTags []string
	Created  int64
	Size     int64
}

// SplitReference splits "registry:5000/owner/ns:tag" into repository and tag.
// A reference without a tag returns an empty tag. Digest references
// ("repo@sha256:...") return the repository and an empty tag.
func SplitReference(ref string) (repository, tag string) {
	if idx := strings.Index(ref, "@"); idx >= 0 {
		return ref[:idx], ""
	}
	slash := strings.LastIndex(ref, "/")
	colon := strings.LastIndex(ref, ":")
	if colon > slash {
		return ref[:colon], ref[colon+1:]
	}
	return ref, ""
}

// TagsWithPrefix returns the repo tags of images whose repository starts with
// prefix, in listing order without duplicates. "<none>:<none>" entries are
// skipped.
func TagsWithPrefix(images []Image, prefix string) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, img := range images {
		for _, ref := range img.RepoTags {
			repo, tag := SplitReference(ref)
			if tag == "" || tag == "<none>" || repo == "<none>" {
				continue
			}
			if !strings.HasPrefix(repo, prefix) || seen[ref] {
				continue
			}
			seen[ref] = true
			tags = append(tags, ref)
		}
	}
	return tags
}
