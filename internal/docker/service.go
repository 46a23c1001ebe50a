package docker

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// apiClient is the subset of the Docker SDK client the service uses.
type apiClient interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (image.InspectResponse, []byte, error)
	Close() error
}

// Service implements ImageLister using the Docker SDK.
type Service struct {
	cli apiClient
}

// NewService creates a new Docker service that connects to the Docker socket.
// It uses the default Docker host from environment variables or defaults to
// unix:///var/run/docker.sock on Unix systems.
func NewService() (*Service, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Service{cli: cli}, nil
}

// ListImages returns every tagged local image. Intermediate and dangling
// images are left out.
func (s *Service) ListImages(ctx context.Context) ([]Image, error) {
	summaries, err := s.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	result := make([]Image, 0, len(summaries))
	for _, sum := range summaries {
		if len(sum.RepoTags) == 0 {
			continue
		}
		result = append(result, convertImage(sum))
	}
	return result, nil
}

// ImageDigest returns the registry digest of a local image, falling back to
// its ID when it was never pushed or pulled.
func (s *Service) ImageDigest(ctx context.Context, ref string) (string, error) {
	info, _, err := s.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}

	for _, rd := range info.RepoDigests {
		if idx := strings.Index(rd, "@"); idx > 0 {
			return rd[idx+1:], nil
		}
	}
	return info.ID, nil
}

// Close releases resources held by the Docker client.
func (s *Service) Close() error {
	if s.cli != nil {
		return s.cli.Close()
	}
	return nil
}

func convertImage(sum image.Summary) Image {
	return Image{
		ID:       sum.ID,
		RepoTags: append([]string(nil), sum.RepoTags...),
		Created:  sum.Created,
		Size:     sum.Size,
	}
}
