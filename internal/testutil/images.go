package testutil

import (
	"context"
	"fmt"
	"slices"

	"github.com/chis/imagesmith/internal/docker"
)

// FakeImages is an in-memory docker.ImageLister. ImageDigest answers with the
// ID of the image carrying the ref.
type FakeImages struct {
	Images  []docker.Image
	ListErr error
	Closed  bool
}

// NewFakeImages returns a lister over images.
func NewFakeImages(images ...docker.Image) *FakeImages {
	return &FakeImages{Images: images}
}

func (f *FakeImages) ListImages(context.Context) ([]docker.Image, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Images, nil
}

func (f *FakeImages) ImageDigest(_ context.Context, ref string) (string, error) {
	for _, img := range f.Images {
		if slices.Contains(img.RepoTags, ref) {
			return img.ID, nil
		}
	}
	return "", fmt.Errorf("no such image: %s", ref)
}

func (f *FakeImages) Close() error {
	f.Closed = true
	return nil
}
