// Package sweep pushes every local image belonging to an owner, for
// publishing images that were built earlier without --push.
package sweep

import (
	"context"
	"fmt"
	"strings"

	"github.com/chis/imagesmith/internal/build"
	"github.com/chis/imagesmith/internal/docker"
	"github.com/chis/imagesmith/internal/events"
	"github.com/chis/imagesmith/internal/executor"
	"github.com/chis/imagesmith/internal/logging"
	"github.com/chis/imagesmith/internal/matrix"
)

// DetailWouldPush marks a tag a dry run would have pushed.
const DetailWouldPush = "would push"

// Result is the outcome for one local tag.
type Result struct {
	Tag    string       `json:"tag"`
	Status build.Status `json:"status"`
	Digest string       `json:"digest,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Summary aggregates a sweep.
type Summary struct {
	Prefix  string   `json:"prefix"`
	DryRun  bool     `json:"dry_run,omitempty"`
	Pushed  int      `json:"pushed"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Results []Result `json:"results"`
}

// OK reports whether no push failed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// Sweeper pushes local images matching registry/owner.
type Sweeper struct {
	images   docker.ImageLister
	engine   executor.Engine
	registry string
	log      *logging.Logger
	bus      *events.Bus
}

// New creates a sweeper for images under registry.
func New(images docker.ImageLister, engine executor.Engine, registry string, log *logging.Logger) *Sweeper {
	return &Sweeper{
		images:   images,
		engine:   engine,
		registry: strings.TrimRight(registry, "/"),
		log:      logging.OrDefault(log).Named("sweep"),
	}
}

// WithEvents publishes one event per tag to bus.
func (s *Sweeper) WithEvents(bus *events.Bus) *Sweeper {
	s.bus = bus
	return s
}

// Prefix returns the repository prefix swept for ownerPattern. The owner is
// lower-cased the way build tags are.
func (s *Sweeper) Prefix(ownerPattern string) string {
	if strings.Trim(ownerPattern, "/") == "" {
		return s.registry + "/"
	}
	return matrix.Repository(s.registry, ownerPattern, "")
}

// Sweep pushes every local tag whose repository starts with
// registry/ownerPattern. A failed push is recorded and the sweep continues.
// In a dry run nothing is pushed and every match is reported as skipped.
func (s *Sweeper) Sweep(ctx context.Context, ownerPattern string, dryRun bool) (*Summary, error) {
	prefix := s.Prefix(ownerPattern)

	images, err := s.images.ListImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep %s: %w", prefix, err)
	}

	tags := docker.TagsWithPrefix(images, prefix)
	s.log.InfoContext(ctx, "Found %d local tag(s) under %s", len(tags), prefix)

	summary := &Summary{Prefix: prefix, DryRun: dryRun, Results: make([]Result, 0, len(tags))}
	for _, tag := range tags {
		res := s.sweepOne(ctx, tag, dryRun)
		if res.Status != build.StatusFailed {
			res.Digest = s.digest(ctx, tag)
		}
		switch res.Status {
		case build.StatusSuccess:
			summary.Pushed++
		case build.StatusFailed:
			summary.Failed++
		case build.StatusSkipped:
			summary.Skipped++
		}
		summary.Results = append(summary.Results, res)

		s.bus.Emit(events.EventSweepTag,
			events.KeyRunID, logging.GetRunID(ctx),
			events.KeyTag, tag,
			events.KeyStatus, string(res.Status),
			events.KeyError, res.Error,
		)
	}
	return summary, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, tag string, dryRun bool) Result {
	if dryRun {
		s.log.InfoContext(ctx, "[dry-run] %s", s.engine.PushCommand(tag))
		return Result{Tag: tag, Status: build.StatusSkipped, Detail: DetailWouldPush}
	}

	if err := s.engine.Push(ctx, tag); err != nil {
		s.log.ErrorContext(ctx, "Push of %s failed: %v", tag, err)
		return Result{Tag: tag, Status: build.StatusFailed, Error: err.Error()}
	}
	s.log.InfoContext(ctx, "Pushed %s", tag)
	return Result{Tag: tag, Status: build.StatusSuccess}
}

// digest looks up the local digest of tag. A failed lookup only loses the
// digest from the report.
func (s *Sweeper) digest(ctx context.Context, tag string) string {
	d, err := s.images.ImageDigest(ctx, tag)
	if err != nil {
		s.log.DebugContext(ctx, "No digest for %s: %v", tag, err)
		return ""
	}
	return d
}
