package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chis/imagesmith/internal/build"
	"github.com/chis/imagesmith/internal/docker"
	"github.com/chis/imagesmith/internal/events"
	"github.com/chis/imagesmith/internal/logging"
	"github.com/chis/imagesmith/internal/namespace"
	"github.com/chis/imagesmith/internal/orchestrator"
	"github.com/chis/imagesmith/internal/registry"
	"github.com/chis/imagesmith/internal/storage"
	"github.com/chis/imagesmith/internal/sweep"
)

// ErrNoNamespaces is returned when the root holds no matrix directory.
var ErrNoNamespaces = errors.New("no namespaces found")

// Discover lists the namespaces under the configured root.
func (s *Services) Discover() ([]namespace.Namespace, error) {
	namespaces, err := namespace.Discover(s.Config.Root)
	if err != nil {
		return nil, err
	}
	if len(namespaces) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoNamespaces, s.Config.Root)
	}
	return namespaces, nil
}

// Build runs the selected namespaces. With push enabled and not a dry run it
// logs in once before the first build and logs out after the last push. The
// run is recorded in history whatever its result.
func (s *Services) Build(ctx context.Context, sel namespace.Selection) (*orchestrator.RunSummary, error) {
	ctx, runID := ensureRunID(ctx)
	started := time.Now()
	opts := s.Driver.Options()

	summary, err := s.build(ctx, sel, opts)
	if summary == nil {
		summary = &orchestrator.RunSummary{RunID: runID, Namespace: sel.Namespace, Mode: s.mode, StartedAt: started, EndedAt: time.Now()}
	}
	summary.DryRun = opts.DryRun

	status := build.StatusSuccess
	if err != nil || !summary.OK() {
		status = build.StatusFailed
	}
	s.EventBus.Emit(events.EventRunFinished, events.KeyRunID, runID, events.KeyStatus, string(status))

	s.record(ctx, BuildRecord(summary, err))
	return summary, err
}

func (s *Services) build(ctx context.Context, sel namespace.Selection, opts build.Options) (*orchestrator.RunSummary, error) {
	namespaces, err := s.Discover()
	if err != nil {
		return nil, err
	}
	// Every matrix is loaded and the selection checked before touching the
	// registry.
	jobs, err := s.Namespaces.Prepare(namespaces, sel)
	if err != nil {
		return nil, err
	}

	s.EventBus.Emit(events.EventRunStarted, events.KeyRunID, logging.GetRunID(ctx))

	if opts.Push && !opts.DryRun {
		session, err := s.openSession(ctx)
		if err != nil {
			return nil, err
		}
		defer session.Close(ctx)
	}

	return s.Namespaces.Run(ctx, jobs)
}

// Sweep pushes every local image under registry/ownerPattern. An empty
// pattern sweeps the configured owner.
func (s *Services) Sweep(ctx context.Context, images docker.ImageLister, ownerPattern string, dryRun bool) (*sweep.Summary, error) {
	ctx, runID := ensureRunID(ctx)
	started := time.Now()
	if ownerPattern == "" {
		ownerPattern = s.Config.Owner
	}

	s.EventBus.Emit(events.EventRunStarted, events.KeyRunID, runID)

	summary, err := s.sweep(ctx, images, ownerPattern, dryRun)

	status := build.StatusSuccess
	if err != nil || (summary != nil && !summary.OK()) {
		status = build.StatusFailed
	}
	s.EventBus.Emit(events.EventRunFinished, events.KeyRunID, runID, events.KeyStatus, string(status))

	s.record(ctx, SweepRecord(runID, summary, started, time.Now(), err))
	return summary, err
}

func (s *Services) sweep(ctx context.Context, images docker.ImageLister, ownerPattern string, dryRun bool) (*sweep.Summary, error) {
	if !dryRun {
		session, err := s.openSession(ctx)
		if err != nil {
			return nil, err
		}
		defer session.Close(ctx)
	}
	return s.Sweeper(images).Sweep(ctx, ownerPattern, dryRun)
}

func (s *Services) openSession(ctx context.Context) (*registry.Session, error) {
	return s.Registry.Open(ctx, s.Config.Registry, s.Config.Username, s.Config.Token)
}

// record saves run to history. Storage is optional; failures only warn.
func (s *Services) record(ctx context.Context, run storage.RunRecord) {
	if s.Storage == nil {
		return
	}
	if err := s.Storage.SaveRun(ctx, run); err != nil {
		s.Log.WarnContext(ctx, "Failed to record run %s: %v", run.RunID, err)
	}
}

func ensureRunID(ctx context.Context) (context.Context, string) {
	if id := logging.GetRunID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.New().String()
	return logging.WithRunID(ctx, id), id
}
