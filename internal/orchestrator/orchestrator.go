package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chis/imagesmith/internal/build"
	"github.com/chis/imagesmith/internal/events"
	"github.com/chis/imagesmith/internal/logging"
)

// Runner drives one variant. *build.Driver implements it.
type Runner interface {
	Run(ctx context.Context, t build.Target) build.Outcome
}

// Orchestrator schedules the targets of one matrix.
type Orchestrator struct {
	runner Runner
	// jobs bounds concurrent variants; zero or less is unbounded.
	jobs int
	log  *logging.Logger
	bus  *events.Bus
}

// New creates an orchestrator.
func New(runner Runner, jobs int, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		jobs:   jobs,
		log:    logging.OrDefault(log).Named("orchestrator"),
	}
}

// WithEvents publishes per-variant start and finish events to bus.
func (o *Orchestrator) WithEvents(bus *events.Bus) *Orchestrator {
	o.bus = bus
	return o
}

// Select returns the targets matching selector: SelectAll or one exact name.
func Select(targets []build.Target, selector string) ([]build.Target, error) {
	if selector == "" || selector == SelectAll {
		return targets, nil
	}
	for _, t := range targets {
		if t.Name() == selector {
			return []build.Target{t}, nil
		}
	}

	available := make([]string, len(targets))
	for i, t := range targets {
		available[i] = t.Name()
	}
	return nil, &VariantNotFoundError{Name: selector, Available: available}
}

// Run drives the selected targets and returns their summary. The returned
// error is only about selection; variant failures are in the summary.
func (o *Orchestrator) Run(ctx context.Context, targets []build.Target, mode Mode, selector string) (*RunSummary, error) {
	selected, err := Select(targets, selector)
	if err != nil {
		return nil, err
	}

	runID := logging.GetRunID(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = logging.WithRunID(ctx, runID)
	}

	summary := &RunSummary{RunID: runID, Mode: mode, StartedAt: time.Now()}
	if len(selected) > 0 {
		summary.Namespace = selected[0].Namespace
	}

	o.log.InfoContext(ctx, "Running %d variant(s) in %s mode", len(selected), mode)

	switch mode {
	case ModeConcurrent:
		summary.Add(o.runConcurrent(ctx, selected)...)
	case ModeSequential, "":
		summary.Mode = ModeSequential
		summary.Add(o.runSequential(ctx, selected)...)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	summary.EndedAt = time.Now()
	o.log.InfoContext(ctx, "Finished: %d succeeded, %d failed, %d skipped",
		summary.Succeeded, summary.Failed, summary.Skipped)
	return summary, nil
}

// runSequential stops after the first failed variant. Outcomes of variants
// that completed are kept; later variants do not appear.
func (o *Orchestrator) runSequential(ctx context.Context, targets []build.Target) []build.Outcome {
	outcomes := make([]build.Outcome, 0, len(targets))
	for i, t := range targets {
		out := o.runOne(ctx, t)
		outcomes = append(outcomes, out)
		if out.Failed() {
			if rest := len(targets) - i - 1; rest > 0 {
				o.log.WarnContext(ctx, "Stopping after failed variant %s, %d not run", t.Name(), rest)
			}
			break
		}
	}
	return outcomes
}

// runConcurrent dispatches every target. Each goroutine writes only its own
// slot, so the result keeps matrix order whatever the completion order.
func (o *Orchestrator) runConcurrent(ctx context.Context, targets []build.Target) []build.Outcome {
	outcomes := make([]build.Outcome, len(targets))

	// Plain Group without WithContext: a failed sibling must not cancel the rest.
	var g errgroup.Group
	if o.jobs > 0 {
		g.SetLimit(o.jobs)
	}
	for i, t := range targets {
		g.Go(func() error {
			outcomes[i] = o.runOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (o *Orchestrator) runOne(ctx context.Context, t build.Target) build.Outcome {
	o.bus.Emit(events.EventVariantStarted,
		events.KeyRunID, logging.GetRunID(ctx),
		events.KeyNamespace, t.Namespace,
		events.KeyVariant, t.Name(),
	)

	out := o.runner.Run(ctx, t)

	o.bus.Emit(events.EventVariantFinished,
		events.KeyRunID, logging.GetRunID(ctx),
		events.KeyNamespace, t.Namespace,
		events.KeyVariant, t.Name(),
		events.KeyStatus, string(out.Status),
		events.KeyError, out.Error,
		events.KeyDuration, out.Duration.Milliseconds(),
	)
	return out
}
