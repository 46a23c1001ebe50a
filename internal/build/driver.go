package build

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/chis/imagesmith/internal/events"
	"github.com/chis/imagesmith/internal/executor"
	"github.com/chis/imagesmith/internal/logging"
	"github.com/chis/imagesmith/internal/matrix"
)

// Driver runs the lifecycle of single variants. It is safe for concurrent
// use as long as the engine is.
type Driver struct {
	engine executor.Engine
	opts   Options
	log    *logging.Logger
	bus    *events.Bus
}

// NewDriver creates a driver. A nil logger uses the default one.
func NewDriver(engine executor.Engine, opts Options, log *logging.Logger) *Driver {
	return &Driver{
		engine: engine,
		opts:   opts,
		log:    logging.OrDefault(log).Named("build"),
	}
}

// WithEvents publishes state transitions to bus.
func (d *Driver) WithEvents(bus *events.Bus) *Driver {
	d.bus = bus
	return d
}

// Options returns the run options.
func (d *Driver) Options() Options {
	return d.opts
}

// BuildArgKey maps a dimension name to its build argument name:
// "base-os" becomes "BASE_OS_VERSION".
func BuildArgKey(dimension string) string {
	return strings.ToUpper(strings.ReplaceAll(dimension, "-", "_")) + "_VERSION"
}

// BuildArgs returns one argument per dimension, in document order.
func BuildArgs(v matrix.Variant) []executor.BuildArg {
	args := make([]executor.BuildArg, len(v.Dimensions))
	for i, d := range v.Dimensions {
		args[i] = executor.BuildArg{Key: BuildArgKey(d.Name), Value: d.Value}
	}
	return args
}

// NewTargets places resolved variants of m in namespace. Context and
// Dockerfile paths are relative to the matrix directory.
func NewTargets(m *matrix.Matrix, namespace string, resolved []matrix.ResolvedVariant) []Target {
	contextDir := m.Dir
	if m.Context != "" {
		contextDir = filepath.Join(m.Dir, m.Context)
	}
	if contextDir == "" {
		contextDir = "."
	}

	var dockerfile string
	if m.Dockerfile != "" {
		dockerfile = filepath.Join(m.Dir, m.Dockerfile)
	}

	targets := make([]Target, len(resolved))
	for i, rv := range resolved {
		targets[i] = Target{
			Namespace:  namespace,
			Variant:    rv,
			ContextDir: contextDir,
			Dockerfile: dockerfile,
		}
	}
	return targets
}

// Spec returns the single build invocation for t, every tag attached.
func (d *Driver) Spec(t Target) executor.BuildSpec {
	return executor.BuildSpec{
		ContextDir: t.ContextDir,
		Dockerfile: t.Dockerfile,
		BuildArgs:  BuildArgs(t.Variant.Variant),
		Tags:       t.Variant.Tags.All(),
		Platform:   d.opts.Platform,
		NoCache:    d.opts.NoCache,
	}
}

// Plan renders the command lines Run would execute.
func (d *Driver) Plan(t Target) []string {
	planned := []string{d.engine.BuildCommand(d.Spec(t)).String()}
	if d.opts.Push {
		for _, tag := range t.Variant.Tags.All() {
			planned = append(planned, d.engine.PushCommand(tag).String())
		}
	}
	return planned
}

// Run drives t to a terminal state. Build failures stop the variant; push
// failures are recorded per tag and the remaining tags are still pushed.
func (d *Driver) Run(ctx context.Context, t Target) (out Outcome) {
	start := time.Now()
	log := d.log.WithFields(map[string]interface{}{"variant": t.Name(), "namespace": t.Namespace})

	out = Outcome{
		Namespace: t.Namespace,
		Variant:   t.Name(),
		State:     StatePending,
		Tags:      t.Variant.Tags.All(),
		LTS:       t.Variant.LTS,
	}
	defer func() { out.Duration = time.Since(start) }()

	if d.opts.DryRun {
		out.Planned = d.Plan(t)
		d.transition(ctx, &out, StateSkipped)
		out.Status = StatusSkipped
		out.Detail = "dry run"
		for _, line := range out.Planned {
			log.InfoContext(ctx, "[dry-run] %s", line)
		}
		return out
	}

	d.transition(ctx, &out, StateBuilding)
	log.InfoContext(ctx, "Building %s", out.Tags[0])
	if err := d.engine.Build(ctx, d.Spec(t)); err != nil {
		d.fail(ctx, &out, &BuildFailure{Variant: t.Name(), Err: err})
		log.ErrorContext(ctx, "Build failed: %v", err)
		return out
	}
	d.transition(ctx, &out, StateBuilt)

	if !d.opts.Push {
		out.Status = StatusSuccess
		return out
	}

	d.transition(ctx, &out, StatePushing)
	var failures []error
	for _, tag := range out.Tags {
		if err := d.engine.Push(ctx, tag); err != nil {
			log.ErrorContext(ctx, "Push of %s failed: %v", tag, err)
			failures = append(failures, &PushFailure{Tag: tag, Err: err})
			out.FailedPushes = append(out.FailedPushes, tag)
			continue
		}
		log.InfoContext(ctx, "Pushed %s", tag)
		out.Pushed = append(out.Pushed, tag)
	}

	if len(failures) > 0 {
		d.fail(ctx, &out, errors.Join(failures...))
		return out
	}

	d.transition(ctx, &out, StatePushed)
	out.Status = StatusSuccess
	return out
}

func (d *Driver) transition(ctx context.Context, out *Outcome, next State) {
	d.log.DebugContext(ctx, "%s: %s -> %s", out.Variant, out.State, next)
	out.State = next
	d.bus.Emit(events.EventVariantState,
		events.KeyRunID, logging.GetRunID(ctx),
		events.KeyNamespace, out.Namespace,
		events.KeyVariant, out.Variant,
		events.KeyState, string(next),
	)
}

func (d *Driver) fail(ctx context.Context, out *Outcome, err error) {
	d.transition(ctx, out, StateFailed)
	out.Status = StatusFailed
	out.Err = err
	out.Error = err.Error()
}
