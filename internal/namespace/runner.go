package namespace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chis/imagesmith/internal/build"
	"github.com/chis/imagesmith/internal/events"
	"github.com/chis/imagesmith/internal/logging"
	"github.com/chis/imagesmith/internal/matrix"
	"github.com/chis/imagesmith/internal/orchestrator"
)

// ErrAmbiguousVariant is returned when a variant is requested without a
// namespace while several namespaces exist.
var ErrAmbiguousVariant = errors.New("a variant name needs a namespace when more than one namespace exists")

// Selection narrows a run. Empty fields mean all.
type Selection struct {
	Namespace string
	Variant   string
}

// Runner loads namespaces and hands their variants to an orchestrator.
type Runner struct {
	orchestrator *orchestrator.Orchestrator
	mode         orchestrator.Mode
	registry     string
	owner        string
	log          *logging.Logger
	bus          *events.Bus
}

// NewRunner creates a runner tagging images as registry/owner/<namespace>.
func NewRunner(o *orchestrator.Orchestrator, mode orchestrator.Mode, registry, owner string, log *logging.Logger) *Runner {
	return &Runner{
		orchestrator: o,
		mode:         mode,
		registry:     registry,
		owner:        owner,
		log:          logging.OrDefault(log).Named("namespace"),
	}
}

// WithEvents publishes namespace start and finish events to bus.
func (r *Runner) WithEvents(bus *events.Bus) *Runner {
	r.bus = bus
	return r
}

// Resolve loads the matrix of ns and returns its build targets.
func (r *Runner) Resolve(ns Namespace) (*matrix.Matrix, []build.Target, error) {
	m, err := matrix.LoadFile(ns.MatrixPath)
	if err != nil {
		return nil, nil, err
	}
	resolved, err := matrix.Resolve(m, r.registry, r.owner, ns.Name)
	if err != nil {
		var cfgErr *matrix.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Source == "" {
			cfgErr.Source = ns.MatrixPath
		}
		return nil, nil, err
	}
	return m, build.NewTargets(m, ns.Name, resolved), nil
}

// Plan picks the namespaces and the variant selector for sel.
func Plan(namespaces []Namespace, sel Selection) ([]Namespace, string, error) {
	variant := sel.Variant
	if variant == "" {
		variant = orchestrator.SelectAll
	}

	if sel.Namespace != "" {
		ns, err := Find(namespaces, sel.Namespace)
		if err != nil {
			return nil, "", err
		}
		return []Namespace{ns}, variant, nil
	}

	if variant != orchestrator.SelectAll && len(namespaces) > 1 {
		return nil, "", ErrAmbiguousVariant
	}
	return namespaces, variant, nil
}

// Job is a namespace whose matrix is loaded and whose selector is known to
// match.
type Job struct {
	Namespace Namespace
	Targets   []build.Target
	Selector  string
}

// Prepare plans sel and resolves every selected namespace. Matrix errors and
// unknown variants are reported here, before anything is built or pushed.
func (r *Runner) Prepare(namespaces []Namespace, sel Selection) ([]Job, error) {
	selected, variant, err := Plan(namespaces, sel)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(selected))
	for _, ns := range selected {
		_, targets, err := r.Resolve(ns)
		if err != nil {
			return nil, fmt.Errorf("namespace %s: %w", ns.Name, err)
		}
		if _, err := orchestrator.Select(targets, variant); err != nil {
			return nil, fmt.Errorf("namespace %s: %w", ns.Name, err)
		}
		jobs = append(jobs, Job{Namespace: ns, Targets: targets, Selector: variant})
	}
	return jobs, nil
}

// Run processes prepared jobs in order. The first namespace with a failed
// variant stops the rest. The returned summary aggregates every namespace
// that ran.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*orchestrator.RunSummary, error) {
	runID := logging.GetRunID(ctx)
	if runID == "" {
		runID = uuid.New().String()
		ctx = logging.WithRunID(ctx, runID)
	}

	total := &orchestrator.RunSummary{RunID: runID, Mode: r.mode, StartedAt: time.Now()}
	if len(jobs) == 1 {
		total.Namespace = jobs[0].Namespace.Name
	}
	defer func() { total.EndedAt = time.Now() }()

	for i, job := range jobs {
		name := job.Namespace.Name
		r.bus.Emit(events.EventNamespaceStarted, events.KeyRunID, runID, events.KeyNamespace, name)

		summary, err := r.runOne(ctx, job)
		status := build.StatusSuccess
		if err != nil || !summary.OK() {
			status = build.StatusFailed
		}
		r.bus.Emit(events.EventNamespaceFinished, events.KeyRunID, runID, events.KeyNamespace, name, events.KeyStatus, string(status))

		total.Merge(summary)
		if err != nil {
			return total, fmt.Errorf("namespace %s: %w", name, err)
		}
		if !summary.OK() {
			if rest := len(jobs) - i - 1; rest > 0 {
				r.log.WarnContext(ctx, "Namespace %s failed, skipping %d remaining namespace(s)", name, rest)
			}
			break
		}
	}
	return total, nil
}

func (r *Runner) runOne(ctx context.Context, job Job) (*orchestrator.RunSummary, error) {
	ctx = logging.WithLogFields(ctx, map[string]interface{}{"namespace": job.Namespace.Name})
	r.log.InfoContext(ctx, "Processing namespace %s", job.Namespace.Name)
	return r.orchestrator.Run(ctx, job.Targets, r.mode, job.Selector)
}
