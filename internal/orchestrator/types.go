// Package orchestrator runs the variants of one build matrix, sequentially
// or concurrently, and aggregates their outcomes.
package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/chis/imagesmith/internal/build"
)

// Mode selects how variants are scheduled.
type Mode string

const (
	// ModeSequential runs variants in matrix order and stops at the first failure.
	ModeSequential Mode = "sequential"
	// ModeConcurrent dispatches every variant; a failure does not cancel the rest.
	ModeConcurrent Mode = "concurrent"
)

// SelectAll selects every variant of the matrix.
const SelectAll = "all"

// VariantNotFoundError is returned when the selector names no variant.
type VariantNotFoundError struct {
	Name      string
	Available []string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// RunSummary aggregates the outcomes of one orchestrator or namespace run.
type RunSummary struct {
	RunID     string          `json:"run_id"`
	Namespace string          `json:"namespace,omitempty"`
	Mode      Mode            `json:"mode"`
	DryRun    bool            `json:"dry_run,omitempty"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Outcomes  []build.Outcome `json:"outcomes"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
}

// Add appends outcomes and updates the counters.
func (s *RunSummary) Add(outcomes ...build.Outcome) {
	for _, o := range outcomes {
		switch o.Status {
		case build.StatusSuccess:
			s.Succeeded++
		case build.StatusFailed:
			s.Failed++
		case build.StatusSkipped:
			s.Skipped++
		}
		s.Outcomes = append(s.Outcomes, o)
	}
}

// Merge folds other into s, keeping s's identity.
func (s *RunSummary) Merge(other *RunSummary) {
	if other == nil {
		return
	}
	s.Add(other.Outcomes...)
}

// OK reports whether no outcome failed.
func (s *RunSummary) OK() bool {
	return s.Failed == 0
}

// Duration is the wall time of the run.
func (s *RunSummary) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// FailedVariants returns the names of failed variants in summary order.
func (s *RunSummary) FailedVariants() []string {
	var names []string
	for _, o := range s.Outcomes {
		if o.Failed() {
			names = append(names, o.Variant)
		}
	}
	return names
}
