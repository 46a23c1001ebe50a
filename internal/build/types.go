// Package build drives one variant through build, tag and push.
package build

import (
	"errors"
	"fmt"
	"time"

	"github.com/chis/imagesmith/internal/matrix"
)

// State is a step of the variant lifecycle:
//
//	pending → building → built → pushing → pushed
//	pending → skipped (dry run)
//	building | pushing → failed
type State string

const (
	StatePending  State = "pending"
	StateBuilding State = "building"
	StateBuilt    State = "built"
	StatePushing  State = "pushing"
	StatePushed   State = "pushed"
	StateFailed   State = "failed"
	StateSkipped  State = "skipped"
)

// Status is the summary result of an outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

var (
	ErrBuildFailure = errors.New("build failed")
	ErrPushFailure  = errors.New("push failed")
)

// BuildFailure wraps the engine error of a failed build.
type BuildFailure struct {
	Variant string
	Err     error
}

func (e *BuildFailure) Error() string {
	return fmt.Sprintf("build of %s failed: %v", e.Variant, e.Err)
}

func (e *BuildFailure) Unwrap() error { return e.Err }

func (e *BuildFailure) Is(target error) bool { return target == ErrBuildFailure }

// PushFailure wraps the engine error of one failed tag push.
type PushFailure struct {
	Tag string
	Err error
}

func (e *PushFailure) Error() string {
	return fmt.Sprintf("push of %s failed: %v", e.Tag, e.Err)
}

func (e *PushFailure) Unwrap() error { return e.Err }

func (e *PushFailure) Is(target error) bool { return target == ErrPushFailure }

// Options apply to every variant of a run.
type Options struct {
	// Platform is forwarded verbatim to the engine.
	Platform string
	NoCache  bool
	DryRun   bool
	Push     bool
}

// Target is one resolved variant plus where to build it from.
type Target struct {
	Namespace  string
	Variant    matrix.ResolvedVariant
	ContextDir string
	Dockerfile string
}

// Name returns the variant name.
func (t Target) Name() string {
	return t.Variant.Name
}

// Outcome is the result of driving one variant.
type Outcome struct {
	Namespace    string          `json:"namespace,omitempty"`
	Variant      string          `json:"variant"`
	State        State           `json:"state"`
	Status       Status          `json:"status"`
	Tags         []string        `json:"tags"`
	Pushed       []string        `json:"pushed,omitempty"`
	FailedPushes []string        `json:"failed_pushes,omitempty"`
	Planned      []string        `json:"planned,omitempty"`
	LTS          map[string]bool `json:"lts,omitempty"`
	Detail       string          `json:"detail,omitempty"`
	Error        string          `json:"error,omitempty"`
	Duration     time.Duration   `json:"duration_ns"`

	// Err carries the typed failure for errors.Is/As.
	Err error `json:"-"`
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}
