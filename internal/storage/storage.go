package storage

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned by GetRun when no run has the given ID.
var ErrRunNotFound = errors.New("run not found")

// Storage defines the interface for run history persistence.
// Callers treat it as optional: a nil Storage or a failing write must never
// change a run's result.
type Storage interface {
	// SaveRun records a finished run and its outcomes atomically.
	// Saving a run ID twice replaces the earlier record.
	SaveRun(ctx context.Context, run RunRecord) error

	// ListRuns returns the most recent runs first, without outcomes.
	// A limit of 0 uses the default.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetRun returns one run with its outcomes in their recorded order.
	GetRun(ctx context.Context, runID string) (RunRecord, error)

	// Close releases the database connection.
	Close() error
}

// RunRecord is one persisted build or sweep run.
type RunRecord struct {
	ID        int64           `json:"id"`
	RunID     string          `json:"run_id"`
	Command   string          `json:"command"`
	Namespace string          `json:"namespace,omitempty"`
	Mode      string          `json:"mode,omitempty"`
	DryRun    bool            `json:"dry_run"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Outcomes  []OutcomeRecord `json:"outcomes,omitempty"`
}

// OK reports whether the run had no failures and no run-level error.
func (r RunRecord) OK() bool {
	return r.Failed == 0 && r.Error == ""
}

// Duration is the wall time of the run.
func (r RunRecord) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// OutcomeRecord is the persisted result of one variant or swept tag.
type OutcomeRecord struct {
	Namespace    string        `json:"namespace,omitempty"`
	Variant      string        `json:"variant"`
	State        string        `json:"state"`
	Status       string        `json:"status"`
	Tags         []string      `json:"tags"`
	Pushed       []string      `json:"pushed,omitempty"`
	FailedPushes []string      `json:"failed_pushes,omitempty"`
	Digest       string        `json:"digest,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}
