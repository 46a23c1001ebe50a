package bootstrap

import (
	"time"

	"github.com/chis/imagesmith/internal/build"
	"github.com/chis/imagesmith/internal/orchestrator"
	"github.com/chis/imagesmith/internal/storage"
	"github.com/chis/imagesmith/internal/sweep"
)

// BuildRecord converts a build summary into a history record.
func BuildRecord(summary *orchestrator.RunSummary, runErr error) storage.RunRecord {
	rec := storage.RunRecord{
		RunID:     summary.RunID,
		Command:   storage.CommandBuild,
		Namespace: summary.Namespace,
		Mode:      string(summary.Mode),
		DryRun:    summary.DryRun,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Skipped:   summary.Skipped,
		StartedAt: summary.StartedAt,
		EndedAt:   summary.EndedAt,
		Outcomes:  make([]storage.OutcomeRecord, 0, len(summary.Outcomes)),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	for _, o := range summary.Outcomes {
		rec.Outcomes = append(rec.Outcomes, storage.OutcomeRecord{
			Namespace:    o.Namespace,
			Variant:      o.Variant,
			State:        string(o.State),
			Status:       persistedStatus(o.Status),
			Tags:         o.Tags,
			Pushed:       o.Pushed,
			FailedPushes: o.FailedPushes,
			Detail:       o.Detail,
			Error:        o.Error,
			Duration:     o.Duration,
		})
	}
	return rec
}

// SweepRecord converts a sweep summary into a history record. Each swept tag
// becomes one outcome. summary may be nil when the sweep could not start.
func SweepRecord(runID string, summary *sweep.Summary, started, ended time.Time, runErr error) storage.RunRecord {
	rec := storage.RunRecord{
		RunID:     runID,
		Command:   storage.CommandSweep,
		StartedAt: started,
		EndedAt:   ended,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if summary == nil {
		return rec
	}

	rec.Namespace = summary.Prefix
	rec.DryRun = summary.DryRun
	rec.Succeeded = summary.Pushed
	rec.Failed = summary.Failed
	rec.Skipped = summary.Skipped
	rec.Outcomes = make([]storage.OutcomeRecord, 0, len(summary.Results))

	for _, r := range summary.Results {
		state := build.StatePushed
		switch r.Status {
		case build.StatusFailed:
			state = build.StateFailed
		case build.StatusSkipped:
			state = build.StateSkipped
		}
		var pushed, failed []string
		switch r.Status {
		case build.StatusSuccess:
			pushed = []string{r.Tag}
		case build.StatusFailed:
			failed = []string{r.Tag}
		}
		rec.Outcomes = append(rec.Outcomes, storage.OutcomeRecord{
			Variant:      r.Tag,
			State:        string(state),
			Status:       persistedStatus(r.Status),
			Tags:         []string{r.Tag},
			Pushed:       pushed,
			FailedPushes: failed,
			Digest:       r.Digest,
			Detail:       r.Detail,
			Error:        r.Error,
		})
	}
	return rec
}

// persistedStatus maps a build status onto the values stored in history.
func persistedStatus(status build.Status) string {
	switch status {
	case build.StatusSuccess:
		return storage.StatusSuccess
	case build.StatusSkipped:
		return storage.StatusSkipped
	default:
		return storage.StatusFailed
	}
}
