package storage

// Commands recorded in run history.
const (
	CommandBuild = "build"
	CommandSweep = "sweep"
)

// Outcome status values as persisted.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

const defaultHistoryLimit = 20
