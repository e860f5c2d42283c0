package models

import "time"

// RunStatus is the state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord describes one execution of a project.
type RunRecord struct {
	ID          string
	Project     string
	Inputs      map[string]string
	Order       []string
	IgnoreCache bool
	ExitOnError bool
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// UnitRecord describes the outcome of one unit within a run.
type UnitRecord struct {
	RunID      string
	Unit       string
	Status     string
	CacheHit   bool
	Stored     bool
	Attempts   int
	OutputPath string
	// ValidationPath is the .result artifact, empty when not validated.
	ValidationPath string
	// Passed is nil when the unit was not validated.
	Passed     *bool
	Duration   time.Duration
	FinishedAt time.Time
}
