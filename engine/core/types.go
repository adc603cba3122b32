package core

// -----------------------------------------------------------------------------
// Task Instance Status
// -----------------------------------------------------------------------------

// StatusType enumerates the recorded states of a task instance. An instance
// whose state column is SQL NULL has no recorded state yet; that sentinel is
// represented in Go as a nil *StatusType, never as a StatusType value.
type StatusType string

const (
	StatusQueued         StatusType = "QUEUED"
	StatusRunning        StatusType = "RUNNING"
	StatusSuccess        StatusType = "SUCCESS"
	StatusFailed         StatusType = "FAILED"
	StatusUpForRetry     StatusType = "UP_FOR_RETRY"
	StatusUpstreamFailed StatusType = "UPSTREAM_FAILED"
	StatusSkipped        StatusType = "SKIPPED"
)

func (s StatusType) String() string {
	return string(s)
}

// IsValid reports whether s is one of the recognized instance states.
func (s StatusType) IsValid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSuccess, StatusFailed,
		StatusUpForRetry, StatusUpstreamFailed, StatusSkipped:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Run Status
// -----------------------------------------------------------------------------

// RunStatusType enumerates the states of a workflow run.
type RunStatusType string

const (
	RunStatusQueued  RunStatusType = "QUEUED"
	RunStatusRunning RunStatusType = "RUNNING"
	RunStatusSuccess RunStatusType = "SUCCESS"
	RunStatusFailed  RunStatusType = "FAILED"
)

func (s RunStatusType) String() string {
	return string(s)
}
