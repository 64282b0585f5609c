package jobs

import (
	"time"

	"furrow/internal/services/farmapi"
)

// Phase is the tracker-local lifecycle of one sync job. It extends the
// server-reported phases with the client-side checking step.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseChecking   Phase = "checking"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// Terminal reports whether the phase ends the poll loop.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseCancelled:
		return true
	}
	return false
}

// Cause distinguishes why a job reached failed: the server said so, the
// status endpoint became unreachable, or the local watchdog gave up. In the
// latter two cases the job may well still be running server-side.
type Cause string

const (
	CauseNone         Cause = ""
	CauseServer       Cause = "server"
	CauseErrorCeiling Cause = "error_ceiling"
	CauseWatchdog     Cause = "watchdog"
)

// Progress is the server-reported completion counter. Current never
// decreases while a job is tracked.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// State is a point-in-time snapshot of one tracked scope. Copies are handed
// to subscribers; the tracker never shares its internal record.
type State struct {
	Scope             farmapi.Scope `json:"scope"`
	Phase             Phase         `json:"phase"`
	Progress          Progress      `json:"progress"`
	Message           string        `json:"message,omitempty"`
	Cause             Cause         `json:"cause,omitempty"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	Resumed           bool          `json:"resumed"`
	Detached          bool          `json:"detached"`
	StartedAt         time.Time     `json:"started_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}
