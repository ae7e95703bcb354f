package jobs

import "time"

// Status represents the lifecycle state of a generation job stored on a
// calendar event row. These values must match the text values stored in
// the database (presales_report_status / slides_status).
//
// Centralizing these here avoids scattering string literals like
// "pending" or "completed" across packages.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further automatic transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Kind identifies one of the two generation jobs attached to a calendar
// event.
type Kind string

const (
	KindPresalesReport Kind = "presales_report"
	KindSlides         Kind = "slides"
)

// Valid reports whether k is one of the two known job kinds.
func (k Kind) Valid() bool {
	return k == KindPresalesReport || k == KindSlides
}

// IsStale reports whether a job is stuck: still processing, no result
// URL, and started longer ago than the staleness window. A stale job is
// eligible for retry; the stored status is not mutated here.
func IsStale(status Status, url string, startedAt *time.Time, now time.Time, staleAfter time.Duration) bool {
	if status != StatusProcessing || url != "" || startedAt == nil {
		return false
	}
	return now.Sub(*startedAt) > staleAfter
}

// Retriggerable reports whether a new trigger is allowed given the
// current stored state. Allowed from pending (including unset), failed,
// or a stale processing state; never from completed or a genuinely
// in-flight processing state.
func Retriggerable(status Status, url string, startedAt *time.Time, now time.Time, staleAfter time.Duration) bool {
	switch status {
	case "", StatusPending, StatusFailed:
		return true
	case StatusProcessing:
		return IsStale(status, url, startedAt, now, staleAfter)
	default:
		return false
	}
}
