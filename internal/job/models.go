package job

import (
	"time"
)

// Status represents the lifecycle of a render job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusAnalyzing Status = "analyzing"
	StatusRendering Status = "rendering"
	StatusEncoding  Status = "encoding"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// InterruptedReason is the error message set on jobs found mid-flight at
// startup.
const InterruptedReason = "interrupted by shutdown"

var allStatuses = []Status{
	StatusQueued,
	StatusAnalyzing,
	StatusRendering,
	StatusEncoding,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// processingStatuses are states a healthy process never leaves a job in.
var processingStatuses = map[Status]struct{}{
	StatusAnalyzing: {},
	StatusRendering: {},
	StatusEncoding:  {},
}

// validTransitions confines movement to the forward path plus failure from
// any processing state.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusAnalyzing, StatusFailed},
	StatusAnalyzing: {StatusRendering, StatusFailed},
	StatusRendering: {StatusEncoding, StatusFailed},
	StatusEncoding:  {StatusCompleted, StatusFailed},
}

func transitionAllowed(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status is an end state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one render request and its progress.
type Job struct {
	ID             string
	Status         Status
	AudioPath      string
	CuesPath       string
	BackgroundPath string
	OutputPath     string
	FramesExpected int64
	FramesEncoded  int64
	UsedFallback   bool
	ErrorKind      string
	ErrorMessage   string
	// FailedFrame is the frame index a per-frame failure was attributed to,
	// or -1 when the failure was not frame-specific.
	FailedFrame int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Progress returns completion in [0,1].
func (j *Job) Progress() float64 {
	if j.FramesExpected <= 0 {
		return 0
	}
	p := float64(j.FramesEncoded) / float64(j.FramesExpected)
	if p > 1 {
		return 1
	}
	return p
}
