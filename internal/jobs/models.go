package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a render job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRendering Status = "rendering"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CrashReason is stored on jobs found in rendering when the store is reset.
const CrashReason = "Render interrupted before completion"

var allStatuses = []Status{
	StatusPending,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
}

// ParseStatus normalizes user input into a Status.
func ParseStatus(value string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one render recorded in the history.
type Job struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	ProjectPath    string     `json:"project_path"`
	SourcePath     string     `json:"source_path"`
	OutputPath     string     `json:"output_path"`
	Status         Status     `json:"status"`
	FramesRendered int        `json:"frames_rendered"`
	FramesTotal    int        `json:"frames_total"`
	Progress       float64    `json:"progress"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ArchivePath    string     `json:"archive_path,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Elapsed reports how long the render ran, or has been running.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j == nil || j.StartedAt == nil {
		return 0
	}
	end := now
	if j.FinishedAt != nil {
		end = *j.FinishedAt
	}
	if end.Before(*j.StartedAt) {
		return 0
	}
	return end.Sub(*j.StartedAt)
}

// NewJob describes a render about to start.
type NewJob struct {
	Title       string
	ProjectPath string
	SourcePath  string
	OutputPath  string
}
