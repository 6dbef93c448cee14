package orchestrator

import (
	"time"

	"github.com/atelierhq/evolink-http/internal/evolink"
)

// Status is the lifecycle state of a generation task. Transitions are
// queued → creating → polling → {completed | failed}; the only skip allowed
// is queued/creating → failed on a validation or create error. Terminal
// states are final.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusCreating  Status = "creating"
	StatusPolling   Status = "polling"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Active reports whether the task occupies a concurrency slot.
func (s Status) Active() bool {
	return s == StatusCreating || s == StatusPolling
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var allowedStatuses = map[Status]struct{}{
	StatusQueued:    {},
	StatusCreating:  {},
	StatusPolling:   {},
	StatusCompleted: {},
	StatusFailed:    {},
}

// Task is one generation request's full lifecycle record. The orchestrator
// exclusively owns mutation; consumers only ever see value copies.
type Task struct {
	ClientID       string                    `json:"client_id"`
	Request        evolink.GenerationRequest `json:"request"`
	CreatedAt      int64                     `json:"created_at"`
	Status         Status                    `json:"status"`
	Progress       int                       `json:"progress"`
	EstimatedTime  int                       `json:"estimated_time,omitempty"`
	ElapsedSeconds int                       `json:"elapsed_seconds"`
	VendorTaskID   string                    `json:"vendor_task_id,omitempty"`
	ResultURL      string                    `json:"result_url,omitempty"`
	ErrorMessage   string                    `json:"error_message,omitempty"`
}

// normalizeStoredTask repairs a task loaded from persistence. In-flight call
// state cannot be trusted across a reload: creating/polling without a vendor
// task id is downgraded to queued, creating with one resumes as polling.
// Returns false for entries too broken to keep.
func normalizeStoredTask(task Task) (Task, bool) {
	if task.ClientID == "" || task.Request.Prompt == "" {
		return Task{}, false
	}
	if _, ok := allowedStatuses[task.Status]; !ok {
		task.Status = StatusFailed
		if task.ErrorMessage == "" {
			task.ErrorMessage = "task state lost across restart"
		}
	}
	if task.CreatedAt <= 0 {
		task.CreatedAt = time.Now().UnixMilli()
	}
	if task.Progress < 0 {
		task.Progress = 0
	} else if task.Progress > 100 {
		task.Progress = 100
	}
	if task.ElapsedSeconds < 0 {
		task.ElapsedSeconds = 0
	}
	switch {
	case task.Status.Active() && task.VendorTaskID == "":
		task.Status = StatusQueued
	case task.Status == StatusCreating && task.VendorTaskID != "":
		task.Status = StatusPolling
	}
	// terminal exclusivity: exactly one of result/error when terminal
	switch task.Status {
	case StatusCompleted:
		if task.ResultURL == "" {
			return Task{}, false
		}
		task.ErrorMessage = ""
		task.VendorTaskID = ""
	case StatusFailed:
		if task.ErrorMessage == "" {
			task.ErrorMessage = "unknown failure"
		}
		task.ResultURL = ""
		task.VendorTaskID = ""
	default:
		task.ResultURL = ""
		task.ErrorMessage = ""
	}
	return task, true
}
