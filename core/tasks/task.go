// Package tasks runs scheduling jobs asynchronously. A submitted job becomes
// a Task that moves PENDING -> RUNNING -> COMPLETED or FAILED; clients poll
// the task by id while a worker pool does the solving.
package tasks

import (
	"time"

	"ambuplan/core/model"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one asynchronous scheduling job. Result is set on completion, Error
// on failure; both stay empty while the task is live.
type Task struct {
	ID         string          `json:"id"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Result     *model.Schedule `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  time.Time       `json:"started_at,omitempty"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// Event is published on the bus at every task state transition.
type Event struct {
	Task Task
	Time time.Time
}
