package models

import (
	"encoding/json"
	"time"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// Task is one durable background job. Workers claim pending rows with
// FOR UPDATE SKIP LOCKED; a failed attempt reschedules the row with
// exponential backoff until MaxAttempts is exhausted.
type Task struct {
	ID          int             `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Args        json.RawMessage `json:"args" db:"args"`
	Status      TaskStatus      `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	MaxAttempts int             `json:"max_attempts" db:"max_attempts"`
	RunAt       time.Time       `json:"run_at" db:"run_at"`
	Result      json.RawMessage `json:"result,omitempty" db:"result"`
	LastError   *string         `json:"last_error,omitempty" db:"last_error"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
