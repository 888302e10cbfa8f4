package models

import (
	"errors"
	"fmt"
	"time"
)

// ExecutionStatus defines the possible states of a flow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusError     ExecutionStatus = "error"
)

// MaxExecutionDepth bounds the number of node transitions a single execution
// may take. Executions that hit the cap are marked as errored.
const MaxExecutionDepth = 50

// ExecutionState is the structured bookkeeping record attached to an
// execution, persisted as JSON alongside it.
type ExecutionState struct {
	Depth             int            `json:"depth"`
	LastProcessedNode string         `json:"last_processed_node,omitempty"`
	LastProcessedAt   *time.Time     `json:"last_processed_at,omitempty"`
	LastError         string         `json:"last_error,omitempty"`
	Variables         map[string]any `json:"variables,omitempty"`
}

// Validate checks the state invariants before every write.
func (s ExecutionState) Validate() error {
	if s.Depth < 0 {
		return errors.New("execution state depth must not be negative")
	}

	if s.Depth > MaxExecutionDepth {
		return fmt.Errorf("execution state depth %d exceeds maximum %d", s.Depth, MaxExecutionDepth)
	}

	return nil
}

// Execution represents one lead's live progress instance through one flow.
// At most one execution per (flow, lead) pair may be active at a time,
// enforced by the persistence layer.
type Execution struct {
	ID              string          `json:"id"`
	FlowID          string          `json:"flow_id"         validate:"required"`
	LeadID          string          `json:"lead_id"         validate:"required"`
	OrganizationID  string          `json:"organization_id" validate:"required"`
	CurrentNodeID   string          `json:"current_node_id"`
	Status          ExecutionStatus `json:"status"`
	State           ExecutionState  `json:"state"`
	NextExecutionAt *time.Time      `json:"next_execution_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsActive reports whether the execution still advances. Completed and
// errored executions are terminal and never revisited.
func (e *Execution) IsActive() bool {
	return e.Status == ExecutionStatusRunning || e.Status == ExecutionStatusWaiting
}

// Due reports whether a waiting execution is ready to resume at now.
func (e *Execution) Due(now time.Time) bool {
	if e.Status != ExecutionStatusWaiting {
		return false
	}

	return e.NextExecutionAt == nil || !e.NextExecutionAt.After(now)
}
