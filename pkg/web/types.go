// Package web provides HTTP request and response types for the flow API.
package web

import "github.com/leadflowhq/leadflow/pkg/models"

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	OrganizationID string             `json:"organization_id" validate:"required"`
	Name           string             `json:"name"            validate:"required,min=3"`
	Description    string             `json:"description"`
	CreatedBy      string             `json:"created_by"`
	Nodes          []*models.FlowNode `json:"nodes"`
	Edges          []*models.FlowEdge `json:"edges"`
}

// UpdateFlowRequest represents the request body for updating an existing
// flow. All fields are optional to support partial updates; nodes and edges
// are replaced as a unit when present.
type UpdateFlowRequest struct {
	Name        *string            `json:"name,omitempty" validate:"omitempty,min=3"`
	Description *string            `json:"description,omitempty"`
	Nodes       []*models.FlowNode `json:"nodes,omitempty"`
	Edges       []*models.FlowEdge `json:"edges,omitempty"`
}

// ExecutionResponse is the API shape of an execution.
type ExecutionResponse struct {
	ID              string                 `json:"id"`
	FlowID          string                 `json:"flow_id"`
	LeadID          string                 `json:"lead_id"`
	Status          models.ExecutionStatus `json:"status"`
	CurrentNodeID   string                 `json:"current_node_id"`
	NextExecutionAt *string                `json:"next_execution_at,omitempty"`
	Depth           int                    `json:"depth"`
	LastError       string                 `json:"last_error,omitempty"`
}

// TransformExecutionResponse flattens the internal execution state for API
// consumers.
func TransformExecutionResponse(execution *models.Execution) ExecutionResponse {
	response := ExecutionResponse{
		ID:            execution.ID,
		FlowID:        execution.FlowID,
		LeadID:        execution.LeadID,
		Status:        execution.Status,
		CurrentNodeID: execution.CurrentNodeID,
		Depth:         execution.State.Depth,
		LastError:     execution.State.LastError,
	}

	if execution.NextExecutionAt != nil {
		formatted := execution.NextExecutionAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		response.NextExecutionAt = &formatted
	}

	return response
}
