// Package models defines the core domain models for lead-scoped flow automation.
package models

import "time"

// FlowStatus represents the lifecycle state of an automation flow.
type FlowStatus string

const (
	FlowStatusActive   FlowStatus = "active"   // Evaluated by the trigger matcher
	FlowStatusInactive FlowStatus = "inactive" // Saved but never triggered
)

// Flow represents a saved automation graph, scoped to one organization.
// Flows are created through the flow builder, mutated on save and soft
// deleted, never removed automatically.
type Flow struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id" validate:"required"`
	Name           string      `json:"name"            validate:"required,min=3"`
	Description    string      `json:"description"`
	Status         FlowStatus  `json:"status"          validate:"required,oneof=active inactive"`
	Nodes          []*FlowNode `json:"nodes"`
	Edges          []*FlowEdge `json:"edges"`
	CreatedBy      string      `json:"created_by"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	DeletedAt      *time.Time  `json:"deleted_at,omitempty"`
}

// IsActive reports whether the flow is eligible for trigger matching.
func (f *Flow) IsActive() bool {
	return f.Status == FlowStatusActive && f.DeletedAt == nil
}

// TriggerNodes returns the trigger nodes of the flow graph.
func (f *Flow) TriggerNodes() []*FlowNode {
	nodes := make([]*FlowNode, 0)

	for _, node := range f.Nodes {
		if node.IsTrigger() {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// NodeByID resolves a node id within the flow graph.
func (f *Flow) NodeByID(id string) (*FlowNode, bool) {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}
