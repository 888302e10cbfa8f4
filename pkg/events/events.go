// Package events defines the domain events exchanged between the CRM
// application and the flow engine.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single bus topic all engine events travel on.
const Topic = "leadflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Lead lifecycle events, published by the CRM side on every relevant
	// mutation (lead CRUD, tag CRUD, pipeline stage moves).
	LeadCreatedEvent  EventType = "lead.created"
	TagAddedEvent     EventType = "lead.tag_added"
	TagRemovedEvent   EventType = "lead.tag_removed"
	StageChangedEvent EventType = "lead.stage_changed"
	FieldChangedEvent EventType = "lead.field_changed"

	// Execution lifecycle events, published by the runner.
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
)

type BaseEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	OrganizationID string    `json:"organization_id,omitempty"`
}

func NewBaseEvent(eventType EventType, organizationID string) BaseEvent {
	return BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		OrganizationID: organizationID,
	}
}

// LeadEvent is a domain event about a single lead. EventData carries the
// kind-specific payload the trigger matcher inspects.
type LeadEvent struct {
	BaseEvent

	LeadID string    `json:"lead_id"`
	Data   EventData `json:"data,omitempty"`
}

// EventData is the kind-specific payload of a lead event.
type EventData struct {
	TagID   string `json:"tag_id,omitempty"`   // tag_added, tag_removed
	StageID string `json:"stage_id,omitempty"` // stage_changed
	Field   string `json:"field,omitempty"`    // field_changed
	Value   string `json:"value,omitempty"`    // field_changed
}

func (e LeadEvent) GetType() EventType {
	return e.Type
}

// NewLeadEvent creates a lead event of the given type.
func NewLeadEvent(eventType EventType, leadID string, data EventData) LeadEvent {
	return LeadEvent{
		BaseEvent: NewBaseEvent(eventType, ""),
		LeadID:    leadID,
		Data:      data,
	}
}

// ExecutionCompleted is published when an execution reaches its end.
type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	LeadID      string `json:"lead_id"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

// ExecutionFailed is published when an execution is marked as errored.
type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	FlowID      string `json:"flow_id"`
	LeadID      string `json:"lead_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

// IsLeadEvent reports whether the event type is one of the lead lifecycle
// events the trigger matcher consumes.
func IsLeadEvent(eventType EventType) bool {
	switch eventType {
	case LeadCreatedEvent, TagAddedEvent, TagRemovedEvent, StageChangedEvent, FieldChangedEvent:
		return true
	default:
		return false
	}
}
