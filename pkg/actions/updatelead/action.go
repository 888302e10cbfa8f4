// Package updatelead implements the update_lead action: tag mutations, stage
// moves and field writes on the lead.
package updatelead

import (
	"context"
	"fmt"
	"time"

	"github.com/leadflowhq/leadflow/pkg/eventbus"
	"github.com/leadflowhq/leadflow/pkg/events"
	"github.com/leadflowhq/leadflow/pkg/persistence"
	"github.com/leadflowhq/leadflow/pkg/protocol"
)

const ActionID = "update_lead"

const (
	OperationAddTag    = "add_tag"
	OperationRemoveTag = "remove_tag"
	OperationMoveStage = "move_stage"
	OperationSetField  = "set_field"
)

type Action struct {
	Operation string
	TagID     string
	StageID   string
	Field     string
	Value     string

	leads     persistence.LeadRepository
	publisher eventbus.EventPublisher
}

type Factory struct {
	leads persistence.LeadRepository

	// publisher re-emits the resulting lead event so automation-driven
	// mutations can trigger other flows, like CRM-driven ones do. May be nil.
	publisher eventbus.EventPublisher
}

func NewActionFactory(leads persistence.LeadRepository, publisher eventbus.EventPublisher) *Factory {
	return &Factory{leads: leads, publisher: publisher}
}

func (f *Factory) ID() string {
	return ActionID
}

func (f *Factory) Create(config map[string]any) (protocol.Action, error) {
	operation, _ := config["operation"].(string)

	action := &Action{
		Operation: operation,
		leads:     f.leads,
		publisher: f.publisher,
	}
	action.TagID, _ = config["tag_id"].(string)
	action.StageID, _ = config["stage_id"].(string)
	action.Field, _ = config["field"].(string)
	action.Value, _ = config["value"].(string)

	switch operation {
	case OperationAddTag, OperationRemoveTag:
		if action.TagID == "" {
			return nil, fmt.Errorf("update_lead %s requires tag_id", operation)
		}
	case OperationMoveStage:
		if action.StageID == "" {
			return nil, fmt.Errorf("update_lead %s requires stage_id", operation)
		}
	case OperationSetField:
		if action.Field == "" {
			return nil, fmt.Errorf("update_lead %s requires field", operation)
		}
	default:
		return nil, fmt.Errorf("update_lead has unknown operation %q", operation)
	}

	return action, nil
}

func (a *Action) Execute(ctx context.Context, actionCtx protocol.ActionContext) (any, error) {
	lead := actionCtx.Lead

	var event *events.LeadEvent

	switch a.Operation {
	case OperationAddTag:
		if !lead.HasTag(a.TagID) {
			lead.Tags = append(lead.Tags, a.TagID)
			evt := events.NewLeadEvent(events.TagAddedEvent, lead.ID, events.EventData{TagID: a.TagID})
			event = &evt
		}
	case OperationRemoveTag:
		if lead.HasTag(a.TagID) {
			tags := make([]string, 0, len(lead.Tags))

			for _, tag := range lead.Tags {
				if tag != a.TagID {
					tags = append(tags, tag)
				}
			}

			lead.Tags = tags
			evt := events.NewLeadEvent(events.TagRemovedEvent, lead.ID, events.EventData{TagID: a.TagID})
			event = &evt
		}
	case OperationMoveStage:
		if lead.StageID != a.StageID {
			lead.StageID = a.StageID
			evt := events.NewLeadEvent(events.StageChangedEvent, lead.ID, events.EventData{StageID: a.StageID})
			event = &evt
		}
	case OperationSetField:
		if lead.Fields == nil {
			lead.Fields = make(map[string]any)
		}

		lead.Fields[a.Field] = a.Value
		evt := events.NewLeadEvent(events.FieldChangedEvent, lead.ID, events.EventData{Field: a.Field, Value: a.Value})
		event = &evt
	}

	if event == nil {
		return map[string]any{"changed": false}, nil
	}

	lead.UpdatedAt = time.Now().UTC()

	if err := a.leads.Save(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to save lead: %w", err)
	}

	event.OrganizationID = lead.OrganizationID

	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, lead.ID, *event); err != nil {
			actionCtx.Logger.ErrorContext(ctx, "Failed to publish lead event",
				"event_type", event.Type, "error", err)
		}
	}

	return map[string]any{"changed": true, "operation": a.Operation}, nil
}
