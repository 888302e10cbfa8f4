package models

import (
	"fmt"
	"time"
)

// TriggerKind identifies which domain events a trigger node reacts to.
type TriggerKind string

const (
	TriggerLeadCreated  TriggerKind = "lead_created"
	TriggerTagAdded     TriggerKind = "tag_added"
	TriggerTagRemoved   TriggerKind = "tag_removed"
	TriggerStageChanged TriggerKind = "stage_changed"
	TriggerFieldChanged TriggerKind = "field_changed"
	TriggerDate         TriggerKind = "date_trigger"

	// TriggerRelativeDate is accepted in flow definitions but never matches.
	// The behavior is pending product definition; see DESIGN.md.
	TriggerRelativeDate TriggerKind = "relative_date"
)

// TriggerConfig is the typed configuration embedded in a trigger node.
// Only the fields relevant to the kind are set.
type TriggerConfig struct {
	Kind    TriggerKind `json:"kind"`
	TagID   string      `json:"tag_id,omitempty"`   // tag_added, tag_removed
	StageID string      `json:"stage_id,omitempty"` // stage_changed
	Field   string      `json:"field,omitempty"`    // field_changed
	Value   string      `json:"value,omitempty"`    // field_changed, optional
	Date    string      `json:"date,omitempty"`     // date_trigger, "2006-01-02"
}

// DateMatches reports whether a date_trigger config targets the calendar day
// of now. Time of day is ignored.
func (c TriggerConfig) DateMatches(now time.Time) bool {
	if c.Kind != TriggerDate || c.Date == "" {
		return false
	}

	date, err := time.Parse("2006-01-02", c.Date)
	if err != nil {
		return false
	}

	return date.Year() == now.Year() && date.Month() == now.Month() && date.Day() == now.Day()
}

// ParseTriggerConfig extracts the typed trigger configuration from a trigger
// node's config map.
func ParseTriggerConfig(node *FlowNode) (TriggerConfig, error) {
	if !node.IsTrigger() {
		return TriggerConfig{}, fmt.Errorf("node %s is not a trigger node", node.ID)
	}

	kind, _ := node.Config["kind"].(string)
	if kind == "" {
		return TriggerConfig{}, fmt.Errorf("trigger node %s has no kind configured", node.ID)
	}

	config := TriggerConfig{Kind: TriggerKind(kind)}
	config.TagID, _ = node.Config["tag_id"].(string)
	config.StageID, _ = node.Config["stage_id"].(string)
	config.Field, _ = node.Config["field"].(string)
	config.Value, _ = node.Config["value"].(string)
	config.Date, _ = node.Config["date"].(string)

	switch config.Kind {
	case TriggerLeadCreated, TriggerRelativeDate:
	case TriggerTagAdded, TriggerTagRemoved:
		if config.TagID == "" {
			return TriggerConfig{}, fmt.Errorf("trigger node %s requires tag_id", node.ID)
		}
	case TriggerStageChanged:
		if config.StageID == "" {
			return TriggerConfig{}, fmt.Errorf("trigger node %s requires stage_id", node.ID)
		}
	case TriggerFieldChanged:
		if config.Field == "" {
			return TriggerConfig{}, fmt.Errorf("trigger node %s requires field", node.ID)
		}
	case TriggerDate:
		if config.Date == "" {
			return TriggerConfig{}, fmt.Errorf("trigger node %s requires date", node.ID)
		}

		if _, err := time.Parse("2006-01-02", config.Date); err != nil {
			return TriggerConfig{}, fmt.Errorf("trigger node %s has invalid date: %w", node.ID, err)
		}
	default:
		return TriggerConfig{}, fmt.Errorf("trigger node %s has unknown kind %q", node.ID, kind)
	}

	return config, nil
}
