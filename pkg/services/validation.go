package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/leadflowhq/leadflow/pkg/models"
)

var validate = validator.New()

// Config schemas per node type. Trigger configs carry kind-specific required
// fields and are checked separately through models.ParseTriggerConfig.
var nodeConfigSchemas = map[models.NodeType]map[string]any{
	models.NodeTypeWait: {
		"type":     "object",
		"required": []string{"duration", "unit"},
		"properties": map[string]any{
			"duration": map[string]any{"type": "number", "exclusiveMinimum": 0},
			"unit":     map[string]any{"type": "string", "enum": []string{"minutes", "hours", "days"}},
		},
	},
	models.NodeTypeCondition: {
		"type":     "object",
		"required": []string{"field", "operator"},
		"properties": map[string]any{
			"field":    map[string]any{"type": "string", "minLength": 1},
			"operator": map[string]any{"type": "string", "enum": []string{"equals", "not_equals", "contains", "exists", "has_tag"}},
			"value":    map[string]any{"type": "string"},
		},
	},
}

// ValidateFlow checks the flow struct and its graph before it is saved.
func ValidateFlow(flow *models.Flow) error {
	if flow == nil {
		return ErrFlowNil
	}

	if err := validate.Struct(flow); err != nil {
		return NewValidationError("ValidateFlow", "INVALID_FLOW", err.Error(), ErrInvalidRequest)
	}

	return validateGraph(flow)
}

func validateGraph(flow *models.Flow) error {
	if len(flow.Nodes) == 0 {
		return ErrNodesRequired
	}

	seen := make(map[string]bool, len(flow.Nodes))
	hasTrigger := false

	for _, node := range flow.Nodes {
		if seen[node.ID] {
			return NewValidationError("validateGraph", "DUPLICATE_NODE_ID",
				fmt.Sprintf("node id %q appears more than once", node.ID), ErrDuplicateNodeID)
		}

		seen[node.ID] = true

		if err := validateNode(node); err != nil {
			return err
		}

		if node.IsTrigger() && node.Enabled {
			hasTrigger = true
		}
	}

	if !hasTrigger {
		return ErrTriggerNodeRequired
	}

	for _, edge := range flow.Edges {
		if !seen[edge.Source] || !seen[edge.Target] {
			return NewValidationError("validateGraph", "DANGLING_EDGE",
				fmt.Sprintf("edge %s connects %q -> %q", edge.ID, edge.Source, edge.Target), ErrDanglingEdge)
		}
	}

	return nil
}

func validateNode(node *models.FlowNode) error {
	switch node.Type {
	case models.NodeTypeTrigger:
		_, err := models.ParseTriggerConfig(node)
		if err != nil {
			return NewValidationError("validateNode", "INVALID_TRIGGER",
				fmt.Sprintf("node %s: %v", node.ID, err), ErrInvalidTrigger)
		}
	case models.NodeTypeAction:
		if node.ActionType == "" {
			return NewValidationError("validateNode", "INVALID_NODE_CONFIG",
				fmt.Sprintf("action node %s has no action_type", node.ID), ErrInvalidNodeConfig)
		}
	case models.NodeTypeCondition, models.NodeTypeWait:
		return validateNodeConfig(node)
	case models.NodeTypeEnd:
	default:
		return NewValidationError("validateNode", "UNKNOWN_NODE_TYPE",
			fmt.Sprintf("node %s has unknown type %q", node.ID, node.Type), ErrUnknownNodeType)
	}

	return nil
}

func validateNodeConfig(node *models.FlowNode) error {
	schema, ok := nodeConfigSchemas[node.Type]
	if !ok {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(node.Config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return NewValidationError("validateNodeConfig", "INVALID_NODE_CONFIG",
			fmt.Sprintf("node %s: %v", node.ID, err), ErrInvalidNodeConfig)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return NewValidationError("validateNodeConfig", "INVALID_NODE_CONFIG",
			fmt.Sprintf("node %s: %s", node.ID, strings.Join(details, "; ")), ErrInvalidNodeConfig)
	}

	return nil
}
