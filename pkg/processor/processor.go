// Package processor interprets single flow nodes and reports how the
// execution should continue.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/protocol"
	"github.com/leadflowhq/leadflow/pkg/registry"
)

// Result reports the outcome of processing one node. A nil error with a
// WaitUntil suspends the execution; Branch selects the outgoing edge of a
// condition node.
type Result struct {
	WaitUntil *time.Time
	Branch    string
	Output    any
}

// NodeProcessor interprets one node for one lead.
type NodeProcessor interface {
	ProcessNode(ctx context.Context, node *models.FlowNode, lead *models.Lead, execution *models.Execution) (Result, error)
}

// Processor is the default NodeProcessor, delegating action nodes to the
// registry.
type Processor struct {
	registry *registry.Registry
	logger   *slog.Logger
	now      func() time.Time
}

func NewProcessor(reg *registry.Registry, logger *slog.Logger) *Processor {
	return &Processor{
		registry: reg,
		logger:   logger.With("module", "node_processor"),
		now:      time.Now,
	}
}

func (p *Processor) ProcessNode(ctx context.Context, node *models.FlowNode, lead *models.Lead, execution *models.Execution) (Result, error) {
	logger := p.logger.With(
		"node_id", node.ID,
		"node_type", node.Type,
		"lead_id", lead.ID,
		"execution_id", execution.ID,
	)

	if !node.Enabled {
		logger.DebugContext(ctx, "Node is disabled, passing through")

		return Result{}, nil
	}

	switch node.Type {
	case models.NodeTypeTrigger, models.NodeTypeEnd:
		// Entry and terminal nodes have no side effect of their own.
		return Result{}, nil
	case models.NodeTypeWait:
		return p.processWait(node)
	case models.NodeTypeCondition:
		return p.processCondition(node, lead)
	case models.NodeTypeAction:
		return p.processAction(ctx, node, lead, execution, logger)
	default:
		return Result{}, fmt.Errorf("unknown node type %q", node.Type)
	}
}

// processWait computes the resume time from the node's duration config.
func (p *Processor) processWait(node *models.FlowNode) (Result, error) {
	value, ok := node.Config["duration"].(float64)
	if !ok || value <= 0 {
		return Result{}, fmt.Errorf("wait node %s requires a positive duration", node.ID)
	}

	unit, _ := node.Config["unit"].(string)

	var duration time.Duration

	switch unit {
	case "minutes", "":
		duration = time.Duration(value * float64(time.Minute))
	case "hours":
		duration = time.Duration(value * float64(time.Hour))
	case "days":
		duration = time.Duration(value * 24 * float64(time.Hour))
	default:
		return Result{}, fmt.Errorf("wait node %s has unknown unit %q", node.ID, unit)
	}

	waitUntil := p.now().Add(duration)

	return Result{WaitUntil: &waitUntil}, nil
}

// processCondition evaluates a lead field predicate and selects the yes/no
// branch.
func (p *Processor) processCondition(node *models.FlowNode, lead *models.Lead) (Result, error) {
	field, _ := node.Config["field"].(string)
	if field == "" {
		return Result{}, fmt.Errorf("condition node %s requires a field", node.ID)
	}

	operator, _ := node.Config["operator"].(string)
	if operator == "" {
		operator = "equals"
	}

	expected, _ := node.Config["value"].(string)

	value, exists := lead.Field(field)
	actual := ""

	if exists && value != nil {
		actual = fmt.Sprintf("%v", value)
	}

	var matched bool

	switch operator {
	case "equals":
		matched = exists && actual == expected
	case "not_equals":
		matched = !exists || actual != expected
	case "contains":
		matched = exists && strings.Contains(actual, expected)
	case "exists":
		matched = exists && actual != ""
	case "has_tag":
		matched = lead.HasTag(expected)
	default:
		return Result{}, fmt.Errorf("condition node %s has unknown operator %q", node.ID, operator)
	}

	branch := models.BranchNo
	if matched {
		branch = models.BranchYes
	}

	return Result{Branch: branch}, nil
}

func (p *Processor) processAction(ctx context.Context, node *models.FlowNode, lead *models.Lead, execution *models.Execution, logger *slog.Logger) (Result, error) {
	if node.ActionType == "" {
		return Result{}, fmt.Errorf("action node %s has no action type", node.ID)
	}

	action, err := p.registry.CreateAction(node.ActionType, node.Config)
	if err != nil {
		return Result{}, err
	}

	output, err := action.Execute(ctx, protocol.ActionContext{
		Lead:      lead,
		Execution: execution,
		Logger:    logger.With("action_type", node.ActionType),
	})
	if err != nil {
		return Result{}, fmt.Errorf("action %s failed: %w", node.ActionType, err)
	}

	return Result{Output: output}, nil
}
