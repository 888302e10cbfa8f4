package models

// NodeType represents the kind of a flow node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"   // Entry point, carries a TriggerConfig
	NodeTypeCondition NodeType = "condition" // Branches on a lead predicate (yes/no)
	NodeTypeWait      NodeType = "wait"      // Suspends the execution for a duration
	NodeTypeAction    NodeType = "action"    // Side effect, delegated to the action registry
	NodeTypeEnd       NodeType = "end"       // Terminal node
)

// Edge branch labels for condition nodes.
const (
	BranchYes = "yes"
	BranchNo  = "no"
)

// FlowNode represents a node instance in a flow graph.
type FlowNode struct {
	ID         string         `json:"id"          validate:"required"`
	Type       NodeType       `json:"type"        validate:"required"`
	ActionType string         `json:"action_type,omitempty"` // For action nodes only
	Name       string         `json:"name"`
	Config     map[string]any `json:"config"`
	Enabled    bool           `json:"enabled"`
}

func (n *FlowNode) IsTrigger() bool {
	return n.Type == NodeTypeTrigger
}

func (n *FlowNode) IsEnd() bool {
	return n.Type == NodeTypeEnd
}

// FlowEdge connects two nodes. Branch carries the condition outcome the edge
// follows ("yes"/"no"); an empty branch marks the default outgoing edge.
type FlowEdge struct {
	ID     string `json:"id"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Branch string `json:"branch,omitempty"`
}
