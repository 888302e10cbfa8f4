package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionState_Validate(t *testing.T) {
	require.NoError(t, ExecutionState{Depth: 0}.Validate())
	require.NoError(t, ExecutionState{Depth: MaxExecutionDepth}.Validate())

	err := ExecutionState{Depth: -1}.Validate()
	require.Error(t, err)

	err = ExecutionState{Depth: MaxExecutionDepth + 1}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")
}

func TestExecution_IsActive(t *testing.T) {
	assert.True(t, (&Execution{Status: ExecutionStatusRunning}).IsActive())
	assert.True(t, (&Execution{Status: ExecutionStatusWaiting}).IsActive())
	assert.False(t, (&Execution{Status: ExecutionStatusCompleted}).IsActive())
	assert.False(t, (&Execution{Status: ExecutionStatusError}).IsActive())
}

func TestExecution_Due(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	assert.True(t, (&Execution{Status: ExecutionStatusWaiting, NextExecutionAt: &past}).Due(now))
	assert.True(t, (&Execution{Status: ExecutionStatusWaiting, NextExecutionAt: &now}).Due(now))
	assert.True(t, (&Execution{Status: ExecutionStatusWaiting}).Due(now))
	assert.False(t, (&Execution{Status: ExecutionStatusWaiting, NextExecutionAt: &future}).Due(now))
	assert.False(t, (&Execution{Status: ExecutionStatusRunning, NextExecutionAt: &past}).Due(now))
}

func TestFlow_TriggerNodesAndLookup(t *testing.T) {
	flow := &Flow{
		ID:     "flow-1",
		Status: FlowStatusActive,
		Nodes: []*FlowNode{
			{ID: "t1", Type: NodeTypeTrigger},
			{ID: "a1", Type: NodeTypeAction},
			{ID: "t2", Type: NodeTypeTrigger},
		},
	}

	triggers := flow.TriggerNodes()
	require.Len(t, triggers, 2)
	assert.Equal(t, "t1", triggers[0].ID)
	assert.Equal(t, "t2", triggers[1].ID)

	node, found := flow.NodeByID("a1")
	require.True(t, found)
	assert.Equal(t, NodeTypeAction, node.Type)

	_, found = flow.NodeByID("missing")
	assert.False(t, found)
}

func TestFlow_IsActive(t *testing.T) {
	deleted := time.Now()

	assert.True(t, (&Flow{Status: FlowStatusActive}).IsActive())
	assert.False(t, (&Flow{Status: FlowStatusInactive}).IsActive())
	assert.False(t, (&Flow{Status: FlowStatusActive, DeletedAt: &deleted}).IsActive())
}

func TestLead_Field(t *testing.T) {
	lead := &Lead{
		Name:    "Ada",
		Phone:   "+5511999999999",
		StageID: "stage-new",
		Fields:  map[string]any{"city": "Lisbon"},
	}

	value, ok := lead.Field("name")
	require.True(t, ok)
	assert.Equal(t, "Ada", value)

	value, ok = lead.Field("city")
	require.True(t, ok)
	assert.Equal(t, "Lisbon", value)

	_, ok = lead.Field("country")
	assert.False(t, ok)
}
