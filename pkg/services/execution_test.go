package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

func seedExecution(t *testing.T, p persistence.Persistence, flowID, leadID string) *models.Execution {
	t.Helper()

	execution := &models.Execution{
		FlowID:         flowID,
		LeadID:         leadID,
		OrganizationID: "org-1",
		CurrentNodeID:  "t1",
		Status:         models.ExecutionStatusRunning,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	created, err := p.Executions().Create(t.Context(), execution)
	require.NoError(t, err)
	require.True(t, created)

	return execution
}

func TestExecutionService_FetchByID(t *testing.T) {
	p, flowService := newFlowService(t)
	service := NewExecution(p)

	flow, err := flowService.Create(t.Context(), validFlow())
	require.NoError(t, err)

	seeded := seedExecution(t, p, flow.ID, "lead-1")

	fetched, err := service.FetchByID(t.Context(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, flow.ID, fetched.FlowID)
	assert.Equal(t, "lead-1", fetched.LeadID)
}

func TestExecutionService_FetchByIDNotFound(t *testing.T) {
	p, _ := newFlowService(t)
	service := NewExecution(p)

	_, err := service.FetchByID(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestExecutionService_ListByFlow(t *testing.T) {
	p, flowService := newFlowService(t)
	service := NewExecution(p)

	flow, err := flowService.Create(t.Context(), validFlow())
	require.NoError(t, err)

	seedExecution(t, p, flow.ID, "lead-1")
	seedExecution(t, p, flow.ID, "lead-2")

	executions, err := service.ListByFlow(t.Context(), flow.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}

func TestExecutionService_ListByFlowUnknownFlow(t *testing.T) {
	p, _ := newFlowService(t)
	service := NewExecution(p)

	_, err := service.ListByFlow(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestExecutionService_ListByLead(t *testing.T) {
	p, flowService := newFlowService(t)
	service := NewExecution(p)

	first, err := flowService.Create(t.Context(), validFlow())
	require.NoError(t, err)

	other := validFlow()
	other.Name = "Second flow"
	second, err := flowService.Create(t.Context(), other)
	require.NoError(t, err)

	seedExecution(t, p, first.ID, "lead-1")
	seedExecution(t, p, second.ID, "lead-1")
	seedExecution(t, p, first.ID, "lead-2")

	executions, err := service.ListByLead(t.Context(), "lead-1")
	require.NoError(t, err)
	assert.Len(t, executions, 2)

	for _, execution := range executions {
		assert.Equal(t, "lead-1", execution.LeadID)
	}
}
