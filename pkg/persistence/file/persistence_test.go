package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

func newExecution(flowID, leadID string, status models.ExecutionStatus) *models.Execution {
	return &models.Execution{
		FlowID:         flowID,
		LeadID:         leadID,
		OrganizationID: "org-1",
		CurrentNodeID:  "t1",
		Status:         status,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}

func TestPersistence_HealthCheck(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.HealthCheck(t.Context()))
	require.NoError(t, p.Close(t.Context()))
}

func TestFlowRepository_SaveAndByID(t *testing.T) {
	p := NewPersistence(t.TempDir())

	flow := &models.Flow{
		ID:             "flow-1",
		OrganizationID: "org-1",
		Name:           "Welcome flow",
		Status:         models.FlowStatusActive,
	}
	require.NoError(t, p.Flows().Save(t.Context(), flow))

	fetched, err := p.Flows().ByID(t.Context(), "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "Welcome flow", fetched.Name)
}

func TestFlowRepository_ByIDNotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.Flows().ByID(t.Context(), "missing")
	assert.True(t, persistence.IsFlowNotFound(err))
}

func TestFlowRepository_DeleteIsSoft(t *testing.T) {
	p := NewPersistence(t.TempDir())

	flow := &models.Flow{ID: "flow-1", OrganizationID: "org-1", Name: "Welcome flow", Status: models.FlowStatusActive}
	require.NoError(t, p.Flows().Save(t.Context(), flow))
	require.NoError(t, p.Flows().Delete(t.Context(), "flow-1"))

	_, err := p.Flows().ByID(t.Context(), "flow-1")
	assert.True(t, persistence.IsFlowNotFound(err))

	all, err := p.Flows().All(t.Context())
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.Error(t, p.Flows().Delete(t.Context(), "flow-1"))
}

func TestFlowRepository_AllActive(t *testing.T) {
	p := NewPersistence(t.TempDir())

	require.NoError(t, p.Flows().Save(t.Context(), &models.Flow{
		ID: "flow-1", OrganizationID: "org-1", Name: "Active flow", Status: models.FlowStatusActive,
	}))
	require.NoError(t, p.Flows().Save(t.Context(), &models.Flow{
		ID: "flow-2", OrganizationID: "org-1", Name: "Draft flow", Status: models.FlowStatusInactive,
	}))

	active, err := p.Flows().AllActive(t.Context())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "flow-1", active[0].ID)
}

func TestExecutionRepository_CreateAssignsID(t *testing.T) {
	p := NewPersistence(t.TempDir())

	execution := newExecution("flow-1", "lead-1", models.ExecutionStatusRunning)
	created, err := p.Executions().Create(t.Context(), execution)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, execution.ID)
}

func TestExecutionRepository_CreateRejectsSecondActive(t *testing.T) {
	p := NewPersistence(t.TempDir())

	created, err := p.Executions().Create(t.Context(), newExecution("flow-1", "lead-1", models.ExecutionStatusRunning))
	require.NoError(t, err)
	require.True(t, created)

	created, err = p.Executions().Create(t.Context(), newExecution("flow-1", "lead-1", models.ExecutionStatusWaiting))
	require.NoError(t, err)
	assert.False(t, created)

	// Other leads and flows are unaffected.
	created, err = p.Executions().Create(t.Context(), newExecution("flow-1", "lead-2", models.ExecutionStatusRunning))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = p.Executions().Create(t.Context(), newExecution("flow-2", "lead-1", models.ExecutionStatusRunning))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestExecutionRepository_CreateAllowsAfterTerminal(t *testing.T) {
	p := NewPersistence(t.TempDir())

	first := newExecution("flow-1", "lead-1", models.ExecutionStatusRunning)
	created, err := p.Executions().Create(t.Context(), first)
	require.NoError(t, err)
	require.True(t, created)

	first.Status = models.ExecutionStatusCompleted
	require.NoError(t, p.Executions().Save(t.Context(), first))

	created, err = p.Executions().Create(t.Context(), newExecution("flow-1", "lead-1", models.ExecutionStatusRunning))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestExecutionRepository_CreateValidatesState(t *testing.T) {
	p := NewPersistence(t.TempDir())

	execution := newExecution("flow-1", "lead-1", models.ExecutionStatusRunning)
	execution.State.Depth = models.MaxExecutionDepth + 1

	_, err := p.Executions().Create(t.Context(), execution)
	assert.ErrorIs(t, err, persistence.ErrInvalidExecutionState)
}

func TestExecutionRepository_Active(t *testing.T) {
	p := NewPersistence(t.TempDir())

	execution := newExecution("flow-1", "lead-1", models.ExecutionStatusWaiting)
	created, err := p.Executions().Create(t.Context(), execution)
	require.NoError(t, err)
	require.True(t, created)

	active, err := p.Executions().Active(t.Context(), "flow-1", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, execution.ID, active.ID)

	_, err = p.Executions().Active(t.Context(), "flow-1", "lead-2")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_SaveNotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	execution := newExecution("flow-1", "lead-1", models.ExecutionStatusRunning)
	execution.ID = "never-created"

	err := p.Executions().Save(t.Context(), execution)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_Due(t *testing.T) {
	p := NewPersistence(t.TempDir())
	now := time.Now().UTC()

	overdue := newExecution("flow-1", "lead-1", models.ExecutionStatusWaiting)
	past := now.Add(-2 * time.Hour)
	overdue.NextExecutionAt = &past

	later := newExecution("flow-1", "lead-2", models.ExecutionStatusWaiting)
	future := now.Add(2 * time.Hour)
	later.NextExecutionAt = &future

	running := newExecution("flow-1", "lead-3", models.ExecutionStatusRunning)

	for _, execution := range []*models.Execution{overdue, later, running} {
		created, err := p.Executions().Create(t.Context(), execution)
		require.NoError(t, err)
		require.True(t, created)
	}

	due, err := p.Executions().Due(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, overdue.ID, due[0].ID)
}

func TestExecutionRepository_DueSortsByResumeTime(t *testing.T) {
	p := NewPersistence(t.TempDir())
	now := time.Now().UTC()

	second := newExecution("flow-1", "lead-2", models.ExecutionStatusWaiting)
	secondAt := now.Add(-1 * time.Hour)
	second.NextExecutionAt = &secondAt

	first := newExecution("flow-1", "lead-1", models.ExecutionStatusWaiting)
	firstAt := now.Add(-3 * time.Hour)
	first.NextExecutionAt = &firstAt

	for _, execution := range []*models.Execution{second, first} {
		created, err := p.Executions().Create(t.Context(), execution)
		require.NoError(t, err)
		require.True(t, created)
	}

	due, err := p.Executions().Due(t.Context(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, first.ID, due[0].ID)
	assert.Equal(t, second.ID, due[1].ID)
}

func TestLeadRepository_SaveAndByID(t *testing.T) {
	p := NewPersistence(t.TempDir())

	lead := &models.Lead{
		ID:             "lead-1",
		OrganizationID: "org-1",
		Name:           "Ada",
		Phone:          "+5511999999999",
		Tags:           []string{"tag-vip"},
	}
	require.NoError(t, p.Leads().Save(t.Context(), lead))

	fetched, err := p.Leads().ByID(t.Context(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", fetched.Name)
	assert.Equal(t, []string{"tag-vip"}, fetched.Tags)

	_, err = p.Leads().ByID(t.Context(), "missing")
	assert.True(t, persistence.IsLeadNotFound(err))
}
