package scheduler

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/flow"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
	"github.com/leadflowhq/leadflow/pkg/persistence/file"
	"github.com/leadflowhq/leadflow/pkg/processor"
	"github.com/leadflowhq/leadflow/pkg/protocol"
	"github.com/leadflowhq/leadflow/pkg/registry"
)

type countingAction struct {
	mu    sync.Mutex
	calls int
}

func (a *countingAction) ID() string { return "record" }

func (a *countingAction) Create(config map[string]any) (protocol.Action, error) {
	return protocol.ActionFunc(func(ctx context.Context, actionCtx protocol.ActionContext) (any, error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.calls++

		return nil, nil
	}), nil
}

func (a *countingAction) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.calls
}

func newTestScheduler(t *testing.T, opts ...Option) (persistence.Persistence, *Scheduler, *countingAction) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	action := &countingAction{}
	reg := registry.NewRegistry(logger)
	reg.RegisterAction(action)

	runner := flow.NewRunner(p, processor.NewProcessor(reg, logger), logger)
	matcher := flow.NewMatcher(p, runner, logger)

	return p, NewScheduler(p, runner, matcher, logger, opts...), action
}

func seedWaitingExecution(t *testing.T, p persistence.Persistence, resumeAt time.Time) *models.Execution {
	t.Helper()

	require.NoError(t, p.Leads().Save(t.Context(), &models.Lead{
		ID:             "lead-1",
		OrganizationID: "org-1",
		Name:           "Ada",
		Phone:          "+5511999999999",
	}))

	require.NoError(t, p.Flows().Save(t.Context(), &models.Flow{
		ID:             "flow-1",
		OrganizationID: "org-1",
		Name:           "Follow up flow",
		Status:         models.FlowStatusActive,
		Nodes: []*models.FlowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Enabled: true, Config: map[string]any{"kind": "lead_created"}},
			{ID: "a1", Type: models.NodeTypeAction, ActionType: "record", Enabled: true},
			{ID: "end", Type: models.NodeTypeEnd, Enabled: true},
		},
		Edges: []*models.FlowEdge{
			{ID: "e1", Source: "t1", Target: "a1"},
			{ID: "e2", Source: "a1", Target: "end"},
		},
	}))

	execution := &models.Execution{
		FlowID:          "flow-1",
		LeadID:          "lead-1",
		OrganizationID:  "org-1",
		CurrentNodeID:   "a1",
		Status:          models.ExecutionStatusWaiting,
		NextExecutionAt: &resumeAt,
		State:           models.ExecutionState{Depth: 1},
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	created, err := p.Executions().Create(t.Context(), execution)
	require.NoError(t, err)
	require.True(t, created)

	return execution
}

func TestProcessDueExecutions_ResumesElapsedWait(t *testing.T) {
	p, scheduler, action := newTestScheduler(t)
	execution := seedWaitingExecution(t, p, time.Now().UTC().Add(-time.Minute))

	scheduler.ProcessDueExecutions(t.Context())

	resumed, err := p.Executions().ByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.Equal(t, 1, action.count())
}

func TestProcessDueExecutions_SkipsFutureWait(t *testing.T) {
	p, scheduler, action := newTestScheduler(t)
	execution := seedWaitingExecution(t, p, time.Now().UTC().Add(time.Hour))

	scheduler.ProcessDueExecutions(t.Context())

	parked, err := p.Executions().ByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusWaiting, parked.Status)
	assert.Zero(t, action.count())
}

func TestScheduler_StartProcessesImmediately(t *testing.T) {
	p, scheduler, _ := newTestScheduler(t, WithInterval(time.Hour))
	execution := seedWaitingExecution(t, p, time.Now().UTC().Add(-time.Minute))

	require.NoError(t, scheduler.Start(t.Context()))

	defer func() {
		require.NoError(t, scheduler.Stop(t.Context()))
	}()

	resumed, err := p.Executions().ByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
}

func TestScheduler_StartIsIdempotent(t *testing.T) {
	_, scheduler, _ := newTestScheduler(t, WithInterval(time.Hour))

	require.NoError(t, scheduler.Start(t.Context()))
	require.NoError(t, scheduler.Start(t.Context()))
	require.NoError(t, scheduler.Stop(t.Context()))
	require.NoError(t, scheduler.Stop(t.Context()))
}

func TestScheduler_StartRejectsBadSweepSpec(t *testing.T) {
	_, scheduler, _ := newTestScheduler(t, WithSweepSpec("not a cron spec"))

	err := scheduler.Start(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cron spec")
}
