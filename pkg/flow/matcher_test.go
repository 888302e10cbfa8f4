package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/events"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

func newTestMatcher(t *testing.T) (persistence.Persistence, *Matcher, *recordingAction) {
	t.Helper()

	p, runner, action := newTestRunner(t)
	matcher := NewMatcher(p, runner, testLogger())

	return p, matcher, action
}

func TestMatcher_LeadCreatedStartsExecution(t *testing.T) {
	p, matcher, action := newTestMatcher(t)
	lead := saveTestLead(t, p)
	saveLinearFlow(t, p)

	event := events.NewLeadEvent(events.LeadCreatedEvent, lead.ID, events.EventData{})
	matcher.HandleEvent(t.Context(), &event)

	executions, err := p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
	assert.Equal(t, 1, action.count())
}

func TestMatcher_InactiveFlowNeverMatches(t *testing.T) {
	p, matcher, action := newTestMatcher(t)
	lead := saveTestLead(t, p)

	flow := saveLinearFlow(t, p)
	flow.Status = models.FlowStatusInactive
	require.NoError(t, p.Flows().Save(t.Context(), flow))

	event := events.NewLeadEvent(events.LeadCreatedEvent, lead.ID, events.EventData{})
	matcher.HandleEvent(t.Context(), &event)

	executions, err := p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Empty(t, executions)
	assert.Zero(t, action.count())
}

func TestMatcher_TagEventMatchesConfiguredTagOnly(t *testing.T) {
	p, matcher, _ := newTestMatcher(t)
	lead := saveTestLead(t, p)

	flow := saveLinearFlow(t, p)
	flow.Nodes[0].Config = map[string]any{"kind": "tag_added", "tag_id": "tag-vip"}
	require.NoError(t, p.Flows().Save(t.Context(), flow))

	event := events.NewLeadEvent(events.TagAddedEvent, lead.ID, events.EventData{TagID: "tag-cold"})
	matcher.HandleEvent(t.Context(), &event)

	executions, err := p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Empty(t, executions)

	event = events.NewLeadEvent(events.TagAddedEvent, lead.ID, events.EventData{TagID: "tag-vip"})
	matcher.HandleEvent(t.Context(), &event)

	executions, err = p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestMatcher_FieldChangedValueFilter(t *testing.T) {
	p, matcher, _ := newTestMatcher(t)
	lead := saveTestLead(t, p)

	flow := saveLinearFlow(t, p)
	flow.Nodes[0].Config = map[string]any{"kind": "field_changed", "field": "city", "value": "Lisbon"}
	require.NoError(t, p.Flows().Save(t.Context(), flow))

	event := events.NewLeadEvent(events.FieldChangedEvent, lead.ID, events.EventData{Field: "city", Value: "Porto"})
	matcher.HandleEvent(t.Context(), &event)

	executions, err := p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Empty(t, executions)

	event = events.NewLeadEvent(events.FieldChangedEvent, lead.ID, events.EventData{Field: "city", Value: "Lisbon"})
	matcher.HandleEvent(t.Context(), &event)

	executions, err = p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestMatcher_FieldChangedWithoutValueMatchesAnyChange(t *testing.T) {
	p, matcher, _ := newTestMatcher(t)
	lead := saveTestLead(t, p)

	flow := saveLinearFlow(t, p)
	flow.Nodes[0].Config = map[string]any{"kind": "field_changed", "field": "city"}
	require.NoError(t, p.Flows().Save(t.Context(), flow))

	event := events.NewLeadEvent(events.FieldChangedEvent, lead.ID, events.EventData{Field: "city", Value: "Porto"})
	matcher.HandleEvent(t.Context(), &event)

	executions, err := p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestMatcher_DuplicateActiveExecutionSuppressed(t *testing.T) {
	p, matcher, _ := newTestMatcher(t)
	lead := saveTestLead(t, p)
	flow := saveLinearFlow(t, p)

	// Park an active execution on the pair.
	waiting := createRunningExecution(t, p, flow.ID, lead.ID, "t1")
	waiting.Status = models.ExecutionStatusWaiting
	future := time.Now().Add(24 * time.Hour)
	waiting.NextExecutionAt = &future
	require.NoError(t, p.Executions().Save(t.Context(), waiting))

	event := events.NewLeadEvent(events.LeadCreatedEvent, lead.ID, events.EventData{})
	matcher.HandleEvent(t.Context(), &event)

	executions, err := p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)
}

func TestMatcher_CompletedExecutionAllowsRetrigger(t *testing.T) {
	p, matcher, _ := newTestMatcher(t)
	lead := saveTestLead(t, p)
	saveLinearFlow(t, p)

	event := events.NewLeadEvent(events.LeadCreatedEvent, lead.ID, events.EventData{})
	matcher.HandleEvent(t.Context(), &event)
	matcher.HandleEvent(t.Context(), &event)

	// First run completed, so the second event starts a fresh execution.
	executions, err := p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}

func TestMatcher_OtherOrganizationFlowsIgnored(t *testing.T) {
	p, matcher, _ := newTestMatcher(t)
	lead := saveTestLead(t, p)

	flow := saveLinearFlow(t, p)
	flow.OrganizationID = "org-2"
	require.NoError(t, p.Flows().Save(t.Context(), flow))

	event := events.NewLeadEvent(events.LeadCreatedEvent, lead.ID, events.EventData{})
	matcher.HandleEvent(t.Context(), &event)

	executions, err := p.Executions().ByLead(t.Context(), lead.ID)
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestMatcher_UnknownLeadIsLoggedNotFatal(t *testing.T) {
	_, matcher, _ := newTestMatcher(t)

	event := events.NewLeadEvent(events.LeadCreatedEvent, "ghost-lead", events.EventData{})

	// Must not panic or propagate.
	matcher.HandleEvent(t.Context(), &event)
}

func TestMatcher_RunDateSweep(t *testing.T) {
	p, matcher, _ := newTestMatcher(t)

	today := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	matcher.now = func() time.Time { return today }

	flow := saveLinearFlow(t, p)
	flow.Nodes[0].Config = map[string]any{"kind": "date_trigger", "date": "2026-08-31"}
	require.NoError(t, p.Flows().Save(t.Context(), flow))

	for _, id := range []string{"lead-1", "lead-2"} {
		require.NoError(t, p.Leads().Save(t.Context(), &models.Lead{
			ID:             id,
			OrganizationID: "org-1",
			Phone:          "+5511988887777",
		}))
	}

	matcher.RunDateSweep(t.Context())

	for _, id := range []string{"lead-1", "lead-2"} {
		executions, err := p.Executions().ByLead(t.Context(), id)
		require.NoError(t, err)
		assert.Len(t, executions, 1, "lead %s", id)
	}
}

func TestMatcher_RunDateSweepSkipsOtherDays(t *testing.T) {
	p, matcher, _ := newTestMatcher(t)

	matcher.now = func() time.Time { return time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC) }

	flow := saveLinearFlow(t, p)
	flow.Nodes[0].Config = map[string]any{"kind": "date_trigger", "date": "2026-08-31"}
	require.NoError(t, p.Flows().Save(t.Context(), flow))
	saveTestLead(t, p)

	matcher.RunDateSweep(t.Context())

	executions, err := p.Executions().ByLead(t.Context(), "lead-1")
	require.NoError(t, err)
	assert.Empty(t, executions)
}
