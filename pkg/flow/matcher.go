package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leadflowhq/leadflow/pkg/events"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
)

// Matcher decides which active flows a domain event starts, and creates the
// executions. One active execution per (flow, lead) pair; the persistence
// layer enforces it.
type Matcher struct {
	persistence persistence.Persistence
	runner      *Runner
	logger      *slog.Logger
	now         func() time.Time
}

func NewMatcher(p persistence.Persistence, runner *Runner, logger *slog.Logger) *Matcher {
	return &Matcher{
		persistence: p,
		runner:      runner,
		logger:      logger.With("module", "trigger_matcher"),
		now:         time.Now,
	}
}

// HandleEvent evaluates a lead event against all active flows of the lead's
// organization. Fire-and-forget: failures are logged, never propagated back
// to the caller that mutated the lead.
func (m *Matcher) HandleEvent(ctx context.Context, event *events.LeadEvent) {
	if err := m.handleEvent(ctx, event); err != nil {
		m.logger.ErrorContext(ctx, "Trigger matching failed",
			"event_type", event.Type,
			"lead_id", event.LeadID,
			"error", err)
	}
}

func (m *Matcher) handleEvent(ctx context.Context, event *events.LeadEvent) error {
	lead, err := m.persistence.Leads().ByID(ctx, event.LeadID)
	if err != nil {
		return fmt.Errorf("failed to resolve lead %s: %w", event.LeadID, err)
	}

	flows, err := m.persistence.Flows().ActiveByOrganization(ctx, lead.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to load active flows: %w", err)
	}

	m.logger.DebugContext(ctx, "Matching event against flows",
		"event_type", event.Type,
		"lead_id", lead.ID,
		"flows_count", len(flows))

	matches := 0

	for _, f := range flows {
		for _, node := range f.TriggerNodes() {
			config, err := models.ParseTriggerConfig(node)
			if err != nil {
				m.logger.WarnContext(ctx, "Skipping invalid trigger node",
					"flow_id", f.ID, "node_id", node.ID, "error", err)

				continue
			}

			if !m.matches(config, event) {
				continue
			}

			matches++

			started, err := m.startExecution(ctx, f, node, lead)
			if err != nil {
				m.logger.ErrorContext(ctx, "Failed to start execution",
					"flow_id", f.ID, "lead_id", lead.ID, "error", err)

				continue
			}

			if started {
				m.runExecution(ctx, f.ID, lead.ID)
			}
		}
	}

	m.logger.InfoContext(ctx, "Completed trigger matching",
		"event_type", event.Type,
		"lead_id", lead.ID,
		"matches_found", matches)

	return nil
}

// matches evaluates the match predicate for one trigger config against one
// lead event.
func (m *Matcher) matches(config models.TriggerConfig, event *events.LeadEvent) bool {
	switch event.Type {
	case events.LeadCreatedEvent:
		return config.Kind == models.TriggerLeadCreated
	case events.TagAddedEvent:
		return config.Kind == models.TriggerTagAdded && config.TagID == event.Data.TagID
	case events.TagRemovedEvent:
		return config.Kind == models.TriggerTagRemoved && config.TagID == event.Data.TagID
	case events.StageChangedEvent:
		return config.Kind == models.TriggerStageChanged && config.StageID == event.Data.StageID
	case events.FieldChangedEvent:
		if config.Kind != models.TriggerFieldChanged || config.Field != event.Data.Field {
			return false
		}

		return config.Value == "" || config.Value == event.Data.Value
	default:
		return false
	}
}

// RunDateSweep starts executions for every active flow whose date trigger
// targets today, for every lead of the owning organization. Invoked daily by
// the scheduler.
func (m *Matcher) RunDateSweep(ctx context.Context) {
	now := m.now()

	flows, err := m.persistence.Flows().AllActive(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Date sweep failed to load flows", "error", err)

		return
	}

	for _, f := range flows {
		for _, node := range f.TriggerNodes() {
			config, err := models.ParseTriggerConfig(node)
			if err != nil || !config.DateMatches(now) {
				continue
			}

			m.sweepFlow(ctx, f, node)
		}
	}
}

func (m *Matcher) sweepFlow(ctx context.Context, f *models.Flow, node *models.FlowNode) {
	leads, err := m.persistence.Leads().ByOrganization(ctx, f.OrganizationID)
	if err != nil {
		m.logger.ErrorContext(ctx, "Date sweep failed to load leads",
			"flow_id", f.ID, "organization_id", f.OrganizationID, "error", err)

		return
	}

	started := 0

	for _, lead := range leads {
		ok, err := m.startExecution(ctx, f, node, lead)
		if err != nil {
			m.logger.ErrorContext(ctx, "Date sweep failed to start execution",
				"flow_id", f.ID, "lead_id", lead.ID, "error", err)

			continue
		}

		if ok {
			started++

			m.runExecution(ctx, f.ID, lead.ID)
		}
	}

	m.logger.InfoContext(ctx, "Date sweep processed flow",
		"flow_id", f.ID, "executions_started", started)
}

// startExecution creates an execution anchored at the trigger node. It
// reports false without error when an active execution already exists for
// the pair.
func (m *Matcher) startExecution(ctx context.Context, f *models.Flow, triggerNode *models.FlowNode, lead *models.Lead) (bool, error) {
	now := m.now()

	execution := &models.Execution{
		FlowID:         f.ID,
		LeadID:         lead.ID,
		OrganizationID: f.OrganizationID,
		CurrentNodeID:  triggerNode.ID,
		Status:         models.ExecutionStatusRunning,
		State:          models.ExecutionState{},
		CreatedBy:      f.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := m.persistence.Executions().Create(ctx, execution)
	if err != nil {
		return false, err
	}

	if !created {
		m.logger.DebugContext(ctx, "Active execution already exists",
			"flow_id", f.ID, "lead_id", lead.ID)

		return false, nil
	}

	m.logger.InfoContext(ctx, "Created execution",
		"execution_id", execution.ID, "flow_id", f.ID, "lead_id", lead.ID)

	return true, nil
}

func (m *Matcher) runExecution(ctx context.Context, flowID, leadID string) {
	if m.runner == nil {
		return
	}

	if err := m.runner.Run(ctx, flowID, leadID); err != nil {
		m.logger.ErrorContext(ctx, "Execution run failed",
			"flow_id", flowID, "lead_id", leadID, "error", err)
	}
}
