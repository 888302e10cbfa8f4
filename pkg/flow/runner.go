package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leadflowhq/leadflow/pkg/eventbus"
	"github.com/leadflowhq/leadflow/pkg/events"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/otelhelper"
	"github.com/leadflowhq/leadflow/pkg/persistence"
	"github.com/leadflowhq/leadflow/pkg/processor"
)

// Runner advances executions one node at a time, persisting every
// transition. It is safe to invoke redundantly: without an active execution
// for the pair, Run is a no-op.
type Runner struct {
	persistence persistence.Persistence
	processor   processor.NodeProcessor
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

type RunnerOption func(*Runner)

// WithPublisher makes the runner emit execution lifecycle events.
func WithPublisher(publisher eventbus.EventPublisher) RunnerOption {
	return func(r *Runner) {
		r.publisher = publisher
	}
}

// WithTracer enables tracing of execution runs.
func WithTracer(tracer trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

func NewRunner(p persistence.Persistence, proc processor.NodeProcessor, logger *slog.Logger, opts ...RunnerOption) *Runner {
	runner := &Runner{
		persistence: p,
		processor:   proc,
		logger:      logger.With("module", "flow_runner"),
		tracer:      otel.Tracer("flow_runner"),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run resumes the active execution for (flow, lead) and advances it until it
// completes, suspends on a wait, or errors. Node-level failures are persisted
// on the execution, never returned; the returned error covers infrastructure
// failures only.
func (r *Runner) Run(ctx context.Context, flowID, leadID string) error {
	ctx, span := r.tracer.Start(ctx, "flow.run", trace.WithAttributes(
		attribute.String(otelhelper.FlowIDKey, flowID),
		attribute.String(otelhelper.LeadIDKey, leadID),
	))
	defer span.End()

	err := r.run(ctx, span, flowID, leadID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (r *Runner) run(ctx context.Context, span trace.Span, flowID, leadID string) error {
	logger := r.logger.With("flow_id", flowID, "lead_id", leadID)

	execution, err := r.persistence.Executions().Active(ctx, flowID, leadID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			// Already finished, or never started.
			return nil
		}

		return fmt.Errorf("failed to load active execution: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))
	logger = logger.With("execution_id", execution.ID)

	if execution.Status == models.ExecutionStatusWaiting {
		if !execution.Due(r.now()) {
			logger.DebugContext(ctx, "Execution is waiting and not due yet")

			return nil
		}

		execution.Status = models.ExecutionStatusRunning
		execution.NextExecutionAt = nil

		if err := r.save(ctx, execution); err != nil {
			return err
		}
	}

	flow, err := r.persistence.Flows().ByID(ctx, flowID)
	if err != nil {
		if persistence.IsFlowNotFound(err) {
			return r.markError(ctx, logger, execution, "flow no longer exists")
		}

		return fmt.Errorf("failed to load flow: %w", err)
	}

	lead, err := r.persistence.Leads().ByID(ctx, leadID)
	if err != nil {
		if persistence.IsLeadNotFound(err) {
			return r.markError(ctx, logger, execution, "lead no longer exists")
		}

		return fmt.Errorf("failed to load lead: %w", err)
	}

	for {
		node, found := flow.NodeByID(execution.CurrentNodeID)
		if !found {
			return r.markError(ctx, logger, execution,
				fmt.Sprintf("current node %s not found in flow graph", execution.CurrentNodeID))
		}

		logger.DebugContext(ctx, "Processing node", "node_id", node.ID, "node_type", node.Type)

		result, err := r.processor.ProcessNode(ctx, node, lead, execution)
		if err != nil {
			return r.markError(ctx, logger, execution, err.Error())
		}

		if node.IsEnd() {
			return r.complete(ctx, logger, execution, node)
		}

		nextNodeID, found := NextNodeID(node.ID, flow.Edges, result.Branch)
		if !found {
			return r.complete(ctx, logger, execution, node)
		}

		// Advance. The depth increment and the depth check live in the same
		// transition write, so the bound cannot be outrun by concurrent
		// re-entries. Wait nodes advance too: the execution suspends parked
		// on the successor, ready to resume there.
		now := r.now()
		execution.CurrentNodeID = nextNodeID
		execution.State.Depth++
		execution.State.LastProcessedNode = node.ID
		execution.State.LastProcessedAt = &now

		if execution.State.Depth >= models.MaxExecutionDepth {
			return r.markError(ctx, logger, execution,
				fmt.Sprintf("execution depth limit of %d reached", models.MaxExecutionDepth))
		}

		if result.WaitUntil != nil {
			return r.markWaiting(ctx, logger, execution, *result.WaitUntil)
		}

		if err := r.save(ctx, execution); err != nil {
			return err
		}
	}
}

func (r *Runner) markWaiting(ctx context.Context, logger *slog.Logger, execution *models.Execution, waitUntil time.Time) error {
	execution.Status = models.ExecutionStatusWaiting
	execution.NextExecutionAt = &waitUntil

	if err := r.save(ctx, execution); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Execution is waiting", "next_execution_at", waitUntil)

	return nil
}

func (r *Runner) complete(ctx context.Context, logger *slog.Logger, execution *models.Execution, node *models.FlowNode) error {
	now := r.now()
	execution.Status = models.ExecutionStatusCompleted
	execution.CompletedAt = &now
	execution.State.LastProcessedNode = node.ID
	execution.State.LastProcessedAt = &now

	if err := r.save(ctx, execution); err != nil {
		return err
	}

	logger.InfoContext(ctx, "Execution completed")

	r.publish(ctx, execution.LeadID, events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.OrganizationID),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		LeadID:      execution.LeadID,
	})

	return nil
}

func (r *Runner) markError(ctx context.Context, logger *slog.Logger, execution *models.Execution, message string) error {
	execution.Status = models.ExecutionStatusError
	execution.State.LastError = message

	if err := r.save(ctx, execution); err != nil {
		return err
	}

	logger.ErrorContext(ctx, "Execution failed", "error", message)

	r.publish(ctx, execution.LeadID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.OrganizationID),
		ExecutionID: execution.ID,
		FlowID:      execution.FlowID,
		LeadID:      execution.LeadID,
		Error:       message,
	})

	return nil
}

func (r *Runner) save(ctx context.Context, execution *models.Execution) error {
	execution.UpdatedAt = r.now()

	if err := r.persistence.Executions().Save(ctx, execution); err != nil {
		return fmt.Errorf("failed to persist execution transition: %w", err)
	}

	return nil
}

func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	if err := r.publisher.Publish(ctx, key, event); err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish execution event",
			"event_type", event.GetType(), "error", err)
	}
}
