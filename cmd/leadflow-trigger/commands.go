package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/leadflowhq/leadflow/pkg/cmd"
	"github.com/leadflowhq/leadflow/pkg/config"
	"github.com/leadflowhq/leadflow/pkg/events"
	"github.com/leadflowhq/leadflow/pkg/flow"
	"github.com/leadflowhq/leadflow/pkg/log"
	"github.com/leadflowhq/leadflow/pkg/processor"
)

// PublishLeadEvent emits one synthetic lead event on the event bus, the same
// way the CRM application would.
func PublishLeadEvent(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("leadflow-trigger")

	eventType := events.EventType(command.String("event-type"))
	if !events.IsLeadEvent(eventType) {
		return fmt.Errorf("unsupported lead event type: %s", eventType)
	}

	eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	leadID := command.String("lead-id")

	event := events.NewLeadEvent(eventType, leadID, events.EventData{
		TagID:   command.String("tag-id"),
		StageID: command.String("stage-id"),
		Field:   command.String("field"),
		Value:   command.String("value"),
	})

	err := eventBus.Publish(ctx, leadID, event)
	if err != nil {
		return fmt.Errorf("failed to publish lead event: %w", err)
	}

	logger.InfoContext(ctx, "Published lead event",
		"event_type", eventType,
		"lead_id", leadID,
		"event_id", event.ID)

	return nil
}

// RunDateSweep evaluates every active date trigger against today, outside of
// the engine's cron schedule. Meant for backfills and debugging.
func RunDateSweep(ctx context.Context, command *cli.Command) error {
	logger := log.WithModule("leadflow-trigger")

	persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	registry := cmd.NewRegistry(logger, persistence, nil, config.DefaultEngineConfig().WhatsApp)
	proc := processor.NewProcessor(registry, logger)
	runner := flow.NewRunner(persistence, proc, logger)
	matcher := flow.NewMatcher(persistence, runner, logger)

	matcher.RunDateSweep(ctx)

	return nil
}
