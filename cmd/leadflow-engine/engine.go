package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadflowhq/leadflow/pkg/cmd"
	"github.com/leadflowhq/leadflow/pkg/config"
	"github.com/leadflowhq/leadflow/pkg/eventbus"
	"github.com/leadflowhq/leadflow/pkg/events"
	"github.com/leadflowhq/leadflow/pkg/flow"
	redisingest "github.com/leadflowhq/leadflow/pkg/ingest/redis"
	"github.com/leadflowhq/leadflow/pkg/persistence"
	"github.com/leadflowhq/leadflow/pkg/processor"
	"github.com/leadflowhq/leadflow/pkg/scheduler"
)

// EngineManager wires the matcher, runner, scheduler and event ingestion
// together and keeps them running until shutdown.
type EngineManager struct {
	id          string
	config      config.EngineConfig
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus

	matcher   *flow.Matcher
	scheduler *scheduler.Scheduler
	consumer  *redisingest.Consumer
}

func NewEngineManager(
	id string,
	engineConfig config.EngineConfig,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *EngineManager {
	registry := cmd.NewRegistry(logger, p, eventBus, engineConfig.WhatsApp)
	proc := processor.NewProcessor(registry, logger)
	runner := flow.NewRunner(p, proc, logger, flow.WithPublisher(eventBus))
	matcher := flow.NewMatcher(p, runner, logger)

	sched := scheduler.NewScheduler(p, runner, matcher, logger,
		scheduler.WithInterval(engineConfig.Scheduler.Interval),
		scheduler.WithSweepSpec(engineConfig.Scheduler.SweepCron),
	)

	return &EngineManager{
		id:          id,
		config:      engineConfig,
		logger:      logger.With("module", "leadflow-engine"),
		persistence: p,
		eventBus:    eventBus,
		matcher:     matcher,
		scheduler:   sched,
	}
}

func (e *EngineManager) Start(ctx context.Context) error {
	e.logger.InfoContext(ctx, "Starting engine manager", "engine_id", e.id)

	leadEventTypes := []events.EventType{
		events.LeadCreatedEvent,
		events.TagAddedEvent,
		events.TagRemovedEvent,
		events.StageChangedEvent,
		events.FieldChangedEvent,
	}

	for _, eventType := range leadEventTypes {
		err := e.eventBus.Handle(eventType, e.handleLeadEvent)
		if err != nil {
			return err
		}
	}

	err := e.eventBus.Subscribe(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = e.scheduler.Start(ctx)
	if err != nil {
		return err
	}

	if e.config.Ingest.RedisURL != "" {
		e.consumer, err = redisingest.NewConsumer(
			e.config.Ingest.RedisURL,
			e.config.Ingest.Stream,
			e.config.Ingest.Group,
			e.config.Ingest.Consumer,
			e.matcher,
			e.logger,
		)
		if err != nil {
			return err
		}

		err = e.consumer.Start(ctx)
		if err != nil {
			return err
		}
	}

	e.logger.InfoContext(ctx, "Engine started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	e.logger.InfoContext(ctx, "Shutting down engine...")

	return e.shutdown(ctx)
}

func (e *EngineManager) handleLeadEvent(ctx context.Context, event any) error {
	leadEvent, ok := event.(*events.LeadEvent)
	if !ok {
		e.logger.ErrorContext(ctx, "Invalid event type for lead event")

		return nil
	}

	e.matcher.HandleEvent(ctx, leadEvent)

	return nil
}

func (e *EngineManager) shutdown(ctx context.Context) error {
	if e.consumer != nil {
		err := e.consumer.Stop(ctx)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to stop ingest consumer", "error", err)
		}
	}

	return e.scheduler.Stop(ctx)
}
