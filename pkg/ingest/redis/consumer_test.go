package redis

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/events"
	"github.com/leadflowhq/leadflow/pkg/flow"
	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/persistence"
	"github.com/leadflowhq/leadflow/pkg/persistence/file"
	"github.com/leadflowhq/leadflow/pkg/processor"
	"github.com/leadflowhq/leadflow/pkg/registry"
)

const testStream = "leadflow:events"

func newTestConsumer(t *testing.T) (*miniredis.Miniredis, *Consumer, persistence.Persistence) {
	t.Helper()

	server := miniredis.RunT(t)

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	runner := flow.NewRunner(p, processor.NewProcessor(registry.NewRegistry(logger), logger), logger)
	matcher := flow.NewMatcher(p, runner, logger)

	consumer, err := NewConsumer("redis://"+server.Addr(), testStream, "leadflow-engine", "engine-test", matcher, logger)
	require.NoError(t, err)

	return server, consumer, p
}

func seedWelcomeFlow(t *testing.T, p persistence.Persistence) {
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
		Name:           "Welcome flow",
		Status:         models.FlowStatusActive,
		Nodes: []*models.FlowNode{
			{ID: "t1", Type: models.NodeTypeTrigger, Enabled: true, Config: map[string]any{"kind": "lead_created"}},
			{ID: "end", Type: models.NodeTypeEnd, Enabled: true},
		},
		Edges: []*models.FlowEdge{
			{ID: "e1", Source: "t1", Target: "end"},
		},
	}))
}

func publishEvent(t *testing.T, addr string, event events.LeadEvent) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})

	defer func() {
		_ = client.Close()
	}()

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, client.XAdd(t.Context(), &redis.XAddArgs{
		Stream: testStream,
		Values: map[string]any{PayloadField: string(payload)},
	}).Err())
}

func TestNewConsumer_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_, err := NewConsumer("redis://localhost:6379", "", "group", "c1", nil, logger)
	require.Error(t, err)

	_, err = NewConsumer("redis://localhost:6379", "stream", "", "c1", nil, logger)
	require.Error(t, err)

	_, err = NewConsumer("not a url", "stream", "group", "c1", nil, logger)
	require.Error(t, err)
}

func TestConsumer_StartsExecutionFromStreamEvent(t *testing.T) {
	server, consumer, p := newTestConsumer(t)
	seedWelcomeFlow(t, p)

	require.NoError(t, consumer.Start(t.Context()))

	defer func() {
		require.NoError(t, consumer.Stop(t.Context()))
	}()

	publishEvent(t, server.Addr(), events.NewLeadEvent(events.LeadCreatedEvent, "lead-1", events.EventData{}))

	require.Eventually(t, func() bool {
		executions, err := p.Executions().ByLead(t.Context(), "lead-1")

		return err == nil && len(executions) == 1
	}, 5*time.Second, 50*time.Millisecond)

	executions, err := p.Executions().ByLead(t.Context(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, executions[0].Status)
	assert.Equal(t, "flow-1", executions[0].FlowID)
}

func TestConsumer_IgnoresMalformedEntries(t *testing.T) {
	server, consumer, p := newTestConsumer(t)
	seedWelcomeFlow(t, p)

	require.NoError(t, consumer.Start(t.Context()))

	defer func() {
		require.NoError(t, consumer.Stop(t.Context()))
	}()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	defer func() {
		_ = client.Close()
	}()

	// Entries without a payload field or with junk payloads are acked and
	// skipped, never retried.
	require.NoError(t, client.XAdd(t.Context(), &redis.XAddArgs{
		Stream: testStream,
		Values: map[string]any{"other": "field"},
	}).Err())
	require.NoError(t, client.XAdd(t.Context(), &redis.XAddArgs{
		Stream: testStream,
		Values: map[string]any{PayloadField: "{not json"},
	}).Err())

	publishEvent(t, server.Addr(), events.NewLeadEvent(events.LeadCreatedEvent, "lead-1", events.EventData{}))

	require.Eventually(t, func() bool {
		executions, err := p.Executions().ByLead(t.Context(), "lead-1")

		return err == nil && len(executions) == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestConsumer_IgnoresNonLeadEvents(t *testing.T) {
	server, consumer, p := newTestConsumer(t)
	seedWelcomeFlow(t, p)

	require.NoError(t, consumer.Start(t.Context()))

	defer func() {
		require.NoError(t, consumer.Stop(t.Context()))
	}()

	event := events.NewLeadEvent(events.LeadCreatedEvent, "lead-1", events.EventData{})
	event.Type = events.ExecutionCompletedEvent
	publishEvent(t, server.Addr(), event)

	time.Sleep(200 * time.Millisecond)

	executions, err := p.Executions().ByLead(t.Context(), "lead-1")
	require.NoError(t, err)
	assert.Empty(t, executions)
}
