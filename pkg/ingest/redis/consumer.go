// Package redis consumes lead events that the CRM application publishes to a
// Redis stream and hands them to the trigger matcher.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/leadflowhq/leadflow/pkg/events"
	"github.com/leadflowhq/leadflow/pkg/flow"
)

// PayloadField is the stream entry field carrying the JSON-encoded lead event.
const PayloadField = "payload"

const readBlock = 1 * time.Second

type Consumer struct {
	Stream   string
	Group    string
	Consumer string

	client  redis.UniversalClient
	matcher *flow.Matcher
	logger  *slog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewConsumer(redisURL, stream, group, consumer string, matcher *flow.Matcher, logger *slog.Logger) (*Consumer, error) {
	if stream == "" {
		return nil, errors.New("ingest stream name is required")
	}

	if group == "" {
		return nil, errors.New("ingest consumer group is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if consumer == "" {
		consumer = "engine-1"
	}

	return &Consumer{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		client:   redis.NewClient(opts),
		matcher:  matcher,
		stopCh:   make(chan struct{}),
		logger: logger.With(
			"module", "redis_ingest",
			"stream", stream,
			"group", group,
		),
	}, nil
}

// Start creates the consumer group when missing and begins reading entries
// until Stop is called or the context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Starting lead event consumer")

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.client.Ping(pingCtx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	err = c.client.XGroupCreateMkStream(ctx, c.Stream, c.Group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.wg.Add(1)

	go c.consume(ctx)

	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Lead event consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping lead event consumer")

			return
		default:
			err := c.readBatch(ctx)
			if err != nil {
				c.logger.ErrorContext(ctx, "Error reading lead events", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) readBatch(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.Group,
		Consumer: c.Consumer,
		Streams:  []string{c.Stream, ">"},
		Count:    10,
		Block:    readBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			c.handleMessage(ctx, message)
		}
	}

	return nil
}

// handleMessage always acks: a malformed entry would otherwise be redelivered
// forever.
func (c *Consumer) handleMessage(ctx context.Context, message redis.XMessage) {
	defer func() {
		err := c.client.XAck(ctx, c.Stream, c.Group, message.ID).Err()
		if err != nil {
			c.logger.ErrorContext(ctx, "Failed to ack stream entry", "id", message.ID, "error", err)
		}
	}()

	payload, ok := message.Values[PayloadField].(string)
	if !ok {
		c.logger.WarnContext(ctx, "Stream entry has no payload field", "id", message.ID)

		return
	}

	var event events.LeadEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		c.logger.WarnContext(ctx, "Failed to decode lead event", "id", message.ID, "error", err)

		return
	}

	if !events.IsLeadEvent(event.Type) {
		c.logger.WarnContext(ctx, "Ignoring non-lead event", "id", message.ID, "type", event.Type)

		return
	}

	c.matcher.HandleEvent(ctx, &event)
}

// Stop shuts the consumer down and closes the Redis connection.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Stopping lead event consumer")

	close(c.stopCh)
	c.wg.Wait()

	err := c.client.Close()
	if err != nil {
		c.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
	}

	return nil
}
