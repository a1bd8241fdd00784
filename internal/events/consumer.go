package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamClient is the subset of *redis.Client the consumer needs.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// Envelope is the JSON document the outbox relay stores in the "data" field of a stream entry.
type Envelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     string          `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, env Envelope) error

type ConsumerConfig struct {
	Stream string
	Group  string
	Name   string
	Count  int64
	Block  time.Duration
}

// Consumer reads the order stream through a consumer group and dispatches entries by event
// type. Entries without a handler are acknowledged and dropped; entries whose handler fails
// stay pending for redelivery.
type Consumer struct {
	redis    StreamClient
	cfg      ConsumerConfig
	handlers map[EventType]HandlerFunc
	logger   *slog.Logger
}

func NewConsumer(client StreamClient, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	if cfg.Group == "" {
		cfg.Group = "dampfi-consumer-group"
	}
	if cfg.Name == "" {
		cfg.Name = "consumer-1"
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	return &Consumer{
		redis:    client,
		cfg:      cfg,
		handlers: make(map[EventType]HandlerFunc),
		logger:   logger.With("component", "event_consumer"),
	}
}

func (c *Consumer) On(eventType EventType, h HandlerFunc) {
	c.handlers[eventType] = h
}

// EnsureGroup creates the stream and consumer group if they do not exist yet.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	c.logger.Info("starting consumer", "stream", c.cfg.Stream, "group", c.cfg.Group)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := c.ReadOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

// ReadOnce reads one batch and returns how many entries were acknowledged.
func (c *Consumer) ReadOnce(ctx context.Context) (int, error) {
	streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Name,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.Count,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := c.processMessage(ctx, message); err != nil {
				c.logger.Error("failed to process message", "id", message.ID, "error", err)
				continue
			}
			if err := c.redis.XAck(ctx, c.cfg.Stream, c.cfg.Group, message.ID).Err(); err != nil {
				c.logger.Error("failed to acknowledge message", "id", message.ID, "error", err)
				continue
			}
			acked++
		}
	}
	return acked, nil
}

func (c *Consumer) processMessage(ctx context.Context, msg redis.XMessage) error {
	eventType, _ := msg.Values["event_type"].(string)
	handler, ok := c.handlers[EventType(eventType)]
	if !ok {
		return nil
	}

	data, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("missing data in %s event", eventType)
	}

	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return fmt.Errorf("failed to parse envelope: %w", err)
	}
	return handler(ctx, env)
}

// LogStockChanges reports products whose availability changed since the previous extraction.
func LogStockChanges(logger *slog.Logger) HandlerFunc {
	return func(ctx context.Context, env Envelope) error {
		var p ProductSnapshotUpdatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode snapshot payload: %w", err)
		}
		if !p.StockChanged() {
			return nil
		}
		logger.Info("stock status changed",
			"product_id", p.ProductID,
			"url", p.ProductURL,
			"name", p.Name,
			"previous", p.PreviousStockStatus,
			"current", p.StockStatus)
		return nil
	}
}

func LogOrders(logger *slog.Logger) HandlerFunc {
	return func(ctx context.Context, env Envelope) error {
		var p OrderPlacedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("failed to decode order payload: %w", err)
		}
		logger.Info("order placed",
			"order_id", p.OrderID,
			"user", p.UserID,
			"run_id", p.RunID,
			"total", p.Total,
			"items_added", p.ItemsAdded,
			"items_skipped", p.ItemsSkipped,
			"confirmed", p.Confirmed)
		return nil
	}
}
