package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/dampfi-automation/internal/database"
	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventTypeOrderPlaced            EventType = "ORDER_PLACED"
	EventTypeProductSnapshotUpdated EventType = "PRODUCT_SNAPSHOT_UPDATED"

	source = "dampfi-automation"
)

// OrderPlacedPayload is published when a checkout run ends with a stored order.
type OrderPlacedPayload struct {
	EventID      string           `json:"event_id"`
	EventType    string           `json:"event_type"`
	Timestamp    time.Time        `json:"timestamp"`
	OrderID      int64            `json:"order_id"`
	UserID       int              `json:"user_id"`
	RunID        string           `json:"run_id"`
	Total        *decimal.Decimal `json:"total,omitempty"`
	ItemsAdded   int              `json:"items_added"`
	ItemsSkipped int              `json:"items_skipped"`
	OrderNumber  *string          `json:"order_number,omitempty"`
	Confirmed    bool             `json:"confirmed"`
	Source       string           `json:"source"`
}

// ProductSnapshotUpdatedPayload is published after a fresh extraction replaced the stored product.
type ProductSnapshotUpdatedPayload struct {
	EventID             string             `json:"event_id"`
	EventType           string             `json:"event_type"`
	Timestamp           time.Time          `json:"timestamp"`
	ProductID           int64              `json:"product_id"`
	ProductURL          string             `json:"product_url"`
	Name                string             `json:"name"`
	Price               *decimal.Decimal   `json:"price,omitempty"`
	StockStatus         models.StockStatus `json:"stock_status"`
	PreviousStockStatus models.StockStatus `json:"previous_stock_status"`
	VariantCount        int                `json:"variant_count"`
	Source              string             `json:"source"`
}

// StockChanged reports whether availability differs from the previously stored value.
func (p *ProductSnapshotUpdatedPayload) StockChanged() bool {
	return p.StockStatus != p.PreviousStockStatus
}

// Publisher writes domain events into the outbox inside the caller's transaction.
type Publisher struct {
	outbox *database.OutboxRepository
	stream string
	logger *slog.Logger
}

func NewPublisher(outbox *database.OutboxRepository, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultTargetStream
	}
	return &Publisher{
		outbox: outbox,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) PublishOrderPlaced(ctx context.Context, tx *sql.Tx, order *models.Order, runID string) error {
	payload := &OrderPlacedPayload{
		EventID:   uuid.New().String(),
		EventType: string(EventTypeOrderPlaced),
		Timestamp: time.Now(),
		OrderID:   order.ID,
		UserID:    order.UserID,
		RunID:     runID,
		Total:     order.TotalPrice,
		Confirmed: order.Confirmation.IsConfirmed(),
		Source:    source,
	}
	for _, item := range order.Items {
		if item.Added {
			payload.ItemsAdded++
		} else {
			payload.ItemsSkipped++
		}
	}
	if order.Confirmation != nil {
		payload.OrderNumber = order.Confirmation.OrderNumber
	}

	return p.publish(ctx, tx, "order", strconv.FormatInt(order.ID, 10), EventTypeOrderPlaced, payload.EventID, payload)
}

func (p *Publisher) PublishSnapshotUpdated(ctx context.Context, tx *sql.Tx, product *models.Product, previous models.StockStatus) error {
	payload := &ProductSnapshotUpdatedPayload{
		EventID:             uuid.New().String(),
		EventType:           string(EventTypeProductSnapshotUpdated),
		Timestamp:           time.Now(),
		ProductID:           product.ID,
		ProductURL:          product.URL,
		Name:                product.Name,
		Price:               product.Price,
		StockStatus:         product.StockStatus,
		PreviousStockStatus: previous,
		VariantCount:        len(product.Variants),
		Source:              source,
	}

	return p.publish(ctx, tx, "product", strconv.FormatInt(product.ID, 10), EventTypeProductSnapshotUpdated, payload.EventID, payload)
}

func (p *Publisher) publish(ctx context.Context, tx *sql.Tx, aggregateType, aggregateID string, eventType EventType, eventID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     string(eventType),
		Payload:       data,
		TargetStream:  p.stream,
	}

	if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", eventType,
		"event_id", eventID,
		"aggregate_id", aggregateID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}
