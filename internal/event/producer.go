package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	pkgkafka "github.com/alex-rublevsky/rublevsky-studio/pkg/kafka"
)

// Event types. Each is published on pkgkafka.Topic(aggregate, action).
const (
	TypeProductCreated     = "product.created"
	TypeProductUpdated     = "product.updated"
	TypeProductDeleted     = "product.deleted"
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// Aggregate types.
const (
	AggregateProduct = "product"
	AggregateOrder   = "order"
)

// Source identifies events originating from this backend.
const Source = "storefront-api"

var (
	TopicProductCreated     = pkgkafka.Topic(AggregateProduct, "created")
	TopicProductUpdated     = pkgkafka.Topic(AggregateProduct, "updated")
	TopicProductDeleted     = pkgkafka.Topic(AggregateProduct, "deleted")
	TopicOrderCreated       = pkgkafka.Topic(AggregateOrder, "created")
	TopicOrderStatusChanged = pkgkafka.Topic(AggregateOrder, "status_changed")
)

// ProductData is the payload of product events.
type ProductData struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	IsActive bool   `json:"is_active"`
}

// OrderStatusChangedData is the payload of an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a producer on top of publisher.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, TypeProductCreated, AggregateProduct, product.ID, productData(product))
}

// PublishProductUpdated publishes a product.updated event.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, TypeProductUpdated, AggregateProduct, product.ID, productData(product))
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductDeleted, TypeProductDeleted, AggregateProduct, product.ID, productData(product))
}

// PublishOrderCreated publishes the full order, items and addresses
// included, so consumers need no read access to the database.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, TypeOrderCreated, AggregateOrder, order.ID, order)
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus string) error {
	return p.publish(ctx, TopicOrderStatusChanged, TypeOrderStatusChanged, AggregateOrder, orderID, OrderStatusChangedData{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateType, aggregateID string, data any) error {
	evt, err := pkgkafka.NewEvent(ctx, eventType, aggregateType, aggregateID, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if err := p.publisher.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

func productData(p *domain.Product) ProductData {
	return ProductData{ID: p.ID, Slug: p.Slug, Name: p.Name, Price: p.Price, IsActive: p.IsActive}
}
