package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/mailer"
	pkgkafka "github.com/alex-rublevsky/rublevsky-studio/pkg/kafka"
)

// ConsumerGroupID is the group the notification consumers join.
const ConsumerGroupID = "storefront-notifications"

// ConsumerHandler turns order events into owner notifications.
type ConsumerHandler struct {
	renderer *mailer.Renderer
	sender   mailer.Sender
	logger   *slog.Logger
}

// NewConsumerHandler creates a handler that mails through sender.
func NewConsumerHandler(renderer *mailer.Renderer, sender mailer.Sender, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{renderer: renderer, sender: sender, logger: logger}
}

// Handle routes an event by type. Unknown types are logged and acknowledged.
func (h *ConsumerHandler) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	switch evt.EventType {
	case TypeOrderCreated:
		return h.handleOrderCreated(ctx, evt)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", evt.EventType),
			slog.String("event_id", evt.EventID),
		)
		return nil
	}
}

// handleOrderCreated mails the shop owner. A send failure is returned so
// the consumer retries the message.
func (h *ConsumerHandler) handleOrderCreated(ctx context.Context, evt *pkgkafka.Event) error {
	var order domain.Order
	if err := evt.UnmarshalData(&order); err != nil {
		h.logger.ErrorContext(ctx, "malformed order.created payload, skipping",
			slog.String("event_id", evt.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if order.ID == "" {
		order.ID = evt.AggregateID
	}

	msg, err := h.renderer.OwnerAlert(&order)
	if err != nil {
		return fmt.Errorf("render owner alert: %w", err)
	}
	if msg.To == "" {
		h.logger.WarnContext(ctx, "no owner email configured, dropping alert",
			slog.String("order_id", order.ID),
		)
		return nil
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send owner alert for order %s: %w", order.ID, err)
	}

	h.logger.InfoContext(ctx, "owner alerted of new order",
		slog.String("order_id", order.ID),
		slog.String("event_id", evt.EventID),
	)
	return nil
}

// NewConsumers creates one consumer per subscribed topic. handler should
// already be wrapped with pkgkafka.IdempotentHandler.
func NewConsumers(brokers []string, handler pkgkafka.Handler, logger *slog.Logger) []*pkgkafka.Consumer {
	topics := []string{TopicOrderCreated}

	consumers := make([]*pkgkafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers: brokers,
			GroupID: ConsumerGroupID,
			Topic:   topic,
		}
		consumers = append(consumers, pkgkafka.NewConsumer(cfg, handler, logger))
	}
	return consumers
}
