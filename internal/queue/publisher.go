package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/repairdesk/internal/config"
	"github.com/iliyamo/repairdesk/internal/logger"
)

// Publisher sends lifecycle events.  Callers treat a failed publish as
// non-fatal.
type Publisher interface {
	Publish(ctx context.Context, ev RequestEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, RequestEvent) error { return nil }

// NewPublisher returns an AMQP publisher when events are enabled and a
// NopPublisher otherwise.
func NewPublisher(cfg config.EventsConfig) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return &AMQPPublisher{cfg: cfg, log: logger.WithComponent("queue")}
}

// AMQPPublisher publishes events to RabbitMQ over a connection opened per
// call.  Every event goes to the lifecycle queue; pickup-ready events are
// also routed to the pickup queue.
type AMQPPublisher struct {
	cfg config.EventsConfig
	log *slog.Logger
}

// Publish declares the durable queues and sends ev as a persistent JSON
// message.  Errors are logged and returned.
func (p *AMQPPublisher) Publish(ctx context.Context, ev RequestEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		p.log.Warn("broker dial failed", "error", err)
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", "error", err)
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	queues := []string{p.cfg.Queue}
	if ev.PickupReady() {
		queues = append(queues, p.cfg.PickupQueue)
	}
	for _, q := range queues {
		if err := publish(ctx, ch, q, body); err != nil {
			p.log.Warn("publish failed", "queue", q, "request_id", ev.RequestID, "error", err)
			return err
		}
	}
	p.log.Debug("event published", "type", ev.Type, "request_id", ev.RequestID)
	return nil
}

func publish(ctx context.Context, ch *amqp.Channel, queue string, body []byte) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", queue, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	return nil
}
