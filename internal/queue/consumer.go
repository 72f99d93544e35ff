package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/repairdesk/internal/config"
	"github.com/iliyamo/repairdesk/internal/logger"
)

// PickupConsumer listens on the pickup queue and appends one line per
// ready-for-pickup request to the notification log.
type PickupConsumer struct {
	cfg config.EventsConfig
	log *slog.Logger
}

// NewPickupConsumer returns a consumer for cfg.PickupQueue.
func NewPickupConsumer(cfg config.EventsConfig) *PickupConsumer {
	return &PickupConsumer{cfg: cfg, log: logger.WithComponent("pickup-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff when the connection drops.
func (c *PickupConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			c.log.Warn("broker dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *PickupConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.cfg.PickupQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.cfg.PickupQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.Handle(d.Body); err != nil {
			c.log.Error("handle message failed", "error", err)
			_ = d.Nack(false, false) // no requeue, a bad message would loop
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// Handle decodes one message body and appends the notification line.
func (c *PickupConsumer) Handle(body []byte) error {
	var ev RequestEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if !ev.PickupReady() {
		return fmt.Errorf("unexpected event %q with status %q", ev.Type, ev.Status)
	}
	if err := os.MkdirAll(filepath.Dir(c.cfg.NotifyLog), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(c.cfg.NotifyLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open notify log: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] Ready for pickup | request_id=%d | device=%q | model=%q | client=%q | phone=%q | master=%q\n",
		ev.OccurredAt, ev.RequestID, ev.DeviceType, ev.DeviceModel, ev.ClientName, ev.ClientPhone, ev.MasterName)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write notify log: %w", err)
	}
	return nil
}
