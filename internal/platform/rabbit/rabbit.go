// Package rabbit wraps the intake queue broker: a prefetch-1 consumer with
// manual acknowledgment and a dead-letter publisher.
package rabbit

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Disposition is the handler's verdict on one delivery.
type Disposition int

const (
	// Ack removes the message from the queue. Covers the duplicate-skip
	// branch too: duplicates are handled, not failed.
	Ack Disposition = iota
	// Requeue negatively acknowledges with requeue enabled; the broker
	// redelivers, possibly to another consumer instance.
	Requeue
	// DeadLetter moves the message to the dead-letter queue and acks the
	// original.
	DeadLetter
)

// HandlerFunc processes one delivery body and reports what to do with it.
type HandlerFunc func(ctx context.Context, body []byte) Disposition

// Consumer consumes the intake queue one message at a time.
type Consumer struct {
	conn            *amqp.Connection
	ch              *amqp.Channel
	queue           string
	deadLetterQueue string
	logger          *slog.Logger
}

// Dial connects, opens a channel with prefetch 1 and declares the durable
// intake and dead-letter queues.
func Dial(url string, tlsCfg *tls.Config, queue, deadLetterQueue string, logger *slog.Logger) (*Consumer, error) {
	var conn *amqp.Connection
	var err error
	if tlsCfg != nil {
		conn, err = amqp.DialTLS(url, tlsCfg)
	} else {
		conn, err = amqp.Dial(url)
	}
	if err != nil {
		return nil, fmt.Errorf("dial intake broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// One in-flight message per consumer instance.
	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set prefetch: %w", err)
	}

	for _, name := range []string{queue, deadLetterQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	return &Consumer{
		conn:            conn,
		ch:              ch,
		queue:           queue,
		deadLetterQueue: deadLetterQueue,
		logger:          logger,
	}, nil
}

// Run consumes deliveries until ctx is cancelled or the channel closes. The
// in-flight message always runs to ack-or-nack before Run returns.
func (c *Consumer) Run(ctx context.Context, handle HandlerFunc) error {
	tag := "enrollgate-router-" + uuid.NewString()
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", c.queue, err)
	}
	c.logger.Info("consuming intake queue", "queue", c.queue, "consumer_tag", tag)

	for delivery := range deliveries {
		c.settle(ctx, delivery, handle(ctx, delivery.Body))
	}
	return ctx.Err()
}

func (c *Consumer) settle(ctx context.Context, delivery amqp.Delivery, disp Disposition) {
	switch disp {
	case Ack:
		if err := delivery.Ack(false); err != nil {
			c.logger.Error("ack failed", "error", err)
		}
	case Requeue:
		if err := delivery.Nack(false, true); err != nil {
			c.logger.Error("nack failed", "error", err)
		}
	case DeadLetter:
		if err := c.publishDeadLetter(ctx, delivery.Body); err != nil {
			// Keep the message in the queue rather than lose it.
			c.logger.Error("dead-letter publish failed, requeueing", "error", err)
			if err := delivery.Nack(false, true); err != nil {
				c.logger.Error("nack failed", "error", err)
			}
			return
		}
		if err := delivery.Ack(false); err != nil {
			c.logger.Error("ack after dead-letter failed", "error", err)
		}
	}
}

func (c *Consumer) publishDeadLetter(ctx context.Context, body []byte) error {
	return c.ch.PublishWithContext(ctx, "", c.deadLetterQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close tears down the channel and connection.
func (c *Consumer) Close() error {
	if err := c.ch.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
