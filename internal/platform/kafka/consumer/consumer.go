// Package consumer wraps the Kafka group consumer used by the shard ingest
// workers. Offsets are committed manually, one record at a time, only after
// the handler reports success.
package consumer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed stream record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
}

// Handler processes one message. A nil return commits the message's offset; an
// error stops the consumer with the offset uncommitted, so the record is
// redelivered after restart or rebalance.
type Handler func(ctx context.Context, msg *Message) error

// Consumer is a single-topic group consumer.
type Consumer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New joins the consumer group reading topic from the earliest uncommitted
// offset, with auto-commit disabled.
func New(brokers []string, group, topic string, tlsCfg *tls.Config, logger *slog.Logger) (*Consumer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, topic: topic, logger: logger}, nil
}

// Run polls until ctx is cancelled. Each record's offset is committed
// immediately after a successful handle, keeping the store commit
// happens-before the stream position advance.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	c.logger.Info("consuming ingestion stream", "topic", c.topic)

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if !errors.Is(err, context.Canceled) {
				c.logger.Error("fetch error", "topic", topic, "partition", partition, "error", err)
			}
		})

		for iter := fetches.RecordIter(); !iter.Done(); {
			record := iter.Next()
			msg := &Message{
				Topic:     record.Topic,
				Partition: record.Partition,
				Offset:    record.Offset,
				Key:       record.Key,
				Value:     record.Value,
			}
			if err := handle(ctx, msg); err != nil {
				return fmt.Errorf("handle record at %s[%d]@%d: %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
			if err := c.client.CommitRecords(ctx, record); err != nil {
				return fmt.Errorf("commit offset %s[%d]@%d: %w",
					msg.Topic, msg.Partition, msg.Offset, err)
			}
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}
