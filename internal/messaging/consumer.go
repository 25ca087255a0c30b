package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is the broker delivery handed to saga handlers. Partition and
// Offset identify the delivery for inbox dedup.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
}

// HeaderValue returns the named message header, letting consumers filter by
// eventType without deserializing the envelope.
func (m Message) HeaderValue(key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return h.Value
		}
	}
	return ""
}

type HandlerFunc func(ctx context.Context, msg Message) error

type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer runs one consumer-group loop over a single topic. Messages on one
// partition are processed sequentially; a handler error leaves the offset
// uncommitted so the broker redelivers.
type Consumer struct {
	reader  messageFetcher
	group   string
	topic   string
	handler HandlerFunc
	logger  *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, handler HandlerFunc, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Consumer{
		reader:  reader,
		group:   groupID,
		topic:   topic,
		handler: handler,
		logger:  logger.With("consumer_group", groupID, "topic", topic),
	}
}

// Run blocks until ctx is cancelled. The in-flight message is allowed to
// finish before the loop exits.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("consumer started")
	for {
		kmsg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("consumer stopped")
				return
			}
			c.logger.Warn("fetch message failed", "error", err.Error())
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		msg := Message{
			Topic:     kmsg.Topic,
			Partition: kmsg.Partition,
			Offset:    kmsg.Offset,
			Key:       kmsg.Key,
			Value:     kmsg.Value,
		}
		for _, h := range kmsg.Headers {
			msg.Headers = append(msg.Headers, Header{Key: h.Key, Value: string(h.Value)})
		}

		if err := c.handler(ctx, msg); err != nil {
			// Offset stays uncommitted; the broker redelivers and the inbox
			// guard keeps reprocessing idempotent.
			c.logger.Error("handler failed, message will be redelivered",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err.Error(),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, kmsg); err != nil {
			c.logger.Warn("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
