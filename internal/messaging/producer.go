package messaging

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrNotConnected = errors.New("kafka producer not connected")

type Header struct {
	Key   string
	Value string
}

// Producer is the broker-facing write side. Implementations must key messages
// so all events for one aggregate land on one partition.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...Header) error
	Ready() bool
	Close() error
}

// KafkaProducer wraps a process-lifetime kafka.Writer. If the broker is
// unreachable at startup the producer is constructed disabled instead of
// failing service boot; outbox rows then accumulate until connectivity
// returns and the service restarts.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(ctx context.Context, brokers []string, logger *slog.Logger) *KafkaProducer {
	if err := probeBroker(ctx, brokers); err != nil {
		logger.Warn("kafka unreachable, producer disabled; outbox events will stay pending",
			"brokers", brokers,
			"error", err.Error(),
		)
		return &KafkaProducer{}
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	logger.Info("kafka producer connected", "brokers", brokers)
	return &KafkaProducer{writer: writer}
}

func probeBroker(ctx context.Context, brokers []string) error {
	var lastErr error
	for _, broker := range brokers {
		dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		conn, err := kafka.DialContext(dialCtx, "tcp", broker)
		cancel()
		if err == nil {
			_ = conn.Close()
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &net.AddrError{Err: "no brokers configured"}
	}
	return lastErr
}

func (p *KafkaProducer) Ready() bool { return p.writer != nil }

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte, headers ...Header) error {
	if p.writer == nil {
		return ErrNotConnected
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	for _, h := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: h.Key, Value: []byte(h.Value)})
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaProducer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
