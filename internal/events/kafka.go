package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hamed0406/statuspulse/internal/domain"
)

// Writer is the part of kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits status-change events keyed by monitor id, so every event
// for a monitor lands on the same partition in order.
type Publisher struct {
	writer Writer
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
}

func NewPublisher(w Writer) *Publisher { return &Publisher{writer: w} }

func (p *Publisher) Publish(ctx context.Context, m domain.Monitor, status domain.Status, at time.Time) error {
	payload, err := json.Marshal(domain.NewStatusChangedEvent(m, status, at))
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.ID),
		Value: payload,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(domain.EventStatusChanged)},
		},
	})
	if err != nil {
		return fmt.Errorf("Publisher.Publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.writer.Close() }
