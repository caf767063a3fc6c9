package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"airshow-pos/service"
)

const publishTimeout = 5 * time.Second

// envelope is the value written for every event.
type envelope struct {
	Type string          `json:"type"`
	Key  string          `json:"key"`
	At   time.Time       `json:"published_at"`
	Data json.RawMessage `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends domain events to one topic, keyed by entity id.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

var _ service.EventDispatcher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	return &KafkaPublisher{writer: writer, now: time.Now}
}

func (p *KafkaPublisher) Dispatch(ctx context.Context, event service.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal %s event", event.Type())
	}
	at := p.now()
	value, err := json.Marshal(envelope{Type: event.Type(), Key: event.Key(), At: at, Data: data})
	if err != nil {
		return errors.Wrapf(err, "marshal %s envelope", event.Type())
	}

	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Time:  at,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type())},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s event to kafka", event.Type())
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
