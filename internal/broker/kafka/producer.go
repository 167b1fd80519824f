package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Producer struct {
	w messageWriter

	attempts  int
	baseDelay time.Duration
}

func NewProducer(brokers []string) *Producer {
	return newProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	})
}

func newProducerWithWriter(w messageWriter) *Producer {
	return &Producer{w: w, attempts: 1, baseDelay: 150 * time.Millisecond}
}

// WithRetry makes Publish retry failed writes with linear backoff.
// Kafka is often not ready right after the stack starts.
func (p *Producer) WithRetry(attempts int, baseDelay time.Duration) *Producer {
	if attempts > 0 {
		p.attempts = attempts
	}
	if baseDelay > 0 {
		p.baseDelay = baseDelay
	}
	return p
}

func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	var err error
	for i := 0; i < p.attempts; i++ {
		err = p.w.WriteMessages(ctx, kafka.Message{
			Topic: topic,
			Key:   key,
			Value: value,
		})
		if err == nil {
			return nil
		}
		if i+1 < p.attempts {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "kafka publish")
			case <-time.After(time.Duration(i+1) * p.baseDelay):
			}
		}
	}
	return errors.Wrap(err, "kafka publish")
}

// PublishJSON marshals v and publishes it under key.
func (p *Producer) PublishJSON(ctx context.Context, topic, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}
	return p.Publish(ctx, topic, []byte(key), b)
}

func (p *Producer) Close() error {
	if c, ok := p.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
