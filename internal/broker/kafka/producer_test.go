package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	last  []kafka.Message
	err   error
	calls int
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.calls++
	w.last = append([]kafka.Message{}, msgs...)
	return w.err
}

func TestProducer_Publish(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	require.NoError(t, p.Publish(context.Background(), "order.status.updated", []byte("1"), []byte("v")))
	require.Len(t, fw.last, 1)
	require.Equal(t, "order.status.updated", fw.last[0].Topic)
	require.Equal(t, []byte("1"), fw.last[0].Key)
	require.Equal(t, []byte("v"), fw.last[0].Value)
}

func TestProducer_Publish_StopsOnContextCancel(t *testing.T) {
	fw := &fakeWriter{err: errors.New("down")}
	p := newProducerWithWriter(fw).WithRetry(5, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Publish(ctx, "t", nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, fw.calls)
}
