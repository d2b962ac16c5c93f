package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		r.mu.Lock()
		if len(r.queue) > 0 {
			msg := r.queue[0]
			r.queue = r.queue[1:]
			r.mu.Unlock()
			return msg, nil
		}
		r.mu.Unlock()
		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func TestConsumer_CommitsAfterHandOver(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "actual-refund", Offset: 1, Value: []byte("ok")},
		{Topic: "actual-refund", Offset: 2, Value: []byte("fail")},
		{Topic: "actual-refund", Offset: 3, Value: []byte("panic")},
	}}
	pub := &fakePublisher{}

	c := NewConsumer("test", reader, func(ctx context.Context, msg kafka.Message) error {
		switch string(msg.Value) {
		case "fail":
			return errors.New("downstream timeout")
		case "panic":
			panic("boom")
		}
		return nil
	}, NewFailureHandler(pub, 3, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = c.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for reader.committedCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	c.Stop(context.Background())

	if got := reader.committedCount(); got != 3 {
		t.Fatalf("expected 3 commits, got %d", got)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.sent) != 2 {
		t.Fatalf("expected the failed and panicking messages to be handed over, got %d", len(pub.sent))
	}
	for _, m := range pub.sent {
		if m.topic != "delay_topic_5s" {
			t.Fatalf("expected retry via delay topic, got %s", m.topic)
		}
	}
}
