package mq

import (
	"context"
	"sync"

	"eshop/internal/pkg/logger"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Publisher 发送消息的最小接口，outbox 与失败处理器都依赖它
type Publisher interface {
	Send(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
}

// Producer 为每个主题维护一个 writer
type Producer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{brokers: brokers, writers: make(map[string]*kafka.Writer)}
}

func (p *Producer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.writers[topic]
	if !ok {
		w = NewKafkaWriter(p.brokers, topic)
		p.writers[topic] = w
	}
	return w
}

// Send 发送消息。headers 里已经带有 trace 信息时保持原样，否则注入当前上下文。
func (p *Producer) Send(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	msg := kafka.Message{Key: []byte(key), Value: value}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if _, ok := headers["traceparent"]; !ok {
		InjectTraceContext(ctx, &msg.Headers)
	}
	if err := p.writer(topic).WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write message to %s", topic)
	}
	return nil
}

func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			logger.Get().Error().Err(err).Str("topic", topic).Msg("Failed to close kafka writer")
		}
	}
}
