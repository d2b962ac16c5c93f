package mq

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MessageReader 是 kafka.Reader 中消费者用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc 处理单条消息，返回错误时交给 FailureHandler
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

// Consumer 是通用的消费循环：拉取、恢复 trace、处理、失败移交、提交 offset
type Consumer struct {
	name           string
	reader         MessageReader
	handle         HandlerFunc
	failureHandler *FailureHandler
	tracer         trace.Tracer

	wg      sync.WaitGroup
	stopped atomic.Bool
}

func NewConsumer(name string, reader MessageReader, handle HandlerFunc, failureHandler *FailureHandler) *Consumer {
	return &Consumer{
		name:           name,
		reader:         reader,
		handle:         handle,
		failureHandler: failureHandler,
		tracer:         otel.Tracer("mq.consumer"),
	}
}

// Start 开始消费，直到 ctx 取消或 Stop 被调用
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Run(ctx)
	}()
	return nil
}

// Run 阻塞执行消费循环，可直接放进 errgroup
func (c *Consumer) Run(ctx context.Context) {
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("✅ Kafka consumer started.")
	for {
		if c.stopped.Load() {
			return
		}
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || c.stopped.Load() {
				logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("🛑 Kafka consumer shutting down.")
				return
			}
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("could not fetch message, retrying")
			time.Sleep(time.Second)
			continue
		}

		msgCtx := ExtractTraceContext(ctx, msg.Headers)
		if err := c.process(msgCtx, msg); err != nil {
			if !c.handOver(ctx, msgCtx, msg, err) {
				return
			}
		} else {
			metrics.ConsumerMessagesTotal.WithLabelValues(msg.Topic, "ok").Inc()
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(msgCtx).Error().Err(err).Str("consumer", c.name).Msg("Failed to commit messages")
		}
	}
}

// handOver 把失败消息交给 FailureHandler，移交成功之前不提交 offset
func (c *Consumer) handOver(ctx, msgCtx context.Context, msg kafka.Message, processErr error) bool {
	if c.failureHandler == nil {
		logger.Ctx(msgCtx).Error().Err(processErr).Str("consumer", c.name).Msg("Message processing failed, no failure handler configured")
		return true
	}
	for {
		err := c.failureHandler.Handle(msgCtx, msg, processErr)
		if err == nil {
			return true
		}
		logger.Ctx(msgCtx).Error().Err(err).Str("consumer", c.name).Msg("Failed to hand over message, will retry")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) (err error) {
	ctx, span := c.tracer.Start(ctx, "consumer."+msg.Topic, trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling message: %v", r)
			logger.Ctx(ctx).Error().Str("stack", string(debug.Stack())).Msg(err.Error())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return c.handle(ctx, msg)
}

// Stop 停止消费并等待循环退出
func (c *Consumer) Stop(ctx context.Context) {
	c.stopped.Store(true)
	c.reader.Close()
	c.wg.Wait()
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("✅ Kafka consumer stopped.")
}
