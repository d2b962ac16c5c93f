// Package scheduler 把延迟主题中到期的重试消息投递回它原来的主题。
package scheduler

import (
	"context"
	"time"

	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"
	"eshop/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ParseLevel 延迟主题名的后缀就是延迟时长，例如 delay_topic_5s、delay_topic_10m
func ParseLevel(level string) (time.Duration, error) {
	const prefix = "delay_topic_"
	if len(level) > len(prefix) && level[:len(prefix)] == prefix {
		return time.ParseDuration(level[len(prefix):])
	}
	return time.ParseDuration(level)
}

// Scheduler 负责一个延迟级别。
// 同一个主题内的消息按写入时间有序，队头没有到期时后面的消息也不会到期，
// 所以只需要等到队头到期再投递。
type Scheduler struct {
	level     string
	delay     time.Duration
	reader    mq.MessageReader
	publisher mq.Publisher
	tracer    trace.Tracer

	now        func() time.Time
	retryDelay time.Duration
}

func NewScheduler(level string, delay time.Duration, reader mq.MessageReader, publisher mq.Publisher, tracer trace.Tracer) *Scheduler {
	return &Scheduler{
		level:      level,
		delay:      delay,
		reader:     reader,
		publisher:  publisher,
		tracer:     tracer,
		now:        time.Now,
		retryDelay: time.Second,
	}
}

// Run 阻塞直到 ctx 取消
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Str("level", s.level).Dur("delay", s.delay).Msg("✅ delay scheduler started")
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Ctx(ctx).Info().Str("level", s.level).Msg("🛑 delay scheduler shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Str("level", s.level).Msg("could not fetch delayed message, retrying")
			if !sleep(ctx, s.retryDelay) {
				return nil
			}
			continue
		}

		if !sleep(ctx, s.until(msg)) {
			return nil
		}
		if !s.forward(ctx, msg) {
			return nil
		}
		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("level", s.level).Msg("failed to commit delayed message")
		}
	}
}

// until 距离消息到期还需要等待的时长
func (s *Scheduler) until(msg kafka.Message) time.Duration {
	return msg.Time.Add(s.delay).Sub(s.now())
}

// forward 投递到 real-topic，失败时一直重试直到成功或 ctx 取消。
// 缺少 real-topic 的消息无法投递，记录日志后跳过。
func (s *Scheduler) forward(ctx context.Context, msg kafka.Message) bool {
	msgCtx := mq.ExtractTraceContext(ctx, msg.Headers)
	msgCtx, span := s.tracer.Start(msgCtx, "scheduler.Forward", trace.WithAttributes(
		attribute.String("delay.level", s.level),
		attribute.String("msg.time", msg.Time.Format(time.DateTime)),
	))
	defer span.End()

	realTopic := mq.GetHeader(msg.Headers, mq.HeaderRealTopic)
	if realTopic == "" {
		span.AddEvent("RealTopicMissing")
		logger.Ctx(msgCtx).Error().Str("level", s.level).Int64("offset", msg.Offset).Msg("real-topic header missing, skipping message")
		metrics.ConsumerMessagesTotal.WithLabelValues(s.level, "skipped").Inc()
		return true
	}
	span.SetAttributes(attribute.String("real.topic", realTopic))

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		if h.Key == mq.HeaderRealTopic {
			continue
		}
		headers[h.Key] = string(h.Value)
	}

	for {
		err := s.publisher.Send(msgCtx, realTopic, string(msg.Key), msg.Value, headers)
		if err == nil {
			span.AddEvent("MessageForwarded")
			metrics.ConsumerMessagesTotal.WithLabelValues(s.level, "forwarded").Inc()
			logger.Ctx(msgCtx).Info().Str("level", s.level).Str("real_topic", realTopic).Msg("delayed message forwarded")
			return true
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "forward failed")
		logger.Ctx(msgCtx).Error().Err(err).Str("real_topic", realTopic).Msg("failed to forward delayed message, retrying")
		if !sleep(ctx, s.retryDelay) {
			return false
		}
	}
}

// sleep 返回 false 表示 ctx 已取消
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
