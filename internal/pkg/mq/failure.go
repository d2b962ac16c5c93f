package mq

import (
	"context"
	"fmt"
	"strconv"

	"eshop/internal/pkg/bizerr"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

// DefaultDelayLevels 延迟重试主题，由 delay-scheduler 到期后投递回 real-topic
var DefaultDelayLevels = []string{"delay_topic_5s", "delay_topic_1m", "delay_topic_10m"}

// FailureHandler 决定处理失败的消息是延迟重试还是进入死信队列。
// 可重试错误按重试次数依次投递到延迟主题，超过上限或不可重试的错误投递到 <topic>.DLT。
type FailureHandler struct {
	publisher   Publisher
	maxRetries  int
	delayLevels []string
}

func NewFailureHandler(publisher Publisher, maxRetries int, delayLevels []string) *FailureHandler {
	if len(delayLevels) == 0 {
		delayLevels = DefaultDelayLevels
	}
	return &FailureHandler{publisher: publisher, maxRetries: maxRetries, delayLevels: delayLevels}
}

// Handle 返回 nil 表示消息已经移交，调用方可以提交 offset
func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, processErr error) error {
	retries, _ := strconv.Atoi(GetHeader(msg.Headers, HeaderRetryCount))

	if bizerr.Retryable(processErr) && retries < h.maxRetries {
		level := h.delayLevels[min(retries, len(h.delayLevels)-1)]
		headers := copyHeaders(msg.Headers)
		headers[HeaderRealTopic] = msg.Topic
		headers[HeaderRetryCount] = strconv.Itoa(retries + 1)

		logger.Ctx(ctx).Warn().Err(processErr).
			Str("topic", msg.Topic).
			Str("delay_topic", level).
			Int("retry", retries+1).
			Msg("Message processing failed, scheduling retry")
		metrics.ConsumerMessagesTotal.WithLabelValues(msg.Topic, "retry").Inc()
		return h.publisher.Send(ctx, level, string(msg.Key), msg.Value, headers)
	}

	headers := copyHeaders(msg.Headers)
	headers[HeaderOriginalTopic] = msg.Topic
	headers[HeaderOriginalPartition] = strconv.Itoa(msg.Partition)
	headers[HeaderOriginalOffset] = strconv.FormatInt(msg.Offset, 10)
	headers[HeaderExceptionFqcn] = fmt.Sprintf("%T", processErr)
	headers[HeaderExceptionMessage] = processErr.Error()
	if code := bizerr.CodeOf(processErr); code != bizerr.SystemErrorCode {
		headers[HeaderExceptionFqcn] = code
	}

	logger.Ctx(ctx).Error().Err(processErr).
		Str("topic", msg.Topic).
		Int("retries", retries).
		Msg("Message processing failed permanently, sending to DLT")
	metrics.ConsumerMessagesTotal.WithLabelValues(msg.Topic, "dead_letter").Inc()
	return h.publisher.Send(ctx, DeadLetterTopic(msg.Topic), string(msg.Key), msg.Value, headers)
}

// DeadLetterTopic 死信主题名
func DeadLetterTopic(topic string) string {
	return topic + ".DLT"
}

func copyHeaders(headers []kafka.Header) map[string]string {
	out := make(map[string]string, len(headers)+5)
	for _, h := range headers {
		out[h.Key] = string(h.Value)
	}
	return out
}
