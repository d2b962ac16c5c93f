package mq

import (
	"context"

	"eshop/internal/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// NewDltConsumer 创建死信消费者，死信只记录日志后直接提交
func NewDltConsumer(reader MessageReader) *Consumer {
	return NewConsumer("dlt", reader, func(ctx context.Context, msg kafka.Message) error {
		logDeadLetter(ctx, msg)
		return nil
	}, nil)
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	headers := copyHeaders(msg.Headers)

	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headers[HeaderOriginalTopic]).
		Str("original_partition", headers[HeaderOriginalPartition]).
		Str("original_offset", headers[HeaderOriginalOffset]).
		Str("exception_fqcn", headers[HeaderExceptionFqcn]).
		Str("exception_message", headers[HeaderExceptionMessage]).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
