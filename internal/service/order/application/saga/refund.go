package saga

import (
	"encoding/json"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/metrics"
	"eshop/internal/pkg/outbox"

	"go.opentelemetry.io/otel/codes"
)

// ProcessCancelRefundStep 订单取消后创建退款售后单
type ProcessCancelRefundStep struct {
	NextHandler
}

func (h *ProcessCancelRefundStep) Handle(assetsCtx *AssetsContext) error {
	if assetsCtx.Cancel == nil {
		return h.executeNext(assetsCtx)
	}

	ctx, span := assetsCtx.Tracer.Start(assetsCtx.Ctx, "saga.ProcessCancelRefund")
	defer span.End()

	if err := assetsCtx.Refunder.ProcessCancelRefund(ctx, assetsCtx.Cancel); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel refund failed")
		metrics.SagaStepsTotal.WithLabelValues("process_cancel_refund", "error").Inc()
		return err
	}
	metrics.SagaStepsTotal.WithLabelValues("process_cancel_refund", "ok").Inc()
	return h.executeNext(assetsCtx)
}

// ActualRefundStep 客服审核通过后直接发出实际退款消息
type ActualRefundStep struct {
	NextHandler
}

func (h *ActualRefundStep) Handle(assetsCtx *AssetsContext) error {
	if assetsCtx.Refund == nil {
		return h.executeNext(assetsCtx)
	}

	ctx, span := assetsCtx.Tracer.Start(assetsCtx.Ctx, "saga.ActualRefund")
	defer span.End()

	payload, err := json.Marshal(assetsCtx.Refund)
	if err != nil {
		return err
	}
	err = assetsCtx.Publisher.Publish(ctx, &outbox.Message{
		Topic:         constants.ActualRefundTopic,
		Key:           assetsCtx.Refund.AfterSaleID,
		CorrelationID: assetsCtx.Refund.AfterSaleID,
		Payload:       payload,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "actual refund message not sent")
		metrics.SagaStepsTotal.WithLabelValues("actual_refund", "error").Inc()
		return err
	}
	metrics.SagaStepsTotal.WithLabelValues("actual_refund", "ok").Inc()
	return h.executeNext(assetsCtx)
}
