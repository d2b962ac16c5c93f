package saga

import (
	"encoding/json"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"
	"eshop/internal/pkg/outbox"
	"eshop/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ReleaseInventoryStep 发出释放库存消息，库存服务按订单和 sku 幂等处理
type ReleaseInventoryStep struct {
	NextHandler
}

func (h *ReleaseInventoryStep) Handle(assetsCtx *AssetsContext) error {
	ctx, span := assetsCtx.Tracer.Start(assetsCtx.Ctx, "saga.ReleaseInventory")
	defer span.End()

	if len(assetsCtx.ReleaseItems) == 0 {
		span.AddEvent("no items to release")
		return h.executeNext(assetsCtx)
	}

	span.SetAttributes(attribute.Int("items.count", len(assetsCtx.ReleaseItems)))
	payload, err := json.Marshal(domain.ReleaseInventoryMessage{OrderID: assetsCtx.OrderID, Items: assetsCtx.ReleaseItems})
	if err != nil {
		return err
	}
	err = assetsCtx.Publisher.Publish(ctx, &outbox.Message{
		Topic:         constants.ReleaseInventoryTopic,
		Key:           assetsCtx.OrderID,
		CorrelationID: assetsCtx.OrderID,
		Payload:       payload,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release inventory message not sent")
		metrics.SagaStepsTotal.WithLabelValues("release_inventory", "error").Inc()
		return err
	}

	metrics.SagaStepsTotal.WithLabelValues("release_inventory", "ok").Inc()
	logger.Ctx(ctx).Info().Str("order_id", assetsCtx.OrderID).Msg("release inventory message sent")
	return h.executeNext(assetsCtx)
}
