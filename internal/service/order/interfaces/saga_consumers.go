package interfaces

import (
	"context"
	"encoding/json"

	"eshop/internal/pkg/bizerr"
	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/logger"
	"eshop/internal/service/order/application"
	"eshop/internal/service/order/domain"

	"github.com/segmentio/kafka-go"
)

// SagaConsumers 订单服务订阅的各个 saga 主题的消息处理函数。
// 返回错误由 FailureHandler 决定重试还是死信。
type SagaConsumers struct {
	service *application.AfterSaleService
}

func NewSagaConsumers(service *application.AfterSaleService) *SagaConsumers {
	return &SagaConsumers{service: service}
}

// Handlers 主题到处理函数的映射，启动时为每个主题创建一个消费者
func (c *SagaConsumers) Handlers() map[string]func(ctx context.Context, msg kafka.Message) error {
	return map[string]func(ctx context.Context, msg kafka.Message) error{
		constants.ReleaseAssetsTopic:                  c.releaseAssets,
		constants.CustomerAuditPassReleaseAssetsTopic: c.auditPassReleaseAssets,
		constants.ActualRefundTopic:                   c.actualRefund,
		constants.ReleaseCouponTopic:                  c.releaseCoupon,
		constants.OrderWmsShipResultTopic:             c.wmsShipResult,
	}
}

func (c *SagaConsumers) releaseAssets(ctx context.Context, msg kafka.Message) error {
	var event domain.ReleaseAssetsMessage
	if err := decode(msg, &event); err != nil {
		return err
	}
	return c.service.HandleReleaseAssets(ctx, &event)
}

func (c *SagaConsumers) auditPassReleaseAssets(ctx context.Context, msg kafka.Message) error {
	var event domain.AuditPassReleaseAssetsMessage
	if err := decode(msg, &event); err != nil {
		return err
	}
	return c.service.HandleAuditPassReleaseAssets(ctx, &event)
}

func (c *SagaConsumers) actualRefund(ctx context.Context, msg kafka.Message) error {
	var event domain.ActualRefundMessage
	if err := decode(msg, &event); err != nil {
		return err
	}
	res, err := c.service.RefundMoney(ctx, &event)
	return consumed(ctx, msg, res, err)
}

func (c *SagaConsumers) releaseCoupon(ctx context.Context, msg kafka.Message) error {
	var event domain.ReleaseCouponMessage
	if err := decode(msg, &event); err != nil {
		return err
	}
	res, err := c.service.ReleaseCoupon(ctx, &event)
	return consumed(ctx, msg, res, err)
}

func (c *SagaConsumers) wmsShipResult(ctx context.Context, msg kafka.Message) error {
	var event domain.WmsShipEvent
	if err := decode(msg, &event); err != nil {
		return err
	}
	res, err := c.service.HandleWmsShipResult(ctx, &event)
	return consumed(ctx, msg, res, err)
}

// decode 消息体无法解析属于不可重试的错误，直接进入死信
func decode(msg kafka.Message, v any) error {
	if err := json.Unmarshal(msg.Value, v); err != nil {
		return bizerr.Validation("INVALID_MESSAGE", err.Error()).Wrap(err)
	}
	return nil
}

func consumed(ctx context.Context, msg kafka.Message, res *application.Result, err error) error {
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info().
		Str("topic", msg.Topic).
		Str("order_id", res.OrderID).
		Str("after_sale_id", res.AfterSaleID).
		Bool("already_processed", res.AlreadyProcessed).
		Msg("saga message consumed")
	return nil
}
