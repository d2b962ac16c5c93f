package saga

import (
	"context"

	"eshop/internal/pkg/outbox"
	"eshop/internal/service/order/domain"

	"go.opentelemetry.io/otel/trace"
)

// MessagePublisher 发送不需要本地事务的消息
type MessagePublisher interface {
	Publish(ctx context.Context, msg *outbox.Message) error
}

// CancelRefunder 为取消的订单创建退款售后单
type CancelRefunder interface {
	ProcessCancelRefund(ctx context.Context, msg *domain.ReleaseAssetsMessage) error
}

// AssetsContext 在释放资产的责任链中传递上下文数据。
// Cancel 与 Refund 二选一：订单取消走取消退款，客服审核通过直接发起实际退款。
type AssetsContext struct {
	Ctx    context.Context
	Tracer trace.Tracer

	OrderID      string
	ReleaseItems []domain.ReleaseItem
	Cancel       *domain.ReleaseAssetsMessage
	Refund       *domain.ActualRefundMessage

	Publisher MessagePublisher
	Refunder  CancelRefunder
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(assetsCtx *AssetsContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(assetsCtx *AssetsContext) error {
	if h.next != nil {
		return h.next.Handle(assetsCtx)
	}
	return nil
}
