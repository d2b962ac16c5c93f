package application

import (
	"context"

	"eshop/internal/service/order/application/saga"
	"eshop/internal/service/order/domain"
)

// HandleReleaseAssets 消费 release-assets: 先释放整单库存，再为取消的订单创建退款售后单
func (s *AfterSaleService) HandleReleaseAssets(ctx context.Context, event *domain.ReleaseAssetsMessage) error {
	assetsCtx := &saga.AssetsContext{
		Ctx:          ctx,
		Tracer:       s.tracer,
		OrderID:      event.OrderID,
		ReleaseItems: event.Items,
		Cancel:       event,
		Publisher:    s.outbox,
		Refunder:     s,
	}
	chain := &saga.ReleaseInventoryStep{}
	chain.SetNext(&saga.ProcessCancelRefundStep{})
	return chain.Handle(assetsCtx)
}

// HandleAuditPassReleaseAssets 消费 customer-audit-pass-release-assets: 释放退货条目库存后发起实际退款
func (s *AfterSaleService) HandleAuditPassReleaseAssets(ctx context.Context, event *domain.AuditPassReleaseAssetsMessage) error {
	refund := event.ActualRefund
	assetsCtx := &saga.AssetsContext{
		Ctx:          ctx,
		Tracer:       s.tracer,
		OrderID:      event.ReleaseInventory.OrderID,
		ReleaseItems: event.ReleaseInventory.Items,
		Refund:       &refund,
		Publisher:    s.outbox,
	}
	chain := &saga.ReleaseInventoryStep{}
	chain.SetNext(&saga.ActualRefundStep{})
	return chain.Handle(assetsCtx)
}
