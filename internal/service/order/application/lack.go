package application

import (
	"context"
	"encoding/json"
	"strings"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/ledger"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/outbox"
	"eshop/internal/pkg/utils"
	"eshop/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Lack 仓库拣货发现缺品时调用。
// 生成审核通过的缺品售后单，在订单扩展信息上打缺品标记，并直接发出 actual-refund。
// 每个订单只能缺品一次。
func (s *AfterSaleService) Lack(ctx context.Context, req *LackRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.Lack", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.Int("lack.items", len(req.LackItems)),
	))
	defer func() { s.finish(span, "lack", &res, &err) }()

	if strings.TrimSpace(req.OrderID) == "" {
		return nil, domain.ErrOrderIDEmpty
	}
	if len(req.LackItems) == 0 {
		return nil, domain.ErrLackItemsEmpty
	}
	for _, item := range req.LackItems {
		if strings.TrimSpace(item.SkuCode) == "" {
			return nil, domain.ErrLackSkuEmpty
		}
		if item.LackNum < 1 {
			return nil, domain.ErrLackNumInvalid
		}
	}

	err = lock.Do(ctx, s.locker, constants.LackRequestLockPrefix+req.OrderID, 0, domain.ErrLackBusy, func(ctx context.Context) error {
		entry, err := s.findLedger(ctx, req.OrderID, opLack)
		if err != nil {
			return err
		}
		if entry != nil {
			res = &Result{OrderID: req.OrderID, AfterSaleID: recordedAfterSaleID(entry)}
			return domain.ErrAlreadyProcessed
		}

		order, err := s.orders.FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.IsLacked() {
			return domain.ErrNotAllowLack.WithMessage("order %s already lacked", order.OrderID)
		}
		allow, err := s.lackPolicy.Allow(order)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("order_id", order.OrderID).Msg("evaluate lack rule failed")
			return domain.ErrNotAllowLack.Wrap(err)
		}
		if !allow {
			return domain.ErrNotAllowLack.WithMessage("order %s in status %d is not allowed to lack", order.OrderID, order.Status)
		}

		afterSale, err := s.lackAfterSale(ctx, order, req.LackItems)
		if err != nil {
			return err
		}
		refund := domain.NewRefund(order, afterSale.AfterSaleID, afterSale.RealRefundAmount)
		ext := order.Ext()
		ext.LackFlag = true
		ext.LackInfo = &domain.LackInfo{
			OrderID:           order.OrderID,
			AfterSaleID:       afterSale.AfterSaleID,
			LackItems:         req.LackItems,
			ApplyRefundAmount: afterSale.ApplyRefundAmount,
			RealRefundAmount:  afterSale.RealRefundAmount,
		}
		extJSON, err := domain.MarshalExt(ext)
		if err != nil {
			return err
		}
		ledgerPayload, _ := json.Marshal(afterSaleLedgerPayload{AfterSaleID: afterSale.AfterSaleID})

		payload, err := json.Marshal(domain.ActualRefundMessage{
			OrderID:     order.OrderID,
			AfterSaleID: afterSale.AfterSaleID,
		})
		if err != nil {
			return err
		}
		msg := &outbox.Message{
			Topic:         constants.ActualRefundTopic,
			Key:           afterSale.AfterSaleID,
			CorrelationID: afterSale.AfterSaleID,
			Checker:       checkAfterSaleCreated,
			Payload:       payload,
		}
		err = s.sendInTx(ctx, msg, domain.ErrLackSendFailed, func(ctx context.Context) error {
			if err := s.afterSales.Save(ctx, afterSale); err != nil {
				return err
			}
			if err := s.afterSales.SaveLog(ctx, domain.NewAfterSaleLog(afterSale.AfterSaleID,
				domain.AfterSaleUncreated, domain.AfterSaleReviewPass, afterSale.Remark)); err != nil {
				return err
			}
			if err := s.afterSales.SaveRefund(ctx, refund); err != nil {
				return err
			}
			if err := s.orders.UpdateExt(ctx, order.OrderID, extJSON); err != nil {
				return err
			}
			if err := s.orders.SaveOperateLog(ctx, &domain.OrderOperateLog{
				OrderID:       order.OrderID,
				OperateType:   domain.OperateLack,
				PreStatus:     order.Status,
				CurrentStatus: order.Status,
				Remark:        "订单缺品",
			}); err != nil {
				return err
			}
			return s.ledger.Record(ctx, &ledger.Entry{
				ResourceID:   order.OrderID,
				OperationKey: opLack,
				Status:       ledger.StatusCompleted,
				Payload:      ledgerPayload,
			})
		})
		if err != nil {
			return err
		}
		res = &Result{OrderID: order.OrderID, AfterSaleID: afterSale.AfterSaleID}
		return nil
	})
	if err != nil {
		return res, err
	}
	logger.Ctx(ctx).Info().Str("order_id", res.OrderID).Str("after_sale_id", res.AfterSaleID).Msg("order lacked")
	return res, nil
}

// lackAfterSale 逐条校验缺品条目并计算金额。缺品数量必须小于购买数量，整条缺品应走取消或退货。
func (s *AfterSaleService) lackAfterSale(ctx context.Context, order *domain.Order, lackItems []domain.LackItemReq) (*domain.AfterSaleCase, error) {
	afterSaleID := utils.NewID()
	items := make([]domain.AfterSaleItem, 0, len(lackItems))
	for _, lackItem := range lackItems {
		sku, err := s.catalog.GetSku(ctx, lackItem.SkuCode, order.SellerID)
		if err != nil {
			return nil, domain.ErrCatalogQueryFailed.Wrap(err)
		}
		if sku == nil {
			return nil, domain.ErrProductSkuNotFound.WithMessage("sku %s not found", lackItem.SkuCode)
		}
		orderItem, ok := order.ItemBySku(lackItem.SkuCode)
		if !ok {
			return nil, domain.ErrLackItemNotInOrder.WithMessage("sku %s is not in order %s", lackItem.SkuCode, order.OrderID)
		}
		if lackItem.LackNum >= orderItem.SaleQuantity {
			return nil, domain.ErrLackNumTooLarge.WithMessage("sku %s lack %d of %d", lackItem.SkuCode, lackItem.LackNum, orderItem.SaleQuantity)
		}

		applyAmount, realAmount := domain.LackItemAmount(*orderItem, lackItem.LackNum)
		items = append(items, domain.AfterSaleItem{
			AfterSaleID:       afterSaleID,
			OrderID:           order.OrderID,
			SkuCode:           orderItem.SkuCode,
			ProductName:       sku.ProductName,
			ProductImg:        orderItem.ProductImg,
			ReturnQuantity:    lackItem.LackNum,
			OriginAmount:      orderItem.OriginAmount,
			ApplyRefundAmount: applyAmount,
			RealRefundAmount:  realAmount,
		})
	}

	applyAmount, realAmount := domain.SumRefundAmount(items)
	now := s.now()
	return &domain.AfterSaleCase{
		AfterSaleID:        afterSaleID,
		OrderID:            order.OrderID,
		UserID:             order.UserID,
		BusinessIdentifier: order.BusinessIdentifier,
		OrderType:          order.OrderType,
		Type:               domain.AfterSaleTypeReturnMoney,
		TypeDetail:         domain.TypeDetailLackRefund,
		ApplySource:        domain.ApplySourceSystem,
		Status:             domain.AfterSaleReviewPass,
		ApplyRefundAmount:  applyAmount,
		RealRefundAmount:   realAmount,
		ApplyReasonCode:    domain.ApplyReasonCancel,
		ApplyReason:        "商品缺品",
		Remark:             "缺品退款",
		ApplyTime:          now,
		ReviewTime:         &now,
		Items:              items,
	}, nil
}
