package application

import (
	"context"
	"encoding/json"
	"fmt"
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

// CancelOrder 取消订单。
// 本地事务取消履约并把订单置为已取消，同时发出 release-assets 消息，由消费者释放库存并发起退款。
func (s *AfterSaleService) CancelOrder(ctx context.Context, req *CancelOrderRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder", trace.WithAttributes(attribute.String("order.id", req.OrderID)))
	defer func() { s.finish(span, "cancel_order", &res, &err) }()

	if err := validateCancel(req); err != nil {
		return nil, err
	}

	err = lock.Do(ctx, s.locker, constants.CancelOrderLockPrefix+req.OrderID, 0, domain.ErrCancelOrderRepeat, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderCanceled {
			return domain.ErrAlreadyProcessed
		}
		if len(order.Items) == 0 {
			return domain.ErrOrderItemsEmpty
		}
		if !order.Status.CanCancel() {
			return domain.ErrCannotCancel
		}

		cancelType := *req.CancelType
		event := domain.ReleaseAssetsMessage{
			OrderID:    order.OrderID,
			UserID:     order.UserID,
			CancelType: cancelType,
			PreStatus:  order.Status,
			Items:      releaseItems(order.Items),
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		msg := &outbox.Message{
			Topic:         constants.ReleaseAssetsTopic,
			Key:           order.OrderID,
			CorrelationID: order.OrderID,
			Checker:       checkOrderCanceled,
			Payload:       payload,
		}
		return s.sendInTx(ctx, msg, domain.ErrCancelProcessFailed, func(ctx context.Context) error {
			s.cancelFulfillment(ctx, order)

			ok, err := s.orders.MarkCanceled(ctx, order.OrderID, order.Status, cancelType, s.now())
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrOrderStatusChanged
			}
			return s.orders.SaveOperateLog(ctx, cancelOperateLog(order, cancelType))
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Str("order_id", req.OrderID).Msg("order canceled")
	return &Result{OrderID: req.OrderID}, nil
}

// cancelFulfillment 未履约的订单不需要取消履约；取消失败只记录日志，不影响取消订单
func (s *AfterSaleService) cancelFulfillment(ctx context.Context, order *domain.Order) {
	if order.Status == domain.OrderCreated {
		return
	}
	if err := s.fulfillment.Cancel(ctx, order); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		logger.Ctx(ctx).Error().Err(domain.ErrFulfillCancelFailed.Wrap(err)).Str("order_id", order.OrderID).
			Msg("cancel fulfillment failed, continue canceling order")
	}
}

func cancelOperateLog(order *domain.Order, cancelType int) *domain.OrderOperateLog {
	log := &domain.OrderOperateLog{
		OrderID:       order.OrderID,
		OperateType:   domain.OperateAutoCancel,
		PreStatus:     order.Status,
		CurrentStatus: domain.OrderCanceled,
	}
	prefix := "超时自动取消订单"
	if cancelType == domain.CancelTypeUser {
		log.OperateType = domain.OperateManualCancel
		prefix = "用户手动取消订单"
	}
	log.Remark = fmt.Sprintf("%s%d-%d", prefix, log.PreStatus, log.CurrentStatus)
	return log
}

// ProcessCancelOrder 为已取消的订单创建退款售后单，并发出 actual-refund 消息。
// 同一订单只会创建一次，重复消息直接返回之前生成的售后单号。
func (s *AfterSaleService) ProcessCancelOrder(ctx context.Context, event *domain.ReleaseAssetsMessage) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.ProcessCancelOrder", trace.WithAttributes(attribute.String("order.id", event.OrderID)))
	defer func() { s.finish(span, "process_cancel_order", &res, &err) }()

	if strings.TrimSpace(event.OrderID) == "" {
		return nil, domain.ErrOrderIDEmpty
	}

	err = lock.Do(ctx, s.locker, constants.RefundLockPrefix+event.OrderID, 0, domain.ErrProcessRefundRepeat, func(ctx context.Context) error {
		entry, err := s.findLedger(ctx, event.OrderID, opCancelRefund)
		if err != nil {
			return err
		}
		if entry != nil {
			res = &Result{AlreadyProcessed: true, OrderID: event.OrderID, AfterSaleID: recordedAfterSaleID(entry)}
			return nil
		}

		order, err := s.orders.FindByID(ctx, event.OrderID)
		if err != nil {
			return err
		}

		afterSale := s.cancelAfterSale(order, event.CancelType)
		refund := domain.NewRefund(order, afterSale.AfterSaleID, afterSale.RealRefundAmount)
		ledgerPayload, _ := json.Marshal(afterSaleLedgerPayload{AfterSaleID: afterSale.AfterSaleID})

		payload, err := json.Marshal(domain.ActualRefundMessage{
			OrderID:         order.OrderID,
			AfterSaleID:     afterSale.AfterSaleID,
			LastReturnGoods: true,
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
		err = s.sendInTx(ctx, msg, domain.ErrProcessRefundFailed, func(ctx context.Context) error {
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
			return s.ledger.Record(ctx, &ledger.Entry{
				ResourceID:   order.OrderID,
				OperationKey: opCancelRefund,
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
		return nil, err
	}
	return res, nil
}

// ProcessCancelRefund 供释放资产责任链调用
func (s *AfterSaleService) ProcessCancelRefund(ctx context.Context, event *domain.ReleaseAssetsMessage) error {
	_, err := s.ProcessCancelOrder(ctx, event)
	return err
}

// cancelAfterSale 取消订单生成的售后单直接审核通过，退还全部实付金额
func (s *AfterSaleService) cancelAfterSale(order *domain.Order, cancelType int) *domain.AfterSaleCase {
	now := s.now()
	afterSaleID := utils.NewID()
	c := &domain.AfterSaleCase{
		AfterSaleID:        afterSaleID,
		OrderID:            order.OrderID,
		UserID:             order.UserID,
		BusinessIdentifier: order.BusinessIdentifier,
		OrderType:          order.OrderType,
		Type:               domain.AfterSaleTypeReturnMoney,
		TypeDetail:         domain.TypeDetailTimeoutNoPay,
		ApplySource:        domain.ApplySourceSystem,
		Status:             domain.AfterSaleReviewPass,
		ApplyRefundAmount:  order.PayAmount,
		RealRefundAmount:   order.PayAmount,
		ApplyReasonCode:    domain.ApplyReasonCancel,
		ApplyReason:        "取消订单",
		Remark:             "超时未支付自动取消",
		ApplyTime:          now,
		ReviewTime:         &now,
	}
	if cancelType == domain.CancelTypeUser {
		c.TypeDetail = domain.TypeDetailUserCancel
		c.Remark = "用户手动取消"
	}
	for _, item := range order.Items {
		c.Items = append(c.Items, domain.ItemFromOrder(afterSaleID, item))
	}
	return c
}

func recordedAfterSaleID(entry *ledger.Entry) string {
	var p afterSaleLedgerPayload
	_ = json.Unmarshal(entry.Payload, &p)
	return p.AfterSaleID
}

func releaseItems(items []domain.OrderItem) []domain.ReleaseItem {
	out := make([]domain.ReleaseItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.ReleaseItem{SkuCode: item.SkuCode, SaleQuantity: item.SaleQuantity})
	}
	return out
}

func validateCancel(req *CancelOrderRequest) error {
	if req.OrderStatus == nil {
		return domain.ErrOrderStatusEmpty
	}
	status := domain.OrderStatus(*req.OrderStatus)
	if status == domain.OrderCanceled {
		return domain.ErrOrderStatusCanceled
	}
	if !status.CanCancel() {
		return domain.ErrOrderStatusChanged
	}
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return domain.ErrCancelOrderIDEmpty
	case req.BusinessIdentifier == nil:
		return domain.ErrBusinessIdentifierEmpty
	case req.CancelType == nil:
		return domain.ErrCancelTypeEmpty
	case strings.TrimSpace(req.UserID) == "":
		return domain.ErrUserIDEmpty
	case req.OrderType == nil:
		return domain.ErrOrderTypeEmpty
	}
	return nil
}
