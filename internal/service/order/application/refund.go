package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/ledger"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/outbox"
	"eshop/internal/service/order/domain"
	"eshop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RefundMoney 消费 actual-refund，调用支付服务退款并把售后单推进到退款中。
// 最后一笔退款且订单用了优惠券时，状态迁移和 release-coupon 消息放在同一个事务消息里。
func (s *AfterSaleService) RefundMoney(ctx context.Context, event *domain.ActualRefundMessage) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.RefundMoney", trace.WithAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("after_sale.id", event.AfterSaleID),
		attribute.Bool("last_return_goods", event.LastReturnGoods),
	))
	defer func() { s.finish(span, "refund_money", &res, &err) }()

	if strings.TrimSpace(event.AfterSaleID) == "" {
		return nil, domain.ErrAfterSaleIDEmpty
	}

	err = lock.Do(ctx, s.locker, constants.RefundLockPrefix+event.AfterSaleID, 0, domain.ErrRefundMoneyRepeat, func(ctx context.Context) error {
		afterSale, err := s.afterSales.FindByID(ctx, event.AfterSaleID)
		if err != nil {
			return err
		}
		if err := domain.CheckTransition(afterSale.Status, domain.AfterSaleReviewPass, domain.AfterSaleRefunding); err != nil {
			return err
		}
		refund, err := s.afterSales.FindRefund(ctx, event.AfterSaleID)
		if err != nil {
			return err
		}
		order, err := s.orders.FindByID(ctx, afterSale.OrderID)
		if err != nil {
			return err
		}

		if err := s.payOnce(ctx, refund); err != nil {
			return err
		}

		toRefunding := func(ctx context.Context) error {
			return s.transit(ctx, afterSale.AfterSaleID, domain.AfterSaleReviewPass, domain.AfterSaleRefunding, "已发起退款")
		}
		if !event.LastReturnGoods || !order.UsedCoupon() {
			return s.tx.WithinTx(ctx, toRefunding)
		}

		payload, err := json.Marshal(domain.ReleaseCouponMessage{
			OrderID:     order.OrderID,
			AfterSaleID: afterSale.AfterSaleID,
			UserID:      order.UserID,
			CouponID:    order.CouponID,
		})
		if err != nil {
			return err
		}
		return s.sendInTx(ctx, &outbox.Message{
			Topic:         constants.ReleaseCouponTopic,
			Key:           order.OrderID,
			CorrelationID: afterSale.AfterSaleID,
			Checker:       checkAfterSaleRefunding,
			Payload:       payload,
		}, domain.ErrReleaseCouponSendFailed, toRefunding)
	})
	if err != nil {
		return nil, err
	}
	return &Result{OrderID: event.OrderID, AfterSaleID: event.AfterSaleID}, nil
}

// payOnce 调用支付退款，台账条目 COMPLETED 后重投的消息不会再次退款。
// 条目停在 PENDING 说明上次调用没有得到确认，按同一批次号重新发起。
func (s *AfterSaleService) payOnce(ctx context.Context, refund *domain.AfterSaleRefund) error {
	entry, err := s.ledger.Find(ctx, refund.AfterSaleID, opPaymentRefund)
	if err != nil {
		return err
	}
	if entry != nil && entry.Status == ledger.StatusCompleted {
		logger.Ctx(ctx).Info().Str("after_sale_id", refund.AfterSaleID).Msg("payment refund already executed, skip")
		return nil
	}
	if entry == nil {
		payload, _ := json.Marshal(paymentLedgerPayload{BatchNo: refund.BatchNo, RefundAmount: refund.RefundAmount})
		err = s.ledger.Record(ctx, &ledger.Entry{
			ResourceID:   refund.AfterSaleID,
			OperationKey: opPaymentRefund,
			Status:       ledger.StatusPending,
			Payload:      payload,
		})
		if err != nil && !errors.Is(err, ledger.ErrDuplicate) {
			return err
		}
	}

	err = s.payment.Refund(ctx, &port.RefundRequest{
		OrderID:      refund.OrderID,
		AfterSaleID:  refund.AfterSaleID,
		BatchNo:      refund.BatchNo,
		OutTradeNo:   refund.OutTradeNo,
		RefundAmount: refund.RefundAmount,
	})
	if err != nil {
		return domain.ErrPaymentRefundFailed.Wrap(err)
	}
	if _, err := s.ledger.Transition(ctx, refund.AfterSaleID, opPaymentRefund, ledger.StatusPending, ledger.StatusCompleted); err != nil {
		return err
	}
	return nil
}

// ReleaseCoupon 消费 release-coupon，同一订单的优惠券只归还一次
func (s *AfterSaleService) ReleaseCoupon(ctx context.Context, event *domain.ReleaseCouponMessage) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.ReleaseCoupon", trace.WithAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("coupon.id", event.CouponID),
	))
	defer func() { s.finish(span, "release_coupon", &res, &err) }()

	if strings.TrimSpace(event.OrderID) == "" {
		return nil, domain.ErrOrderIDEmpty
	}
	if event.CouponID == "" {
		span.AddEvent("no coupon used")
		return &Result{OrderID: event.OrderID, AfterSaleID: event.AfterSaleID}, nil
	}

	err = lock.Do(ctx, s.locker, constants.ReleaseCouponLockPrefix+event.OrderID, 0, domain.ErrReleaseCouponBusy, func(ctx context.Context) error {
		entry, err := s.findLedger(ctx, event.OrderID, opCouponRelease)
		if err != nil {
			return err
		}
		if entry != nil {
			return domain.ErrAlreadyProcessed
		}

		if err := s.coupon.Release(ctx, event.UserID, event.CouponID); err != nil {
			return domain.ErrCouponReleaseFailed.Wrap(err)
		}

		payload, _ := json.Marshal(afterSaleLedgerPayload{AfterSaleID: event.AfterSaleID})
		err = s.ledger.Record(ctx, &ledger.Entry{
			ResourceID:   event.OrderID,
			OperationKey: opCouponRelease,
			Status:       ledger.StatusCompleted,
			Payload:      payload,
		})
		if errors.Is(err, ledger.ErrDuplicate) {
			return domain.ErrAlreadyProcessed
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Str("coupon_id", event.CouponID).Msg("coupon released")
	return &Result{OrderID: event.OrderID, AfterSaleID: event.AfterSaleID}, nil
}

// ReceiveRefundCallback 处理支付服务的退款回调。
// 只有未退款且批次号一致的退款单才会被更新，其余一律按重复回调拒绝。
func (s *AfterSaleService) ReceiveRefundCallback(ctx context.Context, req *RefundCallbackRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.ReceiveRefundCallback", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("after_sale.id", req.AfterSaleID),
		attribute.String("batch_no", req.BatchNo),
	))
	defer func() { s.finish(span, "refund_callback", &res, &err) }()

	if err := validateCallback(req); err != nil {
		return nil, err
	}

	succeeded := domain.RefundStatus(*req.RefundStatus) == domain.RefundSuccess
	var afterSale *domain.AfterSaleCase
	err = lock.Do(ctx, s.locker, constants.RefundLockPrefix+req.AfterSaleID, 0, domain.ErrRefundCallbackRepeat, func(ctx context.Context) error {
		refund, err := s.afterSales.FindRefund(ctx, req.AfterSaleID)
		if err != nil {
			return err
		}
		if refund.RefundStatus != domain.RefundUnRefund || refund.BatchNo != req.BatchNo {
			return domain.ErrRepeatCallback
		}
		afterSale, err = s.afterSales.FindByID(ctx, req.AfterSaleID)
		if err != nil {
			return err
		}

		to, refundStatus := domain.AfterSaleRefunded, domain.RefundSuccess
		if !succeeded {
			to, refundStatus = domain.AfterSaleFailed, domain.RefundFail
		}
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.transit(ctx, req.AfterSaleID, domain.AfterSaleRefunding, to, refundStatus.Remark()); err != nil {
				return err
			}
			ok, err := s.afterSales.UpdateRefundResult(ctx, req.AfterSaleID, req.BatchNo,
				domain.RefundUnRefund, refundStatus, *req.RefundTime, refundStatus.Remark())
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrRepeatCallback
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyRefund(ctx, afterSale, succeeded)
	return &Result{OrderID: afterSale.OrderID, AfterSaleID: afterSale.AfterSaleID}, nil
}

// notifyRefund 短信和 APP 通知都是尽力而为，失败只记录日志
func (s *AfterSaleService) notifyRefund(ctx context.Context, afterSale *domain.AfterSaleCase, succeeded bool) {
	status, message := domain.RefundSuccess, "您的退款已到账"
	if !succeeded {
		status, message = domain.RefundFail, "您的退款未能完成，请联系客服"
	}
	for _, channel := range []string{domain.ChannelSMS, domain.ChannelApp} {
		notice := &domain.RefundNotice{
			UserID:      afterSale.UserID,
			OrderID:     afterSale.OrderID,
			AfterSaleID: afterSale.AfterSaleID,
			Channel:     channel,
			Status:      status,
			Message:     message,
		}
		if err := s.notifier.RefundNotice(ctx, notice); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("after_sale_id", afterSale.AfterSaleID).Str("channel", channel).
				Msg("send refund notice failed")
		}
	}
}

func validateCallback(req *RefundCallbackRequest) error {
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return domain.ErrOrderIDEmpty
	case strings.TrimSpace(req.BatchNo) == "":
		return domain.ErrCallbackBatchNoEmpty
	case req.RefundStatus == nil:
		return domain.ErrCallbackStatusEmpty
	case req.RefundFee == nil:
		return domain.ErrCallbackFeeEmpty
	case req.TotalFee == nil:
		return domain.ErrCallbackTotalFeeEmpty
	case strings.TrimSpace(req.Sign) == "":
		return domain.ErrCallbackSignEmpty
	case strings.TrimSpace(req.TradeNo) == "":
		return domain.ErrCallbackTradeNoEmpty
	case strings.TrimSpace(req.AfterSaleID) == "":
		return domain.ErrCallbackAfterSaleIDEmpty
	case req.RefundTime == nil:
		return domain.ErrCallbackRefundTimeEmpty
	}
	return nil
}
