package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/ledger"
	"eshop/internal/pkg/outbox"
	"eshop/internal/service/order/domain"
)

func callbackRequest(refund *domain.AfterSaleRefund, status domain.RefundStatus) *RefundCallbackRequest {
	now := time.Now()
	return &RefundCallbackRequest{
		OrderID:      refund.OrderID,
		AfterSaleID:  refund.AfterSaleID,
		BatchNo:      refund.BatchNo,
		RefundStatus: intPtr(int(status)),
		RefundFee:    int64Ptr(refund.RefundAmount),
		TotalFee:     int64Ptr(refund.RefundAmount),
		Sign:         "sign",
		TradeNo:      refund.OutTradeNo,
		RefundTime:   &now,
	}
}

// refunding 取消订单并完成实际退款，返回处于退款中的售后单号
func (env *testEnv) refunding(t *testing.T, orderID string) string {
	t.Helper()
	afterSaleID := env.cancelAndProcess(t, orderID)
	msgs := env.broker.byTopic(constants.ActualRefundTopic)
	event := decodeSent[domain.ActualRefundMessage](t, msgs[len(msgs)-1])
	if _, err := env.svc.RefundMoney(context.Background(), &event); err != nil {
		t.Fatalf("refund money: %v", err)
	}
	return afterSaleID
}

func TestRefundMoney(t *testing.T) {
	ctx := context.Background()

	t.Run("last refund with coupon releases coupon", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		afterSaleID := env.refunding(t, "o1")

		if len(env.payment.requests) != 1 {
			t.Fatalf("expected 1 payment refund, got %d", len(env.payment.requests))
		}
		refund, _ := env.afterSales.FindRefund(ctx, afterSaleID)
		if req := env.payment.requests[0]; req.BatchNo != refund.BatchNo || req.RefundAmount != 2700 {
			t.Errorf("unexpected payment request: %+v", req)
		}
		c, _ := env.afterSales.FindByID(ctx, afterSaleID)
		if c.Status != domain.AfterSaleRefunding {
			t.Errorf("expected refunding, got %s", c.Status)
		}

		coupons := env.broker.byTopic(constants.ReleaseCouponTopic)
		if len(coupons) != 1 {
			t.Fatalf("expected 1 release-coupon message, got %d", len(coupons))
		}
		if msg := decodeSent[domain.ReleaseCouponMessage](t, coupons[0]); msg.CouponID != "c1" || msg.AfterSaleID != afterSaleID {
			t.Errorf("unexpected release coupon message: %+v", msg)
		}
	})

	t.Run("redelivery does not refund twice", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		env.refunding(t, "o1")

		event := decodeSent[domain.ActualRefundMessage](t, env.broker.byTopic(constants.ActualRefundTopic)[0])
		res, err := env.svc.RefundMoney(ctx, &event)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.AlreadyProcessed {
			t.Error("expected already processed")
		}
		if len(env.payment.requests) != 1 {
			t.Errorf("expected a single payment refund, got %d", len(env.payment.requests))
		}
	})

	t.Run("redelivery after send failure pays once", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		afterSaleID := env.cancelAndProcess(t, "o1")
		event := decodeSent[domain.ActualRefundMessage](t, env.broker.byTopic(constants.ActualRefundTopic)[0])

		env.outboxStore.SaveErr = errors.New("db down")
		if _, err := env.svc.RefundMoney(ctx, &event); !errors.Is(err, outbox.ErrSendFailed) {
			t.Fatalf("expected ErrSendFailed, got %v", err)
		}
		c, _ := env.afterSales.FindByID(ctx, afterSaleID)
		if c.Status != domain.AfterSaleReviewPass {
			t.Fatalf("expected review pass after send failure, got %s", c.Status)
		}

		env.outboxStore.SaveErr = nil
		res, err := env.svc.RefundMoney(ctx, &event)
		if err != nil {
			t.Fatalf("redelivery: %v", err)
		}
		if res.AlreadyProcessed {
			t.Error("redelivery must finish the status change")
		}
		if len(env.payment.requests) != 1 {
			t.Errorf("expected a single payment refund, got %d", len(env.payment.requests))
		}
		c, _ = env.afterSales.FindByID(ctx, afterSaleID)
		if c.Status != domain.AfterSaleRefunding {
			t.Errorf("expected refunding, got %s", c.Status)
		}
		if n := len(env.broker.byTopic(constants.ReleaseCouponTopic)); n != 1 {
			t.Errorf("expected 1 release-coupon message, got %d", n)
		}
	})

	t.Run("unacknowledged payment is retried with the same batch", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		afterSaleID := env.cancelAndProcess(t, "o1")
		event := decodeSent[domain.ActualRefundMessage](t, env.broker.byTopic(constants.ActualRefundTopic)[0])

		env.payment.err = errors.New("timeout")
		if _, err := env.svc.RefundMoney(ctx, &event); !errors.Is(err, domain.ErrPaymentRefundFailed) {
			t.Fatalf("expected ErrPaymentRefundFailed, got %v", err)
		}
		entry, _ := env.ledger.Find(ctx, afterSaleID, opPaymentRefund)
		if entry == nil || entry.Status != ledger.StatusPending {
			t.Fatalf("expected pending payment entry, got %+v", entry)
		}

		env.payment.err = nil
		if _, err := env.svc.RefundMoney(ctx, &event); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if len(env.payment.requests) != 2 || env.payment.requests[0].BatchNo != env.payment.requests[1].BatchNo {
			t.Errorf("expected the same batch to be retried, got %+v", env.payment.requests)
		}
		entry, _ = env.ledger.Find(ctx, afterSaleID, opPaymentRefund)
		if entry.Status != ledger.StatusCompleted {
			t.Errorf("expected completed payment entry, got %s", entry.Status)
		}
	})

	t.Run("order without coupon", func(t *testing.T) {
		order := twoItemOrder("o1", domain.OrderPaid)
		order.CouponID = ""
		env := newTestEnv(t, order)
		env.refunding(t, "o1")

		if n := len(env.broker.byTopic(constants.ReleaseCouponTopic)); n != 0 {
			t.Errorf("expected no release-coupon message, got %d", n)
		}
	})

	t.Run("payment failure keeps review pass", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		afterSaleID := env.cancelAndProcess(t, "o1")
		env.payment.err = errors.New("payment down")

		event := decodeSent[domain.ActualRefundMessage](t, env.broker.byTopic(constants.ActualRefundTopic)[0])
		_, err := env.svc.RefundMoney(ctx, &event)
		if !errors.Is(err, domain.ErrPaymentRefundFailed) {
			t.Fatalf("expected ErrPaymentRefundFailed, got %v", err)
		}
		c, _ := env.afterSales.FindByID(ctx, afterSaleID)
		if c.Status != domain.AfterSaleReviewPass {
			t.Errorf("expected review pass, got %s", c.Status)
		}
	})

	t.Run("case not reviewed", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderSigned))
		res, err := env.svc.ApplyReturnGoods(ctx, returnRequest("o1", "A"))
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		_, err = env.svc.RefundMoney(ctx, &domain.ActualRefundMessage{OrderID: "o1", AfterSaleID: res.AfterSaleID})
		if !errors.Is(err, domain.ErrAfterSaleStatusIllegal) {
			t.Errorf("expected ErrAfterSaleStatusIllegal, got %v", err)
		}
	})
}

func TestReleaseCoupon(t *testing.T) {
	ctx := context.Background()
	msg := &domain.ReleaseCouponMessage{OrderID: "o1", AfterSaleID: "as1", UserID: "u1", CouponID: "c1"}

	t.Run("released once", func(t *testing.T) {
		env := newTestEnv(t)
		if _, err := env.svc.ReleaseCoupon(ctx, msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		res, err := env.svc.ReleaseCoupon(ctx, msg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.AlreadyProcessed {
			t.Error("expected already processed")
		}
		if len(env.coupon.released) != 1 {
			t.Errorf("expected coupon released once, got %d", len(env.coupon.released))
		}
	})

	t.Run("no coupon", func(t *testing.T) {
		env := newTestEnv(t)
		res, err := env.svc.ReleaseCoupon(ctx, &domain.ReleaseCouponMessage{OrderID: "o1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.AlreadyProcessed || len(env.coupon.released) != 0 {
			t.Errorf("unexpected result %+v, released %v", res, env.coupon.released)
		}
	})

	t.Run("failure can be retried", func(t *testing.T) {
		env := newTestEnv(t)
		env.coupon.err = errors.New("promotion down")
		if _, err := env.svc.ReleaseCoupon(ctx, msg); !errors.Is(err, domain.ErrCouponReleaseFailed) {
			t.Fatalf("expected ErrCouponReleaseFailed, got %v", err)
		}
		env.coupon.err = nil
		res, err := env.svc.ReleaseCoupon(ctx, msg)
		if err != nil {
			t.Fatalf("retry: %v", err)
		}
		if res.AlreadyProcessed || len(env.coupon.released) != 1 {
			t.Errorf("retry should release the coupon, got %+v", res)
		}
	})
}

func TestReceiveRefundCallback(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		afterSaleID := env.refunding(t, "o1")
		refund, _ := env.afterSales.FindRefund(ctx, afterSaleID)

		if _, err := env.svc.ReceiveRefundCallback(ctx, callbackRequest(refund, domain.RefundSuccess)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c, _ := env.afterSales.FindByID(ctx, afterSaleID)
		if c.Status != domain.AfterSaleRefunded {
			t.Errorf("expected refunded, got %s", c.Status)
		}
		refund, _ = env.afterSales.FindRefund(ctx, afterSaleID)
		if refund.RefundStatus != domain.RefundSuccess || refund.RefundPayTime == nil {
			t.Errorf("unexpected refund: %+v", refund)
		}
		if len(env.notifier.notices) != 2 {
			t.Errorf("expected sms and app notices, got %d", len(env.notifier.notices))
		}

		_, err := env.svc.ReceiveRefundCallback(ctx, callbackRequest(refund, domain.RefundSuccess))
		if !errors.Is(err, domain.ErrRepeatCallback) {
			t.Errorf("expected ErrRepeatCallback, got %v", err)
		}
	})

	t.Run("failure", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		afterSaleID := env.refunding(t, "o1")
		refund, _ := env.afterSales.FindRefund(ctx, afterSaleID)

		if _, err := env.svc.ReceiveRefundCallback(ctx, callbackRequest(refund, domain.RefundFail)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c, _ := env.afterSales.FindByID(ctx, afterSaleID)
		if c.Status != domain.AfterSaleFailed {
			t.Errorf("expected failed, got %s", c.Status)
		}
		if env.notifier.notices[0].Status != domain.RefundFail {
			t.Errorf("expected failure notice, got %+v", env.notifier.notices[0])
		}
	})

	t.Run("batch mismatch", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		afterSaleID := env.refunding(t, "o1")
		refund, _ := env.afterSales.FindRefund(ctx, afterSaleID)
		req := callbackRequest(refund, domain.RefundSuccess)
		req.BatchNo = "other"

		if _, err := env.svc.ReceiveRefundCallback(ctx, req); !errors.Is(err, domain.ErrRepeatCallback) {
			t.Errorf("expected ErrRepeatCallback, got %v", err)
		}
		c, _ := env.afterSales.FindByID(ctx, afterSaleID)
		if c.Status != domain.AfterSaleRefunding {
			t.Errorf("status should not change, got %s", c.Status)
		}
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		refund := &domain.AfterSaleRefund{OrderID: "o1", AfterSaleID: "as1", BatchNo: "b1", OutTradeNo: "t1"}
		tests := []struct {
			name   string
			modify func(r *RefundCallbackRequest)
			want   error
		}{
			{"batch", func(r *RefundCallbackRequest) { r.BatchNo = "" }, domain.ErrCallbackBatchNoEmpty},
			{"status", func(r *RefundCallbackRequest) { r.RefundStatus = nil }, domain.ErrCallbackStatusEmpty},
			{"sign", func(r *RefundCallbackRequest) { r.Sign = "" }, domain.ErrCallbackSignEmpty},
			{"after sale", func(r *RefundCallbackRequest) { r.AfterSaleID = "" }, domain.ErrCallbackAfterSaleIDEmpty},
			{"refund time", func(r *RefundCallbackRequest) { r.RefundTime = nil }, domain.ErrCallbackRefundTimeEmpty},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := callbackRequest(refund, domain.RefundSuccess)
				tt.modify(req)
				if _, err := env.svc.ReceiveRefundCallback(ctx, req); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}
