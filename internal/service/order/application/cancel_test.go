package application

import (
	"context"
	"errors"
	"testing"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/outbox"
	"eshop/internal/service/order/domain"
)

func cancelRequest(orderID string, status domain.OrderStatus) *CancelOrderRequest {
	return &CancelOrderRequest{
		OrderID:            orderID,
		UserID:             "u1",
		BusinessIdentifier: intPtr(1),
		CancelType:         intPtr(domain.CancelTypeUser),
		OrderType:          intPtr(1),
		OrderStatus:        intPtr(int(status)),
	}
}

// cancelAndProcess 取消订单并消费 release-assets，返回生成的售后单号
func (env *testEnv) cancelAndProcess(t *testing.T, orderID string) string {
	t.Helper()
	ctx := context.Background()
	order, err := env.orders.FindByID(ctx, orderID)
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if _, err := env.svc.CancelOrder(ctx, cancelRequest(orderID, order.Status)); err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	msgs := env.broker.byTopic(constants.ReleaseAssetsTopic)
	event := decodeSent[domain.ReleaseAssetsMessage](t, msgs[len(msgs)-1])
	if err := env.svc.HandleReleaseAssets(ctx, &event); err != nil {
		t.Fatalf("handle release assets: %v", err)
	}
	refunds := env.broker.byTopic(constants.ActualRefundTopic)
	return decodeSent[domain.ActualRefundMessage](t, refunds[len(refunds)-1]).AfterSaleID
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("paid order is canceled and release assets sent", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))

		res, err := env.svc.CancelOrder(ctx, cancelRequest("o1", domain.OrderPaid))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.AlreadyProcessed {
			t.Error("first cancel should not be already processed")
		}
		if got := env.orders.status("o1"); got != domain.OrderCanceled {
			t.Errorf("expected order canceled, got %d", got)
		}
		if env.fulfillment.calls != 1 {
			t.Errorf("expected fulfillment cancel once, got %d", env.fulfillment.calls)
		}
		if len(env.orders.logs) != 1 || env.orders.logs[0].OperateType != domain.OperateManualCancel {
			t.Errorf("unexpected operate logs: %+v", env.orders.logs)
		}

		msgs := env.broker.byTopic(constants.ReleaseAssetsTopic)
		if len(msgs) != 1 {
			t.Fatalf("expected 1 release-assets message, got %d", len(msgs))
		}
		event := decodeSent[domain.ReleaseAssetsMessage](t, msgs[0])
		if event.PreStatus != domain.OrderPaid || len(event.Items) != 2 || event.CancelType != domain.CancelTypeUser {
			t.Errorf("unexpected event: %+v", event)
		}
	})

	t.Run("repeat cancel is already processed", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
		if _, err := env.svc.CancelOrder(ctx, cancelRequest("o1", domain.OrderPaid)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		res, err := env.svc.CancelOrder(ctx, cancelRequest("o1", domain.OrderPaid))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.AlreadyProcessed {
			t.Error("expected already processed")
		}
		if n := len(env.broker.byTopic(constants.ReleaseAssetsTopic)); n != 1 {
			t.Errorf("expected a single release-assets message, got %d", n)
		}
	})

	t.Run("unpaid order skips fulfillment cancel", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderCreated))
		if _, err := env.svc.CancelOrder(ctx, cancelRequest("o1", domain.OrderCreated)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.fulfillment.calls != 0 {
			t.Errorf("fulfillment should not be canceled, got %d calls", env.fulfillment.calls)
		}
	})

	t.Run("fulfillment failure does not block cancel", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderFulfill))
		env.fulfillment.err = errors.New("fulfill down")
		if _, err := env.svc.CancelOrder(ctx, cancelRequest("o1", domain.OrderFulfill)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := env.orders.status("o1"); got != domain.OrderCanceled {
			t.Errorf("expected order canceled, got %d", got)
		}
	})

	t.Run("out stocked order cannot cancel", func(t *testing.T) {
		env := newTestEnv(t, twoItemOrder("o1", domain.OrderOutStock))
		_, err := env.svc.CancelOrder(ctx, cancelRequest("o1", domain.OrderPaid))
		if !errors.Is(err, domain.ErrCannotCancel) {
			t.Fatalf("expected ErrCannotCancel, got %v", err)
		}
		if n := len(env.outboxStore.ByTopic(constants.ReleaseAssetsTopic)); n != 0 {
			t.Errorf("no message should be stored, got %d", n)
		}
	})

	t.Run("validation", func(t *testing.T) {
		env := newTestEnv(t)
		tests := []struct {
			name   string
			modify func(r *CancelOrderRequest)
			want   error
		}{
			{"status missing", func(r *CancelOrderRequest) { r.OrderStatus = nil }, domain.ErrOrderStatusEmpty},
			{"already canceled", func(r *CancelOrderRequest) { r.OrderStatus = intPtr(int(domain.OrderCanceled)) }, domain.ErrOrderStatusCanceled},
			{"status past out stock", func(r *CancelOrderRequest) { r.OrderStatus = intPtr(int(domain.OrderSigned)) }, domain.ErrOrderStatusChanged},
			{"order id missing", func(r *CancelOrderRequest) { r.OrderID = " " }, domain.ErrCancelOrderIDEmpty},
			{"cancel type missing", func(r *CancelOrderRequest) { r.CancelType = nil }, domain.ErrCancelTypeEmpty},
			{"user missing", func(r *CancelOrderRequest) { r.UserID = "" }, domain.ErrUserIDEmpty},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := cancelRequest("o1", domain.OrderPaid)
				tt.modify(req)
				if _, err := env.svc.CancelOrder(ctx, req); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}

func TestHandleReleaseAssets(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
	afterSaleID := env.cancelAndProcess(t, "o1")

	if n := len(env.broker.byTopic(constants.ReleaseInventoryTopic)); n != 1 {
		t.Errorf("expected 1 release-inventory message, got %d", n)
	}
	c, err := env.afterSales.FindByID(ctx, afterSaleID)
	if err != nil {
		t.Fatalf("find after sale: %v", err)
	}
	if c.Status != domain.AfterSaleReviewPass || c.TypeDetail != domain.TypeDetailUserCancel || c.RealRefundAmount != 2700 {
		t.Errorf("unexpected after sale: %+v", c)
	}
	if len(c.Items) != 2 {
		t.Errorf("expected 2 after sale items, got %d", len(c.Items))
	}
	refund, err := env.afterSales.FindRefund(ctx, afterSaleID)
	if err != nil {
		t.Fatalf("find refund: %v", err)
	}
	if refund.RefundStatus != domain.RefundUnRefund || refund.RefundAmount != 2700 || len(refund.BatchNo) != len("o1")+10 {
		t.Errorf("unexpected refund: %+v", refund)
	}

	// 重复消息: 库存释放可以重发，退款售后单只创建一次
	event := decodeSent[domain.ReleaseAssetsMessage](t, env.broker.byTopic(constants.ReleaseAssetsTopic)[0])
	if err := env.svc.HandleReleaseAssets(ctx, &event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if env.afterSales.count() != 1 {
		t.Errorf("expected 1 after sale, got %d", env.afterSales.count())
	}
	if n := len(env.broker.byTopic(constants.ActualRefundTopic)); n != 1 {
		t.Errorf("expected 1 actual-refund message, got %d", n)
	}

	res, err := env.svc.ProcessCancelOrder(ctx, &event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.AlreadyProcessed || res.AfterSaleID != afterSaleID {
		t.Errorf("expected already processed with %s, got %+v", afterSaleID, res)
	}
}

func TestStatusCheck(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, twoItemOrder("o1", domain.OrderPaid))
	afterSaleID := env.cancelAndProcess(t, "o1")

	check := env.svc.statusCheck(domain.AfterSaleReviewPass, domain.AfterSaleRefunding)
	if got := check(ctx, &outbox.Message{CorrelationID: afterSaleID}); got != outbox.StateRollback {
		t.Errorf("review pass case has not committed refunding, got %s", got)
	}
	if _, err := env.afterSales.UpdateStatus(ctx, afterSaleID, domain.AfterSaleReviewPass, domain.AfterSaleRefunding); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if got := check(ctx, &outbox.Message{CorrelationID: afterSaleID}); got != outbox.StateCommit {
		t.Errorf("expected commit, got %s", got)
	}
	if got := check(ctx, &outbox.Message{CorrelationID: "missing"}); got != outbox.StateRollback {
		t.Errorf("missing case should roll back, got %s", got)
	}
}
