package application

import (
	"context"
	"errors"
	"testing"

	"eshop/internal/pkg/constants"
	"eshop/internal/service/order/domain"
	"eshop/internal/service/order/domain/port"
)

func lackRequest(orderID string, items ...domain.LackItemReq) *LackRequest {
	return &LackRequest{OrderID: orderID, LackItems: items}
}

func newLackEnv(t *testing.T, status domain.OrderStatus) *testEnv {
	t.Helper()
	env := newTestEnv(t, twoItemOrder("o1", status))
	env.catalog.skus["A"] = &port.ProductSku{SkuCode: "A", ProductName: "苹果", SalePrice: 500}
	env.catalog.skus["B"] = &port.ProductSku{SkuCode: "B", ProductName: "香蕉", SalePrice: 1000}
	return env
}

func TestLack(t *testing.T) {
	ctx := context.Background()

	t.Run("out stocked order", func(t *testing.T) {
		env := newLackEnv(t, domain.OrderOutStock)
		res, err := env.svc.Lack(ctx, lackRequest("o1", domain.LackItemReq{SkuCode: "A", LackNum: 1}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		c, _ := env.afterSales.FindByID(ctx, res.AfterSaleID)
		if c.Status != domain.AfterSaleReviewPass || c.TypeDetail != domain.TypeDetailLackRefund {
			t.Errorf("unexpected after sale: %+v", c)
		}
		if c.ApplyRefundAmount != 500 || c.RealRefundAmount != 400 {
			t.Errorf("expected apply 500 real 400, got %d %d", c.ApplyRefundAmount, c.RealRefundAmount)
		}
		if len(c.Items) != 1 || c.Items[0].ProductName != "苹果" || c.Items[0].ReturnQuantity != 1 {
			t.Errorf("unexpected items: %+v", c.Items)
		}

		order, _ := env.orders.FindByID(ctx, "o1")
		ext := order.Ext()
		if !ext.LackFlag || ext.LackInfo == nil || ext.LackInfo.AfterSaleID != res.AfterSaleID {
			t.Errorf("unexpected order ext: %+v", ext)
		}
		if order.Status != domain.OrderOutStock {
			t.Errorf("lack must not change order status, got %d", order.Status)
		}
		if len(env.orders.logs) != 1 || env.orders.logs[0].OperateType != domain.OperateLack {
			t.Errorf("expected one lack operate log, got %+v", env.orders.logs)
		}

		msgs := env.broker.byTopic(constants.ActualRefundTopic)
		if len(msgs) != 1 {
			t.Fatalf("expected 1 actual-refund message, got %d", len(msgs))
		}
		if event := decodeSent[domain.ActualRefundMessage](t, msgs[0]); event.AfterSaleID != res.AfterSaleID || event.LastReturnGoods {
			t.Errorf("unexpected refund message: %+v", event)
		}

		again, err := env.svc.Lack(ctx, lackRequest("o1", domain.LackItemReq{SkuCode: "A", LackNum: 1}))
		if err != nil || !again.AlreadyProcessed || again.AfterSaleID != res.AfterSaleID {
			t.Errorf("repeat lack should return the same case, got %+v %v", again, err)
		}
		if env.afterSales.count() != 1 {
			t.Errorf("expected 1 after sale, got %d", env.afterSales.count())
		}
	})

	t.Run("multiple items", func(t *testing.T) {
		env := newLackEnv(t, domain.OrderOutStock)
		env.orders.orders["o1"].Items[1].SaleQuantity = 2
		res, err := env.svc.Lack(ctx, lackRequest("o1",
			domain.LackItemReq{SkuCode: "A", LackNum: 2},
			domain.LackItemReq{SkuCode: "B", LackNum: 1},
		))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c, _ := env.afterSales.FindByID(ctx, res.AfterSaleID)
		if c.ApplyRefundAmount != 500*2+1000 || c.RealRefundAmount != 800+500 {
			t.Errorf("unexpected amounts %d %d", c.ApplyRefundAmount, c.RealRefundAmount)
		}
	})

	failures := []struct {
		name   string
		status domain.OrderStatus
		setup  func(env *testEnv)
		items  []domain.LackItemReq
		want   error
	}{
		{
			name:   "lack whole item",
			status: domain.OrderOutStock,
			items:  []domain.LackItemReq{{SkuCode: "A", LackNum: 3}},
			want:   domain.ErrLackNumTooLarge,
		},
		{
			name:   "sku missing from catalog",
			status: domain.OrderOutStock,
			setup:  func(env *testEnv) { delete(env.catalog.skus, "A") },
			items:  []domain.LackItemReq{{SkuCode: "A", LackNum: 1}},
			want:   domain.ErrProductSkuNotFound,
		},
		{
			name:   "sku not in order",
			status: domain.OrderOutStock,
			setup: func(env *testEnv) {
				env.catalog.skus["Z"] = &port.ProductSku{SkuCode: "Z"}
			},
			items: []domain.LackItemReq{{SkuCode: "Z", LackNum: 1}},
			want:  domain.ErrLackItemNotInOrder,
		},
		{
			name:   "order not out stocked",
			status: domain.OrderPaid,
			items:  []domain.LackItemReq{{SkuCode: "A", LackNum: 1}},
			want:   domain.ErrNotAllowLack,
		},
		{
			name:   "already lacked",
			status: domain.OrderOutStock,
			setup:  func(env *testEnv) { env.orders.orders["o1"].ExtJSON = `{"lackFlag":true}` },
			items: []domain.LackItemReq{{SkuCode: "A", LackNum: 1}},
			want:  domain.ErrNotAllowLack,
		},
		{
			name:   "catalog unavailable",
			status: domain.OrderOutStock,
			setup:  func(env *testEnv) { env.catalog.err = errors.New("connection refused") },
			items:  []domain.LackItemReq{{SkuCode: "A", LackNum: 1}},
			want:   domain.ErrCatalogQueryFailed,
		},
		{
			name:   "zero lack num",
			status: domain.OrderOutStock,
			items:  []domain.LackItemReq{{SkuCode: "A", LackNum: 0}},
			want:   domain.ErrLackNumInvalid,
		},
		{
			name:   "empty sku",
			status: domain.OrderOutStock,
			items:  []domain.LackItemReq{{LackNum: 1}},
			want:   domain.ErrLackSkuEmpty,
		},
		{
			name:   "no items",
			status: domain.OrderOutStock,
			want:   domain.ErrLackItemsEmpty,
		},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			env := newLackEnv(t, tt.status)
			if tt.setup != nil {
				tt.setup(env)
			}
			_, err := env.svc.Lack(ctx, lackRequest("o1", tt.items...))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if env.afterSales.count() != 0 {
				t.Errorf("failed lack must not create after sale")
			}
			if n := len(env.broker.byTopic(constants.ActualRefundTopic)); n != 0 {
				t.Errorf("failed lack must not publish, got %d messages", n)
			}
		})
	}
}
