package domain

import (
	"errors"
	"testing"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name     string
		current  AfterSaleStatus
		from, to AfterSaleStatus
		wantErr  error
	}{
		{"current matches from", AfterSaleReviewPass, AfterSaleReviewPass, AfterSaleRefunding, nil},
		{"already refunding", AfterSaleRefunding, AfterSaleReviewPass, AfterSaleRefunding, ErrAlreadyProcessed},
		{"already refunded", AfterSaleRefunded, AfterSaleReviewPass, AfterSaleRefunding, ErrAlreadyProcessed},
		{"not reviewed yet", AfterSaleCommitted, AfterSaleReviewPass, AfterSaleRefunding, ErrAfterSaleStatusIllegal},
		{"revoked case cannot refund", AfterSaleRevoked, AfterSaleReviewPass, AfterSaleRefunding, ErrAfterSaleStatusIllegal},
		{"edge not in machine", AfterSaleCommitted, AfterSaleCommitted, AfterSaleRefunding, ErrAfterSaleStatusIllegal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.current, tt.from, tt.to)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReached(t *testing.T) {
	if !Reached(AfterSaleReviewPass, AfterSaleReviewPass) {
		t.Error("status should reach itself")
	}
	if !Reached(AfterSaleRefunded, AfterSaleReviewPass) {
		t.Error("refunded is past review pass")
	}
	if Reached(AfterSaleCommitted, AfterSaleReviewPass) {
		t.Error("committed has not reached review pass")
	}
	if Reached(AfterSaleReviewRejected, AfterSaleReviewPass) {
		t.Error("rejected is a different branch")
	}
}

func threeItemOrder() *Order {
	return &Order{
		OrderID:       "o1",
		FreightAmount: 800,
		Items: []OrderItem{
			{SkuCode: "A", SaleQuantity: 1, SalePrice: 1000, OriginAmount: 1000, PayAmount: 900},
			{SkuCode: "B", SaleQuantity: 2, SalePrice: 500, OriginAmount: 1000, PayAmount: 950},
			{SkuCode: "C", SaleQuantity: 3, SalePrice: 300, OriginAmount: 900, PayAmount: 900},
		},
	}
}

func TestCalculateReturnAmount(t *testing.T) {
	t.Run("partial return refunds only the item", func(t *testing.T) {
		got, err := CalculateReturnAmount(threeItemOrder(), 0, "B")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Type != AfterSaleTypeReturnGoods || got.LastReturnGoods {
			t.Errorf("expected partial return, got %+v", got)
		}
		if got.ApplyRefundAmount != 1000 || got.RealRefundAmount != 950 {
			t.Errorf("unexpected amounts: apply=%d real=%d", got.ApplyRefundAmount, got.RealRefundAmount)
		}
	})

	t.Run("last item refunds freight", func(t *testing.T) {
		got, err := CalculateReturnAmount(threeItemOrder(), 2, "C")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Type != AfterSaleTypeReturnMoney || !got.LastReturnGoods {
			t.Errorf("expected last return, got %+v", got)
		}
		if got.RealRefundAmount != 900+800 {
			t.Errorf("expected item pay plus freight, got %d", got.RealRefundAmount)
		}
	})

	t.Run("single item order", func(t *testing.T) {
		order := &Order{OrderID: "o2", FreightAmount: 500, Items: []OrderItem{{SkuCode: "A", OriginAmount: 2000, PayAmount: 1800}}}
		got, err := CalculateReturnAmount(order, 0, "A")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.LastReturnGoods || got.RealRefundAmount != 2300 {
			t.Errorf("unexpected result: %+v", got)
		}
	})

	t.Run("sku not in order", func(t *testing.T) {
		_, err := CalculateReturnAmount(threeItemOrder(), 0, "Z")
		if !errors.Is(err, ErrReturnItemNotInOrder) {
			t.Errorf("expected ErrReturnItemNotInOrder, got %v", err)
		}
	})
}

func TestLackItemAmount(t *testing.T) {
	item := OrderItem{SkuCode: "A", SaleQuantity: 3, SalePrice: 1000, PayAmount: 2500}
	apply, realAmount := LackItemAmount(item, 1)
	if apply != 1000 {
		t.Errorf("expected apply 1000, got %d", apply)
	}
	// 2500/3 向下取整
	if realAmount != 833 {
		t.Errorf("expected real 833, got %d", realAmount)
	}

	apply, realAmount = SumRefundAmount([]AfterSaleItem{
		{ApplyRefundAmount: 1000, RealRefundAmount: 833},
		{ApplyRefundAmount: 200, RealRefundAmount: 150},
	})
	if apply != 1200 || realAmount != 983 {
		t.Errorf("unexpected sums: apply=%d real=%d", apply, realAmount)
	}
}

func TestLackPolicy(t *testing.T) {
	policy, err := NewLackPolicy("")
	if err != nil {
		t.Fatalf("default rule should compile: %v", err)
	}

	tests := []struct {
		name  string
		order *Order
		want  bool
	}{
		{"out stocked", &Order{Status: OrderOutStock}, true},
		{"paid only", &Order{Status: OrderPaid}, false},
		{"already lacked", &Order{Status: OrderOutStock, ExtJSON: `{"lackFlag":true}`}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := policy.Allow(tt.order)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := NewLackPolicy("status =="); err == nil {
		t.Error("expected compile error for invalid rule")
	}
}

func TestOrderExt(t *testing.T) {
	order := &Order{ExtJSON: "not json"}
	if order.IsLacked() {
		t.Error("malformed ext should read as zero value")
	}

	ext := order.Ext()
	ext.LackFlag = true
	ext.LackInfo = &LackInfo{AfterSaleID: "as1"}
	raw, err := MarshalExt(ext)
	if err != nil {
		t.Fatalf("marshal ext: %v", err)
	}
	order.ExtJSON = raw
	if !order.IsLacked() || order.Ext().LackInfo.AfterSaleID != "as1" {
		t.Errorf("unexpected ext: %s", raw)
	}
}
