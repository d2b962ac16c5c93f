package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"eshop/internal/pkg/persistence"
	"eshop/internal/pkg/retry"
	"eshop/internal/pkg/testutil"
	"eshop/internal/service/order/domain"

	"gorm.io/gorm"
)

var orderTables = []string{
	"order_info", "order_item", "order_operate_log",
	"after_sale_info", "after_sale_item", "after_sale_refund", "after_sale_log",
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewTestDB(t, Models()...)
	testutil.Truncate(t, db, orderTables...)
	return db
}

func testOrder() *domain.Order {
	return &domain.Order{
		OrderID:            "o1",
		UserID:             "u1",
		SellerID:           "s1",
		BusinessIdentifier: 1,
		OrderType:          1,
		Status:             domain.OrderPaid,
		PayType:            10,
		TotalAmount:        3000,
		PayAmount:          2700,
		FreightAmount:      500,
		CouponID:           "c1",
		OutTradeNo:         "t1",
		Items: []domain.OrderItem{
			{OrderItemID: "o1-1", OrderID: "o1", SkuCode: "A", SaleQuantity: 3, SalePrice: 500, OriginAmount: 1500, PayAmount: 1200},
			{OrderItemID: "o1-2", OrderID: "o1", SkuCode: "B", SaleQuantity: 1, SalePrice: 1000, OriginAmount: 1000, PayAmount: 1000},
		},
	}
}

func TestGormOrderRepository_Integration(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	if _, err := repo.FindByID(ctx, "o1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Save(ctx, testOrder()); err != nil {
		t.Fatalf("save: %v", err)
	}

	order, err := repo.FindByID(ctx, "o1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(order.Items) != 2 || order.Items[0].SkuCode != "A" || order.PayAmount != 2700 {
		t.Fatalf("unexpected order %+v", order)
	}

	if ok, err := repo.UpdateStatus(ctx, "o1", domain.OrderCreated, domain.OrderOutStock); err != nil || ok {
		t.Fatalf("update from wrong status must miss: ok=%v err=%v", ok, err)
	}
	at := time.Now().Truncate(time.Second)
	if ok, err := repo.MarkCanceled(ctx, "o1", domain.OrderPaid, 1, at); err != nil || !ok {
		t.Fatalf("mark canceled: ok=%v err=%v", ok, err)
	}
	if err := repo.UpdateExt(ctx, "o1", `{"lackFlag":true}`); err != nil {
		t.Fatalf("update ext: %v", err)
	}
	if err := repo.SaveOperateLog(ctx, &domain.OrderOperateLog{
		OrderID:       "o1",
		OperateType:   domain.OperateManualCancel,
		PreStatus:     domain.OrderPaid,
		CurrentStatus: domain.OrderCanceled,
		Remark:        "用户取消",
	}); err != nil {
		t.Fatalf("save log: %v", err)
	}

	order, _ = repo.FindByID(ctx, "o1")
	if order.Status != domain.OrderCanceled || order.CancelType != 1 || order.CancelTime == nil || !order.IsLacked() {
		t.Fatalf("unexpected order after update %+v", order)
	}
	logs, err := repo.ListOperateLogs(ctx, "o1")
	if err != nil || len(logs) != 1 || logs[0].CurrentStatus != domain.OrderCanceled {
		t.Fatalf("unexpected logs %+v err=%v", logs, err)
	}
}

func TestGormAfterSaleRepository_Integration(t *testing.T) {
	db := newTestDB(t)
	repo := NewGormAfterSaleRepository(db)
	ctx := context.Background()
	order := testOrder()

	c := &domain.AfterSaleCase{
		AfterSaleID:       "as1",
		OrderID:           "o1",
		UserID:            "u1",
		Type:              domain.AfterSaleTypeReturnGoods,
		ApplySource:       domain.ApplySourceUserReturnGoods,
		Status:            domain.AfterSaleCommitted,
		ApplyRefundAmount: 1500,
		RealRefundAmount:  1200,
		ApplyTime:         time.Now(),
		Items:             []domain.AfterSaleItem{domain.ItemFromOrder("as1", order.Items[0])},
	}
	if err := repo.Save(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}
	refund := domain.NewRefund(order, "as1", 1200)
	if err := repo.SaveRefund(ctx, refund); err != nil {
		t.Fatalf("save refund: %v", err)
	}

	cases, err := repo.ListByOrder(ctx, "o1")
	if err != nil || len(cases) != 1 || len(cases[0].Items) != 1 || cases[0].Items[0].SkuCode != "A" {
		t.Fatalf("unexpected cases %+v err=%v", cases, err)
	}

	review := domain.Review{Time: time.Now(), Source: domain.ReviewSourceSelfMall, ReasonCode: domain.AuditAccept, Reason: "ok"}
	if ok, err := repo.UpdateReview(ctx, "as1", domain.AfterSaleCommitted, domain.AfterSaleReviewPass, review); err != nil || !ok {
		t.Fatalf("review: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.UpdateReview(ctx, "as1", domain.AfterSaleCommitted, domain.AfterSaleReviewPass, review); err != nil || ok {
		t.Fatalf("second review must miss: ok=%v err=%v", ok, err)
	}

	if ok, err := repo.UpdateRefundResult(ctx, "as1", "other", domain.RefundUnRefund, domain.RefundSuccess, time.Now(), "x"); err != nil || ok {
		t.Fatalf("batch mismatch must miss: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.UpdateRefundResult(ctx, "as1", refund.BatchNo, domain.RefundUnRefund, domain.RefundSuccess, time.Now(), domain.RefundSuccess.Remark()); err != nil || !ok {
		t.Fatalf("refund result: ok=%v err=%v", ok, err)
	}
	got, err := repo.FindRefund(ctx, "as1")
	if err != nil || got.RefundStatus != domain.RefundSuccess || got.RefundPayTime == nil {
		t.Fatalf("unexpected refund %+v err=%v", got, err)
	}
	if _, err := repo.FindRefund(ctx, "missing"); !errors.Is(err, domain.ErrAfterSaleRefundNotFound) {
		t.Fatalf("expected refund not found, got %v", err)
	}

	if err := repo.SaveLog(ctx, domain.NewAfterSaleLog("as1", domain.AfterSaleCommitted, domain.AfterSaleReviewPass, "ok")); err != nil {
		t.Fatalf("save log: %v", err)
	}
	logs, err := repo.ListLogs(ctx, "as1")
	if err != nil || len(logs) != 1 || logs[0].CurrentStatus != domain.AfterSaleReviewPass {
		t.Fatalf("unexpected logs %+v err=%v", logs, err)
	}
}

func TestGormTransactor_RollsBackOrderWrites(t *testing.T) {
	db := newTestDB(t)
	orders := NewGormOrderRepository(db)
	afterSales := NewGormAfterSaleRepository(db)
	tx := persistence.NewGormTransactor(db, retry.Config{Enabled: false})
	ctx := context.Background()

	if err := orders.Save(ctx, testOrder()); err != nil {
		t.Fatalf("save: %v", err)
	}

	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := orders.MarkCanceled(ctx, "o1", domain.OrderPaid, 1, time.Now()); err != nil {
			return err
		}
		if err := afterSales.SaveLog(ctx, domain.NewAfterSaleLog("as1", domain.AfterSaleUncreated, domain.AfterSaleReviewPass, "x")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	order, _ := orders.FindByID(ctx, "o1")
	if order.Status != domain.OrderPaid {
		t.Errorf("rolled back cancel left status %d", order.Status)
	}
	if logs, _ := afterSales.ListLogs(ctx, "as1"); len(logs) != 0 {
		t.Errorf("rolled back log still visible: %+v", logs)
	}
}
