package application

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"eshop/internal/pkg/ledger"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/outbox"
	"eshop/internal/pkg/persistence"
	"eshop/internal/service/order/domain"
	"eshop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel"
)

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	logs   []domain.OrderOperateLog
}

func newFakeOrders(orders ...*domain.Order) *fakeOrders {
	r := &fakeOrders{orders: make(map[string]*domain.Order)}
	for _, o := range orders {
		r.orders[o.OrderID] = o
	}
	return r
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}

func (r *fakeOrders) Save(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.OrderID] = copyOrder(order)
	return nil
}

func (r *fakeOrders) FindByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *fakeOrders) UpdateStatus(_ context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *fakeOrders) MarkCanceled(_ context.Context, orderID string, from domain.OrderStatus, cancelType int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = domain.OrderCanceled
	o.CancelType = cancelType
	o.CancelTime = &at
	return true, nil
}

func (r *fakeOrders) UpdateExt(_ context.Context, orderID, extJSON string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
		o.ExtJSON = extJSON
	}
	return nil
}

func (r *fakeOrders) SaveOperateLog(_ context.Context, log *domain.OrderOperateLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *fakeOrders) status(orderID string) domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[orderID].Status
}

type fakeAfterSales struct {
	mu      sync.Mutex
	ids     []string
	cases   map[string]*domain.AfterSaleCase
	refunds map[string]*domain.AfterSaleRefund
	logs    map[string][]*domain.AfterSaleLog
}

func newFakeAfterSales() *fakeAfterSales {
	return &fakeAfterSales{
		cases:   make(map[string]*domain.AfterSaleCase),
		refunds: make(map[string]*domain.AfterSaleRefund),
		logs:    make(map[string][]*domain.AfterSaleLog),
	}
}

func copyCase(c *domain.AfterSaleCase) *domain.AfterSaleCase {
	cp := *c
	cp.Items = append([]domain.AfterSaleItem(nil), c.Items...)
	return &cp
}

func (r *fakeAfterSales) Save(_ context.Context, c *domain.AfterSaleCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.AfterSaleID]; !ok {
		r.ids = append(r.ids, c.AfterSaleID)
	}
	r.cases[c.AfterSaleID] = copyCase(c)
	return nil
}

func (r *fakeAfterSales) FindByID(_ context.Context, afterSaleID string) (*domain.AfterSaleCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[afterSaleID]
	if !ok {
		return nil, domain.ErrAfterSaleNotFound
	}
	return copyCase(c), nil
}

func (r *fakeAfterSales) ListByOrder(_ context.Context, orderID string) ([]*domain.AfterSaleCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AfterSaleCase
	for _, id := range r.ids {
		if c := r.cases[id]; c.OrderID == orderID {
			out = append(out, copyCase(c))
		}
	}
	return out, nil
}

func (r *fakeAfterSales) UpdateStatus(_ context.Context, afterSaleID string, from, to domain.AfterSaleStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[afterSaleID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (r *fakeAfterSales) UpdateReview(_ context.Context, afterSaleID string, from, to domain.AfterSaleStatus, review domain.Review) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[afterSaleID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.ReviewTime = &review.Time
	c.ReviewSource = review.Source
	c.ReviewReasonCode = review.ReasonCode
	c.ReviewReason = review.Reason
	return true, nil
}

func (r *fakeAfterSales) SaveRefund(_ context.Context, refund *domain.AfterSaleRefund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *refund
	r.refunds[refund.AfterSaleID] = &cp
	return nil
}

func (r *fakeAfterSales) FindRefund(_ context.Context, afterSaleID string) (*domain.AfterSaleRefund, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refund, ok := r.refunds[afterSaleID]
	if !ok {
		return nil, domain.ErrAfterSaleRefundNotFound
	}
	cp := *refund
	return &cp, nil
}

func (r *fakeAfterSales) UpdateRefundResult(_ context.Context, afterSaleID, batchNo string, from, to domain.RefundStatus, payTime time.Time, remark string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	refund, ok := r.refunds[afterSaleID]
	if !ok || refund.BatchNo != batchNo || refund.RefundStatus != from {
		return false, nil
	}
	refund.RefundStatus = to
	refund.RefundPayTime = &payTime
	refund.Remark = remark
	return true, nil
}

func (r *fakeAfterSales) SaveLog(_ context.Context, log *domain.AfterSaleLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[log.AfterSaleID] = append(r.logs[log.AfterSaleID], log)
	return nil
}

func (r *fakeAfterSales) ListLogs(_ context.Context, afterSaleID string) ([]*domain.AfterSaleLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.AfterSaleLog(nil), r.logs[afterSaleID]...), nil
}

func (r *fakeAfterSales) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

type fakeFulfillment struct {
	err   error
	calls int
}

func (f *fakeFulfillment) Cancel(context.Context, *domain.Order) error {
	f.calls++
	return f.err
}

type fakePayment struct {
	err      error
	requests []*port.RefundRequest
}

func (f *fakePayment) Refund(_ context.Context, req *port.RefundRequest) error {
	f.requests = append(f.requests, req)
	return f.err
}

type fakeCoupon struct {
	err      error
	released []string
}

func (f *fakeCoupon) Release(_ context.Context, _, couponID string) error {
	if f.err != nil {
		return f.err
	}
	f.released = append(f.released, couponID)
	return nil
}

type fakeCatalog struct {
	skus map[string]*port.ProductSku
	err  error
}

func (f *fakeCatalog) GetSku(_ context.Context, skuCode, _ string) (*port.ProductSku, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.skus[skuCode], nil
}

type fakeNotifier struct {
	notices []*domain.RefundNotice
}

func (f *fakeNotifier) RefundNotice(_ context.Context, notice *domain.RefundNotice) error {
	f.notices = append(f.notices, notice)
	return nil
}

type sentMessage struct {
	topic   string
	key     string
	payload []byte
}

type fakeBroker struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (b *fakeBroker) Send(_ context.Context, topic, key string, value []byte, _ map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sentMessage{topic: topic, key: key, payload: value})
	return nil
}

func (b *fakeBroker) byTopic(topic string) []sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentMessage
	for _, m := range b.sent {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// testEnv 一套内存实现的依赖
type testEnv struct {
	svc         *AfterSaleService
	orders      *fakeOrders
	afterSales  *fakeAfterSales
	ledger      *ledger.Memory
	outboxStore *outbox.MemoryStore
	broker      *fakeBroker
	fulfillment *fakeFulfillment
	payment     *fakePayment
	coupon      *fakeCoupon
	catalog     *fakeCatalog
	notifier    *fakeNotifier
}

func newTestEnv(t *testing.T, orders ...*domain.Order) *testEnv {
	t.Helper()
	policy, err := domain.NewLackPolicy("")
	if err != nil {
		t.Fatalf("lack policy: %v", err)
	}
	env := &testEnv{
		orders:      newFakeOrders(orders...),
		afterSales:  newFakeAfterSales(),
		ledger:      ledger.NewMemory(),
		outboxStore: outbox.NewMemoryStore(),
		broker:      &fakeBroker{},
		fulfillment: &fakeFulfillment{},
		payment:     &fakePayment{},
		coupon:      &fakeCoupon{},
		catalog:     &fakeCatalog{skus: map[string]*port.ProductSku{}},
		notifier:    &fakeNotifier{},
	}
	env.svc = NewAfterSaleService(Dependencies{
		Orders:      env.orders,
		AfterSales:  env.afterSales,
		Ledger:      env.ledger,
		Locker:      lock.NewLocalLocker(time.Minute),
		Tx:          persistence.NoopTransactor{},
		Outbox:      outbox.NewCoordinator(env.outboxStore, env.broker),
		Fulfillment: env.fulfillment,
		Payment:     env.payment,
		Coupon:      env.coupon,
		Catalog:     env.catalog,
		Notifier:    env.notifier,
		LackPolicy:  policy,
		Tracer:      otel.Tracer("test"),
	})
	return env
}

func decodeSent[T any](t *testing.T, m sentMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(m.payload, &v); err != nil {
		t.Fatalf("decode %s payload: %v", m.topic, err)
	}
	return v
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

// twoItemOrder 两个条目、用了优惠券的已支付订单，金额单位为分
func twoItemOrder(id string, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		OrderID:       id,
		UserID:        "u1",
		SellerID:      "s1",
		Status:        status,
		PayType:       10,
		TotalAmount:   3000,
		PayAmount:     2700,
		FreightAmount: 500,
		CouponID:      "c1",
		OutTradeNo:    "t-" + id,
		Items: []domain.OrderItem{
			{OrderItemID: id + "-1", OrderID: id, SkuCode: "A", SaleQuantity: 3, SalePrice: 500, OriginAmount: 1500, PayAmount: 1200},
			{OrderItemID: id + "-2", OrderID: id, SkuCode: "B", SaleQuantity: 1, SalePrice: 1000, OriginAmount: 1000, PayAmount: 1000},
		},
	}
}
