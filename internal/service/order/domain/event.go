// internal/service/order/domain/event.go
package domain

import "time"

// ReleaseItem 需要归还库存的条目，字段名与库存服务保持一致
type ReleaseItem struct {
	SkuCode      string `json:"skuCode"`
	SaleQuantity int64  `json:"saleQuantity"`
}

// ReleaseAssetsMessage 订单取消后发出，驱动释放库存和取消退款
type ReleaseAssetsMessage struct {
	OrderID    string        `json:"orderId"`
	UserID     string        `json:"userId"`
	CancelType int           `json:"cancelType"`
	PreStatus  OrderStatus   `json:"preStatus"`
	Items      []ReleaseItem `json:"items"`
}

// ReleaseInventoryMessage 释放库存
type ReleaseInventoryMessage struct {
	OrderID string        `json:"orderId"`
	Items   []ReleaseItem `json:"items"`
}

// ActualRefundMessage 执行实际退款
type ActualRefundMessage struct {
	OrderID         string `json:"orderId"`
	AfterSaleID     string `json:"afterSaleId"`
	LastReturnGoods bool   `json:"lastReturnGoods"`
}

// ReleaseCouponMessage 最后一笔退款后归还优惠券
type ReleaseCouponMessage struct {
	OrderID     string `json:"orderId"`
	AfterSaleID string `json:"afterSaleId"`
	UserID      string `json:"userId"`
	CouponID    string `json:"couponId"`
}

// CustomerAuditMessage 用户提交的退货申请，交给客服审核
type CustomerAuditMessage struct {
	AfterSaleID       string `json:"afterSaleId"`
	OrderID           string `json:"orderId"`
	UserID            string `json:"userId"`
	SkuCode           string `json:"skuCode"`
	ReturnQuantity    int64  `json:"returnQuantity"`
	ApplyRefundAmount int64  `json:"applyRefundAmount"`
	RealRefundAmount  int64  `json:"realRefundAmount"`
	LastReturnGoods   bool   `json:"lastReturnGoods"`
}

// AuditPassReleaseAssetsMessage 客服审核通过后释放退货条目的库存并执行退款
type AuditPassReleaseAssetsMessage struct {
	ReleaseInventory ReleaseInventoryMessage `json:"releaseProductStock"`
	ActualRefund     ActualRefundMessage     `json:"actualRefundMessage"`
}

// WMS 物流状态
const (
	WmsOutStocked = "OUT_STOCKED"
	WmsDelivered  = "DELIVERED"
	WmsSigned     = "SIGNED"
)

// WmsShipEvent 履约侧回传的物流结果
type WmsShipEvent struct {
	OrderID     string    `json:"orderId"`
	Status      string    `json:"status"`
	OperateTime time.Time `json:"operateTime"`
	Remark      string    `json:"remark,omitempty"`
}

// 退款通知渠道
const (
	ChannelSMS = "sms"
	ChannelApp = "app"
)

// RefundNotice 退款结果通知，由 push-gateway 推送给用户
type RefundNotice struct {
	UserID      string       `json:"userId"`
	OrderID     string       `json:"orderId"`
	AfterSaleID string       `json:"afterSaleId"`
	Channel     string       `json:"channel"`
	Status      RefundStatus `json:"refundStatus"`
	Message     string       `json:"message"`
}
