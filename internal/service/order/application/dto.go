// internal/service/order/application/dto.go
package application

import (
	"time"

	"eshop/internal/service/order/domain"
)

// CancelOrderRequest 取消订单。数值字段用指针区分"未传"与零值
type CancelOrderRequest struct {
	OrderID            string `json:"orderId"`
	UserID             string `json:"userId"`
	BusinessIdentifier *int   `json:"businessIdentifier"`
	CancelType         *int   `json:"cancelType"`
	OrderType          *int   `json:"orderType"`
	OrderStatus        *int   `json:"orderStatus"`
}

// RefundCallbackRequest 支付服务的退款回调
type RefundCallbackRequest struct {
	OrderID      string     `json:"orderId"`
	AfterSaleID  string     `json:"afterSaleId"`
	BatchNo      string     `json:"batchNo"`
	RefundStatus *int       `json:"refundStatus"`
	RefundFee    *int64     `json:"refundFee"`
	TotalFee     *int64     `json:"totalFee"`
	Sign         string     `json:"sign"`
	TradeNo      string     `json:"tradeNo"`
	RefundTime   *time.Time `json:"refundTime"`
}

// ReturnGoodsRequest 用户申请退货
type ReturnGoodsRequest struct {
	OrderID            string `json:"orderId"`
	UserID             string `json:"userId"`
	BusinessIdentifier *int   `json:"businessIdentifier"`
	ReturnGoodsCode    *int   `json:"returnGoodsCode"`
	ReturnGoodsDesc    string `json:"returnGoodsDesc"`
	SkuCode            string `json:"skuCode"`
}

// CustomerAuditRequest 客服审核结果
type CustomerAuditRequest struct {
	AfterSaleID     string `json:"afterSaleId"`
	OrderID         string `json:"orderId"`
	AuditResult     int    `json:"auditResult"`
	AuditResultDesc string `json:"auditResultDesc"`
}

type RevokeAfterSaleRequest struct {
	AfterSaleID string `json:"afterSaleId"`
}

// LackRequest 缺品请求
type LackRequest struct {
	OrderID   string               `json:"orderId"`
	LackItems []domain.LackItemReq `json:"lackItems"`
}

// Result AlreadyProcessed 表示请求之前已经执行过，本次没有任何变更
type Result struct {
	AlreadyProcessed bool   `json:"alreadyProcessed"`
	OrderID          string `json:"orderId,omitempty"`
	AfterSaleID      string `json:"afterSaleId,omitempty"`
}

// 幂等台账中订单维度的操作
const (
	opCancelRefund  = "cancel-refund"
	opCouponRelease = "coupon-release"
	opLack          = "lack"
)

// 售后单维度的操作
const opPaymentRefund = "payment-refund"

// 事务消息回查函数名
const (
	checkOrderCanceled       = "order.canceled"
	checkAfterSaleCreated    = "aftersale.created"
	checkAfterSaleRefunding  = "aftersale.refunding"
	checkAfterSaleReviewPass = "aftersale.review_pass"
)

// afterSaleLedgerPayload 订单维度台账中记录生成的售后单号
type afterSaleLedgerPayload struct {
	AfterSaleID string `json:"afterSaleId"`
}

// paymentLedgerPayload 售后单维度台账中记录发起退款的批次
type paymentLedgerPayload struct {
	BatchNo      string `json:"batchNo"`
	RefundAmount int64  `json:"refundAmount"`
}
