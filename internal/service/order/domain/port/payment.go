package port

import "context"

// RefundRequest 退款请求，金额单位为分
type RefundRequest struct {
	OrderID      string `json:"orderId"`
	AfterSaleID  string `json:"afterSaleId"`
	BatchNo      string `json:"batchNo"`
	OutTradeNo   string `json:"outTradeNo"`
	RefundAmount int64  `json:"refundAmount"`
}

// PaymentService 支付服务的出站端口。
// 退款结果通过回调异步通知。
type PaymentService interface {
	Refund(ctx context.Context, req *RefundRequest) error
}
