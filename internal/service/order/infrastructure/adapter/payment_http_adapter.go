package adapter

import (
	"context"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/httpclient"
	"eshop/internal/service/order/domain/port"
)

// PaymentHTTPAdapter 实现了 port.PaymentService 接口。
// 支付服务按 batchNo 幂等，重复发起同一批次的退款不会重复打款。
type PaymentHTTPAdapter struct {
	client *httpclient.Client
}

func NewPaymentHTTPAdapter(client *httpclient.Client) *PaymentHTTPAdapter {
	return &PaymentHTTPAdapter{client: client}
}

func (a *PaymentHTTPAdapter) Refund(ctx context.Context, req *port.RefundRequest) error {
	return a.client.CallService(ctx, constants.PaymentService, constants.PaymentRefundPath, req, nil)
}
