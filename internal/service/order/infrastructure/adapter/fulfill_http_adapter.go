package adapter

import (
	"context"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/httpclient"
	"eshop/internal/service/order/domain"
)

// FulfillHTTPAdapter 实现了 port.FulfillmentService 接口
type FulfillHTTPAdapter struct {
	client *httpclient.Client
}

func NewFulfillHTTPAdapter(client *httpclient.Client) *FulfillHTTPAdapter {
	return &FulfillHTTPAdapter{client: client}
}

type cancelFulfillRequest struct {
	OrderID     string `json:"orderId"`
	OrderStatus int    `json:"orderStatus"`
}

// Cancel 通知履约服务取消订单履约
func (a *FulfillHTTPAdapter) Cancel(ctx context.Context, order *domain.Order) error {
	req := cancelFulfillRequest{OrderID: order.OrderID, OrderStatus: int(order.Status)}
	return a.client.CallService(ctx, constants.FulfillService, constants.FulfillCancelPath, req, nil)
}
