package port

import (
	"context"

	"eshop/internal/service/order/domain"
)

// FulfillmentService 履约服务的出站端口
type FulfillmentService interface {
	// Cancel 取消订单履约
	Cancel(ctx context.Context, order *domain.Order) error
}
