package port

import (
	"context"

	"eshop/internal/service/order/domain"
)

// Notifier 退款结果通知的出站端口
type Notifier interface {
	RefundNotice(ctx context.Context, notice *domain.RefundNotice) error
}
