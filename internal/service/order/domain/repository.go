// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"
)

// OrderRepository 定义了订单聚合的持久化接口。
// 实现需要在 ctx 携带事务时加入该事务。
type OrderRepository interface {
	// Save 保存订单及条目
	Save(ctx context.Context, order *Order) error

	// FindByID 连同条目一起加载，不存在时返回 ErrOrderNotFound
	FindByID(ctx context.Context, orderID string) (*Order, error)

	// UpdateStatus 条件更新订单状态，返回是否命中
	UpdateStatus(ctx context.Context, orderID string, from, to OrderStatus) (bool, error)

	// MarkCanceled 从 from 状态取消订单
	MarkCanceled(ctx context.Context, orderID string, from OrderStatus, cancelType int, at time.Time) (bool, error)

	// UpdateExt 覆盖扩展信息
	UpdateExt(ctx context.Context, orderID, extJSON string) error

	SaveOperateLog(ctx context.Context, log *OrderOperateLog) error
}

// AfterSaleRepository 售后单、退款单与日志的持久化接口
type AfterSaleRepository interface {
	// Save 保存售后单及条目
	Save(ctx context.Context, c *AfterSaleCase) error

	// FindByID 连同条目一起加载，不存在时返回 ErrAfterSaleNotFound
	FindByID(ctx context.Context, afterSaleID string) (*AfterSaleCase, error)

	// ListByOrder 订单下的所有售后单
	ListByOrder(ctx context.Context, orderID string) ([]*AfterSaleCase, error)

	// UpdateStatus 条件更新售后状态，返回是否命中
	UpdateStatus(ctx context.Context, afterSaleID string, from, to AfterSaleStatus) (bool, error)

	// UpdateReview 记录客服审核结果并迁移状态
	UpdateReview(ctx context.Context, afterSaleID string, from, to AfterSaleStatus, review Review) (bool, error)

	SaveRefund(ctx context.Context, refund *AfterSaleRefund) error

	// FindRefund 不存在时返回 ErrAfterSaleRefundNotFound
	FindRefund(ctx context.Context, afterSaleID string) (*AfterSaleRefund, error)

	// UpdateRefundResult 只更新批次号匹配且处于 from 状态的退款单
	UpdateRefundResult(ctx context.Context, afterSaleID, batchNo string, from, to RefundStatus, payTime time.Time, remark string) (bool, error)

	SaveLog(ctx context.Context, log *AfterSaleLog) error
	ListLogs(ctx context.Context, afterSaleID string) ([]*AfterSaleLog, error)
}
