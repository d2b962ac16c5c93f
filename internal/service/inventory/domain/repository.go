// internal/service/inventory/domain/repository.go
package domain

import "context"

// StockRepository 库存的持久化存储，是唯一的数据源。
// 所有方法在 ctx 携带事务时加入该事务。
type StockRepository interface {
	// FindBySku 不存在时返回 ErrStockNotFound
	FindBySku(ctx context.Context, skuCode string) (*StockRecord, error)
	// Create 已存在时返回 ErrStockExisted
	Create(ctx context.Context, record *StockRecord) error

	// Deduct 仅当 sale >= quantity 时 sale-=quantity, saled+=quantity，返回是否命中
	Deduct(ctx context.Context, skuCode string, quantity int64) (bool, error)
	// Release 仅当 saled >= quantity 时 saled-=quantity, sale+=quantity
	Release(ctx context.Context, skuCode string, quantity int64) (bool, error)
	// Modify 仅当 sale+delta >= 0 时 sale+=delta
	Modify(ctx context.Context, skuCode string, delta int64) (bool, error)
}
