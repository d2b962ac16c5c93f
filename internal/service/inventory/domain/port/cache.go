// internal/service/inventory/domain/port/cache.go
package port

import (
	"context"

	"eshop/internal/service/inventory/domain"
)

// StockCache 库存的缓存镜像，只在 sku 缓存锁内写入，写入的值来自锁内读取的数据库记录
type StockCache interface {
	// Get 缓存不存在时返回 (nil, false, nil)
	Get(ctx context.Context, skuCode string) (*domain.StockRecord, bool, error)
	// Set 用数据库记录整体覆盖缓存
	Set(ctx context.Context, record *domain.StockRecord) error
	// SetIfAbsent 缓存不存在时写入，返回是否写入
	SetIfAbsent(ctx context.Context, record *domain.StockRecord) (bool, error)
	Delete(ctx context.Context, skuCode string) error
}
