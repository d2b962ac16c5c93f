// internal/service/inventory/domain/stock.go
package domain

import "eshop/internal/pkg/bizerr"

// StockRecord 一个 sku 的库存，sale 为可售库存，saled 为已售库存
type StockRecord struct {
	SkuCode            string
	SaleStockQuantity  int64
	SaledStockQuantity int64
}

// Total 扣减与释放只在两个字段之间搬运，总量保持不变
func (r *StockRecord) Total() int64 {
	return r.SaleStockQuantity + r.SaledStockQuantity
}

func (r *StockRecord) CanDeduct(quantity int64) bool {
	return r.SaleStockQuantity >= quantity
}

// StockLine 订单中一个 sku 的数量
type StockLine struct {
	SkuCode  string `json:"skuCode"`
	Quantity int64  `json:"saleQuantity"`
}

var (
	ErrOrderIDEmpty     = bizerr.Validation("ORDER_ID_IS_EMPTY", "order id is empty")
	ErrItemsEmpty       = bizerr.Validation("ORDER_ITEMS_IS_EMPTY", "order items are empty")
	ErrSkuCodeEmpty     = bizerr.Validation("SKU_CODE_IS_EMPTY", "sku code is empty")
	ErrQuantityInvalid  = bizerr.Validation("SALE_QUANTITY_INVALID", "sale quantity must be positive")
	ErrStockNegativeArg = bizerr.Validation("SALE_STOCK_QUANTITY_CANNOT_BE_NEGATIVE_NUMBER", "sale stock quantity cannot be negative")
	ErrZeroDelta        = bizerr.Validation("INCREASE_STOCK_CANNOT_BE_ZERO", "stock incremental cannot be zero")

	ErrStockNotFound  = bizerr.NotFound("PRODUCT_SKU_STOCK_NOT_FOUND", "product sku stock not found")
	ErrStockExisted   = bizerr.Conflict("PRODUCT_SKU_STOCK_EXISTED", "product sku stock already exists")
	ErrStockNotEnough = bizerr.BusinessRule("PRODUCT_SKU_STOCK_NOT_ENOUGH", "product sku stock not enough")
	ErrNegativeStock  = bizerr.BusinessRule("PRODUCT_SKU_STOCK_CANNOT_BE_NEGATIVE", "sale stock quantity cannot be negative")
	// ErrSaledNotEnough 已售库存少于要释放的数量，说明数据已经不一致
	ErrSaledNotEnough = bizerr.BusinessRule("PRODUCT_SKU_SALED_STOCK_NOT_ENOUGH", "saled stock quantity less than release quantity")

	ErrDeductLockBusy  = bizerr.Conflict("DEDUCT_PRODUCT_SKU_STOCK_CANNOT_ACQUIRE", "deduct stock lock is busy")
	ErrReleaseLockBusy = bizerr.Conflict("RELEASE_PRODUCT_SKU_STOCK_LOCK_CANNOT_ACQUIRE", "release stock lock is busy")
	ErrAddLockBusy     = bizerr.Conflict("ADD_PRODUCT_SKU_STOCK_ERROR", "add stock lock is busy")
	ErrModifyLockBusy  = bizerr.Conflict("MODIFY_PRODUCT_SKU_STOCK_ERROR", "modify stock lock is busy")
	ErrCacheLockBusy   = bizerr.Conflict("PRODUCT_SKU_STOCK_CACHE_LOCK_BUSY", "stock cache lock is busy")
	ErrConcurrentWrite = bizerr.Conflict("PRODUCT_SKU_STOCK_CONCURRENT_UPDATE", "stock log changed concurrently")
)
