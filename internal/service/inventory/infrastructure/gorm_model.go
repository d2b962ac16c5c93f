package infrastructure

import "time"

// ProductStockModel 对应数据库中的 inventory_product_stock 表
type ProductStockModel struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement"`
	SkuCode            string `gorm:"size:64;not null;uniqueIndex:uk_sku_code"`
	SaleStockQuantity  int64  `gorm:"not null;default:0"`
	SaledStockQuantity int64  `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductStockModel) TableName() string {
	return "inventory_product_stock"
}
