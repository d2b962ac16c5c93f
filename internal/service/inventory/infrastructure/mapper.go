package infrastructure

import "eshop/internal/service/inventory/domain"

// ToDomainStock 将数据库模型转换为领域模型
func ToDomainStock(model *ProductStockModel) *domain.StockRecord {
	if model == nil {
		return nil
	}
	return &domain.StockRecord{
		SkuCode:            model.SkuCode,
		SaleStockQuantity:  model.SaleStockQuantity,
		SaledStockQuantity: model.SaledStockQuantity,
	}
}

// FromDomainStock 将领域模型转换为数据库模型，用于插入
func FromDomainStock(record *domain.StockRecord) *ProductStockModel {
	if record == nil {
		return nil
	}
	return &ProductStockModel{
		SkuCode:            record.SkuCode,
		SaleStockQuantity:  record.SaleStockQuantity,
		SaledStockQuantity: record.SaledStockQuantity,
	}
}
