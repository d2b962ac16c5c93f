// internal/service/inventory/application/dto.go
package application

import "eshop/internal/service/inventory/domain"

type DeductRequest struct {
	OrderID string             `json:"orderId"`
	Items   []domain.StockLine `json:"orderItemRequestList"`
}

type ReleaseRequest struct {
	OrderID string             `json:"orderId"`
	Items   []domain.StockLine `json:"orderItemRequestList"`
}

type AddRequest struct {
	SkuCode           string `json:"skuCode"`
	SaleStockQuantity int64  `json:"saleStockQuantity"`
}

type ModifyRequest struct {
	SkuCode          string `json:"skuCode"`
	StockIncremental int64  `json:"stockIncremental"`
}

// OperationResult AlreadyProcessed 表示请求之前已经执行过，本次没有任何变更
type OperationResult struct {
	AlreadyProcessed bool `json:"alreadyProcessed"`
}

// StockView 查询接口返回的库存
type StockView struct {
	SkuCode            string `json:"skuCode"`
	SaleStockQuantity  int64  `json:"saleStockQuantity"`
	SaledStockQuantity int64  `json:"saledStockQuantity"`
}

func toView(r *domain.StockRecord) *StockView {
	return &StockView{
		SkuCode:            r.SkuCode,
		SaleStockQuantity:  r.SaleStockQuantity,
		SaledStockQuantity: r.SaledStockQuantity,
	}
}

// stockLogPayload 扣减时记在台账里的数量，释放时按它归还
type stockLogPayload struct {
	Quantity int64 `json:"quantity"`
}
