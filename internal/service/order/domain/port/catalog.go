package port

import "context"

// ProductSku 商品 sku 信息
type ProductSku struct {
	SkuCode     string `json:"skuCode"`
	ProductName string `json:"productName"`
	SalePrice   int64  `json:"salePrice"`
}

// CatalogService 商品服务的出站端口
type CatalogService interface {
	// GetSku sku 不存在时返回 (nil, nil)
	GetSku(ctx context.Context, skuCode, sellerID string) (*ProductSku, error)
}
