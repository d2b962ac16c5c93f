package adapter

import (
	"context"
	"errors"
	"net/http"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/httpclient"
	"eshop/internal/service/order/domain/port"
)

// CatalogHTTPAdapter 实现了 port.CatalogService 接口
type CatalogHTTPAdapter struct {
	client *httpclient.Client
}

func NewCatalogHTTPAdapter(client *httpclient.Client) *CatalogHTTPAdapter {
	return &CatalogHTTPAdapter{client: client}
}

type getSkuRequest struct {
	SkuCode  string `json:"skuCode"`
	SellerID string `json:"sellerId"`
}

// GetSku 商品服务返回 404 时视为 sku 不存在
func (a *CatalogHTTPAdapter) GetSku(ctx context.Context, skuCode, sellerID string) (*port.ProductSku, error) {
	var sku port.ProductSku
	err := a.client.CallService(ctx, constants.ProductService, constants.ProductGetSkuPath,
		getSkuRequest{SkuCode: skuCode, SellerID: sellerID}, &sku)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	if sku.SkuCode == "" {
		return nil, nil
	}
	return &sku, nil
}
