package adapter

import (
	"context"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/httpclient"
)

// CouponHTTPAdapter 实现了 port.CouponService 接口
type CouponHTTPAdapter struct {
	client *httpclient.Client
}

func NewCouponHTTPAdapter(client *httpclient.Client) *CouponHTTPAdapter {
	return &CouponHTTPAdapter{client: client}
}

type releaseCouponRequest struct {
	UserID   string `json:"userId"`
	CouponID string `json:"couponId"`
}

func (a *CouponHTTPAdapter) Release(ctx context.Context, userID, couponID string) error {
	req := releaseCouponRequest{UserID: userID, CouponID: couponID}
	return a.client.CallService(ctx, constants.PromotionService, constants.PromotionReleaseCouponPath, req, nil)
}
