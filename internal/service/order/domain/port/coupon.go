package port

import "context"

// CouponService 营销服务的出站端口
type CouponService interface {
	// Release 归还用户的优惠券，需要幂等
	Release(ctx context.Context, userID, couponID string) error
}
