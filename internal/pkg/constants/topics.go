package constants

// Kafka 主题
const (
	// 取消订单后释放资产 (库存、退款)
	ReleaseAssetsTopic = "release-assets"
	// 实际退款
	ActualRefundTopic = "actual-refund"
	// 释放库存
	ReleaseInventoryTopic = "release-inventory"
	// 最后一笔退货时释放优惠券
	ReleaseCouponTopic = "release-coupon"
	// 售后单提交给客服审核
	AfterSaleCustomerAuditTopic = "after-sale-customer-audit"
	// 客服审核通过后释放资产
	CustomerAuditPassReleaseAssetsTopic = "customer-audit-pass-release-assets"
	// 履约侧物流状态回传
	OrderWmsShipResultTopic = "order-wms-ship-result"
	// 退款通知 (短信/APP推送)
	RefundNotificationTopic = "refund-notifications"

	// 死信主题后缀
	DeadLetterSuffix = ".DLT"
)

// 分布式锁 key 前缀
const (
	CancelOrderLockPrefix    = "order:cancel:"
	RefundLockPrefix         = "order:refund:"
	AfterSaleApplyLockPrefix = "order:aftersale:"
	LackRequestLockPrefix    = "order:lack:"
	ReleaseCouponLockPrefix  = "order:coupon:"

	DeductStockLockPrefix  = "inventory:deduct:"
	ReleaseStockLockPrefix = "inventory:release:"
	AddStockLockPrefix     = "inventory:add:"
	ModifyStockLockPrefix  = "inventory:modify:"
	StockCacheLockPrefix   = "inventory:cache:"
)
