// internal/pkg/constants/servicenames.go
package constants

// 定义所有微服务的标准服务名
// 这些名称将用于服务注册、服务发现、日志记录和监控等场景
const (
	OrderService          = "order-service"
	InventoryService      = "inventory-service"
	FulfillService        = "fulfill-service"
	PaymentService        = "payment-service"
	PromotionService      = "promotion-service"
	ProductService        = "product-service"
	PushGatewayService    = "push-gateway"
	DelaySchedulerService = "delay-scheduler"
)

const (
	// FulfillService Paths
	FulfillCancelPath = "/cancel_fulfill"

	// PaymentService Paths
	PaymentRefundPath = "/execute_refund"

	// PromotionService Paths
	PromotionReleaseCouponPath = "/release_coupon"

	// ProductService Paths
	ProductGetSkuPath = "/get_sku"

	// InventoryService Paths
	InventoryDeductPath  = "/inventory/deduct"
	InventoryReleasePath = "/inventory/release"
	InventoryAddPath     = "/inventory/add"
	InventoryModifyPath  = "/inventory/modify"
	InventorySyncPath    = "/inventory/sync"
	InventoryStockPath   = "/inventory/stock"

	// OrderService Paths
	OrderCancelPath           = "/order/cancel"
	OrderLackPath             = "/order/lack"
	AfterSaleApplyPath        = "/aftersale/apply"
	AfterSaleRevokePath       = "/aftersale/revoke"
	AfterSaleAuditPath        = "/aftersale/audit"
	AfterSaleRefundNotifyPath = "/aftersale/refund_callback"
)
