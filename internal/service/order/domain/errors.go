package domain

import "eshop/internal/pkg/bizerr"

// ErrAlreadyProcessed 重复请求，应用层把它转换为 AlreadyProcessed 结果，不会对外暴露
var ErrAlreadyProcessed = bizerr.Conflict("ALREADY_PROCESSED", "operation already processed")

// 参数校验
var (
	ErrOrderIDEmpty            = bizerr.Validation("ORDER_ID_IS_NULL", "order id is empty")
	ErrCancelOrderIDEmpty      = bizerr.Validation("CANCEL_ORDER_ID_IS_NULL", "cancel order id is empty")
	ErrOrderStatusEmpty        = bizerr.Validation("ORDER_STATUS_IS_NULL", "order status is empty")
	ErrOrderStatusCanceled     = bizerr.Validation("ORDER_STATUS_CANCELED", "order is already canceled")
	ErrOrderStatusChanged      = bizerr.Validation("ORDER_STATUS_CHANGED", "order status changed, cannot cancel")
	ErrBusinessIdentifierEmpty = bizerr.Validation("BUSINESS_IDENTIFIER_IS_NULL", "business identifier is empty")
	ErrCancelTypeEmpty         = bizerr.Validation("CANCEL_TYPE_IS_NULL", "cancel type is empty")
	ErrUserIDEmpty             = bizerr.Validation("USER_ID_IS_NULL", "user id is empty")
	ErrOrderTypeEmpty          = bizerr.Validation("ORDER_TYPE_IS_NULL", "order type is empty")
	ErrReturnGoodsCodeEmpty    = bizerr.Validation("RETURN_GOODS_CODE_IS_NULL", "return goods code is empty")
	ErrSkuEmpty                = bizerr.Validation("SKU_IS_NULL", "sku code is empty")
	ErrAfterSaleIDEmpty        = bizerr.Validation("AFTER_SALE_ID_IS_NULL", "after sale id is empty")
	ErrAuditResultInvalid      = bizerr.Validation("CUSTOMER_AUDIT_RESULT_INVALID", "audit result must be accept or reject")
	ErrReturnItemNotInOrder    = bizerr.Validation("RETURN_ITEM_NOT_IN_ORDER", "return item is not in order")
	ErrLackItemsEmpty          = bizerr.Validation("LACK_ITEM_IS_NULL", "lack items are empty")
	ErrLackSkuEmpty            = bizerr.Validation("SKU_CODE_IS_NULL", "lack sku code is empty")
	ErrLackNumInvalid          = bizerr.Validation("LACK_NUM_IS_LT_0", "lack num must be at least 1")
	ErrWmsStatusUnsupported    = bizerr.Validation("WMS_STATUS_UNSUPPORTED", "unsupported wms status")
)

// 退款回调参数
var (
	ErrCallbackBatchNoEmpty     = bizerr.Validation("PROCESS_PAY_REFUND_CALLBACK_BATCH_NO_IS_NULL", "callback batch no is empty")
	ErrCallbackStatusEmpty      = bizerr.Validation("PROCESS_PAY_REFUND_CALLBACK_STATUS_NO_IS_NUL", "callback refund status is empty")
	ErrCallbackFeeEmpty         = bizerr.Validation("PROCESS_PAY_REFUND_CALLBACK_FEE_NO_IS_NUL", "callback refund fee is empty")
	ErrCallbackTotalFeeEmpty    = bizerr.Validation("PROCESS_PAY_REFUND_CALLBACK_TOTAL_FEE_NO_IS_NUL", "callback total fee is empty")
	ErrCallbackSignEmpty        = bizerr.Validation("PROCESS_PAY_REFUND_CALLBACK_SIGN_NO_IS_NUL", "callback sign is empty")
	ErrCallbackTradeNoEmpty     = bizerr.Validation("PROCESS_PAY_REFUND_CALLBACK_TRADE_NO_IS_NUL", "callback trade no is empty")
	ErrCallbackAfterSaleIDEmpty = bizerr.Validation("PROCESS_PAY_REFUND_CALLBACK_AFTER_SALE_ID_IS_NULL", "callback after sale id is empty")
	ErrCallbackRefundTimeEmpty  = bizerr.Validation("PROCESS_PAY_REFUND_CALLBACK_AFTER_SALE_REFUND_TIME_IS_NULL", "callback refund time is empty")
)

// 锁竞争与重复
var (
	ErrCancelOrderRepeat      = bizerr.Conflict("CANCEL_ORDER_REPEAT", "order is being canceled")
	ErrProcessRefundRepeat    = bizerr.Conflict("PROCESS_REFUND_REPEAT", "cancel refund is being processed")
	ErrRefundMoneyRepeat      = bizerr.Conflict("REFUND_MONEY_REPEAT", "refund is being processed")
	ErrRefundCallbackRepeat   = bizerr.Conflict("PROCESS_PAY_REFUND_CALLBACK_REPEAT", "refund callback is being processed")
	ErrRepeatCallback         = bizerr.Conflict("REPEAT_CALLBACK", "refund callback already handled")
	ErrApplyAfterSaleRepeat   = bizerr.Conflict("PROCESS_APPLY_AFTER_SALE_CANNOT_REPEAT", "after sale already applied for this sku")
	ErrApplyAfterSaleBusy     = bizerr.Conflict("PROCESS_APPLY_AFTER_SALE_REPEAT", "after sale apply is being processed")
	ErrCustomerAuditRepeat    = bizerr.Conflict("CUSTOMER_AUDIT_CANNOT_REPEAT", "after sale already audited")
	ErrCannotRevoke           = bizerr.Conflict("AFTER_SALE_CANNOT_REVOKE", "after sale cannot be revoked")
	ErrReleaseCouponBusy      = bizerr.Conflict("RELEASE_COUPON_REPEAT", "coupon is being released")
	ErrShipResultBusy         = bizerr.Conflict("ORDER_SHIP_RESULT_REPEAT", "order status is being updated")
	ErrLackBusy               = bizerr.Conflict("ORDER_NOT_ALLOW_TO_LACK", "lack request is being processed")
	ErrAfterSaleStatusIllegal = bizerr.Conflict("AFTER_SALE_STATUS_ILLEGAL", "illegal after sale status transition")
)

// 数据不存在
var (
	ErrOrderNotFound           = bizerr.NotFound("ORDER_NOT_FOUND", "order not found")
	ErrOrderItemsEmpty         = bizerr.NotFound("ORDER_ITEM_IS_NULL", "order items not found")
	ErrAfterSaleNotFound       = bizerr.NotFound("AFTER_SALE_NOT_FOUND", "after sale not found")
	ErrAfterSaleRefundNotFound = bizerr.NotFound("AFTER_SALE_REFUND_ID_IS_NULL", "after sale refund not found")
	ErrAfterSaleItemNotFound   = bizerr.NotFound("AFTER_SALE_ITEM_CANNOT_NULL", "after sale item not found")
	ErrProductSkuNotFound      = bizerr.NotFound("PRODUCT_SKU_CODE_ERROR", "product sku not found")
)

// 业务规则
var (
	ErrCannotCancel       = bizerr.BusinessRule("CURRENT_ORDER_STATUS_CANNOT_CANCEL", "current order status cannot cancel")
	ErrNotAllowLack       = bizerr.BusinessRule("ORDER_NOT_ALLOW_TO_LACK", "order is not allowed to lack")
	ErrLackItemNotInOrder = bizerr.BusinessRule("LACK_ITEM_NOT_IN_ORDER", "lack item is not in order")
	ErrLackNumTooLarge    = bizerr.BusinessRule("LACK_NUM_IS_GE_SKU_ORDER_ITEM_SIZE", "lack num must be less than sale quantity")
)

// 事务消息发送失败，本地事务结果以台账和回查为准
var (
	ErrCancelProcessFailed     = bizerr.PublishFailure("CANCEL_ORDER_PROCESS_FAILED", "cancel order local transaction not committed")
	ErrProcessRefundFailed     = bizerr.PublishFailure("PROCESS_REFUND_FAILED", "cancel refund local transaction not committed")
	ErrReleaseCouponSendFailed = bizerr.PublishFailure("REFUND_MONEY_RELEASE_COUPON_FAILED", "release coupon local transaction not committed")
	ErrCustomerAuditSendFailed = bizerr.PublishFailure("SEND_AFTER_SALE_CUSTOMER_AUDIT_MQ_FAILED", "customer audit local transaction not committed")
	ErrAuditPassSendFailed     = bizerr.PublishFailure("SEND_AUDIT_PASS_RELEASE_ASSETS_FAILED", "audit pass local transaction not committed")
	ErrLackSendFailed          = bizerr.PublishFailure("LACK_PROCESS_FAILED", "lack local transaction not committed")
)

// 下游调用失败
var (
	ErrFulfillCancelFailed = bizerr.Downstream("CANCEL_FULFILL_FAILED", "fulfillment cancel failed")
	ErrPaymentRefundFailed = bizerr.Downstream("PAYMENT_REFUND_FAILED", "payment refund failed")
	ErrCouponReleaseFailed = bizerr.Downstream("RELEASE_COUPON_FAILED", "coupon release failed")
	ErrCatalogQueryFailed  = bizerr.Downstream("PRODUCT_QUERY_FAILED", "product sku query failed")
)
