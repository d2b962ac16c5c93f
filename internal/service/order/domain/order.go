// internal/service/order/domain/order.go
package domain

import (
	"encoding/json"
	"time"
)

// OrderStatus 订单状态
type OrderStatus int

const (
	OrderCreated  OrderStatus = 10
	OrderPaid     OrderStatus = 20
	OrderFulfill  OrderStatus = 30 // 已履约
	OrderOutStock OrderStatus = 40 // 已出库
	OrderDelivery OrderStatus = 50 // 配送中
	OrderSigned   OrderStatus = 60
	OrderCanceled OrderStatus = 70
	OrderRefused  OrderStatus = 100 // 拒收
	OrderInvalid  OrderStatus = 127
)

// CanCancel 出库之后的订单不允许取消
func (s OrderStatus) CanCancel() bool {
	return s < OrderOutStock
}

// CancelType 取消类型
const (
	CancelTypeTimeout = 0 // 超时未支付
	CancelTypeUser    = 1 // 用户手动取消
)

// 订单操作类型
const (
	OperateManualCancel = 20
	OperateAutoCancel   = 30
	OperateOutStock     = 40
	OperateDelivery     = 50
	OperateSigned       = 60
	OperateLack         = 80
)

// Order 是订单聚合的根实体，金额单位为分
type Order struct {
	OrderID            string
	UserID             string
	SellerID           string
	BusinessIdentifier int
	OrderType          int
	Status             OrderStatus
	CancelType         int
	PayType            int
	TotalAmount        int64
	PayAmount          int64
	FreightAmount      int64
	CouponID           string
	OutTradeNo         string
	ExtJSON            string
	CancelTime         *time.Time
	Items              []OrderItem
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// OrderItem 订单条目
type OrderItem struct {
	OrderItemID  string
	OrderID      string
	SkuCode      string
	ProductName  string
	ProductImg   string
	SaleQuantity int64
	SalePrice    int64
	OriginAmount int64
	PayAmount    int64
}

// ItemBySku 按 sku 查找订单条目
func (o *Order) ItemBySku(skuCode string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].SkuCode == skuCode {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// UsedCoupon 是否使用了优惠券
func (o *Order) UsedCoupon() bool {
	return o.CouponID != ""
}

// OrderExt 存放在订单 ext_json 字段里的扩展信息
type OrderExt struct {
	LackFlag bool      `json:"lackFlag"`
	LackInfo *LackInfo `json:"lackInfo,omitempty"`
}

// LackInfo 缺品明细
type LackInfo struct {
	OrderID           string        `json:"orderId"`
	AfterSaleID       string        `json:"afterSaleId"`
	LackItems         []LackItemReq `json:"lackItems"`
	ApplyRefundAmount int64         `json:"applyRefundAmount"`
	RealRefundAmount  int64         `json:"realRefundAmount"`
}

// LackItemReq 缺品请求条目
type LackItemReq struct {
	SkuCode string `json:"skuCode"`
	LackNum int64  `json:"lackNum"`
}

// Ext 解析扩展信息，内容为空或格式错误时返回零值
func (o *Order) Ext() OrderExt {
	var ext OrderExt
	if o.ExtJSON == "" {
		return ext
	}
	_ = json.Unmarshal([]byte(o.ExtJSON), &ext)
	return ext
}

// IsLacked 订单是否已经发起过缺品
func (o *Order) IsLacked() bool {
	return o.Ext().LackFlag
}

// MarshalExt 序列化扩展信息
func MarshalExt(ext OrderExt) (string, error) {
	b, err := json.Marshal(ext)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OrderOperateLog 订单操作日志
type OrderOperateLog struct {
	OrderID       string
	OperateType   int
	PreStatus     OrderStatus
	CurrentStatus OrderStatus
	Remark        string
	CreatedAt     time.Time
}
