package domain

import (
	"time"

	"eshop/internal/pkg/utils"
)

// 售后类型
const (
	AfterSaleTypeReturnMoney = 1 // 退款
	AfterSaleTypeReturnGoods = 2 // 退货
)

// 售后类型详情
const (
	TypeDetailLackRefund   = 1 // 缺品退款
	TypeDetailTimeoutNoPay = 2 // 超时未支付取消
	TypeDetailUserCancel   = 3 // 用户取消
	TypeDetailPartRefund   = 4 // 部分退款
)

// 售后申请来源
const (
	ApplySourceUser            = 10
	ApplySourceSystem          = 20
	ApplySourceUserReturnGoods = 30
)

// 售后申请原因
const (
	ApplyReasonCancel = 0
	ApplyReasonUser   = 10
)

// 审核来源与结果
const (
	ReviewSourceSelfMall = 1

	AuditAccept = 1
	AuditReject = 2
)

// RefundStatus 退款状态
type RefundStatus int

const (
	RefundUnRefund RefundStatus = 1
	RefundSuccess  RefundStatus = 2
	RefundFail     RefundStatus = 3
)

func (s RefundStatus) Remark() string {
	switch s {
	case RefundUnRefund:
		return "未退款"
	case RefundSuccess:
		return "退款成功"
	case RefundFail:
		return "退款失败"
	default:
		return ""
	}
}

const AccountTypeThird = 1

// AfterSaleCase 售后单
type AfterSaleCase struct {
	AfterSaleID        string
	OrderID            string
	UserID             string
	BusinessIdentifier int
	OrderType          int
	Type               int
	TypeDetail         int
	ApplySource        int
	Status             AfterSaleStatus
	ApplyRefundAmount  int64
	RealRefundAmount   int64
	ApplyReasonCode    int
	ApplyReason        string
	Remark             string
	ApplyTime          time.Time
	ReviewTime         *time.Time
	ReviewSource       int
	ReviewReasonCode   int
	ReviewReason       string
	Items              []AfterSaleItem
}

// Live 撤销和审核拒绝的售后单不再占用订单条目
func (c *AfterSaleCase) Live() bool {
	return c.Status != AfterSaleRevoked && c.Status != AfterSaleReviewRejected
}

// AfterSaleItem 售后条目
type AfterSaleItem struct {
	AfterSaleID       string
	OrderID           string
	SkuCode           string
	ProductName       string
	ProductImg        string
	ReturnQuantity    int64
	OriginAmount      int64
	ApplyRefundAmount int64
	RealRefundAmount  int64
}

// ItemFromOrder 整条退货时售后条目直接取订单条目的金额
func ItemFromOrder(afterSaleID string, item OrderItem) AfterSaleItem {
	return AfterSaleItem{
		AfterSaleID:       afterSaleID,
		OrderID:           item.OrderID,
		SkuCode:           item.SkuCode,
		ProductName:       item.ProductName,
		ProductImg:        item.ProductImg,
		ReturnQuantity:    item.SaleQuantity,
		OriginAmount:      item.OriginAmount,
		ApplyRefundAmount: item.OriginAmount,
		RealRefundAmount:  item.PayAmount,
	}
}

// AfterSaleRefund 售后退款单
type AfterSaleRefund struct {
	AfterSaleID   string
	OrderID       string
	BatchNo       string
	AccountType   int
	PayType       int
	RefundStatus  RefundStatus
	RefundAmount  int64
	OutTradeNo    string
	RefundPayTime *time.Time
	Remark        string
}

// NewRefund 新建未退款状态的退款单，批次号为订单号加 10 位随机数
func NewRefund(order *Order, afterSaleID string, amount int64) *AfterSaleRefund {
	return &AfterSaleRefund{
		AfterSaleID:  afterSaleID,
		OrderID:      order.OrderID,
		BatchNo:      order.OrderID + utils.RandomDigits(10),
		AccountType:  AccountTypeThird,
		PayType:      order.PayType,
		RefundStatus: RefundUnRefund,
		RefundAmount: amount,
		OutTradeNo:   order.OutTradeNo,
		Remark:       RefundUnRefund.Remark(),
	}
}

// AfterSaleLog 售后单状态变更日志
type AfterSaleLog struct {
	AfterSaleID   string
	PreStatus     AfterSaleStatus
	CurrentStatus AfterSaleStatus
	Remark        string
	CreatedAt     time.Time
}

func NewAfterSaleLog(afterSaleID string, from, to AfterSaleStatus, remark string) *AfterSaleLog {
	return &AfterSaleLog{
		AfterSaleID:   afterSaleID,
		PreStatus:     from,
		CurrentStatus: to,
		Remark:        remark,
		CreatedAt:     time.Now(),
	}
}

// Review 客服审核结果
type Review struct {
	Time       time.Time
	Source     int
	ReasonCode int
	Reason     string
}
