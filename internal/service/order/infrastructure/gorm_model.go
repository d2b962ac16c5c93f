package infrastructure

import "time"

// OrderInfoModel 对应 order_info 表，金额单位为分
type OrderInfoModel struct {
	ID                 uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID            string `gorm:"size:64;not null;uniqueIndex:uk_order_id"`
	UserID             string `gorm:"size:64;not null;index:idx_user_id"`
	SellerID           string `gorm:"size:64"`
	BusinessIdentifier int    `gorm:"not null"`
	OrderType          int    `gorm:"not null"`
	OrderStatus        int    `gorm:"not null"`
	CancelType         int
	PayType            int
	TotalAmount        int64  `gorm:"not null;default:0"`
	PayAmount          int64  `gorm:"not null;default:0"`
	FreightAmount      int64  `gorm:"not null;default:0"`
	CouponID           string `gorm:"size:64"`
	OutTradeNo         string `gorm:"size:64"`
	ExtJSON            string `gorm:"type:text"`
	CancelTime         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (OrderInfoModel) TableName() string { return "order_info" }

// OrderItemModel 对应 order_item 表
type OrderItemModel struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	OrderItemID  string `gorm:"size:64;not null;uniqueIndex:uk_order_item_id"`
	OrderID      string `gorm:"size:64;not null;index:idx_order_id"`
	SkuCode      string `gorm:"size:64;not null"`
	ProductName  string `gorm:"size:255"`
	ProductImg   string `gorm:"size:512"`
	SaleQuantity int64  `gorm:"not null"`
	SalePrice    int64  `gorm:"not null"`
	OriginAmount int64  `gorm:"not null"`
	PayAmount    int64  `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (OrderItemModel) TableName() string { return "order_item" }

// OrderOperateLogModel 对应 order_operate_log 表
type OrderOperateLogModel struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID       string `gorm:"size:64;not null;index:idx_order_id"`
	OperateType   int    `gorm:"not null"`
	PreStatus     int    `gorm:"not null"`
	CurrentStatus int    `gorm:"not null"`
	Remark        string `gorm:"size:255"`
	CreatedAt     time.Time
}

func (OrderOperateLogModel) TableName() string { return "order_operate_log" }

// AfterSaleInfoModel 对应 after_sale_info 表
type AfterSaleInfoModel struct {
	ID                  uint64 `gorm:"primaryKey;autoIncrement"`
	AfterSaleID         string `gorm:"size:64;not null;uniqueIndex:uk_after_sale_id"`
	OrderID             string `gorm:"size:64;not null;index:idx_order_id"`
	UserID              string `gorm:"size:64;not null"`
	BusinessIdentifier  int    `gorm:"not null"`
	OrderType           int    `gorm:"not null"`
	AfterSaleType       int    `gorm:"not null"`
	AfterSaleTypeDetail int    `gorm:"not null"`
	ApplySource         int    `gorm:"not null"`
	AfterSaleStatus     int    `gorm:"not null"`
	ApplyRefundAmount   int64  `gorm:"not null;default:0"`
	RealRefundAmount    int64  `gorm:"not null;default:0"`
	ApplyReasonCode     int
	ApplyReason         string `gorm:"size:255"`
	Remark              string `gorm:"size:255"`
	ApplyTime           time.Time
	ReviewTime          *time.Time
	ReviewSource        int
	ReviewReasonCode    int
	ReviewReason        string `gorm:"size:255"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (AfterSaleInfoModel) TableName() string { return "after_sale_info" }

// AfterSaleItemModel 对应 after_sale_item 表
type AfterSaleItemModel struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement"`
	AfterSaleID       string `gorm:"size:64;not null;index:idx_after_sale_id"`
	OrderID           string `gorm:"size:64;not null;index:idx_order_id"`
	SkuCode           string `gorm:"size:64;not null"`
	ProductName       string `gorm:"size:255"`
	ProductImg        string `gorm:"size:512"`
	ReturnQuantity    int64  `gorm:"not null"`
	OriginAmount      int64  `gorm:"not null"`
	ApplyRefundAmount int64  `gorm:"not null"`
	RealRefundAmount  int64  `gorm:"not null"`
	CreatedAt         time.Time
}

func (AfterSaleItemModel) TableName() string { return "after_sale_item" }

// AfterSaleRefundModel 对应 after_sale_refund 表，一个售后单一条退款记录
type AfterSaleRefundModel struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	AfterSaleID   string `gorm:"size:64;not null;uniqueIndex:uk_after_sale_id"`
	OrderID       string `gorm:"size:64;not null;index:idx_order_id"`
	BatchNo       string `gorm:"size:64;not null"`
	AccountType   int    `gorm:"not null"`
	PayType       int
	RefundStatus  int    `gorm:"not null"`
	RefundAmount  int64  `gorm:"not null"`
	OutTradeNo    string `gorm:"size:64"`
	RefundPayTime *time.Time
	Remark        string `gorm:"size:255"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (AfterSaleRefundModel) TableName() string { return "after_sale_refund" }

// AfterSaleLogModel 对应 after_sale_log 表
type AfterSaleLogModel struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	AfterSaleID   string `gorm:"size:64;not null;index:idx_after_sale_id"`
	PreStatus     int    `gorm:"not null"`
	CurrentStatus int    `gorm:"not null"`
	Remark        string `gorm:"size:255"`
	CreatedAt     time.Time
}

func (AfterSaleLogModel) TableName() string { return "after_sale_log" }

// Models 返回全部模型，供开发环境与测试 AutoMigrate
func Models() []any {
	return []any{
		&OrderInfoModel{}, &OrderItemModel{}, &OrderOperateLogModel{},
		&AfterSaleInfoModel{}, &AfterSaleItemModel{}, &AfterSaleRefundModel{}, &AfterSaleLogModel{},
	}
}
