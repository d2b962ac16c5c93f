package domain

// ReturnAmount 退货金额计算结果
type ReturnAmount struct {
	Type              int
	ApplyRefundAmount int64
	RealRefundAmount  int64
	LastReturnGoods   bool
	Item              OrderItem
}

// CalculateReturnAmount 计算退货金额。
// 订单只有一个条目，或者退完这一条之后订单所有条目都已退货时，按整单退款(条目实付 + 运费)，
// 并标记为最后一笔退货；否则只退该条目自己的金额。
func CalculateReturnAmount(order *Order, returnedCount int, skuCode string) (*ReturnAmount, error) {
	item, ok := order.ItemBySku(skuCode)
	if !ok {
		return nil, ErrReturnItemNotInOrder.WithMessage("sku %s is not in order %s", skuCode, order.OrderID)
	}

	total := len(order.Items)
	if total == 1 || total == returnedCount+1 {
		return &ReturnAmount{
			Type:              AfterSaleTypeReturnMoney,
			ApplyRefundAmount: item.OriginAmount,
			RealRefundAmount:  item.PayAmount + order.FreightAmount,
			LastReturnGoods:   true,
			Item:              *item,
		}, nil
	}
	return &ReturnAmount{
		Type:              AfterSaleTypeReturnGoods,
		ApplyRefundAmount: item.OriginAmount,
		RealRefundAmount:  item.PayAmount,
		LastReturnGoods:   false,
		Item:              *item,
	}, nil
}

// LackItemAmount 单个缺品条目的申请金额与实际退款金额。
// 实际退款按实付金额折算到缺品数量，向下取整到分。
func LackItemAmount(item OrderItem, lackNum int64) (applyAmount, realAmount int64) {
	applyAmount = item.SalePrice * lackNum
	if item.SaleQuantity > 0 {
		realAmount = item.PayAmount * lackNum / item.SaleQuantity
	}
	return applyAmount, realAmount
}

// SumRefundAmount 汇总售后条目金额
func SumRefundAmount(items []AfterSaleItem) (applyAmount, realAmount int64) {
	for _, it := range items {
		applyAmount += it.ApplyRefundAmount
		realAmount += it.RealRefundAmount
	}
	return applyAmount, realAmount
}
