package infrastructure

import "eshop/internal/service/order/domain"

func toDomainOrder(m *OrderInfoModel, items []*OrderItemModel) *domain.Order {
	o := &domain.Order{
		OrderID:            m.OrderID,
		UserID:             m.UserID,
		SellerID:           m.SellerID,
		BusinessIdentifier: m.BusinessIdentifier,
		OrderType:          m.OrderType,
		Status:             domain.OrderStatus(m.OrderStatus),
		CancelType:         m.CancelType,
		PayType:            m.PayType,
		TotalAmount:        m.TotalAmount,
		PayAmount:          m.PayAmount,
		FreightAmount:      m.FreightAmount,
		CouponID:           m.CouponID,
		OutTradeNo:         m.OutTradeNo,
		ExtJSON:            m.ExtJSON,
		CancelTime:         m.CancelTime,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	for _, it := range items {
		o.Items = append(o.Items, domain.OrderItem{
			OrderItemID:  it.OrderItemID,
			OrderID:      it.OrderID,
			SkuCode:      it.SkuCode,
			ProductName:  it.ProductName,
			ProductImg:   it.ProductImg,
			SaleQuantity: it.SaleQuantity,
			SalePrice:    it.SalePrice,
			OriginAmount: it.OriginAmount,
			PayAmount:    it.PayAmount,
		})
	}
	return o
}

func fromDomainOrder(o *domain.Order) (*OrderInfoModel, []*OrderItemModel) {
	m := &OrderInfoModel{
		OrderID:            o.OrderID,
		UserID:             o.UserID,
		SellerID:           o.SellerID,
		BusinessIdentifier: o.BusinessIdentifier,
		OrderType:          o.OrderType,
		OrderStatus:        int(o.Status),
		CancelType:         o.CancelType,
		PayType:            o.PayType,
		TotalAmount:        o.TotalAmount,
		PayAmount:          o.PayAmount,
		FreightAmount:      o.FreightAmount,
		CouponID:           o.CouponID,
		OutTradeNo:         o.OutTradeNo,
		ExtJSON:            o.ExtJSON,
		CancelTime:         o.CancelTime,
	}
	items := make([]*OrderItemModel, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, &OrderItemModel{
			OrderItemID:  it.OrderItemID,
			OrderID:      o.OrderID,
			SkuCode:      it.SkuCode,
			ProductName:  it.ProductName,
			ProductImg:   it.ProductImg,
			SaleQuantity: it.SaleQuantity,
			SalePrice:    it.SalePrice,
			OriginAmount: it.OriginAmount,
			PayAmount:    it.PayAmount,
		})
	}
	return m, items
}

func fromDomainOperateLog(l *domain.OrderOperateLog) *OrderOperateLogModel {
	return &OrderOperateLogModel{
		OrderID:       l.OrderID,
		OperateType:   l.OperateType,
		PreStatus:     int(l.PreStatus),
		CurrentStatus: int(l.CurrentStatus),
		Remark:        l.Remark,
	}
}

func toDomainAfterSale(m *AfterSaleInfoModel, items []*AfterSaleItemModel) *domain.AfterSaleCase {
	c := &domain.AfterSaleCase{
		AfterSaleID:        m.AfterSaleID,
		OrderID:            m.OrderID,
		UserID:             m.UserID,
		BusinessIdentifier: m.BusinessIdentifier,
		OrderType:          m.OrderType,
		Type:               m.AfterSaleType,
		TypeDetail:         m.AfterSaleTypeDetail,
		ApplySource:        m.ApplySource,
		Status:             domain.AfterSaleStatus(m.AfterSaleStatus),
		ApplyRefundAmount:  m.ApplyRefundAmount,
		RealRefundAmount:   m.RealRefundAmount,
		ApplyReasonCode:    m.ApplyReasonCode,
		ApplyReason:        m.ApplyReason,
		Remark:             m.Remark,
		ApplyTime:          m.ApplyTime,
		ReviewTime:         m.ReviewTime,
		ReviewSource:       m.ReviewSource,
		ReviewReasonCode:   m.ReviewReasonCode,
		ReviewReason:       m.ReviewReason,
	}
	for _, it := range items {
		c.Items = append(c.Items, domain.AfterSaleItem{
			AfterSaleID:       it.AfterSaleID,
			OrderID:           it.OrderID,
			SkuCode:           it.SkuCode,
			ProductName:       it.ProductName,
			ProductImg:        it.ProductImg,
			ReturnQuantity:    it.ReturnQuantity,
			OriginAmount:      it.OriginAmount,
			ApplyRefundAmount: it.ApplyRefundAmount,
			RealRefundAmount:  it.RealRefundAmount,
		})
	}
	return c
}

func fromDomainAfterSale(c *domain.AfterSaleCase) (*AfterSaleInfoModel, []*AfterSaleItemModel) {
	m := &AfterSaleInfoModel{
		AfterSaleID:         c.AfterSaleID,
		OrderID:             c.OrderID,
		UserID:              c.UserID,
		BusinessIdentifier:  c.BusinessIdentifier,
		OrderType:           c.OrderType,
		AfterSaleType:       c.Type,
		AfterSaleTypeDetail: c.TypeDetail,
		ApplySource:         c.ApplySource,
		AfterSaleStatus:     int(c.Status),
		ApplyRefundAmount:   c.ApplyRefundAmount,
		RealRefundAmount:    c.RealRefundAmount,
		ApplyReasonCode:     c.ApplyReasonCode,
		ApplyReason:         c.ApplyReason,
		Remark:              c.Remark,
		ApplyTime:           c.ApplyTime,
		ReviewTime:          c.ReviewTime,
		ReviewSource:        c.ReviewSource,
		ReviewReasonCode:    c.ReviewReasonCode,
		ReviewReason:        c.ReviewReason,
	}
	items := make([]*AfterSaleItemModel, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, &AfterSaleItemModel{
			AfterSaleID:       c.AfterSaleID,
			OrderID:           c.OrderID,
			SkuCode:           it.SkuCode,
			ProductName:       it.ProductName,
			ProductImg:        it.ProductImg,
			ReturnQuantity:    it.ReturnQuantity,
			OriginAmount:      it.OriginAmount,
			ApplyRefundAmount: it.ApplyRefundAmount,
			RealRefundAmount:  it.RealRefundAmount,
		})
	}
	return m, items
}

func toDomainRefund(m *AfterSaleRefundModel) *domain.AfterSaleRefund {
	return &domain.AfterSaleRefund{
		AfterSaleID:   m.AfterSaleID,
		OrderID:       m.OrderID,
		BatchNo:       m.BatchNo,
		AccountType:   m.AccountType,
		PayType:       m.PayType,
		RefundStatus:  domain.RefundStatus(m.RefundStatus),
		RefundAmount:  m.RefundAmount,
		OutTradeNo:    m.OutTradeNo,
		RefundPayTime: m.RefundPayTime,
		Remark:        m.Remark,
	}
}

func fromDomainRefund(r *domain.AfterSaleRefund) *AfterSaleRefundModel {
	return &AfterSaleRefundModel{
		AfterSaleID:   r.AfterSaleID,
		OrderID:       r.OrderID,
		BatchNo:       r.BatchNo,
		AccountType:   r.AccountType,
		PayType:       r.PayType,
		RefundStatus:  int(r.RefundStatus),
		RefundAmount:  r.RefundAmount,
		OutTradeNo:    r.OutTradeNo,
		RefundPayTime: r.RefundPayTime,
		Remark:        r.Remark,
	}
}

func toDomainAfterSaleLog(m *AfterSaleLogModel) *domain.AfterSaleLog {
	return &domain.AfterSaleLog{
		AfterSaleID:   m.AfterSaleID,
		PreStatus:     domain.AfterSaleStatus(m.PreStatus),
		CurrentStatus: domain.AfterSaleStatus(m.CurrentStatus),
		Remark:        m.Remark,
		CreatedAt:     m.CreatedAt,
	}
}
