package application

import (
	"context"
	"encoding/json"
	"strings"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/outbox"
	"eshop/internal/pkg/utils"
	"eshop/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ApplyReturnGoods 用户申请退货。每次只能申请一个 sku，生成待审核的售后单并发给客服审核。
func (s *AfterSaleService) ApplyReturnGoods(ctx context.Context, req *ReturnGoodsRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.ApplyReturnGoods", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("sku", req.SkuCode),
	))
	defer func() { s.finish(span, "apply_return_goods", &res, &err) }()

	if err := validateReturnGoods(req); err != nil {
		return nil, err
	}

	err = lock.Do(ctx, s.locker, constants.AfterSaleApplyLockPrefix+req.OrderID, 0, domain.ErrApplyAfterSaleBusy, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, req.OrderID)
		if err != nil {
			return err
		}
		cases, err := s.afterSales.ListByOrder(ctx, req.OrderID)
		if err != nil {
			return err
		}
		returned := returnedSkus(cases, "")
		if returned[req.SkuCode] || occupied(cases, req.SkuCode) {
			return domain.ErrApplyAfterSaleRepeat
		}

		amount, err := domain.CalculateReturnAmount(order, len(returned), req.SkuCode)
		if err != nil {
			return err
		}

		afterSale := s.returnGoodsAfterSale(order, req, amount)
		refund := domain.NewRefund(order, afterSale.AfterSaleID, afterSale.RealRefundAmount)
		payload, err := json.Marshal(domain.CustomerAuditMessage{
			AfterSaleID:       afterSale.AfterSaleID,
			OrderID:           order.OrderID,
			UserID:            order.UserID,
			SkuCode:           req.SkuCode,
			ReturnQuantity:    amount.Item.SaleQuantity,
			ApplyRefundAmount: amount.ApplyRefundAmount,
			RealRefundAmount:  amount.RealRefundAmount,
			LastReturnGoods:   amount.LastReturnGoods,
		})
		if err != nil {
			return err
		}
		msg := &outbox.Message{
			Topic:         constants.AfterSaleCustomerAuditTopic,
			Key:           afterSale.AfterSaleID,
			CorrelationID: afterSale.AfterSaleID,
			Checker:       checkAfterSaleCreated,
			Payload:       payload,
		}
		err = s.sendInTx(ctx, msg, domain.ErrCustomerAuditSendFailed, func(ctx context.Context) error {
			if err := s.afterSales.Save(ctx, afterSale); err != nil {
				return err
			}
			if err := s.afterSales.SaveLog(ctx, domain.NewAfterSaleLog(afterSale.AfterSaleID,
				domain.AfterSaleUncreated, domain.AfterSaleCommitted, "用户提交退货申请")); err != nil {
				return err
			}
			return s.afterSales.SaveRefund(ctx, refund)
		})
		if err != nil {
			return err
		}
		res = &Result{OrderID: order.OrderID, AfterSaleID: afterSale.AfterSaleID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("order_id", res.OrderID).Str("after_sale_id", res.AfterSaleID).Msg("return goods applied")
	return res, nil
}

func (s *AfterSaleService) returnGoodsAfterSale(order *domain.Order, req *ReturnGoodsRequest, amount *domain.ReturnAmount) *domain.AfterSaleCase {
	afterSaleID := utils.NewID()
	remark := req.ReturnGoodsDesc
	if remark == "" {
		remark = "用户退货"
	}
	item := domain.ItemFromOrder(afterSaleID, amount.Item)
	item.ApplyRefundAmount = amount.ApplyRefundAmount
	item.RealRefundAmount = amount.RealRefundAmount
	return &domain.AfterSaleCase{
		AfterSaleID:        afterSaleID,
		OrderID:            order.OrderID,
		UserID:             order.UserID,
		BusinessIdentifier: order.BusinessIdentifier,
		OrderType:          order.OrderType,
		Type:               amount.Type,
		TypeDetail:         domain.TypeDetailPartRefund,
		ApplySource:        domain.ApplySourceUserReturnGoods,
		Status:             domain.AfterSaleCommitted,
		ApplyRefundAmount:  amount.ApplyRefundAmount,
		RealRefundAmount:   amount.RealRefundAmount,
		ApplyReasonCode:    *req.ReturnGoodsCode,
		ApplyReason:        remark,
		Remark:             remark,
		ApplyTime:          s.now(),
		Items:              []domain.AfterSaleItem{item},
	}
}

// ReceiveCustomerAudit 客服审核结果。
// 拒绝只更新售后单；通过时发出 customer-audit-pass-release-assets，释放退货库存并发起退款。
func (s *AfterSaleService) ReceiveCustomerAudit(ctx context.Context, req *CustomerAuditRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.ReceiveCustomerAudit", trace.WithAttributes(
		attribute.String("after_sale.id", req.AfterSaleID),
		attribute.Int("audit.result", req.AuditResult),
	))
	defer func() { s.finish(span, "customer_audit", &res, &err) }()

	if strings.TrimSpace(req.AfterSaleID) == "" {
		return nil, domain.ErrAfterSaleIDEmpty
	}
	to := domain.AfterSaleReviewPass
	switch req.AuditResult {
	case domain.AuditAccept:
	case domain.AuditReject:
		to = domain.AfterSaleReviewRejected
	default:
		return nil, domain.ErrAuditResultInvalid
	}

	err = lock.Do(ctx, s.locker, constants.RefundLockPrefix+req.AfterSaleID, 0, domain.ErrCustomerAuditRepeat, func(ctx context.Context) error {
		afterSale, err := s.afterSales.FindByID(ctx, req.AfterSaleID)
		if err != nil {
			return err
		}
		res = &Result{OrderID: afterSale.OrderID, AfterSaleID: afterSale.AfterSaleID}
		if domain.Reached(afterSale.Status, to) {
			return domain.ErrAlreadyProcessed
		}
		if afterSale.Status != domain.AfterSaleCommitted {
			return domain.ErrCustomerAuditRepeat
		}

		review := domain.Review{
			Time:       s.now(),
			Source:     domain.ReviewSourceSelfMall,
			ReasonCode: req.AuditResult,
			Reason:     req.AuditResultDesc,
		}
		if to == domain.AfterSaleReviewRejected {
			if review.Reason == "" {
				review.Reason = "客服审核拒绝"
			}
			return s.tx.WithinTx(ctx, func(ctx context.Context) error {
				return s.review(ctx, afterSale.AfterSaleID, to, review)
			})
		}
		if review.Reason == "" {
			review.Reason = "客服审核通过"
		}
		return s.auditPass(ctx, afterSale, review)
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// auditPass 释放退货条目的库存，并判断是否为订单最后一笔退货
func (s *AfterSaleService) auditPass(ctx context.Context, afterSale *domain.AfterSaleCase, review domain.Review) error {
	if len(afterSale.Items) == 0 {
		return domain.ErrAfterSaleItemNotFound
	}
	item := afterSale.Items[0]

	order, err := s.orders.FindByID(ctx, afterSale.OrderID)
	if err != nil {
		return err
	}
	cases, err := s.afterSales.ListByOrder(ctx, afterSale.OrderID)
	if err != nil {
		return err
	}
	last := len(order.Items) == len(returnedSkus(cases, afterSale.AfterSaleID))+1

	payload, err := json.Marshal(domain.AuditPassReleaseAssetsMessage{
		ReleaseInventory: domain.ReleaseInventoryMessage{
			OrderID: afterSale.OrderID,
			Items:   []domain.ReleaseItem{{SkuCode: item.SkuCode, SaleQuantity: item.ReturnQuantity}},
		},
		ActualRefund: domain.ActualRefundMessage{
			OrderID:         afterSale.OrderID,
			AfterSaleID:     afterSale.AfterSaleID,
			LastReturnGoods: last,
		},
	})
	if err != nil {
		return err
	}
	msg := &outbox.Message{
		Topic:         constants.CustomerAuditPassReleaseAssetsTopic,
		Key:           afterSale.OrderID,
		CorrelationID: afterSale.AfterSaleID,
		Checker:       checkAfterSaleReviewPass,
		Payload:       payload,
	}
	return s.sendInTx(ctx, msg, domain.ErrAuditPassSendFailed, func(ctx context.Context) error {
		return s.review(ctx, afterSale.AfterSaleID, domain.AfterSaleReviewPass, review)
	})
}

// review 从已提交迁移到审核结果状态并写日志
func (s *AfterSaleService) review(ctx context.Context, afterSaleID string, to domain.AfterSaleStatus, review domain.Review) error {
	ok, err := s.afterSales.UpdateReview(ctx, afterSaleID, domain.AfterSaleCommitted, to, review)
	if err != nil {
		return err
	}
	if !ok {
		return s.recheck(ctx, afterSaleID, domain.AfterSaleCommitted, to)
	}
	return s.afterSales.SaveLog(ctx, domain.NewAfterSaleLog(afterSaleID, domain.AfterSaleCommitted, to, review.Reason))
}

// RevokeAfterSale 用户撤销还没有审核的售后单
func (s *AfterSaleService) RevokeAfterSale(ctx context.Context, req *RevokeAfterSaleRequest) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.RevokeAfterSale", trace.WithAttributes(attribute.String("after_sale.id", req.AfterSaleID)))
	defer func() { s.finish(span, "revoke_after_sale", &res, &err) }()

	if strings.TrimSpace(req.AfterSaleID) == "" {
		return nil, domain.ErrAfterSaleIDEmpty
	}

	err = lock.Do(ctx, s.locker, constants.RefundLockPrefix+req.AfterSaleID, 0, domain.ErrCannotRevoke, func(ctx context.Context) error {
		afterSale, err := s.afterSales.FindByID(ctx, req.AfterSaleID)
		if err != nil {
			return err
		}
		res = &Result{OrderID: afterSale.OrderID, AfterSaleID: afterSale.AfterSaleID}
		switch afterSale.Status {
		case domain.AfterSaleRevoked:
			return domain.ErrAlreadyProcessed
		case domain.AfterSaleCommitted:
		default:
			return domain.ErrCannotRevoke.WithMessage("after sale is %s", afterSale.Status)
		}
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			return s.transit(ctx, afterSale.AfterSaleID, domain.AfterSaleCommitted, domain.AfterSaleRevoked, "用户撤销售后")
		})
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// returnedSkus 用户退货占用的 sku。撤销与审核拒绝的售后单不计，exclude 为空时统计全部。
func returnedSkus(cases []*domain.AfterSaleCase, exclude string) map[string]bool {
	skus := make(map[string]bool)
	for _, c := range cases {
		if c.AfterSaleID == exclude || !c.Live() || c.ApplySource != domain.ApplySourceUserReturnGoods {
			continue
		}
		for _, item := range c.Items {
			skus[item.SkuCode] = true
		}
	}
	return skus
}

// occupied 取消订单生成的整单售后同样占用所有 sku
func occupied(cases []*domain.AfterSaleCase, skuCode string) bool {
	for _, c := range cases {
		if !c.Live() || c.ApplySource == domain.ApplySourceUserReturnGoods || c.TypeDetail == domain.TypeDetailLackRefund {
			continue
		}
		for _, item := range c.Items {
			if item.SkuCode == skuCode {
				return true
			}
		}
	}
	return false
}

func validateReturnGoods(req *ReturnGoodsRequest) error {
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return domain.ErrOrderIDEmpty
	case strings.TrimSpace(req.UserID) == "":
		return domain.ErrUserIDEmpty
	case req.BusinessIdentifier == nil:
		return domain.ErrBusinessIdentifierEmpty
	case req.ReturnGoodsCode == nil:
		return domain.ErrReturnGoodsCodeEmpty
	case strings.TrimSpace(req.SkuCode) == "":
		return domain.ErrSkuEmpty
	}
	return nil
}
