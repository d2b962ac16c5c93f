package application

import (
	"context"
	"strings"

	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// wmsProcessor 处理一种物流状态
type wmsProcessor func(ctx context.Context, order *domain.Order, event *domain.WmsShipEvent) error

func (s *AfterSaleService) buildWmsProcessors() map[string]wmsProcessor {
	return map[string]wmsProcessor{
		domain.WmsOutStocked: s.advanceOrder(domain.OrderOutStock, domain.OperateOutStock, "订单已出库"),
		domain.WmsDelivered:  s.advanceOrder(domain.OrderDelivery, domain.OperateDelivery, "订单已配送"),
		domain.WmsSigned:     s.advanceOrder(domain.OrderSigned, domain.OperateSigned, "订单已签收"),
	}
}

// advanceOrder 订单状态只前进，已经到达或越过 to 的消息视为重复
func (s *AfterSaleService) advanceOrder(to domain.OrderStatus, operateType int, remark string) wmsProcessor {
	return func(ctx context.Context, order *domain.Order, event *domain.WmsShipEvent) error {
		if order.Status >= to {
			return domain.ErrAlreadyProcessed
		}
		logRemark := remark
		if event.Remark != "" {
			logRemark += ":" + event.Remark
		}
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			ok, err := s.orders.UpdateStatus(ctx, order.OrderID, order.Status, to)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrOrderStatusChanged
			}
			return s.orders.SaveOperateLog(ctx, &domain.OrderOperateLog{
				OrderID:       order.OrderID,
				OperateType:   operateType,
				PreStatus:     order.Status,
				CurrentStatus: to,
				Remark:        logRemark,
			})
		})
	}
}

// HandleWmsShipResult 消费履约侧的物流结果，推进订单状态。
// 与取消订单共用订单锁，出库和取消不会同时发生。
func (s *AfterSaleService) HandleWmsShipResult(ctx context.Context, event *domain.WmsShipEvent) (res *Result, err error) {
	ctx, span := s.tracer.Start(ctx, "app.HandleWmsShipResult", trace.WithAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("wms.status", event.Status),
	))
	defer func() { s.finish(span, "wms_ship_result", &res, &err) }()

	if strings.TrimSpace(event.OrderID) == "" {
		return nil, domain.ErrOrderIDEmpty
	}
	process, ok := s.wmsProcessors[event.Status]
	if !ok {
		return nil, domain.ErrWmsStatusUnsupported.WithMessage("unsupported wms status %q", event.Status)
	}

	res = &Result{OrderID: event.OrderID}
	err = lock.Do(ctx, s.locker, constants.CancelOrderLockPrefix+event.OrderID, 0, domain.ErrShipResultBusy, func(ctx context.Context) error {
		order, err := s.orders.FindByID(ctx, event.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.OrderCanceled {
			logger.Ctx(ctx).Warn().Str("order_id", order.OrderID).Str("wms_status", event.Status).
				Msg("ship result for canceled order ignored")
			return domain.ErrAlreadyProcessed
		}
		return process(ctx, order, event)
	})
	if err != nil {
		return res, err
	}
	logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Str("wms_status", event.Status).Msg("order ship status updated")
	return res, nil
}
