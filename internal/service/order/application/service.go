// internal/service/order/application/service.go
package application

import (
	"context"
	"errors"
	"time"

	"eshop/internal/pkg/bizerr"
	"eshop/internal/pkg/ledger"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"
	"eshop/internal/pkg/outbox"
	"eshop/internal/pkg/persistence"
	"eshop/internal/service/order/domain"
	"eshop/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Dependencies AfterSaleService 依赖的仓储、基础设施与出站端口
type Dependencies struct {
	Orders     domain.OrderRepository
	AfterSales domain.AfterSaleRepository
	Ledger     ledger.Store
	Locker     lock.Locker
	Tx         persistence.Transactor
	Outbox     *outbox.Coordinator

	Fulfillment port.FulfillmentService
	Payment     port.PaymentService
	Coupon      port.CouponService
	Catalog     port.CatalogService
	Notifier    port.Notifier

	LackPolicy *domain.LackPolicy
	Tracer     trace.Tracer
}

// AfterSaleService 编排取消订单、退款、退货、缺品等售后流程。
// 每个入口都是: 加锁 -> 查台账/状态 -> 事务消息(本地事务 + 下一跳消息) -> 释放锁。
type AfterSaleService struct {
	orders     domain.OrderRepository
	afterSales domain.AfterSaleRepository
	ledger     ledger.Store
	locker     lock.Locker
	tx         persistence.Transactor
	outbox     *outbox.Coordinator

	fulfillment port.FulfillmentService
	payment     port.PaymentService
	coupon      port.CouponService
	catalog     port.CatalogService
	notifier    port.Notifier

	lackPolicy *domain.LackPolicy
	tracer     trace.Tracer

	wmsProcessors map[string]wmsProcessor
	now           func() time.Time
}

func NewAfterSaleService(deps Dependencies) *AfterSaleService {
	s := &AfterSaleService{
		orders:      deps.Orders,
		afterSales:  deps.AfterSales,
		ledger:      deps.Ledger,
		locker:      deps.Locker,
		tx:          deps.Tx,
		outbox:      deps.Outbox,
		fulfillment: deps.Fulfillment,
		payment:     deps.Payment,
		coupon:      deps.Coupon,
		catalog:     deps.Catalog,
		notifier:    deps.Notifier,
		lackPolicy:  deps.LackPolicy,
		tracer:      deps.Tracer,
		now:         time.Now,
	}
	s.wmsProcessors = s.buildWmsProcessors()
	s.registerChecks()
	return s
}

// registerChecks 注册事务消息回查，本地事务结果未知时由 Checker 调用
func (s *AfterSaleService) registerChecks() {
	s.outbox.RegisterCheck(checkOrderCanceled, func(ctx context.Context, msg *outbox.Message) outbox.TxState {
		order, err := s.orders.FindByID(ctx, msg.CorrelationID)
		if err != nil {
			return checkError(ctx, msg, err)
		}
		if order.Status == domain.OrderCanceled {
			return outbox.StateCommit
		}
		return outbox.StateRollback
	})

	s.outbox.RegisterCheck(checkAfterSaleCreated, func(ctx context.Context, msg *outbox.Message) outbox.TxState {
		c, err := s.afterSales.FindByID(ctx, msg.CorrelationID)
		if err != nil {
			return checkError(ctx, msg, err)
		}
		if _, err := s.afterSales.FindRefund(ctx, msg.CorrelationID); err != nil {
			return checkError(ctx, msg, err)
		}
		logs, err := s.afterSales.ListLogs(ctx, msg.CorrelationID)
		if err != nil {
			return checkError(ctx, msg, err)
		}
		if len(c.Items) > 0 && len(logs) > 0 {
			return outbox.StateCommit
		}
		return outbox.StateRollback
	})

	s.outbox.RegisterCheck(checkAfterSaleRefunding, s.statusCheck(domain.AfterSaleReviewPass, domain.AfterSaleRefunding))
	s.outbox.RegisterCheck(checkAfterSaleReviewPass, s.statusCheck(domain.AfterSaleCommitted, domain.AfterSaleReviewPass))
}

// statusCheck 售后单已经到达 to (或越过 to) 视为本地事务已提交
func (s *AfterSaleService) statusCheck(from, to domain.AfterSaleStatus) outbox.CheckFunc {
	return func(ctx context.Context, msg *outbox.Message) outbox.TxState {
		c, err := s.afterSales.FindByID(ctx, msg.CorrelationID)
		if err != nil {
			return checkError(ctx, msg, err)
		}
		if c.Status == from {
			return outbox.StateRollback
		}
		if errors.Is(domain.CheckTransition(c.Status, from, to), domain.ErrAlreadyProcessed) {
			return outbox.StateCommit
		}
		return outbox.StateRollback
	}
}

// checkError 数据不存在说明本地事务没有提交；其它错误保持未知，等待下次回查
func checkError(ctx context.Context, msg *outbox.Message, err error) outbox.TxState {
	if bizerr.KindOf(err) == bizerr.KindNotFound {
		return outbox.StateRollback
	}
	logger.Ctx(ctx).Warn().Err(err).Str("id", msg.ID).Str("checker", msg.Checker).Msg("check local transaction failed")
	return outbox.StatePending
}

// sendInTx 发送事务消息，本地事务在一个数据库事务中执行。
// 本地事务返回 ErrAlreadyProcessed 或台账冲突时按重复请求处理，其它未提交的情况返回 notCommitted。
func (s *AfterSaleService) sendInTx(ctx context.Context, msg *outbox.Message, notCommitted *bizerr.Error, local func(ctx context.Context) error) error {
	var localErr error
	state, err := s.outbox.SendInTransaction(ctx, msg, func(ctx context.Context) outbox.TxState {
		if localErr = s.tx.WithinTx(ctx, local); localErr != nil {
			return outbox.StateRollback
		}
		return outbox.StateCommit
	})
	if err != nil {
		return err
	}
	if state == outbox.StateCommit {
		return nil
	}
	if errors.Is(localErr, domain.ErrAlreadyProcessed) || errors.Is(localErr, ledger.ErrDuplicate) {
		return domain.ErrAlreadyProcessed
	}
	if localErr != nil {
		logger.Ctx(ctx).Error().Err(localErr).Str("topic", msg.Topic).Msg("local transaction rolled back")
		return notCommitted.Wrap(localErr)
	}
	return notCommitted
}

// transit 校验并迁移售后状态，同时写状态日志
func (s *AfterSaleService) transit(ctx context.Context, afterSaleID string, from, to domain.AfterSaleStatus, remark string) error {
	ok, err := s.afterSales.UpdateStatus(ctx, afterSaleID, from, to)
	if err != nil {
		return err
	}
	if !ok {
		return s.recheck(ctx, afterSaleID, from, to)
	}
	return s.afterSales.SaveLog(ctx, domain.NewAfterSaleLog(afterSaleID, from, to, remark))
}

// recheck 条件更新没有命中时重新读取状态，区分重复请求与非法迁移
func (s *AfterSaleService) recheck(ctx context.Context, afterSaleID string, from, to domain.AfterSaleStatus) error {
	current, err := s.afterSales.FindByID(ctx, afterSaleID)
	if err != nil {
		return err
	}
	if err := domain.CheckTransition(current.Status, from, to); err != nil {
		return err
	}
	return domain.ErrAlreadyProcessed
}

// findLedger 返回订单维度台账中的终态条目
func (s *AfterSaleService) findLedger(ctx context.Context, orderID, op string) (*ledger.Entry, error) {
	entry, err := s.ledger.Find(ctx, orderID, op)
	if err != nil {
		return nil, err
	}
	if entry != nil && ledger.IsTerminal(entry.Status) {
		return entry, nil
	}
	return nil, nil
}

// finish 结束 span 并记录步骤结果，ErrAlreadyProcessed 转换为正常结果
func (s *AfterSaleService) finish(span trace.Span, step string, res **Result, err *error) {
	defer span.End()
	result := "ok"
	switch {
	case errors.Is(*err, domain.ErrAlreadyProcessed):
		*err = nil
		if *res == nil {
			*res = &Result{}
		}
		(*res).AlreadyProcessed = true
		result = "already_processed"
		span.AddEvent("AlreadyProcessed")
	case *err != nil:
		result = bizerr.CodeOf(*err)
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	case *res != nil && (*res).AlreadyProcessed:
		result = "already_processed"
		span.AddEvent("AlreadyProcessed")
	}
	metrics.SagaStepsTotal.WithLabelValues(step, result).Inc()
}
