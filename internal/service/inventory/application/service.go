// internal/service/inventory/application/service.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"eshop/internal/pkg/bizerr"
	"eshop/internal/pkg/constants"
	"eshop/internal/pkg/ledger"
	"eshop/internal/pkg/lock"
	"eshop/internal/pkg/logger"
	"eshop/internal/pkg/metrics"
	"eshop/internal/pkg/persistence"
	"eshop/internal/service/inventory/domain"
	"eshop/internal/service/inventory/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// InventoryService 库存的扣减/释放/新增/调整。
// 每个写操作都遵循: 加锁 -> 查台账 -> 数据库事务(条件更新 + 台账) -> 提交后刷新缓存 -> 释放锁。
// 操作锁按订单或 sku 划分，缓存另有一把 sku 维度的锁，缓存的值只来自锁内读取的数据库记录。
type InventoryService struct {
	repo    domain.StockRepository
	cache   port.StockCache
	ledger  ledger.Store
	locker  lock.Locker
	tx      persistence.Transactor
	lockCfg lock.Config
	tracer  trace.Tracer

	warmGroup singleflight.Group
}

func NewInventoryService(repo domain.StockRepository, cache port.StockCache, ledgerStore ledger.Store, locker lock.Locker, tx persistence.Transactor, lockCfg lock.Config, tracer trace.Tracer) *InventoryService {
	return &InventoryService{
		repo:    repo,
		cache:   cache,
		ledger:  ledgerStore,
		locker:  locker,
		tx:      tx,
		lockCfg: lockCfg,
		tracer:  tracer,
	}
}

func stockOperationKey(skuCode string) string {
	return "stock:" + skuCode
}

// Deduct 按订单扣减库存。已经扣减过的行会被跳过，全部跳过时返回 AlreadyProcessed。
func (s *InventoryService) Deduct(ctx context.Context, req *DeductRequest) (res *OperationResult, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Deduct", trace.WithAttributes(attribute.String("order.id", req.OrderID)))
	defer func() { s.finish(span, "deduct", res, err) }()

	if err := validateLines(req.OrderID, req.Items); err != nil {
		return nil, err
	}

	skipped := 0
	for _, line := range req.Items {
		done, err := s.deductLine(ctx, req.OrderID, line)
		if err != nil {
			return nil, err
		}
		if done {
			skipped++
		}
	}
	return &OperationResult{AlreadyProcessed: skipped == len(req.Items)}, nil
}

// deductLine 返回 true 表示该行之前已经扣减过
func (s *InventoryService) deductLine(ctx context.Context, orderID string, line domain.StockLine) (bool, error) {
	if _, err := s.repo.FindBySku(ctx, line.SkuCode); err != nil {
		return false, err
	}
	s.warmCache(ctx, line.SkuCode)

	skipped := false
	key := constants.DeductStockLockPrefix + orderID + ":" + line.SkuCode
	err := lock.Do(ctx, s.locker, key, s.lockCfg.DeductWait, domain.ErrDeductLockBusy, func(ctx context.Context) error {
		entry, err := s.ledger.Find(ctx, orderID, stockOperationKey(line.SkuCode))
		if err != nil {
			return err
		}
		if entry != nil && ledger.IsTerminal(entry.Status) {
			logger.Ctx(ctx).Info().Str("order_id", orderID).Str("sku_code", line.SkuCode).Msg("stock already deducted, skip")
			skipped = true
			return nil
		}

		payload, _ := json.Marshal(stockLogPayload{Quantity: line.Quantity})
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			ok, err := s.repo.Deduct(ctx, line.SkuCode, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrStockNotEnough.WithMessage("sku %s stock not enough for %d", line.SkuCode, line.Quantity)
			}
			return s.ledger.Record(ctx, &ledger.Entry{
				ResourceID:   orderID,
				OperationKey: stockOperationKey(line.SkuCode),
				Status:       ledger.StatusCompleted,
				Payload:      payload,
			})
		})
		if errors.Is(err, ledger.ErrDuplicate) {
			// 锁过期后并发请求抢先写入了台账
			skipped = true
			return nil
		}
		if err != nil {
			return err
		}

		s.refreshCache(ctx, line.SkuCode)
		return nil
	})
	return skipped, err
}

// Release 释放订单占用的库存。锁只按 sku 加，多个 sku 一次全部拿到，与同一 sku 的其它释放串行。
func (s *InventoryService) Release(ctx context.Context, req *ReleaseRequest) (res *OperationResult, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Release", trace.WithAttributes(attribute.String("order.id", req.OrderID)))
	defer func() { s.finish(span, "release", res, err) }()

	if err := validateLines(req.OrderID, req.Items); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(req.Items))
	for _, line := range req.Items {
		keys = append(keys, constants.ReleaseStockLockPrefix+line.SkuCode)
	}
	skipped := 0
	err = lock.DoMulti(ctx, s.locker, keys, s.lockCfg.ReleaseWait, domain.ErrReleaseLockBusy, func(ctx context.Context) error {
		for _, line := range req.Items {
			done, err := s.releaseLine(ctx, req.OrderID, line)
			if err != nil {
				return err
			}
			if done {
				skipped++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OperationResult{AlreadyProcessed: skipped == len(req.Items)}, nil
}

// releaseLine 调用方持有该 sku 的释放锁，返回 true 表示该行无需释放
func (s *InventoryService) releaseLine(ctx context.Context, orderID string, line domain.StockLine) (bool, error) {
	if _, err := s.repo.FindBySku(ctx, line.SkuCode); err != nil {
		return false, err
	}
	s.warmCache(ctx, line.SkuCode)

	entry, err := s.ledger.Find(ctx, orderID, stockOperationKey(line.SkuCode))
	if err != nil {
		return false, err
	}
	switch {
	case entry == nil:
		// 没有扣减过，没有需要归还的库存
		logger.Ctx(ctx).Warn().Str("order_id", orderID).Str("sku_code", line.SkuCode).Msg("no deduct log found, skip release")
		return true, nil
	case entry.Status == ledger.StatusReleased:
		logger.Ctx(ctx).Info().Str("order_id", orderID).Str("sku_code", line.SkuCode).Msg("stock already released, skip")
		return true, nil
	}

	quantity := line.Quantity
	var recorded stockLogPayload
	if json.Unmarshal(entry.Payload, &recorded) == nil && recorded.Quantity > 0 {
		quantity = recorded.Quantity
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Release(ctx, line.SkuCode, quantity)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSaledNotEnough.WithMessage("sku %s saled stock less than %d", line.SkuCode, quantity)
		}
		moved, err := s.ledger.Transition(ctx, orderID, stockOperationKey(line.SkuCode), ledger.StatusCompleted, ledger.StatusReleased)
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrConcurrentWrite
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.refreshCache(ctx, line.SkuCode)
	return false, nil
}

// Add 新建 sku 的库存记录
func (s *InventoryService) Add(ctx context.Context, req *AddRequest) (res *OperationResult, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Add", trace.WithAttributes(attribute.String("sku.code", req.SkuCode)))
	defer func() { s.finish(span, "add", res, err) }()

	if strings.TrimSpace(req.SkuCode) == "" {
		return nil, domain.ErrSkuCodeEmpty
	}
	if req.SaleStockQuantity < 0 {
		return nil, domain.ErrStockNegativeArg
	}

	record := &domain.StockRecord{SkuCode: req.SkuCode, SaleStockQuantity: req.SaleStockQuantity}
	err = lock.Do(ctx, s.locker, constants.AddStockLockPrefix+req.SkuCode, 0, domain.ErrAddLockBusy, func(ctx context.Context) error {
		existing, err := s.repo.FindBySku(ctx, req.SkuCode)
		if err == nil && existing != nil {
			return domain.ErrStockExisted
		}
		if err != nil && !errors.Is(err, domain.ErrStockNotFound) {
			return err
		}
		if err := s.repo.Create(ctx, record); err != nil {
			return err
		}
		s.refreshCache(ctx, req.SkuCode)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OperationResult{}, nil
}

// Modify 调整可售库存，delta 可正可负
func (s *InventoryService) Modify(ctx context.Context, req *ModifyRequest) (res *OperationResult, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.Modify", trace.WithAttributes(
		attribute.String("sku.code", req.SkuCode),
		attribute.Int64("stock.incremental", req.StockIncremental),
	))
	defer func() { s.finish(span, "modify", res, err) }()

	if strings.TrimSpace(req.SkuCode) == "" {
		return nil, domain.ErrSkuCodeEmpty
	}
	if req.StockIncremental == 0 {
		return nil, domain.ErrZeroDelta
	}

	err = lock.Do(ctx, s.locker, constants.ModifyStockLockPrefix+req.SkuCode, 0, domain.ErrModifyLockBusy, func(ctx context.Context) error {
		record, err := s.repo.FindBySku(ctx, req.SkuCode)
		if err != nil {
			return err
		}
		if record.SaleStockQuantity+req.StockIncremental < 0 {
			return domain.ErrNegativeStock
		}
		ok, err := s.repo.Modify(ctx, req.SkuCode, req.StockIncremental)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNegativeStock
		}
		s.refreshCache(ctx, req.SkuCode)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OperationResult{}, nil
}

// SyncToCache 用数据库记录覆盖缓存，用于缓存被误删或数据错乱后的修复
func (s *InventoryService) SyncToCache(ctx context.Context, skuCode string) (res *OperationResult, err error) {
	ctx, span := s.tracer.Start(ctx, "inventory.SyncToCache", trace.WithAttributes(attribute.String("sku.code", skuCode)))
	defer func() { s.finish(span, "sync", res, err) }()

	if strings.TrimSpace(skuCode) == "" {
		return nil, domain.ErrSkuCodeEmpty
	}
	err = s.withCacheLock(ctx, skuCode, func(ctx context.Context) error {
		record, err := s.repo.FindBySku(ctx, skuCode)
		if err != nil {
			return err
		}
		return s.cache.Set(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	return &OperationResult{}, nil
}

// GetStock 读缓存，缓存缺失时从数据库回填
func (s *InventoryService) GetStock(ctx context.Context, skuCode string) (*StockView, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.GetStock", trace.WithAttributes(attribute.String("sku.code", skuCode)))
	defer span.End()

	if strings.TrimSpace(skuCode) == "" {
		return nil, domain.ErrSkuCodeEmpty
	}
	cached, ok, err := s.cache.Get(ctx, skuCode)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("sku_code", skuCode).Msg("read stock cache failed, fallback to db")
	}
	if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return toView(cached), nil
	}

	record, err := s.repo.FindBySku(ctx, skuCode)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.warmCache(ctx, skuCode)
	return toView(record), nil
}

func (s *InventoryService) withCacheLock(ctx context.Context, skuCode string, fn func(ctx context.Context) error) error {
	return lock.Do(ctx, s.locker, constants.StockCacheLockPrefix+skuCode, s.lockCfg.CacheWait, domain.ErrCacheLockBusy, fn)
}

// warmCache 缓存缺失时在缓存锁内读取数据库并回填，同一 sku 的并发回填只执行一次
func (s *InventoryService) warmCache(ctx context.Context, skuCode string) {
	_, _, _ = s.warmGroup.Do(skuCode, func() (interface{}, error) {
		err := s.withCacheLock(ctx, skuCode, func(ctx context.Context) error {
			_, ok, err := s.cache.Get(ctx, skuCode)
			if err != nil || ok {
				return err
			}
			record, err := s.repo.FindBySku(ctx, skuCode)
			if err != nil {
				return err
			}
			_, err = s.cache.SetIfAbsent(ctx, record)
			return err
		})
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("sku_code", skuCode).Msg("warm stock cache failed")
		}
		return nil, err
	})
}

// refreshCache 数据库提交之后在缓存锁内重读记录覆盖缓存；失败时删除缓存，下次读取重新回填
func (s *InventoryService) refreshCache(ctx context.Context, skuCode string) {
	err := s.withCacheLock(ctx, skuCode, func(ctx context.Context) error {
		record, err := s.repo.FindBySku(ctx, skuCode)
		if err != nil {
			return err
		}
		return s.cache.Set(ctx, record)
	})
	if err != nil {
		s.evict(ctx, skuCode, err)
	}
}

func (s *InventoryService) evict(ctx context.Context, skuCode string, cause error) {
	log := logger.Ctx(ctx).With().Str("sku_code", skuCode).Logger()
	log.Warn().Err(cause).Msg("update stock cache failed, evicting")
	if err := s.cache.Delete(ctx, skuCode); err != nil {
		log.Error().Err(err).Msg("evict stock cache failed, run sync to repair")
	}
}

func (s *InventoryService) finish(span trace.Span, op string, res *OperationResult, err error) {
	defer span.End()
	result := "ok"
	switch {
	case err != nil:
		result = bizerr.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case res != nil && res.AlreadyProcessed:
		result = "already_processed"
		span.AddEvent("AlreadyProcessed")
	}
	metrics.StockOperationsTotal.WithLabelValues(op, result).Inc()
}

func validateLines(orderID string, items []domain.StockLine) error {
	if strings.TrimSpace(orderID) == "" {
		return domain.ErrOrderIDEmpty
	}
	if len(items) == 0 {
		return domain.ErrItemsEmpty
	}
	for _, line := range items {
		if strings.TrimSpace(line.SkuCode) == "" {
			return domain.ErrSkuCodeEmpty
		}
		if line.Quantity <= 0 {
			return domain.ErrQuantityInvalid.WithMessage("sku %s sale quantity must be positive", line.SkuCode)
		}
	}
	return nil
}
