package infrastructure

import (
	"context"
	"time"

	"eshop/internal/pkg/persistence"
	"eshop/internal/service/order/domain"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormOrderRepository 订单仓储，状态变更都是带 from 条件的单条 UPDATE
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	model, items := fromDomainOrder(order)
	return persistence.DB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return pkgerrors.Wrapf(err, "create order %s", order.OrderID)
		}
		if len(items) == 0 {
			return nil
		}
		if err := tx.Create(&items).Error; err != nil {
			return pkgerrors.Wrapf(err, "create items of order %s", order.OrderID)
		}
		return nil
	})
}

func (r *GormOrderRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	db := persistence.DB(ctx, r.db)
	var model OrderInfoModel
	if err := db.Where("order_id = ?", orderID).Take(&model).Error; err != nil {
		if persistence.IsNotFound(err) {
			return nil, domain.ErrOrderNotFound.WithMessage("order %s not found", orderID)
		}
		return nil, pkgerrors.Wrapf(err, "find order %s", orderID)
	}
	var items []*OrderItemModel
	if err := db.Where("order_id = ?", orderID).Order("id").Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "find items of order %s", orderID)
	}
	return toDomainOrder(&model, items), nil
}

func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (bool, error) {
	return r.update(ctx, orderID, from, map[string]any{"order_status": int(to)})
}

func (r *GormOrderRepository) MarkCanceled(ctx context.Context, orderID string, from domain.OrderStatus, cancelType int, at time.Time) (bool, error) {
	return r.update(ctx, orderID, from, map[string]any{
		"order_status": int(domain.OrderCanceled),
		"cancel_type":  cancelType,
		"cancel_time":  at,
	})
}

func (r *GormOrderRepository) update(ctx context.Context, orderID string, from domain.OrderStatus, values map[string]any) (bool, error) {
	res := persistence.DB(ctx, r.db).Model(&OrderInfoModel{}).
		Where("order_id = ? AND order_status = ?", orderID, int(from)).
		Updates(values)
	if res.Error != nil {
		return false, pkgerrors.Wrapf(res.Error, "update order %s", orderID)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormOrderRepository) UpdateExt(ctx context.Context, orderID, extJSON string) error {
	err := persistence.DB(ctx, r.db).Model(&OrderInfoModel{}).
		Where("order_id = ?", orderID).
		Update("ext_json", extJSON).Error
	return pkgerrors.Wrapf(err, "update ext of order %s", orderID)
}

func (r *GormOrderRepository) SaveOperateLog(ctx context.Context, log *domain.OrderOperateLog) error {
	err := persistence.DB(ctx, r.db).Create(fromDomainOperateLog(log)).Error
	return pkgerrors.Wrapf(err, "save operate log of order %s", log.OrderID)
}

// ListOperateLogs 按时间顺序返回订单操作日志
func (r *GormOrderRepository) ListOperateLogs(ctx context.Context, orderID string) ([]*domain.OrderOperateLog, error) {
	var models []*OrderOperateLogModel
	if err := persistence.DB(ctx, r.db).Where("order_id = ?", orderID).Order("id").Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "list operate logs of order %s", orderID)
	}
	logs := make([]*domain.OrderOperateLog, 0, len(models))
	for _, m := range models {
		logs = append(logs, &domain.OrderOperateLog{
			OrderID:       m.OrderID,
			OperateType:   m.OperateType,
			PreStatus:     domain.OrderStatus(m.PreStatus),
			CurrentStatus: domain.OrderStatus(m.CurrentStatus),
			Remark:        m.Remark,
			CreatedAt:     m.CreatedAt,
		})
	}
	return logs, nil
}
