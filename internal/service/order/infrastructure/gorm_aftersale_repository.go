package infrastructure

import (
	"context"
	"time"

	"eshop/internal/pkg/persistence"
	"eshop/internal/service/order/domain"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormAfterSaleRepository 售后单、售后条目、退款单与售后日志的仓储
type GormAfterSaleRepository struct {
	db *gorm.DB
}

func NewGormAfterSaleRepository(db *gorm.DB) *GormAfterSaleRepository {
	return &GormAfterSaleRepository{db: db}
}

func (r *GormAfterSaleRepository) Save(ctx context.Context, c *domain.AfterSaleCase) error {
	model, items := fromDomainAfterSale(c)
	return persistence.DB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return pkgerrors.Wrapf(err, "create after sale %s", c.AfterSaleID)
		}
		if len(items) == 0 {
			return nil
		}
		if err := tx.Create(&items).Error; err != nil {
			return pkgerrors.Wrapf(err, "create items of after sale %s", c.AfterSaleID)
		}
		return nil
	})
}

func (r *GormAfterSaleRepository) FindByID(ctx context.Context, afterSaleID string) (*domain.AfterSaleCase, error) {
	db := persistence.DB(ctx, r.db)
	var model AfterSaleInfoModel
	if err := db.Where("after_sale_id = ?", afterSaleID).Take(&model).Error; err != nil {
		if persistence.IsNotFound(err) {
			return nil, domain.ErrAfterSaleNotFound.WithMessage("after sale %s not found", afterSaleID)
		}
		return nil, pkgerrors.Wrapf(err, "find after sale %s", afterSaleID)
	}
	var items []*AfterSaleItemModel
	if err := db.Where("after_sale_id = ?", afterSaleID).Order("id").Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "find items of after sale %s", afterSaleID)
	}
	return toDomainAfterSale(&model, items), nil
}

func (r *GormAfterSaleRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.AfterSaleCase, error) {
	db := persistence.DB(ctx, r.db)
	var models []*AfterSaleInfoModel
	if err := db.Where("order_id = ?", orderID).Order("id").Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "list after sales of order %s", orderID)
	}
	var items []*AfterSaleItemModel
	if err := db.Where("order_id = ?", orderID).Order("id").Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "list after sale items of order %s", orderID)
	}
	byCase := make(map[string][]*AfterSaleItemModel, len(models))
	for _, it := range items {
		byCase[it.AfterSaleID] = append(byCase[it.AfterSaleID], it)
	}
	cases := make([]*domain.AfterSaleCase, 0, len(models))
	for _, m := range models {
		cases = append(cases, toDomainAfterSale(m, byCase[m.AfterSaleID]))
	}
	return cases, nil
}

func (r *GormAfterSaleRepository) UpdateStatus(ctx context.Context, afterSaleID string, from, to domain.AfterSaleStatus) (bool, error) {
	return r.update(ctx, afterSaleID, from, map[string]any{"after_sale_status": int(to)})
}

func (r *GormAfterSaleRepository) UpdateReview(ctx context.Context, afterSaleID string, from, to domain.AfterSaleStatus, review domain.Review) (bool, error) {
	return r.update(ctx, afterSaleID, from, map[string]any{
		"after_sale_status":  int(to),
		"review_time":        review.Time,
		"review_source":      review.Source,
		"review_reason_code": review.ReasonCode,
		"review_reason":      review.Reason,
	})
}

func (r *GormAfterSaleRepository) update(ctx context.Context, afterSaleID string, from domain.AfterSaleStatus, values map[string]any) (bool, error) {
	res := persistence.DB(ctx, r.db).Model(&AfterSaleInfoModel{}).
		Where("after_sale_id = ? AND after_sale_status = ?", afterSaleID, int(from)).
		Updates(values)
	if res.Error != nil {
		return false, pkgerrors.Wrapf(res.Error, "update after sale %s", afterSaleID)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormAfterSaleRepository) SaveRefund(ctx context.Context, refund *domain.AfterSaleRefund) error {
	err := persistence.DB(ctx, r.db).Create(fromDomainRefund(refund)).Error
	return pkgerrors.Wrapf(err, "create refund of after sale %s", refund.AfterSaleID)
}

func (r *GormAfterSaleRepository) FindRefund(ctx context.Context, afterSaleID string) (*domain.AfterSaleRefund, error) {
	var model AfterSaleRefundModel
	if err := persistence.DB(ctx, r.db).Where("after_sale_id = ?", afterSaleID).Take(&model).Error; err != nil {
		if persistence.IsNotFound(err) {
			return nil, domain.ErrAfterSaleRefundNotFound.WithMessage("refund of after sale %s not found", afterSaleID)
		}
		return nil, pkgerrors.Wrapf(err, "find refund of after sale %s", afterSaleID)
	}
	return toDomainRefund(&model), nil
}

func (r *GormAfterSaleRepository) UpdateRefundResult(ctx context.Context, afterSaleID, batchNo string, from, to domain.RefundStatus, payTime time.Time, remark string) (bool, error) {
	res := persistence.DB(ctx, r.db).Model(&AfterSaleRefundModel{}).
		Where("after_sale_id = ? AND batch_no = ? AND refund_status = ?", afterSaleID, batchNo, int(from)).
		Updates(map[string]any{
			"refund_status":   int(to),
			"refund_pay_time": payTime,
			"remark":          remark,
		})
	if res.Error != nil {
		return false, pkgerrors.Wrapf(res.Error, "update refund of after sale %s", afterSaleID)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormAfterSaleRepository) SaveLog(ctx context.Context, log *domain.AfterSaleLog) error {
	model := &AfterSaleLogModel{
		AfterSaleID:   log.AfterSaleID,
		PreStatus:     int(log.PreStatus),
		CurrentStatus: int(log.CurrentStatus),
		Remark:        log.Remark,
	}
	err := persistence.DB(ctx, r.db).Create(model).Error
	return pkgerrors.Wrapf(err, "save log of after sale %s", log.AfterSaleID)
}

func (r *GormAfterSaleRepository) ListLogs(ctx context.Context, afterSaleID string) ([]*domain.AfterSaleLog, error) {
	var models []*AfterSaleLogModel
	if err := persistence.DB(ctx, r.db).Where("after_sale_id = ?", afterSaleID).Order("id").Find(&models).Error; err != nil {
		return nil, pkgerrors.Wrapf(err, "list logs of after sale %s", afterSaleID)
	}
	logs := make([]*domain.AfterSaleLog, 0, len(models))
	for _, m := range models {
		logs = append(logs, toDomainAfterSaleLog(m))
	}
	return logs, nil
}
