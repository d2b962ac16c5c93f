package infrastructure

import (
	"context"
	"errors"

	"eshop/internal/pkg/persistence"
	"eshop/internal/service/inventory/domain"

	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormStockRepository 是 StockRepository 的 GORM 实现，所有更新都是带条件的单条 UPDATE
type GormStockRepository struct {
	db *gorm.DB
}

func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) FindBySku(ctx context.Context, skuCode string) (*domain.StockRecord, error) {
	var model ProductStockModel
	err := persistence.DB(ctx, r.db).Where("sku_code = ?", skuCode).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStockNotFound.WithMessage("stock of sku %s not found", skuCode)
		}
		return nil, pkgerrors.Wrapf(err, "find stock %s", skuCode)
	}
	return ToDomainStock(&model), nil
}

func (r *GormStockRepository) Create(ctx context.Context, record *domain.StockRecord) error {
	if err := persistence.DB(ctx, r.db).Create(FromDomainStock(record)).Error; err != nil {
		if persistence.IsDuplicateKey(err) {
			return domain.ErrStockExisted.Wrap(err)
		}
		return pkgerrors.Wrapf(err, "create stock %s", record.SkuCode)
	}
	return nil
}

func (r *GormStockRepository) Deduct(ctx context.Context, skuCode string, quantity int64) (bool, error) {
	return r.update(ctx, "deduct", skuCode,
		"sale_stock_quantity >= ?", quantity,
		map[string]interface{}{
			"sale_stock_quantity":  gorm.Expr("sale_stock_quantity - ?", quantity),
			"saled_stock_quantity": gorm.Expr("saled_stock_quantity + ?", quantity),
		})
}

func (r *GormStockRepository) Release(ctx context.Context, skuCode string, quantity int64) (bool, error) {
	return r.update(ctx, "release", skuCode,
		"saled_stock_quantity >= ?", quantity,
		map[string]interface{}{
			"sale_stock_quantity":  gorm.Expr("sale_stock_quantity + ?", quantity),
			"saled_stock_quantity": gorm.Expr("saled_stock_quantity - ?", quantity),
		})
}

func (r *GormStockRepository) Modify(ctx context.Context, skuCode string, delta int64) (bool, error) {
	return r.update(ctx, "modify", skuCode,
		"sale_stock_quantity + ? >= 0", delta,
		map[string]interface{}{
			"sale_stock_quantity": gorm.Expr("sale_stock_quantity + ?", delta),
		})
}

func (r *GormStockRepository) update(ctx context.Context, op, skuCode, cond string, arg int64, values map[string]interface{}) (bool, error) {
	res := persistence.DB(ctx, r.db).Model(&ProductStockModel{}).
		Where("sku_code = ?", skuCode).
		Where(cond, arg).
		Updates(values)
	if res.Error != nil {
		return false, pkgerrors.Wrapf(res.Error, "%s stock %s", op, skuCode)
	}
	return res.RowsAffected == 1, nil
}
