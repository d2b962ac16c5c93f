package persistence

import (
	"context"

	"eshop/internal/pkg/retry"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Transactor 在一个本地事务里执行 fn，fn 返回错误时整体回滚
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// GormTransactor 基于 gorm 的事务实现，遇到死锁/锁等待超时会整体重试
type GormTransactor struct {
	db          *gorm.DB
	retryConfig retry.Config
}

func NewGormTransactor(db *gorm.DB, retryConfig retry.Config) *GormTransactor {
	return &GormTransactor{db: db, retryConfig: retryConfig}
}

func (t *GormTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// 已经在事务中时直接加入外层事务
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	return retry.ExecuteWithRetry(ctx, t.retryConfig, func(ctx context.Context) error {
		tx := t.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return errors.Wrap(tx.Error, "begin transaction")
		}

		committed := false
		defer func() {
			if !committed {
				tx.Rollback()
			}
		}()

		if err := fn(ContextWithTx(ctx, tx)); err != nil {
			return err
		}
		if err := tx.Commit().Error; err != nil {
			return errors.Wrap(err, "commit transaction")
		}
		committed = true
		return nil
	})
}

// NoopTransactor 直接执行 fn，内存仓储与单元测试使用
type NoopTransactor struct{}

func (NoopTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
