package persistence

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// TxFromContext 取出 context 中的事务，没有时返回 nil
func TxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// ContextWithTx 把事务放进 context，仓储通过 DB(ctx, db) 自动加入该事务
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// DB 优先返回 context 中的事务
func DB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
