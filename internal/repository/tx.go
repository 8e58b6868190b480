package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxManager 显式事务边界：fn 返回错误即整体回滚，
// 仓储的 *Tx / *ForUpdate 方法在 fn 内使用传入的 tx 句柄。
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}
