package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/goshop/internal/datamodels/order"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

// CreateTx 在事务内同时落库订单与条目
func (r *orderRepo) CreateTx(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		return err
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	if len(o.Items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&o.Items).Error
}

func (r *orderRepo) loadItems(ctx context.Context, db *gorm.DB, o *order.Order) error {
	return db.WithContext(ctx).
		Where("order_id = ?", o.ID).
		Order("id ASC").
		Find(&o.Items).Error
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, r.db, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByIDForUpdate 排他行锁读取订单，供回调处理的状态流转使用
func (r *orderRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*order.Order, error) {
	var o order.Order
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&o, id).Error; err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, tx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveTx 只更新订单行本身；条目创建后不可变，从不回写
func (r *orderRepo) SaveTx(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	return tx.WithContext(ctx).
		Model(&order.Order{}).
		Where("id = ?", o.ID).
		Updates(map[string]interface{}{"status": o.Status}).Error
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	for _, o := range list {
		if err := r.loadItems(ctx, r.db, o); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *orderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	var list []*order.Order
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
