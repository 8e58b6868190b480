package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/goshop/internal/datamodels/cart"
)

type cartRepo struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepo{db: db}
}

func (r *cartRepo) getWithItems(ctx context.Context, db *gorm.DB, userID int64) (*cart.Cart, error) {
	var c cart.Cart
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	// 条目显式加载，不走 ORM 级联
	if err := db.WithContext(ctx).
		Where("cart_id = ?", c.ID).
		Find(&c.Items).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *cartRepo) GetByUserID(ctx context.Context, userID int64) (*cart.Cart, error) {
	return r.getWithItems(ctx, r.db, userID)
}

func (r *cartRepo) GetByUserIDTx(ctx context.Context, tx *gorm.DB, userID int64) (*cart.Cart, error) {
	return r.getWithItems(ctx, tx, userID)
}

func (r *cartRepo) Create(ctx context.Context, c *cart.Cart) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// UpsertItem 同一购物车同一商品只保留一条记录，冲突时覆盖数量
func (r *cartRepo) UpsertItem(ctx context.Context, item *cart.Item) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(item).Error
}

func (r *cartRepo) DeleteItem(ctx context.Context, cartID, productID int64) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Delete(&cart.Item{}).Error
}

func (r *cartRepo) ClearItems(ctx context.Context, cartID int64) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&cart.Item{}).Error
}

func (r *cartRepo) ClearItemsTx(ctx context.Context, tx *gorm.DB, cartID int64) error {
	return tx.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&cart.Item{}).Error
}
