package mysql

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/goshop/internal/datamodels/discount"
)

type discountRepo struct {
	db *gorm.DB
}

// NewDiscountRepository 创建折扣码仓储
func NewDiscountRepository(db *gorm.DB) discount.Repository {
	return &discountRepo{db: db}
}

func (r *discountRepo) GetByID(ctx context.Context, id int64) (*discount.DiscountCode, error) {
	var d discount.DiscountCode
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByCodeForUpdate 大小写不敏感查找并加排他行锁，
// 锁覆盖"校验-消费"全程，防止两个并发下单同时越过使用上限。
func (r *discountRepo) GetByCodeForUpdate(ctx context.Context, tx *gorm.DB, code string) (*discount.DiscountCode, error) {
	var d discount.DiscountCode
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("UPPER(code) = ?", strings.ToUpper(code)).
		First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *discountRepo) ListAll(ctx context.Context) ([]*discount.DiscountCode, error) {
	var list []*discount.DiscountCode
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *discountRepo) Create(ctx context.Context, d *discount.DiscountCode) error {
	d.Code = strings.ToUpper(d.Code)
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *discountRepo) Update(ctx context.Context, d *discount.DiscountCode) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *discountRepo) UpdateTx(ctx context.Context, tx *gorm.DB, d *discount.DiscountCode) error {
	return tx.WithContext(ctx).Save(d).Error
}

// Delete 软删除，已删除的码不再参与查找
func (r *discountRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&discount.DiscountCode{}, id).Error
}
