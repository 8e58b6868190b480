package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/goshop/internal/datamodels/payment"
)

type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付单仓储
func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) CreateTx(ctx context.Context, tx *gorm.DB, p *payment.Payment) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *paymentRepo) GetByOrderID(ctx context.Context, orderID int64) (*payment.Payment, error) {
	var p payment.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) GetByOrderIDForUpdate(ctx context.Context, tx *gorm.DB, orderID int64) (*payment.Payment, error) {
	var p payment.Payment
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Save(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *paymentRepo) SaveTx(ctx context.Context, tx *gorm.DB, p *payment.Payment) error {
	return tx.WithContext(ctx).Save(p).Error
}

func (r *paymentRepo) ListPendingMissingSecret(ctx context.Context, olderThan time.Time, limit int) ([]*payment.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []*payment.Payment
	if err := r.db.WithContext(ctx).
		Where("status = ? AND client_secret = ? AND created_at < ?", payment.StatusPending, "", olderThan).
		Order("id ASC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
