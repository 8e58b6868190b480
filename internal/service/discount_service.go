package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/example/goshop/internal/datamodels/discount"
)

// DiscountService 折扣码服务
type DiscountService struct {
	repo        discount.Repository
	lockTimeout time.Duration
}

// NewDiscountService 创建折扣码服务
func NewDiscountService(repo discount.Repository, lockTimeout time.Duration) *DiscountService {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &DiscountService{repo: repo, lockTimeout: lockTimeout}
}

// ValidateForUpdate 在下单事务内锁定并校验折扣码。
// 行锁等待有 3 秒上限，超时即放弃整个下单事务。
// 调用方在订单聚合上应用折扣后需调用 SaveTx 回写使用次数。
func (s *DiscountService) ValidateForUpdate(ctx context.Context, tx *gorm.DB, code string) (*discount.DiscountCode, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	dc, err := s.repo.GetByCodeForUpdate(lockCtx, tx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidDiscount
		}
		return nil, err
	}
	if !dc.CanBeUsed(time.Now()) {
		return nil, discount.ErrNotUsable
	}
	return dc, nil
}

// SaveTx 回写折扣码（使用次数）
func (s *DiscountService) SaveTx(ctx context.Context, tx *gorm.DB, dc *discount.DiscountCode) error {
	return s.repo.UpdateTx(ctx, tx, dc)
}

// GetByID 查询单个折扣码
func (s *DiscountService) GetByID(ctx context.Context, id int64) (*discount.DiscountCode, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAll 后台用：列出全部折扣码
func (s *DiscountService) ListAll(ctx context.Context) ([]*discount.DiscountCode, error) {
	return s.repo.ListAll(ctx)
}

// Create 创建折扣码
func (s *DiscountService) Create(ctx context.Context, dc *discount.DiscountCode) error {
	if err := validateDiscount(dc); err != nil {
		return err
	}
	return s.repo.Create(ctx, dc)
}

// Update 更新折扣码
func (s *DiscountService) Update(ctx context.Context, dc *discount.DiscountCode) error {
	if err := validateDiscount(dc); err != nil {
		return err
	}
	return s.repo.Update(ctx, dc)
}

// Delete 软删除折扣码
func (s *DiscountService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func validateDiscount(dc *discount.DiscountCode) error {
	if dc.Code == "" {
		return errors.New("折扣码不能为空")
	}
	if dc.Percent < 1 || dc.Percent > 100 {
		return errors.New("折扣百分比需在 1-100 之间")
	}
	if dc.ValidTo.Before(dc.ValidFrom) {
		return errors.New("有效期结束时间不能早于开始时间")
	}
	if dc.UsageLimit != nil && *dc.UsageLimit <= 0 {
		return errors.New("使用上限需大于 0")
	}
	return nil
}
