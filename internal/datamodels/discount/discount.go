package discount

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotUsable 折扣码存在但当前不可用（未激活、不在有效期或已达使用上限）
var ErrNotUsable = errors.New("折扣码已过期或已达使用上限")

// DiscountCode 折扣码模型
// code 统一存储为大写，匹配时不区分大小写。
type DiscountCode struct {
	ID         int64          `gorm:"primaryKey" json:"id"`
	Code       string         `gorm:"uniqueIndex;size:50;not null" json:"code"`
	Percent    int            `gorm:"not null" json:"percent"` // 折扣百分比 1-100
	ValidFrom  time.Time      `gorm:"not null" json:"valid_from"`
	ValidTo    time.Time      `gorm:"not null" json:"valid_to"`
	UsageLimit *int64         `json:"usage_limit"` // nil 表示不限次数
	UsedCount  int64          `gorm:"not null;default:0" json:"used_count"`
	Active     bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsExpired 当前时间是否在有效期之外
func (d *DiscountCode) IsExpired(now time.Time) bool {
	return now.Before(d.ValidFrom) || now.After(d.ValidTo)
}

// CanBeUsed 折扣码是否可用：已激活、在有效期内、未达使用上限
func (d *DiscountCode) CanBeUsed(now time.Time) bool {
	if !d.Active || d.IsExpired(now) {
		return false
	}
	return d.UsageLimit == nil || d.UsedCount < *d.UsageLimit
}

// IncrementUsage 累加使用次数，下单成功路径上调用
func (d *DiscountCode) IncrementUsage() {
	d.UsedCount++
}

// Repository 折扣码仓储接口
// GetByCodeForUpdate 在事务内加排他行锁，用于校验-消费序列的并发控制。
type Repository interface {
	GetByID(ctx context.Context, id int64) (*DiscountCode, error)
	GetByCodeForUpdate(ctx context.Context, tx *gorm.DB, code string) (*DiscountCode, error)
	ListAll(ctx context.Context) ([]*DiscountCode, error)
	Create(ctx context.Context, d *DiscountCode) error
	Update(ctx context.Context, d *DiscountCode) error
	UpdateTx(ctx context.Context, tx *gorm.DB, d *DiscountCode) error
	Delete(ctx context.Context, id int64) error
}
