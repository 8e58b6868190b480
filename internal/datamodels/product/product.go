package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品状态
const (
	StatusOffline = 0 // 下线
	StatusOnline  = 1 // 正常
)

// Product 商品模型
// 价格使用 decimal(12,2)，库存任何时刻都不允许为负。
type Product struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:128;not null" json:"name"`
	SKU         string          `gorm:"column:sku;uniqueIndex;size:64;not null" json:"sku"`
	Description string          `gorm:"size:512" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock       int64           `gorm:"not null" json:"stock"`
	Category    string          `gorm:"size:32;index" json:"category"`
	Status      int             `gorm:"index" json:"status"` // 0:下线 1:正常
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"` // 软删除，商品永不物理删除
}

// Available 商品是否可购买
func (p *Product) Available() bool {
	return p.Status == StatusOnline
}

// Repository 商品仓储接口
// GetByIDForUpdate 在事务内加排他行锁，仅供下单流程使用。
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetBySKU(ctx context.Context, sku string) (*Product, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	ListOnline(ctx context.Context) ([]*Product, error)
	ListByCategory(ctx context.Context, category string) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	UpdateTx(ctx context.Context, tx *gorm.DB, p *Product) error
	Delete(ctx context.Context, id int64) error
}
