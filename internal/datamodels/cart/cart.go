package cart

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Cart 购物车模型，与用户一一对应，首次访问时惰性创建。
// Items 由仓储显式加载，不走 ORM 级联。
type Cart struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"uniqueIndex;not null" json:"user_id"`
	Items     []Item    `gorm:"-" json:"items"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item 购物车条目，同一购物车内每个商品最多一条记录
type Item struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	CartID    int64     `gorm:"uniqueIndex:idx_cart_product;not null" json:"cart_id"`
	ProductID int64     `gorm:"uniqueIndex:idx_cart_product;not null" json:"product_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuantityOf 返回购物车中某商品的数量，不存在时为 0
func (c *Cart) QuantityOf(productID int64) int64 {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// Repository 购物车仓储接口
// 条目删除由调用方显式触发（清空购物车时级联删除条目）。
type Repository interface {
	GetByUserID(ctx context.Context, userID int64) (*Cart, error)
	GetByUserIDTx(ctx context.Context, tx *gorm.DB, userID int64) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	UpsertItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, cartID, productID int64) error
	ClearItems(ctx context.Context, cartID int64) error
	ClearItemsTx(ctx context.Context, tx *gorm.DB, cartID int64) error
}
