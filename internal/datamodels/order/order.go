package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/goshop/internal/datamodels/discount"
	"github.com/example/goshop/internal/datamodels/product"
)

// Status 订单状态，目前唯一的正向流转是 NEW -> PAID（由支付回调触发）
type Status string

const (
	StatusNew  Status = "NEW"
	StatusPaid Status = "PAID"
)

var (
	// ErrNotNew 只有 NEW 状态的订单可以标记为已支付
	ErrNotNew = errors.New("仅 NEW 状态的订单可标记为已支付")
	// ErrDiscountApplied 每个订单最多应用一次折扣
	ErrDiscountApplied = errors.New("订单已应用过折扣")
)

// Order 订单聚合，创建后条目与金额不可再变
type Order struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	UserID         int64           `gorm:"index;not null" json:"user_id"`
	Status         Status          `gorm:"size:20;index;not null" json:"status"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	DiscountCodeID *int64          `gorm:"index" json:"discount_code_id,omitempty"`
	Notes          string          `gorm:"size:512" json:"notes,omitempty"`
	Items          []Item          `gorm:"-" json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Item 订单条目，单价在下单时刻快照，此后不再回读商品价格
type Item struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	OrderID     int64           `gorm:"index;not null" json:"order_id"`
	ProductID   int64           `gorm:"index;not null" json:"product_id"`
	ProductName string          `gorm:"size:128;not null" json:"product_name"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Subtotal 条目小计
func (it *Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}

// New 创建一个空订单聚合
func New(userID int64, notes string) *Order {
	return &Order{
		UserID:      userID,
		Status:      StatusNew,
		TotalAmount: decimal.Zero,
		Notes:       notes,
	}
}

// AddItem 追加条目并快照当前商品价格，随后重算总金额
func (o *Order) AddItem(p *product.Product, quantity int64) {
	o.Items = append(o.Items, Item{
		ProductID:   p.ID,
		ProductName: p.Name,
		Quantity:    quantity,
		UnitPrice:   p.Price,
	})
	o.recalculateTotal()
}

// ApplyDiscount 将折扣作用到订单总金额上
// 总金额乘以 (100-percent)/100 后保留两位小数（四舍五入），
// 同时累加折扣码使用次数。每个订单最多应用一次。
func (o *Order) ApplyDiscount(dc *discount.DiscountCode, now time.Time) error {
	if o.DiscountCodeID != nil {
		return ErrDiscountApplied
	}
	if !dc.CanBeUsed(now) {
		return discount.ErrNotUsable
	}

	multiplier := decimal.NewFromInt(int64(100 - dc.Percent)).
		DivRound(decimal.NewFromInt(100), 4)
	o.TotalAmount = o.TotalAmount.Mul(multiplier).Round(2)
	o.DiscountCodeID = &dc.ID

	dc.IncrementUsage()
	return nil
}

// MarkAsPaid 状态机流转 NEW -> PAID
func (o *Order) MarkAsPaid() error {
	if o.Status != StatusNew {
		return ErrNotNew
	}
	o.Status = StatusPaid
	return nil
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for i := range o.Items {
		total = total.Add(o.Items[i].Subtotal())
	}
	o.TotalAmount = total
}

// Repository 订单仓储接口
// Create 负责同时落库订单与条目；GetByID 一次取回聚合与全部条目。
type Repository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*Order, error)
	SaveTx(ctx context.Context, tx *gorm.DB, o *Order) error
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)
	ListRecent(ctx context.Context, limit int) ([]*Order, error)
}
