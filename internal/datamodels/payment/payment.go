package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status 支付单状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Payment 支付单，与订单一一对应，下单时以 pending 状态创建，
// 由异步回调或对账流程推进状态。ClientSecret 由 payment-worker
// 在事务提交之后向网关换取。
type Payment struct {
	ID               int64           `gorm:"primaryKey" json:"id"`
	OrderID          int64           `gorm:"uniqueIndex;not null" json:"order_id"`
	Provider         string          `gorm:"size:32;not null" json:"provider"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status           Status          `gorm:"size:20;index;not null" json:"status"`
	ProviderIntentID string          `gorm:"size:64;index" json:"provider_intent_id,omitempty"`
	ClientSecret     string          `gorm:"size:128" json:"client_secret,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// New 创建 pending 状态的支付单
func New(orderID int64, provider string, amount decimal.Decimal) *Payment {
	return &Payment{
		OrderID:  orderID,
		Provider: provider,
		Amount:   amount,
		Status:   StatusPending,
	}
}

// Repository 支付单仓储接口
type Repository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, p *Payment) error
	GetByOrderID(ctx context.Context, orderID int64) (*Payment, error)
	GetByOrderIDForUpdate(ctx context.Context, tx *gorm.DB, orderID int64) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
	SaveTx(ctx context.Context, tx *gorm.DB, p *Payment) error
	// ListPendingMissingSecret 找出创建已久但仍未换到 client secret 的
	// pending 支付单，供对账流程重新入队。
	ListPendingMissingSecret(ctx context.Context, olderThan time.Time, limit int) ([]*Payment, error)
}
