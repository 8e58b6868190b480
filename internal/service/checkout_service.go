package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/example/goshop/internal/datamodels/cart"
	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/datamodels/payment"
	"github.com/example/goshop/internal/datamodels/product"
	"github.com/example/goshop/internal/repository"
)

// PaymentProvider 支付单上记录的渠道标识
const PaymentProvider = "STRIPE"

// PaymentIntentMessage 下单提交后投递给 payment-worker 的消息
type PaymentIntentMessage struct {
	OrderID   int64 `json:"order_id"`
	PaymentID int64 `json:"payment_id"`
}

// IntentPublisher 支付意向请求的投递方，由 PaymentService 的 MQ 实现承接
type IntentPublisher interface {
	PublishIntentRequest(ctx context.Context, msg *PaymentIntentMessage) error
}

// CheckoutService 下单编排：购物车 -> 订单 + 支付单
// 步骤 1-5（读购物车、锁库存扣减、应用折扣、落库订单与支付单、清空购物车）
// 在同一个数据库事务内完成，任一失败整体回滚；
// 对外的网关调用在事务提交之后经 MQ 异步进行。
type CheckoutService struct {
	txm       repository.TxManager
	carts     cart.Repository
	products  product.Repository
	orders    order.Repository
	payments  payment.Repository
	discounts *DiscountService
	publisher IntentPublisher
	txTimeout time.Duration
}

// NewCheckoutService 创建下单服务
func NewCheckoutService(
	txm repository.TxManager,
	carts cart.Repository,
	products product.Repository,
	orders order.Repository,
	payments payment.Repository,
	discounts *DiscountService,
	publisher IntentPublisher,
	txTimeout time.Duration,
) *CheckoutService {
	if txTimeout <= 0 {
		txTimeout = 5 * time.Second
	}
	return &CheckoutService{
		txm:       txm,
		carts:     carts,
		products:  products,
		orders:    orders,
		payments:  payments,
		discounts: discounts,
		publisher: publisher,
		txTimeout: txTimeout,
	}
}

// PlaceOrder 下单。userID 必须由调用方显式传入（取自已认证身份），
// discountCode 可为空，notes 为用户备注。
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID int64, discountCode, notes string) (*order.Order, error) {
	GetMonitor().RecordCheckoutRequest()

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var placed *order.Order
	var pay *payment.Payment

	err := s.txm.WithTransaction(txCtx, func(tx *gorm.DB) error {
		c, err := s.carts.GetByUserIDTx(txCtx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCartEmpty
			}
			return err
		}
		if len(c.Items) == 0 {
			return ErrCartEmpty
		}

		// 按商品 ID 升序加锁，保证并发下单之间不会出现环形等待
		items := make([]cart.Item, len(c.Items))
		copy(items, c.Items)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

		o := order.New(userID, notes)
		for _, it := range items {
			p, err := s.products.GetByIDForUpdate(txCtx, tx, it.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("商品不存在: %w", err)
				}
				return err
			}
			if !p.Available() {
				return fmt.Errorf("%w：%s", ErrProductUnavailable, p.Name)
			}
			if p.Stock < it.Quantity {
				GetMonitor().RecordCheckoutConflict()
				return fmt.Errorf("%w：%s 仅剩 %d 件", ErrInsufficientStock, p.Name, p.Stock)
			}

			p.Stock -= it.Quantity
			if err := s.products.UpdateTx(txCtx, tx, p); err != nil {
				return err
			}
			// 单价在此刻快照进订单条目
			o.AddItem(p, it.Quantity)
		}

		if discountCode != "" {
			dc, err := s.discounts.ValidateForUpdate(txCtx, tx, discountCode)
			if err != nil {
				return err
			}
			if err := o.ApplyDiscount(dc, time.Now()); err != nil {
				return err
			}
			if err := s.discounts.SaveTx(txCtx, tx, dc); err != nil {
				return err
			}
		}

		if err := s.orders.CreateTx(txCtx, tx, o); err != nil {
			return err
		}

		pay = payment.New(o.ID, PaymentProvider, o.TotalAmount)
		if err := s.payments.CreateTx(txCtx, tx, pay); err != nil {
			return err
		}

		if err := s.carts.ClearItemsTx(txCtx, tx, c.ID); err != nil {
			return err
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 事务已提交，网关调用交给 worker；投递失败不回滚订单，
	// 支付单停留在 pending，由对账流程兜底补投。
	if s.publisher != nil {
		msg := &PaymentIntentMessage{OrderID: placed.ID, PaymentID: pay.ID}
		if err := s.publisher.PublishIntentRequest(ctx, msg); err != nil {
			GetMonitor().RecordMQError()
			log.Printf("publish payment intent request failed for order %d: %v", placed.ID, err)
		}
	}

	GetMonitor().RecordCheckoutSuccess()
	return placed, nil
}
