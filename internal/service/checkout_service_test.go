package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/goshop/internal/datamodels/cart"
	"github.com/example/goshop/internal/datamodels/discount"
	"github.com/example/goshop/internal/datamodels/order"
	"github.com/example/goshop/internal/datamodels/payment"
	"github.com/example/goshop/internal/datamodels/product"
)

// ---------- 内存伪实现 ----------
// store 模拟一个带事务语义的数据层：事务函数返回错误时整体回滚。

type store struct {
	products  map[int64]*product.Product
	cart      *cart.Cart
	orders    []*order.Order
	payments  []*payment.Payment
	discounts map[string]*discount.DiscountCode

	nextID int64
	// lockOrder 记录商品行锁的获取顺序
	lockOrder []int64
}

func newStore() *store {
	return &store{
		products:  make(map[int64]*product.Product),
		discounts: make(map[string]*discount.DiscountCode),
		nextID:    1,
	}
}

func (s *store) clone() *store {
	c := newStore()
	c.nextID = s.nextID
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	if s.cart != nil {
		cc := *s.cart
		cc.Items = append([]cart.Item(nil), s.cart.Items...)
		c.cart = &cc
	}
	for _, o := range s.orders {
		co := *o
		co.Items = append([]order.Item(nil), o.Items...)
		c.orders = append(c.orders, &co)
	}
	for _, p := range s.payments {
		cp := *p
		c.payments = append(c.payments, &cp)
	}
	for code, d := range s.discounts {
		cd := *d
		c.discounts[code] = &cd
	}
	c.lockOrder = append([]int64(nil), s.lockOrder...)
	return c
}

type fakeTxManager struct{ s *store }

func (m *fakeTxManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	snapshot := m.s.clone()
	if err := fn(nil); err != nil {
		*m.s = *snapshot
		return err
	}
	return nil
}

type fakeCartRepo struct{ s *store }

func (r *fakeCartRepo) GetByUserID(ctx context.Context, userID int64) (*cart.Cart, error) {
	if r.s.cart == nil || r.s.cart.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return r.s.cart, nil
}

func (r *fakeCartRepo) GetByUserIDTx(ctx context.Context, tx *gorm.DB, userID int64) (*cart.Cart, error) {
	return r.GetByUserID(ctx, userID)
}

func (r *fakeCartRepo) Create(ctx context.Context, c *cart.Cart) error {
	c.ID = r.s.nextID
	r.s.nextID++
	r.s.cart = c
	return nil
}

func (r *fakeCartRepo) UpsertItem(ctx context.Context, item *cart.Item) error {
	for i := range r.s.cart.Items {
		if r.s.cart.Items[i].ProductID == item.ProductID {
			r.s.cart.Items[i].Quantity = item.Quantity
			return nil
		}
	}
	r.s.cart.Items = append(r.s.cart.Items, *item)
	return nil
}

func (r *fakeCartRepo) DeleteItem(ctx context.Context, cartID, productID int64) error {
	items := r.s.cart.Items[:0]
	for _, it := range r.s.cart.Items {
		if it.ProductID != productID {
			items = append(items, it)
		}
	}
	r.s.cart.Items = items
	return nil
}

func (r *fakeCartRepo) ClearItems(ctx context.Context, cartID int64) error {
	r.s.cart.Items = nil
	return nil
}

func (r *fakeCartRepo) ClearItemsTx(ctx context.Context, tx *gorm.DB, cartID int64) error {
	return r.ClearItems(ctx, cartID)
}

type fakeProductRepo struct{ s *store }

func (r *fakeProductRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (r *fakeProductRepo) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	for _, p := range r.s.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeProductRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*product.Product, error) {
	r.s.lockOrder = append(r.s.lockOrder, id)
	return r.GetByID(ctx, id)
}

func (r *fakeProductRepo) ListAll(ctx context.Context) ([]*product.Product, error)    { return nil, nil }
func (r *fakeProductRepo) ListOnline(ctx context.Context) ([]*product.Product, error) { return nil, nil }
func (r *fakeProductRepo) ListByCategory(ctx context.Context, category string) ([]*product.Product, error) {
	return nil, nil
}

func (r *fakeProductRepo) Create(ctx context.Context, p *product.Product) error {
	p.ID = r.s.nextID
	r.s.nextID++
	r.s.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) Update(ctx context.Context, p *product.Product) error {
	r.s.products[p.ID] = p
	return nil
}

func (r *fakeProductRepo) UpdateTx(ctx context.Context, tx *gorm.DB, p *product.Product) error {
	return r.Update(ctx, p)
}

func (r *fakeProductRepo) Delete(ctx context.Context, id int64) error {
	delete(r.s.products, id)
	return nil
}

type fakeOrderRepo struct{ s *store }

func (r *fakeOrderRepo) CreateTx(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	o.ID = r.s.nextID
	r.s.nextID++
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}
	r.s.orders = append(r.s.orders, o)
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	for _, o := range r.s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*order.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) SaveTx(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	for i, existing := range r.s.orders {
		if existing.ID == o.ID {
			r.s.orders[i] = o
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeOrderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	var out []*order.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return r.s.orders, nil
}

type fakePaymentRepo struct{ s *store }

func (r *fakePaymentRepo) CreateTx(ctx context.Context, tx *gorm.DB, p *payment.Payment) error {
	p.ID = r.s.nextID
	r.s.nextID++
	r.s.payments = append(r.s.payments, p)
	return nil
}

func (r *fakePaymentRepo) GetByOrderID(ctx context.Context, orderID int64) (*payment.Payment, error) {
	for _, p := range r.s.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) GetByOrderIDForUpdate(ctx context.Context, tx *gorm.DB, orderID int64) (*payment.Payment, error) {
	return r.GetByOrderID(ctx, orderID)
}

func (r *fakePaymentRepo) Save(ctx context.Context, p *payment.Payment) error {
	for i, existing := range r.s.payments {
		if existing.ID == p.ID {
			r.s.payments[i] = p
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) SaveTx(ctx context.Context, tx *gorm.DB, p *payment.Payment) error {
	return r.Save(ctx, p)
}

func (r *fakePaymentRepo) ListPendingMissingSecret(ctx context.Context, olderThan time.Time, limit int) ([]*payment.Payment, error) {
	var out []*payment.Payment
	for _, p := range r.s.payments {
		if p.Status == payment.StatusPending && p.ClientSecret == "" {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeDiscountRepo struct{ s *store }

func (r *fakeDiscountRepo) GetByID(ctx context.Context, id int64) (*discount.DiscountCode, error) {
	for _, d := range r.s.discounts {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeDiscountRepo) GetByCodeForUpdate(ctx context.Context, tx *gorm.DB, code string) (*discount.DiscountCode, error) {
	for stored, d := range r.s.discounts {
		if strings.EqualFold(stored, code) {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeDiscountRepo) ListAll(ctx context.Context) ([]*discount.DiscountCode, error) {
	return nil, nil
}

func (r *fakeDiscountRepo) Create(ctx context.Context, d *discount.DiscountCode) error {
	d.ID = r.s.nextID
	r.s.nextID++
	r.s.discounts[d.Code] = d
	return nil
}

func (r *fakeDiscountRepo) Update(ctx context.Context, d *discount.DiscountCode) error {
	r.s.discounts[d.Code] = d
	return nil
}

func (r *fakeDiscountRepo) UpdateTx(ctx context.Context, tx *gorm.DB, d *discount.DiscountCode) error {
	return r.Update(ctx, d)
}

func (r *fakeDiscountRepo) Delete(ctx context.Context, id int64) error { return nil }

type fakePublisher struct {
	messages []*PaymentIntentMessage
	err      error
}

func (p *fakePublisher) PublishIntentRequest(ctx context.Context, msg *PaymentIntentMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

// ---------- 测试夹具 ----------

type checkoutFixture struct {
	s         *store
	svc       *CheckoutService
	publisher *fakePublisher
}

func newCheckoutFixture() *checkoutFixture {
	s := newStore()
	publisher := &fakePublisher{}
	discountSvc := NewDiscountService(&fakeDiscountRepo{s}, time.Second)
	svc := NewCheckoutService(
		&fakeTxManager{s},
		&fakeCartRepo{s},
		&fakeProductRepo{s},
		&fakeOrderRepo{s},
		&fakePaymentRepo{s},
		discountSvc,
		publisher,
		5*time.Second,
	)
	return &checkoutFixture{s: s, svc: svc, publisher: publisher}
}

func (f *checkoutFixture) addProduct(id int64, name, price string, stock int64) {
	f.s.products[id] = &product.Product{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: product.StatusOnline,
	}
}

func (f *checkoutFixture) setCart(userID int64, items ...cart.Item) {
	f.s.cart = &cart.Cart{ID: 1, UserID: userID, Items: items}
}

func (f *checkoutFixture) addDiscount(code string, percent int, limit *int64) {
	now := time.Now()
	f.s.discounts[code] = &discount.DiscountCode{
		ID:         100,
		Code:       code,
		Percent:    percent,
		ValidFrom:  now.Add(-time.Hour),
		ValidTo:    now.Add(time.Hour),
		UsageLimit: limit,
		Active:     true,
	}
}

// ---------- 测试 ----------

func TestPlaceOrderSuccess(t *testing.T) {
	f := newCheckoutFixture()
	f.addProduct(1, "无线鼠标", "10.00", 100)
	f.addProduct(2, "机械键盘", "25.00", 50)
	f.setCart(42,
		cart.Item{CartID: 1, ProductID: 1, Quantity: 2},
		cart.Item{CartID: 1, ProductID: 2, Quantity: 1},
	)

	o, err := f.svc.PlaceOrder(context.Background(), 42, "", "尽快发货")
	require.NoError(t, err)

	assert.Equal(t, order.StatusNew, o.Status)
	assert.Equal(t, int64(42), o.UserID)
	assert.Equal(t, "45", o.TotalAmount.String())
	assert.Equal(t, "尽快发货", o.Notes)
	require.Len(t, o.Items, 2)

	// 库存已扣减
	assert.Equal(t, int64(98), f.s.products[1].Stock)
	assert.Equal(t, int64(49), f.s.products[2].Stock)

	// 购物车已清空
	assert.Empty(t, f.s.cart.Items)

	// 支付单以 pending 创建，金额等于订单总额
	require.Len(t, f.s.payments, 1)
	pay := f.s.payments[0]
	assert.Equal(t, o.ID, pay.OrderID)
	assert.Equal(t, payment.StatusPending, pay.Status)
	assert.Equal(t, PaymentProvider, pay.Provider)
	assert.True(t, pay.Amount.Equal(o.TotalAmount))

	// 事务提交后投递了支付意向消息
	require.Len(t, f.publisher.messages, 1)
	assert.Equal(t, o.ID, f.publisher.messages[0].OrderID)
	assert.Equal(t, pay.ID, f.publisher.messages[0].PaymentID)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	f := newCheckoutFixture()
	f.addProduct(1, "无线鼠标", "10.00", 100)
	f.addProduct(2, "机械键盘", "25.00", 0)
	f.setCart(42,
		cart.Item{CartID: 1, ProductID: 1, Quantity: 2},
		cart.Item{CartID: 1, ProductID: 2, Quantity: 1},
	)

	_, err := f.svc.PlaceOrder(context.Background(), 42, "", "")
	require.ErrorIs(t, err, ErrInsufficientStock)

	// 整个事务回滚：先扣减的商品 1 库存也要恢复
	assert.Equal(t, int64(100), f.s.products[1].Stock)
	assert.Equal(t, int64(0), f.s.products[2].Stock)
	assert.Len(t, f.s.cart.Items, 2)
	assert.Empty(t, f.s.orders)
	assert.Empty(t, f.s.payments)
	assert.Empty(t, f.publisher.messages)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	f.setCart(42)

	_, err := f.svc.PlaceOrder(context.Background(), 42, "", "")
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestPlaceOrderNoCartRecord(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.svc.PlaceOrder(context.Background(), 42, "", "")
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestPlaceOrderUnavailableProduct(t *testing.T) {
	f := newCheckoutFixture()
	f.addProduct(1, "老款音箱", "88.00", 5)
	f.s.products[1].Status = product.StatusOffline
	f.setCart(42, cart.Item{CartID: 1, ProductID: 1, Quantity: 1})

	_, err := f.svc.PlaceOrder(context.Background(), 42, "", "")
	assert.ErrorIs(t, err, ErrProductUnavailable)
	assert.Empty(t, f.s.orders)
}

func TestPlaceOrderWithDiscount(t *testing.T) {
	f := newCheckoutFixture()
	f.addProduct(1, "无线鼠标", "10.00", 100)
	f.addProduct(2, "机械键盘", "25.00", 50)
	limit := int64(10)
	f.addDiscount("SAVE10", 10, &limit)
	f.setCart(42,
		cart.Item{CartID: 1, ProductID: 1, Quantity: 2},
		cart.Item{CartID: 1, ProductID: 2, Quantity: 1},
	)

	o, err := f.svc.PlaceOrder(context.Background(), 42, "save10", "")
	require.NoError(t, err)

	// 45.00 × 0.9 = 40.50，折扣码大小写不敏感
	assert.Equal(t, "40.5", o.TotalAmount.String())
	require.NotNil(t, o.DiscountCodeID)
	assert.Equal(t, int64(100), *o.DiscountCodeID)

	// 使用次数已回写
	assert.Equal(t, int64(1), f.s.discounts["SAVE10"].UsedCount)

	// 支付单金额是折后金额
	require.Len(t, f.s.payments, 1)
	assert.Equal(t, "40.5", f.s.payments[0].Amount.String())
}

func TestPlaceOrderInvalidDiscountRollsBack(t *testing.T) {
	f := newCheckoutFixture()
	f.addProduct(1, "无线鼠标", "10.00", 100)
	f.setCart(42, cart.Item{CartID: 1, ProductID: 1, Quantity: 2})

	_, err := f.svc.PlaceOrder(context.Background(), 42, "NOPE", "")
	require.ErrorIs(t, err, ErrInvalidDiscount)

	assert.Equal(t, int64(100), f.s.products[1].Stock)
	assert.Len(t, f.s.cart.Items, 1)
	assert.Empty(t, f.s.orders)
}

func TestPlaceOrderExhaustedDiscount(t *testing.T) {
	f := newCheckoutFixture()
	f.addProduct(1, "无线鼠标", "10.00", 100)
	limit := int64(1)
	f.addDiscount("SAVE10", 10, &limit)
	f.s.discounts["SAVE10"].UsedCount = 1
	f.setCart(42, cart.Item{CartID: 1, ProductID: 1, Quantity: 1})

	_, err := f.svc.PlaceOrder(context.Background(), 42, "SAVE10", "")
	assert.ErrorIs(t, err, discount.ErrNotUsable)
	assert.Empty(t, f.s.orders)
}

func TestPlaceOrderLocksProductsInIDOrder(t *testing.T) {
	f := newCheckoutFixture()
	f.addProduct(2, "B", "1.00", 10)
	f.addProduct(5, "C", "1.00", 10)
	f.addProduct(9, "D", "1.00", 10)
	// 购物车条目故意乱序
	f.setCart(42,
		cart.Item{CartID: 1, ProductID: 9, Quantity: 1},
		cart.Item{CartID: 1, ProductID: 2, Quantity: 1},
		cart.Item{CartID: 1, ProductID: 5, Quantity: 1},
	)

	_, err := f.svc.PlaceOrder(context.Background(), 42, "", "")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 9}, f.s.lockOrder)
}

func TestPlaceOrderPublishFailureDoesNotFailOrder(t *testing.T) {
	f := newCheckoutFixture()
	f.addProduct(1, "无线鼠标", "10.00", 100)
	f.setCart(42, cart.Item{CartID: 1, ProductID: 1, Quantity: 1})
	f.publisher.err = errors.New("mq down")

	o, err := f.svc.PlaceOrder(context.Background(), 42, "", "")
	require.NoError(t, err)
	assert.NotZero(t, o.ID)
	// 订单已落库，支付单停在 pending 等待对账补投
	require.Len(t, f.s.payments, 1)
	assert.Equal(t, payment.StatusPending, f.s.payments[0].Status)
}
