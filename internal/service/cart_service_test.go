package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/goshop/internal/datamodels/product"
)

func newCartFixture() (*store, *CartService) {
	s := newStore()
	svc := NewCartService(&fakeCartRepo{s}, &fakeProductRepo{s})
	return s, svc
}

func seedProduct(s *store, id int64, stock int64) {
	s.products[id] = &product.Product{
		ID:     id,
		Name:   "商品",
		Price:  decimal.RequireFromString("10.00"),
		Stock:  stock,
		Status: product.StatusOnline,
	}
}

func TestGetMyCartCreatesOnFirstAccess(t *testing.T) {
	s, svc := newCartFixture()

	c, err := svc.GetMyCart(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.UserID)
	assert.NotNil(t, s.cart)
	assert.Empty(t, c.Items)
}

func TestAddItemMergesQuantity(t *testing.T) {
	s, svc := newCartFixture()
	seedProduct(s, 1, 10)

	_, err := svc.AddItem(context.Background(), 42, 1, 2)
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), 42, 1, 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(5), c.Items[0].Quantity)
}

func TestAddItemStockGuardIncludesCart(t *testing.T) {
	s, svc := newCartFixture()
	seedProduct(s, 1, 5)

	_, err := svc.AddItem(context.Background(), 42, 1, 4)
	require.NoError(t, err)

	// 购物车已有 4，再加 2 会超过库存 5
	_, err = svc.AddItem(context.Background(), 42, 1, 2)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	_, svc := newCartFixture()

	_, err := svc.AddItem(context.Background(), 42, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.AddItem(context.Background(), 42, 1, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddItemOfflineProduct(t *testing.T) {
	s, svc := newCartFixture()
	seedProduct(s, 1, 10)
	s.products[1].Status = product.StatusOffline

	_, err := svc.AddItem(context.Background(), 42, 1, 1)
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestUpdateItemQuantityZeroRemoves(t *testing.T) {
	s, svc := newCartFixture()
	seedProduct(s, 1, 10)

	_, err := svc.AddItem(context.Background(), 42, 1, 2)
	require.NoError(t, err)

	c, err := svc.UpdateItemQuantity(context.Background(), 42, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestRemoveAndClear(t *testing.T) {
	s, svc := newCartFixture()
	seedProduct(s, 1, 10)
	seedProduct(s, 2, 10)

	_, err := svc.AddItem(context.Background(), 42, 1, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), 42, 2, 1)
	require.NoError(t, err)

	c, err := svc.RemoveItem(context.Background(), 42, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(2), c.Items[0].ProductID)

	require.NoError(t, svc.Clear(context.Background(), 42))
	assert.Empty(t, s.cart.Items)
}

func TestClearWithoutCartIsNoOp(t *testing.T) {
	_, svc := newCartFixture()
	assert.NoError(t, svc.Clear(context.Background(), 42))
}
