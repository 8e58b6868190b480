package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/goshop/internal/datamodels/order"
)

func TestOrderGetByIDOwnership(t *testing.T) {
	s := newStore()
	o := order.New(42, "")
	o.ID = 7
	s.orders = append(s.orders, o)
	svc := NewOrderService(&fakeOrderRepo{s})

	got, err := svc.GetByID(context.Background(), 42, 7, false)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)

	// 他人订单返回越权错误，而不是泄露订单内容
	_, err = svc.GetByID(context.Background(), 99, 7, false)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// 管理员不受归属限制
	_, err = svc.GetByID(context.Background(), 99, 7, true)
	assert.NoError(t, err)
}

func TestOrderListByUserFiltersOthers(t *testing.T) {
	s := newStore()
	mine := order.New(42, "")
	mine.ID = 1
	other := order.New(99, "")
	other.ID = 2
	s.orders = append(s.orders, mine, other)
	svc := NewOrderService(&fakeOrderRepo{s})

	list, err := svc.ListByUser(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ID)
}
