package service

import (
	"context"

	"github.com/example/goshop/internal/datamodels/order"
)

// OrderService 订单查询服务
type OrderService struct {
	repo order.Repository
}

// NewOrderService 创建订单服务
func NewOrderService(repo order.Repository) *OrderService {
	return &OrderService{repo: repo}
}

// GetByID 查询订单详情，非管理员只能查看自己的订单
func (s *OrderService) GetByID(ctx context.Context, userID, orderID int64, isAdmin bool) (*order.Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != userID {
		return nil, ErrUnauthorized
	}
	return o, nil
}

// ListByUser 查询用户自己的订单
func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListRecent 后台用：查询最新的订单记录
func (s *OrderService) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return s.repo.ListRecent(ctx, limit)
}
