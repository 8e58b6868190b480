package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/example/goshop/internal/datamodels/cart"
	"github.com/example/goshop/internal/datamodels/product"
)

// CartService 购物车服务
// 加购/改量时校验库存（含购物车已有数量），避免结算时才暴露明显超卖。
type CartService struct {
	carts    cart.Repository
	products product.Repository
}

// NewCartService 创建购物车服务
func NewCartService(carts cart.Repository, products product.Repository) *CartService {
	return &CartService{carts: carts, products: products}
}

// GetMyCart 获取用户购物车，首次访问时创建
func (s *CartService) GetMyCart(ctx context.Context, userID int64) (*cart.Cart, error) {
	c, err := s.carts.GetByUserID(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c = &cart.Cart{UserID: userID}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddItem 加购：同一商品合并数量
func (s *CartService) AddItem(ctx context.Context, userID, productID, quantity int64) (*cart.Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	c, err := s.GetMyCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品不存在: %w", err)
	}
	if !p.Available() {
		return nil, ErrProductUnavailable
	}

	current := c.QuantityOf(productID)
	if p.Stock < current+quantity {
		return nil, fmt.Errorf("%w：库存 %d，购物车已有 %d", ErrInsufficientStock, p.Stock, current)
	}

	if err := s.carts.UpsertItem(ctx, &cart.Item{
		CartID:    c.ID,
		ProductID: productID,
		Quantity:  current + quantity,
	}); err != nil {
		return nil, err
	}
	return s.carts.GetByUserID(ctx, userID)
}

// UpdateItemQuantity 改量，数量为 0 时移除条目
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, productID, quantity int64) (*cart.Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	c, err := s.GetMyCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if quantity == 0 {
		if err := s.carts.DeleteItem(ctx, c.ID, productID); err != nil {
			return nil, err
		}
		return s.carts.GetByUserID(ctx, userID)
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品不存在: %w", err)
	}
	if p.Stock < quantity {
		return nil, fmt.Errorf("%w：库存 %d", ErrInsufficientStock, p.Stock)
	}

	if err := s.carts.UpsertItem(ctx, &cart.Item{
		CartID:    c.ID,
		ProductID: productID,
		Quantity:  quantity,
	}); err != nil {
		return nil, err
	}
	return s.carts.GetByUserID(ctx, userID)
}

// RemoveItem 移除单个商品
func (s *CartService) RemoveItem(ctx context.Context, userID, productID int64) (*cart.Cart, error) {
	c, err := s.GetMyCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.carts.DeleteItem(ctx, c.ID, productID); err != nil {
		return nil, err
	}
	return s.carts.GetByUserID(ctx, userID)
}

// Clear 清空购物车（保留购物车本身，仅删除条目）
func (s *CartService) Clear(ctx context.Context, userID int64) error {
	c, err := s.carts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return s.carts.ClearItems(ctx, c.ID)
}
