package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/example/goshop/internal/datamodels/product"
)

// ProductService 商品目录服务
type ProductService struct {
	repo product.Repository
}

// NewProductService 创建商品服务
func NewProductService(repo product.Repository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) ListOnline(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListOnline(ctx)
}

func (s *ProductService) ListAll(ctx context.Context) ([]*product.Product, error) {
	return s.repo.ListAll(ctx)
}

func (s *ProductService) ListByCategory(ctx context.Context, category string) ([]*product.Product, error) {
	return s.repo.ListByCategory(ctx, category)
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) GetBySKU(ctx context.Context, sku string) (*product.Product, error) {
	return s.repo.GetBySKU(ctx, sku)
}

func (s *ProductService) Create(ctx context.Context, p *product.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *ProductService) Update(ctx context.Context, p *product.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return s.repo.Update(ctx, p)
}

// Delete 软删除
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func validateProduct(p *product.Product) error {
	if p.Name == "" {
		return errors.New("商品名称不能为空")
	}
	if p.SKU == "" {
		return errors.New("SKU 不能为空")
	}
	if p.Price.LessThanOrEqual(decimal.Zero) {
		return errors.New("价格必须大于 0")
	}
	if p.Stock < 0 {
		return errors.New("库存不能为负")
	}
	return nil
}
