package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/datamodels/discount"
	"github.com/example/goshop/internal/datamodels/product"
	"github.com/example/goshop/internal/repository/mysql"
	"github.com/example/goshop/internal/service"
)

func main() {
	cfg := config.Load()
	db := mysql.Init(&cfg.MySQL)

	productSvc := service.NewProductService(mysql.NewProductRepository(db))
	discountSvc := service.NewDiscountService(mysql.NewDiscountRepository(db),
		cfg.Checkout.DiscountLockTimeout())

	ctx := context.Background()

	fmt.Println("🌱 初始化演示数据...")

	products := []*product.Product{
		{Name: "无线鼠标", SKU: "SKU-MOUSE-001", Description: "2.4G 无线鼠标", Price: decimal.NewFromFloat(10.00), Stock: 100, Category: "配件", Status: product.StatusOnline},
		{Name: "机械键盘", SKU: "SKU-KB-001", Description: "87 键机械键盘", Price: decimal.NewFromFloat(25.00), Stock: 50, Category: "配件", Status: product.StatusOnline},
		{Name: "显示器支架", SKU: "SKU-ARM-001", Description: "桌面显示器支架", Price: decimal.NewFromFloat(39.99), Stock: 30, Category: "配件", Status: product.StatusOnline},
		{Name: "USB-C 扩展坞", SKU: "SKU-HUB-001", Description: "7 合 1 扩展坞", Price: decimal.NewFromFloat(59.90), Stock: 20, Category: "配件", Status: product.StatusOnline},
		{Name: "降噪耳机", SKU: "SKU-HP-001", Description: "头戴式降噪耳机", Price: decimal.NewFromFloat(199.00), Stock: 10, Category: "音频", Status: product.StatusOnline},
		{Name: "老款音箱", SKU: "SKU-SPK-OLD", Description: "已停售", Price: decimal.NewFromFloat(88.00), Stock: 5, Category: "音频", Status: product.StatusOffline},
	}

	for _, p := range products {
		if existing, err := productSvc.GetBySKU(ctx, p.SKU); err == nil && existing != nil {
			fmt.Printf("  ⏭️  商品已存在: %s (%s)\n", p.Name, p.SKU)
			continue
		}
		if err := productSvc.Create(ctx, p); err != nil {
			fmt.Printf("  ❌ 创建商品失败: %s: %v\n", p.Name, err)
			continue
		}
		fmt.Printf("  ✅ 商品: %s 价格=%s 库存=%d\n", p.Name, p.Price.StringFixed(2), p.Stock)
	}

	now := time.Now()
	limit := int64(100)
	codes := []*discount.DiscountCode{
		{Code: "SAVE10", Percent: 10, ValidFrom: now.AddDate(0, 0, -1), ValidTo: now.AddDate(0, 1, 0), UsageLimit: &limit, Active: true},
		{Code: "WELCOME20", Percent: 20, ValidFrom: now.AddDate(0, 0, -1), ValidTo: now.AddDate(0, 0, 7), UsageLimit: nil, Active: true},
	}

	for _, d := range codes {
		if err := discountSvc.Create(ctx, d); err != nil {
			fmt.Printf("  ⏭️  折扣码跳过: %s: %v\n", d.Code, err)
			continue
		}
		fmt.Printf("  ✅ 折扣码: %s %d%% off\n", d.Code, d.Percent)
	}

	fmt.Println("🎉 初始化完成")
}
