package seed

import (
	"context"
	"fmt"

	"storefront/internal/usecase"

	"go.uber.org/zap"
)

type categorySeed struct {
	usecase.CategoryInput
}

type productSeed struct {
	category string // category slug
	usecase.ProductInput
}

func int64ptr(v int64) *int64 { return &v }

var categories = []categorySeed{
	{usecase.CategoryInput{Name: "Men's Clothing", Slug: "mens", Description: "Stylish clothing for men", Image: "/images/categories/mens.jpg"}},
	{usecase.CategoryInput{Name: "Women's Clothing", Slug: "womens", Description: "Trendy clothing for women", Image: "/images/categories/womens.jpg"}},
	{usecase.CategoryInput{Name: "Accessories", Slug: "accessories", Description: "Complete your look with accessories", Image: "/images/categories/accessories.jpg"}},
}

var products = []productSeed{
	{category: "mens", ProductInput: usecase.ProductInput{
		Name:         "Classic White T-Shirt",
		Slug:         "classic-white-tshirt",
		Description:  "A timeless white t-shirt made from premium cotton",
		Price:        2999,
		ComparePrice: int64ptr(3999),
		Stock:        100,
		Featured:     true,
		IsActive:     true,
	}},
	{category: "mens", ProductInput: usecase.ProductInput{
		Name:         "Slim Fit Denim Jeans",
		Slug:         "denim-jeans",
		Description:  "Comfortable slim fit jeans for everyday wear",
		Price:        7999,
		ComparePrice: int64ptr(9999),
		Stock:        50,
		Featured:     true,
		IsActive:     true,
	}},
	{category: "womens", ProductInput: usecase.ProductInput{
		Name:        "Floral Summer Dress",
		Slug:        "summer-dress",
		Description: "Light and breezy summer dress with floral pattern",
		Price:       5999,
		Stock:       30,
		Featured:    true,
		IsActive:    true,
	}},
}

// Run はサンプルのカテゴリと商品を入れる（既にあるslugは飛ばす）
func Run(ctx context.Context, catalog *usecase.ProductUsecase, log *zap.Logger) error {
	existing, err := catalog.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	ids := map[string]int64{}
	for _, c := range existing {
		ids[c.Slug] = c.ID
	}

	for _, s := range categories {
		if _, ok := ids[s.Slug]; ok {
			continue
		}
		c, err := catalog.CreateCategory(ctx, s.CategoryInput)
		if err != nil {
			return fmt.Errorf("create category %s: %w", s.Slug, err)
		}
		ids[c.Slug] = c.ID
	}
	log.Info("categories seeded", zap.Int("count", len(ids)))

	for _, s := range products {
		_, err := catalog.GetProductBySlug(ctx, s.Slug)
		if err == nil {
			continue
		}
		if usecase.CodeOf(err) != usecase.CodeProductNotFound {
			return fmt.Errorf("find product %s: %w", s.Slug, err)
		}

		in := s.ProductInput
		in.CategoryID = ids[s.category]
		if _, err := catalog.CreateProduct(ctx, in); err != nil {
			return fmt.Errorf("create product %s: %w", s.Slug, err)
		}
	}
	log.Info("products seeded", zap.Int("count", len(products)))
	return nil
}
