package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 一覧検索
type ProductListQuery struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	Featured   *bool
	MinPrice   *int64
	MaxPrice   *int64
	Sort       string
}

// カート/注文が参照する商品情報（価格・在庫・公開状態）
type ProductLookup interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ProductLookup

	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	FindBySlug(ctx context.Context, slug string) (model.Product, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	Update(ctx context.Context, p model.Product) error
	SoftDelete(ctx context.Context, id int64) error
}

type CategoryRepository interface {
	List(ctx context.Context) ([]model.Category, error)
	FindByID(ctx context.Context, id int64) (model.Category, error)
	Create(ctx context.Context, c model.Category) (model.Category, error)
}
