package repository

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 公開商品のみを、カテゴリ/おすすめ/検索/価格帯/ソート/ページング付きで返す。
func (r *ProductGormRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Product{})

	// 公開（is_active=true）かつ、商品削除されていないものだけ
	tx = tx.Where("is_active = ?", true)

	if q.CategoryID != nil {
		tx = tx.Where("category_id = ?", *q.CategoryID)
	}
	if q.Featured != nil {
		tx = tx.Where("featured = ?", *q.Featured)
	}

	// q name/descriptionを対象
	if s := strings.TrimSpace(q.Q); s != "" {
		like := "%" + s + "%"
		tx = tx.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}

	//価格帯
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}

	//total（件数）
	if err := tx.Count(&total).Error; err != nil {
		return []model.Product{}, 0, err
	}

	//sort
	switch q.Sort {
	case "price_asc":
		tx = tx.Order("price asc").Order("id asc")
	case "price_desc":
		tx = tx.Order("price desc").Order("id desc")
	default:
		tx = tx.Order("created_at desc").Order("id desc")
	}

	offset := (q.Page - 1) * q.Limit
	if err := tx.Offset(offset).Limit(q.Limit).Find(&products).Error; err != nil {
		return []model.Product{}, 0, err
	}

	return products, total, nil
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) FindBySlug(ctx context.Context, slug string) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	err := r.db.WithContext(ctx).Create(&p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.Product{}, repo.ErrDuplicate
	}
	if err != nil {
		return model.Product{}, err
	}
	//is_activeはdefault:trueなのでfalseは作成後に入れ直す
	if !p.IsActive {
		if err := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error; err != nil {
			return model.Product{}, err
		}
	}
	return p, nil
}

// 商品の更新（在庫は InventoryRepository 経由）
func (r *ProductGormRepository) Update(ctx context.Context, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":          p.Name,
		"slug":          p.Slug,
		"description":   p.Description,
		"price":         p.Price,
		"compare_price": p.ComparePrice,
		"category_id":   p.CategoryID,
		"featured":      p.Featured,
		"is_active":     p.IsActive,
	})
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return repo.ErrDuplicate
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 商品削除
func (r *ProductGormRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
