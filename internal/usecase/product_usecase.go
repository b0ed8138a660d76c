package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type ProductUsecase struct {
	tx          repo.TransactionManager
	productRepo repo.ProductRepository
	categories  repo.CategoryRepository
	invalidator CatalogInvalidator
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	productRepo repo.ProductRepository,
	categories repo.CategoryRepository,
	invalidator CatalogInvalidator,
) *ProductUsecase {
	if invalidator == nil {
		invalidator = NoopInvalidator{}
	}
	return &ProductUsecase{
		tx:          tx,
		productRepo: productRepo,
		categories:  categories,
		invalidator: invalidator,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page       int
	Limit      int
	Q          string
	CategoryID *int64
	Featured   *bool
	MinPrice   *int64
	MaxPrice   *int64
	Sort       string
}

type ProductListOutput struct {
	Products   []model.Product `json:"products"`
	Pagination Pagination      `json:"pagination"`
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, errValidation("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, errValidation("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, errValidation("q too long")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return ProductListOutput{}, errValidation("minPrice must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return ProductListOutput{}, errValidation("maxPrice must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return ProductListOutput{}, errValidation("minPrice must be <= maxPrice")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, errValidation("invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:       in.Page,
		Limit:      in.Limit,
		Q:          strings.TrimSpace(in.Q),
		CategoryID: in.CategoryID,
		Featured:   in.Featured,
		MinPrice:   in.MinPrice,
		MaxPrice:   in.MaxPrice,
		Sort:       in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, errTransient("list products", err)
	}

	return ProductListOutput{
		Products:   items,
		Pagination: newPagination(total, in.Page, in.Limit),
	}, nil
}

// おすすめ商品（新しい順）
func (u *ProductUsecase) ListFeatured(ctx context.Context, limit int) ([]model.Product, error) {
	if limit < 1 || limit > 100 {
		limit = 8
	}
	featured := true
	out, err := u.ListProducts(ctx, ListProductsInput{Page: 1, Limit: limit, Featured: &featured})
	if err != nil {
		return []model.Product{}, err
	}
	return out.Products, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, productID)
	return publicProduct(p, productID, err)
}

func (u *ProductUsecase) GetProductBySlug(ctx context.Context, slug string) (model.Product, error) {
	p, err := u.productRepo.FindBySlug(ctx, strings.TrimSpace(slug))
	return publicProduct(p, 0, err)
}

func publicProduct(p model.Product, productID int64, err error) (model.Product, error) {
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, errProductNotFound(productID)
	}
	if err != nil {
		return model.Product{}, errTransient("find product", err)
	}
	if !p.Available() {
		return model.Product{}, errProductNotFound(p.ID)
	}
	return p, nil
}

type ProductInput struct {
	Name         string
	Slug         string
	Description  string
	Price        int64
	ComparePrice *int64
	CategoryID   int64
	Stock        int64
	Featured     bool
	IsActive     bool
}

func (in *ProductInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return errValidation("name required")
	}
	in.Slug = Slugify(in.Slug)
	if in.Slug == "" {
		in.Slug = Slugify(in.Name)
	}
	if in.Slug == "" {
		return errValidation("slug required")
	}
	if in.Price < 0 {
		return errValidation("price must be >= 0")
	}
	if in.ComparePrice != nil && *in.ComparePrice < 0 {
		return errValidation("comparePrice must be >= 0")
	}
	if in.Stock < 0 {
		return errValidation("stock must be >= 0")
	}
	return nil
}

func (u *ProductUsecase) checkCategory(ctx context.Context, id int64) error {
	_, err := u.categories.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return NewError(CodeCategoryNotFound, "category not found")
	}
	if err != nil {
		return errTransient("find category", err)
	}
	return nil
}

func (u *ProductUsecase) CreateProduct(ctx context.Context, in ProductInput) (model.Product, error) {
	if err := in.normalize(); err != nil {
		return model.Product{}, err
	}
	if err := u.checkCategory(ctx, in.CategoryID); err != nil {
		return model.Product{}, err
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		Name:         in.Name,
		Slug:         in.Slug,
		Description:  in.Description,
		Price:        in.Price,
		ComparePrice: in.ComparePrice,
		CategoryID:   in.CategoryID,
		Stock:        in.Stock,
		Featured:     in.Featured,
		IsActive:     in.IsActive,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return model.Product{}, NewError(CodeConflict, "slug already exists")
	}
	if err != nil {
		return model.Product{}, errTransient("create product", err)
	}
	return p, nil
}

// 在庫が変わったら調整履歴も残す
func (u *ProductUsecase) UpdateProduct(ctx context.Context, productID int64, in ProductInput) (model.Product, error) {
	if err := in.normalize(); err != nil {
		return model.Product{}, err
	}
	if err := u.checkCategory(ctx, in.CategoryID); err != nil {
		return model.Product{}, err
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cur, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errProductNotFound(productID)
		}
		if err != nil {
			return errTransient("find product", err)
		}

		err = r.Products().Update(ctx, model.Product{
			ID:           productID,
			Name:         in.Name,
			Slug:         in.Slug,
			Description:  in.Description,
			Price:        in.Price,
			ComparePrice: in.ComparePrice,
			CategoryID:   in.CategoryID,
			Featured:     in.Featured,
			IsActive:     in.IsActive,
		})
		if errors.Is(err, repo.ErrDuplicate) {
			return NewError(CodeConflict, "slug already exists")
		}
		if err != nil {
			return errTransient("update product", err)
		}

		if delta := in.Stock - cur.Stock; delta != 0 {
			if err := r.Inventory().SetStock(ctx, productID, in.Stock); err != nil {
				return errTransient("set stock", err)
			}
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID: productID,
				Delta:     delta,
				Reason:    model.InventoryReasonManual,
			}); err != nil {
				return errTransient("record adjustment", err)
			}
		}

		out, err = r.Products().FindByID(ctx, productID)
		if err != nil {
			return errTransient("find product", err)
		}
		return nil
	})
	if err != nil {
		return model.Product{}, asUsecaseError(err)
	}

	u.invalidator.Invalidate(ctx, productID)
	return out, nil
}

// 商品削除（論理削除）
func (u *ProductUsecase) DeleteProduct(ctx context.Context, productID int64) error {
	err := u.productRepo.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return errProductNotFound(productID)
	}
	if err != nil {
		return errTransient("delete product", err)
	}
	u.invalidator.Invalidate(ctx, productID)
	return nil
}

func (u *ProductUsecase) StockHistory(ctx context.Context, productID int64) ([]model.InventoryAdjustment, error) {
	var out []model.InventoryAdjustment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		adjs, err := r.Inventory().ListAdjustments(ctx, productID)
		if err != nil {
			return errTransient("list adjustments", err)
		}
		out = adjs
		return nil
	})
	if err != nil {
		return nil, asUsecaseError(err)
	}
	return out, nil
}

func (u *ProductUsecase) ListCategories(ctx context.Context) ([]model.Category, error) {
	cs, err := u.categories.List(ctx)
	if err != nil {
		return []model.Category{}, errTransient("list categories", err)
	}
	return cs, nil
}

type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	Image       string
}

func (u *ProductUsecase) CreateCategory(ctx context.Context, in CategoryInput) (model.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Category{}, errValidation("name required")
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}

	c, err := u.categories.Create(ctx, model.Category{
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		Image:       in.Image,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return model.Category{}, NewError(CodeConflict, "slug already exists")
	}
	if err != nil {
		return model.Category{}, errTransient("create category", err)
	}
	return c, nil
}

// "Classic T-Shirt" -> "classic-t-shirt"
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
