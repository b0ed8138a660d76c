package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /products と /categories
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

type ProductRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Slug         string `json:"slug" validate:"max=255"`
	Description  string `json:"description"`
	Price        int64  `json:"price" validate:"gte=0"`
	ComparePrice *int64 `json:"comparePrice" validate:"omitempty,gte=0"`
	CategoryID   int64  `json:"categoryId" validate:"required,gt=0"`
	Stock        int64  `json:"stock" validate:"gte=0"`
	Featured     bool   `json:"featured"`
	// 省略時は公開
	IsActive *bool `json:"isActive"`
}

func (r ProductRequest) input() usecase.ProductInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return usecase.ProductInput{
		Name:         r.Name,
		Slug:         r.Slug,
		Description:  r.Description,
		Price:        r.Price,
		ComparePrice: r.ComparePrice,
		CategoryID:   r.CategoryID,
		Stock:        r.Stock,
		Featured:     r.Featured,
		IsActive:     active,
	}
}

type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Slug        string `json:"slug" validate:"max=255"`
	Description string `json:"description"`
	Image       string `json:"image" validate:"omitempty,max=500"`
}

// 商品/カテゴリのルートを登録
func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.POST("/products", h.create)
	e.GET("/products/featured", h.featured)
	e.GET("/products/slug/:slug", h.bySlug)
	e.GET("/products/:id", h.detail)
	e.PUT("/products/:id", h.update)
	e.DELETE("/products/:id", h.delete)
	e.GET("/products/:id/stock-history", h.stockHistory)

	e.GET("/categories", h.listCategories)
	e.POST("/categories", h.createCategory)
}

func (h *ProductHandler) list(c echo.Context) error {
	// page（default 1）
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return badRequest(c, "invalid page")
	}

	// limit（default 20）
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return badRequest(c, "invalid limit")
	}

	categoryID, err := queryInt64Ptr(c, "categoryId")
	if err != nil {
		return badRequest(c, "invalid categoryId")
	}
	minPrice, err := queryInt64Ptr(c, "minPrice")
	if err != nil {
		return badRequest(c, "invalid minPrice")
	}
	maxPrice, err := queryInt64Ptr(c, "maxPrice")
	if err != nil {
		return badRequest(c, "invalid maxPrice")
	}

	var featured *bool
	if v := c.QueryParam("featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "invalid featured")
		}
		featured = &b
	}

	out, err := h.uc.ListProducts(c.Request().Context(), usecase.ListProductsInput{
		Page:       page,
		Limit:      limit,
		Q:          c.QueryParam("search"),
		CategoryID: categoryID,
		Featured:   featured,
		MinPrice:   minPrice,
		MaxPrice:   maxPrice,
		Sort:       c.QueryParam("sort"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) featured(c echo.Context) error {
	limit, err := queryInt(c, "limit", 8)
	if err != nil {
		return badRequest(c, "invalid limit")
	}

	out, err := h.uc.ListFeatured(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	p, err := h.uc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) bySlug(c echo.Context) error {
	p, err := h.uc.GetProductBySlug(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) create(c echo.Context) error {
	var req ProductRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	p, err := h.uc.CreateProduct(c.Request().Context(), req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req ProductRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	p, err := h.uc.UpdateProduct(c.Request().Context(), id, req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.DeleteProduct(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "product deleted"})
}

func (h *ProductHandler) stockHistory(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.StockHistory(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) listCategories(c echo.Context) error {
	out, err := h.uc.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) createCategory(c echo.Context) error {
	var req CategoryRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	out, err := h.uc.CreateCategory(c.Request().Context(), usecase.CategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.Image,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
