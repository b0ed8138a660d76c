package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

// quantityの0以下はusecaseでINVALID_QUANTITYにする
type AddCartRequest struct {
	UserID    int64   `json:"userId" validate:"required,gt=0"`
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Quantity  int64   `json:"quantity"`
	Size      *string `json:"size" validate:"omitempty,max=50"`
	Color     *string `json:"color" validate:"omitempty,max=50"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

// /cart, /cart/:itemId を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/cart")

	g.GET("", h.getCart)
	g.POST("", h.addToCart)
	g.DELETE("", h.clearCart)
	g.PATCH("/:itemId", h.patchItem)
	g.DELETE("/:itemId", h.deleteItem)
}

func queryUserID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.QueryParam("userId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *CartHandler) getCart(c echo.Context) error {
	userID, ok := queryUserID(c)
	if !ok {
		return badRequest(c, "userId is required")
	}

	out, err := h.uc.GetOrCreateCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addToCart(c echo.Context) error {
	var req AddCartRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	item, created, err := h.uc.AddItem(c.Request().Context(), usecase.AddCartItemInput{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Size:      req.Size,
		Color:     req.Color,
	})
	if err != nil {
		return writeError(c, err)
	}

	//新しい行は201、既存行への加算は200
	if created {
		return c.JSON(http.StatusCreated, item)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) patchItem(c echo.Context) error {
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.UpdateItemQuantity(c.Request().Context(), itemID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	itemID, ok := pathID(c, "itemId")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.RemoveItem(c.Request().Context(), itemID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "item removed from cart"})
}

func (h *CartHandler) clearCart(c echo.Context) error {
	userID, ok := queryUserID(c)
	if !ok {
		return badRequest(c, "userId is required")
	}

	if err := h.uc.Clear(c.Request().Context(), userID); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "cart cleared"})
}
