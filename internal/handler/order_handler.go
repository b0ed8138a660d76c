package handler

import (
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	checkout *usecase.CheckoutUsecase
	ledger   *usecase.OrderLedger
}

// DI
func NewOrderHandler(checkout *usecase.CheckoutUsecase, ledger *usecase.OrderLedger) *OrderHandler {
	return &OrderHandler{checkout: checkout, ledger: ledger}
}

type OrderCreateRequest struct {
	UserID          int64                 `json:"userId" validate:"required,gt=0"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod" validate:"required,max=50"`
}

type OrderStatusRequest struct {
	Status      string `json:"status" validate:"required"`
	ActorUserID int64  `json:"actorUserId" validate:"gte=0"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/orders")

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.PATCH("/:id/status", h.updateStatus)
	g.GET("/:id/history", h.history)
}

func (h *OrderHandler) create(c echo.Context) error {
	var req OrderCreateRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("Idempotency-Key")

	res, err := h.checkout.Checkout(c.Request().Context(), usecase.CheckoutInput{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		IdempotencyKey:  idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	if res.Replayed {
		return c.JSON(http.StatusOK, res.Order)
	}
	return c.JSON(http.StatusCreated, res.Order)
}

// userIdありなら本人の注文、なしなら全体（status/from/toで絞り込み）
func (h *OrderHandler) list(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return badRequest(c, "invalid page")
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return badRequest(c, "invalid limit")
	}

	f := repo.OrderListFilter{
		Page:   page,
		Limit:  limit,
		Status: strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
	}

	if c.QueryParam("userId") != "" {
		userID, ok := queryUserID(c)
		if !ok {
			return badRequest(c, "invalid userId")
		}
		f.UserID = &userID
	}

	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "invalid from")
		}
		f.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return badRequest(c, "invalid to")
		}
		f.To = &t
	}

	out, err := h.ledger.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var (
		out model.Order
		err error
	)
	if c.QueryParam("userId") != "" {
		userID, ok := queryUserID(c)
		if !ok {
			return badRequest(c, "invalid userId")
		}
		out, err = h.ledger.GetForUser(c.Request().Context(), userID, orderID)
	} else {
		out, err = h.ledger.GetByID(c.Request().Context(), orderID)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req OrderStatusRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	out, err := h.ledger.UpdateStatus(c.Request().Context(), orderID, usecase.UpdateOrderStatusInput{
		Status:      req.Status,
		ActorUserID: req.ActorUserID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) history(c echo.Context) error {
	orderID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.ledger.History(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
