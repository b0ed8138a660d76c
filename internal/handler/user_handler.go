package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	uc *usecase.UserUsecase
}

// DI
func NewUserHandler(uc *usecase.UserUsecase) *UserHandler {
	return &UserHandler{uc: uc}
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=50"`
}

// 指定したものだけ更新
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
}

func (h *UserHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/users")

	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.detail)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *UserHandler) list(c echo.Context) error {
	out, err := h.uc.ListUsers(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UserHandler) create(c echo.Context) error {
	var req CreateUserRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	u, err := h.uc.CreateUser(c.Request().Context(), usecase.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) detail(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	u, err := h.uc.GetUser(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req UpdateUserRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	u, err := h.uc.UpdateUser(c.Request().Context(), id, usecase.UpdateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.uc.DeleteUser(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SuccessResponse{Message: "user deleted"})
}
