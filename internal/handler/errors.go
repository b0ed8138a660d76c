package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/middleware"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	ProductID int64             `json:"productId,omitempty"`
	Requested int64             `json:"requested,omitempty"`
	Available *int64            `json:"available,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// { message: string }
type SuccessResponse struct {
	Message string `json:"message"`
}

var statusByCode = map[usecase.ErrorCode]int{
	usecase.CodeInvalidQuantity:   http.StatusBadRequest,
	usecase.CodeValidation:        http.StatusBadRequest,
	usecase.CodeProductNotFound:   http.StatusNotFound,
	usecase.CodeOrderNotFound:     http.StatusNotFound,
	usecase.CodeCartItemNotFound:  http.StatusNotFound,
	usecase.CodeUserNotFound:      http.StatusNotFound,
	usecase.CodeCategoryNotFound:  http.StatusNotFound,
	usecase.CodeEmptyCart:         http.StatusConflict,
	usecase.CodeOutOfStock:        http.StatusConflict,
	usecase.CodeInvalidTransition: http.StatusConflict,
	usecase.CodeConflict:          http.StatusConflict,
	usecase.CodeTransient:         http.StatusServiceUnavailable,
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	ue, ok := usecase.AsError(err)
	if !ok {
		//500（中身は出さない）
		middleware.SetError(c, err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: string(usecase.CodeTransient), Message: "internal error", Retryable: true})
	}

	status, ok := statusByCode[ue.Code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := ErrorResponse{
		Error:     string(ue.Code),
		Message:   ue.Message,
		Retryable: ue.Retryable(),
		ProductID: ue.ProductID,
	}
	if ue.Code == usecase.CodeOutOfStock {
		available := ue.Available
		body.Requested = ue.Requested
		body.Available = &available
	}
	if ue.Code == usecase.CodeTransient {
		middleware.SetError(c, err)
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: string(usecase.CodeValidation), Message: message})
}

// bind + validateタグ。失敗したら400を書いてfalse
func bindAndValidate(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, badRequest(c, "invalid body")
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   string(usecase.CodeValidation),
			Message: "validation failed",
			Fields:  validator.Fields(err),
		})
	}
	return true, nil
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// 空ならdef
func queryInt(c echo.Context, name string, def int) (int, error) {
	v := c.QueryParam(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func queryInt64Ptr(c echo.Context, name string) (*int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	x, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	return &x, nil
}
