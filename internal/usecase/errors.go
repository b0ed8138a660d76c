package usecase

import (
	"errors"
	"fmt"

	"storefront/internal/domain/model"
)

type ErrorCode string

const (
	CodeInvalidQuantity   ErrorCode = "INVALID_QUANTITY"
	CodeProductNotFound   ErrorCode = "PRODUCT_NOT_FOUND"
	CodeEmptyCart         ErrorCode = "EMPTY_CART"
	CodeOutOfStock        ErrorCode = "OUT_OF_STOCK"
	CodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	CodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	CodeTransient         ErrorCode = "TRANSIENT"
	CodeValidation        ErrorCode = "VALIDATION"
	CodeCartItemNotFound  ErrorCode = "CART_ITEM_NOT_FOUND"
	CodeUserNotFound      ErrorCode = "USER_NOT_FOUND"
	CodeCategoryNotFound  ErrorCode = "CATEGORY_NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
)

// Error はusecaseが返す業務エラー。HTTPへの変換はhandler側。
type Error struct {
	Code    ErrorCode
	Message string

	// OUT_OF_STOCK / PRODUCT_NOT_FOUND のとき
	ProductID int64
	Requested int64
	Available int64

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// リトライで成功しうるか
func (e *Error) Retryable() bool {
	return e.Code == CodeTransient
}

func NewError(code ErrorCode, message string) error {
	return &Error{Code: code, Message: message}
}

func AsError(err error) (*Error, bool) {
	var ue *Error
	ok := errors.As(err, &ue)
	return ue, ok
}

// CodeOf はエラーコードを返す（業務エラー以外はTRANSIENT）
func CodeOf(err error) ErrorCode {
	if ue, ok := AsError(err); ok {
		return ue.Code
	}
	return CodeTransient
}

func errInvalidQuantity() error {
	return NewError(CodeInvalidQuantity, "quantity must be greater than 0")
}

func errQuantityLimit() error {
	return NewError(CodeInvalidQuantity, fmt.Sprintf("quantity must not exceed %d", model.MaxCartItemQuantity))
}

func errProductNotFound(productID int64) error {
	return &Error{Code: CodeProductNotFound, Message: "product not found", ProductID: productID}
}

func errOutOfStock(productID int64, requested int64, available int64) error {
	return &Error{
		Code:      CodeOutOfStock,
		Message:   fmt.Sprintf("insufficient stock for product %d", productID),
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}

func errValidation(message string) error {
	return NewError(CodeValidation, message)
}

// DBなどの失敗（呼び出し側で再試行できる）
func errTransient(op string, err error) error {
	return &Error{Code: CodeTransient, Message: op + " failed", Err: err}
}
