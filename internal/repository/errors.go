package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// 一意制約違反
	ErrDuplicate = errors.New("duplicate")
	// 加算後の数量が上限を超える
	ErrQuantityLimit = errors.New("quantity limit exceeded")
)
