package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, u model.User) (model.User, error)
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, u model.User) error
	Delete(ctx context.Context, id int64) error
}
