package repository

import (
	"context"
	"errors"

	"storefront/internal/domain/model"
	domainrepo "storefront/internal/repository"

	"gorm.io/gorm"
)

type userGormRepository struct {
	db *gorm.DB
}

// DI
// main.goでこれをnewしてusecaseに注入します。
func NewUserGormRepository(db *gorm.DB) domainrepo.UserRepository {
	return &userGormRepository{db: db}
}

// Create はユーザーを新規作成（email重複はErrDuplicate）
func (r *userGormRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	err := r.db.WithContext(ctx).Create(&user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.User{}, domainrepo.ErrDuplicate
	}
	if err != nil {
		return model.User{}, err
	}
	return user, nil
}

// emailでユーザーを1件取得
func (r *userGormRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return r.first(ctx, "email = ?", email)
}

// IDでユーザーを1件取得
func (r *userGormRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userGormRepository) first(ctx context.Context, query string, arg interface{}) (model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).
		Where(query, arg).
		First(&u).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, domainrepo.ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *userGormRepository) List(ctx context.Context) ([]model.User, error) {
	var us []model.User
	if err := r.db.WithContext(ctx).Order("created_at desc").Order("id desc").Find(&us).Error; err != nil {
		return []model.User{}, err
	}
	return us, nil
}

// ユーザーを更新。
func (r *userGormRepository) Update(ctx context.Context, user model.User) error {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"name":          user.Name,
		"phone":         user.Phone,
	})
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return domainrepo.ErrDuplicate
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainrepo.ErrNotFound
	}
	return nil
}

func (r *userGormRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domainrepo.ErrNotFound
	}
	return nil
}
