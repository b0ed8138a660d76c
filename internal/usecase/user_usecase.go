package usecase

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// 平文パスワードからハッシュへ。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// bcryptハッシュ化
type BcryptPasswordHasher struct {
	cost int
}

// DI
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{cost}
}

func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

const minPasswordLength = 8

type UserUsecase struct {
	users  repo.UserRepository
	tx     repo.TransactionManager
	hasher PasswordHasher
}

// DI
func NewUserUsecase(users repo.UserRepository, tx repo.TransactionManager, hasher PasswordHasher) *UserUsecase {
	return &UserUsecase{users: users, tx: tx, hasher: hasher}
}

type CreateUserInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// nilは変更しない
type UpdateUserInput struct {
	Email    *string
	Password *string
	Name     *string
	Phone    *string
}

// メールチェック
func isValidEmailFormat(email string) bool {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return false
	}
	_, err := mail.ParseAddress(trimmed)
	return err == nil
}

func (u *UserUsecase) CreateUser(ctx context.Context, in CreateUserInput) (model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !isValidEmailFormat(email) {
		return model.User{}, errValidation("invalid email")
	}
	if len(in.Password) < minPasswordLength {
		return model.User{}, errValidation("password too short")
	}

	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, errTransient("hash password", err)
	}

	created, err := u.users.Create(ctx, model.User{
		Email:        email,
		PasswordHash: hashed,
		Name:         strings.TrimSpace(in.Name),
		Phone:        strings.TrimSpace(in.Phone),
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return model.User{}, NewError(CodeConflict, "email already exists")
	}
	if err != nil {
		return model.User{}, errTransient("create user", err)
	}
	return created, nil
}

func (u *UserUsecase) ListUsers(ctx context.Context) ([]model.User, error) {
	us, err := u.users.List(ctx)
	if err != nil {
		return []model.User{}, errTransient("list users", err)
	}
	return us, nil
}

func (u *UserUsecase) GetUser(ctx context.Context, id int64) (model.User, error) {
	user, err := u.users.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return model.User{}, NewError(CodeUserNotFound, "user not found")
	}
	if err != nil {
		return model.User{}, errTransient("find user", err)
	}
	return user, nil
}

func (u *UserUsecase) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (model.User, error) {
	user, err := u.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if !isValidEmailFormat(email) {
			return model.User{}, errValidation("invalid email")
		}
		user.Email = email
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLength {
			return model.User{}, errValidation("password too short")
		}
		hashed, err := u.hasher.Hash(*in.Password)
		if err != nil {
			return model.User{}, errTransient("hash password", err)
		}
		user.PasswordHash = hashed
	}
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}

	err = u.users.Update(ctx, user)
	switch {
	case errors.Is(err, repo.ErrDuplicate):
		return model.User{}, NewError(CodeConflict, "email already exists")
	case errors.Is(err, repo.ErrNotFound):
		return model.User{}, NewError(CodeUserNotFound, "user not found")
	case err != nil:
		return model.User{}, errTransient("update user", err)
	}
	return u.GetUser(ctx, id)
}

// ユーザー削除（カートも一緒に消す。注文は残す）
func (u *UserUsecase) DeleteUser(ctx context.Context, id int64) error {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := r.Carts().DeleteByUserID(ctx, id); err != nil {
			return errTransient("delete cart", err)
		}
		err := r.Users().Delete(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return NewError(CodeUserNotFound, "user not found")
		}
		if err != nil {
			return errTransient("delete user", err)
		}
		return nil
	})
	if err != nil {
		return asUsecaseError(err)
	}
	return nil
}
