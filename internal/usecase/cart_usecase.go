package usecase

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
// 数量の加算は保存層の upsert に任せる（アプリ側でロックしない）。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	catalog      repo.ProductLookup
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	catalog repo.ProductLookup,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		catalog:      catalog,
	}
}

// 表示用の商品情報（現在値）
type CartProduct struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	Price     int64  `json:"price"`
	Stock     int64  `json:"stock"`
	Available bool   `json:"available"`
}

type CartLine struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"productId"`
	Size      string       `json:"size,omitempty"`
	Color     string       `json:"color,omitempty"`
	Quantity  int64        `json:"quantity"`
	Product   *CartProduct `json:"product"`
	LineTotal int64        `json:"lineTotal"`
}

type CartTotals struct {
	Subtotal  int64 `json:"subtotal"`
	ItemCount int64 `json:"itemCount"`
}

type CartView struct {
	ID     int64      `json:"id"`
	UserID int64      `json:"userId"`
	Items  []CartLine `json:"items"`
	CartTotals
}

type AddCartItemInput struct {
	UserID    int64
	ProductID int64
	Quantity  int64
	Size      *string
	Color     *string
}

// size/colorなしは空文字
func variantValue(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// GetOrCreateCart はカート取得（無ければ作って空を返す）。
func (u *CartUsecase) GetOrCreateCart(ctx context.Context, userID int64) (CartView, error) {
	if userID <= 0 {
		return CartView{}, errValidation("userId is required")
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return CartView{}, errTransient("get cart", err)
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartView{}, errTransient("list cart items", err)
	}

	lines, totals, err := u.price(ctx, items)
	if err != nil {
		return CartView{}, err
	}
	return CartView{ID: cart.ID, UserID: cart.UserID, Items: lines, CartTotals: totals}, nil
}

// AddItem は明細追加。同じ (商品, size, color) は数量加算。
// createdは新規行ならtrue。
func (u *CartUsecase) AddItem(ctx context.Context, in AddCartItemInput) (model.CartItem, bool, error) {
	if in.UserID <= 0 {
		return model.CartItem{}, false, errValidation("userId is required")
	}
	if in.Quantity <= 0 {
		return model.CartItem{}, false, errInvalidQuantity()
	}
	if in.Quantity > model.MaxCartItemQuantity {
		return model.CartItem{}, false, errQuantityLimit()
	}

	// 商品チェック（公開のみ）
	p, err := u.catalog.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, false, errProductNotFound(in.ProductID)
	}
	if err != nil {
		return model.CartItem{}, false, errTransient("find product", err)
	}
	if !p.Available() {
		return model.CartItem{}, false, errProductNotFound(in.ProductID)
	}

	cart, err := u.cartRepo.GetOrCreateByUserID(ctx, in.UserID)
	if err != nil {
		return model.CartItem{}, false, errTransient("get cart", err)
	}

	item, err := u.cartItemRepo.UpsertVariant(ctx, model.CartItem{
		CartID:    cart.ID,
		ProductID: in.ProductID,
		Size:      variantValue(in.Size),
		Color:     variantValue(in.Color),
		Quantity:  in.Quantity,
	})
	if errors.Is(err, repo.ErrQuantityLimit) {
		return model.CartItem{}, false, errQuantityLimit()
	}
	if err != nil {
		return model.CartItem{}, false, errTransient("upsert cart item", err)
	}

	//加算されていなければ新規行
	return item, item.Quantity == in.Quantity, nil
}

// 数量変更（0以下は削除ではなくエラー）
func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, cartItemID int64, qty int64) (model.CartItem, error) {
	if qty <= 0 {
		return model.CartItem{}, errInvalidQuantity()
	}
	if qty > model.MaxCartItemQuantity {
		return model.CartItem{}, errQuantityLimit()
	}

	item, err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, qty)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, NewError(CodeCartItemNotFound, "cart item not found")
	}
	if err != nil {
		return model.CartItem{}, errTransient("update cart item", err)
	}
	return item, nil
}

// 明細削除（無くても成功）
func (u *CartUsecase) RemoveItem(ctx context.Context, cartItemID int64) error {
	err := u.cartItemRepo.DeleteByID(ctx, cartItemID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return errTransient("delete cart item", err)
	}
	return nil
}

// GetTotals は現在価格での小計と点数。
func (u *CartUsecase) GetTotals(ctx context.Context, userID int64) (CartTotals, error) {
	view, err := u.GetOrCreateCart(ctx, userID)
	if err != nil {
		return CartTotals{}, err
	}
	return view.CartTotals, nil
}

// Clear はカートを空にする（無くても成功）
func (u *CartUsecase) Clear(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return errValidation("userId is required")
	}

	cart, err := u.cartRepo.FindByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return errTransient("find cart", err)
	}
	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return errTransient("clear cart", err)
	}
	return nil
}

// 明細ごとに現在の商品を引いて合計する。
// 消えた/非公開の商品は点数には入れるが小計には入れない。
func (u *CartUsecase) price(ctx context.Context, items []model.CartItem) ([]CartLine, CartTotals, error) {
	lines := make([]CartLine, 0, len(items))
	var totals CartTotals

	for _, it := range items {
		line := CartLine{
			ID:        it.ID,
			ProductID: it.ProductID,
			Size:      it.Size,
			Color:     it.Color,
			Quantity:  it.Quantity,
		}
		totals.ItemCount += it.Quantity

		p, err := u.catalog.FindByID(ctx, it.ProductID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			line.Product = &CartProduct{Available: false}
		case err != nil:
			return nil, CartTotals{}, errTransient("find product", err)
		default:
			line.Product = &CartProduct{
				Name:      p.Name,
				Slug:      p.Slug,
				Price:     p.Price,
				Stock:     p.Stock,
				Available: p.Available(),
			}
			if p.Available() {
				line.LineTotal = p.Price * it.Quantity
				totals.Subtotal += line.LineTotal
			}
		}
		lines = append(lines, line)
	}

	return lines, totals, nil
}
