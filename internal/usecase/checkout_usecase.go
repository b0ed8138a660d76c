package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// CheckoutUsecase はカートから注文を作る。
// 在庫減算・注文作成・カートのクリアは1つのtxで、全部成功か全部失敗。
type CheckoutUsecase struct {
	tx          repo.TransactionManager
	ledger      *OrderLedger
	pricing     PricingPolicy
	invalidator CatalogInvalidator
	log         *zap.Logger
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	ledger *OrderLedger,
	pricing PricingPolicy,
	invalidator CatalogInvalidator,
	log *zap.Logger,
) *CheckoutUsecase {
	if invalidator == nil {
		invalidator = NoopInvalidator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutUsecase{
		tx:          tx,
		ledger:      ledger,
		pricing:     pricing,
		invalidator: invalidator,
		log:         log,
	}
}

type CheckoutInput struct {
	UserID          int64
	ShippingAddress model.ShippingAddress
	PaymentMethod   string
	IdempotencyKey  string
}

type CheckoutResult struct {
	Order model.Order
	// 同じIdempotency-Keyの既存注文を返した
	Replayed bool
}

func (in CheckoutInput) validate() error {
	if in.UserID <= 0 {
		return errValidation("userId is required")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" || len(in.PaymentMethod) > 50 {
		return errValidation("invalid paymentMethod")
	}
	a := in.ShippingAddress
	if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Line1) == "" ||
		strings.TrimSpace(a.City) == "" || strings.TrimSpace(a.PostalCode) == "" ||
		strings.TrimSpace(a.Country) == "" {
		return errValidation("incomplete shippingAddress")
	}
	if len(in.IdempotencyKey) > 255 {
		return errValidation("invalid idempotency key")
	}
	return nil
}

// 商品ごとの必要数
type demand struct {
	productID int64
	quantity  int64
}

func aggregate(items []model.CartItem) []demand {
	byProduct := map[int64]int64{}
	for _, it := range items {
		byProduct[it.ProductID] += it.Quantity
	}
	out := make([]demand, 0, len(byProduct))
	for id, q := range byProduct {
		out = append(out, demand{productID: id, quantity: q})
	}
	//ロック順を固定（デッドロック回避）
	sort.Slice(out, func(i, j int) bool { return out[i].productID < out[j].productID })
	return out
}

func (u *CheckoutUsecase) Checkout(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if err := in.validate(); err != nil {
		return CheckoutResult{}, err
	}

	var res CheckoutResult
	var touched []int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//先にカート行をロック。同じユーザーの確定はここで直列になる
		cart, err := r.Carts().FindByUserIDForUpdate(ctx, in.UserID)
		noCart := errors.Is(err, repo.ErrNotFound)
		if err != nil && !noCart {
			return errTransient("lock cart", err)
		}

		// 同じキーなら同じ結果
		if in.IdempotencyKey != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
			if err != nil {
				return errTransient("find order", err)
			}
			if found {
				o, err := loadOrder(ctx, r, existing.ID)
				if err != nil {
					return err
				}
				res = CheckoutResult{Order: o, Replayed: true}
				return nil
			}
		}

		if noCart {
			return NewError(CodeEmptyCart, "cart is empty")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return errTransient("list cart items", err)
		}
		if len(cartItems) == 0 {
			return NewError(CodeEmptyCart, "cart is empty")
		}

		//tx内で商品を読む（価格のスナップショットはこの値）
		needs := aggregate(cartItems)
		products := make(map[int64]model.Product, len(needs))
		for _, d := range needs {
			p, err := r.Products().FindByID(ctx, d.productID)
			if errors.Is(err, repo.ErrNotFound) {
				return errProductNotFound(d.productID)
			}
			if err != nil {
				return errTransient("find product", err)
			}
			if !p.Available() {
				return errProductNotFound(d.productID)
			}
			if p.Stock < d.quantity {
				return errOutOfStock(d.productID, d.quantity, p.Stock)
			}
			products[d.productID] = p
		}

		//在庫を確定時に条件付きで減らす
		for _, d := range needs {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, d.productID, d.quantity)
			if err != nil {
				return errTransient("decrease stock", err)
			}
			if !ok {
				return errOutOfStock(d.productID, d.quantity, products[d.productID].Stock)
			}
		}

		//スナップショット
		lines := make([]model.OrderItem, 0, len(cartItems))
		var subtotal int64
		for _, ci := range cartItems {
			p := products[ci.ProductID]
			line := model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.Price,
				Quantity:            ci.Quantity,
				Size:                ci.Size,
				Color:               ci.Color,
			}
			subtotal += line.LineTotal()
			lines = append(lines, line)
		}

		tax := u.pricing.Tax(subtotal, in.ShippingAddress)
		shipping := u.pricing.Shipping(subtotal, in.ShippingAddress)

		order := model.Order{
			UserID:          in.UserID,
			Status:          model.OrderStatusPending,
			PaymentStatus:   model.PaymentStatusPending,
			PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
			ShippingAddress: in.ShippingAddress,
			Subtotal:        subtotal,
			Tax:             tax,
			Shipping:        shipping,
			Total:           subtotal + tax + shipping,
		}
		if in.IdempotencyKey != "" {
			key := in.IdempotencyKey
			order.IdempotencyKey = &key
		}

		created, err := u.ledger.Create(ctx, r, order, lines)
		if err != nil {
			return err
		}

		//在庫の増減履歴
		for _, d := range needs {
			if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
				ProductID: d.productID,
				OrderID:   &created.ID,
				Delta:     -d.quantity,
				Reason:    model.InventoryReasonCheckout,
			}); err != nil {
				return errTransient("record adjustment", err)
			}
			touched = append(touched, d.productID)
		}

		after, _ := json.Marshal(map[string]interface{}{
			"orderNumber": created.OrderNumber,
			"status":      created.Status,
			"total":       created.Total,
		})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  in.UserID,
			Action:       model.AuditActionPlaceOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   created.ID,
			AfterJSON:    string(after),
			CreatedAt:    created.CreatedAt,
		}); err != nil {
			return errTransient("write audit log", err)
		}

		//カートを空にする（再注文防止）
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return errTransient("clear cart", err)
		}

		res = CheckoutResult{Order: created}
		return nil
	})

	//同じキーの注文が並行で確定していた
	if errors.Is(err, errIdempotencyTaken) {
		return u.replay(ctx, in)
	}
	if err != nil {
		uerr := asUsecaseError(err)
		if CodeOf(uerr) == CodeTransient {
			u.log.Error("checkout failed", zap.Int64("user_id", in.UserID), zap.Error(err))
		} else {
			u.log.Info("checkout rejected", zap.Int64("user_id", in.UserID), zap.String("code", string(CodeOf(uerr))))
		}
		return CheckoutResult{}, uerr
	}

	u.invalidator.Invalidate(ctx, touched...)
	if !res.Replayed {
		u.log.Info("order placed",
			zap.Int64("user_id", in.UserID),
			zap.Int64("order_id", res.Order.ID),
			zap.String("order_number", res.Order.OrderNumber),
			zap.Int64("total", res.Order.Total),
		)
	}
	return res, nil
}

func (u *CheckoutUsecase) replay(ctx context.Context, in CheckoutInput) (CheckoutResult, error) {
	var res CheckoutResult
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
		if err != nil {
			return errTransient("find order", err)
		}
		if !found {
			return NewError(CodeTransient, "idempotent order not visible yet")
		}
		o, err := loadOrder(ctx, r, existing.ID)
		if err != nil {
			return err
		}
		res = CheckoutResult{Order: o, Replayed: true}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, asUsecaseError(err)
	}
	return res, nil
}
