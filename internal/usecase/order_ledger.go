package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 商品キャッシュを消す（在庫・価格が変わったとき）
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, ids ...int64)
}

type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(context.Context, ...int64) {}

// 同じIdempotency-Keyの注文が先に確定していた
var errIdempotencyTaken = errors.New("idempotency key already used")

// OrderLedger は注文の保存と参照、ステータス遷移。
// 注文明細は作成後に変更しない。
type OrderLedger struct {
	tx          repo.TransactionManager
	numbers     OrderNumberGenerator
	clock       Clock
	attempts    int
	invalidator CatalogInvalidator
	log         *zap.Logger
}

func NewOrderLedger(
	tx repo.TransactionManager,
	numbers OrderNumberGenerator,
	clock Clock,
	attempts int,
	invalidator CatalogInvalidator,
	log *zap.Logger,
) *OrderLedger {
	if attempts < 1 {
		attempts = 1
	}
	if invalidator == nil {
		invalidator = NoopInvalidator{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderLedger{
		tx:          tx,
		numbers:     numbers,
		clock:       clock,
		attempts:    attempts,
		invalidator: invalidator,
		log:         log,
	}
}

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

func newPagination(total int64, page int, limit int) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Total: total, Page: page, Limit: limit, TotalPages: pages}
}

type OrderPage struct {
	Orders     []model.Order `json:"orders"`
	Pagination Pagination    `json:"pagination"`
}

// Create は呼び出し側のtx内で注文ヘッダと明細を書く。
// 注文番号が衝突したら作り直す（attempts回まで）。
func (l *OrderLedger) Create(ctx context.Context, r repo.TxRepos, order model.Order, lines []model.OrderItem) (model.Order, error) {
	for attempt := 1; attempt <= l.attempts; attempt++ {
		order.OrderNumber = l.numbers.Next(l.clock.Now())

		created, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicate) {
			if order.IdempotencyKey != nil {
				_, found, ferr := r.Orders().FindByIdempotencyKey(ctx, order.UserID, *order.IdempotencyKey)
				if ferr != nil {
					return model.Order{}, errTransient("find order", ferr)
				}
				if found {
					return model.Order{}, errIdempotencyTaken
				}
			}
			l.log.Warn("order number collision",
				zap.String("order_number", order.OrderNumber),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return model.Order{}, errTransient("create order", err)
		}

		if err := r.OrderItems().CreateBulk(ctx, created.ID, lines); err != nil {
			return model.Order{}, errTransient("create order items", err)
		}
		created.Items = lines
		return created, nil
	}

	return model.Order{}, NewError(CodeTransient, "could not allocate a unique order number")
}

// ListByUser は新しい順。page=1から読み直せる。
func (l *OrderLedger) ListByUser(ctx context.Context, userID int64, page int, limit int) (OrderPage, error) {
	if userID <= 0 {
		return OrderPage{}, errValidation("userId is required")
	}
	return l.List(ctx, repo.OrderListFilter{UserID: &userID, Page: page, Limit: limit})
}

func (l *OrderLedger) List(ctx context.Context, f repo.OrderListFilter) (OrderPage, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderPage{}, errValidation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderPage{}, errValidation("invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).Valid() {
		return OrderPage{}, errValidation("invalid status")
	}

	var out OrderPage

	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().List(ctx, f)
		if err != nil {
			return errTransient("list orders", err)
		}

		for i := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, orders[i].ID)
			if err != nil {
				return errTransient("list order items", err)
			}
			orders[i].Items = items
		}
		out = OrderPage{Orders: orders, Pagination: newPagination(total, f.Page, f.Limit)}
		return nil
	})
	if err != nil {
		return OrderPage{}, asUsecaseError(err)
	}
	if out.Orders == nil {
		out.Orders = []model.Order{}
	}
	return out, nil
}

func (l *OrderLedger) GetByID(ctx context.Context, orderID int64) (model.Order, error) {
	var out model.Order
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := loadOrder(ctx, r, orderID)
		out = o
		return err
	})
	if err != nil {
		return model.Order{}, asUsecaseError(err)
	}
	return out, nil
}

// 他人の注文は「存在しない扱い」にする
func (l *OrderLedger) GetForUser(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	o, err := l.GetByID(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if o.UserID != userID {
		return model.Order{}, NewError(CodeOrderNotFound, "order not found")
	}
	return o, nil
}

type UpdateOrderStatusInput struct {
	Status      string
	ActorUserID int64
}

// UpdateStatus は遷移表に沿ってだけ更新する。
// 読んだstatusを条件にUPDATEするので、並行で変わっていたらINVALID_TRANSITION。
// PAIDからのCANCELLEDは在庫を戻す。
func (l *OrderLedger) UpdateStatus(ctx context.Context, orderID int64, in UpdateOrderStatusInput) (model.Order, error) {
	next := model.OrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !next.Valid() {
		return model.Order{}, errValidation("invalid status")
	}

	var out model.Order
	var restocked []int64

	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}

		// すでに同じなら何もしない
		if o.Status == next {
			out = o
			return nil
		}
		if !o.Status.CanTransitionTo(next) {
			return &Error{Code: CodeInvalidTransition, Message: "cannot change order from " + string(o.Status) + " to " + string(next)}
		}

		var payment *model.PaymentStatus
		if ps, ok := next.PaymentStatus(); ok {
			payment = &ps
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, orderID, o.Status, next, payment)
		if err != nil {
			return errTransient("update order status", err)
		}
		if !ok {
			return &Error{Code: CodeInvalidTransition, Message: "order status changed concurrently"}
		}

		// 在庫戻し
		if next == model.OrderStatusCancelled && o.Status == model.OrderStatusPaid {
			for _, it := range o.Items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil && !errors.Is(err, repo.ErrNotFound) {
					return errTransient("restock", err)
				}
				if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
					ProductID: it.ProductID,
					OrderID:   &o.ID,
					Delta:     it.Quantity,
					Reason:    model.InventoryReasonCancel,
				}); err != nil {
					return errTransient("record adjustment", err)
				}
				restocked = append(restocked, it.ProductID)
			}
		}

		//監査ログ
		before, _ := json.Marshal(map[string]string{"status": string(o.Status), "paymentStatus": string(o.PaymentStatus)})
		after := map[string]string{"status": string(next), "paymentStatus": string(o.PaymentStatus)}
		if payment != nil {
			after["paymentStatus"] = string(*payment)
		}
		afterJSON, _ := json.Marshal(after)
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  in.ActorUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(before),
			AfterJSON:    string(afterJSON),
			CreatedAt:    l.clock.Now(),
		}); err != nil {
			return errTransient("write audit log", err)
		}

		out, err = loadOrder(ctx, r, orderID)
		return err
	})
	if err != nil {
		return model.Order{}, asUsecaseError(err)
	}

	l.invalidator.Invalidate(ctx, restocked...)
	l.log.Info("order status updated",
		zap.Int64("order_id", orderID),
		zap.String("order_number", out.OrderNumber),
		zap.String("status", string(out.Status)),
	)
	return out, nil
}

// 状態変更の履歴（新しい順）
func (l *OrderLedger) History(ctx context.Context, orderID int64) ([]model.AuditLog, error) {
	resType := model.AuditResourceOrder
	var out []model.AuditLog
	err := l.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := loadOrder(ctx, r, orderID); err != nil {
			return err
		}
		logs, err := r.AuditLogs().List(ctx, repo.AuditLogFilter{ResourceType: &resType, ResourceID: &orderID, Limit: 200})
		if err != nil {
			return errTransient("list audit logs", err)
		}
		out = logs
		return nil
	})
	if err != nil {
		return nil, asUsecaseError(err)
	}
	return out, nil
}

func loadOrder(ctx context.Context, r repo.TxRepos, orderID int64) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewError(CodeOrderNotFound, "order not found")
	}
	if err != nil {
		return model.Order{}, errTransient("find order", err)
	}

	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return model.Order{}, errTransient("list order items", err)
	}
	o.Items = items
	return o, nil
}

// tx自体の失敗（commit失敗・ctxキャンセルなど）はTRANSIENTに寄せる
func asUsecaseError(err error) error {
	if _, ok := AsError(err); ok {
		return err
	}
	return errTransient("transaction", err)
}
