package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// Store はプロセス内で完結する永続化（開発用・テスト用）。
// WithinTx は全体ロックを取り、コピーに書いてから成功時だけ差し替える。
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

type state struct {
	seq         map[string]int64
	users       map[int64]model.User
	categories  map[int64]model.Category
	products    map[int64]model.Product
	carts       map[int64]model.Cart
	cartItems   map[int64]model.CartItem
	orders      map[int64]model.Order
	orderItems  map[int64]model.OrderItem
	adjustments []model.InventoryAdjustment
	auditLogs   []model.AuditLog
}

func newState() *state {
	return &state{
		seq:        map[string]int64{},
		users:      map[int64]model.User{},
		categories: map[int64]model.Category{},
		products:   map[int64]model.Product{},
		carts:      map[int64]model.Cart{},
		cartItems:  map[int64]model.CartItem{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64]model.OrderItem{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		seq:         cloneMap(s.seq),
		users:       cloneMap(s.users),
		categories:  cloneMap(s.categories),
		products:    cloneMap(s.products),
		carts:       cloneMap(s.carts),
		cartItems:   cloneMap(s.cartItems),
		orders:      cloneMap(s.orders),
		orderItems:  cloneMap(s.orderItems),
		adjustments: append([]model.InventoryAdjustment(nil), s.adjustments...),
		auditLogs:   append([]model.AuditLog(nil), s.auditLogs...),
	}
}

func (s *state) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

// handle はtx内ならそのstateを、tx外なら都度ロックして本体を触る
type handle struct {
	s  *Store
	tx *state
}

func (h handle) do(fn func(st *state) error) error {
	if h.tx != nil {
		return fn(h.tx)
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return fn(h.s.st)
}

func (h handle) now() time.Time {
	return h.s.now()
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.st.clone()
	if err := fn(&txRepos{h: handle{s: s, tx: staged}}); err != nil {
		return err
	}
	//キャンセルされていたらcommitしない
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = staged
	return nil
}

// Store直下のrepo（tx外で使う）
func (s *Store) Orders() repo.OrderRepository         { return &orders{handle{s: s}} }
func (s *Store) OrderItems() repo.OrderItemRepository { return &orderItems{handle{s: s}} }
func (s *Store) Carts() repo.CartRepository           { return &carts{handle{s: s}} }
func (s *Store) CartItems() repo.CartItemRepository   { return &carts{handle{s: s}} }
func (s *Store) Inventory() repo.InventoryRepository  { return &inventory{handle{s: s}} }
func (s *Store) Products() repo.ProductRepository     { return &products{handle{s: s}} }
func (s *Store) Categories() repo.CategoryRepository  { return &categories{handle{s: s}} }
func (s *Store) Users() repo.UserRepository           { return &users{handle{s: s}} }
func (s *Store) AuditLogs() repo.AuditLogRepository   { return &auditLogs{handle{s: s}} }

type txRepos struct {
	h handle
}

func (r *txRepos) Orders() repo.OrderRepository         { return &orders{r.h} }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return &orderItems{r.h} }
func (r *txRepos) Carts() repo.CartRepository           { return &carts{r.h} }
func (r *txRepos) CartItems() repo.CartItemRepository   { return &carts{r.h} }
func (r *txRepos) Inventory() repo.InventoryRepository  { return &inventory{r.h} }
func (r *txRepos) Products() repo.ProductRepository     { return &products{r.h} }
func (r *txRepos) Users() repo.UserRepository           { return &users{r.h} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return &auditLogs{r.h} }

// =====================
// carts / cart_items
// =====================

type carts struct{ h handle }

func (r *carts) GetOrCreateByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var out model.Cart
	err := r.h.do(func(st *state) error {
		if c, ok := findCart(st, userID); ok {
			out = c
			return nil
		}
		now := r.h.now()
		out = model.Cart{ID: st.next("carts"), UserID: userID, CreatedAt: now, UpdatedAt: now}
		st.carts[out.ID] = out
		return nil
	})
	return out, err
}

func (r *carts) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var out model.Cart
	err := r.h.do(func(st *state) error {
		c, ok := findCart(st, userID)
		if !ok {
			return repo.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

// ストア全体のロック中なので FindByUserID と同じ
func (r *carts) FindByUserIDForUpdate(ctx context.Context, userID int64) (model.Cart, error) {
	return r.FindByUserID(ctx, userID)
}

func findCart(st *state, userID int64) (model.Cart, bool) {
	for _, c := range st.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return model.Cart{}, false
}

func (r *carts) Clear(ctx context.Context, cartID int64) error {
	return r.h.do(func(st *state) error {
		for id, it := range st.cartItems {
			if it.CartID == cartID {
				delete(st.cartItems, id)
			}
		}
		return nil
	})
}

func (r *carts) DeleteByUserID(ctx context.Context, userID int64) error {
	return r.h.do(func(st *state) error {
		c, ok := findCart(st, userID)
		if !ok {
			return nil
		}
		for id, it := range st.cartItems {
			if it.CartID == c.ID {
				delete(st.cartItems, id)
			}
		}
		delete(st.carts, c.ID)
		return nil
	})
}

func (r *carts) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	out := []model.CartItem{}
	err := r.h.do(func(st *state) error {
		for _, it := range st.cartItems {
			if it.CartID == cartID {
				out = append(out, it)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *carts) UpsertVariant(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	var out model.CartItem
	err := r.h.do(func(st *state) error {
		now := r.h.now()
		for id, it := range st.cartItems {
			if it.CartID == item.CartID && it.SameVariant(item.ProductID, item.Size, item.Color) {
				if item.Quantity > model.MaxCartItemQuantity-it.Quantity {
					return repo.ErrQuantityLimit
				}
				it.Quantity += item.Quantity
				it.UpdatedAt = now
				st.cartItems[id] = it
				out = it
				return nil
			}
		}
		if item.Quantity > model.MaxCartItemQuantity {
			return repo.ErrQuantityLimit
		}
		out = model.CartItem{
			ID:        st.next("cart_items"),
			CartID:    item.CartID,
			ProductID: item.ProductID,
			Size:      item.Size,
			Color:     item.Color,
			Quantity:  item.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.cartItems[out.ID] = out
		return nil
	})
	return out, err
}

func (r *carts) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) (model.CartItem, error) {
	var out model.CartItem
	err := r.h.do(func(st *state) error {
		it, ok := st.cartItems[cartItemID]
		if !ok {
			return repo.ErrNotFound
		}
		it.Quantity = qty
		it.UpdatedAt = r.h.now()
		st.cartItems[cartItemID] = it
		out = it
		return nil
	})
	return out, err
}

func (r *carts) DeleteByID(ctx context.Context, cartItemID int64) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.cartItems[cartItemID]; !ok {
			return repo.ErrNotFound
		}
		delete(st.cartItems, cartItemID)
		return nil
	})
}

func (r *carts) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	var out model.CartItem
	err := r.h.do(func(st *state) error {
		it, ok := st.cartItems[cartItemID]
		if !ok {
			return repo.ErrNotFound
		}
		out = it
		return nil
	})
	return out, err
}

// =====================
// products / inventory
// =====================

type products struct{ h handle }

func (r *products) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var out model.Product
	err := r.h.do(func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r *products) FindBySlug(ctx context.Context, slug string) (model.Product, error) {
	var out model.Product
	err := r.h.do(func(st *state) error {
		for _, p := range st.products {
			if p.Slug == slug && !p.DeletedAt.Valid {
				out = p
				return nil
			}
		}
		return repo.ErrNotFound
	})
	return out, err
}

func (r *products) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var matched []model.Product
	err := r.h.do(func(st *state) error {
		term := strings.ToLower(strings.TrimSpace(q.Q))
		for _, p := range st.products {
			if !p.Available() {
				continue
			}
			if q.CategoryID != nil && p.CategoryID != *q.CategoryID {
				continue
			}
			if q.Featured != nil && p.Featured != *q.Featured {
				continue
			}
			if term != "" && !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(strings.ToLower(p.Description), term) {
				continue
			}
			if q.MinPrice != nil && p.Price < *q.MinPrice {
				continue
			}
			if q.MaxPrice != nil && p.Price > *q.MaxPrice {
				continue
			}
			matched = append(matched, p)
		}
		return nil
	})
	if err != nil {
		return []model.Product{}, 0, err
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Sort {
		case "price_asc":
			if a.Price != b.Price {
				return a.Price < b.Price
			}
			return a.ID < b.ID
		case "price_desc":
			if a.Price != b.Price {
				return a.Price > b.Price
			}
			return a.ID > b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	})

	return paginate(matched, q.Page, q.Limit), int64(len(matched)), nil
}

func (r *products) Create(ctx context.Context, p model.Product) (model.Product, error) {
	err := r.h.do(func(st *state) error {
		for _, other := range st.products {
			if other.Slug == p.Slug {
				return repo.ErrDuplicate
			}
		}
		now := r.h.now()
		p.ID = st.next("products")
		p.CreatedAt, p.UpdatedAt = now, now
		st.products[p.ID] = p
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *products) Update(ctx context.Context, p model.Product) error {
	return r.h.do(func(st *state) error {
		cur, ok := st.products[p.ID]
		if !ok || cur.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		for id, other := range st.products {
			if id != p.ID && other.Slug == p.Slug {
				return repo.ErrDuplicate
			}
		}
		cur.Name = p.Name
		cur.Slug = p.Slug
		cur.Description = p.Description
		cur.Price = p.Price
		cur.ComparePrice = p.ComparePrice
		cur.CategoryID = p.CategoryID
		cur.Featured = p.Featured
		cur.IsActive = p.IsActive
		cur.UpdatedAt = r.h.now()
		st.products[p.ID] = cur
		return nil
	})
}

func (r *products) SoftDelete(ctx context.Context, id int64) error {
	return r.h.do(func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		p.DeletedAt.Time = r.h.now()
		p.DeletedAt.Valid = true
		st.products[id] = p
		return nil
	})
}

type inventory struct{ h handle }

func (r *inventory) SetStock(ctx context.Context, productID int64, newStock int64) error {
	return r.h.do(func(st *state) error {
		p, ok := st.products[productID]
		if !ok || p.DeletedAt.Valid {
			return repo.ErrNotFound
		}
		p.Stock = newStock
		st.products[productID] = p
		return nil
	})
}

func (r *inventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	var ok bool
	err := r.h.do(func(st *state) error {
		p, found := st.products[productID]
		if !found || p.DeletedAt.Valid || p.Stock < qty {
			return nil
		}
		p.Stock -= qty
		st.products[productID] = p
		ok = true
		return nil
	})
	return ok, err
}

func (r *inventory) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	return r.h.do(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return repo.ErrNotFound
		}
		p.Stock += qty
		st.products[productID] = p
		return nil
	})
}

func (r *inventory) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return r.h.do(func(st *state) error {
		adj.ID = st.next("inventory_adjustments")
		adj.CreatedAt = r.h.now()
		st.adjustments = append(st.adjustments, adj)
		return nil
	})
}

func (r *inventory) ListAdjustments(ctx context.Context, productID int64) ([]model.InventoryAdjustment, error) {
	out := []model.InventoryAdjustment{}
	err := r.h.do(func(st *state) error {
		for _, a := range st.adjustments {
			if a.ProductID == productID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

type categories struct{ h handle }

func (r *categories) List(ctx context.Context) ([]model.Category, error) {
	out := []model.Category{}
	err := r.h.do(func(st *state) error {
		for _, c := range st.categories {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *categories) FindByID(ctx context.Context, id int64) (model.Category, error) {
	var out model.Category
	err := r.h.do(func(st *state) error {
		c, ok := st.categories[id]
		if !ok {
			return repo.ErrNotFound
		}
		out = c
		return nil
	})
	return out, err
}

func (r *categories) Create(ctx context.Context, c model.Category) (model.Category, error) {
	err := r.h.do(func(st *state) error {
		for _, other := range st.categories {
			if other.Slug == c.Slug {
				return repo.ErrDuplicate
			}
		}
		now := r.h.now()
		c.ID = st.next("categories")
		c.CreatedAt, c.UpdatedAt = now, now
		st.categories[c.ID] = c
		return nil
	})
	if err != nil {
		return model.Category{}, err
	}
	return c, nil
}

// =====================
// orders / order_items
// =====================

type orders struct{ h handle }

func (r *orders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var out model.Order
	err := r.h.do(func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repo.ErrNotFound
		}
		out = o
		return nil
	})
	return out, err
}

func (r *orders) List(ctx context.Context, f repo.OrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}

	var matched []model.Order
	err := r.h.do(func(st *state) error {
		for _, o := range st.orders {
			if f.UserID != nil && o.UserID != *f.UserID {
				continue
			}
			if f.Status != "" && string(o.Status) != f.Status {
				continue
			}
			if f.From != nil && o.CreatedAt.Before(*f.From) {
				continue
			}
			if f.To != nil && o.CreatedAt.After(*f.To) {
				continue
			}
			matched = append(matched, o)
		}
		return nil
	})
	if err != nil {
		return []model.Order{}, 0, err
	}

	//新しい順
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, f.Page, f.Limit), int64(len(matched)), nil
}

func (r *orders) Create(ctx context.Context, order model.Order) (model.Order, error) {
	err := r.h.do(func(st *state) error {
		for _, o := range st.orders {
			if o.OrderNumber == order.OrderNumber {
				return repo.ErrDuplicate
			}
			if order.IdempotencyKey != nil && o.IdempotencyKey != nil &&
				o.UserID == order.UserID && *o.IdempotencyKey == *order.IdempotencyKey {
				return repo.ErrDuplicate
			}
		}
		now := r.h.now()
		order.ID = st.next("orders")
		order.CreatedAt, order.UpdatedAt = now, now
		order.Items = nil
		st.orders[order.ID] = order
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return order, nil
}

func (r *orders) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, payment *model.PaymentStatus) (bool, error) {
	var ok bool
	err := r.h.do(func(st *state) error {
		o, found := st.orders[orderID]
		if !found || o.Status != from {
			return nil
		}
		o.Status = to
		if payment != nil {
			o.PaymentStatus = *payment
		}
		o.UpdatedAt = r.h.now()
		st.orders[orderID] = o
		ok = true
		return nil
	})
	return ok, err
}

func (r *orders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	var out model.Order
	var found bool
	err := r.h.do(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID && o.IdempotencyKey != nil && *o.IdempotencyKey == key {
				out, found = o, true
				return nil
			}
		}
		return nil
	})
	return out, found, err
}

type orderItems struct{ h handle }

func (r *orderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	return r.h.do(func(st *state) error {
		now := r.h.now()
		for i := range items {
			items[i].ID = st.next("order_items")
			items[i].OrderID = orderID
			items[i].CreatedAt = now
			st.orderItems[items[i].ID] = items[i]
		}
		return nil
	})
}

func (r *orderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	out := []model.OrderItem{}
	err := r.h.do(func(st *state) error {
		for _, it := range st.orderItems {
			if it.OrderID == orderID {
				out = append(out, it)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// =====================
// users / audit_logs
// =====================

type users struct{ h handle }

func (r *users) Create(ctx context.Context, u model.User) (model.User, error) {
	err := r.h.do(func(st *state) error {
		for _, other := range st.users {
			if strings.EqualFold(other.Email, u.Email) {
				return repo.ErrDuplicate
			}
		}
		now := r.h.now()
		u.ID = st.next("users")
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = u
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (r *users) FindByID(ctx context.Context, id int64) (model.User, error) {
	var out model.User
	err := r.h.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repo.ErrNotFound
		}
		out = u
		return nil
	})
	return out, err
}

func (r *users) FindByEmail(ctx context.Context, email string) (model.User, error) {
	var out model.User
	err := r.h.do(func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				out = u
				return nil
			}
		}
		return repo.ErrNotFound
	})
	return out, err
}

func (r *users) List(ctx context.Context) ([]model.User, error) {
	out := []model.User{}
	err := r.h.do(func(st *state) error {
		for _, u := range st.users {
			out = append(out, u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (r *users) Update(ctx context.Context, u model.User) error {
	return r.h.do(func(st *state) error {
		cur, ok := st.users[u.ID]
		if !ok {
			return repo.ErrNotFound
		}
		for id, other := range st.users {
			if id != u.ID && strings.EqualFold(other.Email, u.Email) {
				return repo.ErrDuplicate
			}
		}
		cur.Email = u.Email
		cur.PasswordHash = u.PasswordHash
		cur.Name = u.Name
		cur.Phone = u.Phone
		cur.UpdatedAt = r.h.now()
		st.users[u.ID] = cur
		return nil
	})
}

func (r *users) Delete(ctx context.Context, id int64) error {
	return r.h.do(func(st *state) error {
		if _, ok := st.users[id]; !ok {
			return repo.ErrNotFound
		}
		delete(st.users, id)
		return nil
	})
}

type auditLogs struct{ h handle }

func (r *auditLogs) Create(ctx context.Context, log model.AuditLog) error {
	return r.h.do(func(st *state) error {
		log.ID = st.next("audit_logs")
		if log.CreatedAt.IsZero() {
			log.CreatedAt = r.h.now()
		}
		st.auditLogs = append(st.auditLogs, log)
		return nil
	})
}

func (r *auditLogs) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	out := []model.AuditLog{}
	err := r.h.do(func(st *state) error {
		for i := len(st.auditLogs) - 1; i >= 0; i-- {
			l := st.auditLogs[i]
			if f.Action != nil && l.Action != *f.Action {
				continue
			}
			if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
				continue
			}
			if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
				continue
			}
			out = append(out, l)
		}
		return nil
	})
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []model.AuditLog{}, err
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func paginate[T any](items []T, page int, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []T{}
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
