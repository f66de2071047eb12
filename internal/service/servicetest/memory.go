// Package servicetest provides in-memory repositories for service tests.
// Store.WithinTx serializes units of work and restores the previous state
// when fn fails, which is enough to observe rollback behaviour.
package servicetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	productrepo "storefront/internal/repository/product"
)

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products  map[string]domain.Product
	carts     map[string]domain.Cart
	orders    map[string]domain.Order
	addresses map[string]domain.Address
	outbox    []domain.OutboxEvent
	users     map[string]bool

	// FailNext, when set, is returned by the next repository write.
	FailNext error
	// FailCartSave, when set, is returned by the next cart save.
	FailCartSave error
}

func NewStore() *Store {
	return &Store{
		products:  map[string]domain.Product{},
		carts:     map[string]domain.Cart{},
		orders:    map[string]domain.Order{},
		addresses: map[string]domain.Address{},
	}
}

type txKey struct{}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type state struct {
	products  map[string]domain.Product
	carts     map[string]domain.Cart
	orders    map[string]domain.Order
	addresses map[string]domain.Address
	outbox    []domain.OutboxEvent
}

func (s *Store) snapshot() state {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := state{
		products:  make(map[string]domain.Product, len(s.products)),
		carts:     make(map[string]domain.Cart, len(s.carts)),
		orders:    make(map[string]domain.Order, len(s.orders)),
		addresses: make(map[string]domain.Address, len(s.addresses)),
		outbox:    append([]domain.OutboxEvent(nil), s.outbox...),
	}
	for k, v := range s.products {
		st.products[k] = v
	}
	for k, v := range s.carts {
		st.carts[k] = copyCart(v)
	}
	for k, v := range s.orders {
		st.orders[k] = copyOrder(v)
	}
	for k, v := range s.addresses {
		st.addresses[k] = v
	}
	return st
}

func (s *Store) restore(st state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products, s.carts, s.orders, s.addresses, s.outbox = st.products, st.carts, st.orders, st.addresses, st.outbox
}

func (s *Store) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func copyCart(c domain.Cart) domain.Cart {
	c.Items = append([]domain.CartItem{}, c.Items...)
	return c
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem{}, o.Items...)
	return o
}

// AddProduct seeds a product and returns its id.
func (s *Store) AddProduct(title, price string, inventory int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	p := domain.Product{
		ID:        uuid.NewString(),
		Title:     title,
		Price:     decimal.RequireFromString(price),
		Inventory: inventory,
		ImageURLs: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.products[p.ID] = p
	return p.ID
}

// RestrictUsers limits cart creation to the given user ids. Carts for any
// other user fail with domain.ErrNotFound, as the foreign key does.
func (s *Store) RestrictUsers(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = map[string]bool{}
	for _, id := range ids {
		s.users[id] = true
	}
}

func (s *Store) Product(id string) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id]
}

func (s *Store) SetInventory(id string, inventory int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.Inventory = inventory
	s.products[id] = p
}

// Cart returns the stored cart for userID, if any.
func (s *Store) Cart(userID string) (domain.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	return copyCart(c), ok
}

func (s *Store) Order(id string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return copyOrder(o), ok
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Events returns the enqueued outbox events in insertion order.
func (s *Store) Events() []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxEvent(nil), s.outbox...)
}

// Products exposes the store as a product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

func (s *Store) Carts() *CartRepo { return &CartRepo{s: s} }

func (s *Store) Orders() *OrderRepo { return &OrderRepo{s: s} }

func (s *Store) Outbox() *OutboxRepo { return &OutboxRepo{s: s} }

func (s *Store) Addresses() *AddressRepo { return &AddressRepo{s: s} }

type ProductRepo struct{ s *Store }

func (r *ProductRepo) List(_ context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		if f.CategoryID != "" && (p.CategoryID == nil || *p.CategoryID != f.CategoryID) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []domain.Product{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *ProductRepo) Create(_ context.Context, p domain.Product) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return nil, err
	}
	for _, existing := range r.s.products {
		if existing.Title == p.Title {
			return nil, domain.ErrAlreadyExists
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.s.products[p.ID] = p
	return &p, nil
}

func (r *ProductRepo) Update(_ context.Context, p domain.Product) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return nil, err
	}
	if _, ok := r.s.products[p.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	r.s.products[p.ID] = p
	return &p, nil
}

func (r *ProductRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.s.products, id)
	return nil
}

func (r *ProductRepo) DecrementInventory(_ context.Context, id string, quantity int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return 0, err
	}
	p, ok := r.s.products[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if p.Inventory < quantity {
		return p.Inventory, productrepo.ErrInsufficientInventory
	}
	p.Inventory -= quantity
	r.s.products[id] = p
	return p.Inventory, nil
}

type CartRepo struct{ s *Store }

func (r *CartRepo) GetByUser(_ context.Context, userID string) (*domain.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c = copyCart(c)
	return &c, nil
}

func (r *CartRepo) GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Cart, error) {
	r.s.mu.Lock()
	if r.s.users != nil && !r.s.users[userID] {
		r.s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if _, ok := r.s.carts[userID]; !ok {
		r.s.carts[userID] = *domain.NewCart(userID)
	}
	r.s.mu.Unlock()
	return r.GetByUser(ctx, userID)
}

func (r *CartRepo) LockByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	return r.GetByUser(ctx, userID)
}

func (r *CartRepo) Save(_ context.Context, c *domain.Cart) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FailCartSave; err != nil {
		r.s.FailCartSave = nil
		return err
	}
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	r.s.carts[c.UserID] = copyCart(*c)
	return nil
}

type OrderRepo struct{ s *Store }

func (r *OrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	r.s.orders[o.ID] = copyOrder(*o)
	return nil
}

func (r *OrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *OrderRepo) GetByPaymentSessionForUpdate(_ context.Context, sessionID string) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.orders {
		if o.PaymentSessionID == sessionID && sessionID != "" {
			o = copyOrder(o)
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *OrderRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Order{}
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []domain.Order{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OrderRepo) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	o, ok := r.s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	r.s.orders[id] = o
	return nil
}

func (r *OrderRepo) AttachPaymentSession(_ context.Context, id, sessionID, checkoutURL string, status domain.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.PaymentSessionID, o.CheckoutURL, o.Status = sessionID, checkoutURL, status
	o.UpdatedAt = time.Now().UTC()
	r.s.orders[id] = o
	return nil
}

func (r *OrderRepo) MarkPaid(_ context.Context, id string, expected domain.OrderStatus, paidAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok || o.Status != expected || o.PaidAt != nil {
		return false, nil
	}
	at := paidAt
	o.Status, o.PaidAt, o.UpdatedAt = domain.OrderStatusCompleted, &at, paidAt
	r.s.orders[id] = o
	return true, nil
}

// SetStatus forces an order into status for test setup.
func (s *Store) SetStatus(id string, status domain.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[id]
	o.Status = status
	s.orders[id] = o
}

type OutboxRepo struct{ s *Store }

func (r *OutboxRepo) Enqueue(_ context.Context, e domain.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.outbox = append(r.s.outbox, e)
	return nil
}

type AddressRepo struct{ s *Store }

func (r *AddressRepo) Create(_ context.Context, a domain.Address) (*domain.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	r.s.addresses[a.ID] = a
	return &a, nil
}

func (r *AddressRepo) GetByID(_ context.Context, id string) (*domain.Address, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.addresses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}
