package order

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"storefront/internal/cache"
	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/payment"
)

type orderRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentSessionForUpdate(ctx context.Context, sessionID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error
	AttachPaymentSession(ctx context.Context, id, sessionID, checkoutURL string, status domain.OrderStatus) error
	MarkPaid(ctx context.Context, id string, expected domain.OrderStatus, paidAt time.Time) (bool, error)
}

type cartRepo interface {
	LockByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, c *domain.Cart) error
}

// cartClearer empties a cart inside the caller's unit of work.
type cartClearer interface {
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}

// cacheInvalidator drops cached entries once the unit of work commits.
type cacheInvalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
}

type addressRepo interface {
	Create(ctx context.Context, a domain.Address) (*domain.Address, error)
}

type outboxRepo interface {
	Enqueue(ctx context.Context, e domain.OutboxEvent) error
}

type userRepo interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Deps are the collaborators of Service. Users is optional and only used to
// prefill the checkout email. CartCache, when set, is the cache GetCart reads
// through; it is invalidated whenever an order changes the cart.
type Deps struct {
	Tx        db.Transactor
	Orders    orderRepo
	Carts     cartRepo
	Clearer   cartClearer
	CartCache cacheInvalidator
	Products  productRepo
	Addresses addressRepo
	Outbox    outboxRepo
	Users     userRepo
	Gateway   payment.Gateway
	Currency  string
	Metrics   *metrics.Business
	Logger    logrus.FieldLogger
}

type Service struct {
	tx        db.Transactor
	orders    orderRepo
	carts     cartRepo
	clearer   cartClearer
	cartCache cacheInvalidator
	products  productRepo
	addresses addressRepo
	outbox    outboxRepo
	users     userRepo
	gateway   payment.Gateway
	currency  string
	metrics   *metrics.Business
	logger    logrus.FieldLogger
	now       func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		tx:        d.Tx,
		orders:    d.Orders,
		carts:     d.Carts,
		clearer:   d.Clearer,
		cartCache: d.CartCache,
		products:  d.Products,
		addresses: d.Addresses,
		outbox:    d.Outbox,
		users:     d.Users,
		gateway:   d.Gateway,
		currency:  d.Currency,
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	return s
}

// ItemRequest selects part of a cart line for the order.
type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type CreateInput struct {
	UserID          string
	ShippingAddress *domain.Address
	// Items narrows the order to part of the cart. Empty means every line.
	Items []ItemRequest
	// ClearCart empties the cart in the same unit of work.
	ClearCart bool
}

// CreateOrderFromCart persists the shipping address and an order priced from
// current product snapshots. The cart keeps its lines unless ClearCart is
// set, but the ordered units are marked so they cannot back another order.
func (s *Service) CreateOrderFromCart(ctx context.Context, in CreateInput) (*domain.Order, error) {
	const op = "order.CreateOrderFromCart"
	if in.ShippingAddress == nil {
		return nil, domain.InvalidOperation(op, "shipping address is required")
	}
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, err
	}

	var out *domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.LockByUser(ctx, in.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.InvalidOperation(op, "user %s has no cart", in.UserID)
		}
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return domain.InvalidOperation(op, "cart is empty")
		}
		if !c.HasUnordered() {
			return domain.InvalidOperation(op, "every cart item is already ordered")
		}

		lines, err := selectLines(op, c, in.Items)
		if err != nil {
			return err
		}

		addr := *in.ShippingAddress
		addr.ID = ""
		addr.UserID = in.UserID
		addr.CreatedAt = s.now()
		saved, err := s.addresses.Create(ctx, addr)
		if err != nil {
			return err
		}

		o := domain.NewOrder(in.UserID, saved.ID)
		for _, l := range lines {
			p, err := s.products.GetByID(ctx, l.ProductID)
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFound(op, "product", l.ProductID)
			}
			if err != nil {
				return err
			}
			if err := o.AddOrderItem(*p, l.Quantity); err != nil {
				return err
			}
		}

		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		for _, l := range lines {
			if err := c.MarkOrdered(l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		if err := s.carts.Save(ctx, c); err != nil {
			return err
		}
		db.AfterCommit(ctx, func(ctx context.Context) { s.invalidateCart(ctx, in.UserID) })
		if err := s.emit(ctx, domain.EventOrderCreated, o, ""); err != nil {
			return err
		}
		if in.ClearCart && s.clearer != nil {
			if _, err := s.clearer.ClearCart(ctx, in.UserID); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, op, "create order")
	}

	s.metrics.OrderCreated(out.TotalPrice)
	s.logger.WithField("order_id", out.ID).WithField("user_id", out.UserID).
		WithField("items", out.ItemCount()).WithField("total", out.TotalPrice.StringFixed(2)).Info("order created")
	return out, nil
}

// selectLines resolves the requested items against the cart. Each request
// must name a cart line and may not exceed what is left to order on it.
func selectLines(op string, c *domain.Cart, items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		lines := make([]ItemRequest, 0, len(c.Items))
		for _, it := range c.Items {
			if n := it.Unordered(); n > 0 {
				lines = append(lines, ItemRequest{ProductID: it.ProductID, Quantity: n})
			}
		}
		return lines, nil
	}

	requested := make(map[string]int, len(items))
	lines := make([]ItemRequest, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, domain.Invalid(op, "quantity for product %s must be positive", it.ProductID)
		}
		line, ok := c.FindItem(it.ProductID)
		if !ok {
			return nil, domain.InvalidOperation(op, "product %s is not in the cart", it.ProductID)
		}
		requested[it.ProductID] += it.Quantity
		if requested[it.ProductID] > line.Unordered() {
			return nil, domain.InvalidOperation(op, "requested %d of product %s, %d left to order",
				requested[it.ProductID], it.ProductID, line.Unordered())
		}
		lines = append(lines, it)
	}
	return lines, nil
}

// Checkout opens a hosted payment session for a Processing order and moves it
// to Pending. Calling it again on a Pending order returns the stored session.
func (s *Service) Checkout(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "order.Checkout"
	o, err := s.get(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case o.Status == domain.OrderStatusPending && o.CheckoutURL != "":
		return o, nil
	case o.Status != domain.OrderStatusProcessing:
		return nil, domain.InvalidOperation(op, "order %s is %s, checkout needs %s",
			o.ID, o.Status, domain.OrderStatusProcessing)
	}

	params := payment.CheckoutParams{OrderID: o.ID, Currency: s.currency}
	if s.users != nil {
		if u, err := s.users.GetByID(ctx, o.UserID); err == nil {
			params.CustomerEmail = u.Email
		}
	}
	for _, it := range o.Items {
		params.Lines = append(params.Lines, payment.CheckoutLine{
			Name:       it.Snapshot.Title,
			UnitAmount: it.Price,
			Quantity:   it.Quantity,
			ImageURLs:  it.Snapshot.ImageURLs,
		})
	}

	// The provider call stays outside the transaction so no row lock is
	// held across the network.
	sess, err := s.gateway.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.metrics.CheckoutFailed()
		s.logger.WithError(err).WithField("order_id", o.ID).Error("create checkout session")
		return nil, domain.Internal(err, op, "create checkout session")
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.orders.GetForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if locked.Status != domain.OrderStatusProcessing {
			return domain.Conflict(op, "order %s changed to %s during checkout", o.ID, locked.Status)
		}
		if err := s.orders.AttachPaymentSession(ctx, o.ID, sess.ID, sess.URL, domain.OrderStatusPending); err != nil {
			return err
		}
		previous := locked.Status
		locked.Status = domain.OrderStatusPending
		locked.PaymentSessionID, locked.CheckoutURL = sess.ID, sess.URL
		o = locked
		return s.emit(ctx, domain.EventOrderStatusChanged, locked, previous)
	})
	if err != nil {
		return nil, domain.Internal(err, op, "attach payment session")
	}
	s.metrics.StatusChanged(string(domain.OrderStatusPending))
	return o, nil
}

// UpdateOrderStatus sets status unconditionally. It reports false when the
// order already had that status.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error) {
	const op = "order.UpdateOrderStatus"
	if _, err := domain.ParseOrderStatus(string(status)); err != nil {
		return false, err
	}

	changed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.lock(ctx, op, orderID)
		if err != nil {
			return err
		}
		if o.Status == status {
			return nil
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, status); err != nil {
			return err
		}
		previous := o.Status
		o.Status = status
		changed = true
		return s.emit(ctx, domain.EventOrderStatusChanged, o, previous)
	})
	if err != nil {
		return false, domain.Internal(err, op, "update order status")
	}
	if changed {
		s.metrics.StatusChanged(string(status))
	}
	return changed, nil
}

// CancelOrder cancels any order that is not yet Completed or Shipped.
// Cancelling a cancelled order is a no-op. Inventory is not restocked.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "order.CancelOrder"
	var out *domain.Order
	cancelled := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.lock(ctx, op, orderID)
		if err != nil {
			return err
		}
		out = o
		if !o.Status.CanCancel() {
			return domain.InvalidOperation(op, "order %s is %s and cannot be cancelled", o.ID, o.Status)
		}
		if o.Status == domain.OrderStatusCancelled {
			return nil
		}
		if err := s.orders.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled); err != nil {
			return err
		}
		previous := o.Status
		o.Status = domain.OrderStatusCancelled
		cancelled = true
		return s.emit(ctx, domain.EventOrderCancelled, o, previous)
	})
	if err != nil {
		return nil, domain.Internal(err, op, "cancel order")
	}
	if cancelled {
		s.metrics.OrderCancelled()
		s.logger.WithField("order_id", out.ID).Info("order cancelled")
	}
	return out, nil
}

// MarkOrderAsPaid completes the order owning the payment session. Duplicate
// deliveries and already paid orders are accepted without change; the
// boolean reports whether this call applied the payment.
func (s *Service) MarkOrderAsPaid(ctx context.Context, sessionID string) (bool, error) {
	const op = "order.MarkOrderAsPaid"
	if sessionID == "" {
		return false, domain.Invalid(op, "payment session id is required")
	}

	var (
		applied bool
		orderID string
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByPaymentSessionForUpdate(ctx, sessionID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound(op, "order for payment session", sessionID)
		}
		if err != nil {
			return err
		}
		orderID = o.ID

		switch {
		case o.Status == domain.OrderStatusCompleted && o.PaidAt != nil:
			return nil
		case o.Status == domain.OrderStatusCancelled:
			return domain.InvalidOperation(op, "order %s was cancelled before payment", o.ID)
		}

		paidAt := s.now()
		ok, err := s.orders.MarkPaid(ctx, o.ID, o.Status, paidAt)
		if err != nil || !ok {
			return err
		}
		previous := o.Status
		o.Status, o.PaidAt = domain.OrderStatusCompleted, &paidAt
		applied = true
		return s.emit(ctx, domain.EventOrderPaid, o, previous)
	})

	log := s.logger.WithField("payment_session_id", sessionID).WithField("order_id", orderID)
	switch {
	case domain.IsKind(err, domain.KindInvalidOperation):
		s.metrics.OrderPaid("rejected")
		log.WithError(err).Warn("payment received for cancelled order")
		return false, err
	case err != nil:
		s.metrics.OrderPaid("error")
		return false, domain.Internal(err, op, "mark order paid")
	case !applied:
		s.metrics.OrderPaid("duplicate")
		log.Info("payment already applied")
		return false, nil
	}
	s.metrics.OrderPaid("paid")
	log.Info("order paid")
	return true, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	const op = "order.GetOrder"
	o, err := s.get(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	const op = "order.ListOrders"
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	orders, err := s.orders.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, domain.Internal(err, op, "list orders")
	}
	return orders, nil
}

func (s *Service) get(ctx context.Context, op, orderID string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound(op, "order", orderID)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "load order")
	}
	return o, nil
}

func (s *Service) lock(ctx context.Context, op, orderID string) (*domain.Order, error) {
	o, err := s.orders.GetForUpdate(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound(op, "order", orderID)
	}
	return o, err
}

func (s *Service) invalidateCart(ctx context.Context, userID string) {
	if s.cartCache == nil {
		return
	}
	if err := s.cartCache.Invalidate(ctx, cache.CartKey(userID)); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("invalidate cart cache")
	}
}

func (s *Service) emit(ctx context.Context, eventType string, o *domain.Order, previous domain.OrderStatus) error {
	if s.outbox == nil {
		return nil
	}
	e, err := domain.NewOrderEvent(eventType, o, previous)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, e)
}
