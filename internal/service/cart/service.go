package cart

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"storefront/internal/cache"
	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	productrepo "storefront/internal/repository/product"
)

// Service owns the cart half of the order workflow. Adding to a cart
// reserves stock: the product row is decremented in the same unit of work
// that stores the line.
type Service struct {
	tx           db.Transactor
	repo         cartRepo
	productRepo  productRepo
	carts        *cache.Typed[domain.Cart]
	productCache invalidator
	metrics      *metrics.Business
	logger       logrus.FieldLogger
}

type cartRepo interface {
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	GetOrCreateForUpdate(ctx context.Context, userID string) (*domain.Cart, error)
	LockByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, c *domain.Cart) error
}

type productRepo interface {
	GetForUpdate(ctx context.Context, id string) (*domain.Product, error)
	DecrementInventory(ctx context.Context, id string, quantity int) (int, error)
}

type invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

type Option func(*Service)

// WithCache serves GetCart through c.
func WithCache(c *cache.Typed[domain.Cart]) Option {
	return func(s *Service) { s.carts = c }
}

// WithProductCache drops cached products whose inventory changed.
func WithProductCache(c invalidator) Option {
	return func(s *Service) { s.productCache = c }
}

func WithMetrics(m *metrics.Business) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.logger = l }
}

func New(tx db.Transactor, repo cartRepo, productRepo productRepo, opts ...Option) *Service {
	s := &Service{tx: tx, repo: repo, productRepo: productRepo, logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddProductToCart adds quantity of productID to the user's cart, creating
// the cart on first use, and decrements the product inventory by the same
// amount. Nothing changes when stock is short.
func (s *Service) AddProductToCart(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	const op = "cart.AddProductToCart"
	if quantity <= 0 {
		return nil, domain.Invalid(op, "quantity must be positive")
	}

	var out *domain.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.productRepo.GetForUpdate(ctx, productID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound(op, "product", productID)
		}
		if err != nil {
			return err
		}
		if p.Inventory < quantity {
			return insufficient(op, p, quantity)
		}

		c, err := s.repo.GetOrCreateForUpdate(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound(op, "user", userID)
		}
		if err != nil {
			return err
		}
		if err := c.AddItem(productID, quantity); err != nil {
			return err
		}

		if _, err := s.productRepo.DecrementInventory(ctx, productID, quantity); err != nil {
			if errors.Is(err, productrepo.ErrInsufficientInventory) {
				return insufficient(op, p, quantity)
			}
			return err
		}
		if err := s.repo.Save(ctx, c); err != nil {
			return err
		}

		db.AfterCommit(ctx, func(ctx context.Context) {
			s.invalidate(ctx, userID, productID)
		})
		out = c
		return nil
	})
	if err != nil {
		s.metrics.CartAdd(addResult(err))
		return nil, domain.Internal(err, op, "add product to cart")
	}
	s.metrics.CartAdd("ok")
	s.logger.WithField("user_id", userID).WithField("product_id", productID).
		WithField("cart_quantity", out.TotalQuantity()).Debug("product added to cart")
	return out, nil
}

// RemoveCartItem takes quantity units off the line itemID. A zero quantity
// removes the whole line. Stock is not returned to the product.
func (s *Service) RemoveCartItem(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	const op = "cart.RemoveCartItem"
	if quantity < 0 {
		return nil, domain.Invalid(op, "quantity must not be negative")
	}

	var out *domain.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.lock(ctx, op, userID)
		if err != nil {
			return err
		}
		item, ok := c.ItemByID(itemID)
		if !ok {
			return domain.NotFound(op, "cart item", itemID)
		}
		n := quantity
		if n == 0 {
			n = item.Quantity
		}
		if err := c.RemoveItem(item.ProductID, n); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, c); err != nil {
			return err
		}
		db.AfterCommit(ctx, func(ctx context.Context) { s.invalidate(ctx, userID) })
		out = c
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, op, "remove cart item")
	}
	return out, nil
}

// ClearCart empties the user's cart. It joins the caller's unit of work
// when there is one.
func (s *Service) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	const op = "cart.ClearCart"
	var out *domain.Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.lock(ctx, op, userID)
		if err != nil {
			return err
		}
		c.ClearCart()
		if err := s.repo.Save(ctx, c); err != nil {
			return err
		}
		db.AfterCommit(ctx, func(ctx context.Context) { s.invalidate(ctx, userID) })
		out = c
		return nil
	})
	if err != nil {
		return nil, domain.Internal(err, op, "clear cart")
	}
	return out, nil
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	const op = "cart.GetCart"
	load := func(ctx context.Context) (*domain.Cart, error) {
		c, err := s.repo.GetByUser(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NotFound(op, "cart for user", userID)
		}
		return c, err
	}
	if s.carts == nil {
		c, err := load(ctx)
		return c, domain.Internal(err, op, "load cart")
	}
	c, hit, err := s.carts.GetOrLoad(ctx, cache.CartKey(userID), load)
	if err != nil {
		return nil, domain.Internal(err, op, "load cart")
	}
	s.metrics.CacheLookup("cart", hit)
	return c, nil
}

func (s *Service) lock(ctx context.Context, op, userID string) (*domain.Cart, error) {
	c, err := s.repo.LockByUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFound(op, "cart for user", userID)
	}
	return c, err
}

func (s *Service) invalidate(ctx context.Context, userID string, productIDs ...string) {
	if s.carts != nil {
		if err := s.carts.Invalidate(ctx, cache.CartKey(userID)); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("invalidate cart cache")
		}
	}
	if s.productCache == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, cache.ProductKey(id))
	}
	if err := s.productCache.Invalidate(ctx, keys...); err != nil {
		s.logger.WithError(err).Warn("invalidate product cache")
	}
}

func insufficient(op string, p *domain.Product, requested int) error {
	return domain.InvalidOperation(op, "insufficient inventory for product %s: requested %d, available %d",
		p.ID, requested, p.Inventory)
}

func addResult(err error) string {
	switch domain.KindOf(err) {
	case domain.KindInvalidOperation:
		return "insufficient_inventory"
	case domain.KindNotFound:
		return "not_found"
	case domain.KindInvalidInput:
		return "invalid"
	}
	return "error"
}
