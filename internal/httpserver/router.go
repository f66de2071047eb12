package httpserver

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/payment"
	ordersvc "storefront/internal/service/order"
	reviewsvc "storefront/internal/service/review"
	usersvc "storefront/internal/service/user"
)

type userService interface {
	Signup(ctx context.Context, in usersvc.SignupInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*usersvc.Session, error)
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
	Logout(ctx context.Context, token string) error
	Get(ctx context.Context, id string) (*domain.User, error)
	TokenTTLSeconds() int
}

type productService interface {
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, id string, u domain.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type categoryService interface {
	List(ctx context.Context) ([]domain.Category, error)
	Create(ctx context.Context, c domain.Category) (*domain.Category, error)
}

type reviewService interface {
	Create(ctx context.Context, caller domain.Identity, productID string, in reviewsvc.CreateInput) (*domain.Review, error)
	List(ctx context.Context, productID string) ([]domain.Review, error)
	Delete(ctx context.Context, caller domain.Identity, id string) error
}

type cartService interface {
	AddProductToCart(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error)
	RemoveCartItem(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type orderService interface {
	CreateOrderFromCart(ctx context.Context, in ordersvc.CreateInput) (*domain.Order, error)
	Checkout(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error)
	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
	MarkOrderAsPaid(ctx context.Context, sessionID string) (bool, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error)
}

// Deps are the services behind the routes. Metrics and CORSOrigins are
// optional.
type Deps struct {
	UserSvc     userService
	ProductSvc  productService
	CategorySvc categoryService
	ReviewSvc   reviewService
	CartSvc     cartService
	OrderSvc    orderService
	Payments    payment.Gateway
	Metrics     *metrics.Registry
	CORSOrigins []string
}

func (d Deps) validate() error {
	switch {
	case d.UserSvc == nil:
		return errors.New("httpserver: user service is required")
	case d.ProductSvc == nil, d.CategorySvc == nil, d.ReviewSvc == nil:
		return errors.New("httpserver: catalog services are required")
	case d.CartSvc == nil, d.OrderSvc == nil:
		return errors.New("httpserver: cart and order services are required")
	case d.Payments == nil:
		return errors.New("httpserver: payment gateway is required")
	}
	return nil
}

// buildRouter wires routes for the API.
func buildRouter(logger logrus.FieldLogger, db Pinger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.CustomRecovery(recoveryHandler(logger)))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.HTTP.Middleware())
	}
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(deps.CORSOrigins)))
	}

	h := &handlers{deps: deps, logger: logger}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Gatherer, promhttp.HandlerOpts{})))
	}

	router.POST("/auth/signup", h.signup)
	router.POST("/auth/token", h.token)
	router.POST("/webhooks", h.webhook)

	authed := router.Group("/", authenticate(deps.UserSvc, logger))

	authed.GET("/products", h.listProducts)
	authed.GET("/products/:id", h.getProduct)
	authed.GET("/products/:id/reviews", h.listReviews)
	authed.GET("/categories", h.listCategories)

	member := authed.Group("/", requireAuth())
	member.GET("/me", h.me)
	member.POST("/auth/logout", h.logout)
	member.POST("/products/:id/reviews", h.createReview)
	member.DELETE("/reviews/:id", h.deleteReview)

	carts := member.Group("/carts/users/:userId", requireOwner("userId"))
	carts.GET("", h.getCart)
	carts.POST("", h.addToCart)
	carts.DELETE("/items/:itemId", h.removeCartItem)
	carts.POST("/clear", h.clearCart)

	member.POST("/orders", h.createOrder)
	member.GET("/orders", h.listOrders)
	member.GET("/orders/:orderId", h.getOrder)
	member.POST("/orders/:orderId/checkout", h.checkoutOrder)
	member.PATCH("/orders/:orderId/status", h.updateOrderStatus)
	member.PATCH("/orders/:orderId/cancel", h.cancelOrder)

	admin := member.Group("/", requireAdmin())
	admin.POST("/products", h.createProduct)
	admin.PATCH("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.POST("/categories", h.createCategory)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

type handlers struct {
	deps   Deps
	logger logrus.FieldLogger
}

func (h *handlers) businessMetrics() *metrics.Business {
	if h.deps.Metrics == nil {
		return nil
	}
	return h.deps.Metrics.Business
}
