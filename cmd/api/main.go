package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/outbox"
	"storefront/internal/payment"
	addressrepo "storefront/internal/repository/address"
	cartrepo "storefront/internal/repository/cart"
	categoryrepo "storefront/internal/repository/category"
	orderrepo "storefront/internal/repository/order"
	outboxrepo "storefront/internal/repository/outbox"
	productrepo "storefront/internal/repository/product"
	reviewrepo "storefront/internal/repository/review"
	tokenrepo "storefront/internal/repository/token"
	userrepo "storefront/internal/repository/user"
	cartsvc "storefront/internal/service/cart"
	categorysvc "storefront/internal/service/category"
	ordersvc "storefront/internal/service/order"
	productsvc "storefront/internal/service/product"
	reviewsvc "storefront/internal/service/review"
	usersvc "storefront/internal/service/user"
)

func main() {
	cfg := config.FromEnv()
	root := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger := logging.Component(root, "api")

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.WithError(err).Fatal("connect to db")
	}
	defer dbpool.Close()
	tx := db.NewTxManager(dbpool)

	reg := metrics.New()
	store := cacheStore(ctx, cfg, logger)
	productCache := cache.NewTyped[domain.Product](store, cfg.Cache.TTL)
	cartCache := cache.NewTyped[domain.Cart](store, cfg.Cache.TTL)

	productRepo := productrepo.NewPostgres(dbpool, root)
	cartRepo := cartrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, root)
	outboxRepo := outboxrepo.NewPostgres(dbpool)
	userRepo := userrepo.NewPostgres(dbpool, root)

	gateway := paymentGateway(cfg, logger)

	userService := usersvc.New(userRepo, tokenrepo.NewPostgres(dbpool), cfg.TokenTTL)
	productService := productsvc.New(tx, productRepo, productCache, reg.Business, logging.Component(root, "product"))
	cartService := cartsvc.New(tx, cartRepo, productRepo,
		cartsvc.WithCache(cartCache),
		cartsvc.WithProductCache(productCache),
		cartsvc.WithMetrics(reg.Business),
		cartsvc.WithLogger(logging.Component(root, "cart")),
	)
	orderService := ordersvc.New(ordersvc.Deps{
		Tx:        tx,
		Orders:    orderRepo,
		Carts:     cartRepo,
		Clearer:   cartService,
		CartCache: cartCache,
		Products:  productRepo,
		Addresses: addressrepo.NewPostgres(dbpool),
		Outbox:    outboxRepo,
		Users:     userRepo,
		Gateway:   gateway,
		Currency:  cfg.Checkout.Currency,
		Metrics:   reg.Business,
		Logger:    logging.Component(root, "order"),
	})

	publisher := eventPublisher(cfg, root)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("close event publisher")
		}
	}()
	relay := outbox.NewRelay(tx, outboxRepo, publisher,
		outbox.WithInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithMetrics(reg.Business),
		outbox.WithLogger(logging.Component(root, "outbox")),
	)
	relayCtx, stopRelay := context.WithCancel(ctx)
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(relayCtx)
	}()

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		userService.RunTokenSweeper(relayCtx, cfg.TokenSweepInterval, logging.Component(root, "tokens"))
	}()

	srv, err := httpserver.New(cfg.HTTPAddr, logging.Component(root, "http"), dbpool, httpserver.Deps{
		UserSvc:     userService,
		ProductSvc:  productService,
		CategorySvc: categorysvc.New(categoryrepo.NewPostgres(dbpool)),
		ReviewSvc:   reviewsvc.New(reviewrepo.NewPostgres(dbpool), productRepo),
		CartSvc:     cartService,
		OrderSvc:    orderService,
		Payments:    gateway,
		Metrics:     reg,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.WithError(err).Fatal("init server")
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		logger.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	} else {
		logger.Info("server stopped")
	}
	stopRelay()
	<-relayDone
	<-sweepDone
}

func cacheStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) cache.Store {
	if cfg.Redis.Addr == "" {
		logger.Info("REDIS_ADDR not set, using in-process cache")
		return cache.NewMemoryStore(cfg.Cache.Size, cfg.Cache.TTL)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis not reachable at startup")
	}
	return cache.NewRedisStore(client, "storefront:")
}

func paymentGateway(cfg config.Config, logger logrus.FieldLogger) payment.Gateway {
	if cfg.Checkout.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, using mock checkout gateway")
		return payment.NewMockGateway(cfg.Checkout.WebhookSecret)
	}
	return payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     cfg.Checkout.SecretKey,
		WebhookSecret: cfg.Checkout.WebhookSecret,
		SuccessURL:    cfg.Checkout.SuccessURL,
		CancelURL:     cfg.Checkout.CancelURL,
	})
}

func eventPublisher(cfg config.Config, root logrus.FieldLogger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(logging.Component(root, "events"))
	}
	return events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
}
