package main

import (
	"context"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/logging"
	categoryrepo "storefront/internal/repository/category"
	productrepo "storefront/internal/repository/product"
	tokenrepo "storefront/internal/repository/token"
	userrepo "storefront/internal/repository/user"
	"storefront/internal/seed"
	usersvc "storefront/internal/service/user"
)

func main() {
	cfg := config.FromEnv()
	root := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger := logging.Component(root, "seed")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, 2)
	if err != nil {
		logger.WithError(err).Fatal("connect db")
	}
	defer pool.Close()

	users := usersvc.New(userrepo.NewPostgres(pool, root), tokenrepo.NewPostgres(pool), cfg.TokenTTL)
	deps := seed.Deps{
		Categories: categoryrepo.NewPostgres(pool),
		Products:   productrepo.NewPostgres(pool, root),
		Users:      users,
		Admin: usersvc.SignupInput{
			Email:    cfg.Seed.AdminEmail,
			Password: cfg.Seed.AdminPassword,
			FullName: "Store Admin",
		},
	}
	if err := seed.Apply(ctx, deps, logger); err != nil {
		logger.WithError(err).Fatal("seed apply")
	}

	logger.Info("seed applied")
}
