package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
	usersvc "storefront/internal/service/user"
)

type CategoryUpserter interface {
	Upsert(ctx context.Context, c domain.Category) (*domain.Category, error)
}

type ProductUpserter interface {
	UpsertByTitle(ctx context.Context, p domain.Product) (*domain.Product, error)
}

type AdminEnsurer interface {
	EnsureAdmin(ctx context.Context, in usersvc.SignupInput) (*domain.User, error)
}

type productSeed struct {
	Title       string
	Description string
	Price       string
	Inventory   int
	Category    string
}

var categories = []domain.Category{
	{Key: "lighting", Name: "Lighting"},
	{Key: "kitchen", Name: "Kitchen"},
}

var products = []productSeed{
	{Title: "Brass Desk Lamp", Description: "Adjustable arm, warm LED", Price: "49.00", Inventory: 25, Category: "lighting"},
	{Title: "Paper Floor Lamp", Description: "Rice paper shade", Price: "89.50", Inventory: 8, Category: "lighting"},
	{Title: "Stoneware Mug", Description: "350 ml, dishwasher safe", Price: "12.99", Inventory: 120, Category: "kitchen"},
	{Title: "Pour-Over Kettle", Description: "Gooseneck, 1 l", Price: "39.90", Inventory: 15, Category: "kitchen"},
}

// Deps are the writers Apply uses. Users may be nil to skip the admin account.
type Deps struct {
	Categories CategoryUpserter
	Products   ProductUpserter
	Users      AdminEnsurer
	Admin      usersvc.SignupInput
}

// Apply inserts demo catalog data and the admin account. It is idempotent:
// categories upsert by key, products by title.
func Apply(ctx context.Context, d Deps, logger logrus.FieldLogger) error {
	ids := make(map[string]string, len(categories))
	for _, c := range categories {
		saved, err := d.Categories.Upsert(ctx, c)
		if err != nil {
			return fmt.Errorf("upsert category %s: %w", c.Key, err)
		}
		ids[c.Key] = saved.ID
	}

	for _, p := range products {
		catID := ids[p.Category]
		_, err := d.Products.UpsertByTitle(ctx, domain.Product{
			Title:       p.Title,
			Description: p.Description,
			Price:       decimal.RequireFromString(p.Price),
			Inventory:   p.Inventory,
			CategoryID:  &catID,
			ImageURLs:   []string{},
		})
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Title, err)
		}
	}
	logger.WithField("categories", len(categories)).WithField("products", len(products)).Info("catalog seeded")

	if d.Users == nil || d.Admin.Email == "" {
		return nil
	}
	admin, err := d.Users.EnsureAdmin(ctx, d.Admin)
	if err != nil {
		return fmt.Errorf("ensure admin %s: %w", d.Admin.Email, err)
	}
	logger.WithField("user_id", admin.ID).Info("admin account ready")
	return nil
}
