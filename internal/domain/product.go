package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Inventory   int             `json:"inventory"`
	CategoryID  *string         `json:"categoryId,omitempty"`
	ImageURLs   []string        `json:"imageUrls"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Validate checks the catalog-level invariants of a product.
func (p Product) Validate() error {
	const op = "product.Validate"
	if strings.TrimSpace(p.Title) == "" {
		return Invalid(op, "title is required")
	}
	if !p.Price.IsPositive() {
		return Invalid(op, "price must be positive")
	}
	if p.Inventory < 0 {
		return Invalid(op, "inventory must not be negative")
	}
	return nil
}

// ProductUpdate is a partial update: nil fields are left untouched.
type ProductUpdate struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Inventory   *int             `json:"inventory"`
	CategoryID  *string          `json:"categoryId"`
	ImageURLs   *[]string        `json:"imageUrls"`
}

// Empty reports whether the update carries no fields.
func (u ProductUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Price == nil &&
		u.Inventory == nil && u.CategoryID == nil && u.ImageURLs == nil
}

// Apply copies the set fields onto p and validates the result. An empty
// CategoryID clears the category.
func (u ProductUpdate) Apply(p *Product) error {
	if u.Title != nil {
		p.Title = strings.TrimSpace(*u.Title)
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Inventory != nil {
		p.Inventory = *u.Inventory
	}
	if u.CategoryID != nil {
		if *u.CategoryID == "" {
			p.CategoryID = nil
		} else {
			id := *u.CategoryID
			p.CategoryID = &id
		}
	}
	if u.ImageURLs != nil {
		p.ImageURLs = append([]string(nil), (*u.ImageURLs)...)
	}
	return p.Validate()
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID string
	Sort       string
	Limit      int
	Offset     int
}
