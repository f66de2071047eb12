package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// ParseOrderStatus accepts the canonical status names.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusProcessing, OrderStatusPending, OrderStatusCompleted, OrderStatusShipped, OrderStatusCancelled:
		return st, nil
	}
	return "", Invalid("order.ParseOrderStatus", "unknown order status %q", s)
}

// IsFulfilled reports whether the order has reached a state that can no
// longer be cancelled.
func (s OrderStatus) IsFulfilled() bool {
	return s == OrderStatusCompleted || s == OrderStatusShipped
}

func (s OrderStatus) CanCancel() bool {
	return !s.IsFulfilled()
}

// ProductSnapshot freezes the product fields an order line was priced from.
type ProductSnapshot struct {
	ProductID   string          `json:"productId"`
	Title       string          `json:"title"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	ImageURLs   []string        `json:"imageUrls"`
}

func SnapshotOf(p Product) ProductSnapshot {
	return ProductSnapshot{
		ProductID:   p.ID,
		Title:       p.Title,
		Price:       p.Price,
		Description: p.Description,
		ImageURLs:   append([]string(nil), p.ImageURLs...),
	}
}

type OrderItem struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"orderId"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Snapshot ProductSnapshot `json:"product"`
}

// LineTotal is Price × Quantity.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Order is built from a cart at checkout. TotalPrice is derived from the
// lines and only recalculateTotal writes it.
type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"userId"`
	ShippingAddressID string          `json:"shippingAddressId"`
	Status            OrderStatus     `json:"status"`
	TotalPrice        decimal.Decimal `json:"totalPrice"`
	Items             []OrderItem     `json:"items"`
	PaymentSessionID  string          `json:"paymentSessionId,omitempty"`
	CheckoutURL       string          `json:"checkoutUrl,omitempty"`
	PaidAt            *time.Time      `json:"paidAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func NewOrder(userID, shippingAddressID string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:                uuid.NewString(),
		UserID:            userID,
		ShippingAddressID: shippingAddressID,
		Status:            OrderStatusProcessing,
		TotalPrice:        decimal.Zero,
		Items:             []OrderItem{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// AddOrderItem snapshots p and merges quantity into its line. The line price
// is fixed by the first snapshot of the product.
func (o *Order) AddOrderItem(p Product, quantity int) error {
	const op = "order.AddOrderItem"
	if p.ID == "" {
		return Invalid(op, "product id is required")
	}
	if quantity <= 0 {
		return Invalid(op, "quantity must be positive")
	}
	if !p.Price.IsPositive() {
		return InvalidOperation(op, "product %s has no valid price", p.ID)
	}

	merged := false
	for i := range o.Items {
		if o.Items[i].Snapshot.ProductID == p.ID {
			o.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		snap := SnapshotOf(p)
		o.Items = append(o.Items, OrderItem{
			ID:       uuid.NewString(),
			OrderID:  o.ID,
			Quantity: quantity,
			Price:    snap.Price,
			Snapshot: snap,
		})
	}
	o.recalculateTotal()
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// ReplaceItems installs lines loaded from storage and derives the total.
func (o *Order) ReplaceItems(items []OrderItem) {
	o.Items = items
	o.recalculateTotal()
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	o.TotalPrice = total
}
