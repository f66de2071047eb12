package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cart is the per-user collection of lines awaiting checkout. Every line
// holds a positive quantity; a line that reaches zero is dropped. Ordered
// counts the units of a line already placed in an order; only the rest can
// back a new order.
type Cart struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type CartItem struct {
	ID        string `json:"id"`
	CartID    string `json:"cartId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Ordered   int    `json:"ordered"`
}

// Unordered is the reserved quantity not yet placed in an order.
func (it CartItem) Unordered() int {
	return it.Quantity - it.Ordered
}

func NewCart(userID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem merges quantity into the line for productID, creating the line on
// first add.
func (c *Cart) AddItem(productID string, quantity int) error {
	const op = "cart.AddItem"
	if productID == "" {
		return Invalid(op, "product id is required")
	}
	if quantity <= 0 {
		return Invalid(op, "quantity must be positive")
	}
	c.UpdatedAt = time.Now().UTC()
	if i := c.indexOf(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, CartItem{
		ID:        uuid.NewString(),
		CartID:    c.ID,
		ProductID: productID,
		Quantity:  quantity,
	})
	return nil
}

// RemoveItem decreases the line for productID and drops it at zero. A
// missing line is a no-op; removing more than the line holds is rejected.
func (c *Cart) RemoveItem(productID string, quantity int) error {
	const op = "cart.RemoveItem"
	if quantity <= 0 {
		return Invalid(op, "quantity must be positive")
	}
	i := c.indexOf(productID)
	if i < 0 {
		return nil
	}
	current := c.Items[i].Quantity
	if quantity > current {
		return InvalidOperation(op, "cannot remove %d of product %s, cart holds %d", quantity, productID, current)
	}
	c.UpdatedAt = time.Now().UTC()
	if quantity == current {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	}
	c.Items[i].Quantity = current - quantity
	if c.Items[i].Ordered > c.Items[i].Quantity {
		c.Items[i].Ordered = c.Items[i].Quantity
	}
	return nil
}

// MarkOrdered moves quantity units of the line for productID from unordered
// to ordered.
func (c *Cart) MarkOrdered(productID string, quantity int) error {
	const op = "cart.MarkOrdered"
	if quantity <= 0 {
		return Invalid(op, "quantity must be positive")
	}
	i := c.indexOf(productID)
	if i < 0 {
		return InvalidOperation(op, "product %s is not in the cart", productID)
	}
	if left := c.Items[i].Unordered(); quantity > left {
		return InvalidOperation(op, "requested %d of product %s, %d left to order", quantity, productID, left)
	}
	c.Items[i].Ordered += quantity
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Cart) ClearCart() {
	c.Items = []CartItem{}
	c.UpdatedAt = time.Now().UTC()
}

// FindItem returns the line holding productID.
func (c *Cart) FindItem(productID string) (CartItem, bool) {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i], true
	}
	return CartItem{}, false
}

// ItemByID returns the line with the given line identifier.
func (c *Cart) ItemByID(itemID string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return CartItem{}, false
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// HasUnordered reports whether any line still holds quantity that no order
// has claimed.
func (c *Cart) HasUnordered() bool {
	for _, it := range c.Items {
		if it.Unordered() > 0 {
			return true
		}
	}
	return false
}

func (c *Cart) TotalQuantity() int {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}

// Carts hold few distinct products, a scan is enough.
func (c *Cart) indexOf(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
