package domain

import (
	"strings"
	"time"
)

// Address is a shipping destination persisted before the order that
// references it.
type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	FullName   string    `json:"fullName,omitempty"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (a Address) Validate() error {
	const op = "address.Validate"
	switch {
	case strings.TrimSpace(a.Line1) == "":
		return InvalidOperation(op, "shipping address line1 is required")
	case strings.TrimSpace(a.City) == "":
		return InvalidOperation(op, "shipping address city is required")
	case strings.TrimSpace(a.Country) == "":
		return InvalidOperation(op, "shipping address country is required")
	}
	return nil
}
