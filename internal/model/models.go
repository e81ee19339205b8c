// Package model holds the storefront's client-side view of backend resources.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend expects prices and amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image,omitempty"`
}

// CartLine pairs a product snapshot with a quantity of at least one.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal is price times quantity for the line.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

// AdminStatuses is the set an administrator may assign to an order.
var AdminStatuses = []OrderStatus{OrderPending, OrderShipped, OrderDelivered, OrderCancelled}

// ParseAdminStatus maps s onto one of AdminStatuses, ignoring case.
func ParseAdminStatus(s string) (OrderStatus, bool) {
	for _, st := range AdminStatuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// Is reports whether the status equals other, ignoring case.
func (s OrderStatus) Is(other OrderStatus) bool {
	return strings.EqualFold(string(s), string(other))
}

type Order struct {
	ID         string          `json:"_id"`
	Status     OrderStatus     `json:"status"`
	Lines      []CartLine      `json:"products"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CreatedAt  *time.Time      `json:"createdAt,omitempty"`
}

// Pending reports whether the order still awaits payment.
func (o Order) Pending() bool {
	return o.Status.Is(OrderPending)
}

// ProductDraft is the admin form staging shared by create and edit.
type ProductDraft struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image,omitempty"`
}

// DraftOf stages an existing product for editing.
func DraftOf(p Product) ProductDraft {
	return ProductDraft{
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Stock:       p.Stock,
		Image:       p.Image,
	}
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// CheckoutRequest aggregates selected orders into one payment.
type CheckoutRequest struct {
	Items  []CartLine      `json:"items"`
	Amount decimal.Decimal `json:"amount"`
}
