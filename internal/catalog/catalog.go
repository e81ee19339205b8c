// Package catalog backs the home page product grid.
package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/cart"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/notice"
	"teakspice-storefront/internal/router"
	"teakspice-storefront/internal/viewstate"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
}

type RoleSource interface {
	CurrentRole() model.Role
}

type Browser struct {
	api     ProductLister
	roles   RoleSource
	cart    *cart.Synchronizer
	notices notice.Sink
	log     *zap.Logger

	mu       sync.Mutex
	guard    viewstate.Guard
	products []model.Product
}

func New(api ProductLister, roles RoleSource, c *cart.Synchronizer, notices notice.Sink, log *zap.Logger) *Browser {
	if notices == nil {
		notices = notice.Discard
	}
	if log == nil {
		log = zap.L()
	}
	return &Browser{api: api, roles: roles, cart: c, notices: notices, log: log.Named("catalog")}
}

// Load lists products. A signed-in customer's cart is loaded too so the grid
// can mark what is already in it; a cart failure does not fail the page.
func (b *Browser) Load(ctx context.Context) error {
	b.mu.Lock()
	b.guard.Open()
	t := b.guard.BeginKey("load")
	b.mu.Unlock()

	products, err := b.api.ListProducts(ctx)
	if err != nil {
		b.log.Warn("products fetch failed", zap.Error(err))
		b.notices.Notify(notice.Failure("Failed to load products", err))
		return err
	}

	b.mu.Lock()
	if b.guard.Valid(t) {
		b.products = append([]model.Product(nil), products...)
	}
	b.mu.Unlock()

	if b.roles.CurrentRole() == model.RoleCustomer {
		_ = b.cart.Load(ctx)
	}
	return nil
}

func (b *Browser) Products() []model.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Product(nil), b.products...)
}

// Product looks up a listed product.
func (b *Browser) Product(id string) (model.Product, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.products {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// AddToCart puts one unit of a listed product in the cart. Anonymous users
// are sent to the login view instead; the returned view is where the caller
// should go next.
func (b *Browser) AddToCart(ctx context.Context, productID string) (router.View, error) {
	if b.roles.CurrentRole() == model.RoleAnonymous {
		err := apperr.Auth("catalog.add", "login required")
		b.notices.Notify(notice.Failure("Please login to add items to cart!", err))
		return router.ViewLogin, err
	}
	p, ok := b.Product(productID)
	if !ok {
		err := apperr.NotFound("catalog.add", "product is not listed")
		b.notices.Notify(notice.Failure("Error adding to cart!", err))
		return router.ViewHome, err
	}
	if err := b.cart.Add(ctx, p, 1); err != nil {
		return router.ViewHome, err
	}
	b.notices.Notify(notice.Info("Item added to cart!"))
	return router.ViewHome, nil
}

func (b *Browser) RemoveFromCart(ctx context.Context, productID string) error {
	return b.cart.Remove(ctx, productID)
}

func (b *Browser) InCart(productID string) bool {
	_, ok := b.cart.Quantity(productID)
	return ok
}

func (b *Browser) Close() {
	b.mu.Lock()
	b.guard.Close()
	b.mu.Unlock()
}
