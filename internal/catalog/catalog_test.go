package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/cart"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/notice"
	"teakspice-storefront/internal/router"
)

type role model.Role

func (r role) CurrentRole() model.Role { return model.Role(r) }

type fakeShop struct {
	mu       sync.Mutex
	products []model.Product
	lines    []model.CartLine
	listErr  error
	adds     int
	views    int
}

func (f *fakeShop) ListProducts(context.Context) ([]model.Product, error) {
	return f.products, f.listErr
}

func (f *fakeShop) ViewCart(context.Context) ([]model.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views++
	return f.lines, nil
}

func (f *fakeShop) AddToCart(context.Context, string, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	return nil
}

func (f *fakeShop) UpdateCartLine(context.Context, string, int) error { return nil }
func (f *fakeShop) RemoveCartLine(context.Context, string) error      { return nil }
func (f *fakeShop) CreateOrder(context.Context, []model.CartLine) error {
	return nil
}

func shop() *fakeShop {
	bowl := model.Product{ID: "p1", Name: "Teak Bowl", Price: decimal.NewFromInt(12), Stock: 2}
	return &fakeShop{
		products: []model.Product{bowl, {ID: "p2", Name: "Cardamom", Price: decimal.NewFromInt(4)}},
		lines:    []model.CartLine{{Product: bowl, Quantity: 1}},
	}
}

func browser(t *testing.T, f *fakeShop, r model.Role) (*Browser, *notice.Recorder) {
	t.Helper()
	rec := notice.NewRecorder(nil)
	log := zaptest.NewLogger(t)
	b := New(f, role(r), cart.New(f, rec, log), rec, log)
	require.NoError(t, b.Load(context.Background()))
	return b, rec
}

func TestAnonymousBrowsesWithoutCart(t *testing.T) {
	f := shop()
	b, rec := browser(t, f, model.RoleAnonymous)

	assert.Len(t, b.Products(), 2)
	assert.Zero(t, f.views)

	view, err := b.AddToCart(context.Background(), "p1")
	assert.Equal(t, router.ViewLogin, view)
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Zero(t, f.adds)
	assert.Equal(t, "Please login to add items to cart!", rec.Drain()[0].Message)
}

func TestCustomerSeesInCart(t *testing.T) {
	f := shop()
	b, _ := browser(t, f, model.RoleCustomer)

	assert.Equal(t, 1, f.views)
	assert.True(t, b.InCart("p1"))
	assert.False(t, b.InCart("p2"))

	_, err := b.AddToCart(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, f.adds)
	assert.True(t, b.InCart("p2"))

	require.NoError(t, b.RemoveFromCart(context.Background(), "p1"))
	assert.False(t, b.InCart("p1"))
}

func TestAddUnlistedProduct(t *testing.T) {
	f := shop()
	b, _ := browser(t, f, model.RoleCustomer)

	_, err := b.AddToCart(context.Background(), "ghost")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, f.adds)
}

func TestLoadFailure(t *testing.T) {
	f := shop()
	f.listErr = apperr.Network("products.list", assert.AnError)
	rec := notice.NewRecorder(nil)
	b := New(f, role(model.RoleCustomer), cart.New(f, nil, nil), rec, zaptest.NewLogger(t))

	assert.Error(t, b.Load(context.Background()))
	assert.Empty(t, b.Products())
	assert.Len(t, rec.Drain(), 1)
}
