// Package admin is the view model behind the admin panel: the product and
// order lists, the product draft form and the mutations on both.
package admin

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/notice"
	"teakspice-storefront/internal/router"
	"teakspice-storefront/internal/viewstate"
)

// ErrNotConfirmed is returned when the user declines a destructive action.
var ErrNotConfirmed = errors.New("action not confirmed")

const DeletePrompt = "Are you sure you want to delete this product?"

type Backend interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	AllOrders(ctx context.Context) ([]model.Order, error)
	CreateProduct(ctx context.Context, d model.ProductDraft) (model.Product, error)
	UpdateProduct(ctx context.Context, id string, d model.ProductDraft) (model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (model.Order, error)
}

// RoleSource reports the role of whoever is signed in.
type RoleSource interface {
	CurrentRole() model.Role
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Always confirms without asking.
var Always Confirmer = ConfirmFunc(func(string) bool { return true })

// Resource is one independently loaded list.
type Resource[T any] struct {
	Items  []T
	Err    error
	Loaded bool
}

type Manager struct {
	api     Backend
	roles   RoleSource
	notices notice.Sink
	log     *zap.Logger

	mu       sync.Mutex
	guard    viewstate.Guard
	products Resource[model.Product]
	orders   Resource[model.Order]
	draft    model.ProductDraft
	editID   string
}

func New(api Backend, roles RoleSource, notices notice.Sink, log *zap.Logger) *Manager {
	if notices == nil {
		notices = notice.Discard
	}
	if log == nil {
		log = zap.L()
	}
	return &Manager{api: api, roles: roles, notices: notices, log: log.Named("admin")}
}

// Mount opens the panel. Non-admins are turned away to the home view.
func (m *Manager) Mount(ctx context.Context) (router.View, error) {
	if m.roles.CurrentRole() != model.RoleAdmin {
		err := apperr.Auth("admin.mount", "admin role required")
		m.notices.Notify(notice.Failure("Access denied! Redirecting...", err))
		return router.ViewHome, err
	}
	m.mu.Lock()
	m.guard.Open()
	m.mu.Unlock()
	return router.ViewAdmin, m.Load(ctx)
}

// Load fetches products and orders concurrently. Each list keeps its own
// error; a failed list is empty while the other still renders. The returned
// error is non-nil only when both failed.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	t := m.guard.BeginKey("load")
	m.mu.Unlock()

	var (
		products []model.Product
		orders   []model.Order
		pErr     error
		oErr     error
		g        errgroup.Group
	)
	g.Go(func() error {
		products, pErr = m.api.ListProducts(ctx)
		return nil
	})
	g.Go(func() error {
		orders, oErr = m.api.AllOrders(ctx)
		return nil
	})
	_ = g.Wait()

	if pErr != nil {
		m.log.Warn("products fetch failed", zap.Error(pErr))
	}
	if oErr != nil {
		m.log.Warn("orders fetch failed", zap.Error(oErr))
	}

	m.mu.Lock()
	if m.guard.Valid(t) {
		m.products = settle(products, pErr)
		m.orders = settle(orders, oErr)
	}
	m.mu.Unlock()

	err := multierr.Combine(pErr, oErr)
	if pErr != nil && oErr != nil {
		m.notices.Notify(notice.Failure("Failed to load admin data", err))
		return err
	}
	if err != nil {
		m.notices.Notify(notice.Failure("Some admin data could not be loaded", err))
	}
	return nil
}

func settle[T any](items []T, err error) Resource[T] {
	if err != nil {
		return Resource[T]{Items: []T{}, Err: err, Loaded: true}
	}
	return Resource[T]{Items: append([]T{}, items...), Loaded: true}
}

// Mounted reports whether the panel was loaded and has not been closed since.
func (m *Manager) Mounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products.Loaded && !m.guard.Closed()
}

func (m *Manager) Products() Resource[model.Product] {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.products
	r.Items = append([]model.Product(nil), r.Items...)
	return r
}

func (m *Manager) Orders() Resource[model.Order] {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.orders
	r.Items = append([]model.Order(nil), r.Items...)
	return r
}

// Draft returns the staged form and the id being edited, empty in create mode.
func (m *Manager) Draft() (model.ProductDraft, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft, m.editID
}

func (m *Manager) SetDraft(d model.ProductDraft) {
	m.mu.Lock()
	m.draft = d
	m.mu.Unlock()
}

// StartEdit stages the listed product id for editing.
func (m *Manager) StartEdit(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products.Items {
		if p.ID == id {
			m.draft = model.DraftOf(p)
			m.editID = id
			return nil
		}
	}
	return apperr.NotFound("admin.edit", "product is not listed")
}

// CancelEdit returns the form to create mode.
func (m *Manager) CancelEdit() {
	m.mu.Lock()
	m.draft = model.ProductDraft{}
	m.editID = ""
	m.mu.Unlock()
}

// DraftFromForm converts raw form fields into a draft. Empty numeric fields
// are zero; malformed ones are a validation error.
func DraftFromForm(form map[string]string) (model.ProductDraft, error) {
	const op = "admin.form"
	d := model.ProductDraft{
		Name:        strings.TrimSpace(form["name"]),
		Description: form["description"],
		Image:       strings.TrimSpace(form["image"]),
	}
	if raw := strings.TrimSpace(form["price"]); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return d, apperr.Validation(op, "price must be a number")
		}
		if price.IsNegative() {
			return d, apperr.Validation(op, "price cannot be negative")
		}
		d.Price = price
	}
	if raw := strings.TrimSpace(form["stock"]); raw != "" {
		stock, err := cast.ToIntE(raw)
		if err != nil {
			return d, apperr.Validation(op, "stock must be a whole number")
		}
		if stock < 0 {
			return d, apperr.Validation(op, "stock cannot be negative")
		}
		d.Stock = stock
	}
	return d, nil
}

// SubmitDraft creates or updates a product from the staged draft. Success
// clears the form; failure leaves it as it was.
func (m *Manager) SubmitDraft(ctx context.Context) (model.Product, error) {
	m.mu.Lock()
	d, id := m.draft, m.editID
	t := m.guard.Begin()
	m.mu.Unlock()

	if strings.TrimSpace(d.Name) == "" {
		err := apperr.Validation("admin.submit", "product name is required")
		m.notices.Notify(notice.Failure("Product name is required", err))
		return model.Product{}, err
	}

	if id == "" {
		p, err := m.api.CreateProduct(ctx, d)
		if err != nil {
			m.notices.Notify(notice.Failure("Error adding product!", err))
			return model.Product{}, err
		}
		m.apply(t, func() {
			m.products.Items = append(m.products.Items, p)
		})
		m.notices.Notify(notice.Info("Product Added Successfully!"))
		return p, nil
	}

	p, err := m.api.UpdateProduct(ctx, id, d)
	if err != nil {
		m.notices.Notify(notice.Failure("Failed to update product", err))
		return model.Product{}, err
	}
	if p.ID == "" {
		p.ID = id
	}
	m.apply(t, func() {
		m.products.Items = replaceByID(m.products.Items, id, p)
	})
	m.notices.Notify(notice.Info("Product Updated!"))
	return p, nil
}

// DeleteProduct removes a product after the user confirms.
func (m *Manager) DeleteProduct(ctx context.Context, id string, c Confirmer) error {
	if c == nil || !c.Confirm(DeletePrompt) {
		return ErrNotConfirmed
	}
	m.mu.Lock()
	t := m.guard.Begin()
	m.mu.Unlock()

	if err := m.api.DeleteProduct(ctx, id); err != nil {
		m.notices.Notify(notice.Failure("Failed to delete product", err))
		return err
	}
	m.mu.Lock()
	if m.guard.Valid(t) {
		out := m.products.Items[:0:0]
		for _, p := range m.products.Items {
			if p.ID != id {
				out = append(out, p)
			}
		}
		m.products.Items = out
	}
	m.mu.Unlock()
	m.notices.Notify(notice.Info("Product Deleted!"))
	return nil
}

// SetOrderStatus assigns one of model.AdminStatuses to an order. When several
// updates for the same order overlap, only the newest one is applied.
func (m *Manager) SetOrderStatus(ctx context.Context, orderID, status string) (model.Order, error) {
	st, ok := model.ParseAdminStatus(status)
	if !ok {
		err := apperr.Validation("admin.status", "unsupported order status "+status)
		m.notices.Notify(notice.Failure("Invalid order status", err))
		return model.Order{}, err
	}

	m.mu.Lock()
	t := m.guard.BeginKey("order:" + orderID)
	m.mu.Unlock()

	o, err := m.api.UpdateOrderStatus(ctx, orderID, st)
	if err != nil {
		m.notices.Notify(notice.Failure("Failed to update order status", err))
		return model.Order{}, err
	}
	if o.ID == "" {
		o.ID = orderID
	}

	m.mu.Lock()
	if m.guard.Valid(t) {
		for i := range m.orders.Items {
			if m.orders.Items[i].ID == orderID {
				m.orders.Items[i] = o
			}
		}
	} else {
		m.log.Debug("dropping superseded status response", zap.String("order", orderID))
	}
	m.mu.Unlock()
	m.notices.Notify(notice.Info("Order status updated!"))
	return o, nil
}

// Close marks the panel unmounted and discards the staged form; responses
// still in flight are ignored.
func (m *Manager) Close() {
	m.mu.Lock()
	m.guard.Close()
	m.draft = model.ProductDraft{}
	m.editID = ""
	m.mu.Unlock()
}

func (m *Manager) apply(t viewstate.Ticket, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.guard.Valid(t) {
		return
	}
	fn()
	m.draft = model.ProductDraft{}
	m.editID = ""
}

func replaceByID(items []model.Product, id string, p model.Product) []model.Product {
	out := make([]model.Product, len(items))
	copy(out, items)
	for i := range out {
		if out[i].ID == id {
			out[i] = p
		}
	}
	return out
}
