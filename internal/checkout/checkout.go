// Package checkout turns a customer's pending orders into one payment.
package checkout

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/notice"
	"teakspice-storefront/internal/router"
	"teakspice-storefront/internal/viewstate"
)

type Backend interface {
	MyOrders(ctx context.Context) ([]model.Order, error)
	Checkout(ctx context.Context, req model.CheckoutRequest) (string, error)
	MarkOrderPaid(ctx context.Context) error
}

type Flow struct {
	api     Backend
	notices notice.Sink
	log     *zap.Logger

	mu       sync.Mutex
	guard    viewstate.Guard
	orders   []model.Order
	selected map[string]struct{}
	loaded   bool
}

func New(api Backend, notices notice.Sink, log *zap.Logger) *Flow {
	if notices == nil {
		notices = notice.Discard
	}
	if log == nil {
		log = zap.L()
	}
	return &Flow{
		api:      api,
		notices:  notices,
		log:      log.Named("checkout"),
		selected: make(map[string]struct{}),
	}
}

// Load fetches the customer's orders. Totals are taken from the backend as
// is. Selected ids that are gone or no longer pending are dropped.
func (f *Flow) Load(ctx context.Context) error {
	f.mu.Lock()
	f.guard.Open()
	t := f.guard.BeginKey("load")
	f.mu.Unlock()

	orders, err := f.api.MyOrders(ctx)
	if err != nil {
		f.log.Warn("orders fetch failed", zap.Error(err))
		f.notices.Notify(notice.Failure("Failed to load orders", err))
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.guard.Valid(t) {
		return nil
	}
	f.orders = append([]model.Order(nil), orders...)
	f.loaded = true
	for id := range f.selected {
		if o, ok := f.find(id); !ok || !o.Pending() {
			delete(f.selected, id)
		}
	}
	return nil
}

func (f *Flow) Orders() []model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Order(nil), f.orders...)
}

func (f *Flow) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *Flow) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded && !f.guard.Closed()
}

// HasPending reports whether any order can still be paid.
func (f *Flow) HasPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.Pending() {
			return true
		}
	}
	return false
}

// Selectable reports whether the order exists and is pending.
func (f *Flow) Selectable(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.find(id)
	return ok && o.Pending()
}

// Select marks a pending order for payment.
func (f *Flow) Select(id string) error {
	f.mu.Lock()
	o, ok := f.find(id)
	if ok && o.Pending() {
		f.selected[id] = struct{}{}
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	if !ok {
		return apperr.NotFound("checkout.select", "no such order")
	}
	err := apperr.Validation("checkout.select", "only pending orders can be paid")
	f.notices.Notify(notice.Failure("Only pending orders can be paid", err))
	return err
}

func (f *Flow) Deselect(id string) {
	f.mu.Lock()
	delete(f.selected, id)
	f.mu.Unlock()
}

// Toggle flips the selection of id and reports whether it ends up selected.
func (f *Flow) Toggle(id string) (bool, error) {
	f.mu.Lock()
	_, on := f.selected[id]
	f.mu.Unlock()
	if on {
		f.Deselect(id)
		return false, nil
	}
	if err := f.Select(id); err != nil {
		return false, err
	}
	return true, nil
}

// SelectAllPending selects every pending order.
func (f *Flow) SelectAllPending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.orders {
		if o.Pending() {
			f.selected[o.ID] = struct{}{}
			n++
		}
	}
	return n
}

// Selected returns the selected orders in load order.
func (f *Flow) Selected() []model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectedLocked()
}

// SelectedIDs returns the selected ids sorted.
func (f *Flow) SelectedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.selected))
	for id := range f.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Amount is the sum of the selected orders' totals.
func (f *Flow) Amount() decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Aggregate(f.selectedLocked()).Amount
}

// Aggregate combines orders into one checkout request.
func Aggregate(orders []model.Order) model.CheckoutRequest {
	req := model.CheckoutRequest{Items: []model.CartLine{}, Amount: decimal.Zero}
	for _, o := range orders {
		req.Items = append(req.Items, o.Lines...)
		req.Amount = req.Amount.Add(o.TotalPrice)
	}
	return req
}

// ProceedToPayment submits the selection and returns the payment provider
// URL the caller must navigate to.
func (f *Flow) ProceedToPayment(ctx context.Context) (string, error) {
	f.mu.Lock()
	orders := f.selectedLocked()
	f.mu.Unlock()

	if len(orders) == 0 {
		err := apperr.Validation("checkout.pay", "no order selected")
		f.notices.Notify(notice.Failure("Select at least one pending order", err))
		return "", err
	}

	req := Aggregate(orders)
	url, err := f.api.Checkout(ctx, req)
	if err != nil {
		f.notices.Notify(notice.Failure("Failed to proceed to payment", err))
		return "", err
	}
	f.log.Info("payment handoff",
		zap.Int("orders", len(orders)),
		zap.String("amount", req.Amount.String()),
	)
	return url, nil
}

// ConfirmPayment tells the backend the provider reported success and sends
// the customer back to the orders view.
func (f *Flow) ConfirmPayment(ctx context.Context) (router.View, error) {
	if err := f.api.MarkOrderPaid(ctx); err != nil {
		f.log.Warn("marking orders paid failed", zap.Error(err))
		f.notices.Notify(notice.Failure("Could not confirm payment", err))
		return "", err
	}
	f.mu.Lock()
	f.selected = make(map[string]struct{})
	f.mu.Unlock()
	f.notices.Notify(notice.Info("Payment Successful!"))
	return router.ViewOrders, nil
}

// Close marks the view unmounted and forgets the selection.
func (f *Flow) Close() {
	f.mu.Lock()
	f.guard.Close()
	f.selected = make(map[string]struct{})
	f.mu.Unlock()
}

func (f *Flow) find(id string) (model.Order, bool) {
	for _, o := range f.orders {
		if o.ID == id {
			return o, true
		}
	}
	return model.Order{}, false
}

func (f *Flow) selectedLocked() []model.Order {
	var out []model.Order
	for _, o := range f.orders {
		if _, ok := f.selected[o.ID]; ok && o.Pending() {
			out = append(out, o)
		}
	}
	return out
}
