// Package cart keeps the local cart view consistent with the backend.
//
// Local state only changes after the backend acknowledged a mutation; a
// failed request leaves the visible cart exactly as it was. Mutations on the
// same product are serialized so the quantity floor is always checked
// against confirmed state, and responses that arrive after a reload, an
// order placement or Close are dropped.
package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"teakspice-storefront/internal/apperr"
	"teakspice-storefront/internal/model"
	"teakspice-storefront/internal/notice"
	"teakspice-storefront/internal/router"
	"teakspice-storefront/internal/viewstate"
)

// ErrClosed is returned for mutations on a view that was closed.
var ErrClosed = errors.New("cart view closed")

type Backend interface {
	ViewCart(ctx context.Context) ([]model.CartLine, error)
	AddToCart(ctx context.Context, productID string, quantity int) error
	UpdateCartLine(ctx context.Context, productID string, change int) error
	RemoveCartLine(ctx context.Context, productID string) error
	CreateOrder(ctx context.Context, lines []model.CartLine) error
}

type Synchronizer struct {
	api     Backend
	notices notice.Sink
	log     *zap.Logger
	perLine viewstate.KeyedMutex

	mu     sync.Mutex
	guard  viewstate.Guard
	lines  []model.CartLine
	total  decimal.Decimal
	loaded bool
}

func New(api Backend, notices notice.Sink, log *zap.Logger) *Synchronizer {
	if notices == nil {
		notices = notice.Discard
	}
	if log == nil {
		log = zap.L()
	}
	return &Synchronizer{api: api, notices: notices, log: log.Named("cart")}
}

// Load fetches the whole cart and replaces local state with it.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	s.guard.Open()
	t := s.guard.BeginKey("load")
	s.mu.Unlock()

	lines, err := s.api.ViewCart(ctx)
	if err != nil {
		s.log.Warn("cart fetch failed", zap.Error(err))
		s.notices.Notify(notice.Failure("Failed to load cart", err))
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.guard.Valid(t) {
		s.log.Debug("dropping stale cart load")
		return nil
	}
	// The fresh snapshot supersedes any mutation still in flight.
	s.guard.Reset()
	s.lines = append([]model.CartLine(nil), lines...)
	s.total = Total(s.lines)
	s.loaded = true
	return nil
}

// ChangeQuantity moves a line's quantity by delta, which must be +1 or -1.
// A change that would leave the line below one is refused without a request.
func (s *Synchronizer) ChangeQuantity(ctx context.Context, productID string, delta int) error {
	const op = "cart.update"
	if delta != 1 && delta != -1 {
		return s.reject(apperr.Validation(op, "quantity changes by one at a time"), "Failed to update quantity")
	}

	unlock, err := s.perLine.Lock(ctx, productID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	if s.guard.Closed() {
		s.mu.Unlock()
		return ErrClosed
	}
	line, ok := find(s.lines, productID)
	if !ok {
		s.mu.Unlock()
		return s.reject(apperr.NotFound(op, "item is not in the cart"), "Item is no longer in your cart")
	}
	if line.Quantity+delta < 1 {
		s.mu.Unlock()
		return s.reject(apperr.Validation(op, "quantity cannot go below 1"), "Quantity cannot be less than 1")
	}
	t := s.guard.Begin()
	s.mu.Unlock()

	if err := s.api.UpdateCartLine(ctx, productID, delta); err != nil {
		s.notices.Notify(notice.Failure("Failed to update quantity", err))
		return err
	}
	s.commit(t, func(lines []model.CartLine) []model.CartLine {
		return applyDelta(lines, productID, delta)
	})
	return nil
}

// Remove deletes a line.
func (s *Synchronizer) Remove(ctx context.Context, productID string) error {
	unlock, err := s.perLine.Lock(ctx, productID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	if s.guard.Closed() {
		s.mu.Unlock()
		return ErrClosed
	}
	t := s.guard.Begin()
	s.mu.Unlock()

	if err := s.api.RemoveCartLine(ctx, productID); err != nil {
		s.notices.Notify(notice.Failure("Failed to remove item from cart", err))
		return err
	}
	s.commit(t, func(lines []model.CartLine) []model.CartLine {
		return removeLine(lines, productID)
	})
	return nil
}

// Add puts quantity units of p in the cart.
func (s *Synchronizer) Add(ctx context.Context, p model.Product, quantity int) error {
	const op = "cart.add"
	if p.ID == "" || quantity < 1 {
		return s.reject(apperr.Validation(op, "a product and a positive quantity are required"), "Error adding to cart!")
	}

	unlock, err := s.perLine.Lock(ctx, p.ID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	t := s.guard.Begin()
	s.mu.Unlock()

	if err := s.api.AddToCart(ctx, p.ID, quantity); err != nil {
		s.notices.Notify(notice.Failure("Error adding to cart!", err))
		return err
	}
	s.commit(t, func(lines []model.CartLine) []model.CartLine {
		return mergeLine(lines, p, quantity)
	})
	return nil
}

// PlaceOrder submits the current lines as an order. On success the cart is
// emptied and the orders view is returned as the next destination.
func (s *Synchronizer) PlaceOrder(ctx context.Context) (router.View, error) {
	s.mu.Lock()
	if len(s.lines) == 0 {
		s.mu.Unlock()
		return "", s.reject(apperr.Validation("cart.order", "cart is empty"), "Your cart is empty")
	}
	snapshot := append([]model.CartLine(nil), s.lines...)
	s.mu.Unlock()

	if err := s.api.CreateOrder(ctx, snapshot); err != nil {
		s.notices.Notify(notice.Failure("Failed to place order", err))
		return "", err
	}

	s.mu.Lock()
	s.guard.Reset()
	s.lines = nil
	s.total = decimal.Zero
	s.mu.Unlock()

	s.log.Info("order placed", zap.Int("lines", len(snapshot)))
	s.notices.Notify(notice.Info("Order placed successfully"))
	return router.ViewOrders, nil
}

// Close marks the view unmounted and drops its snapshot; responses still in
// flight are ignored.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.guard.Close()
	s.lines = nil
	s.total = decimal.Zero
	s.loaded = false
	s.mu.Unlock()
}

// Lines returns a copy of the visible cart.
func (s *Synchronizer) Lines() []model.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CartLine(nil), s.lines...)
}

func (s *Synchronizer) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Loaded reports whether a cart snapshot has been fetched.
func (s *Synchronizer) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Ready reports whether the view holds a snapshot and is still mounted.
func (s *Synchronizer) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded && !s.guard.Closed()
}

// Quantity returns the visible quantity for a product.
func (s *Synchronizer) Quantity(productID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := find(s.lines, productID)
	return l.Quantity, ok
}

func (s *Synchronizer) commit(t viewstate.Ticket, reduce func([]model.CartLine) []model.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.guard.Valid(t) {
		s.log.Debug("dropping stale cart response")
		return
	}
	s.lines = reduce(s.lines)
	s.total = Total(s.lines)
}

func (s *Synchronizer) reject(err *apperr.Error, msg string) error {
	s.notices.Notify(notice.Failure(msg, err))
	return err
}
