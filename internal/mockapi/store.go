package mockapi

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Store is the persistence behind the mock backend. Lookups that miss return
// ErrNotFound; a user registered twice returns ErrDuplicate.
type Store interface {
	InsertUser(ctx context.Context, u *User) error
	UserByEmail(ctx context.Context, email string) (User, error)

	Products(ctx context.Context) ([]Product, error)
	Product(ctx context.Context, id primitive.ObjectID) (Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id primitive.ObjectID) error
	AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error

	Cart(ctx context.Context, userID primitive.ObjectID) (Cart, error)
	SaveCart(ctx context.Context, c Cart) error

	InsertOrder(ctx context.Context, o *Order) error
	// Orders lists orders oldest first; a zero userID lists every order.
	Orders(ctx context.Context, userID primitive.ObjectID) ([]Order, error)
	SetOrderStatus(ctx context.Context, id primitive.ObjectID, status string) (Order, error)
	ConfirmPending(ctx context.Context, userID primitive.ObjectID) (int, error)

	Close(ctx context.Context) error
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	users    []User
	products []Product
	carts    map[primitive.ObjectID]Cart
	orders   []Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[primitive.ObjectID]Cart)}
}

func (m *MemoryStore) InsertUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users = append(m.users, *u)
	return nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemoryStore) Products(context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.products), nil
}

func (m *MemoryStore) Product(_ context.Context, id primitive.ObjectID) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.productIndex(id); i >= 0 {
		return m.products[i], nil
	}
	return Product{}, ErrNotFound
}

func (m *MemoryStore) InsertProduct(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.products = append(m.products, *p)
	return nil
}

func (m *MemoryStore) UpdateProduct(_ context.Context, p Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.productIndex(p.ID)
	if i < 0 {
		return ErrNotFound
	}
	m.products[i] = p
	return nil
}

func (m *MemoryStore) DeleteProduct(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.productIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.products = slices.Delete(m.products, i, i+1)
	return nil
}

func (m *MemoryStore) AdjustStock(_ context.Context, id primitive.ObjectID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.productIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.products[i].Stock += delta
	return nil
}

func (m *MemoryStore) Cart(_ context.Context, userID primitive.ObjectID) (Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[userID]
	if !ok {
		return Cart{UserID: userID, Items: []CartItem{}}, nil
	}
	c.Items = slices.Clone(c.Items)
	return c, nil
}

func (m *MemoryStore) SaveCart(_ context.Context, c Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Items = slices.Clone(c.Items)
	m.carts[c.UserID] = c
	return nil
}

func (m *MemoryStore) InsertOrder(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	m.orders = append(m.orders, *o)
	return nil
}

func (m *MemoryStore) Orders(_ context.Context, userID primitive.ObjectID) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Order{}
	for _, o := range m.orders {
		if userID.IsZero() || o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *MemoryStore) SetOrderStatus(_ context.Context, id primitive.ObjectID, status string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = status
			return m.orders[i], nil
		}
	}
	return Order{}, ErrNotFound
}

func (m *MemoryStore) ConfirmPending(_ context.Context, userID primitive.ObjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i := range m.orders {
		if m.orders[i].UserID == userID && m.orders[i].Status == StatusPending {
			m.orders[i].Status = StatusConfirmed
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

func (m *MemoryStore) productIndex(id primitive.ObjectID) int {
	return slices.IndexFunc(m.products, func(p Product) bool { return p.ID == id })
}
