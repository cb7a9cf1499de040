package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/domain/user"
	"github.com/example/ec-shop/internal/infrastructure/store"
)

// MockStore is an in-memory implementation of store.Store for testing. It
// enforces the same version semantics as the real backends (CAS on product
// and order versions under a mutex), so conflict and concurrency paths are
// exercised for real, and records calls for assertions.
type MockStore struct {
	mu           sync.Mutex
	Users        map[string]*user.User
	Products     map[string]*product.Product
	CartProducts map[string]*cart.CartProduct
	Orders       map[string]*order.Order

	// Call recording
	CommitCalls []store.OrderCommit
	CloseCalls  []CloseCall

	// Error/callback injection
	CommitErr      error
	CommitCallback func(commit store.OrderCommit) error
}

// CloseCall records parameters passed to CloseOrder.
type CloseCall struct {
	OrderID  string
	Status   order.Status
	Releases []store.StockRelease
}

func NewMockStore() *MockStore {
	return &MockStore{
		Users:        make(map[string]*user.User),
		Products:     make(map[string]*product.Product),
		CartProducts: make(map[string]*cart.CartProduct),
		Orders:       make(map[string]*order.Order),
	}
}

// AddUser seeds a user.
func (m *MockStore) AddUser(u *user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users[u.ID] = u
}

// AddProduct seeds a product.
func (m *MockStore) AddProduct(p *product.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Products[p.ID] = p
}

// AddCartProduct seeds a cart entry.
func (m *MockStore) AddCartProduct(cp *cart.CartProduct) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CartProducts[cp.ID] = cp
}

// AddOrder seeds an order.
func (m *MockStore) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders[o.ID] = cloneOrder(o)
}

func (m *MockStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockStore) GetCartProduct(ctx context.Context, id string) (*cart.CartProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.CartProducts[id]
	if !ok {
		return nil, cart.ErrCartProductNotFound
	}
	c := *cp
	return &c, nil
}

// CommitOrder applies the commit atomically under the mutex, with real
// version checks: any mismatch leaves the store untouched and returns
// store.ErrVersionConflict, like the SQL/Dynamo implementations.
func (m *MockStore) CommitOrder(ctx context.Context, commit store.OrderCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CommitCalls = append(m.CommitCalls, commit)

	if m.CommitCallback != nil {
		if err := m.CommitCallback(commit); err != nil {
			return err
		}
	}
	if m.CommitErr != nil {
		return m.CommitErr
	}

	// Apply reservations one at a time against staged copies, checking and
	// bumping the version per decrement exactly like the SQL transaction
	// does; a failed check rolls the whole commit back by discarding the
	// stage. Two reservations for one product with the same expected version
	// therefore conflict here too.
	staged := make(map[string]*product.Product)
	for _, r := range commit.Reservations {
		p, ok := staged[r.ProductID]
		if !ok {
			orig, exists := m.Products[r.ProductID]
			if !exists {
				return product.ErrProductNotFound
			}
			cp := *orig
			p = &cp
			staged[r.ProductID] = p
		}
		if p.Version != r.ExpectedVersion {
			return fmt.Errorf("reserving stock for product %s: %w", r.ProductID, store.ErrVersionConflict)
		}
		p.CountInStock -= r.Quantity
		p.Version++
	}

	for id, p := range staged {
		m.Products[id] = p
	}
	m.Orders[commit.Order.ID] = cloneOrder(commit.Order)
	for _, id := range commit.RemoveCartProductIDs {
		delete(m.CartProducts, id)
	}
	return nil
}

func (m *MockStore) UpdateOrderStatus(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.Orders[o.ID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if stored.Version != o.Version {
		return fmt.Errorf("updating order %s: %w", o.ID, store.ErrVersionConflict)
	}
	o.Version++
	m.Orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MockStore) CloseOrder(ctx context.Context, o *order.Order, releases []store.StockRelease) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls = append(m.CloseCalls, CloseCall{OrderID: o.ID, Status: o.Status, Releases: releases})

	stored, ok := m.Orders[o.ID]
	if !ok {
		return order.ErrOrderNotFound
	}
	if stored.Version != o.Version {
		return fmt.Errorf("closing order %s: %w", o.ID, store.ErrVersionConflict)
	}

	for _, r := range releases {
		if p, ok := m.Products[r.ProductID]; ok {
			p.CountInStock += r.Quantity
			p.Version++
		}
	}
	o.Version++
	m.Orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MockStore) DeleteOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Orders[id]; !ok {
		return order.ErrOrderNotFound
	}
	delete(m.Orders, id)
	return nil
}

func (m *MockStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *MockStore) ListOrders(ctx context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []order.Order
	for _, o := range m.Orders {
		orders = append(orders, *cloneOrder(o))
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (m *MockStore) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []order.Order
	for _, o := range m.Orders {
		if o.UserID == userID {
			orders = append(orders, *cloneOrder(o))
		}
	}
	sortNewestFirst(orders)
	return orders, nil
}

func (m *MockStore) CountOrders(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders), nil
}

func (m *MockStore) ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []order.Order
	for _, o := range m.Orders {
		if o.Status == order.StatusPending && o.DateOrdered.Before(cutoff) {
			orders = append(orders, *cloneOrder(o))
		}
	}
	return orders, nil
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.Item(nil), o.Items...)
	cp.StatusHistory = append([]order.Status(nil), o.StatusHistory...)
	return &cp
}

func sortNewestFirst(orders []order.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].DateOrdered.After(orders[j].DateOrdered)
	})
}
