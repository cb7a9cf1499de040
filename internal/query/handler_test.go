package query

import (
	"context"
	"testing"
	"time"

	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() (*Handler, *mocks.MockStore) {
	st := mocks.NewMockStore()
	return NewHandler(st), st
}

func TestHandler_GetOrder(t *testing.T) {
	handler, st := newTestHandler()
	st.AddOrder(&order.Order{ID: "order-1", UserID: "user-1", TotalPrice: 4500})

	o, err := handler.GetOrder(context.Background(), "order-1")

	require.NoError(t, err)
	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, 4500, o.TotalPrice)
}

func TestHandler_GetOrder_NotFound(t *testing.T) {
	handler, _ := newTestHandler()

	_, err := handler.GetOrder(context.Background(), "missing")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestHandler_ListOrdersByUser_NewestFirst(t *testing.T) {
	handler, st := newTestHandler()
	now := time.Now()
	st.AddOrder(&order.Order{ID: "order-old", UserID: "user-1", DateOrdered: now.Add(-2 * time.Hour)})
	st.AddOrder(&order.Order{ID: "order-new", UserID: "user-1", DateOrdered: now})
	st.AddOrder(&order.Order{ID: "order-other", UserID: "user-2", DateOrdered: now.Add(-time.Hour)})

	orders, err := handler.ListOrdersByUser(context.Background(), "user-1")

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "order-new", orders[0].ID)
	assert.Equal(t, "order-old", orders[1].ID)
}

func TestHandler_ListOrdersByUser_NoOrders(t *testing.T) {
	handler, _ := newTestHandler()

	orders, err := handler.ListOrdersByUser(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestHandler_ListOrders(t *testing.T) {
	handler, st := newTestHandler()
	now := time.Now()
	st.AddOrder(&order.Order{ID: "order-1", UserID: "user-1", DateOrdered: now.Add(-time.Hour)})
	st.AddOrder(&order.Order{ID: "order-2", UserID: "user-2", DateOrdered: now})

	orders, err := handler.ListOrders(context.Background())

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "order-2", orders[0].ID)
}

func TestHandler_CountOrders(t *testing.T) {
	handler, st := newTestHandler()
	st.AddOrder(&order.Order{ID: "order-1"})
	st.AddOrder(&order.Order{ID: "order-2"})

	count, err := handler.CountOrders(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandler_GetProduct(t *testing.T) {
	handler, st := newTestHandler()
	st.AddProduct(&product.Product{ID: "prod-1", Name: "Jumper", CountInStock: 4})

	p, err := handler.GetProduct(context.Background(), "prod-1")

	require.NoError(t, err)
	assert.Equal(t, "Jumper", p.Name)
	assert.Equal(t, 4, p.CountInStock)
}
