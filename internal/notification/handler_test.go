package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/user"
	"github.com/example/ec-shop/internal/email"
	"github.com/example/ec-shop/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records sent mail.
type fakeSender struct {
	Confirmations []confirmation
	StatusUpdates []statusUpdate
}

type confirmation struct {
	To      string
	OrderID string
	Total   int
	Items   []email.OrderItem
}

type statusUpdate struct {
	To        string
	OrderID   string
	NewStatus string
}

func (f *fakeSender) SendOrderConfirmation(to, orderID string, total int, items []email.OrderItem) error {
	f.Confirmations = append(f.Confirmations, confirmation{To: to, OrderID: orderID, Total: total, Items: items})
	return nil
}

func (f *fakeSender) SendStatusUpdate(to, orderID, newStatus string) error {
	f.StatusUpdates = append(f.StatusUpdates, statusUpdate{To: to, OrderID: orderID, NewStatus: newStatus})
	return nil
}

func newTestNotifier() (*Handler, *fakeSender, *mocks.MockStore) {
	sender := &fakeSender{}
	st := mocks.NewMockStore()
	return NewHandler(sender, st), sender, st
}

func marshalEvent(t *testing.T, eventType, orderID string, data any) []byte {
	t.Helper()
	event, err := order.NewEvent(eventType, orderID, data)
	require.NoError(t, err)
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func TestHandler_HandleEvent_OrderCreated(t *testing.T) {
	handler, sender, st := newTestNotifier()
	st.AddUser(&user.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"})

	payload := marshalEvent(t, order.EventOrderCreated, "order-1", order.OrderCreated{
		OrderID: "order-1",
		UserID:  "user-1",
		Items: []order.Item{
			{ProductID: "prod-1", Quantity: 2, ProductPrice: 4500, ProductName: "Wool Jumper"},
		},
		TotalPrice: 9000,
		Status:     order.StatusPending,
		PlacedAt:   time.Now(),
	})

	err := handler.HandleEvent(context.Background(), []byte("order-1"), payload)

	require.NoError(t, err)
	require.Len(t, sender.Confirmations, 1)
	c := sender.Confirmations[0]
	assert.Equal(t, "ada@example.com", c.To)
	assert.Equal(t, "order-1", c.OrderID)
	assert.Equal(t, 9000, c.Total)
	require.Len(t, c.Items, 1)
	assert.Equal(t, email.OrderItem{Name: "Wool Jumper", Quantity: 2, Price: 4500}, c.Items[0])
}

func TestHandler_HandleEvent_StatusChanged(t *testing.T) {
	handler, sender, st := newTestNotifier()
	st.AddUser(&user.User{ID: "user-1", Email: "ada@example.com"})

	payload := marshalEvent(t, order.EventOrderStatusChanged, "order-1", order.OrderStatusChanged{
		OrderID: "order-1",
		UserID:  "user-1",
		From:    order.StatusProcessed,
		To:      order.StatusShipped,
	})

	err := handler.HandleEvent(context.Background(), nil, payload)

	require.NoError(t, err)
	require.Len(t, sender.StatusUpdates, 1)
	assert.Equal(t, statusUpdate{To: "ada@example.com", OrderID: "order-1", NewStatus: "shipped"}, sender.StatusUpdates[0])
}

func TestHandler_HandleEvent_Expired(t *testing.T) {
	handler, sender, st := newTestNotifier()
	st.AddUser(&user.User{ID: "user-1", Email: "ada@example.com"})

	payload := marshalEvent(t, order.EventOrderExpired, "order-1", order.OrderExpired{
		OrderID: "order-1",
		UserID:  "user-1",
	})

	err := handler.HandleEvent(context.Background(), nil, payload)

	require.NoError(t, err)
	require.Len(t, sender.StatusUpdates, 1)
	assert.Equal(t, "expired", sender.StatusUpdates[0].NewStatus)
}

func TestHandler_HandleEvent_UnknownRecipient(t *testing.T) {
	handler, sender, _ := newTestNotifier()

	payload := marshalEvent(t, order.EventOrderCreated, "order-1", order.OrderCreated{
		OrderID: "order-1",
		UserID:  "ghost",
	})

	err := handler.HandleEvent(context.Background(), nil, payload)

	// Missing recipients are logged and skipped; the message is consumed.
	require.NoError(t, err)
	assert.Empty(t, sender.Confirmations)
}

func TestHandler_HandleEvent_IgnoresUnknownEventTypes(t *testing.T) {
	handler, sender, _ := newTestNotifier()

	payload := marshalEvent(t, order.EventOrderCancelled, "order-1", order.OrderCancelled{
		OrderID: "order-1",
		UserID:  "user-1",
	})

	err := handler.HandleEvent(context.Background(), nil, payload)

	require.NoError(t, err)
	assert.Empty(t, sender.Confirmations)
	assert.Empty(t, sender.StatusUpdates)
}

func TestHandler_HandleEvent_MalformedEnvelope(t *testing.T) {
	handler, sender, _ := newTestNotifier()

	err := handler.HandleEvent(context.Background(), nil, []byte("{bad json"))

	assert.Error(t, err)
	assert.Empty(t, sender.Confirmations)
}
