package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/example/ec-shop/internal/command"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrderCreator records CreateOrder calls and returns a canned order.
type fakeOrderCreator struct {
	Calls []command.CreateOrder
	Err   error
}

func (f *fakeOrderCreator) CreateOrder(ctx context.Context, cmd command.CreateOrder) (*order.Order, error) {
	f.Calls = append(f.Calls, cmd)
	if f.Err != nil {
		return nil, f.Err
	}
	return &order.Order{ID: "order-1", UserID: cmd.UserID, Status: cmd.InitialStatus}, nil
}

func TestListener_HandleEvent_CreatesProcessedOrder(t *testing.T) {
	creator := &fakeOrderCreator{}
	listener := NewListener(creator)

	payload, err := json.Marshal(Completed{
		Type:   EventPaymentCompleted,
		UserID: "user-1",
		Items: []order.LineItem{
			{ProductID: "prod-1", Quantity: 2, CartProductID: "cart-1"},
		},
		Shipping: order.Shipping{Address1: "1 High St", City: "Leeds"},
	})
	require.NoError(t, err)

	err = listener.HandleEvent(context.Background(), []byte("user-1"), payload)

	require.NoError(t, err)
	require.Len(t, creator.Calls, 1)
	cmd := creator.Calls[0]
	assert.Equal(t, "user-1", cmd.UserID)
	assert.Equal(t, order.StatusProcessed, cmd.InitialStatus)
	require.Len(t, cmd.Items, 1)
	assert.Equal(t, "cart-1", cmd.Items[0].CartProductID)
	assert.Equal(t, "Leeds", cmd.Shipping.City)
}

func TestListener_HandleEvent_IgnoresForeignEventTypes(t *testing.T) {
	creator := &fakeOrderCreator{}
	listener := NewListener(creator)

	payload, err := json.Marshal(Completed{Type: "payment.refunded", UserID: "user-1"})
	require.NoError(t, err)

	err = listener.HandleEvent(context.Background(), nil, payload)

	require.NoError(t, err)
	assert.Empty(t, creator.Calls)
}

func TestListener_HandleEvent_SkipsMalformedPayload(t *testing.T) {
	creator := &fakeOrderCreator{}
	listener := NewListener(creator)

	err := listener.HandleEvent(context.Background(), nil, []byte("{not json"))

	require.NoError(t, err)
	assert.Empty(t, creator.Calls)
}

func TestListener_HandleEvent_PropagatesCreateFailure(t *testing.T) {
	boom := errors.New("order conflict, please try again later")
	creator := &fakeOrderCreator{Err: boom}
	listener := NewListener(creator)

	payload, err := json.Marshal(Completed{
		Type:   EventPaymentCompleted,
		UserID: "user-1",
		Items:  []order.LineItem{{ProductID: "prod-1", Quantity: 1}},
	})
	require.NoError(t, err)

	err = listener.HandleEvent(context.Background(), nil, payload)

	assert.ErrorIs(t, err, boom)
}
