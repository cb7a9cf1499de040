package inventory

import (
	"context"
	"testing"

	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/infrastructure/store"
	"github.com/example/ec-shop/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() (*Ledger, *mocks.MockStore) {
	st := mocks.NewMockStore()
	return NewLedger(st), st
}

// ============================================
// Reserve Tests
// ============================================

func TestLedger_Reserve_Success(t *testing.T) {
	ledger, st := newTestLedger()
	st.AddProduct(&product.Product{ID: "prod-1", Name: "Jumper", Price: 4500, CountInStock: 10, Version: 7})

	res, err := ledger.Reserve(context.Background(), "prod-1", 3)

	require.NoError(t, err)
	assert.Equal(t, store.StockReservation{ProductID: "prod-1", Quantity: 3, ExpectedVersion: 7}, res)

	// Planning a reservation must not touch the counter.
	p, err := st.GetProduct(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.CountInStock)
	assert.Equal(t, 7, p.Version)
}

func TestLedger_Reserve_ExactStock(t *testing.T) {
	ledger, st := newTestLedger()
	st.AddProduct(&product.Product{ID: "prod-1", CountInStock: 3})

	res, err := ledger.Reserve(context.Background(), "prod-1", 3)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Quantity)
}

func TestLedger_Reserve_InsufficientStock(t *testing.T) {
	ledger, st := newTestLedger()
	st.AddProduct(&product.Product{ID: "prod-1", CountInStock: 2})

	_, err := ledger.Reserve(context.Background(), "prod-1", 5)

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "product prod-1 has 2 units, 5 requested")
}

func TestLedger_Reserve_ProductNotFound(t *testing.T) {
	ledger, _ := newTestLedger()

	_, err := ledger.Reserve(context.Background(), "missing", 1)

	assert.ErrorIs(t, err, product.ErrProductNotFound)
}

func TestLedger_Reserve_InvalidQuantity(t *testing.T) {
	ledger, st := newTestLedger()
	st.AddProduct(&product.Product{ID: "prod-1", CountInStock: 10})

	_, err := ledger.Reserve(context.Background(), "prod-1", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ledger.Reserve(context.Background(), "prod-1", -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// ============================================
// Release Tests
// ============================================

func TestLedger_Release(t *testing.T) {
	ledger, _ := newTestLedger()

	rel := ledger.Release("prod-1", 4)

	assert.Equal(t, store.StockRelease{ProductID: "prod-1", Quantity: 4}, rel)
}

func TestLedger_ReleaseAll(t *testing.T) {
	ledger, _ := newTestLedger()

	releases := ledger.ReleaseAll([]ItemQuantity{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 1},
	})

	require.Len(t, releases, 2)
	assert.Equal(t, store.StockRelease{ProductID: "prod-1", Quantity: 2}, releases[0])
	assert.Equal(t, store.StockRelease{ProductID: "prod-2", Quantity: 1}, releases[1])
}

func TestLedger_ReleaseAll_Empty(t *testing.T) {
	ledger, _ := newTestLedger()

	releases := ledger.ReleaseAll(nil)

	assert.Empty(t, releases)
}
