package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(productID string, qty int64, price int64) CartLine {
	p := decimal.NewFromInt(price)

	return CartLine{
		ProductID: productID,
		Quantity:  qty,
		Price:     p,
		Subtotal:  p.Mul(decimal.NewFromInt(qty)),
	}
}

func TestReconcileCarts_NilSides(t *testing.T) {
	now := time.Now()
	cart := &Cart{ID: "c1", Items: []CartLine{line("p1", 2, 10)}, UpdatedAt: now}

	assert.Same(t, cart, ReconcileCarts(nil, cart, now))
	assert.Same(t, cart, ReconcileCarts(cart, nil, now))
	assert.Nil(t, ReconcileCarts(nil, nil, now))
}

func TestReconcileCarts_ServerNewerWins(t *testing.T) {
	now := time.Now()

	server := &Cart{ID: "c1", Items: []CartLine{line("p1", 5, 10)}, UpdatedAt: now}
	local := &Cart{Items: []CartLine{line("p1", 1, 10)}, UpdatedAt: now.Add(-time.Minute)}

	got := ReconcileCarts(server, local, now)
	assert.Same(t, server, got)
}

// Equal timestamps must not merge: last-write-wins resolves ties in the
// server's favor.
func TestReconcileCarts_TieGoesToServer(t *testing.T) {
	now := time.Now()

	server := &Cart{ID: "c1", Items: []CartLine{line("p1", 5, 10)}, UpdatedAt: now}
	local := &Cart{Items: []CartLine{line("p1", 1, 10)}, UpdatedAt: now}

	assert.Same(t, server, ReconcileCarts(server, local, now))
}

func TestReconcileCarts_LocalNewerMerges(t *testing.T) {
	now := time.Now()

	server := &Cart{
		ID:         "c1",
		CustomerID: "cust-1",
		Items:      []CartLine{line("p1", 2, 10)},
		UpdatedAt:  now.Add(-time.Minute),
	}
	local := &Cart{
		Items:     []CartLine{line("p1", 3, 10), line("p2", 1, 25)},
		UpdatedAt: now,
	}

	got := ReconcileCarts(server, local, now)
	require.NotNil(t, got)
	require.Len(t, got.Items, 2)

	// Shared product quantities are summed, not replaced.
	assert.Equal(t, "p1", got.Items[0].ProductID)
	assert.Equal(t, int64(5), got.Items[0].Quantity)
	assert.True(t, got.Items[0].Subtotal.Equal(decimal.NewFromInt(50)), got.Items[0].Subtotal.String())

	assert.Equal(t, "p2", got.Items[1].ProductID)
	assert.Equal(t, int64(1), got.Items[1].Quantity)

	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "cust-1", got.CustomerID)
	assert.Equal(t, now, got.UpdatedAt)
}

func TestReconcileCarts_DoesNotMutateInputs(t *testing.T) {
	now := time.Now()

	server := &Cart{ID: "c1", Items: []CartLine{line("p1", 2, 10)}, UpdatedAt: now.Add(-time.Minute)}
	local := &Cart{Items: []CartLine{line("p1", 3, 10)}, UpdatedAt: now}

	_ = ReconcileCarts(server, local, now)

	assert.Equal(t, int64(2), server.Items[0].Quantity)
	assert.Equal(t, int64(3), local.Items[0].Quantity)
}
