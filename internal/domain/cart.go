package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart holds a customer's pending items. Two instances exist per customer:
// the client-local copy and the server-persisted one; ReconcileCarts merges
// them. Line prices are display snapshots only and are never trusted at
// checkout.
type Cart struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customer_id"`
	Items      []CartLine `json:"items"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type CartLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// ReconcileCarts merges the client-local cart with the server-persisted one,
// last-write-wins by updated_at. When the local cart is strictly newer the
// two are merged: quantities for shared products are summed (not replaced)
// and local-only lines are appended. Otherwise the server cart stands and
// local changes are discarded. Pure function; persisting the result is the
// caller's job.
func ReconcileCarts(serverCart, localCart *Cart, now time.Time) *Cart {
	if serverCart == nil {
		return localCart
	}
	if localCart == nil {
		return serverCart
	}

	if !localCart.UpdatedAt.After(serverCart.UpdatedAt) {
		return serverCart
	}

	merged := &Cart{
		ID:         serverCart.ID,
		CustomerID: serverCart.CustomerID,
		Items:      make([]CartLine, len(serverCart.Items)),
		UpdatedAt:  now,
	}
	copy(merged.Items, serverCart.Items)

	index := make(map[string]int, len(merged.Items))
	for i, line := range merged.Items {
		index[line.ProductID] = i
	}

	for _, local := range localCart.Items {
		if i, ok := index[local.ProductID]; ok {
			line := &merged.Items[i]
			line.Quantity += local.Quantity
			line.Subtotal = line.Price.Mul(decimal.NewFromInt(line.Quantity))
			continue
		}

		merged.Items = append(merged.Items, local)
	}

	return merged
}
