package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBasis says which authoritative price a product was resolved against.
// Wholesale pricing and promotion compare-at display are mutually exclusive:
// when a wholesale price applies, the discount badge is suppressed.
type PriceBasis string

const (
	BasisList      PriceBasis = "list"
	BasisWholesale PriceBasis = "wholesale"
)

type Product struct {
	ID             string           `db:"id"`
	SKU            string           `db:"sku"`
	Name           string           `db:"name"`
	Price          decimal.Decimal  `db:"price"`
	WholesalePrice *decimal.Decimal `db:"wholesale_price"`
	IsActive       bool             `db:"is_active"`
	Stock          int64            `db:"stock"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

// BasePrice resolves the price the rest of the pricing pipeline works from.
// Resolved exactly once per product read so display and checkout can never
// disagree on which price is authoritative.
func (p *Product) BasePrice(wholesale bool) (decimal.Decimal, PriceBasis) {
	if wholesale && p.WholesalePrice != nil && p.WholesalePrice.IsPositive() {
		return *p.WholesalePrice, BasisWholesale
	}

	return p.Price, BasisList
}

// PricedProduct is the read-side view of a product with its current
// promotion (if any) already applied.
type PricedProduct struct {
	Product   Product          `json:"product"`
	Basis     PriceBasis       `json:"price_basis"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	// CompareAt carries the pre-discount price for display. Nil when no
	// promotion applies or when the wholesale basis suppresses it.
	CompareAt *decimal.Decimal `json:"compare_at,omitempty"`
}
