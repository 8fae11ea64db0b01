package domain

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	// OrderStatusPendingPayment is the only status checkout ever produces.
	// All later transitions belong to the fulfillment workflow.
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// CustomerSnapshot is copied onto the order at commit time so the order
// remains a faithful record even if the customer account changes later.
type CustomerSnapshot struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   *string `json:"phone,omitempty"`
	Company *string `json:"company,omitempty"`
	TaxID   *string `json:"tax_id,omitempty"`
}

type AddressSnapshot struct {
	Street   string `json:"street"`
	City     string `json:"city"`
	Province string `json:"province"`
	ZipCode  string `json:"zip_code"`
	Country  string `json:"country"`
}

type Order struct {
	ID              string           `db:"id"`
	OrderNumber     string           `db:"order_number"`
	Customer        CustomerSnapshot `db:"-"`
	ShippingAddress AddressSnapshot  `db:"-"`
	Subtotal        decimal.Decimal  `db:"subtotal"`
	Tax             decimal.Decimal  `db:"tax"`
	Shipping        decimal.Decimal  `db:"shipping"`
	Total           decimal.Decimal  `db:"total"`
	Status          OrderStatus      `db:"status"`
	PaymentMethod   string           `db:"payment_method"`
	ShippingMethod  string           `db:"shipping_method"`
	Notes           *string          `db:"notes"`
	Items           []OrderItem      `db:"-"`
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
}

// OrderItem snapshots sku and name so the order survives product renames
// and deletions. UnitPrice is always the price resolved from the catalog at
// commit time, never a client value.
type OrderItem struct {
	ID          int64           `db:"id"`
	OrderID     string          `db:"order_id"`
	ProductID   string          `db:"product_id"`
	ProductSKU  string          `db:"product_sku"`
	ProductName string          `db:"product_name"`
	Quantity    int64           `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	Subtotal    decimal.Decimal `db:"subtotal"`
}

// NewOrderNumber builds a human-facing order number: PREFIX-YYYYMMDD-NNNNN
// with a random 5-digit suffix. The suffix alone does not guarantee
// uniqueness; the orders table enforces it and checkout regenerates on a
// collision.
func NewOrderNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, now.Format("20060102"), 10000+rand.IntN(90000))
}

// ComputeTotals derives tax and total from an already-rounded subtotal.
func ComputeTotals(subtotal, shipping, taxRate decimal.Decimal) (tax, total decimal.Decimal) {
	tax = Round2(subtotal.Mul(taxRate))
	total = Round2(subtotal.Add(tax).Add(shipping))

	return tax, total
}
