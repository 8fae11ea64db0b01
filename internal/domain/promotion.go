package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

var (
	ErrInvalidDiscountType    = errors.New("discount type must be 'percentage' or 'fixed'")
	ErrPercentageOutOfRange   = errors.New("percentage discount must be between 0 and 100")
	ErrNegativeFixedDiscount  = errors.New("fixed discount must not be negative")
	ErrNoValidityCondition    = errors.New("promotion needs a date window or days_from_activation")
	ErrNonPositiveActivation  = errors.New("days_from_activation must be positive")
)

type Promotion struct {
	ID                 string          `db:"id"`
	Name               string          `db:"name"`
	Description        *string         `db:"description"`
	DiscountType       DiscountType    `db:"discount_type"`
	DiscountValue      decimal.Decimal `db:"discount_value"`
	ValidFrom          *time.Time      `db:"valid_from"`
	ValidUntil         *time.Time      `db:"valid_until"`
	DaysFromActivation *int            `db:"days_from_activation"`
	IsActive           bool            `db:"is_active"`
	IsManuallyDisabled bool            `db:"is_manually_disabled"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// Validate enforces the creation-time rules: a sane discount value and at
// least one validity condition. A promotion with no date window and no
// activation window would never be eligible and is rejected outright.
func (p *Promotion) Validate() error {
	switch p.DiscountType {
	case DiscountPercentage:
		if p.DiscountValue.IsNegative() || p.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
			return ErrPercentageOutOfRange
		}
	case DiscountFixed:
		if p.DiscountValue.IsNegative() {
			return ErrNegativeFixedDiscount
		}
	default:
		return ErrInvalidDiscountType
	}

	if p.ValidFrom == nil && p.ValidUntil == nil && p.DaysFromActivation == nil {
		return ErrNoValidityCondition
	}

	if p.DaysFromActivation != nil && *p.DaysFromActivation <= 0 {
		return ErrNonPositiveActivation
	}

	return nil
}

// Assignment links a promotion to a product. ActivatedAt anchors the
// days_from_activation window.
type Assignment struct {
	ID          int64      `db:"id"`
	PromotionID string     `db:"promotion_id"`
	ProductID   string     `db:"product_id"`
	ActivatedAt time.Time  `db:"activated_at"`
	Promotion   *Promotion `db:"-"`
}

// EligibleAt reports whether this assignment's promotion applies at now.
//
// NOTE on the OR: when a promotion carries both a date window and a
// days_from_activation window, satisfying EITHER one makes it eligible.
// Most systems would require both; this system deliberately does not, and
// that behavior is load-bearing for existing promotions. Do not "fix" the
// OR into an AND without the owner's sign-off.
func (a *Assignment) EligibleAt(now time.Time) bool {
	p := a.Promotion
	if p == nil {
		return false
	}

	if !p.IsActive || p.IsManuallyDisabled {
		return false
	}

	hasWindow := p.ValidFrom != nil || p.ValidUntil != nil
	hasActivation := p.DaysFromActivation != nil

	windowOK := hasWindow &&
		(p.ValidFrom == nil || !now.Before(*p.ValidFrom)) &&
		(p.ValidUntil == nil || !now.After(*p.ValidUntil))

	activationOK := hasActivation &&
		!now.After(a.ActivatedAt.AddDate(0, 0, *p.DaysFromActivation))

	return windowOK || activationOK
}

// EffectiveAssignment picks the assignment whose promotion applies at now.
// The single-eligible-promotion invariant is only enforced when assignments
// are created, so a later edit to a promotion's window can leave a product
// with two eligible assignments. The read path must not fail on that: pick
// the lowest assignment id so every reader agrees.
func EffectiveAssignment(assignments []Assignment, now time.Time) *Assignment {
	var winner *Assignment
	for i := range assignments {
		a := &assignments[i]
		if !a.EligibleAt(now) {
			continue
		}

		if winner == nil || a.ID < winner.ID {
			winner = a
		}
	}

	return winner
}

// ApplyDiscount applies a discount to a base price, floored at zero.
func ApplyDiscount(base decimal.Decimal, kind DiscountType, value decimal.Decimal) decimal.Decimal {
	var discounted decimal.Decimal

	switch kind {
	case DiscountPercentage:
		discount := base.Mul(value).Div(decimal.NewFromInt(100))
		discounted = base.Sub(discount)
	case DiscountFixed:
		discounted = base.Sub(value)
	default:
		return base
	}

	if discounted.IsNegative() {
		return decimal.Zero
	}

	return discounted
}

// PriceWithPromotion resolves a product's unit price at now: the base price
// (wholesale-aware), with the effective promotion's discount applied on top.
func PriceWithPromotion(p *Product, assignments []Assignment, wholesale bool, now time.Time) PricedProduct {
	base, basis := p.BasePrice(wholesale)

	priced := PricedProduct{
		Product:   *p,
		Basis:     basis,
		UnitPrice: base,
	}

	a := EffectiveAssignment(assignments, now)
	if a == nil || a.Promotion == nil {
		return priced
	}

	priced.UnitPrice = ApplyDiscount(base, a.Promotion.DiscountType, a.Promotion.DiscountValue)

	// Wholesale pricing suppresses the compare-at display path.
	if basis == BasisList {
		compareAt := base
		priced.CompareAt = &compareAt
	}

	return priced
}
