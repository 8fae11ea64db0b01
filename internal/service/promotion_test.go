package service_test

import (
	"time"

	"github.com/pdcisneros1/edesa-b2b-sub000/internal/service"
	"github.com/shopspring/decimal"
)

func intPtr(i int) *int { return &i }

func (s *IntegrationTestSuite) TestCreatePromotion() {
	promotion, err := s.Promotions.Create(s.Ctx, &service.PromotionInput{
		Name:               "Black Friday",
		DiscountType:       "percentage",
		DiscountValue:      decimal.NewFromInt(20),
		DaysFromActivation: intPtr(7),
		IsActive:           true,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(promotion.ID)

	stored, err := s.Promotions.Get(s.Ctx, promotion.ID)
	s.Require().NoError(err)
	s.Equal("Black Friday", stored.Name)
	s.True(stored.DiscountValue.Equal(decimal.NewFromInt(20)))
}

func (s *IntegrationTestSuite) TestCreatePromotion_InvalidRejected() {
	cases := []*service.PromotionInput{
		{Name: "x", DiscountType: "percentage", DiscountValue: decimal.NewFromInt(150), DaysFromActivation: intPtr(7)},
		{Name: "x", DiscountType: "fixed", DiscountValue: decimal.NewFromInt(-1), DaysFromActivation: intPtr(7)},
		{Name: "x", DiscountType: "percentage", DiscountValue: decimal.NewFromInt(10)},
		{Name: "x", DiscountType: "loyalty", DiscountValue: decimal.NewFromInt(10), DaysFromActivation: intPtr(7)},
	}

	for _, input := range cases {
		_, err := s.Promotions.Create(s.Ctx, input)

		var verr *service.ValidationError
		s.Require().ErrorAs(err, &verr, "input %+v", input)
	}

	s.Equal(0, s.countRows("promotions"))
}

// A product already carrying a currently eligible promotion rejects the
// whole batch, including products that had no conflict.
func (s *IntegrationTestSuite) TestAssignProducts_ConflictRejectsWholeBatch() {
	blocked := s.seedProduct("SKU-100", 10, 5)
	clean := s.seedProduct("SKU-101", 10, 5)

	existing := s.seedPromotion("Running Promo", 10, 30)
	s.assignPromotion(existing, blocked, time.Now().AddDate(0, 0, -1))

	newPromo := s.seedPromotion("New Promo", 15, 30)

	_, err := s.Promotions.AssignProducts(s.Ctx, newPromo, []string{clean, blocked})

	var conflict *service.PromotionConflictError
	s.Require().ErrorAs(err, &conflict)
	s.Equal("Product SKU-100", conflict.ProductName)
	s.Equal("SKU-100", conflict.ProductSKU)
	s.Equal("Running Promo", conflict.PromotionName)

	// Nothing from the batch landed.
	var n int
	err = s.DbPool.QueryRow(s.Ctx,
		`SELECT COUNT(*) FROM promotion_products WHERE promotion_id = $1`, newPromo).Scan(&n)
	s.Require().NoError(err)
	s.Equal(0, n)
}

// An assignment whose promotion has lapsed does not block a new one.
func (s *IntegrationTestSuite) TestAssignProducts_ExpiredPromotionDoesNotBlock() {
	productID := s.seedProduct("SKU-102", 10, 5)

	expired := s.seedExpiredPromotion("Old Promo")
	s.assignPromotion(expired, productID, time.Now().AddDate(0, -2, 0))

	newPromo := s.seedPromotion("Fresh Promo", 15, 30)

	assignments, err := s.Promotions.AssignProducts(s.Ctx, newPromo, []string{productID})
	s.Require().NoError(err)
	s.Require().Len(assignments, 1)
	s.Equal(productID, assignments[0].ProductID)
}

func (s *IntegrationTestSuite) TestAssignProducts_ReassignSamePromotionIsNoop() {
	productID := s.seedProduct("SKU-103", 10, 5)
	promo := s.seedPromotion("Promo", 10, 30)

	first, err := s.Promotions.AssignProducts(s.Ctx, promo, []string{productID})
	s.Require().NoError(err)
	s.Len(first, 1)

	second, err := s.Promotions.AssignProducts(s.Ctx, promo, []string{productID})
	s.Require().NoError(err)
	s.Len(second, 0)

	var n int
	err = s.DbPool.QueryRow(s.Ctx,
		`SELECT COUNT(*) FROM promotion_products WHERE promotion_id = $1`, promo).Scan(&n)
	s.Require().NoError(err)
	s.Equal(1, n)
}

// Creating a promotion with productIds is one transaction: a conflict on
// any product also rolls back the promotion row itself.
func (s *IntegrationTestSuite) TestCreatePromotion_WithConflictingProductsRollsBack() {
	productID := s.seedProduct("SKU-104", 10, 5)

	existing := s.seedPromotion("Running Promo", 10, 30)
	s.assignPromotion(existing, productID, time.Now().AddDate(0, 0, -1))

	_, err := s.Promotions.Create(s.Ctx, &service.PromotionInput{
		Name:               "Doomed Promo",
		DiscountType:       "percentage",
		DiscountValue:      decimal.NewFromInt(20),
		DaysFromActivation: intPtr(7),
		IsActive:           true,
		ProductIDs:         []string{productID},
	})

	var conflict *service.PromotionConflictError
	s.Require().ErrorAs(err, &conflict)

	var n int
	qerr := s.DbPool.QueryRow(s.Ctx,
		`SELECT COUNT(*) FROM promotions WHERE name = 'Doomed Promo'`).Scan(&n)
	s.Require().NoError(qerr)
	s.Equal(0, n)
}

func (s *IntegrationTestSuite) TestCreatePromotion_WithProducts() {
	productID := s.seedProduct("SKU-105", 10, 5)

	promotion, err := s.Promotions.Create(s.Ctx, &service.PromotionInput{
		Name:               "Bundle Promo",
		DiscountType:       "percentage",
		DiscountValue:      decimal.NewFromInt(5),
		DaysFromActivation: intPtr(14),
		IsActive:           true,
		ProductIDs:         []string{productID},
	})
	s.Require().NoError(err)

	var n int
	qerr := s.DbPool.QueryRow(s.Ctx,
		`SELECT COUNT(*) FROM promotion_products WHERE promotion_id = $1`, promotion.ID).Scan(&n)
	s.Require().NoError(qerr)
	s.Equal(1, n)
}

func (s *IntegrationTestSuite) TestAssignProducts_UnknownProduct() {
	promo := s.seedPromotion("Promo", 10, 30)

	_, err := s.Promotions.AssignProducts(s.Ctx, promo,
		[]string{"1af0c8d2-0000-0000-0000-000000000000"})

	var notFound *service.ProductNotFoundError
	s.Require().ErrorAs(err, &notFound)
}

func (s *IntegrationTestSuite) TestUpdatePromotion() {
	promo := s.seedPromotion("Before", 10, 30)

	updated, err := s.Promotions.Update(s.Ctx, promo, &service.PromotionInput{
		Name:               "After",
		DiscountType:       "fixed",
		DiscountValue:      decimal.NewFromInt(5),
		DaysFromActivation: intPtr(10),
		IsActive:           true,
	})
	s.Require().NoError(err)
	s.Equal("After", updated.Name)

	stored, err := s.Promotions.Get(s.Ctx, promo)
	s.Require().NoError(err)
	s.Equal("After", stored.Name)
	s.Equal("fixed", string(stored.DiscountType))
}
