package service_test

import (
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdcisneros1/edesa-b2b-sub000/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestPlaceOrder_Success() {
	productID := s.seedProduct("SKU-001", 100, 10)

	order, err := s.Checkout.PlaceOrder(s.Ctx, s.placeOrderRequest(
		service.OrderLineInput{ProductID: productID, Quantity: 2},
	))
	s.Require().NoError(err)
	s.Require().NotNil(order)

	s.Regexp(regexp.MustCompile(`^EDV-\d{8}-\d{5}$`), order.OrderNumber)
	s.Equal("pending_payment", string(order.Status))

	s.True(order.Subtotal.Equal(decimal.NewFromInt(200)), order.Subtotal.String())
	s.True(order.Tax.Equal(decimal.NewFromInt(30)), order.Tax.String())
	s.True(order.Shipping.Equal(decimal.NewFromInt(5)), order.Shipping.String())
	s.True(order.Total.Equal(decimal.NewFromInt(235)), order.Total.String())

	s.Equal(int64(8), s.productStock(productID))

	stored, err := s.Checkout.GetOrder(s.Ctx, order.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Items, 1)
	s.True(stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)))

	// The confirmation event was written with the commit and the worker
	// publishes it shortly after.
	s.Require().Eventually(func() bool {
		var publishedAt *time.Time
		err := s.DbPool.QueryRow(
			s.Ctx,
			`SELECT published_at FROM outbox WHERE aggregate_id = $1`,
			order.ID,
		).Scan(&publishedAt)

		return err == nil && publishedAt != nil
	}, 10*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestPlaceOrder_PromotionPriceApplied() {
	productID := s.seedProduct("SKU-002", 100, 5)
	promotionID := s.seedPromotion("Launch Week", 10, 30)
	s.assignPromotion(promotionID, productID, time.Now().AddDate(0, 0, -1))

	order, err := s.Checkout.PlaceOrder(s.Ctx, s.placeOrderRequest(
		service.OrderLineInput{ProductID: productID, Quantity: 1},
	))
	s.Require().NoError(err)

	s.Require().Len(order.Items, 1)
	s.True(order.Items[0].UnitPrice.Equal(decimal.NewFromInt(90)), order.Items[0].UnitPrice.String())
	s.True(order.Subtotal.Equal(decimal.NewFromInt(90)), order.Subtotal.String())
}

func (s *IntegrationTestSuite) TestPlaceOrder_WholesalePrice() {
	productID := s.seedProduct("SKU-003", 100, 5)
	s.seedWholesalePrice(productID, 70)

	req := s.placeOrderRequest(service.OrderLineInput{ProductID: productID, Quantity: 1})
	req.Wholesale = true

	order, err := s.Checkout.PlaceOrder(s.Ctx, req)
	s.Require().NoError(err)

	s.True(order.Items[0].UnitPrice.Equal(decimal.NewFromInt(70)), order.Items[0].UnitPrice.String())
}

func (s *IntegrationTestSuite) TestPlaceOrder_InsufficientStock() {
	productID := s.seedProduct("SKU-004", 50, 1)

	_, err := s.Checkout.PlaceOrder(s.Ctx, s.placeOrderRequest(
		service.OrderLineInput{ProductID: productID, Quantity: 2},
	))

	var stockErr *service.InsufficientStockError
	s.Require().ErrorAs(err, &stockErr)
	s.Equal(int64(1), stockErr.Available)

	s.Equal(0, s.countRows("orders"))
	s.Equal(0, s.countRows("outbox"))
	s.Equal(int64(1), s.productStock(productID))
}

// A failure on any line rolls back the whole order: the first product's
// stock must be untouched and no confirmation event may exist.
func (s *IntegrationTestSuite) TestPlaceOrder_RollbackIsTotal() {
	goodID := s.seedProduct("SKU-005", 20, 10)
	scarceID := s.seedProduct("SKU-006", 30, 1)

	_, err := s.Checkout.PlaceOrder(s.Ctx, s.placeOrderRequest(
		service.OrderLineInput{ProductID: goodID, Quantity: 3},
		service.OrderLineInput{ProductID: scarceID, Quantity: 5},
	))
	s.Require().Error(err)

	s.Equal(int64(10), s.productStock(goodID))
	s.Equal(int64(1), s.productStock(scarceID))
	s.Equal(0, s.countRows("orders"))
	s.Equal(0, s.countRows("order_items"))
	s.Equal(0, s.countRows("outbox"))
}

func (s *IntegrationTestSuite) TestPlaceOrder_UnknownProduct() {
	_, err := s.Checkout.PlaceOrder(s.Ctx, s.placeOrderRequest(
		service.OrderLineInput{ProductID: "e2c7a3a0-0000-0000-0000-000000000000", Quantity: 1},
	))

	var notFound *service.ProductNotFoundError
	s.Require().ErrorAs(err, &notFound)
}

func (s *IntegrationTestSuite) TestPlaceOrder_InactiveProduct() {
	productID := s.seedProduct("SKU-007", 10, 5)
	_, err := s.DbPool.Exec(s.Ctx, `UPDATE products SET is_active = FALSE WHERE id = $1`, productID)
	s.Require().NoError(err)

	_, err = s.Checkout.PlaceOrder(s.Ctx, s.placeOrderRequest(
		service.OrderLineInput{ProductID: productID, Quantity: 1},
	))

	var unavailable *service.ProductUnavailableError
	s.Require().ErrorAs(err, &unavailable)
}

func (s *IntegrationTestSuite) TestPlaceOrder_ValidationRejectsBeforeTx() {
	productID := s.seedProduct("SKU-008", 10, 5)

	cases := []*service.PlaceOrderRequest{
		s.placeOrderRequest(service.OrderLineInput{ProductID: productID, Quantity: 0}),
		s.placeOrderRequest(service.OrderLineInput{ProductID: productID, Quantity: 10000}),
		s.placeOrderRequest(),
	}

	noEmail := s.placeOrderRequest(service.OrderLineInput{ProductID: productID, Quantity: 1})
	noEmail.CustomerInfo.Email = ""
	cases = append(cases, noEmail)

	for _, req := range cases {
		_, err := s.Checkout.PlaceOrder(s.Ctx, req)

		var verr *service.ValidationError
		s.Require().ErrorAs(err, &verr)
	}

	s.Equal(0, s.countRows("orders"))
}

// Concurrent checkouts over the same product can never oversell: with stock
// 5 and four buyers of 2 each, exactly two succeed and stock ends at 1.
func (s *IntegrationTestSuite) TestPlaceOrder_ConcurrentStockContention() {
	productID := s.seedProduct("SKU-009", 40, 5)

	const buyers = 4

	var wg sync.WaitGroup
	var succeeded atomic.Int32
	var stockErrs atomic.Int32

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := s.Checkout.PlaceOrder(s.Ctx, s.placeOrderRequest(
				service.OrderLineInput{ProductID: productID, Quantity: 2},
			))
			if err == nil {
				succeeded.Add(1)
				return
			}

			var stockErr *service.InsufficientStockError
			if errors.As(err, &stockErr) {
				stockErrs.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(2), succeeded.Load())
	s.Equal(int32(2), stockErrs.Load())
	s.Equal(int64(1), s.productStock(productID))
	s.Equal(2, s.countRows("orders"))
}

// A colliding order number is not a checkout failure: the service
// regenerates and retries behind the scenes.
func (s *IntegrationTestSuite) TestPlaceOrder_OrderNumberCollisionRetries() {
	productID := s.seedProduct("SKU-010", 10, 5)

	taken := "EDV-20260101-11111"
	_, err := s.DbPool.Exec(s.Ctx, `
		INSERT INTO orders (order_number, customer_name, customer_email,
			shipping_street, shipping_city, shipping_province, shipping_zip_code,
			shipping_country, subtotal, tax, shipping, total, status,
			payment_method, shipping_method)
		VALUES ($1, 'x', 'x@example.com', 'x', 'x', 'x', 'x', 'EC', 0, 0, 0, 0,
			'pending_payment', 'transfer', 'standard')
	`, taken)
	s.Require().NoError(err)

	var calls atomic.Int32
	checkout := service.NewCheckoutService(
		s.DbPool,
		zap.NewNop(),
		s.ProductRepo,
		s.PromotionRepo,
		s.OrderRepo,
		s.CartRepo,
		s.OutboxRepo,
		decimal.NewFromFloat(0.15),
		"EDV",
		service.WithOrderNumberFunc(func(now time.Time) string {
			if calls.Add(1) == 1 {
				return taken
			}

			return "EDV-20260101-22222"
		}),
	)

	order, err := checkout.PlaceOrder(s.Ctx, s.placeOrderRequest(
		service.OrderLineInput{ProductID: productID, Quantity: 1},
	))
	s.Require().NoError(err)
	s.Equal("EDV-20260101-22222", order.OrderNumber)
	s.GreaterOrEqual(calls.Load(), int32(2))
}

func (s *IntegrationTestSuite) TestPlaceOrder_ClearsServerCart() {
	productID := s.seedProduct("SKU-011", 10, 5)

	cartID := "7b6df3a8-59a9-4f1d-8f1c-0a4a4e1c9d10"
	_, err := s.DbPool.Exec(s.Ctx,
		`INSERT INTO carts (id, customer_id, updated_at) VALUES ($1, 'cust-42', NOW())`, cartID)
	s.Require().NoError(err)
	_, err = s.DbPool.Exec(s.Ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity, price, subtotal) VALUES ($1, $2, 1, 10, 10)`,
		cartID, productID)
	s.Require().NoError(err)

	req := s.placeOrderRequest(service.OrderLineInput{ProductID: productID, Quantity: 1})
	req.CustomerID = "cust-42"

	_, err = s.Checkout.PlaceOrder(s.Ctx, req)
	s.Require().NoError(err)

	s.Equal(0, s.countRows("carts"))
	s.Equal(0, s.countRows("cart_items"))
}
